// Package reporter renders audit session results for people and machines.
//
// Supported output formats:
//   - Console: human-readable summary for terminal display
//   - JSON: structured data for programmatic consumption
//   - CSV: one row per match result, for spreadsheet review
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"expense-reconciliation-service/internal/models"
	"expense-reconciliation-service/internal/reconciler"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported.
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation.
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// Detail level options
	IncludeMatched         bool `json:"include_matched"`
	IncludeManualReview    bool `json:"include_manual_review"`
	IncludeUnmatched       bool `json:"include_unmatched"`
	IncludeWarnings        bool `json:"include_warnings"`
	IncludeProcessingStats bool `json:"include_processing_stats"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration.
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:                 FormatConsole,
		IncludeMatched:         true,
		IncludeManualReview:    true,
		IncludeUnmatched:       true,
		IncludeWarnings:        true,
		IncludeProcessingStats: true,
		CSVDelimiter:           ',',
		CSVHeaders:             true,
	}
}

// Validate validates the report configuration.
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.CSVDelimiter == 0 {
		return fmt.Errorf("CSV delimiter must not be empty")
	}
	return nil
}

// ReportGenerator generates reports from session results.
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a report generator with the given configuration.
// A nil config selects the defaults.
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &ReportGenerator{config: config}, nil
}

// GenerateReport renders the session result to the writer in the
// configured format.
func (rg *ReportGenerator) GenerateReport(result *reconciler.SessionResult, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("session result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) generateConsoleReport(result *reconciler.SessionResult, writer io.Writer) error {
	fmt.Fprintf(writer, "EXPENSE AUDIT REPORT\n")
	fmt.Fprintf(writer, "Generated: %s\n", result.ProcessedAt.Format(time.RFC3339))
	if result.Incomplete {
		fmt.Fprintf(writer, "NOTE: run was cancelled before completion; results are partial\n")
	}
	fmt.Fprintf(writer, "\n=== SUMMARY ===\n")
	rg.printSummary(result.Summary, writer)

	fmt.Fprintf(writer, "\n=== FINANCIAL SUMMARY ===\n")
	fmt.Fprintf(writer, "Amount matched:   %s\n", result.Summary.TotalAmountMatched.StringFixed(2))
	fmt.Fprintf(writer, "Amount unmatched: %s\n", result.Summary.TotalAmountUnmatched.StringFixed(2))

	if rg.config.IncludeManualReview {
		reviews := filterByStatus(result.Results, models.StatusManualReview)
		if len(reviews) > 0 {
			fmt.Fprintf(writer, "\n=== MANUAL REVIEW QUEUE ===\n")
			rg.printResultList(reviews, writer)
		}
	}

	if rg.config.IncludeUnmatched {
		unmatched := filterByStatus(result.Results, models.StatusUnmatched)
		if len(unmatched) > 0 {
			fmt.Fprintf(writer, "\n=== UNMATCHED TRANSACTIONS ===\n")
			rg.printResultList(unmatched, writer)
		}
	}

	if rg.config.IncludeWarnings && len(result.Warnings) > 0 {
		fmt.Fprintf(writer, "\n=== RECORD WARNINGS ===\n")
		for _, warning := range result.Warnings {
			fmt.Fprintf(writer, "  %s\n", warning.String())
		}
	}

	if rg.config.IncludeProcessingStats && result.ProcessingStats != nil {
		fmt.Fprintf(writer, "\n=== PROCESSING STATISTICS ===\n")
		rg.printProcessingStats(result, writer)
	}

	return nil
}

func (rg *ReportGenerator) generateJSONReport(result *reconciler.SessionResult, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rg.filterResultForOutput(result))
}

func (rg *ReportGenerator) generateCSVReport(result *reconciler.SessionResult, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter
	defer csvWriter.Flush()

	if rg.config.CSVHeaders {
		headers := []string{
			"transaction_id",
			"receipt_id",
			"match_status",
			"confidence_score",
			"match_reason",
			"amount_difference",
			"date_difference_days",
			"merchant_similarity",
		}
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, match := range result.Results {
		if !rg.includeStatus(match.MatchStatus) {
			continue
		}

		receiptID := ""
		if match.ReceiptID != nil {
			receiptID = match.ReceiptID.String()
		}
		amountDiff := ""
		if match.AmountDifference != nil {
			amountDiff = match.AmountDifference.String()
		}
		dateDiff := ""
		if match.DateDifferenceDays != nil {
			dateDiff = strconv.Itoa(*match.DateDifferenceDays)
		}
		merchantSim := ""
		if match.MerchantSimilarity != nil {
			merchantSim = strconv.FormatFloat(*match.MerchantSimilarity, 'f', 4, 64)
		}

		record := []string{
			match.TransactionID.String(),
			receiptID,
			match.MatchStatus.String(),
			strconv.FormatFloat(match.ConfidenceScore, 'f', 4, 64),
			match.MatchReason,
			amountDiff,
			dateDiff,
			merchantSim,
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write match record: %w", err)
		}
	}

	return nil
}

func (rg *ReportGenerator) includeStatus(status models.MatchStatus) bool {
	switch status {
	case models.StatusMatched:
		return rg.config.IncludeMatched
	case models.StatusManualReview:
		return rg.config.IncludeManualReview
	case models.StatusUnmatched:
		return rg.config.IncludeUnmatched
	default:
		return true
	}
}

func (rg *ReportGenerator) printSummary(summary *reconciler.SessionSummary, writer io.Writer) {
	fmt.Fprintf(writer, "Transactions:   %d\n", summary.TotalTransactions)
	fmt.Fprintf(writer, "Receipts:       %d\n", summary.TotalReceipts)
	fmt.Fprintf(writer, "Matched:        %d (%.1f%%)\n",
		summary.Matched, percentage(summary.Matched, summary.TotalTransactions))
	fmt.Fprintf(writer, "Manual review:  %d (%.1f%%)\n",
		summary.ManualReview, percentage(summary.ManualReview, summary.TotalTransactions))
	fmt.Fprintf(writer, "Unmatched:      %d (%.1f%%)\n",
		summary.Unmatched, percentage(summary.Unmatched, summary.TotalTransactions))
}

func (rg *ReportGenerator) printResultList(results []*models.MatchResult, writer io.Writer) {
	for _, match := range results {
		receiptID := "-"
		if match.ReceiptID != nil {
			receiptID = match.ReceiptID.String()
		}
		fmt.Fprintf(writer, "  %s  receipt=%s  confidence=%.4f  %s\n",
			match.TransactionID, receiptID, match.ConfidenceScore, match.MatchReason)
	}
}

func (rg *ReportGenerator) printProcessingStats(result *reconciler.SessionResult, writer io.Writer) {
	stats := result.ProcessingStats
	fmt.Fprintf(writer, "Parsing time:             %v\n", stats.ParsingTime)
	fmt.Fprintf(writer, "Matching time:            %v\n", stats.MatchingTime)
	fmt.Fprintf(writer, "Total duration:           %v\n", result.Summary.ProcessingDuration)
	fmt.Fprintf(writer, "Transaction parse errors: %d\n", stats.TransactionParseErrors)
	fmt.Fprintf(writer, "Receipt parse errors:     %d\n", stats.ReceiptParseErrors)
}

// filterResultForOutput shapes the session result for JSON output based
// on the configured detail level.
func (rg *ReportGenerator) filterResultForOutput(result *reconciler.SessionResult) map[string]interface{} {
	filtered := map[string]interface{}{
		"summary":      result.Summary,
		"processed_at": result.ProcessedAt,
	}

	if result.Incomplete {
		filtered["incomplete"] = true
	}

	results := make([]*models.MatchResult, 0, len(result.Results))
	for _, match := range result.Results {
		if rg.includeStatus(match.MatchStatus) {
			results = append(results, match)
		}
	}
	filtered["results"] = results

	if rg.config.IncludeWarnings && len(result.Warnings) > 0 {
		filtered["warnings"] = result.Warnings
	}
	if rg.config.IncludeProcessingStats && result.ProcessingStats != nil {
		filtered["processing_stats"] = result.ProcessingStats
	}

	return filtered
}

func filterByStatus(results []*models.MatchResult, status models.MatchStatus) []*models.MatchResult {
	var filtered []*models.MatchResult
	for _, match := range results {
		if match.MatchStatus == status {
			filtered = append(filtered, match)
		}
	}
	return filtered
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// UpdateConfiguration replaces the generator's configuration.
func (rg *ReportGenerator) UpdateConfiguration(config *ReportConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	rg.config = config
	return nil
}

// GetConfiguration returns a copy of the current configuration.
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	configCopy := *rg.config
	return &configCopy
}

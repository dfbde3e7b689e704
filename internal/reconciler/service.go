// Package reconciler orchestrates a full audit session: parsing the
// transaction and receipt exports, running the matching engine, and
// summarizing the outcome.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"expense-reconciliation-service/internal/matcher"
	"expense-reconciliation-service/internal/models"
	"expense-reconciliation-service/internal/parsers"
	"expense-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// MatchingService orchestrates the complete matching process.
type MatchingService struct {
	transactionParser *parsers.TransactionParser
	receiptParser     *parsers.ReceiptParser
	engine            *matcher.MatchingEngine
	config            *Config
	logger            logger.Logger
}

// Config holds orchestration options for the matching service.
type Config struct {
	// Date range filtering applied to both inputs before matching.
	StartDate *time.Time
	EndDate   *time.Time

	ProgressReporting bool
}

// DefaultConfig returns a default service configuration.
func DefaultConfig() *Config {
	return &Config{
		ProgressReporting: false,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.StartDate != nil && c.EndDate != nil && c.StartDate.After(*c.EndDate) {
		return fmt.Errorf("start date must be before end date")
	}
	return nil
}

// SessionRequest describes one audit session's inputs.
type SessionRequest struct {
	TransactionsFile  string
	ReceiptsFile      string
	TransactionConfig *parsers.TransactionParserConfig
	ReceiptConfig     *parsers.ReceiptParserConfig
}

// Validate validates the session request.
func (r *SessionRequest) Validate() error {
	if r.TransactionsFile == "" {
		return fmt.Errorf("transactions file path is required")
	}
	if r.ReceiptsFile == "" {
		return fmt.Errorf("receipts file path is required")
	}
	return nil
}

// SessionResult contains the complete results of one audit session.
type SessionResult struct {
	Summary  *SessionSummary        `json:"summary"`
	Results  []*models.MatchResult  `json:"results"`
	Warnings []models.RecordWarning `json:"warnings,omitempty"`

	ProcessingStats *ProcessingStats `json:"processing_stats,omitempty"`

	// Incomplete is set when matching was cancelled mid-run; Results
	// then covers only the transactions processed before cancellation.
	Incomplete bool `json:"incomplete,omitempty"`

	ProcessedAt time.Time `json:"processed_at"`
}

// SessionSummary provides a high-level overview of session results.
type SessionSummary struct {
	TotalTransactions int `json:"total_transactions"`
	TotalReceipts     int `json:"total_receipts"`

	Matched      int `json:"matched"`
	ManualReview int `json:"manual_review"`
	Unmatched    int `json:"unmatched"`

	TotalAmountMatched   decimal.Decimal `json:"total_amount_matched"`
	TotalAmountUnmatched decimal.Decimal `json:"total_amount_unmatched"`

	ProcessingDuration time.Duration `json:"processing_duration"`
	DateRange          *DateRange    `json:"date_range,omitempty"`
}

// ProcessingStats contains detailed processing statistics.
type ProcessingStats struct {
	TransactionParseErrors int `json:"transaction_parse_errors"`
	ReceiptParseErrors     int `json:"receipt_parse_errors"`

	ParsingTime  time.Duration `json:"parsing_time"`
	MatchingTime time.Duration `json:"matching_time"`
}

// DateRange represents a date range filter.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewMatchingService creates a new matching service.
func NewMatchingService(
	transactionConfig *parsers.TransactionParserConfig,
	receiptConfig *parsers.ReceiptParserConfig,
	matchConfig *matcher.MatchConfig,
	config *Config,
) (*MatchingService, error) {

	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	transactionParser, err := parsers.NewTransactionParser(transactionConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction parser: %w", err)
	}

	receiptParser, err := parsers.NewReceiptParser(receiptConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create receipt parser: %w", err)
	}

	engine, err := matcher.NewMatchingEngine(matchConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create matching engine: %w", err)
	}

	return &MatchingService{
		transactionParser: transactionParser,
		receiptParser:     receiptParser,
		engine:            engine,
		config:            config,
		logger:            logger.GetGlobalLogger().WithComponent("matching_service"),
	}, nil
}

// RunSession performs a complete audit session: parse both exports, run
// the matching engine, and build the summary. Each session is independent;
// re-running on the same inputs produces a full replacement result set.
func (ms *MatchingService) RunSession(ctx context.Context, request *SessionRequest) (*SessionResult, error) {
	if err := request.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	startTime := time.Now()
	log := ms.logger.WithFields(logger.Fields{
		"transactions_file": request.TransactionsFile,
		"receipts_file":     request.ReceiptsFile,
	})
	log.Info("Starting audit session")

	result := &SessionResult{
		ProcessedAt:     startTime,
		Summary:         &SessionSummary{},
		ProcessingStats: &ProcessingStats{},
	}

	if ms.config.StartDate != nil && ms.config.EndDate != nil {
		result.Summary.DateRange = &DateRange{
			Start: *ms.config.StartDate,
			End:   *ms.config.EndDate,
		}
	}

	parsingStart := time.Now()

	transactions, txStats, err := ms.transactionParser.ParseTransactionsWithContext(ctx, request.TransactionsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to parse transactions: %w", err)
	}

	receipts, rcptStats, err := ms.receiptParser.ParseReceiptsWithContext(ctx, request.ReceiptsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to parse receipts: %w", err)
	}

	result.ProcessingStats.ParsingTime = time.Since(parsingStart)
	result.ProcessingStats.TransactionParseErrors = txStats.ErrorCount
	result.ProcessingStats.ReceiptParseErrors = rcptStats.ErrorCount

	result.Warnings = append(result.Warnings, parseWarnings(models.RecordTypeTransaction, txStats)...)
	result.Warnings = append(result.Warnings, parseWarnings(models.RecordTypeReceipt, rcptStats)...)

	transactions, receipts = ms.applyDateRange(transactions, receipts)

	if ms.config.ProgressReporting {
		tracker := logger.NewProgressTracker(ms.logger, "matching", int64(len(transactions)))
		ms.engine.SetProgressTracker(tracker)
	}

	matchingStart := time.Now()
	runResult, err := ms.engine.Match(ctx, transactions, receipts)
	if err != nil {
		return nil, fmt.Errorf("matching failed: %w", err)
	}
	result.ProcessingStats.MatchingTime = time.Since(matchingStart)

	result.Results = runResult.Results
	result.Warnings = append(result.Warnings, runResult.Warnings...)
	result.Incomplete = runResult.Incomplete

	ms.buildSummary(result, transactions, receipts)
	result.Summary.ProcessingDuration = time.Since(startTime)

	log.WithFields(logger.Fields{
		"matched":       result.Summary.Matched,
		"manual_review": result.Summary.ManualReview,
		"unmatched":     result.Summary.Unmatched,
		"warnings":      len(result.Warnings),
		"incomplete":    result.Incomplete,
		"duration":      result.Summary.ProcessingDuration.String(),
	}).Info("Audit session completed")

	return result, nil
}

// applyDateRange filters both inputs to the configured calendar date range.
func (ms *MatchingService) applyDateRange(
	transactions []*models.Transaction,
	receipts []*models.Receipt,
) ([]*models.Transaction, []*models.Receipt) {

	if ms.config.StartDate == nil && ms.config.EndDate == nil {
		return transactions, receipts
	}

	inRange := func(date time.Time) bool {
		day := models.DateOnly(date)
		if ms.config.StartDate != nil && day.Before(models.DateOnly(*ms.config.StartDate)) {
			return false
		}
		if ms.config.EndDate != nil && day.After(models.DateOnly(*ms.config.EndDate)) {
			return false
		}
		return true
	}

	filteredTx := make([]*models.Transaction, 0, len(transactions))
	for _, tx := range transactions {
		if inRange(tx.Date) {
			filteredTx = append(filteredTx, tx)
		}
	}

	filteredRcpt := make([]*models.Receipt, 0, len(receipts))
	for _, rcpt := range receipts {
		if inRange(rcpt.Date) {
			filteredRcpt = append(filteredRcpt, rcpt)
		}
	}

	ms.logger.WithFields(logger.Fields{
		"transactions_kept":  len(filteredTx),
		"transactions_total": len(transactions),
		"receipts_kept":      len(filteredRcpt),
		"receipts_total":     len(receipts),
	}).Debug("Applied date range filter")

	return filteredTx, filteredRcpt
}

// buildSummary fills in the session summary from the match results.
func (ms *MatchingService) buildSummary(
	result *SessionResult,
	transactions []*models.Transaction,
	receipts []*models.Receipt,
) {
	summary := result.Summary
	summary.TotalTransactions = len(transactions)
	summary.TotalReceipts = len(receipts)
	summary.TotalAmountMatched = decimal.Zero
	summary.TotalAmountUnmatched = decimal.Zero

	amounts := make(map[string]decimal.Decimal, len(transactions))
	for _, tx := range transactions {
		amounts[tx.ID.String()] = tx.Amount
	}

	for _, match := range result.Results {
		switch match.MatchStatus {
		case models.StatusMatched:
			summary.Matched++
			if amount, ok := amounts[match.TransactionID.String()]; ok {
				summary.TotalAmountMatched = summary.TotalAmountMatched.Add(amount)
			}
		case models.StatusManualReview:
			summary.ManualReview++
			if amount, ok := amounts[match.TransactionID.String()]; ok {
				summary.TotalAmountUnmatched = summary.TotalAmountUnmatched.Add(amount)
			}
		case models.StatusUnmatched:
			summary.Unmatched++
			if amount, ok := amounts[match.TransactionID.String()]; ok {
				summary.TotalAmountUnmatched = summary.TotalAmountUnmatched.Add(amount)
			}
		}
	}
}

// parseWarnings converts parser errors into record warnings so bad rows
// surface in the session output rather than only in logs.
func parseWarnings(recordType string, stats *parsers.ParseStats) []models.RecordWarning {
	if stats == nil || !stats.HasErrors() {
		return nil
	}

	warnings := make([]models.RecordWarning, 0, len(stats.Errors))
	for _, parseErr := range stats.Errors {
		warnings = append(warnings, models.RecordWarning{
			RecordType: recordType,
			RecordID:   parseErr.Value,
			Message:    parseErr.Error(),
		})
	}
	return warnings
}

// Engine exposes the underlying matching engine, mainly for inspection
// of the effective configuration.
func (ms *MatchingService) Engine() *matcher.MatchingEngine {
	return ms.engine
}

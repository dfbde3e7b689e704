package reporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"expense-reconciliation-service/internal/models"
	"expense-reconciliation-service/internal/reconciler"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func sampleSessionResult() *reconciler.SessionResult {
	receiptID := uuid.New()
	diff := decimal.NewFromFloat(0.05)
	days := 1
	sim := 0.9

	return &reconciler.SessionResult{
		ProcessedAt: time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC),
		Summary: &reconciler.SessionSummary{
			TotalTransactions:    3,
			TotalReceipts:        2,
			Matched:              1,
			ManualReview:         1,
			Unmatched:            1,
			TotalAmountMatched:   decimal.NewFromFloat(42.50),
			TotalAmountUnmatched: decimal.NewFromFloat(350.00),
			ProcessingDuration:   125 * time.Millisecond,
		},
		Results: []*models.MatchResult{
			{
				TransactionID:      uuid.New(),
				ReceiptID:          &receiptID,
				ConfidenceScore:    0.92,
				MatchStatus:        models.StatusMatched,
				MatchReason:        "matched receipt with 92.00% confidence",
				AmountDifference:   &diff,
				DateDifferenceDays: &days,
				MerchantSimilarity: &sim,
			},
			{
				TransactionID:      uuid.New(),
				ReceiptID:          &receiptID,
				ConfidenceScore:    0.6,
				MatchStatus:        models.StatusManualReview,
				MatchReason:        "below threshold",
				AmountDifference:   &diff,
				DateDifferenceDays: &days,
				MerchantSimilarity: &sim,
			},
			{
				TransactionID: uuid.New(),
				MatchStatus:   models.StatusUnmatched,
				MatchReason:   "no receipt candidates available",
			},
		},
		Warnings: []models.RecordWarning{
			{RecordType: models.RecordTypeReceipt, RecordID: "r-1", Message: "receipt excluded from matching"},
		},
		ProcessingStats: &reconciler.ProcessingStats{
			TransactionParseErrors: 0,
			ReceiptParseErrors:     1,
			ParsingTime:            25 * time.Millisecond,
			MatchingTime:           100 * time.Millisecond,
		},
	}
}

func TestNewReportGenerator(t *testing.T) {
	generator, err := NewReportGenerator(nil)
	if err != nil {
		t.Fatalf("nil config must select defaults: %v", err)
	}
	if generator.GetConfiguration().Format != FormatConsole {
		t.Errorf("expected console default, got %s", generator.GetConfiguration().Format)
	}

	invalid := DefaultReportConfig()
	invalid.Format = OutputFormat("xml")
	if _, err := NewReportGenerator(invalid); err == nil {
		t.Fatal("expected error for invalid format")
	}
}

func TestOutputFormatIsValid(t *testing.T) {
	for _, format := range []OutputFormat{FormatConsole, FormatJSON, FormatCSV} {
		if !format.IsValid() {
			t.Errorf("%s should be valid", format)
		}
	}
	if OutputFormat("yaml").IsValid() {
		t.Error("unknown format must not be valid")
	}
}

func TestGenerateConsoleReport(t *testing.T) {
	generator, err := NewReportGenerator(nil)
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}

	var buf bytes.Buffer
	if err := generator.GenerateReport(sampleSessionResult(), &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	for _, section := range []string{
		"EXPENSE AUDIT REPORT",
		"=== SUMMARY ===",
		"=== FINANCIAL SUMMARY ===",
		"=== MANUAL REVIEW QUEUE ===",
		"=== UNMATCHED TRANSACTIONS ===",
		"=== RECORD WARNINGS ===",
		"=== PROCESSING STATISTICS ===",
	} {
		if !strings.Contains(output, section) {
			t.Errorf("console report missing section %q", section)
		}
	}

	if !strings.Contains(output, "Matched:        1 (33.3%)") {
		t.Errorf("console report missing match percentage:\n%s", output)
	}
}

func TestGenerateJSONReport(t *testing.T) {
	config := DefaultReportConfig()
	config.Format = FormatJSON

	generator, err := NewReportGenerator(config)
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}

	var buf bytes.Buffer
	if err := generator.GenerateReport(sampleSessionResult(), &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("JSON report must be valid JSON: %v", err)
	}

	if _, ok := decoded["summary"]; !ok {
		t.Error("JSON report missing summary")
	}
	results, ok := decoded["results"].([]interface{})
	if !ok {
		t.Fatal("JSON report missing results array")
	}
	if len(results) != 3 {
		t.Errorf("expected 3 results in JSON report, got %d", len(results))
	}
}

func TestGenerateCSVReport(t *testing.T) {
	config := DefaultReportConfig()
	config.Format = FormatCSV

	generator, err := NewReportGenerator(config)
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}

	var buf bytes.Buffer
	if err := generator.GenerateReport(sampleSessionResult(), &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("CSV report must be valid CSV: %v", err)
	}

	// Header plus three result rows
	if len(records) != 4 {
		t.Fatalf("expected 4 CSV rows, got %d", len(records))
	}
	if records[0][0] != "transaction_id" {
		t.Errorf("unexpected CSV header: %v", records[0])
	}
	if records[1][2] != "matched" {
		t.Errorf("expected matched status in first data row, got %v", records[1])
	}

	// Unmatched row leaves candidate fields empty
	unmatchedRow := records[3]
	if unmatchedRow[1] != "" || unmatchedRow[5] != "" {
		t.Errorf("unmatched row must leave receipt fields empty: %v", unmatchedRow)
	}
}

func TestGenerateCSVReportFiltersStatuses(t *testing.T) {
	config := DefaultReportConfig()
	config.Format = FormatCSV
	config.IncludeMatched = false
	config.IncludeUnmatched = false

	generator, err := NewReportGenerator(config)
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}

	var buf bytes.Buffer
	if err := generator.GenerateReport(sampleSessionResult(), &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("CSV report must be valid CSV: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("expected header plus one manual review row, got %d rows", len(records))
	}
	if records[1][2] != "manual_review" {
		t.Errorf("expected manual_review row, got %v", records[1])
	}
}

func TestGenerateReportNilResult(t *testing.T) {
	generator, err := NewReportGenerator(nil)
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}

	var buf bytes.Buffer
	if err := generator.GenerateReport(nil, &buf); err == nil {
		t.Fatal("expected error for nil result")
	}
}

func TestUpdateConfiguration(t *testing.T) {
	generator, err := NewReportGenerator(nil)
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}

	updated := DefaultReportConfig()
	updated.Format = FormatJSON
	if err := generator.UpdateConfiguration(updated); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if generator.GetConfiguration().Format != FormatJSON {
		t.Error("configuration update not applied")
	}

	invalid := DefaultReportConfig()
	invalid.Format = OutputFormat("xml")
	if err := generator.UpdateConfiguration(invalid); err == nil {
		t.Fatal("expected error for invalid configuration")
	}
}

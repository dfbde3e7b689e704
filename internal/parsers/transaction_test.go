package parsers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "input.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp CSV: %v", err)
	}
	return path
}

func TestNewTransactionParser(t *testing.T) {
	parser, err := NewTransactionParser(nil)
	if err != nil {
		t.Fatalf("nil config must select defaults: %v", err)
	}
	if parser == nil {
		t.Fatal("expected parser to be created")
	}

	invalid := &TransactionParserConfig{AmountColumn: "amount"}
	if _, err := NewTransactionParser(invalid); err == nil {
		t.Fatal("expected error for config with empty columns")
	}
}

func TestParseTransactions(t *testing.T) {
	id1 := uuid.New().String()
	id2 := uuid.New().String()

	path := writeTempCSV(t,
		"id,amount,date,merchant_name\n"+
			id1+",42.50,2024-03-15,Starbucks\n"+
			id2+",$1,2024-03-16,Uber\n")

	parser, err := NewTransactionParser(nil)
	if err != nil {
		t.Fatalf("failed to create parser: %v", err)
	}

	transactions, stats, err := parser.ParseTransactions(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(transactions))
	}
	if stats.RecordsValid != 2 {
		t.Errorf("expected 2 valid records, got %d", stats.RecordsValid)
	}
	if transactions[0].ID.String() != id1 {
		t.Errorf("expected first transaction %s, got %s", id1, transactions[0].ID)
	}
	if transactions[0].MerchantName != "Starbucks" {
		t.Errorf("unexpected merchant name %q", transactions[0].MerchantName)
	}
}

func TestParseTransactionsColumnAliases(t *testing.T) {
	id := uuid.New().String()

	path := writeTempCSV(t,
		"transaction_id,value,posted_date,payee\n"+
			id+",10.00,2024-03-15,Lyft\n")

	parser, err := NewTransactionParser(nil)
	if err != nil {
		t.Fatalf("failed to create parser: %v", err)
	}

	transactions, _, err := parser.ParseTransactions(path)
	if err != nil {
		t.Fatalf("aliased headers must parse: %v", err)
	}
	if len(transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(transactions))
	}
	if transactions[0].MerchantName != "Lyft" {
		t.Errorf("expected merchant Lyft, got %q", transactions[0].MerchantName)
	}
}

func TestParseTransactionsSkipsMalformedRows(t *testing.T) {
	id := uuid.New().String()

	path := writeTempCSV(t,
		"id,amount,date,merchant_name\n"+
			"not-a-uuid,10.00,2024-03-15,Shop\n"+
			id+",25.00,2024-03-16,Cafe\n"+
			id+",-3.00,2024-03-17,Refund\n")

	parser, err := NewTransactionParser(nil)
	if err != nil {
		t.Fatalf("failed to create parser: %v", err)
	}

	transactions, stats, err := parser.ParseTransactions(path)
	if err != nil {
		t.Fatalf("malformed rows must not fail the parse: %v", err)
	}

	if len(transactions) != 1 {
		t.Fatalf("expected 1 valid transaction, got %d", len(transactions))
	}
	if stats.ErrorCount != 2 {
		t.Errorf("expected 2 parse errors, got %d", stats.ErrorCount)
	}
	if !stats.HasErrors() {
		t.Error("stats must report errors")
	}
	if samples := stats.GetSampleErrors(1); len(samples) != 1 {
		t.Errorf("expected 1 sample error, got %d", len(samples))
	}
}

func TestParseTransactionsSkipsEmptyRows(t *testing.T) {
	id := uuid.New().String()

	path := writeTempCSV(t,
		"id,amount,date,merchant_name\n"+
			"\n"+
			id+",25.00,2024-03-16,Cafe\n"+
			",,,\n")

	parser, err := NewTransactionParser(nil)
	if err != nil {
		t.Fatalf("failed to create parser: %v", err)
	}

	transactions, stats, err := parser.ParseTransactions(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(transactions))
	}
	if stats.ErrorCount != 0 {
		t.Errorf("empty rows must not count as errors, got %d", stats.ErrorCount)
	}
}

func TestParseTransactionsMissingFile(t *testing.T) {
	parser, err := NewTransactionParser(nil)
	if err != nil {
		t.Fatalf("failed to create parser: %v", err)
	}

	if _, _, err := parser.ParseTransactions("/nonexistent/transactions.csv"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseTransactionsMissingColumns(t *testing.T) {
	path := writeTempCSV(t, "id,amount\n"+uuid.New().String()+",10.00\n")

	parser, err := NewTransactionParser(nil)
	if err != nil {
		t.Fatalf("failed to create parser: %v", err)
	}

	if _, _, err := parser.ParseTransactions(path); err == nil {
		t.Fatal("expected error for missing required columns")
	}
}

func TestParseTransactionsEmptyFile(t *testing.T) {
	path := writeTempCSV(t, "")

	parser, err := NewTransactionParser(nil)
	if err != nil {
		t.Fatalf("failed to create parser: %v", err)
	}

	if _, _, err := parser.ParseTransactions(path); err == nil {
		t.Fatal("expected error for empty file")
	}
}

func TestParseTransactionsCancelled(t *testing.T) {
	id := uuid.New().String()
	path := writeTempCSV(t,
		"id,amount,date,merchant_name\n"+
			id+",25.00,2024-03-16,Cafe\n")

	parser, err := NewTransactionParser(nil)
	if err != nil {
		t.Fatalf("failed to create parser: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := parser.ParseTransactionsWithContext(ctx, path); err == nil {
		t.Fatal("expected context error after cancellation")
	}
}

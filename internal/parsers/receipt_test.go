package parsers

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewReceiptParser(t *testing.T) {
	parser, err := NewReceiptParser(nil)
	if err != nil {
		t.Fatalf("nil config must select defaults: %v", err)
	}
	if parser == nil {
		t.Fatal("expected parser to be created")
	}

	invalid := &ReceiptParserConfig{IDColumn: "id"}
	if _, err := NewReceiptParser(invalid); err == nil {
		t.Fatal("expected error for config with empty columns")
	}
}

func TestParseReceipts(t *testing.T) {
	id1 := uuid.New().String()
	id2 := uuid.New().String()

	path := writeTempCSV(t,
		"id,amount,date,vendor_name\n"+
			id1+",42.50,2024-03-15,Starbucks\n"+
			id2+",99.99,2024-03-16,Best Buy\n")

	parser, err := NewReceiptParser(nil)
	if err != nil {
		t.Fatalf("failed to create parser: %v", err)
	}

	receipts, stats, err := parser.ParseReceipts(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(receipts) != 2 {
		t.Fatalf("expected 2 receipts, got %d", len(receipts))
	}
	if stats.RecordsValid != 2 {
		t.Errorf("expected 2 valid records, got %d", stats.RecordsValid)
	}
	if receipts[1].VendorName != "Best Buy" {
		t.Errorf("unexpected vendor name %q", receipts[1].VendorName)
	}
}

func TestParseReceiptsColumnAliases(t *testing.T) {
	id := uuid.New().String()

	path := writeTempCSV(t,
		"receipt_id,total,purchase_date,vendor\n"+
			id+",15.00,2024-03-15,Chipotle\n")

	parser, err := NewReceiptParser(nil)
	if err != nil {
		t.Fatalf("failed to create parser: %v", err)
	}

	receipts, _, err := parser.ParseReceipts(path)
	if err != nil {
		t.Fatalf("aliased headers must parse: %v", err)
	}
	if len(receipts) != 1 {
		t.Fatalf("expected 1 receipt, got %d", len(receipts))
	}
	if receipts[0].VendorName != "Chipotle" {
		t.Errorf("expected vendor Chipotle, got %q", receipts[0].VendorName)
	}
}

func TestParseReceiptsSkipsMalformedRows(t *testing.T) {
	id := uuid.New().String()

	path := writeTempCSV(t,
		"id,amount,date,vendor_name\n"+
			id+",abc,2024-03-15,Shop\n"+
			uuid.New().String()+",25.00,2024-03-16,Cafe\n")

	parser, err := NewReceiptParser(nil)
	if err != nil {
		t.Fatalf("failed to create parser: %v", err)
	}

	receipts, stats, err := parser.ParseReceipts(path)
	if err != nil {
		t.Fatalf("malformed rows must not fail the parse: %v", err)
	}

	if len(receipts) != 1 {
		t.Fatalf("expected 1 valid receipt, got %d", len(receipts))
	}
	if stats.ErrorCount != 1 {
		t.Errorf("expected 1 parse error, got %d", stats.ErrorCount)
	}
}

func TestParseReceiptsMissingColumns(t *testing.T) {
	path := writeTempCSV(t, "id,amount,date\n"+uuid.New().String()+",10.00,2024-03-15\n")

	parser, err := NewReceiptParser(nil)
	if err != nil {
		t.Fatalf("failed to create parser: %v", err)
	}

	if _, _, err := parser.ParseReceipts(path); err == nil {
		t.Fatal("expected error for missing vendor column")
	}
}

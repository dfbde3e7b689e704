// Package models defines the core records exchanged between the extraction,
// matching and reporting subsystems: credit-card transactions, scanned
// receipts and the match results produced for each transaction.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is an immutable credit-card transaction record supplied by the
// extraction subsystem. The matching engine only reads it.
type Transaction struct {
	ID           uuid.UUID       `json:"id" csv:"id"`
	Amount       decimal.Decimal `json:"amount" csv:"amount"`
	Date         time.Time       `json:"date" csv:"date"`
	MerchantName string          `json:"merchant_name" csv:"merchant_name"`
}

// NewTransaction creates a new Transaction instance.
func NewTransaction(id uuid.UUID, amount decimal.Decimal, date time.Time, merchantName string) *Transaction {
	return &Transaction{
		ID:           id,
		Amount:       amount,
		Date:         date,
		MerchantName: merchantName,
	}
}

// Validate checks the transaction against the input contract: a non-nil ID,
// a positive amount, a real date and a non-empty merchant name.
func (t *Transaction) Validate() error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("transaction ID cannot be empty")
	}

	if !t.Amount.IsPositive() {
		return fmt.Errorf("transaction amount must be positive, got %s", t.Amount.String())
	}

	if t.Date.IsZero() {
		return fmt.Errorf("transaction date cannot be zero")
	}

	if strings.TrimSpace(t.MerchantName) == "" {
		return fmt.Errorf("transaction merchant name cannot be empty")
	}

	return nil
}

// String returns a string representation of the Transaction.
func (t *Transaction) String() string {
	return fmt.Sprintf("Transaction{ID: %s, Amount: %s, Date: %s, Merchant: %s}",
		t.ID, t.Amount.String(), t.Date.Format("2006-01-02"), t.MerchantName)
}

// MarshalJSON implements custom JSON marshaling for Transaction.
func (t *Transaction) MarshalJSON() ([]byte, error) {
	type Alias Transaction
	return json.Marshal(&struct {
		Amount string `json:"amount"`
		Date   string `json:"date"`
		*Alias
	}{
		Amount: t.Amount.String(),
		Date:   t.Date.Format("2006-01-02"),
		Alias:  (*Alias)(t),
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for Transaction.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	type Alias Transaction
	aux := &struct {
		Amount string `json:"amount"`
		Date   string `json:"date"`
		*Alias
	}{
		Alias: (*Alias)(t),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	t.Amount, err = decimal.NewFromString(aux.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount format: %w", err)
	}

	t.Date, err = ParseDateWithFormats(aux.Date)
	if err != nil {
		return fmt.Errorf("invalid date format: %w", err)
	}

	return nil
}

// Receipt is an immutable scanned-receipt record supplied by the extraction
// subsystem.
type Receipt struct {
	ID         uuid.UUID       `json:"id" csv:"id"`
	Amount     decimal.Decimal `json:"amount" csv:"amount"`
	Date       time.Time       `json:"date" csv:"date"`
	VendorName string          `json:"vendor_name" csv:"vendor_name"`
}

// NewReceipt creates a new Receipt instance.
func NewReceipt(id uuid.UUID, amount decimal.Decimal, date time.Time, vendorName string) *Receipt {
	return &Receipt{
		ID:         id,
		Amount:     amount,
		Date:       date,
		VendorName: vendorName,
	}
}

// Validate checks the receipt against the input contract.
func (r *Receipt) Validate() error {
	if r.ID == uuid.Nil {
		return fmt.Errorf("receipt ID cannot be empty")
	}

	if !r.Amount.IsPositive() {
		return fmt.Errorf("receipt amount must be positive, got %s", r.Amount.String())
	}

	if r.Date.IsZero() {
		return fmt.Errorf("receipt date cannot be zero")
	}

	if strings.TrimSpace(r.VendorName) == "" {
		return fmt.Errorf("receipt vendor name cannot be empty")
	}

	return nil
}

// String returns a string representation of the Receipt.
func (r *Receipt) String() string {
	return fmt.Sprintf("Receipt{ID: %s, Amount: %s, Date: %s, Vendor: %s}",
		r.ID, r.Amount.String(), r.Date.Format("2006-01-02"), r.VendorName)
}

// MarshalJSON implements custom JSON marshaling for Receipt.
func (r *Receipt) MarshalJSON() ([]byte, error) {
	type Alias Receipt
	return json.Marshal(&struct {
		Amount string `json:"amount"`
		Date   string `json:"date"`
		*Alias
	}{
		Amount: r.Amount.String(),
		Date:   r.Date.Format("2006-01-02"),
		Alias:  (*Alias)(r),
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for Receipt.
func (r *Receipt) UnmarshalJSON(data []byte) error {
	type Alias Receipt
	aux := &struct {
		Amount string `json:"amount"`
		Date   string `json:"date"`
		*Alias
	}{
		Alias: (*Alias)(r),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	r.Amount, err = decimal.NewFromString(aux.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount format: %w", err)
	}

	r.Date, err = ParseDateWithFormats(aux.Date)
	if err != nil {
		return fmt.Errorf("invalid date format: %w", err)
	}

	return nil
}

// MatchStatus is the classification outcome for one transaction.
type MatchStatus string

const (
	// StatusMatched indicates a receipt was committed to the transaction with
	// confidence at or above the configured threshold.
	StatusMatched MatchStatus = "matched"

	// StatusManualReview indicates a best candidate exists but its confidence
	// is below the threshold; the candidate receipt stays available for later
	// transactions.
	StatusManualReview MatchStatus = "manual_review"

	// StatusUnmatched indicates no candidate receipt was available.
	StatusUnmatched MatchStatus = "unmatched"

	// StatusApproved and StatusRejected are produced by the downstream human
	// review workflow, never by the matching engine.
	StatusApproved MatchStatus = "approved"
	StatusRejected MatchStatus = "rejected"
)

// String returns the string representation of MatchStatus.
func (s MatchStatus) String() string {
	return string(s)
}

// IsValid checks if the status is one of the known values.
func (s MatchStatus) IsValid() bool {
	switch s {
	case StatusMatched, StatusManualReview, StatusUnmatched, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// IsEngineStatus reports whether the status can be produced by a matching run.
func (s MatchStatus) IsEngineStatus() bool {
	switch s {
	case StatusMatched, StatusManualReview, StatusUnmatched:
		return true
	default:
		return false
	}
}

// FactorWeights defines the relative importance of each scoring factor.
type FactorWeights struct {
	Amount   float64 `json:"amount"`
	Date     float64 `json:"date"`
	Merchant float64 `json:"merchant"`
}

// Sum returns the total of all factor weights.
func (w FactorWeights) Sum() float64 {
	return w.Amount + w.Date + w.Merchant
}

// MatchingFactors records the individual factor scores, the weights in force
// and the algorithm version, so a stored result stays reproducible after the
// scoring configuration evolves.
type MatchingFactors struct {
	AmountMatch      float64       `json:"amount_match"`
	DateProximity    float64       `json:"date_proximity"`
	MerchantMatch    float64       `json:"merchant_match"`
	Weights          FactorWeights `json:"weights"`
	AlgorithmVersion string        `json:"algorithm_version"`
}

// MatchResult is the classification outcome for one transaction, including
// score provenance for audit.
type MatchResult struct {
	TransactionID      uuid.UUID        `json:"transaction_id"`
	ReceiptID          *uuid.UUID       `json:"receipt_id,omitempty"`
	ConfidenceScore    float64          `json:"confidence_score"`
	MatchStatus        MatchStatus      `json:"match_status"`
	MatchReason        string           `json:"match_reason"`
	AmountDifference   *decimal.Decimal `json:"amount_difference,omitempty"`
	DateDifferenceDays *int             `json:"date_difference_days,omitempty"`
	MerchantSimilarity *float64         `json:"merchant_similarity,omitempty"`
	MatchingFactors    MatchingFactors  `json:"matching_factors"`
}

// MarshalJSON implements custom JSON marshaling for MatchResult.
func (mr *MatchResult) MarshalJSON() ([]byte, error) {
	type Alias MatchResult
	aux := &struct {
		AmountDifference *string `json:"amount_difference,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(mr),
	}

	if mr.AmountDifference != nil {
		s := mr.AmountDifference.String()
		aux.AmountDifference = &s
	}

	return json.Marshal(aux)
}

// String returns a compact representation of the MatchResult.
func (mr *MatchResult) String() string {
	receiptID := "none"
	if mr.ReceiptID != nil {
		receiptID = mr.ReceiptID.String()
	}
	return fmt.Sprintf("MatchResult{Transaction: %s, Receipt: %s, Status: %s, Confidence: %.4f}",
		mr.TransactionID, receiptID, mr.MatchStatus, mr.ConfidenceScore)
}

// Record types used in per-record warnings.
const (
	RecordTypeTransaction = "transaction"
	RecordTypeReceipt     = "receipt"
)

// RecordWarning reports a malformed input record that was degraded rather
// than aborting the run.
type RecordWarning struct {
	RecordType string `json:"record_type"`
	RecordID   string `json:"record_id"`
	Message    string `json:"message"`
}

// String returns a human-readable form of the warning.
func (w RecordWarning) String() string {
	return fmt.Sprintf("%s %s: %s", w.RecordType, w.RecordID, w.Message)
}

// Utility functions for type conversion and validation

// ParseDecimalFromString parses a decimal amount, tolerating currency symbols
// and thousand separators.
func ParseDecimalFromString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	return d, nil
}

// ParseDateWithFormats attempts to parse a date from string using common
// formats found in statement exports and receipt scans.
func ParseDateWithFormats(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	formats := []string{
		"2006-01-02",
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"01/02/2006",
		"2006/01/02",
		"Jan 2, 2006",
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date '%s': %w", s, lastErr)
}

// DateOnly truncates a time to its calendar date at midnight UTC. All date
// proximity comparisons operate on calendar dates so time-of-day never shifts
// a day boundary.
func DateOnly(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the absolute number of whole calendar days between two
// times.
func DaysBetween(a, b time.Time) int {
	diff := DateOnly(a).Sub(DateOnly(b))
	if diff < 0 {
		diff = -diff
	}
	return int(diff.Hours() / 24)
}

// CreateTransactionFromCSV creates a Transaction from CSV field values.
func CreateTransactionFromCSV(idStr, amountStr, dateStr, merchantName string) (*Transaction, error) {
	id, err := uuid.Parse(strings.TrimSpace(idStr))
	if err != nil {
		return nil, fmt.Errorf("invalid transaction ID in CSV: %w", err)
	}

	amount, err := ParseDecimalFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("invalid amount in CSV: %w", err)
	}

	date, err := ParseDateWithFormats(dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction date in CSV: %w", err)
	}

	transaction := NewTransaction(id, amount, date, strings.TrimSpace(merchantName))

	if err := transaction.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transaction data: %w", err)
	}

	return transaction, nil
}

// CreateReceiptFromCSV creates a Receipt from CSV field values.
func CreateReceiptFromCSV(idStr, amountStr, dateStr, vendorName string) (*Receipt, error) {
	id, err := uuid.Parse(strings.TrimSpace(idStr))
	if err != nil {
		return nil, fmt.Errorf("invalid receipt ID in CSV: %w", err)
	}

	amount, err := ParseDecimalFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("invalid amount in CSV: %w", err)
	}

	date, err := ParseDateWithFormats(dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid receipt date in CSV: %w", err)
	}

	receipt := NewReceipt(id, amount, date, strings.TrimSpace(vendorName))

	if err := receipt.Validate(); err != nil {
		return nil, fmt.Errorf("invalid receipt data: %w", err)
	}

	return receipt, nil
}

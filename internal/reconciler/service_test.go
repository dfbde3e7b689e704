package reconciler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"expense-reconciliation-service/internal/matcher"
	"expense-reconciliation-service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestService(t *testing.T, config *Config) *MatchingService {
	t.Helper()

	service, err := NewMatchingService(nil, nil, nil, config)
	require.NoError(t, err)
	return service
}

func TestNewMatchingService(t *testing.T) {
	service := newTestService(t, nil)
	assert.NotNil(t, service.Engine())

	badMatch := matcher.DefaultMatchConfig()
	badMatch.ConfidenceThreshold = 2.0
	_, err := NewMatchingService(nil, nil, badMatch, nil)
	assert.Error(t, err)

	start := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	_, err = NewMatchingService(nil, nil, nil, &Config{StartDate: &start, EndDate: &end})
	assert.Error(t, err)
}

func TestSessionRequestValidate(t *testing.T) {
	err := (&SessionRequest{}).Validate()
	assert.Error(t, err)

	err = (&SessionRequest{TransactionsFile: "tx.csv"}).Validate()
	assert.Error(t, err)

	err = (&SessionRequest{TransactionsFile: "tx.csv", ReceiptsFile: "rc.csv"}).Validate()
	assert.NoError(t, err)
}

func TestRunSession(t *testing.T) {
	dir := t.TempDir()

	txID1 := uuid.New().String()
	txID2 := uuid.New().String()
	rcID := uuid.New().String()

	transactionsFile := writeFile(t, dir, "transactions.csv",
		"id,amount,date,merchant_name\n"+
			txID1+",42.50,2024-03-15,Starbucks\n"+
			txID2+",300.00,2024-03-20,Delta Airlines\n")

	receiptsFile := writeFile(t, dir, "receipts.csv",
		"id,amount,date,vendor_name\n"+
			rcID+",42.50,2024-03-15,Starbucks\n")

	service := newTestService(t, nil)

	result, err := service.RunSession(context.Background(), &SessionRequest{
		TransactionsFile: transactionsFile,
		ReceiptsFile:     receiptsFile,
	})
	require.NoError(t, err)

	assert.Len(t, result.Results, 2)
	assert.False(t, result.Incomplete)

	assert.Equal(t, 2, result.Summary.TotalTransactions)
	assert.Equal(t, 1, result.Summary.TotalReceipts)
	assert.Equal(t, 1, result.Summary.Matched)
	assert.Equal(t, 0, result.Summary.ManualReview)
	assert.Equal(t, 1, result.Summary.Unmatched)

	assert.Equal(t, "42.5", result.Summary.TotalAmountMatched.String())
	assert.Equal(t, "300", result.Summary.TotalAmountUnmatched.String())

	first := result.Results[0]
	assert.Equal(t, models.StatusMatched, first.MatchStatus)
	require.NotNil(t, first.ReceiptID)
	assert.Equal(t, rcID, first.ReceiptID.String())

	second := result.Results[1]
	assert.Equal(t, models.StatusUnmatched, second.MatchStatus)
	assert.Nil(t, second.ReceiptID)

	assert.NotNil(t, result.ProcessingStats)
	assert.Positive(t, result.Summary.ProcessingDuration)
}

func TestRunSessionSurfacesParseWarnings(t *testing.T) {
	dir := t.TempDir()

	txID := uuid.New().String()

	transactionsFile := writeFile(t, dir, "transactions.csv",
		"id,amount,date,merchant_name\n"+
			"not-a-uuid,10.00,2024-03-15,Broken\n"+
			txID+",25.00,2024-03-16,Cafe\n")

	receiptsFile := writeFile(t, dir, "receipts.csv",
		"id,amount,date,vendor_name\n"+
			uuid.New().String()+",25.00,2024-03-16,Cafe\n")

	service := newTestService(t, nil)

	result, err := service.RunSession(context.Background(), &SessionRequest{
		TransactionsFile: transactionsFile,
		ReceiptsFile:     receiptsFile,
	})
	require.NoError(t, err)

	require.Len(t, result.Warnings, 1)
	assert.Equal(t, models.RecordTypeTransaction, result.Warnings[0].RecordType)
	assert.Equal(t, 1, result.ProcessingStats.TransactionParseErrors)

	// The unparseable row never becomes a result
	assert.Len(t, result.Results, 1)
	assert.Equal(t, models.StatusMatched, result.Results[0].MatchStatus)
}

func TestRunSessionDateRangeFilter(t *testing.T) {
	dir := t.TempDir()

	inRangeID := uuid.New().String()
	outOfRangeID := uuid.New().String()

	transactionsFile := writeFile(t, dir, "transactions.csv",
		"id,amount,date,merchant_name\n"+
			inRangeID+",10.00,2024-03-15,Cafe\n"+
			outOfRangeID+",20.00,2024-05-01,Hotel\n")

	receiptsFile := writeFile(t, dir, "receipts.csv",
		"id,amount,date,vendor_name\n"+
			uuid.New().String()+",10.00,2024-03-15,Cafe\n"+
			uuid.New().String()+",20.00,2024-05-01,Hotel\n")

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	service := newTestService(t, &Config{StartDate: &start, EndDate: &end})

	result, err := service.RunSession(context.Background(), &SessionRequest{
		TransactionsFile: transactionsFile,
		ReceiptsFile:     receiptsFile,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Summary.TotalTransactions)
	assert.Equal(t, 1, result.Summary.TotalReceipts)
	require.Len(t, result.Results, 1)
	assert.Equal(t, inRangeID, result.Results[0].TransactionID.String())
	assert.NotNil(t, result.Summary.DateRange)
}

func TestRunSessionMissingFile(t *testing.T) {
	dir := t.TempDir()

	receiptsFile := writeFile(t, dir, "receipts.csv",
		"id,amount,date,vendor_name\n")

	service := newTestService(t, nil)

	_, err := service.RunSession(context.Background(), &SessionRequest{
		TransactionsFile: filepath.Join(dir, "missing.csv"),
		ReceiptsFile:     receiptsFile,
	})
	assert.Error(t, err)
}

func TestRunSessionInvalidRequest(t *testing.T) {
	service := newTestService(t, nil)

	_, err := service.RunSession(context.Background(), &SessionRequest{})
	assert.Error(t, err)
}

func TestRunSessionIsRepeatable(t *testing.T) {
	dir := t.TempDir()

	transactionsFile := writeFile(t, dir, "transactions.csv",
		"id,amount,date,merchant_name\n"+
			uuid.New().String()+",42.50,2024-03-15,Starbucks\n")

	receiptsFile := writeFile(t, dir, "receipts.csv",
		"id,amount,date,vendor_name\n"+
			uuid.New().String()+",42.50,2024-03-15,Starbucks\n")

	service := newTestService(t, nil)
	request := &SessionRequest{
		TransactionsFile: transactionsFile,
		ReceiptsFile:     receiptsFile,
	}

	first, err := service.RunSession(context.Background(), request)
	require.NoError(t, err)

	second, err := service.RunSession(context.Background(), request)
	require.NoError(t, err)

	// Each run is a full replacement over the same inputs
	assert.Equal(t, first.Summary.Matched, second.Summary.Matched)
	assert.Equal(t, first.Summary.Unmatched, second.Summary.Unmatched)
	require.Len(t, second.Results, len(first.Results))
	assert.Equal(t, first.Results[0].ConfidenceScore, second.Results[0].ConfidenceScore)
}

package parsers

import (
	"context"
	"io"
	"strings"

	"expense-reconciliation-service/internal/models"
	"expense-reconciliation-service/pkg/errors"
	"expense-reconciliation-service/pkg/logger"
)

// TransactionParser parses transaction export CSV files.
type TransactionParser struct {
	*BaseParser
	config *TransactionParserConfig
	logger logger.Logger
}

// NewTransactionParser creates a parser for the given column layout.
// A nil config selects the default layout.
func NewTransactionParser(config *TransactionParserConfig) (*TransactionParser, error) {
	if config == nil {
		config = DefaultTransactionParserConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &TransactionParser{
		BaseParser: NewBaseParser(config.ParseConfig),
		config:     config,
		logger:     logger.GetGlobalLogger().WithComponent("transaction_parser"),
	}, nil
}

// ParseTransactions parses all transactions from the given file.
func (tp *TransactionParser) ParseTransactions(filePath string) ([]*models.Transaction, *ParseStats, error) {
	return tp.ParseTransactionsWithContext(context.Background(), filePath)
}

// ParseTransactionsWithContext parses all transactions from the given file,
// honoring cancellation between records. Rows that fail to parse are
// recorded in the returned stats and skipped.
func (tp *TransactionParser) ParseTransactionsWithContext(ctx context.Context, filePath string) ([]*models.Transaction, *ParseStats, error) {
	log := tp.logger.WithField("file_path", filePath)
	log.Info("Starting transaction parsing")

	file, reader, err := tp.OpenFile(filePath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	parseCtx := NewParseContext(ctx)
	stats := NewParseStats()

	if err := tp.ReadHeaders(reader, parseCtx, nil); err != nil {
		return nil, stats, err
	}

	idCol := tp.config.GetColumnName(tp.config.IDColumn, parseCtx)
	amountCol := tp.config.GetColumnName(tp.config.AmountColumn, parseCtx)
	dateCol := tp.config.GetColumnName(tp.config.DateColumn, parseCtx)
	merchantCol := tp.config.GetColumnName(tp.config.MerchantColumn, parseCtx)

	if err := requireColumns(parseCtx, idCol, amountCol, dateCol, merchantCol); err != nil {
		log.WithError(err).Error("Transaction file is missing required columns")
		return nil, stats, err
	}

	var transactions []*models.Transaction

	for {
		if parseCtx.IsCancelled() {
			log.Warn("Transaction parsing cancelled")
			return transactions, stats, ctx.Err()
		}

		record, err := tp.ReadRecord(reader, parseCtx)
		if err != nil {
			if err == io.EOF {
				break
			}

			stats.AddError(&ParseError{
				Line:    parseCtx.LineNumber,
				Field:   "record",
				Message: "malformed CSV record",
				Err:     err,
			})
			continue
		}

		stats.RecordsParsed++

		transaction, parseErr := tp.parseRecord(record, parseCtx, idCol, amountCol, dateCol, merchantCol)
		if parseErr != nil {
			stats.AddError(parseErr)
			continue
		}

		stats.RecordsValid++
		transactions = append(transactions, transaction)
	}

	stats.TotalLines = parseCtx.LineNumber

	log.WithFields(logger.Fields{
		"records_parsed": stats.RecordsParsed,
		"records_valid":  stats.RecordsValid,
		"error_count":    stats.ErrorCount,
	}).Info("Transaction parsing completed")

	if stats.HasErrors() {
		log.WithField("sample_errors", stats.GetSampleErrors(5)).Warn("Some transaction records failed to parse")
	}

	return transactions, stats, nil
}

func (tp *TransactionParser) parseRecord(record []string, parseCtx *ParseContext, idCol, amountCol, dateCol, merchantCol string) (*models.Transaction, *ParseError) {
	idStr, err := tp.GetFieldValue(record, parseCtx, idCol)
	if err != nil {
		return nil, fieldError(parseCtx.LineNumber, idCol, "", err)
	}

	amountStr, err := tp.GetFieldValue(record, parseCtx, amountCol)
	if err != nil {
		return nil, fieldError(parseCtx.LineNumber, amountCol, "", err)
	}

	dateStr, err := tp.GetFieldValue(record, parseCtx, dateCol)
	if err != nil {
		return nil, fieldError(parseCtx.LineNumber, dateCol, "", err)
	}

	merchantName, err := tp.GetFieldValue(record, parseCtx, merchantCol)
	if err != nil {
		return nil, fieldError(parseCtx.LineNumber, merchantCol, "", err)
	}

	transaction, err := models.CreateTransactionFromCSV(idStr, amountStr, dateStr, merchantName)
	if err != nil {
		return nil, &ParseError{
			Line:    parseCtx.LineNumber,
			Field:   "transaction",
			Value:   idStr,
			Message: "invalid transaction record",
			Err:     err,
		}
	}

	return transaction, nil
}

func fieldError(line int, field, value string, err error) *ParseError {
	return &ParseError{
		Line:    line,
		Field:   field,
		Value:   value,
		Message: "failed to read field",
		Err:     err,
	}
}

// requireColumns verifies that each resolved column exists in the headers.
func requireColumns(parseCtx *ParseContext, columns ...string) error {
	var missing []string
	for _, col := range columns {
		if parseCtx.GetColumnIndex(col) == -1 {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return errors.ParseError(
			errors.CodeMissingColumn,
			"",
			parseCtx.LineNumber,
			strings.Join(missing, ", "),
			"",
			nil,
		)
	}
	return nil
}

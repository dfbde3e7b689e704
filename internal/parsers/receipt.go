package parsers

import (
	"context"
	"io"

	"expense-reconciliation-service/internal/models"
	"expense-reconciliation-service/pkg/logger"
)

// ReceiptParser parses receipt export CSV files.
type ReceiptParser struct {
	*BaseParser
	config *ReceiptParserConfig
	logger logger.Logger
}

// NewReceiptParser creates a parser for the given column layout.
// A nil config selects the default layout.
func NewReceiptParser(config *ReceiptParserConfig) (*ReceiptParser, error) {
	if config == nil {
		config = DefaultReceiptParserConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &ReceiptParser{
		BaseParser: NewBaseParser(config.ParseConfig),
		config:     config,
		logger:     logger.GetGlobalLogger().WithComponent("receipt_parser"),
	}, nil
}

// ParseReceipts parses all receipts from the given file.
func (rp *ReceiptParser) ParseReceipts(filePath string) ([]*models.Receipt, *ParseStats, error) {
	return rp.ParseReceiptsWithContext(context.Background(), filePath)
}

// ParseReceiptsWithContext parses all receipts from the given file,
// honoring cancellation between records. Rows that fail to parse are
// recorded in the returned stats and skipped.
func (rp *ReceiptParser) ParseReceiptsWithContext(ctx context.Context, filePath string) ([]*models.Receipt, *ParseStats, error) {
	log := rp.logger.WithField("file_path", filePath)
	log.Info("Starting receipt parsing")

	file, reader, err := rp.OpenFile(filePath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	parseCtx := NewParseContext(ctx)
	stats := NewParseStats()

	if err := rp.ReadHeaders(reader, parseCtx, nil); err != nil {
		return nil, stats, err
	}

	idCol := rp.config.GetColumnName(rp.config.IDColumn, parseCtx)
	amountCol := rp.config.GetColumnName(rp.config.AmountColumn, parseCtx)
	dateCol := rp.config.GetColumnName(rp.config.DateColumn, parseCtx)
	vendorCol := rp.config.GetColumnName(rp.config.VendorColumn, parseCtx)

	if err := requireColumns(parseCtx, idCol, amountCol, dateCol, vendorCol); err != nil {
		log.WithError(err).Error("Receipt file is missing required columns")
		return nil, stats, err
	}

	var receipts []*models.Receipt

	for {
		if parseCtx.IsCancelled() {
			log.Warn("Receipt parsing cancelled")
			return receipts, stats, ctx.Err()
		}

		record, err := rp.ReadRecord(reader, parseCtx)
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

		receipt, parseErr := rp.parseRecord(record, parseCtx, idCol, amountCol, dateCol, vendorCol)
		if parseErr != nil {
			stats.AddError(parseErr)
			continue
		}

		stats.RecordsValid++
		receipts = append(receipts, receipt)
	}

	stats.TotalLines = parseCtx.LineNumber

	log.WithFields(logger.Fields{
		"records_parsed": stats.RecordsParsed,
		"records_valid":  stats.RecordsValid,
		"error_count":    stats.ErrorCount,
	}).Info("Receipt parsing completed")

	if stats.HasErrors() {
		log.WithField("sample_errors", stats.GetSampleErrors(5)).Warn("Some receipt records failed to parse")
	}

	return receipts, stats, nil
}

func (rp *ReceiptParser) parseRecord(record []string, parseCtx *ParseContext, idCol, amountCol, dateCol, vendorCol string) (*models.Receipt, *ParseError) {
	idStr, err := rp.GetFieldValue(record, parseCtx, idCol)
	if err != nil {
		return nil, fieldError(parseCtx.LineNumber, idCol, "", err)
	}

	amountStr, err := rp.GetFieldValue(record, parseCtx, amountCol)
	if err != nil {
		return nil, fieldError(parseCtx.LineNumber, amountCol, "", err)
	}

	dateStr, err := rp.GetFieldValue(record, parseCtx, dateCol)
	if err != nil {
		return nil, fieldError(parseCtx.LineNumber, dateCol, "", err)
	}

	vendorName, err := rp.GetFieldValue(record, parseCtx, vendorCol)
	if err != nil {
		return nil, fieldError(parseCtx.LineNumber, vendorCol, "", err)
	}

	receipt, err := models.CreateReceiptFromCSV(idStr, amountStr, dateStr, vendorName)
	if err != nil {
		return nil, &ParseError{
			Line:    parseCtx.LineNumber,
			Field:   "receipt",
			Value:   idStr,
			Message: "invalid receipt record",
			Err:     err,
		}
	}

	return receipt, nil
}

// Package config builds component configurations from CLI options.
package config

import (
	"time"

	"expense-reconciliation-service/internal/matcher"
	"expense-reconciliation-service/internal/models"
	"expense-reconciliation-service/internal/parsers"
	"expense-reconciliation-service/internal/reconciler"
	"expense-reconciliation-service/internal/reporter"
	"expense-reconciliation-service/pkg/errors"

	"github.com/shopspring/decimal"
)

// MatchOptions carries the matching flags from the CLI.
type MatchOptions struct {
	AmountTolerance     string
	DateWindowDays      int
	ConfidenceThreshold float64
	AmountWeight        float64
	DateWeight          float64
	MerchantWeight      float64
}

// CreateTransactionParserConfig returns the parser configuration for
// transaction exports.
func CreateTransactionParserConfig() *parsers.TransactionParserConfig {
	return parsers.DefaultTransactionParserConfig()
}

// CreateReceiptParserConfig returns the parser configuration for
// receipt exports.
func CreateReceiptParserConfig() *parsers.ReceiptParserConfig {
	return parsers.DefaultReceiptParserConfig()
}

// CreateMatchConfig builds an engine configuration from CLI options.
func CreateMatchConfig(options MatchOptions) (*matcher.MatchConfig, error) {
	tolerance, err := decimal.NewFromString(options.AmountTolerance)
	if err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"amount-tolerance",
			options.AmountTolerance,
			err,
		)
	}

	config := matcher.DefaultMatchConfig()
	config.AmountTolerance = tolerance
	config.DateWindowDays = options.DateWindowDays
	config.ConfidenceThreshold = options.ConfidenceThreshold
	config.Weights = models.FactorWeights{
		Amount:   options.AmountWeight,
		Date:     options.DateWeight,
		Merchant: options.MerchantWeight,
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// CreateServiceConfig builds the orchestration configuration. Dates are
// already validated as YYYY-MM-DD by the CLI layer.
func CreateServiceConfig(startDate, endDate string, showProgress bool) *reconciler.Config {
	config := reconciler.DefaultConfig()
	config.ProgressReporting = showProgress

	if startDate != "" {
		if t, err := time.Parse("2006-01-02", startDate); err == nil {
			config.StartDate = &t
		}
	}
	if endDate != "" {
		if t, err := time.Parse("2006-01-02", endDate); err == nil {
			config.EndDate = &t
		}
	}

	return config
}

// CreateReportConfig creates a report configuration for the output format.
func CreateReportConfig(format string) *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()

	switch format {
	case "json":
		config.Format = reporter.FormatJSON
	case "csv":
		config.Format = reporter.FormatCSV
	default:
		config.Format = reporter.FormatConsole
	}

	return config
}

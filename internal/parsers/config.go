package parsers

import (
	"fmt"
	"strings"

	"expense-reconciliation-service/pkg/errors"
)

// TransactionParserConfig describes the column layout of a transaction export.
type TransactionParserConfig struct {
	IDColumn       string `json:"id_column"`
	AmountColumn   string `json:"amount_column"`
	DateColumn     string `json:"date_column"`
	MerchantColumn string `json:"merchant_column"`

	// ColumnAliases maps canonical column names to alternative header
	// names, for exports produced by older extraction versions.
	ColumnAliases map[string][]string `json:"column_aliases,omitempty"`

	ParseConfig *ParseConfig `json:"parse_config,omitempty"`
}

// ReceiptParserConfig describes the column layout of a receipt export.
type ReceiptParserConfig struct {
	IDColumn     string `json:"id_column"`
	AmountColumn string `json:"amount_column"`
	DateColumn   string `json:"date_column"`
	VendorColumn string `json:"vendor_column"`

	ColumnAliases map[string][]string `json:"column_aliases,omitempty"`

	ParseConfig *ParseConfig `json:"parse_config,omitempty"`
}

// DefaultTransactionParserConfig returns the layout of a standard
// transaction export.
func DefaultTransactionParserConfig() *TransactionParserConfig {
	return &TransactionParserConfig{
		IDColumn:       "id",
		AmountColumn:   "amount",
		DateColumn:     "date",
		MerchantColumn: "merchant_name",
		ColumnAliases: map[string][]string{
			"id":            {"transaction_id", "txn_id"},
			"amount":        {"transaction_amount", "value"},
			"date":          {"transaction_date", "posted_date"},
			"merchant_name": {"merchant", "payee", "description"},
		},
		ParseConfig: DefaultParseConfig(),
	}
}

// DefaultReceiptParserConfig returns the layout of a standard receipt export.
func DefaultReceiptParserConfig() *ReceiptParserConfig {
	return &ReceiptParserConfig{
		IDColumn:     "id",
		AmountColumn: "amount",
		DateColumn:   "date",
		VendorColumn: "vendor_name",
		ColumnAliases: map[string][]string{
			"id":          {"receipt_id"},
			"amount":      {"total", "receipt_total", "total_amount"},
			"date":        {"receipt_date", "purchase_date"},
			"vendor_name": {"vendor", "merchant", "store"},
		},
		ParseConfig: DefaultParseConfig(),
	}
}

// Validate checks that the configuration is usable.
func (c *TransactionParserConfig) Validate() error {
	required := map[string]string{
		"id_column":       c.IDColumn,
		"amount_column":   c.AmountColumn,
		"date_column":     c.DateColumn,
		"merchant_column": c.MerchantColumn,
	}
	return validateColumns(required)
}

// Validate checks that the configuration is usable.
func (c *ReceiptParserConfig) Validate() error {
	required := map[string]string{
		"id_column":     c.IDColumn,
		"amount_column": c.AmountColumn,
		"date_column":   c.DateColumn,
		"vendor_column": c.VendorColumn,
	}
	return validateColumns(required)
}

func validateColumns(required map[string]string) error {
	var missing []string
	for setting, value := range required {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, setting)
		}
	}
	if len(missing) > 0 {
		return errors.ConfigurationError(
			errors.CodeMissingConfig,
			strings.Join(missing, ", "),
			"",
			fmt.Errorf("parser column names must not be empty"),
		)
	}
	return nil
}

// GetColumnName resolves a canonical column to the header name actually
// present in the file, consulting aliases when the canonical name is absent.
func (c *TransactionParserConfig) GetColumnName(canonical string, parseCtx *ParseContext) string {
	return resolveColumn(canonical, c.ColumnAliases, parseCtx)
}

// GetColumnName resolves a canonical column to the header name actually
// present in the file, consulting aliases when the canonical name is absent.
func (c *ReceiptParserConfig) GetColumnName(canonical string, parseCtx *ParseContext) string {
	return resolveColumn(canonical, c.ColumnAliases, parseCtx)
}

func resolveColumn(canonical string, aliases map[string][]string, parseCtx *ParseContext) string {
	if parseCtx.GetColumnIndex(canonical) != -1 {
		return canonical
	}

	for _, alias := range aliases[canonical] {
		if parseCtx.GetColumnIndex(alias) != -1 {
			return alias
		}
	}

	return canonical
}

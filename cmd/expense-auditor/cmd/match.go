package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"expense-reconciliation-service/cmd/expense-auditor/config"
	"expense-reconciliation-service/internal/reconciler"
	"expense-reconciliation-service/internal/reporter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the match command
var (
	transactionsFile string
	receiptsFile     string
	outputFormat     string
	outputFile       string
	startDate        string
	endDate          string

	amountTolerance     string
	dateWindow          int
	confidenceThreshold float64
	amountWeight        float64
	dateWeight          float64
	merchantWeight      float64

	showProgress bool
)

// matchCmd represents the match command
var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match card transactions against uploaded receipts",
	Long: `Match pairs each transaction from the card export with the best
available receipt, scoring amount, date proximity, and merchant name
similarity. Receipts are consumed one-to-one: once a receipt is matched
it cannot be claimed by a later transaction.

This command requires:
- A transactions file (CSV format)
- A receipts file (CSV format)

Examples:
  # Basic matching
  expense-auditor match --transactions-file transactions.csv --receipts-file receipts.csv

  # Date-filtered run with JSON output
  expense-auditor match -t tx.csv -r receipts.csv \
    --start-date 2024-01-01 --end-date 2024-01-31 \
    --output-format json --output-file report.json

  # Custom tolerances and weights
  expense-auditor match -t tx.csv -r receipts.csv \
    --amount-tolerance 0.05 --date-window 5 --confidence-threshold 0.8 \
    --amount-weight 0.6 --date-weight 0.2 --merchant-weight 0.2`,

	PreRunE: validateMatchFlags,
	RunE:    runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	// Required flags
	matchCmd.Flags().StringVarP(&transactionsFile, "transactions-file", "t", "", "path to transaction CSV file (required)")
	matchCmd.Flags().StringVarP(&receiptsFile, "receipts-file", "r", "", "path to receipt CSV file (required)")

	// Output flags
	matchCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	matchCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")

	// Date filtering flags
	matchCmd.Flags().StringVar(&startDate, "start-date", "", "filter start date (YYYY-MM-DD)")
	matchCmd.Flags().StringVar(&endDate, "end-date", "", "filter end date (YYYY-MM-DD)")

	// Matching configuration flags
	matchCmd.Flags().StringVarP(&amountTolerance, "amount-tolerance", "a", "0.01", "absolute amount tolerance for a full amount score")
	matchCmd.Flags().IntVarP(&dateWindow, "date-window", "d", 3, "date proximity window in days")
	matchCmd.Flags().Float64VarP(&confidenceThreshold, "confidence-threshold", "c", 0.7, "minimum confidence for an automatic match")
	matchCmd.Flags().Float64Var(&amountWeight, "amount-weight", 0.5, "weight of the amount score")
	matchCmd.Flags().Float64Var(&dateWeight, "date-weight", 0.3, "weight of the date proximity score")
	matchCmd.Flags().Float64Var(&merchantWeight, "merchant-weight", 0.2, "weight of the merchant similarity score")

	// UI flags
	matchCmd.Flags().BoolVar(&showProgress, "progress", false, "log progress while matching")

	matchCmd.MarkFlagRequired("transactions-file")
	matchCmd.MarkFlagRequired("receipts-file")

	viper.BindPFlag("transactions-file", matchCmd.Flags().Lookup("transactions-file"))
	viper.BindPFlag("receipts-file", matchCmd.Flags().Lookup("receipts-file"))
	viper.BindPFlag("output-format", matchCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", matchCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("start-date", matchCmd.Flags().Lookup("start-date"))
	viper.BindPFlag("end-date", matchCmd.Flags().Lookup("end-date"))
	viper.BindPFlag("amount-tolerance", matchCmd.Flags().Lookup("amount-tolerance"))
	viper.BindPFlag("date-window", matchCmd.Flags().Lookup("date-window"))
	viper.BindPFlag("confidence-threshold", matchCmd.Flags().Lookup("confidence-threshold"))
	viper.BindPFlag("amount-weight", matchCmd.Flags().Lookup("amount-weight"))
	viper.BindPFlag("date-weight", matchCmd.Flags().Lookup("date-weight"))
	viper.BindPFlag("merchant-weight", matchCmd.Flags().Lookup("merchant-weight"))
	viper.BindPFlag("progress", matchCmd.Flags().Lookup("progress"))
}

func validateMatchFlags(cmd *cobra.Command, args []string) error {
	// Viper values allow overrides from config file and environment
	transactionsFile = viper.GetString("transactions-file")
	receiptsFile = viper.GetString("receipts-file")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	startDate = viper.GetString("start-date")
	endDate = viper.GetString("end-date")
	amountTolerance = viper.GetString("amount-tolerance")
	dateWindow = viper.GetInt("date-window")
	confidenceThreshold = viper.GetFloat64("confidence-threshold")
	amountWeight = viper.GetFloat64("amount-weight")
	dateWeight = viper.GetFloat64("date-weight")
	merchantWeight = viper.GetFloat64("merchant-weight")
	showProgress = viper.GetBool("progress")

	if transactionsFile == "" {
		return fmt.Errorf("transactions-file is required")
	}
	if receiptsFile == "" {
		return fmt.Errorf("receipts-file is required")
	}

	if err := validateFileExists(transactionsFile, "transactions file"); err != nil {
		return err
	}
	if err := validateFileExists(receiptsFile, "receipts file"); err != nil {
		return err
	}

	validFormats := map[string]bool{"console": true, "json": true, "csv": true}
	if !validFormats[outputFormat] {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", outputFormat)
	}

	if startDate != "" {
		if _, err := time.Parse("2006-01-02", startDate); err != nil {
			return fmt.Errorf("invalid start date format. Use YYYY-MM-DD: %w", err)
		}
	}
	if endDate != "" {
		if _, err := time.Parse("2006-01-02", endDate); err != nil {
			return fmt.Errorf("invalid end date format. Use YYYY-MM-DD: %w", err)
		}
	}
	if startDate != "" && endDate != "" {
		start, _ := time.Parse("2006-01-02", startDate)
		end, _ := time.Parse("2006-01-02", endDate)
		if start.After(end) {
			return fmt.Errorf("start date cannot be after end date")
		}
	}

	if dateWindow < 0 {
		return fmt.Errorf("date window cannot be negative")
	}
	if confidenceThreshold < 0 || confidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be between 0.0 and 1.0")
	}

	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%s is not readable: %w", description, err)
	}
	file.Close()

	return nil
}

func runMatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Starting expense audit...\n")
		fmt.Fprintf(os.Stderr, "Transactions file: %s\n", transactionsFile)
		fmt.Fprintf(os.Stderr, "Receipts file: %s\n", receiptsFile)
		fmt.Fprintf(os.Stderr, "Output format: %s\n", outputFormat)
		if outputFile != "" {
			fmt.Fprintf(os.Stderr, "Output file: %s\n", outputFile)
		}
	}

	matchConfig, err := config.CreateMatchConfig(config.MatchOptions{
		AmountTolerance:     amountTolerance,
		DateWindowDays:      dateWindow,
		ConfidenceThreshold: confidenceThreshold,
		AmountWeight:        amountWeight,
		DateWeight:          dateWeight,
		MerchantWeight:      merchantWeight,
	})
	if err != nil {
		return err
	}

	serviceConfig := config.CreateServiceConfig(startDate, endDate, showProgress)

	service, err := reconciler.NewMatchingService(
		config.CreateTransactionParserConfig(),
		config.CreateReceiptParserConfig(),
		matchConfig,
		serviceConfig,
	)
	if err != nil {
		return fmt.Errorf("failed to create matching service: %w", err)
	}

	request := &reconciler.SessionRequest{
		TransactionsFile: transactionsFile,
		ReceiptsFile:     receiptsFile,
	}

	result, err := service.RunSession(ctx, request)
	if err != nil {
		return fmt.Errorf("matching failed: %w", err)
	}

	reportGenerator, err := reporter.NewReportGenerator(config.CreateReportConfig(outputFormat))
	if err != nil {
		return fmt.Errorf("failed to create report generator: %w", err)
	}

	var output *os.File
	if outputFile != "" {
		output, err = os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer output.Close()
	} else {
		output = os.Stdout
	}

	if err := reportGenerator.GenerateReport(result, output); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "\nAudit completed.\n")
		fmt.Fprintf(os.Stderr, "Processed %d transactions and %d receipts.\n",
			result.Summary.TotalTransactions, result.Summary.TotalReceipts)
		fmt.Fprintf(os.Stderr, "Matched %d, manual review %d, unmatched %d.\n",
			result.Summary.Matched, result.Summary.ManualReview, result.Summary.Unmatched)
		if result.Incomplete {
			fmt.Fprintf(os.Stderr, "Run was cancelled before completion; results are partial.\n")
		}
		fmt.Fprintf(os.Stderr, "Processing time: %v\n", result.Summary.ProcessingDuration)
	}

	return nil
}

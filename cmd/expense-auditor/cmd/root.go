package cmd

import (
	"fmt"
	"os"

	"expense-reconciliation-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "expense-auditor",
	Short: "Expense audit matching tool",
	Long: `Expense-auditor pairs corporate card transactions with uploaded receipts.
It scores every transaction/receipt combination on amount, date proximity,
and merchant name similarity, then classifies each transaction as matched,
needing manual review, or unmatched.

Examples:
  expense-auditor match --transactions-file transactions.csv --receipts-file receipts.csv
  expense-auditor match -t tx.csv -r receipts.csv --output-format json --output-file report.json
  expense-auditor version`,
	Version: getVersionString(),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)

		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(1)
		}

		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}

	viper.SetEnvPrefix("EXPENSE_AUDITOR")
	viper.AutomaticEnv()

	logLevel := logger.WarnLevel
	if viper.GetBool("verbose") {
		logLevel = logger.DebugLevel
	}
	if log, err := logger.NewLogger(&logger.Config{Level: logLevel, Format: logger.TextFormat}); err == nil {
		logger.SetGlobalLogger(log)
	}
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}

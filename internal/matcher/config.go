// Package matcher implements the transaction-to-receipt reconciliation
// matching engine.
//
// Given one session's extracted transactions and receipts, the engine decides
// which receipt (if any) corresponds to each transaction, assigns a
// confidence score and classifies the outcome. The algorithm combines:
//   - Multi-factor weighted scoring (amount, date proximity, merchant name)
//   - A greedy one-to-one assignment policy over the receipt pool
//   - Levenshtein-based string similarity for merchant names
//   - Threshold-based classification with a full factor breakdown per result
//
// Example usage:
//
//	config := matcher.DefaultMatchConfig()
//	config.DateWindowDays = 5
//
//	engine, err := matcher.NewMatchingEngine(config)
//	if err != nil {
//		return err
//	}
//
//	run, err := engine.Match(ctx, transactions, receipts)
package matcher

import (
	"fmt"
	"math"

	"expense-reconciliation-service/internal/models"
	"expense-reconciliation-service/pkg/errors"

	"github.com/shopspring/decimal"
)

// weightSumTolerance absorbs float formatting noise when checking that the
// three factor weights sum to 1.0.
const weightSumTolerance = 1e-6

// MatchConfig holds the scoring and classification parameters for one
// matching engine. It is validated once at engine construction and never
// mutated mid-run; use Clone when deriving a modified configuration.
type MatchConfig struct {
	// AmountTolerance is the absolute amount difference (in currency units)
	// still treated as a near-exact match.
	AmountTolerance decimal.Decimal `json:"amount_tolerance"`

	// DateWindowDays is the number of days a receipt date may drift from the
	// transaction date and still decay linearly rather than sharply.
	DateWindowDays int `json:"date_window_days"`

	// ConfidenceThreshold is the minimum weighted confidence for a committed
	// match; candidates below it are routed to manual review.
	ConfidenceThreshold float64 `json:"confidence_threshold"`

	// Weights are the relative importance of the amount, date and merchant
	// factor scores. They must sum to 1.0.
	Weights models.FactorWeights `json:"weights"`

	// AlgorithmVersion is embedded in every result's factor breakdown so
	// stored results stay interpretable after scoring parameters change.
	AlgorithmVersion string `json:"algorithm_version"`
}

// DefaultMatchConfig returns a configuration with the standard production
// parameters: one-cent amount tolerance, a three-day date window and a 0.7
// confidence threshold.
func DefaultMatchConfig() *MatchConfig {
	return &MatchConfig{
		AmountTolerance:     decimal.NewFromFloat(0.01),
		DateWindowDays:      3,
		ConfidenceThreshold: 0.7,
		Weights: models.FactorWeights{
			Amount:   0.5,
			Date:     0.3,
			Merchant: 0.2,
		},
		AlgorithmVersion: "1.0",
	}
}

// StrictMatchConfig returns a configuration for strict matching: exact
// amounts only, a one-day window and a high confidence bar.
func StrictMatchConfig() *MatchConfig {
	return &MatchConfig{
		AmountTolerance:     decimal.Zero,
		DateWindowDays:      1,
		ConfidenceThreshold: 0.9,
		Weights: models.FactorWeights{
			Amount:   0.6,
			Date:     0.3,
			Merchant: 0.1,
		},
		AlgorithmVersion: "1.0",
	}
}

// RelaxedMatchConfig returns a configuration for exploratory matching with
// loose tolerances.
func RelaxedMatchConfig() *MatchConfig {
	return &MatchConfig{
		AmountTolerance:     decimal.NewFromFloat(0.05),
		DateWindowDays:      7,
		ConfidenceThreshold: 0.5,
		Weights: models.FactorWeights{
			Amount:   0.4,
			Date:     0.3,
			Merchant: 0.3,
		},
		AlgorithmVersion: "1.0",
	}
}

// Validate checks the configuration, returning a configuration error on the
// first violation. A failed validation is fatal: the engine must not be
// constructed from an invalid configuration.
func (mc *MatchConfig) Validate() error {
	if mc.AmountTolerance.IsNegative() {
		return errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"amount_tolerance",
			mc.AmountTolerance.String(),
			fmt.Errorf("amount tolerance cannot be negative"),
		)
	}

	if mc.DateWindowDays < 0 {
		return errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"date_window_days",
			mc.DateWindowDays,
			fmt.Errorf("date window cannot be negative"),
		)
	}

	if mc.ConfidenceThreshold < 0.0 || mc.ConfidenceThreshold > 1.0 {
		return errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"confidence_threshold",
			mc.ConfidenceThreshold,
			fmt.Errorf("confidence threshold must be between 0.0 and 1.0"),
		)
	}

	if err := mc.validateWeights(); err != nil {
		return err
	}

	if mc.AlgorithmVersion == "" {
		return errors.ConfigurationError(
			errors.CodeMissingConfig,
			"algorithm_version",
			mc.AlgorithmVersion,
			nil,
		)
	}

	return nil
}

func (mc *MatchConfig) validateWeights() error {
	w := mc.Weights

	for name, value := range map[string]float64{
		"amount":   w.Amount,
		"date":     w.Date,
		"merchant": w.Merchant,
	} {
		if value < 0.0 || value > 1.0 {
			return errors.ConfigurationError(
				errors.CodeInvalidWeights,
				"weights."+name,
				value,
				fmt.Errorf("weight must be between 0.0 and 1.0"),
			)
		}
	}

	if total := w.Sum(); math.Abs(total-1.0) > weightSumTolerance {
		return errors.ConfigurationError(
			errors.CodeInvalidWeights,
			"weights",
			total,
			fmt.Errorf("weights must sum to 1.0, got %f", total),
		)
	}

	return nil
}

// Clone creates a deep copy of the configuration.
func (mc *MatchConfig) Clone() *MatchConfig {
	if mc == nil {
		return nil
	}

	return &MatchConfig{
		AmountTolerance:     mc.AmountTolerance,
		DateWindowDays:      mc.DateWindowDays,
		ConfidenceThreshold: mc.ConfidenceThreshold,
		Weights:             mc.Weights,
		AlgorithmVersion:    mc.AlgorithmVersion,
	}
}

// String returns a human-readable description of the configuration.
func (mc *MatchConfig) String() string {
	return fmt.Sprintf("MatchConfig{AmountTolerance: %s, DateWindow: %d days, Threshold: %.2f, Weights: %.2f/%.2f/%.2f, Version: %s}",
		mc.AmountTolerance.String(), mc.DateWindowDays, mc.ConfidenceThreshold,
		mc.Weights.Amount, mc.Weights.Date, mc.Weights.Merchant, mc.AlgorithmVersion)
}

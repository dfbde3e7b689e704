package matcher

import (
	"math"
	"strings"
	"time"

	"expense-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

// AmountScore scores the similarity of two monetary amounts in [0,1].
// Differences are computed with exact decimal arithmetic so a zero
// difference is always scored 1.0 regardless of magnitude.
//
//   - diff == 0: 1.0
//   - 0 < diff <= tolerance: linear decay to 0.9 at the tolerance boundary
//   - diff > tolerance: exponential decay by relative difference
func AmountScore(transactionAmount, receiptAmount, tolerance decimal.Decimal) float64 {
	diff := transactionAmount.Sub(receiptAmount).Abs()

	if diff.IsZero() {
		return 1.0
	}

	if tolerance.IsPositive() && diff.LessThanOrEqual(tolerance) {
		ratio := diff.Div(tolerance).InexactFloat64()
		return 1.0 - ratio*0.1
	}

	avg := transactionAmount.Add(receiptAmount).Div(decimal.NewFromInt(2))
	if avg.IsZero() {
		return 0.0
	}

	percentDiff := diff.Div(avg).Abs().InexactFloat64()
	return math.Max(0.0, 1.0/(1.0+percentDiff*10))
}

// DateProximityScore scores how close two dates are in [0,1]. Both times are
// truncated to calendar dates before comparison.
//
//   - same day: 1.0
//   - within the window: linear decay to 0.7 at the window boundary
//   - beyond the window: decay of the 0.7 boundary value
func DateProximityScore(transactionDate, receiptDate time.Time, windowDays int) float64 {
	dayDiff := models.DaysBetween(transactionDate, receiptDate)

	if dayDiff == 0 {
		return 1.0
	}

	if windowDays > 0 && dayDiff <= windowDays {
		return 1.0 - (float64(dayDiff)/float64(windowDays))*0.3
	}

	return math.Max(0.0, 0.7/(1.0+float64(dayDiff-windowDays)*0.5))
}

// MerchantSimilarityScore scores the similarity of a transaction merchant
// name and a receipt vendor name in [0,1]. Names are compared after trimming
// whitespace and lowercasing.
//
//   - exact match: 1.0
//   - one name contains the other: 0.9
//   - otherwise: normalized Levenshtein similarity, floored at 0
func MerchantSimilarityScore(merchantName, vendorName string) float64 {
	m := strings.ToLower(strings.TrimSpace(merchantName))
	v := strings.ToLower(strings.TrimSpace(vendorName))

	if m == "" && v == "" {
		return 0.0
	}

	if m == v {
		return 1.0
	}

	if m != "" && v != "" && (strings.Contains(m, v) || strings.Contains(v, m)) {
		return 0.9
	}

	maxLen := len(m)
	if len(v) > maxLen {
		maxLen = len(v)
	}

	distance := levenshteinDistance(m, v)
	return math.Max(0.0, 1.0-float64(distance)/float64(maxLen))
}

// WeightedConfidence combines the three factor scores into a single
// confidence value using the configured weights. Weights are validated at
// engine construction to sum to 1.0, so the result stays in [0,1].
func WeightedConfidence(amountScore, dateScore, merchantScore float64, weights models.FactorWeights) float64 {
	return amountScore*weights.Amount + dateScore*weights.Date + merchantScore*weights.Merchant
}

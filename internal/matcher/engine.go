package matcher

import (
	"context"
	"fmt"
	"math"

	"expense-reconciliation-service/internal/models"
	"expense-reconciliation-service/pkg/errors"
	"expense-reconciliation-service/pkg/logger"

	"github.com/google/uuid"
)

// MatchingEngine reconciles one session's transactions against its receipts.
//
// The assignment is greedy and order-dependent: transactions are processed in
// their given input order, and earlier transactions have first claim on the
// receipt pool. The engine never backtracks or re-assigns a receipt already
// consumed by an earlier transaction, even if a later transaction would have
// scored higher against it. This trades global optimality for determinism
// and a simple, auditable decision per transaction.
//
// The engine holds no mutable state between runs; Match may be called
// concurrently from separate goroutines for independent sessions.
type MatchingEngine struct {
	config   *MatchConfig
	logger   logger.Logger
	progress *logger.ProgressTracker
}

// RunResult is the outcome of one matching run: exactly one result per input
// transaction, in transaction input order, plus per-record input warnings.
// Incomplete is set when the run was cancelled mid-way; the results computed
// before cancellation are still returned and the caller decides whether to
// keep them.
type RunResult struct {
	Results    []*models.MatchResult  `json:"results"`
	Warnings   []models.RecordWarning `json:"warnings,omitempty"`
	Incomplete bool                   `json:"incomplete"`
}

// candidate holds the best-available receipt found for a transaction along
// with its factor breakdown.
type candidate struct {
	receipt       *models.Receipt
	confidence    float64
	amountScore   float64
	dateScore     float64
	merchantScore float64
}

// NewMatchingEngine creates a matching engine with the given configuration.
// A nil configuration selects DefaultMatchConfig. The configuration is
// validated here, before any run; an invalid configuration is a fatal
// configuration error.
func NewMatchingEngine(config *MatchConfig) (*MatchingEngine, error) {
	if config == nil {
		config = DefaultMatchConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &MatchingEngine{
		config: config.Clone(),
		logger: logger.GetGlobalLogger().WithComponent("matching_engine"),
	}, nil
}

// SetProgressTracker attaches an optional progress tracker that is updated
// after each processed transaction.
func (me *MatchingEngine) SetProgressTracker(tracker *logger.ProgressTracker) {
	me.progress = tracker
}

// Config returns a copy of the engine configuration.
func (me *MatchingEngine) Config() *MatchConfig {
	return me.config.Clone()
}

// Match reconciles transactions against receipts and returns one MatchResult
// per transaction, preserving transaction input order.
//
// Receipts are consumed only by committed matches: a manual-review candidate
// stays in the pool and may independently be the best candidate of a later
// transaction. Malformed records never abort the run; they are degraded and
// surfaced as warnings. The context is checked between transactions; on
// cancellation the partial results are returned with Incomplete set.
func (me *MatchingEngine) Match(ctx context.Context, transactions []*models.Transaction, receipts []*models.Receipt) (*RunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	run := &RunResult{
		Results: make([]*models.MatchResult, 0, len(transactions)),
	}

	pool := me.buildReceiptPool(receipts, run)
	consumed := make(map[uuid.UUID]bool, len(pool))

	me.logger.WithFields(logger.Fields{
		"transactions": len(transactions),
		"receipts":     len(pool),
	}).Info("Starting matching run")

	matched := 0
	for i, tx := range transactions {
		select {
		case <-ctx.Done():
			run.Incomplete = true
			me.logger.WithFields(logger.Fields{
				"processed": i,
				"total":     len(transactions),
			}).Warn("Matching run cancelled; returning partial results")
			return run, nil
		default:
		}

		result := me.matchTransaction(tx, pool, consumed, run)
		run.Results = append(run.Results, result)

		if result.MatchStatus == models.StatusMatched {
			matched++
		}

		if me.progress != nil {
			me.progress.Update(int64(i+1), int64(matched))
		}
	}

	if me.progress != nil {
		me.progress.Complete()
	}

	me.logger.WithFields(logger.Fields{
		"results":  len(run.Results),
		"matched":  matched,
		"warnings": len(run.Warnings),
	}).Info("Matching run completed")

	return run, nil
}

// buildReceiptPool validates receipts and returns the usable pool in input
// order. Malformed receipts are dropped with a warning rather than failing
// the run.
func (me *MatchingEngine) buildReceiptPool(receipts []*models.Receipt, run *RunResult) []*models.Receipt {
	pool := make([]*models.Receipt, 0, len(receipts))

	for _, receipt := range receipts {
		if receipt == nil {
			continue
		}

		if err := receipt.Validate(); err != nil {
			inputErr := errors.InputError(errors.CodeInvalidData, "receipt", receipt.ID, err)
			me.logger.WithError(inputErr).WithField("receipt_id", receipt.ID).Warn("Dropping malformed receipt from pool")

			run.Warnings = append(run.Warnings, models.RecordWarning{
				RecordType: models.RecordTypeReceipt,
				RecordID:   receipt.ID.String(),
				Message:    fmt.Sprintf("receipt excluded from matching: %v", err),
			})
			continue
		}

		pool = append(pool, receipt)
	}

	return pool
}

// matchTransaction finds the best available receipt for one transaction,
// classifies the outcome and assembles the result record.
func (me *MatchingEngine) matchTransaction(tx *models.Transaction, pool []*models.Receipt, consumed map[uuid.UUID]bool, run *RunResult) *models.MatchResult {
	if err := tx.Validate(); err != nil {
		run.Warnings = append(run.Warnings, models.RecordWarning{
			RecordType: models.RecordTypeTransaction,
			RecordID:   tx.ID.String(),
			Message:    fmt.Sprintf("transaction failed validation: %v", err),
		})

		me.logger.WithError(err).WithField("transaction_id", tx.ID).Warn("Scoring malformed transaction as unmatched")
		return me.assembleResult(tx, nil, "transaction record is malformed and was not scored")
	}

	best := me.findBestCandidate(tx, pool, consumed)

	switch {
	case best == nil:
		return me.assembleResult(tx, nil, "no receipt candidates available")

	case best.confidence >= me.config.ConfidenceThreshold:
		// Only a committed match consumes the receipt.
		consumed[best.receipt.ID] = true
		reason := fmt.Sprintf("matched receipt %s with %.2f%% confidence", best.receipt.ID, best.confidence*100)
		return me.assembleResult(tx, best, reason)

	default:
		// The candidate is kept for manual review but stays available to
		// later transactions.
		reason := fmt.Sprintf("best candidate %s scored %.2f%%, below the %.2f%% threshold; flagged for manual review",
			best.receipt.ID, best.confidence*100, me.config.ConfidenceThreshold*100)
		return me.assembleResult(tx, best, reason)
	}
}

// findBestCandidate scans every unconsumed receipt and keeps the candidate
// with strictly greater confidence than the current best. Ties keep the
// earliest-scanned receipt, so results are deterministic in receipt input
// order. The best candidate is returned even when it falls below the
// classification threshold, so weak matches can be routed to manual review
// instead of being discarded.
func (me *MatchingEngine) findBestCandidate(tx *models.Transaction, pool []*models.Receipt, consumed map[uuid.UUID]bool) *candidate {
	var best *candidate

	for _, receipt := range pool {
		if consumed[receipt.ID] {
			continue
		}

		amountScore := AmountScore(tx.Amount, receipt.Amount, me.config.AmountTolerance)
		dateScore := DateProximityScore(tx.Date, receipt.Date, me.config.DateWindowDays)
		merchantScore := MerchantSimilarityScore(tx.MerchantName, receipt.VendorName)
		confidence := WeightedConfidence(amountScore, dateScore, merchantScore, me.config.Weights)

		if best == nil || confidence > best.confidence {
			best = &candidate{
				receipt:       receipt,
				confidence:    confidence,
				amountScore:   amountScore,
				dateScore:     dateScore,
				merchantScore: merchantScore,
			}
		}
	}

	return best
}

// assembleResult packages the classified outcome plus the factor breakdown
// for audit. The confidence score is rounded to four decimal places; amount
// and date differences are populated only when a candidate receipt exists.
func (me *MatchingEngine) assembleResult(tx *models.Transaction, best *candidate, reason string) *models.MatchResult {
	result := &models.MatchResult{
		TransactionID: tx.ID,
		MatchStatus:   models.StatusUnmatched,
		MatchReason:   reason,
		MatchingFactors: models.MatchingFactors{
			Weights:          me.config.Weights,
			AlgorithmVersion: me.config.AlgorithmVersion,
		},
	}

	if best == nil {
		return result
	}

	receiptID := best.receipt.ID
	amountDiff := tx.Amount.Sub(best.receipt.Amount).Abs()
	dateDiff := models.DaysBetween(tx.Date, best.receipt.Date)
	merchantSim := roundScore(best.merchantScore)

	result.ReceiptID = &receiptID
	result.ConfidenceScore = roundScore(best.confidence)
	result.AmountDifference = &amountDiff
	result.DateDifferenceDays = &dateDiff
	result.MerchantSimilarity = &merchantSim
	result.MatchingFactors.AmountMatch = roundScore(best.amountScore)
	result.MatchingFactors.DateProximity = roundScore(best.dateScore)
	result.MatchingFactors.MerchantMatch = roundScore(best.merchantScore)

	if best.confidence >= me.config.ConfidenceThreshold {
		result.MatchStatus = models.StatusMatched
	} else {
		result.MatchStatus = models.StatusManualReview
	}

	return result
}

// roundScore rounds a score to four decimal places.
func roundScore(score float64) float64 {
	return math.Round(score*10000) / 10000
}

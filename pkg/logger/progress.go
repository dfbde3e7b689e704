package logger

import (
	"sync"
	"time"
)

// MatchProgress is a point-in-time snapshot of a matching run.
type MatchProgress struct {
	Operation        string        `json:"operation"`
	Processed        int64         `json:"processed"`
	Total            int64         `json:"total"`
	MatchesFound     int64         `json:"matches_found"`
	PercentComplete  float64       `json:"percent_complete"`
	Elapsed          time.Duration `json:"elapsed"`
	RecordsPerSecond float64       `json:"records_per_second"`
}

// ProgressTracker tracks progress of a matching run and periodically logs it.
// It is safe for concurrent use, although the engine itself updates it from a
// single goroutine.
type ProgressTracker struct {
	logger      Logger
	operation   string
	total       int64
	processed   int64
	matches     int64
	startTime   time.Time
	lastLogTime time.Time
	logInterval time.Duration
	mutex       sync.Mutex
}

// NewProgressTracker creates a tracker for an operation over total records.
func NewProgressTracker(log Logger, operation string, total int64) *ProgressTracker {
	if log == nil {
		log = GetGlobalLogger()
	}

	tracker := &ProgressTracker{
		logger:      log.WithComponent("progress"),
		operation:   operation,
		total:       total,
		startTime:   time.Now(),
		lastLogTime: time.Now(),
		logInterval: 5 * time.Second,
	}

	tracker.logger.WithFields(Fields{
		"operation": operation,
		"total":     total,
	}).Info("Starting operation")

	return tracker
}

// Update records that processed records have been handled and matches found
// so far, logging at most once per interval.
func (p *ProgressTracker) Update(processed, matches int64) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.processed = processed
	p.matches = matches

	if time.Since(p.lastLogTime) >= p.logInterval {
		p.logProgress()
		p.lastLogTime = time.Now()
	}
}

// Snapshot returns the current progress state.
func (p *ProgressTracker) Snapshot() MatchProgress {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.snapshotLocked()
}

// Complete logs the final progress state.
func (p *ProgressTracker) Complete() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	snapshot := p.snapshotLocked()
	p.logger.WithFields(Fields{
		"operation":          snapshot.Operation,
		"processed":          snapshot.Processed,
		"matches_found":      snapshot.MatchesFound,
		"elapsed":            snapshot.Elapsed,
		"records_per_second": snapshot.RecordsPerSecond,
	}).Info("Operation completed")
}

func (p *ProgressTracker) snapshotLocked() MatchProgress {
	elapsed := time.Since(p.startTime)

	var percent, rate float64
	if p.total > 0 {
		percent = float64(p.processed) / float64(p.total) * 100
	}
	if seconds := elapsed.Seconds(); seconds > 0 {
		rate = float64(p.processed) / seconds
	}

	return MatchProgress{
		Operation:        p.operation,
		Processed:        p.processed,
		Total:            p.total,
		MatchesFound:     p.matches,
		PercentComplete:  percent,
		Elapsed:          elapsed,
		RecordsPerSecond: rate,
	}
}

func (p *ProgressTracker) logProgress() {
	snapshot := p.snapshotLocked()
	p.logger.WithFields(Fields{
		"operation":        snapshot.Operation,
		"processed":        snapshot.Processed,
		"total":            snapshot.Total,
		"percent_complete": snapshot.PercentComplete,
		"matches_found":    snapshot.MatchesFound,
	}).Info("Operation in progress")
}

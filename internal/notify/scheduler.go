package notify

import (
	"context"
	"log/slog"
	"time"
)

// Retrier re-submits a claimed retry-eligible entry through the send path.
// Satisfied by *Service.
type Retrier interface {
	Retry(ctx context.Context, entry *DeliveryLog) SendResult
}

// Locker provides a best-effort single-writer guarantee for the retry
// sweep, so two scheduler instances against the same log store do not
// double-send the same entries. Implementations live in infra/lock/.
type Locker interface {
	// TryLock attempts to acquire the sweep lock. ok is false when another
	// holder has it; release must be called when ok is true.
	TryLock(ctx context.Context, ttl time.Duration) (release func(), ok bool, err error)
}

// SchedulerConfig holds configuration for the retry scheduler.
type SchedulerConfig struct {
	// Interval is how often Run sweeps for due retries.
	Interval time.Duration

	// BatchSize is the maximum number of entries re-submitted per sweep.
	BatchSize int

	// LockTTL bounds how long a sweep may hold the lock before it is
	// considered abandoned.
	LockTTL time.Duration
}

// RetryScheduler periodically scans the delivery log for retry-eligible
// failed entries and resubmits them through the notification service. The
// store is the single source of truth for eligibility; the scheduler's only
// direct write is the claim compare-and-swap, every other state transition
// happens inside the service's send path.
type RetryScheduler struct {
	store   DeliveryStore
	retrier Retrier
	locker  Locker
	config  SchedulerConfig
}

// NewRetryScheduler creates a new retry scheduler. locker may be nil for
// single-instance deployments; the store-level claim still prevents
// double-sends within one tick.
func NewRetryScheduler(store DeliveryStore, retrier Retrier, locker Locker, cfg SchedulerConfig) *RetryScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * cfg.Interval
	}
	return &RetryScheduler{
		store:   store,
		retrier: retrier,
		locker:  locker,
		config:  cfg,
	}
}

// ProcessRetries performs one sweep: list due entries, claim each, and
// re-submit it through the send path. It never returns an error; one bad
// entry cannot abort the sweep, and a lost lock simply yields no results.
func (rs *RetryScheduler) ProcessRetries(ctx context.Context) []SendResult {
	if rs.locker != nil {
		release, ok, err := rs.locker.TryLock(ctx, rs.config.LockTTL)
		if err != nil {
			slog.Error("retry sweep: lock acquisition failed", "error", err)
			return nil
		}
		if !ok {
			slog.Debug("retry sweep: another instance holds the lock")
			return nil
		}
		defer release()
	}

	entries, err := rs.store.ListRetryEligible(ctx, time.Now().UTC(), rs.config.BatchSize)
	if err != nil {
		slog.Error("retry sweep: failed to list eligible entries", "error", err)
		return nil
	}

	if len(entries) == 0 {
		return nil
	}

	slog.Info("retry sweep: entries due", "count", len(entries))

	results := make([]SendResult, 0, len(entries))
	for _, entry := range entries {
		claimed, err := rs.store.Claim(ctx, entry.ID, entry.RetryCount)
		if err != nil {
			slog.Error("retry sweep: claim failed", "log_id", entry.ID, "error", err)
			continue
		}
		if !claimed {
			// Another sweep got there first, or the lineage moved on.
			continue
		}

		res := rs.retrier.Retry(ctx, entry)
		results = append(results, res)

		slog.Info("retry sweep: entry re-submitted",
			"log_id", entry.ID,
			"retry_count", entry.RetryCount,
			"success", res.Success,
		)
	}

	return results
}

// Run starts the sweep loop. It blocks until the context is cancelled.
// Should be called in a goroutine; on-demand triggers (the periodic queue
// task) call ProcessRetries directly instead.
func (rs *RetryScheduler) Run(ctx context.Context) {
	slog.Info("retry scheduler started",
		"interval", rs.config.Interval,
		"batch_size", rs.config.BatchSize,
	)

	ticker := time.NewTicker(rs.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retry scheduler stopped")
			return
		case <-ticker.C:
			rs.ProcessRetries(ctx)
		}
	}
}

package notify

import (
	"context"
	"time"
)

// DeliveryStore defines the contract for persisting delivery log entries.
// It is the single source of truth for retry eligibility; all retry-state
// mutation flows through the notification service's partial updates.
// Implementations live in infra/store/.
type DeliveryStore interface {
	// Create inserts a new delivery log entry and fills ID and CreatedAt.
	Create(ctx context.Context, entry *DeliveryLog) error

	// GetByID retrieves a delivery log entry by its ID.
	GetByID(ctx context.Context, id string) (*DeliveryLog, error)

	// MarkPending resets an existing entry to pending at the start of a
	// retry attempt.
	MarkPending(ctx context.Context, id string) error

	// MarkSent records a successful delivery: status sent, the provider
	// message ID, the sent timestamp, and no error or retry state.
	MarkSent(ctx context.Context, id, messageID string, sentAt time.Time) error

	// MarkFailed records a failed attempt. retryAfter is nil for terminal
	// failures (permanent error or retries exhausted).
	MarkFailed(ctx context.Context, id, errMsg string, retryCount int, retryAfter *time.Time) error

	// ListRetryEligible returns failed entries whose retryAfter has passed
	// and whose retryCount is under the ceiling, oldest first.
	ListRetryEligible(ctx context.Context, now time.Time, limit int) ([]*DeliveryLog, error)

	// Claim atomically takes ownership of a retry-eligible entry by clearing
	// its retryAfter, guarded by a compare-and-swap on retryCount. Returns
	// false when another scheduler instance claimed the entry first.
	Claim(ctx context.Context, id string, retryCount int) (bool, error)

	// List retrieves delivery log entries with pagination and filtering,
	// newest first. Used by operator tooling.
	List(ctx context.Context, filter ListFilter) ([]*DeliveryLog, int, error)
}

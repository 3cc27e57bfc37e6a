package notify

import "time"

// RetryPolicy holds the backoff constants shared by the notification
// service and the retry scheduler. There is no per-message override.
type RetryPolicy struct {
	// MaxRetries is the ceiling on RetryCount. Once a lineage reaches it,
	// the entry is terminally failed.
	MaxRetries int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns the production constants: three attempts,
// delays of 1m, 2m, 4m... capped at one hour.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Minute,
		MaxDelay:   time.Hour,
	}
}

// Delay computes min(BaseDelay * 2^retryCount, MaxDelay) for the attempt
// count prior to the failure being recorded.
func (p RetryPolicy) Delay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	d := p.BaseDelay
	for i := 0; i < retryCount; i++ {
		d *= 2
		if d >= p.MaxDelay || d <= 0 {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// RetryAfter computes the earliest time the next attempt becomes eligible.
func (p RetryPolicy) RetryAfter(now time.Time, retryCount int) time.Time {
	return now.Add(p.Delay(retryCount))
}

// Exhausted reports whether a lineage with the given attempt count is over
// the retry ceiling.
func (p RetryPolicy) Exhausted(retryCount int) bool {
	return retryCount >= p.MaxRetries
}

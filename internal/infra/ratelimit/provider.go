package ratelimit

import (
	"context"
	"fmt"

	"groomly/internal/notify"

	"golang.org/x/time/rate"
)

var _ notify.Provider = (*LimitedProvider)(nil)

// LimitedProvider wraps a channel provider with a token bucket so the core
// never exceeds the vendor's request quota. Quota handling lives on the
// provider side of the contract; the notification service stays unaware
// of it.
type LimitedProvider struct {
	inner   notify.Provider
	limiter *rate.Limiter
}

// NewLimitedProvider wraps a provider with an rps/burst token bucket.
func NewLimitedProvider(inner notify.Provider, rps float64, burst int) *LimitedProvider {
	return &LimitedProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Send waits for a token and delegates to the wrapped provider. A context
// expiry while waiting surfaces as a timeout, which the classifier treats
// as transient.
func (p *LimitedProvider) Send(ctx context.Context, msg *notify.Message) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("provider rate limiter: %w", err)
	}
	return p.inner.Send(ctx, msg)
}

// Channel returns the wrapped provider's channel.
func (p *LimitedProvider) Channel() notify.Channel {
	return p.inner.Channel()
}

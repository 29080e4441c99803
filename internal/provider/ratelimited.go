package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/kursadbilgin/newsletter-engine/internal/domain"
	"github.com/kursadbilgin/newsletter-engine/internal/ratelimit"
)

// ErrRateLimiterUnavailable marks a send that never reached the gateway because
// the shared limiter failed.
var ErrRateLimiterUnavailable = errors.New("send rate limiter unavailable")

// RateLimited waits on a shared limiter before every send of the wrapped provider.
type RateLimited struct {
	next    Provider
	limiter ratelimit.RateLimiter
	scope   string
}

func NewRateLimited(next Provider, limiter ratelimit.RateLimiter, scope string) *RateLimited {
	return &RateLimited{next: next, limiter: limiter, scope: scope}
}

func (p *RateLimited) Send(ctx context.Context, msg domain.MailMessage) (*ProviderResponse, error) {
	if err := p.limiter.Wait(ctx, p.scope); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrRateLimiterUnavailable, err)
	}
	return p.next.Send(ctx, msg)
}

// Close closes the wrapped provider when it holds a connection.
func (p *RateLimited) Close() error {
	if closer, ok := p.next.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

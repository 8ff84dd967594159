package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

type rateLimited struct {
	Provider
	limiter *rate.Limiter
}

// WithRateLimit wraps p so that at most perMinute completions start in any
// minute, one at a time. Complete blocks until a slot is free or ctx ends.
// perMinute <= 0 returns p unchanged.
func WithRateLimit(p Provider, perMinute int) Provider {
	if p == nil || perMinute <= 0 {
		return p
	}
	return &rateLimited{
		Provider: p,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

func (r *rateLimited) Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%s rate limit: %w", r.Name(), err)
	}
	return r.Provider.Complete(ctx, prompt, opts)
}

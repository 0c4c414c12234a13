package backend

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/parleyhq/parley/types"
)

// rateLimitedAdapter wraps an Adapter with a token-bucket limiter. Batch
// runners share one limiter per family so parallel runs collectively respect
// provider limits; single runs pass nil and pay nothing.
type rateLimitedAdapter struct {
	inner   Adapter
	limiter *rate.Limiter
}

// WithRateLimit decorates a with l. A nil limiter returns a unchanged.
func WithRateLimit(a Adapter, l *rate.Limiter) Adapter {
	if l == nil {
		return a
	}
	return &rateLimitedAdapter{inner: a, limiter: l}
}

func (r *rateLimitedAdapter) Name() string           { return r.inner.Name() }
func (r *rateLimitedAdapter) Descriptor() Descriptor { return r.inner.Descriptor() }
func (r *rateLimitedAdapter) CheckCredentials() error {
	return r.inner.CheckCredentials()
}

func (r *rateLimitedAdapter) Complete(ctx context.Context, req *Request) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", types.NewError(types.ErrBackendCallFailed, "rate limiter wait aborted").
			WithBackend(r.inner.Name()).
			WithCause(err)
	}
	return r.inner.Complete(ctx, req)
}

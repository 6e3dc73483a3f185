package llm

import (
	"context"

	"golang.org/x/time/rate"
)

var _ Provider = (*RateLimited)(nil)

// RateLimited throttles every chat and embedding call through one token
// bucket shared by all callers of the provider.
type RateLimited struct {
	next   Provider
	bucket *rate.Limiter
}

func NewRateLimited(next Provider, rps float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &RateLimited{next: next, bucket: rate.NewLimiter(limit, burst)}
}

func (r *RateLimited) Chat(ctx context.Context, req Request) (string, error) {
	if err := r.bucket.Wait(ctx); err != nil {
		return "", err
	}
	return r.next.Chat(ctx, req)
}

func (r *RateLimited) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.bucket.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.Embed(ctx, texts)
}

func (r *RateLimited) Close() error {
	return r.next.Close()
}

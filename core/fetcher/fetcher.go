package fetcher

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultDelay is the spacing between consecutive requests to one provider.
// Tens of milliseconds keeps a full pagination run well under the rate
// limits every supported platform enforces.
const DefaultDelay = 50 * time.Millisecond

// Sequential issues requests one at a time with a fixed delay between them.
// Every provider connector routes its paginated calls through one Sequential
// so a sync pass can never flood the remote API, regardless of how many
// pages or event IDs it has to walk.
type Sequential struct {
	mu      sync.Mutex
	limiter *rate.Limiter
}

// New creates a Sequential with the given inter-request delay.
// A non-positive delay falls back to DefaultDelay.
func New(delay time.Duration) *Sequential {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Sequential{
		limiter: rate.NewLimiter(rate.Every(delay), 1),
	}
}

// Do runs fn after waiting for the rate limiter. Calls are strictly
// serialized: a second caller blocks until the first fn returns. The delay
// applies unconditionally during pagination, not only on errors.
func (s *Sequential) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	return fn(ctx)
}

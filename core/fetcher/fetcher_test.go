package fetcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSequential_Serializes tests that two concurrent calls never overlap.
func TestSequential_Serializes(t *testing.T) {
	s := New(time.Millisecond)

	var mu sync.Mutex
	active := 0
	maxActive := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Do(context.Background(), func(ctx context.Context) error {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()

				time.Sleep(2 * time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive)
}

// TestSequential_DelayBetweenCalls tests that consecutive calls are spaced
// by at least the configured delay.
func TestSequential_DelayBetweenCalls(t *testing.T) {
	delay := 20 * time.Millisecond
	s := New(delay)

	var stamps []time.Time
	for i := 0; i < 3; i++ {
		err := s.Do(context.Background(), func(ctx context.Context) error {
			stamps = append(stamps, time.Now())
			return nil
		})
		require.NoError(t, err)
	}

	for i := 1; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1])
		assert.GreaterOrEqual(t, gap, delay-2*time.Millisecond, "gap between call %d and %d", i-1, i)
	}
}

// TestSequential_ContextCancellation tests that a cancelled context aborts
// the wait instead of running fn.
func TestSequential_ContextCancellation(t *testing.T) {
	s := New(time.Hour)

	// Consume the initial burst token.
	require.NoError(t, s.Do(context.Background(), func(ctx context.Context) error { return nil }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := s.Do(ctx, func(ctx context.Context) error {
		ran = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, ran)
}

// TestSequential_PropagatesError tests that fn's error comes back verbatim.
func TestSequential_PropagatesError(t *testing.T) {
	s := New(time.Millisecond)
	sentinel := errors.New("remote failed")

	err := s.Do(context.Background(), func(ctx context.Context) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
}

// TestNew_FallsBackToDefaultDelay tests the non-positive delay fallback.
func TestNew_FallsBackToDefaultDelay(t *testing.T) {
	s := New(0)
	require.NotNil(t, s.limiter)
	assert.Equal(t, float64(1)/DefaultDelay.Seconds(), float64(s.limiter.Limit()))
}

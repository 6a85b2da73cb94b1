package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ready reports whether a Wait on key returns without blocking. The limiter
// fails fast when the next token would arrive after the deadline.
func ready(rl *KeyedRateLimiter, key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	return rl.Wait(ctx, key) == nil
}

func TestKeyedRateLimiter_Burst(t *testing.T) {
	tests := []struct {
		name     string
		rps      float64
		burst    int
		calls    int
		wantPass int
	}{
		{name: "burst allows initial requests", rps: 1, burst: 3, calls: 3, wantPass: 3},
		{name: "exceeding burst blocks", rps: 1, burst: 2, calls: 5, wantPass: 2},
		{name: "zero burst is raised to one", rps: 1, burst: 0, calls: 3, wantPass: 1},
		{name: "non-positive rate disables limiting", rps: 0, burst: 1, calls: 10, wantPass: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := New(tt.rps, tt.burst)

			passed := 0
			for i := 0; i < tt.calls; i++ {
				if ready(rl, "gutendex.com") {
					passed++
				}
			}

			assert.Equal(t, tt.wantPass, passed)
		})
	}
}

func TestKeyedRateLimiter_Wait(t *testing.T) {
	rl := New(10, 1) // 10 rps, burst of 1

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	require.NoError(t, rl.Wait(ctx, "test"))
	assert.Less(t, time.Since(start), 50*time.Millisecond, "first Wait() should be immediate")

	// Second call should wait ~100ms (1/10 rps)
	start = time.Now()
	require.NoError(t, rl.Wait(ctx, "test"))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 80*time.Millisecond)
	assert.LessOrEqual(t, elapsed, 200*time.Millisecond)
}

func TestKeyedRateLimiter_WaitContextCancelled(t *testing.T) {
	rl := New(0.1, 1) // 1 request per 10 seconds

	// Exhaust the burst
	require.True(t, ready(rl, "test"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.Error(t, rl.Wait(ctx, "test"))
}

func TestKeyedRateLimiter_IndependentKeys(t *testing.T) {
	rl := New(1, 1)

	require.True(t, ready(rl, "key1"))
	assert.False(t, ready(rl, "key1"), "key1 should be exhausted")
	assert.True(t, ready(rl, "key2"), "key2 should be independent")
	assert.Equal(t, 2, rl.Len())
}

func TestKeyedRateLimiter_WaitURLSharesHostBucket(t *testing.T) {
	rl := New(0.1, 1)

	require.NoError(t, rl.WaitURL(context.Background(), "https://gutendex.com/books?search=frankenstein"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.Error(t, rl.WaitURL(ctx, "https://gutendex.com/books?search=dracula"), "same host shares a bucket")

	require.NoError(t, rl.WaitURL(context.Background(), "https://mirror.example.org/books"))
	assert.Equal(t, 2, rl.Len())
}

func TestHostKey(t *testing.T) {
	assert.Equal(t, "gutendex.com", HostKey("https://gutendex.com/books?search=x"))
	assert.Equal(t, "127.0.0.1:8080", HostKey("http://127.0.0.1:8080/books"))
	assert.Equal(t, "not a url", HostKey("not a url"))
}

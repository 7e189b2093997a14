package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/ragkit/ai/mock"
	"github.com/poiesic/ragkit/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		MaxConcurrent:     2,
		RequestsPerMinute: 5,
		Timeout:           time.Second,
	}
}

func TestNewGateway(t *testing.T) {
	t.Run("requires generator", func(t *testing.T) {
		_, err := NewGateway(nil, testConfig())
		assert.ErrorIs(t, err, ErrNilGenerator)
	})

	t.Run("validates config", func(t *testing.T) {
		gen := mock.NewMockGenerator()

		_, err := NewGateway(gen, Config{MaxConcurrent: 0, RequestsPerMinute: 5, Timeout: time.Second})
		assert.ErrorIs(t, err, ErrInvalidMaxConcurrent)

		_, err = NewGateway(gen, Config{MaxConcurrent: 1, RequestsPerMinute: 0, Timeout: time.Second})
		assert.ErrorIs(t, err, ErrInvalidRequestRate)

		_, err = NewGateway(gen, Config{MaxConcurrent: 1, RequestsPerMinute: 5, Timeout: 0})
		assert.ErrorIs(t, err, ErrInvalidTimeout)
	})
}

func TestGateway_Generate(t *testing.T) {
	gen := mock.NewMockGenerator()
	gen.GenerateFunc = func(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
		return "the answer", nil
	}

	g, err := NewGateway(gen, testConfig())
	require.NoError(t, err)

	answer, err := g.Generate(context.Background(), "a prompt", 0.2, 256)
	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)
	assert.Equal(t, 1, g.WindowLen())
}

func TestGateway_AcquireRelease(t *testing.T) {
	gen := mock.NewMockGenerator()
	cfg := testConfig()
	cfg.MaxConcurrent = 1
	g, err := NewGateway(gen, cfg)
	require.NoError(t, err)

	slot, err := g.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, slot)
	assert.Equal(t, 1, g.WindowLen())

	// The ceiling is exhausted until the slot is released.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = g.Acquire(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrTimeout)

	g.Release(slot)
	next, err := g.Acquire(context.Background())
	require.NoError(t, err)

	// Double release and nil release are harmless.
	g.Release(next)
	g.Release(next)
	g.Release(nil)
}

func TestGateway_SlotReleasedOnFailure(t *testing.T) {
	calls := 0
	gen := mock.NewMockGenerator()
	gen.GenerateFunc = func(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("boom")
		}
		return "recovered", nil
	}

	cfg := testConfig()
	cfg.MaxConcurrent = 1
	g, err := NewGateway(gen, cfg)
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "p", 0, 0)
	require.Error(t, err)

	// The failed call must have released its slot; with MaxConcurrent=1
	// this call would deadlock otherwise.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	answer, err := g.Generate(ctx, "p", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "recovered", answer)
}

func TestGateway_ConcurrencyCeiling(t *testing.T) {
	var inFlight, peak atomic.Int32
	gen := mock.NewMockGenerator()
	gen.GenerateFunc = func(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
		cur := inFlight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return "ok", nil
	}

	cfg := Config{MaxConcurrent: 2, RequestsPerMinute: 100, Timeout: time.Second}
	g, err := NewGateway(gen, cfg)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Generate(context.Background(), "p", 0, 0)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestGateway_SlidingWindowBlocks(t *testing.T) {
	gen := mock.NewMockGenerator()
	gen.GenerateFunc = func(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
		return "ok", nil
	}

	cfg := Config{MaxConcurrent: 10, RequestsPerMinute: 5, Timeout: time.Second}
	g, err := NewGateway(gen, cfg)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := g.Generate(context.Background(), fmt.Sprintf("p%d", i), 0, 0)
		require.NoError(t, err)
	}
	assert.Equal(t, 5, g.WindowLen())

	// Sixth request within the window blocks until its context deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = g.Generate(ctx, "p6", 0, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestGateway_WindowAdmitsAfterExpiry(t *testing.T) {
	gen := mock.NewMockGenerator()
	gen.GenerateFunc = func(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
		return "ok", nil
	}

	g, err := NewGateway(gen, Config{MaxConcurrent: 1, RequestsPerMinute: 5, Timeout: time.Second})
	require.NoError(t, err)

	// Pin the clock, fill the window, then jump past the window span.
	base := time.Now()
	g.now = func() time.Time { return base }
	for i := 0; i < 5; i++ {
		_, err := g.Generate(context.Background(), "p", 0, 0)
		require.NoError(t, err)
	}
	require.Equal(t, 5, g.WindowLen())

	g.now = func() time.Time { return base.Add(61 * time.Second) }
	assert.Equal(t, 0, g.WindowLen())

	_, err = g.Generate(context.Background(), "p", 0, 0)
	assert.NoError(t, err)
	assert.Equal(t, 1, g.WindowLen())
}

func TestGateway_PerCallTimeout(t *testing.T) {
	gen := mock.NewMockGenerator()
	gen.GenerateFunc = func(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	cfg := Config{MaxConcurrent: 1, RequestsPerMinute: 100, Timeout: 20 * time.Millisecond}
	g, err := NewGateway(gen, cfg)
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "slow", 0, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrTimeout)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unauthorized", errors.New("API returned 401 Unauthorized"), core.ErrAuthentication},
		{"forbidden", errors.New("status 403 forbidden"), core.ErrAuthentication},
		{"rate limited", errors.New("429 too many requests"), core.ErrTransient},
		{"server error", errors.New("upstream returned 503 service unavailable"), core.ErrTransient},
		{"connection refused", errors.New("dial tcp: connection refused"), core.ErrTransient},
		{"deadline", context.DeadlineExceeded, core.ErrTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err)
		})
	}

	t.Run("unknown errors pass through unclassified", func(t *testing.T) {
		raw := errors.New("something odd")
		got := classifyError(raw)
		assert.ErrorIs(t, got, raw)
		assert.NotErrorIs(t, got, core.ErrTransient)
		assert.NotErrorIs(t, got, core.ErrAuthentication)
	})
}

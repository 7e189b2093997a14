// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/poiesic/ragkit/ai"
	"github.com/poiesic/ragkit/core"
	"golang.org/x/sync/semaphore"
)

// windowSpan is the span of the sliding request-rate window.
const windowSpan = time.Minute

// Config holds construction-time settings for a Gateway.
type Config struct {
	// MaxConcurrent is the number of generation requests allowed in flight
	// at once.
	MaxConcurrent int

	// RequestsPerMinute caps request starts over any sliding 60-second
	// window.
	RequestsPerMinute int

	// Timeout bounds each individual generation call, measured from the
	// moment the request is dispatched, not from admission.
	Timeout time.Duration
}

// DefaultConfig returns conservative gateway defaults suitable for a local
// model server.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:     4,
		RequestsPerMinute: 60,
		Timeout:           2 * time.Minute,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.MaxConcurrent <= 0 {
		return ErrInvalidMaxConcurrent
	}
	if c.RequestsPerMinute <= 0 {
		return ErrInvalidRequestRate
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	return nil
}

// Gateway mediates all access to a language model generator. It enforces a
// concurrency ceiling and a sliding-window request rate, applies a per-call
// timeout, and classifies provider failures into the stable error categories
// in package core. Callers never talk to the generator directly.
type Gateway struct {
	config    Config
	generator ai.Generator
	sem       *semaphore.Weighted

	mu     sync.Mutex
	window []time.Time // start times of requests admitted in the last minute

	now    func() time.Time // overridable in tests
	logger *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger == nil {
			logger = slog.Default()
		}
		g.logger = logger
	}
}

// NewGateway creates a gateway in front of the given generator.
func NewGateway(generator ai.Generator, config Config, opts ...Option) (*Gateway, error) {
	if generator == nil {
		return nil, ErrNilGenerator
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	g := &Gateway{
		config:    config,
		generator: generator,
		sem:       semaphore.NewWeighted(int64(config.MaxConcurrent)),
		now:       time.Now,
		logger:    slog.Default().With("component", "gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Slot is an admitted request's hold on the gateway's concurrency ceiling.
// It must be returned with Release exactly once; extra releases are no-ops.
type Slot struct {
	gateway *Gateway
	once    sync.Once
}

// Acquire admits a request through both gates in order: the concurrency
// semaphore, then the sliding rate window. Blocking in either gate respects
// ctx cancellation; no slot is held when an error is returned.
func (g *Gateway) Acquire(ctx context.Context) (*Slot, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, admissionError(err)
	}
	if err := g.waitForWindow(ctx); err != nil {
		g.sem.Release(1)
		return nil, err
	}
	return &Slot{gateway: g}, nil
}

// Release returns a slot to the gateway. Safe to call more than once and on
// a nil slot.
func (g *Gateway) Release(slot *Slot) {
	if slot == nil {
		return
	}
	slot.once.Do(func() {
		slot.gateway.sem.Release(1)
	})
}

// Generate admits the request through Acquire, then dispatches it to the
// generator with the configured timeout. The slot is released when the call
// returns, success or failure.
func (g *Gateway) Generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	slot, err := g.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer g.Release(slot)

	callCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	start := g.now()
	answer, err := g.generator.Generate(callCtx, prompt, temperature, maxTokens)
	if err != nil {
		classified := classifyError(err)
		g.logger.Warn("generation failed",
			"elapsed", time.Since(start),
			"error", err)
		return "", classified
	}

	g.logger.Debug("generation complete", "elapsed", time.Since(start))
	return answer, nil
}

// waitForWindow blocks until the sliding window admits another request,
// recording the admission timestamp on success.
func (g *Gateway) waitForWindow(ctx context.Context) error {
	for {
		g.mu.Lock()
		now := g.now()
		g.pruneLocked(now)

		if len(g.window) < g.config.RequestsPerMinute {
			g.window = append(g.window, now)
			g.mu.Unlock()
			return nil
		}

		// Wait for the oldest admitted request to age out of the window.
		wait := g.window[0].Add(windowSpan).Sub(now)
		g.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return admissionError(ctx.Err())
		case <-timer.C:
		}
	}
}

// pruneLocked drops window entries older than one minute. Callers must hold
// the mutex.
func (g *Gateway) pruneLocked(now time.Time) {
	cutoff := now.Add(-windowSpan)
	i := 0
	for i < len(g.window) && !g.window[i].After(cutoff) {
		i++
	}
	if i > 0 {
		g.window = append(g.window[:0], g.window[i:]...)
	}
}

// WindowLen reports how many request admissions currently count against the
// sliding window.
func (g *Gateway) WindowLen() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pruneLocked(g.now())
	return len(g.window)
}

// admissionError maps context errors raised while waiting for admission.
func admissionError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: waiting for request admission: %w", core.ErrTimeout, err)
	}
	return fmt.Errorf("request admission aborted: %w", err)
}

// classifyError maps raw provider failures onto the stable categories in
// package core so callers can branch on errors.Is without knowing the
// provider.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: generation request: %w", core.ErrTimeout, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401"),
		strings.Contains(msg, "403"),
		strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "forbidden"),
		strings.Contains(msg, "api key"):
		return fmt.Errorf("%w: %w", core.ErrAuthentication, err)
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "500"),
		strings.Contains(msg, "502"),
		strings.Contains(msg, "503"),
		strings.Contains(msg, "504"),
		strings.Contains(msg, "unavailable"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "timeout"):
		return fmt.Errorf("%w: %w", core.ErrTransient, err)
	default:
		return fmt.Errorf("generation failed: %w", err)
	}
}

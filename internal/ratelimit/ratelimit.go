// Package ratelimit serializes calls to an external operation under a
// sliding-window rate limit and retries failures with exponential backoff.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// maxBackoffDelay caps the growing retry delay.
const maxBackoffDelay = 300 * time.Second

// Config configures a Controller.
type Config struct {
	Limit  int           // Max calls admitted in any trailing Period window.
	Period time.Duration // Window length.

	MaxRetry     int              // Attempts beyond this fail with RetryBudgetError.
	InitialDelay time.Duration    // Backoff starting point, restored on success.
	BackoffBase  float64          // Multiplicative growth base (jittered ±1).
	Retryable    func(error) bool // Failure kinds eligible for growing backoff.

	Log *slog.Logger
}

// Controller enforces that no more than Limit calls start in any trailing
// Period window, a true sliding window rather than a fixed bucket. One mutex
// serializes both the admission bookkeeping and the shared backoff delay,
// so concurrent callers queue rather than race.
type Controller struct {
	mu     sync.Mutex
	window []time.Time
	delay  time.Duration

	limit        int
	period       time.Duration
	maxRetry     int
	initialDelay time.Duration
	backoffBase  float64
	retryable    func(error) bool
	log          *slog.Logger

	// Injection points for deterministic tests.
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New builds a Controller, filling unset fields with defaults matching
// one call per period, ten retries, one second initial delay, base 2.
func New(cfg Config) *Controller {
	if cfg.Limit <= 0 {
		cfg.Limit = 1
	}
	if cfg.Period <= 0 {
		cfg.Period = time.Second
	}
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 10
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Controller{
		window:       make([]time.Time, 0, cfg.Limit),
		delay:        cfg.InitialDelay,
		limit:        cfg.Limit,
		period:       cfg.Period,
		maxRetry:     cfg.MaxRetry,
		initialDelay: cfg.InitialDelay,
		backoffBase:  cfg.BackoffBase,
		retryable:    cfg.Retryable,
		log:          cfg.Log,
		now:          time.Now,
		sleep:        sleepCtx,
	}
}

// admit blocks until a call may start. The mutex is held across the wait,
// which is what makes admission FIFO for concurrent callers.
func (c *Controller) admit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.window) == c.limit {
		oldest := c.window[0]
		c.window = c.window[1:]
		if lag := c.now().Sub(oldest); lag < c.period {
			if err := c.sleep(ctx, c.period-lag); err != nil {
				return err
			}
		}
	}
	c.window = append(c.window, c.now())
	return nil
}

// resetDelay restores the backoff delay after a success so one transient
// blip does not penalize later calls.
func (c *Controller) resetDelay() {
	c.mu.Lock()
	c.delay = c.initialDelay
	c.mu.Unlock()
}

// nextDelay returns the current backoff delay and grows it multiplicatively
// with uniform jitter on the base, capped at maxBackoffDelay. The jitter
// spreads out retries among concurrent callers sharing one controller.
func (c *Controller) nextDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.delay
	factor := c.backoffBase + (rand.Float64()*2 - 1)
	grown := time.Duration(float64(c.delay) * factor)
	if grown > maxBackoffDelay {
		grown = maxBackoffDelay
	}
	c.delay = grown
	return cur
}

// RetryBudgetError is returned once an operation has failed more than
// MaxRetry times. It wraps the last underlying failure.
type RetryBudgetError struct {
	Attempts int
	Err      error
}

func (e *RetryBudgetError) Error() string {
	return fmt.Sprintf("maximum retry reached after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryBudgetError) Unwrap() error { return e.Err }

// Do runs op under c's rate limit, retrying failures until the budget is
// exhausted. Failures in the retryable set wait the growing backoff delay;
// all others wait the initial delay and are retried without growing it.
func Do[T any](ctx context.Context, c *Controller, op func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := 0
	for {
		if err := c.admit(ctx); err != nil {
			return zero, err
		}
		out, err := op(ctx)
		if err == nil {
			c.resetDelay()
			return out, nil
		}
		attempts++
		if attempts > c.maxRetry {
			return zero, &RetryBudgetError{Attempts: attempts, Err: err}
		}
		wait := c.initialDelay
		if c.retryable != nil && c.retryable(err) {
			wait = c.nextDelay()
		}
		c.log.Warn("operation failed, retrying",
			"error", err,
			"attempt", attempts,
			"max_retry", c.maxRetry,
			"delay", wait,
			"at", c.now().Format(time.RFC3339),
		)
		if serr := c.sleep(ctx, wait); serr != nil {
			return zero, serr
		}
	}
}

// sleepCtx waits d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

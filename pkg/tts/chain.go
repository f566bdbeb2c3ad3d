package tts

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultCooldown is how long a failed provider is skipped by a Chain.
const DefaultCooldown = 30 * time.Second

// Chain is a Provider that falls back through its members in order.
//
// A member that fails is benched for the cooldown period so that warnings
// are not held up by a provider that keeps timing out. Benched members are
// still tried when every member is benched.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
	cooldown  time.Duration
	now       func() time.Time

	mu      sync.Mutex
	benched []time.Time
}

// NewChain builds a chain over providers using the default logger.
func NewChain(providers ...Provider) (*Chain, error) {
	return NewChainWithLogger(slog.Default(), providers...)
}

// NewChainWithLogger builds a chain that logs fallbacks to logger.
func NewChainWithLogger(logger *slog.Logger, providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		providers: providers,
		logger:    logger.With("component", "tts.chain"),
		cooldown:  DefaultCooldown,
		now:       time.Now,
		benched:   make([]time.Time, len(providers)),
	}, nil
}

// SetCooldown changes how long failed providers are skipped and clears any
// current benching. Zero disables benching.
func (c *Chain) SetCooldown(d time.Duration) {
	c.mu.Lock()
	c.cooldown = d
	clear(c.benched)
	c.mu.Unlock()
}

// Synthesize returns audio from the first available member that succeeds.
func (c *Chain) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	var errs []error
	for _, i := range c.order() {
		result, err := c.providers[i].Synthesize(ctx, text)
		if err == nil {
			c.restore(i)
			if i > 0 {
				c.logger.Info("fallback provider used", "provider_index", i, "chars", len(text))
			}
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, err)
		c.bench(i)
		c.logger.Warn("provider failed", "provider_index", i, "error", err)
	}
	return nil, &ChainError{Errors: errs}
}

// order lists available members first, then benched ones, each in chain order.
func (c *Chain) order() []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	ready := make([]int, 0, len(c.providers))
	var benched []int
	for i, until := range c.benched {
		if now.Before(until) {
			benched = append(benched, i)
			continue
		}
		ready = append(ready, i)
	}
	return append(ready, benched...)
}

func (c *Chain) bench(i int) {
	c.mu.Lock()
	c.benched[i] = c.now().Add(c.cooldown)
	c.mu.Unlock()
}

func (c *Chain) restore(i int) {
	c.mu.Lock()
	c.benched[i] = time.Time{}
	c.mu.Unlock()
}

// Health succeeds while at least one member is healthy.
func (c *Chain) Health(ctx context.Context) error {
	errs := make([]error, 0, len(c.providers))
	for _, p := range c.providers {
		err := p.Health(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return &ChainError{Errors: errs}
}

// Close closes every member.
func (c *Chain) Close() error {
	var errs []error
	for _, p := range c.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Provider = (*Chain)(nil)

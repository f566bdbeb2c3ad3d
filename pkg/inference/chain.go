package inference

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
)

// Chain is a Provider that falls back through its members.
//
// The member that answered last is tried first on the next request, so a
// dead primary costs one failed call rather than one per question.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
	preferred atomic.Int32
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
		logger:    logger.With("component", "inference.chain"),
	}, nil
}

func (c *Chain) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	return try(ctx, c, "chat",
		func(caps Capabilities) bool { return caps.Chat },
		func(p Provider) (*ChatResponse, error) { return p.Chat(ctx, req) },
		ErrProviderUnavailable)
}

// Vision skips members without vision support.
func (c *Chain) Vision(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
	return try(ctx, c, "vision",
		func(caps Capabilities) bool { return caps.Vision },
		func(p Provider) (*VisionResponse, error) { return p.Vision(ctx, req) },
		ErrVisionNotSupported)
}

// order starts at the preferred member and wraps around.
func (c *Chain) order() []int {
	first := int(c.preferred.Load())
	out := make([]int, len(c.providers))
	for k := range out {
		out[k] = (first + k) % len(c.providers)
	}
	return out
}

func try[T any](ctx context.Context, c *Chain, op string, supports func(Capabilities) bool, call func(Provider) (T, error), none error) (T, error) {
	var zero T
	var errs []error

	for _, i := range c.order() {
		p := c.providers[i]
		if !supports(p.Capabilities()) {
			continue
		}

		resp, err := call(p)
		if err == nil {
			if prev := c.preferred.Swap(int32(i)); int(prev) != i {
				c.logger.Info("switched provider", "op", op, "provider_index", i)
			}
			return resp, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		errs = append(errs, err)
		c.logger.Warn("provider failed", "op", op, "provider_index", i, "error", err)
	}

	if len(errs) == 0 {
		return zero, none
	}
	return zero, &ChainError{Errors: errs}
}

// Capabilities is the union of the members' capabilities.
func (c *Chain) Capabilities() Capabilities {
	var caps Capabilities
	for _, p := range c.providers {
		pc := p.Capabilities()
		caps.Chat = caps.Chat || pc.Chat
		caps.Vision = caps.Vision || pc.Vision
	}
	return caps
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

func (c *Chain) Close() error {
	var errs []error
	for _, p := range c.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Providers returns the members in configured order.
func (c *Chain) Providers() []Provider {
	return c.providers
}

var _ Provider = (*Chain)(nil)

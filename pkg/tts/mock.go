package tts

import (
	"context"
	"sync"
	"time"
)

// mockBytesPerChar approximates 20ms of 24kHz mono PCM16 per character.
const mockBytesPerChar = 960

// Mock is an in-memory Provider. It produces silence sized to the text and
// records what it was asked to say.
type Mock struct {
	// SynthesizeFunc replaces the default silent synthesis when set.
	SynthesizeFunc func(ctx context.Context, text string) (*AudioResult, error)
	// HealthFunc reports health; nil means healthy.
	HealthFunc func(ctx context.Context) error

	mu     sync.Mutex
	counts map[string]int
	texts  []string
}

// NewMock returns a mock that synthesizes silence.
func NewMock() *Mock {
	return &Mock{SynthesizeFunc: silence}
}

func silence(_ context.Context, text string) (*AudioResult, error) {
	return &AudioResult{
		Audio:     make([]byte, len(text)*mockBytesPerChar),
		Format:    PCMFormat(EncodingPCM24),
		CharCount: len(text),
		LatencyMs: 1,
		Duration:  time.Duration(len(text)) * 20 * time.Millisecond,
	}, nil
}

// WithError returns a mock whose Synthesize and Health always fail with err.
func WithError(err error) *Mock {
	return &Mock{
		SynthesizeFunc: func(context.Context, string) (*AudioResult, error) { return nil, err },
		HealthFunc:     func(context.Context) error { return err },
	}
}

// WithLatency delays every synthesis on m by delay, honouring cancellation.
func WithLatency(m *Mock, delay time.Duration) *Mock {
	next := m.SynthesizeFunc
	if next == nil {
		next = silence
	}
	m.SynthesizeFunc = func(ctx context.Context, text string) (*AudioResult, error) {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
			return next(ctx, text)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m
}

func (m *Mock) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	m.mu.Lock()
	m.count("Synthesize")
	m.texts = append(m.texts, text)
	fn := m.SynthesizeFunc
	m.mu.Unlock()

	if fn == nil {
		return nil, WrapError("mock", ErrProviderUnavailable)
	}
	return fn(ctx, text)
}

func (m *Mock) Health(ctx context.Context) error {
	m.mu.Lock()
	m.count("Health")
	fn := m.HealthFunc
	m.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (m *Mock) Close() error {
	m.mu.Lock()
	m.count("Close")
	m.mu.Unlock()
	return nil
}

// count must be called with mu held.
func (m *Mock) count(method string) {
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[method]++
}

// CallCount reports how many times method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[method]
}

// Texts returns every synthesized text in call order.
func (m *Mock) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

var _ Provider = (*Mock)(nil)

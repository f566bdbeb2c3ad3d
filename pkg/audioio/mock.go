package audioio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"
)

// MockSource replays queued chunks one per buffer period and emits silence
// once the queue is empty. Tests script speech with Tone and Silence.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	starts  int
	queue   []AudioChunk
	out     chan AudioChunk
	stop    chan struct{}
}

func NewMockSource(cfg Config, logger *slog.Logger) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockSource{cfg: cfg, logger: logger}
}

// Queue schedules chunks ahead of the generated silence.
func (m *MockSource) Queue(chunks ...AudioChunk) {
	m.mu.Lock()
	m.queue = append(m.queue, chunks...)
	m.mu.Unlock()
}

// Tone is d of a 440Hz sine at amplitude (0 to 1), at the source rate.
func (m *MockSource) Tone(d time.Duration, amplitude float64) AudioChunk {
	chunk := m.Silence(d)
	rate := float64(m.cfg.SampleRate)
	for i := range chunk.Samples {
		chunk.Samples[i] = int16(amplitude * math.MaxInt16 * math.Sin(2*math.Pi*440*float64(i)/rate))
	}
	return chunk
}

// Silence is d of zero samples at the source rate.
func (m *MockSource) Silence(d time.Duration) AudioChunk {
	n := int(d.Seconds() * float64(m.cfg.SampleRate))
	return AudioChunk{Samples: make([]int16, n), SampleRate: m.cfg.SampleRate, Channels: 1}
}

// Start is a no-op while running. A closed source returns io.ErrClosedPipe.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.closed:
		return io.ErrClosedPipe
	case m.running:
		return nil
	}
	m.running = true
	m.starts++
	m.stop = make(chan struct{})
	m.out = make(chan AudioChunk, 10)
	go m.run(ctx, m.out, m.stop)
	return nil
}

// run is the only sender on out and closes it on exit.
func (m *MockSource) run(ctx context.Context, out chan<- AudioChunk, stop <-chan struct{}) {
	defer close(out)

	ticker := time.NewTicker(m.cfg.BufferDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
		}
		select {
		case out <- m.next():
		case <-ctx.Done():
			return
		case <-stop:
			return
		}
	}
}

func (m *MockSource) next() AudioChunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) > 0 {
		chunk := m.queue[0]
		m.queue = m.queue[1:]
		return chunk
	}
	return AudioChunk{
		Samples:    make([]int16, m.cfg.BufferSize()*m.cfg.Channels),
		SampleRate: m.cfg.SampleRate,
		Channels:   m.cfg.Channels,
	}
}

func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		m.running = false
		close(m.stop)
	}
	return nil
}

// Read returns io.EOF once the source has stopped and drained.
func (m *MockSource) Read(ctx context.Context) (AudioChunk, error) {
	m.mu.Lock()
	out := m.out
	m.mu.Unlock()
	if out == nil {
		return AudioChunk{}, io.EOF
	}

	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-out:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

func (m *MockSource) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Starts counts successful transitions to running.
func (m *MockSource) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

func (m *MockSource) Config() Config { return m.cfg }

func (m *MockSource) Name() string { return string(BackendMock) }

func (m *MockSource) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return m.Stop()
}

// MockSink is a mock audio sink for testing. It records every sample
// written, resampled to the sink rate.
type MockSink struct {
	cfg    Config
	logger *slog.Logger

	// WriteDelay simulates playback time per Write.
	WriteDelay time.Duration

	mu      sync.Mutex
	running bool
	closed  bool
	played  []int16
	writes  int
	clears  int
}

// NewMockSink creates a new mock audio sink.
func NewMockSink(cfg Config, logger *slog.Logger) *MockSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockSink{cfg: cfg, logger: logger}
}

// Start begins accepting audio.
func (m *MockSink) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return io.ErrClosedPipe
	}
	m.running = true
	return nil
}

// Stop halts audio acceptance.
func (m *MockSink) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

// Write records chunk.
func (m *MockSink) Write(ctx context.Context, chunk AudioChunk) error {
	m.mu.Lock()
	if m.closed || !m.running {
		m.mu.Unlock()
		return io.ErrClosedPipe
	}
	m.played = append(m.played, Convert(chunk, m.cfg.SampleRate, m.cfg.Channels)...)
	m.writes++
	delay := m.WriteDelay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil
}

// Clear records an interruption.
func (m *MockSink) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
	return nil
}

// Played returns a copy of every sample written.
func (m *MockSink) Played() []int16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int16(nil), m.played...)
}

// Writes returns the number of Write calls accepted.
func (m *MockSink) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Clears returns the number of Clear calls.
func (m *MockSink) Clears() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}

// Config returns the audio configuration.
func (m *MockSink) Config() Config { return m.cfg }

// Name returns "mock".
func (m *MockSink) Name() string { return string(BackendMock) }

// Close releases resources.
func (m *MockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.running = false
	return nil
}

// Stats returns sink statistics.
func (m *MockSink) Stats() SinkStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return SinkStats{
		ChunksWritten:  int64(m.writes),
		SamplesWritten: int64(len(m.played)),
		Running:        m.running,
		Backend:        string(BackendMock),
	}
}

var (
	_ Source = (*MockSource)(nil)
	_ Sink   = (*MockSink)(nil)
)

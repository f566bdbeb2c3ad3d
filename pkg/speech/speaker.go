package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-guide/pkg/audioio"
	"github.com/teslashibe/go-guide/pkg/guidance"
	"github.com/teslashibe/go-guide/pkg/tts"
)

// ErrQueueFull is returned by Speak in queued mode when the backlog is full.
var ErrQueueFull = errors.New("speech: speaker queue full")

// playSlice is the amount of audio written per sink call. Cancellation is
// checked between slices.
const playSlice = 100 * time.Millisecond

// Speaker implements guidance.SpeechOutput by synthesizing text with a
// tts.Provider and playing it on an audioio.Sink. Utterances never
// overlap.
//
// By default Speak blocks until playback finishes. With WithQueue it
// returns once the text is queued and a single worker plays the backlog
// in order.
type Speaker struct {
	tts    tts.Provider
	sink   audioio.Sink
	logger *slog.Logger
	before func(ctx context.Context, text string)

	mu sync.Mutex // held for one utterance

	queueSize int
	queue     chan string
	stop      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// SpeakerOption configures a Speaker.
type SpeakerOption func(*Speaker)

// WithSpeakerLogger sets the logger.
func WithSpeakerLogger(l *slog.Logger) SpeakerOption {
	return func(s *Speaker) {
		s.logger = l
	}
}

// WithQueue switches Speak to fire-and-forget with a backlog of n.
func WithQueue(n int) SpeakerOption {
	return func(s *Speaker) {
		s.queueSize = max(1, n)
	}
}

// WithBefore registers a hook run before each utterance is synthesized.
func WithBefore(fn func(ctx context.Context, text string)) SpeakerOption {
	return func(s *Speaker) {
		s.before = fn
	}
}

// NewSpeaker creates a speaker. Call Start before Speak.
func NewSpeaker(provider tts.Provider, sink audioio.Sink, opts ...SpeakerOption) (*Speaker, error) {
	if provider == nil {
		return nil, errors.New("speech: tts provider is required")
	}
	if sink == nil {
		return nil, errors.New("speech: audio sink is required")
	}
	s := &Speaker{
		tts:    provider,
		sink:   sink,
		logger: slog.Default(),
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.queueSize > 0 {
		s.queue = make(chan string, s.queueSize)
	}
	s.logger = s.logger.With("component", "speech.speaker")
	return s, nil
}

// Start opens the sink and, in queued mode, starts the playback worker.
func (s *Speaker) Start(ctx context.Context) error {
	if err := s.sink.Start(ctx); err != nil {
		return fmt.Errorf("speech: start %s sink: %w", s.sink.Name(), err)
	}
	if s.queue != nil {
		s.startOnce.Do(func() {
			s.wg.Add(1)
			go s.worker(ctx)
		})
	}
	return nil
}

// Speak says text. Empty text is ignored.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if s.queue == nil {
		return s.say(ctx, text)
	}
	select {
	case <-s.stop:
		return errors.New("speech: speaker closed")
	default:
	}
	select {
	case s.queue <- text:
		return nil
	default:
		return ErrQueueFull
	}
}

// Interrupt aborts the sink write in progress.
func (s *Speaker) Interrupt() error {
	return s.sink.Clear()
}

// Close stops the worker and the sink. Queued text is discarded.
func (s *Speaker) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
	return s.sink.Stop()
}

func (s *Speaker) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case text := <-s.queue:
			if err := s.say(ctx, text); err != nil && ctx.Err() == nil {
				s.logger.Warn("queued speech failed", "error", err)
			}
		}
	}
}

func (s *Speaker) say(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.before != nil {
		s.before(ctx, text)
	}

	start := time.Now()
	res, err := s.tts.Synthesize(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("speech: synthesize: %w", err)
	}
	channels := max(1, res.Format.Channels)
	chunk := audioio.NewChunk(res.Audio, res.Format.SampleRate, channels)
	s.logger.Debug("speaking", "chars", len(text), "audio", chunk.Duration(), "tts_ms", time.Since(start).Milliseconds())

	return s.play(ctx, chunk)
}

func (s *Speaker) play(ctx context.Context, chunk audioio.AudioChunk) error {
	step := max(1, int(playSlice.Seconds()*float64(chunk.SampleRate))) * chunk.Channels
	samples := chunk.Samples
	for off := 0; off < len(samples); off += step {
		if err := ctx.Err(); err != nil {
			s.sink.Clear()
			return err
		}
		end := min(off+step, len(samples))
		err := s.sink.Write(ctx, audioio.AudioChunk{
			Samples:    samples[off:end],
			SampleRate: chunk.SampleRate,
			Channels:   chunk.Channels,
		})
		if err != nil {
			if ctx.Err() != nil {
				s.sink.Clear()
				return ctx.Err()
			}
			return fmt.Errorf("speech: play: %w", err)
		}
	}
	return nil
}

var _ guidance.SpeechOutput = (*Speaker)(nil)

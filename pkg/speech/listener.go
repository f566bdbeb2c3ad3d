package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-guide/pkg/audioio"
	"github.com/teslashibe/go-guide/pkg/guidance"
)

// Listener implements guidance.SpeechInput over a microphone source and a
// Transcriber.
//
// Like a platform recognizer it stops itself after delivering a result
// unless Config.Continuous is set. Transcription failures are reported on
// Results and listening carries on; a failing source ends the session.
type Listener struct {
	source      audioio.Source
	transcriber Transcriber
	cfg         Config
	logger      *slog.Logger
	results     chan guidance.Recognition

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ListenerOption {
	return func(ln *Listener) {
		ln.logger = l
	}
}

// NewListener creates a listener. The source is started and stopped by
// the listener but closed by the caller.
func NewListener(source audioio.Source, transcriber Transcriber, cfg Config, opts ...ListenerOption) (*Listener, error) {
	if source == nil {
		return nil, errors.New("speech: audio source is required")
	}
	if transcriber == nil {
		return nil, errors.New("speech: transcriber is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("speech: invalid config: %w", err)
	}
	l := &Listener{
		source:      source,
		transcriber: transcriber,
		cfg:         cfg,
		logger:      slog.Default(),
		results:     make(chan guidance.Recognition, 8),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "speech.listener", "stt", transcriber.Name())
	return l, nil
}

// Start begins listening. It is a no-op while already listening.
func (l *Listener) Start(ctx context.Context, locale string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return nil
	}
	if err := l.source.Start(ctx); err != nil {
		return fmt.Errorf("speech: start %s source: %w", l.source.Name(), err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.running = true
	l.cancel = cancel
	l.done = done

	go l.run(runCtx, cancel, locale, done)
	l.logger.Debug("listening", "locale", locale)
	return nil
}

// Stop ends listening and waits for the capture loop to exit. It is safe
// to call when not listening.
func (l *Listener) Stop() error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	cancel, done := l.cancel, l.done
	l.running = false
	l.cancel = nil
	l.done = nil
	l.mu.Unlock()

	cancel()
	<-done
	return nil
}

// Results returns the recognition channel. It is never closed.
func (l *Listener) Results() <-chan guidance.Recognition {
	return l.results
}

// Listening reports whether the capture loop is running.
func (l *Listener) Listening() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *Listener) run(ctx context.Context, cancel context.CancelFunc, locale string, done chan struct{}) {
	defer close(done)
	defer cancel()

	released := false
	release := func() {
		if !released {
			released = true
			l.release(done)
		}
	}
	defer release()

	seg := NewSegmenter(l.cfg, l.source.Config().SampleRate)
	for {
		chunk, err := l.source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			release()
			l.emit(ctx, guidance.Recognition{Err: fmt.Errorf("%w: %w", guidance.ErrRecognition, err)})
			return
		}

		for _, utt := range seg.Feed(audioio.Convert(chunk, seg.SampleRate(), 1)) {
			rec, ok := l.transcribe(ctx, utt, seg.SampleRate(), locale)
			if ctx.Err() != nil {
				return
			}
			if !ok {
				continue
			}
			if rec.Err == nil && !l.cfg.Continuous {
				release()
				l.emit(ctx, rec)
				return
			}
			l.emit(ctx, rec)
		}
	}
}

// release marks the session finished and stops the source before the
// final result is published, so a Start triggered by that result opens a
// fresh session.
func (l *Listener) release(done chan struct{}) {
	l.mu.Lock()
	if l.done == done {
		l.running = false
		l.cancel = nil
		l.done = nil
	}
	l.mu.Unlock()

	if err := l.source.Stop(); err != nil {
		l.logger.Warn("source stop failed", "error", err)
	}
}

// transcribe returns false when the utterance should be dropped silently.
func (l *Listener) transcribe(ctx context.Context, samples []int16, rate int, locale string) (guidance.Recognition, bool) {
	tctx, cancel := context.WithTimeout(ctx, l.cfg.TranscribeTimeout)
	defer cancel()

	start := time.Now()
	audio := audioio.AudioChunk{Samples: samples, SampleRate: rate, Channels: 1}
	candidates, err := l.transcriber.Transcribe(tctx, audio, locale)
	candidates = cleanCandidates(candidates)

	switch {
	case err != nil && errors.Is(err, ErrNoMatch), err == nil && len(candidates) == 0:
		l.logger.Debug("no match", "audio", audio.Duration(), "took", time.Since(start))
		return guidance.Recognition{}, false
	case err != nil:
		if ctx.Err() != nil {
			return guidance.Recognition{}, false
		}
		l.logger.Warn("transcription failed", "audio", audio.Duration(), "error", err)
		return guidance.Recognition{Err: fmt.Errorf("%w: %w", guidance.ErrRecognition, err)}, true
	}

	l.logger.Debug("transcribed", "text", candidates[0], "alternatives", len(candidates)-1,
		"audio", audio.Duration(), "took", time.Since(start))
	return guidance.Recognition{Candidates: candidates}, true
}

func (l *Listener) emit(ctx context.Context, rec guidance.Recognition) {
	select {
	case l.results <- rec:
	case <-ctx.Done():
	default:
		l.logger.Warn("results channel full, dropping recognition")
	}
}

var _ guidance.SpeechInput = (*Listener)(nil)

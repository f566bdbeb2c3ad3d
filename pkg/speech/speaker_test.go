package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-guide/pkg/audioio"
	"github.com/teslashibe/go-guide/pkg/tts"
)

func testSink(t *testing.T) *audioio.MockSink {
	t.Helper()
	cfg := audioio.DefaultConfig()
	cfg.Backend = audioio.BackendMock
	sink := audioio.NewMockSink(cfg, nil)
	t.Cleanup(func() { sink.Close() })
	return sink
}

func newTestSpeaker(t *testing.T, p tts.Provider, sink audioio.Sink, opts ...SpeakerOption) *Speaker {
	t.Helper()
	s, err := NewSpeaker(p, sink, opts...)
	if err != nil {
		t.Fatalf("NewSpeaker: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSpeakerSpeak(t *testing.T) {
	mock := tts.NewMock()
	sink := testSink(t)
	s := newTestSpeaker(t, mock, sink)

	// The mock yields 480 samples per character at 24 kHz.
	if err := s.Speak(context.Background(), "hello world"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if got, want := len(sink.Played()), 11*480; got != want {
		t.Errorf("played %d samples, want %d", got, want)
	}
	if sink.Writes() != 3 {
		t.Errorf("writes = %d, want 3 slices of 100ms", sink.Writes())
	}
	if texts := mock.Texts(); len(texts) != 1 || texts[0] != "hello world" {
		t.Errorf("synthesized %v", texts)
	}
}

func TestSpeakerIgnoresBlankText(t *testing.T) {
	mock := tts.NewMock()
	s := newTestSpeaker(t, mock, testSink(t))

	if err := s.Speak(context.Background(), "   "); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if n := mock.CallCount("Synthesize"); n != 0 {
		t.Errorf("Synthesize calls = %d, want 0", n)
	}
}

func TestSpeakerSynthesizeError(t *testing.T) {
	s := newTestSpeaker(t, tts.WithError(tts.ErrProviderUnavailable), testSink(t))

	err := s.Speak(context.Background(), "careful")
	if !errors.Is(err, tts.ErrProviderUnavailable) {
		t.Errorf("err = %v, want ErrProviderUnavailable", err)
	}
}

func TestSpeakerCancelClearsSink(t *testing.T) {
	sink := testSink(t)
	sink.WriteDelay = 50 * time.Millisecond
	s := newTestSpeaker(t, tts.NewMock(), sink)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Speak(ctx, "a fairly long sentence that takes a while to play")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
	if sink.Clears() == 0 {
		t.Error("sink was not cleared on cancel")
	}
}

func TestSpeakerBeforeHook(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	s := newTestSpeaker(t, tts.NewMock(), testSink(t), WithBefore(func(ctx context.Context, text string) {
		mu.Lock()
		seen = append(seen, text)
		mu.Unlock()
	}))

	s.Speak(context.Background(), "stairs ahead")
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != "stairs ahead" {
		t.Errorf("hook saw %v", seen)
	}
}

func TestSpeakerQueue(t *testing.T) {
	mock := tts.WithLatency(tts.NewMock(), 100*time.Millisecond)
	sink := testSink(t)
	s := newTestSpeaker(t, mock, sink, WithQueue(1))

	ctx := context.Background()
	if err := s.Speak(ctx, "first"); err != nil {
		t.Fatalf("Speak first: %v", err)
	}

	// Wait for the worker to take the first item.
	deadline := time.Now().Add(time.Second)
	for mock.CallCount("Synthesize") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("worker never started synthesizing")
		}
		time.Sleep(time.Millisecond)
	}

	if err := s.Speak(ctx, "second"); err != nil {
		t.Fatalf("Speak second: %v", err)
	}
	if err := s.Speak(ctx, "third"); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Speak third = %v, want ErrQueueFull", err)
	}

	want := (len("first") + len("second")) * 480
	deadline = time.Now().Add(2 * time.Second)
	for len(sink.Played()) < want {
		if time.Now().After(deadline) {
			t.Fatalf("played %d samples, want %d", len(sink.Played()), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if texts := mock.Texts(); len(texts) != 2 || texts[0] != "first" || texts[1] != "second" {
		t.Errorf("synthesized %v", texts)
	}
}

func TestNewSpeakerRequiresParts(t *testing.T) {
	if _, err := NewSpeaker(nil, testSink(t)); err == nil {
		t.Error("expected error for nil provider")
	}
	if _, err := NewSpeaker(tts.NewMock(), nil); err == nil {
		t.Error("expected error for nil sink")
	}
}

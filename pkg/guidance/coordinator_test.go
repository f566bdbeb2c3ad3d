package guidance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type harness struct {
	in      *MockSpeechInput
	out     *MockSpeechOutput
	det     *MockDetector
	backend *MockBackend
	cam     *MockCamera
	c       *Coordinator

	mu    sync.Mutex
	snaps []Snapshot
}

func newHarness(t *testing.T, mutate func(*Config), opts ...Option) *harness {
	t.Helper()

	cfg := DefaultConfig()
	cfg.DetectionInterval = 10 * time.Millisecond
	cfg.RestartDelay = 5 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}

	h := &harness{
		in:      NewMockSpeechInput(),
		out:     &MockSpeechOutput{},
		det:     &MockDetector{},
		backend: &MockBackend{Response: "There is a chair in front of you."},
		cam:     &MockCamera{},
	}

	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithCamera(h.cam),
		WithOnChange(func(s Snapshot) {
			h.mu.Lock()
			h.snaps = append(h.snaps, s)
			h.mu.Unlock()
		}),
	}
	c, err := New(cfg, h.in, h.out, h.det, h.backend, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.c = c

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("Run did not return after cancel")
		}
	})
	return h
}

func (h *harness) snapshots() []Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Snapshot, len(h.snaps))
	copy(out, h.snaps)
	return out
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func spokeMatching(out *MockSpeechOutput, prefix string) []string {
	var got []string
	for _, s := range out.Spoken() {
		if strings.HasPrefix(s, prefix) {
			got = append(got, s)
		}
	}
	return got
}

func (h *harness) activate(t *testing.T) {
	t.Helper()
	h.in.Emit("Guide me")
	eventually(t, "activation", func() bool { return h.c.Snapshot().Active })
}

func TestActivationIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	phrases := DefaultPhrases()

	h.in.Emit("guide me")
	h.in.Emit("guide me again")
	h.in.Emit("what is ahead")

	eventually(t, "query dispatch", func() bool { return len(h.backend.Calls()) == 1 })

	eventually(t, "activation acknowledgement", func() bool { return h.out.Count(phrases.Activated) == 1 })
	if got := h.backend.Calls()[0].Utterance; got != "what is ahead" {
		t.Errorf("query utterance = %q, want %q", got, "what is ahead")
	}

	ok, err := h.c.Activate(context.Background())
	if err != nil || ok {
		t.Errorf("Activate while active = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestDeactivation(t *testing.T) {
	h := newHarness(t, nil)
	phrases := DefaultPhrases()

	h.activate(t)
	h.in.Emit("Please STOP")
	eventually(t, "deactivation", func() bool { return !h.c.Snapshot().Active })

	snap := h.c.Snapshot()
	if snap.StatusText != StatusIdle {
		t.Errorf("status = %q, want %q", snap.StatusText, StatusIdle)
	}
	if snap.Listening {
		t.Error("listening while idle")
	}

	h.in.Emit("exit")
	h.in.Emit("guide me")
	eventually(t, "reactivation", func() bool { return h.c.Snapshot().Active })

	eventually(t, "deactivation acknowledgement", func() bool { return h.out.Count(phrases.Deactivated) == 1 })

	ok, err := h.c.Deactivate(context.Background())
	if err != nil || !ok {
		t.Fatalf("Deactivate = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = h.c.Deactivate(context.Background())
	if err != nil || ok {
		t.Errorf("second Deactivate = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestIdleUtterancesIgnored(t *testing.T) {
	h := newHarness(t, nil)

	h.in.Emit("what is in front of me")
	h.in.Emit("guide me")
	h.activate(t)

	if n := len(h.backend.Calls()); n != 0 {
		t.Errorf("backend called %d times for idle utterance", n)
	}
}

func TestHazardWarnsAboutFirstMatchOnly(t *testing.T) {
	h := newHarness(t, nil)
	h.det.SetObjects([]DetectedObject{
		{Label: "person", Confidence: 0.9, Box: box(0.4, 0.6)},
		{Label: "stairs", Confidence: 0.7, Box: box(0.05, 0.15)},
	})

	h.activate(t)
	eventually(t, "hazard warning", func() bool { return len(spokeMatching(h.out, "Careful!")) > 0 })

	for _, s := range spokeMatching(h.out, "Careful!") {
		if s != "Careful! stairs on your left" {
			t.Errorf("unexpected warning %q", s)
		}
	}
}

func TestNoHazardBelowThreshold(t *testing.T) {
	h := newHarness(t, nil)
	h.det.SetObjects([]DetectedObject{
		{Label: "stairs", Confidence: 0.4, Box: box(0.05, 0.15)},
		{Label: "hole", Confidence: 0.55, Box: box(0.4, 0.6)},
	})

	h.activate(t)
	eventually(t, "several detection cycles", func() bool { return h.det.Calls() >= 4 })
	time.Sleep(20 * time.Millisecond)

	if w := spokeMatching(h.out, "Careful!"); len(w) != 0 {
		t.Errorf("unexpected warnings %v", w)
	}

	objs := h.c.Snapshot().Objects
	if len(objs) != 1 || objs[0].Label != "hole" {
		t.Errorf("last objects = %+v, want only the 0.55 hole", objs)
	}
}

func TestDeactivationStopsDetection(t *testing.T) {
	h := newHarness(t, nil)

	h.activate(t)
	eventually(t, "detection running", func() bool { return h.det.Calls() >= 2 })

	if _, err := h.c.Deactivate(context.Background()); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	n := h.det.Calls()
	time.Sleep(100 * time.Millisecond)

	if got := h.det.Calls(); got != n {
		t.Errorf("detect called %d more times after deactivation", got-n)
	}
}

func TestInFlightDetectionSkipsTicks(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, nil)
	h.det.DetectFunc = func(ctx context.Context, f Frame) ([]DetectedObject, error) {
		<-release
		return []DetectedObject{{Label: "stairs", Confidence: 0.9, Box: box(0.4, 0.6)}}, nil
	}

	h.activate(t)
	eventually(t, "first detect", func() bool { return h.det.Calls() == 1 })
	time.Sleep(60 * time.Millisecond)

	if got := h.det.Calls(); got != 1 {
		t.Errorf("detect called %d times while first call in flight, want 1", got)
	}
	close(release)
	eventually(t, "next detect", func() bool { return h.det.Calls() > 1 })
}

func TestStaleDetectionDiscarded(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, nil)
	h.det.DetectFunc = func(ctx context.Context, f Frame) ([]DetectedObject, error) {
		<-release
		return []DetectedObject{{Label: "stairs", Confidence: 0.9, Box: box(0.0, 0.1)}}, nil
	}

	h.activate(t)
	eventually(t, "detect in flight", func() bool { return h.det.Calls() == 1 })
	if _, err := h.c.Deactivate(context.Background()); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	close(release)
	time.Sleep(50 * time.Millisecond)

	if w := spokeMatching(h.out, "Careful!"); len(w) != 0 {
		t.Errorf("hazard spoken after stop: %v", w)
	}
	if objs := h.c.Snapshot().Objects; len(objs) != 0 {
		t.Errorf("stale objects applied: %+v", objs)
	}
}

func TestDetectionErrorKeepsLastObjects(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	h := newHarness(t, nil)
	h.det.DetectFunc = func(ctx context.Context, f Frame) ([]DetectedObject, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return []DetectedObject{{Label: "chair", Confidence: 0.8, Box: box(0.4, 0.6)}}, nil
		}
		return nil, errors.New("inference failed")
	}

	h.activate(t)
	eventually(t, "failing cycles", func() bool { return h.det.Calls() >= 4 })

	objs := h.c.Snapshot().Objects
	if len(objs) != 1 || objs[0].Label != "chair" {
		t.Errorf("objects = %+v, want the chair from the first cycle", objs)
	}
	if !h.c.Snapshot().Active {
		t.Error("detection errors must not deactivate")
	}
}

func TestCaptureErrorSkipsDetect(t *testing.T) {
	h := newHarness(t, nil)
	h.cam.Err = errors.New("device busy")

	h.activate(t)
	eventually(t, "capture attempts", func() bool { return h.cam.Captures() >= 3 })

	if got := h.det.Calls(); got != 0 {
		t.Errorf("detect called %d times after capture failures", got)
	}
}

func TestNoCameraSkipsTicks(t *testing.T) {
	h := newHarness(t, nil)
	h.cam.Unavailable = true

	h.activate(t)
	time.Sleep(60 * time.Millisecond)

	if got := h.cam.Captures(); got != 0 {
		t.Errorf("captured %d frames from unavailable camera", got)
	}
}

func TestQueryIncludesSceneAndSpeaksResponse(t *testing.T) {
	h := newHarness(t, nil)
	h.det.SetObjects([]DetectedObject{
		{Label: "bench", Confidence: 0.8, Box: box(0.8, 0.9)},
		{Label: "bench", Confidence: 0.7, Box: box(0.0, 0.2)},
	})
	h.backend.Response = "Two benches, one on each side."

	h.activate(t)
	eventually(t, "objects detected", func() bool { return len(h.c.Snapshot().Objects) == 2 })

	h.in.Emit("What do you see")
	eventually(t, "response spoken", func() bool { return h.out.Count("Two benches, one on each side.") == 1 })

	calls := h.backend.Calls()
	if len(calls) != 1 {
		t.Fatalf("backend called %d times, want 1", len(calls))
	}
	if calls[0].Utterance != "what do you see" {
		t.Errorf("utterance = %q", calls[0].Utterance)
	}
	if want := "bench at on your right, bench at on your left"; calls[0].Scene != want {
		t.Errorf("scene = %q, want %q", calls[0].Scene, want)
	}
	if got := h.c.Snapshot().StatusText; got != "Two benches, one on each side." {
		t.Errorf("status = %q", got)
	}
	eventually(t, "listening restarted", func() bool { return h.c.Snapshot().Listening })
}

func TestQueryFailureSpeaksFallback(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.Err = errors.New("upstream 503: overloaded")
	fallback := DefaultPhrases().Fallback

	h.activate(t)
	h.in.Emit("what is in front of me")
	eventually(t, "fallback spoken", func() bool { return h.out.Count(fallback) == 1 })

	for _, s := range h.out.Spoken() {
		if strings.Contains(s, "503") || strings.Contains(s, "overloaded") {
			t.Errorf("raw error surfaced to user: %q", s)
		}
	}
	if got, want := h.c.Snapshot().StatusText, `Processing: "what is in front of me"`; got != want {
		t.Errorf("status = %q, want %q", got, want)
	}
	eventually(t, "listening restarted", func() bool { return h.c.Snapshot().Listening })
}

func TestStaleQueryResultDiscarded(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, nil)
	h.backend.QueryFunc = func(ctx context.Context, utterance, scene string) (string, error) {
		<-release
		return "late answer", nil
	}

	h.activate(t)
	h.in.Emit("where is the door")
	eventually(t, "query in flight", func() bool { return len(h.backend.Calls()) == 1 })

	if _, err := h.c.Deactivate(context.Background()); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	close(release)
	time.Sleep(50 * time.Millisecond)

	if h.out.Count("late answer") != 0 {
		t.Error("stale answer spoken after deactivation")
	}
	if got := h.c.Snapshot().StatusText; got != StatusIdle {
		t.Errorf("status = %q, want %q", got, StatusIdle)
	}
}

func TestRecognitionErrorLeavesState(t *testing.T) {
	h := newHarness(t, nil)
	h.activate(t)
	eventually(t, "listening", func() bool { return h.c.Snapshot().Listening })

	h.in.EmitError(errors.New("no match"))
	time.Sleep(20 * time.Millisecond)

	snap := h.c.Snapshot()
	if !snap.Active || !snap.Listening {
		t.Errorf("state changed after recognition error: active=%v listening=%v", snap.Active, snap.Listening)
	}
}

func TestListeningImpliesActive(t *testing.T) {
	h := newHarness(t, nil)

	h.activate(t)
	h.in.Emit("what is here")
	eventually(t, "answer", func() bool { return len(h.backend.Calls()) == 1 })
	h.in.Emit("stop")
	eventually(t, "deactivation", func() bool { return !h.c.Snapshot().Active })
	time.Sleep(20 * time.Millisecond)

	for i, s := range h.snapshots() {
		if s.Listening && !s.Active {
			t.Fatalf("snapshot %d: listening while idle", i)
		}
	}
}

func TestWakeListening(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		h := newHarness(t, nil)
		eventually(t, "wake listening", h.in.Running)
		if h.c.Snapshot().Listening {
			t.Error("session reports listening while idle")
		}
	})

	t.Run("disabled", func(t *testing.T) {
		h := newHarness(t, func(c *Config) { c.WakeListening = false })
		time.Sleep(20 * time.Millisecond)
		if starts, _ := h.in.Counts(); starts != 0 {
			t.Errorf("speech input started %d times with wake listening off", starts)
		}
		if _, err := h.c.Activate(context.Background()); err != nil {
			t.Fatal(err)
		}
		eventually(t, "conversational listening", func() bool { return h.c.Snapshot().Listening })
	})
}

func TestToggleAndAsk(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if ok, err := h.c.Ask(ctx, "anything"); err != nil || ok {
		t.Errorf("Ask while idle = (%v, %v), want (false, nil)", ok, err)
	}

	active, err := h.c.Toggle(ctx)
	if err != nil || !active {
		t.Fatalf("Toggle from idle = (%v, %v)", active, err)
	}

	if ok, err := h.c.Ask(ctx, "Is the path clear?"); err != nil || !ok {
		t.Errorf("Ask while active = (%v, %v)", ok, err)
	}
	eventually(t, "ask dispatched", func() bool { return len(h.backend.Calls()) == 1 })

	active, err = h.c.Toggle(ctx)
	if err != nil || active {
		t.Fatalf("Toggle from active = (%v, %v)", active, err)
	}
}

func TestInitialStatusAndNotRunning(t *testing.T) {
	c, err := New(DefaultConfig(), nil, &MockSpeechOutput{}, &MockDetector{}, &MockBackend{},
		WithInitialStatus(StatusLoading))
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Snapshot().StatusText; got != StatusLoading {
		t.Errorf("status = %q, want %q", got, StatusLoading)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	if _, err := c.Activate(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Activate after Run returned: err = %v, want ErrNotRunning", err)
	}
}

func TestNewRequiresCapabilities(t *testing.T) {
	cfg := DefaultConfig()
	if _, err := New(cfg, nil, nil, &MockDetector{}, &MockBackend{}); err == nil {
		t.Error("expected error without speech output")
	}
	if _, err := New(cfg, nil, &MockSpeechOutput{}, nil, &MockBackend{}); err == nil {
		t.Error("expected error without detector")
	}
	if _, err := New(cfg, nil, &MockSpeechOutput{}, &MockDetector{}, nil); err == nil {
		t.Error("expected error without backend")
	}
	cfg.DetectionInterval = 0
	if _, err := New(cfg, nil, &MockSpeechOutput{}, &MockDetector{}, &MockBackend{}); err == nil {
		t.Error("expected error for invalid config")
	}
}

func TestBackendErrorWrapping(t *testing.T) {
	cause := errors.New("timeout")
	err := error(&BackendError{Backend: "openai", Err: cause})
	if !errors.Is(err, ErrBackend) || !errors.Is(err, cause) {
		t.Errorf("BackendError does not unwrap to ErrBackend and cause: %v", err)
	}
	var be *BackendError
	if !errors.As(err, &be) || be.Backend != "openai" {
		t.Errorf("errors.As failed: %v", err)
	}
}

func TestMissingCameraKeepsLoadingStatus(t *testing.T) {
	h := newHarness(t, nil, WithCamera(nil), WithInitialStatus(StatusLoading))

	h.activate(t)
	if got := h.c.Snapshot().StatusText; got != StatusLoading {
		t.Errorf("active status = %q, want %q", got, StatusLoading)
	}

	h.in.Emit("stop")
	eventually(t, "deactivation", func() bool { return !h.c.Snapshot().Active })
	if got := h.c.Snapshot().StatusText; got != StatusLoading {
		t.Errorf("stopped status = %q, want %q", got, StatusLoading)
	}
	if got := h.cam.Captures(); got != 0 {
		t.Errorf("captured %d frames without a camera", got)
	}
}

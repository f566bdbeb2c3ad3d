package guidance

import (
	"context"
	"sync"
	"time"
)

// MockSpeechInput is a SpeechInput driven by Emit. It records Start and
// Stop calls.
type MockSpeechInput struct {
	mu       sync.Mutex
	results  chan Recognition
	running  bool
	starts   int
	stops    int
	StartErr error
}

// NewMockSpeechInput returns a mock with a buffered result channel.
func NewMockSpeechInput() *MockSpeechInput {
	return &MockSpeechInput{results: make(chan Recognition, 32)}
}

func (m *MockSpeechInput) Start(ctx context.Context, locale string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	if m.StartErr != nil {
		return m.StartErr
	}
	m.running = true
	return nil
}

func (m *MockSpeechInput) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	m.running = false
	return nil
}

func (m *MockSpeechInput) Results() <-chan Recognition {
	return m.results
}

// Emit delivers an utterance with the given candidates.
func (m *MockSpeechInput) Emit(candidates ...string) {
	m.results <- Recognition{Candidates: candidates}
}

// EmitError delivers a recognition failure.
func (m *MockSpeechInput) EmitError(err error) {
	m.results <- Recognition{Err: err}
}

// Running reports whether the last call was Start.
func (m *MockSpeechInput) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Counts returns the number of Start and Stop calls.
func (m *MockSpeechInput) Counts() (starts, stops int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts, m.stops
}

// MockSpeechOutput records everything it is asked to speak.
type MockSpeechOutput struct {
	mu     sync.Mutex
	spoken []string

	// Latency simulates playback time.
	Latency time.Duration
	Err     error
}

func (m *MockSpeechOutput) Speak(ctx context.Context, text string) error {
	m.mu.Lock()
	m.spoken = append(m.spoken, text)
	latency, err := m.Latency, m.Err
	m.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// Spoken returns a copy of every utterance so far.
func (m *MockSpeechOutput) Spoken() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.spoken))
	copy(out, m.spoken)
	return out
}

// Count returns how many times text was spoken.
func (m *MockSpeechOutput) Count(text string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.spoken {
		if s == text {
			n++
		}
	}
	return n
}

// MockDetector returns Objects (or DetectFunc's result) and counts calls.
type MockDetector struct {
	mu         sync.Mutex
	calls      int
	Objects    []DetectedObject
	Err        error
	DetectFunc func(ctx context.Context, frame Frame) ([]DetectedObject, error)
}

func (m *MockDetector) Detect(ctx context.Context, frame Frame) ([]DetectedObject, error) {
	m.mu.Lock()
	m.calls++
	fn, objs, err := m.DetectFunc, m.Objects, m.Err
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, frame)
	}
	return objs, err
}

// Calls returns the number of Detect calls.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// SetObjects replaces the canned result.
func (m *MockDetector) SetObjects(objs []DetectedObject) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects = objs
}

// QueryCall records one Query invocation.
type QueryCall struct {
	Utterance string
	Scene     string
}

// MockBackend answers queries with Response or QueryFunc.
type MockBackend struct {
	mu        sync.Mutex
	calls     []QueryCall
	Response  string
	Err       error
	QueryFunc func(ctx context.Context, utterance, scene string) (string, error)
}

func (m *MockBackend) Query(ctx context.Context, utterance, scene string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, QueryCall{Utterance: utterance, Scene: scene})
	fn, resp, err := m.QueryFunc, m.Response, m.Err
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, utterance, scene)
	}
	return resp, err
}

// Calls returns a copy of the recorded queries.
func (m *MockBackend) Calls() []QueryCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]QueryCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// MockCamera returns a fixed frame.
type MockCamera struct {
	mu          sync.Mutex
	captures    int
	Unavailable bool
	Err         error
}

func (m *MockCamera) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.Unavailable
}

func (m *MockCamera) Capture(ctx context.Context) (Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captures++
	if m.Err != nil {
		return Frame{}, m.Err
	}
	return Frame{Data: []byte{0xff, 0xd8, 0xff, 0xd9}, Width: 640, Height: 480, CapturedAt: time.Now()}, nil
}

// Captures returns the number of Capture calls.
func (m *MockCamera) Captures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.captures
}

var (
	_ SpeechInput   = (*MockSpeechInput)(nil)
	_ SpeechOutput  = (*MockSpeechOutput)(nil)
	_ Detector      = (*MockDetector)(nil)
	_ QueryBackend  = (*MockBackend)(nil)
	_ CaptureDevice = (*MockCamera)(nil)
)

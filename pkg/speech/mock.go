package speech

import (
	"context"
	"sync"

	"github.com/teslashibe/go-guide/pkg/audioio"
)

// MockTranscriber implements Transcriber for testing.
type MockTranscriber struct {
	// TranscribeFunc is called when Transcribe is invoked.
	TranscribeFunc func(ctx context.Context, audio audioio.AudioChunk, locale string) ([]string, error)

	mu      sync.Mutex
	audio   []audioio.AudioChunk
	locales []string
}

// NewMockTranscriber returns a mock that always hears candidates.
func NewMockTranscriber(candidates ...string) *MockTranscriber {
	return &MockTranscriber{
		TranscribeFunc: func(ctx context.Context, audio audioio.AudioChunk, locale string) ([]string, error) {
			return candidates, nil
		},
	}
}

// NewMockScript returns a mock that replies with each entry in turn and
// then repeats the last one.
func NewMockScript(replies ...string) *MockTranscriber {
	var (
		mu sync.Mutex
		i  int
	)
	return &MockTranscriber{
		TranscribeFunc: func(ctx context.Context, audio audioio.AudioChunk, locale string) ([]string, error) {
			mu.Lock()
			defer mu.Unlock()
			if len(replies) == 0 {
				return nil, ErrNoMatch
			}
			r := replies[min(i, len(replies)-1)]
			i++
			return []string{r}, nil
		},
	}
}

// Transcribe records the call and delegates to TranscribeFunc.
func (m *MockTranscriber) Transcribe(ctx context.Context, audio audioio.AudioChunk, locale string) ([]string, error) {
	m.mu.Lock()
	m.audio = append(m.audio, audio)
	m.locales = append(m.locales, locale)
	fn := m.TranscribeFunc
	m.mu.Unlock()

	if fn == nil {
		return nil, ErrNoMatch
	}
	return fn(ctx, audio, locale)
}

// Name returns "mock".
func (m *MockTranscriber) Name() string { return "mock" }

// Calls returns the number of Transcribe calls.
func (m *MockTranscriber) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.audio)
}

// Utterances returns a copy of every utterance transcribed.
func (m *MockTranscriber) Utterances() []audioio.AudioChunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]audioio.AudioChunk, len(m.audio))
	copy(out, m.audio)
	return out
}

// Locales returns the locale passed to each call.
func (m *MockTranscriber) Locales() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.locales))
	copy(out, m.locales)
	return out
}

var _ Transcriber = (*MockTranscriber)(nil)

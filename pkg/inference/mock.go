package inference

import (
	"context"
	"sync"
)

// Mock is a scripted Provider. Capabilities follow which funcs are set, so
// clearing VisionFunc makes a chat-only provider.
type Mock struct {
	ChatFunc   func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	VisionFunc func(ctx context.Context, req *VisionRequest) (*VisionResponse, error)
	HealthFunc func(ctx context.Context) error

	mu      sync.Mutex
	counts  map[string]int
	chats   []ChatRequest
	visions []VisionRequest
}

// NewMock answers chat with "Mock response" and vision with "I see a mock image".
func NewMock() *Mock {
	return NewMockReply("Mock response")
}

// NewMockReply returns a mock whose Chat always answers with text.
func NewMockReply(text string) *Mock {
	return &Mock{
		ChatFunc: func(context.Context, *ChatRequest) (*ChatResponse, error) {
			return &ChatResponse{
				Message:      NewAssistantMessage(text),
				FinishReason: "stop",
				Usage:        Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
			}, nil
		},
		VisionFunc: func(context.Context, *VisionRequest) (*VisionResponse, error) {
			return &VisionResponse{
				Content: "I see a mock image",
				Usage:   Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
			}, nil
		},
	}
}

// WithError returns a mock on which every call fails with err.
func WithError(err error) *Mock {
	return &Mock{
		ChatFunc:   func(context.Context, *ChatRequest) (*ChatResponse, error) { return nil, err },
		VisionFunc: func(context.Context, *VisionRequest) (*VisionResponse, error) { return nil, err },
		HealthFunc: func(context.Context) error { return err },
	}
}

func (m *Mock) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	m.count("Chat")
	m.chats = append(m.chats, *req)
	fn := m.ChatFunc
	m.mu.Unlock()

	if fn == nil {
		return nil, WrapError("mock", ErrProviderUnavailable)
	}
	return fn(ctx, req)
}

func (m *Mock) Vision(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
	m.mu.Lock()
	m.count("Vision")
	m.visions = append(m.visions, *req)
	fn := m.VisionFunc
	m.mu.Unlock()

	if fn == nil {
		return nil, WrapError("mock", ErrVisionNotSupported)
	}
	return fn(ctx, req)
}

func (m *Mock) Capabilities() Capabilities {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Capabilities{Chat: m.ChatFunc != nil, Vision: m.VisionFunc != nil}
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

func (m *Mock) Close() error { return nil }

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

// LastChat returns a copy of the most recent chat request, or nil.
func (m *Mock) LastChat() *ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.chats) == 0 {
		return nil
	}
	req := m.chats[len(m.chats)-1]
	return &req
}

// LastVision returns a copy of the most recent vision request, or nil.
func (m *Mock) LastVision() *VisionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.visions) == 0 {
		return nil
	}
	req := m.visions[len(m.visions)-1]
	return &req
}

var _ Provider = (*Mock)(nil)

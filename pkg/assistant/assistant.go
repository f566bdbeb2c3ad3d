// Package assistant answers the user's spoken questions with an LLM, using
// the detector's scene context as grounding.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teslashibe/go-guide/pkg/guidance"
	"github.com/teslashibe/go-guide/pkg/inference"
)

// Fallback replies used when the provider fails and Fallback is enabled.
const (
	FallbackSceneFormat = "I can see: %s"
	FallbackTrouble     = "Sorry, I am having trouble processing that right now"
)

// Config controls prompt and generation settings.
type Config struct {
	Instructions string  `yaml:"instructions"`
	Model        string  `yaml:"model"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float64 `yaml:"temperature"`

	// Fallback answers from the scene on provider failure instead of
	// returning an error.
	Fallback bool `yaml:"fallback"`

	DescribeMaxTokens int    `yaml:"describe_max_tokens"`
	DescribeDetail    string `yaml:"describe_detail"`
}

// DefaultConfig returns the settings used for short spoken answers.
func DefaultConfig() Config {
	return Config{
		Instructions:      GuideInstructions,
		MaxTokens:         150,
		Temperature:       0.7,
		Fallback:          true,
		DescribeMaxTokens: 200,
		DescribeDetail:    inference.DetailLow,
	}
}

// Assistant implements guidance.QueryBackend on top of an inference.Provider.
type Assistant struct {
	provider inference.Provider
	name     string
	cfg      Config
	logger   *slog.Logger
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assistant) { a.logger = l }
}

// WithName labels the backend in errors and logs.
func WithName(name string) Option {
	return func(a *Assistant) { a.name = name }
}

// New creates an Assistant.
func New(provider inference.Provider, cfg Config, opts ...Option) (*Assistant, error) {
	if provider == nil {
		return nil, errors.New("assistant: provider required")
	}
	if cfg.Instructions == "" {
		cfg.Instructions = GuideInstructions
	}
	a := &Assistant{
		provider: provider,
		name:     "llm",
		cfg:      cfg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "assistant")
	return a, nil
}

// Query answers utterance given the current scene context.
func (a *Assistant) Query(ctx context.Context, utterance, scene string) (string, error) {
	start := time.Now()

	resp, err := a.provider.Chat(ctx, &inference.ChatRequest{
		Model: a.cfg.Model,
		Messages: []inference.Message{
			inference.NewSystemMessage(SystemPrompt(a.cfg.Instructions, scene)),
			inference.NewUserMessage(utterance),
		},
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	})

	var answer string
	if err == nil {
		answer = strings.TrimSpace(resp.Message.Content)
		if answer == "" {
			err = inference.ErrEmptyResponse
		}
	}

	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		a.logger.Warn("query failed", "error", err, "fallback", a.cfg.Fallback)
		if a.cfg.Fallback {
			return FallbackAnswer(scene), nil
		}
		return "", &guidance.BackendError{Backend: a.name, Err: err}
	}

	a.logger.Debug("query answered",
		"latency_ms", time.Since(start).Milliseconds(),
		"tokens", resp.Usage.TotalTokens,
	)
	return answer, nil
}

// Describe asks a vision model to describe the frame.
func (a *Assistant) Describe(ctx context.Context, frame guidance.Frame) (string, error) {
	if len(frame.Data) == 0 {
		return "", fmt.Errorf("assistant: empty frame: %w", guidance.ErrCapture)
	}
	if !a.provider.Capabilities().Vision {
		return "", &guidance.BackendError{Backend: a.name, Err: inference.ErrVisionNotSupported}
	}

	resp, err := a.provider.Vision(ctx, &inference.VisionRequest{
		Image:     frame.Data,
		Prompt:    DescribePrompt,
		Detail:    a.cfg.DescribeDetail,
		MaxTokens: a.cfg.DescribeMaxTokens,
	})
	if err != nil {
		return "", &guidance.BackendError{Backend: a.name, Err: err}
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", &guidance.BackendError{Backend: a.name, Err: inference.ErrEmptyResponse}
	}
	return text, nil
}

// FallbackAnswer is the reply given when the provider cannot answer.
func FallbackAnswer(scene string) string {
	if scene = strings.TrimSpace(scene); scene != "" {
		return fmt.Sprintf(FallbackSceneFormat, scene)
	}
	return FallbackTrouble
}

// Verify Assistant implements guidance.QueryBackend at compile time.
var _ guidance.QueryBackend = (*Assistant)(nil)

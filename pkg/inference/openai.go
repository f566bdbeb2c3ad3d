package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/teslashibe/go-guide/internal/httpc"
)

const providerOpenAI = "openai"

// OpenAI is a Provider backed by the official OpenAI Go SDK.
type OpenAI struct {
	client oai.Client
	config *Config
	http   *http.Client
	logger *slog.Logger
}

// NewOpenAI creates an OpenAI provider. An API key is required.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	hc := httpc.NewClient(cfg.Timeout)
	clientOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(hc),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAI{
		client: oai.NewClient(clientOpts...),
		config: cfg,
		http:   hc,
		logger: cfg.Logger.With("component", "inference.openai"),
	}, nil
}

// Chat generates a chat completion.
func (o *OpenAI) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = o.config.Model
	}

	messages := make([]oai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			messages = append(messages, oai.SystemMessage(m.Content))
		case RoleAssistant:
			messages = append(messages, oai.AssistantMessage(m.Content))
		default:
			messages = append(messages, oai.UserMessage(m.Content))
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, o.params(model, messages, req.MaxTokens, req.Temperature))
	if err != nil {
		return nil, o.wrap(err)
	}
	if len(resp.Choices) == 0 {
		return nil, WrapError(providerOpenAI, ErrEmptyResponse)
	}

	choice := resp.Choices[0]
	return &ChatResponse{
		Message:      NewAssistantMessage(choice.Message.Content),
		FinishReason: choice.FinishReason,
		Usage:        sdkUsage(resp.Usage),
		Model:        resp.Model,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

// Vision analyzes a JPEG image with a prompt.
func (o *OpenAI) Vision(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = o.config.VisionModel
	}

	parts := []oai.ChatCompletionContentPartUnionParam{oai.TextContentPart(req.Prompt)}
	if len(req.Image) > 0 {
		parts = append(parts, oai.ImageContentPart(oai.ChatCompletionContentPartImageImageURLParam{
			URL:    jpegDataURL(req.Image),
			Detail: req.Detail,
		}))
	}

	var messages []oai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, oai.SystemMessage(req.System))
	}
	messages = append(messages, oai.UserMessage(parts))

	resp, err := o.client.Chat.Completions.New(ctx, o.params(model, messages, req.MaxTokens, req.Temperature))
	if err != nil {
		return nil, o.wrap(err)
	}
	if len(resp.Choices) == 0 {
		return nil, WrapError(providerOpenAI, ErrEmptyResponse)
	}

	return &VisionResponse{
		Content:   resp.Choices[0].Message.Content,
		Usage:     sdkUsage(resp.Usage),
		Model:     resp.Model,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Capabilities returns what this provider supports.
func (o *OpenAI) Capabilities() Capabilities {
	return Capabilities{Chat: true, Vision: true}
}

// Health lists models to validate the key and connectivity.
func (o *OpenAI) Health(ctx context.Context) error {
	if _, err := o.client.Models.List(ctx); err != nil {
		return o.wrap(fmt.Errorf("health check: %w", err))
	}
	return nil
}

// Close releases idle connections.
func (o *OpenAI) Close() error {
	o.http.CloseIdleConnections()
	return nil
}

func (o *OpenAI) params(model string, messages []oai.ChatCompletionMessageParamUnion, maxTokens int, temp float64) oai.ChatCompletionNewParams {
	p := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: messages,
	}
	if n := o.config.maxTokens(maxTokens); n > 0 {
		p.MaxCompletionTokens = param.NewOpt(int64(n))
	}
	if t := o.config.temperature(temp); t > 0 {
		p.Temperature = param.NewOpt(t)
	}
	return p
}

// wrap converts SDK errors into APIError so callers can inspect status codes.
func (o *OpenAI) wrap(err error) error {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		return &APIError{
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Message,
			Code:       apiErr.Code,
			Provider:   providerOpenAI,
		}
	}
	return WrapError(providerOpenAI, err)
}

func sdkUsage(u oai.CompletionUsage) Usage {
	return Usage{
		PromptTokens:     int(u.PromptTokens),
		CompletionTokens: int(u.CompletionTokens),
		TotalTokens:      int(u.TotalTokens),
	}
}

// Verify OpenAI implements Provider at compile time.
var _ Provider = (*OpenAI)(nil)

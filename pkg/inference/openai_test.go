package inference

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestOpenAIChat(t *testing.T) {
	server := completionServer(t, func(r *http.Request, body map[string]any) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		if body["model"] != "gpt-4o-mini" {
			t.Errorf("model = %v", body["model"])
		}
		if body["max_completion_tokens"] != float64(150) {
			t.Errorf("max_completion_tokens = %v, want 150", body["max_completion_tokens"])
		}
		if body["temperature"] != 0.7 {
			t.Errorf("temperature = %v, want 0.7", body["temperature"])
		}
	})

	p, err := NewOpenAI(WithAPIKey("sk-test"), WithBaseURL(server.URL), WithRetry(0, 0))
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	defer p.Close()

	resp, err := p.Chat(context.Background(), &ChatRequest{
		Messages: []Message{NewSystemMessage("guide"), NewUserMessage("what is ahead")},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.Content != "A chair is in front of you." {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if resp.Usage.PromptTokens != 10 {
		t.Errorf("prompt tokens = %d, want 10", resp.Usage.PromptTokens)
	}
}

func TestOpenAIVision(t *testing.T) {
	server := completionServer(t, func(r *http.Request, body map[string]any) {
		msgs := body["messages"].([]any)
		user := msgs[len(msgs)-1].(map[string]any)
		parts, ok := user["content"].([]any)
		if !ok || len(parts) != 2 {
			t.Fatalf("content = %v, want two parts", user["content"])
		}
	})

	p, err := NewOpenAI(WithAPIKey("sk-test"), WithBaseURL(server.URL), WithRetry(0, 0))
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}

	if _, err := p.Vision(context.Background(), &VisionRequest{
		Image:  []byte{0xff, 0xd8},
		Prompt: "describe",
		Detail: DetailLow,
	}); err != nil {
		t.Fatalf("Vision: %v", err)
	}
}

func TestOpenAIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error","code":"invalid_api_key"}}`)
	}))
	defer server.Close()

	p, err := NewOpenAI(WithAPIKey("sk-bad"), WithBaseURL(server.URL), WithRetry(0, 0), WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}

	_, err = p.Chat(context.Background(), &ChatRequest{Messages: []Message{NewUserMessage("hi")}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if !apiErr.IsUnauthorized() {
		t.Errorf("status = %d, want 401", apiErr.StatusCode)
	}
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	if _, err := NewOpenAI(); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("error = %v, want ErrNoAPIKey", err)
	}
}

func TestGeminiChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-2.0-flash:generateContent") {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body struct {
			Contents []struct {
				Role  string `json:"role"`
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
			SystemInstruction *struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"systemInstruction"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if len(body.Contents) != 2 || body.Contents[0].Role != "user" || body.Contents[1].Role != "model" {
			t.Errorf("contents = %+v, want user then model turns", body.Contents)
		}
		if body.SystemInstruction == nil || len(body.SystemInstruction.Parts) == 0 || body.SystemInstruction.Parts[0].Text != "guide" {
			t.Errorf("system instruction = %+v", body.SystemInstruction)
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"A bench is on your left."}]},"finishReason":"STOP"}],`+
			`"usageMetadata":{"promptTokenCount":12,"candidatesTokenCount":6,"totalTokenCount":18}}`)
	}))
	defer server.Close()

	p, err := NewGemini(context.Background(), WithAPIKey("g-test"), WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	defer p.Close()

	resp, err := p.Chat(context.Background(), &ChatRequest{
		Messages: []Message{
			NewSystemMessage("guide"),
			NewUserMessage("hello"),
			NewAssistantMessage("hi"),
		},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.Content != "A bench is on your left." {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("finish reason = %q, want stop", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 18 {
		t.Errorf("total tokens = %d, want 18", resp.Usage.TotalTokens)
	}
}

func TestNewGeminiRequiresKey(t *testing.T) {
	if _, err := NewGemini(context.Background()); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("error = %v, want ErrNoAPIKey", err)
	}
}

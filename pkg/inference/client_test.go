package inference

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const completionJSON = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [{
    "index": 0,
    "message": {"role": "assistant", "content": "A chair is in front of you."},
    "finish_reason": "stop"
  }],
  "usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

func completionServer(t *testing.T, inspect func(r *http.Request, body map[string]any)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if inspect != nil {
			inspect(r, body)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, completionJSON)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClientChat(t *testing.T) {
	server := completionServer(t, func(r *http.Request, body map[string]any) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if body["model"] != "llama3" {
			t.Errorf("model = %v, want llama3", body["model"])
		}
		if body["max_tokens"] != float64(150) {
			t.Errorf("max_tokens = %v, want 150", body["max_tokens"])
		}
		msgs := body["messages"].([]any)
		if len(msgs) != 2 {
			t.Fatalf("messages = %d, want 2", len(msgs))
		}
		first := msgs[0].(map[string]any)
		if first["role"] != "system" || first["content"] != "be brief" {
			t.Errorf("first message = %v", first)
		}
	})

	client, err := NewClient(
		WithBaseURL(server.URL+"/"),
		WithAPIKey("test-key"),
		WithModel("llama3"),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	resp, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{NewSystemMessage("be brief"), NewUserMessage("what is ahead")},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.Content != "A chair is in front of you." {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if resp.Message.Role != RoleAssistant {
		t.Errorf("role = %q", resp.Message.Role)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("total tokens = %d, want 15", resp.Usage.TotalTokens)
	}
}

func TestClientVision(t *testing.T) {
	server := completionServer(t, func(r *http.Request, body map[string]any) {
		msgs := body["messages"].([]any)
		user := msgs[len(msgs)-1].(map[string]any)
		parts := user["content"].([]any)
		if len(parts) != 2 {
			t.Fatalf("parts = %d, want 2", len(parts))
		}
		img := parts[1].(map[string]any)["image_url"].(map[string]any)
		if !strings.HasPrefix(img["url"].(string), "data:image/jpeg;base64,") {
			t.Errorf("url = %v", img["url"])
		}
		if img["detail"] != DetailLow {
			t.Errorf("detail = %v, want low", img["detail"])
		}
	})

	client, err := NewClient(WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	resp, err := client.Vision(context.Background(), &VisionRequest{
		Image:  []byte{0xff, 0xd8, 0xff},
		Prompt: "describe",
		Detail: DetailLow,
	})
	if err != nil {
		t.Fatalf("Vision: %v", err)
	}
	if resp.Content == "" {
		t.Error("empty content")
	}
}

func TestClientRetries(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			io.WriteString(w, `{"error":{"message":"overloaded"}}`)
			return
		}
		io.WriteString(w, completionJSON)
	}))
	defer server.Close()

	client, err := NewClient(WithBaseURL(server.URL), WithRetry(2, time.Millisecond))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if _, err := client.Chat(context.Background(), &ChatRequest{Messages: []Message{NewUserMessage("hi")}}); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("hits = %d, want 2", got)
	}
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
		message   string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key","code":"invalid_api_key"}}`, false, "bad key"},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, true, "slow down"},
		{"plain body", http.StatusBadRequest, "nope", false, "nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			client, _ := NewClient(WithBaseURL(server.URL), WithRetry(0, 0))
			_, err := client.Chat(context.Background(), &ChatRequest{Messages: []Message{NewUserMessage("hi")}})

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *APIError", err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if apiErr.IsRetryable() != tt.retryable {
				t.Errorf("retryable = %v, want %v", apiErr.IsRetryable(), tt.retryable)
			}
			if apiErr.Message != tt.message {
				t.Errorf("message = %q, want %q", apiErr.Message, tt.message)
			}
		})
	}
}

func TestClientEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[]}`)
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL))
	_, err := client.Chat(context.Background(), &ChatRequest{Messages: []Message{NewUserMessage("hi")}})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("error = %v, want ErrEmptyResponse", err)
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Error("expected error without base URL")
	}
}

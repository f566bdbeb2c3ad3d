package speech

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-guide/pkg/audioio"
)

func TestEncodeWAV(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768}
	wav := EncodeWAV(samples, 16000, 1)

	if len(wav) != wavHeaderSize+len(samples)*2 {
		t.Fatalf("len = %d", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Errorf("bad chunk ids: %q %q %q", wav[0:4], wav[8:12], wav[36:40])
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 16000 {
		t.Errorf("sample rate = %d", rate)
	}
	if size := binary.LittleEndian.Uint32(wav[40:44]); size != uint32(len(samples)*2) {
		t.Errorf("data size = %d", size)
	}
	if got := int16(binary.LittleEndian.Uint16(wav[wavHeaderSize+6:])); got != 32767 {
		t.Errorf("sample 3 = %d, want 32767", got)
	}
}

func speechChunk() audioio.AudioChunk {
	return audioio.AudioChunk{Samples: tone(250*time.Millisecond, 0.5), SampleRate: testRate, Channels: 1}
}

func TestWhisperTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("model = %q", got)
		}
		if got := r.FormValue("language"); got != "en" {
			t.Errorf("language = %q", got)
		}
		if got := r.FormValue("prompt"); got != DefaultWhisperPrompt {
			t.Errorf("prompt = %q", got)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		head := make([]byte, 4)
		io.ReadFull(f, head)
		if string(head) != "RIFF" {
			t.Errorf("file header = %q, want RIFF", head)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"  Guide me.  "}`))
	}))
	defer server.Close()

	wh, err := NewWhisper("sk-test", WithWhisperBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewWhisper: %v", err)
	}

	got, err := wh.Transcribe(context.Background(), speechChunk(), "en-IN")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(got) != 1 || got[0] != "Guide me." {
		t.Errorf("candidates = %q", got)
	}
}

func TestWhisperRequiresKey(t *testing.T) {
	if _, err := NewWhisper(""); err == nil {
		t.Error("expected error without API key")
	}
}

// deepgramServer accepts one session, counts the audio it receives and
// replies with finals after CloseStream.
func deepgramServer(t *testing.T, inspect func(r *http.Request), replies ...string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inspect != nil {
			inspect(r)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		audioBytes := 0
		for {
			kind, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind == websocket.BinaryMessage {
				audioBytes += len(msg)
				continue
			}
			var ctl struct {
				Type string `json:"type"`
			}
			json.Unmarshal(msg, &ctl)
			if ctl.Type == "CloseStream" {
				break
			}
		}
		if audioBytes == 0 {
			t.Error("server received no audio")
		}

		for _, r := range replies {
			conn.WriteMessage(websocket.TextMessage, []byte(r))
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Metadata"}`))
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestDeepgramTranscribe(t *testing.T) {
	server := deepgramServer(t, func(r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token dg-test" {
			t.Errorf("Authorization = %q", got)
		}
		q := r.URL.Query()
		checks := map[string]string{
			"model":        DefaultDeepgramModel,
			"language":     "en-IN",
			"encoding":     "linear16",
			"sample_rate":  "16000",
			"channels":     "1",
			"alternatives": "2",
		}
		for k, want := range checks {
			if got := q.Get(k); got != want {
				t.Errorf("%s = %q, want %q", k, got, want)
			}
		}
		if got := q["keyterm"]; len(got) != 1 || got[0] != "guide me" {
			t.Errorf("keyterm = %v", got)
		}
	},
		`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"guide"}]}}`,
		`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"guide me","confidence":0.9},{"transcript":"guide be","confidence":0.4}]}}`,
		`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"now","confidence":0.8},{"transcript":"","confidence":0.1}]}}`,
	)
	defer server.Close()

	dg, err := NewDeepgram("dg-test",
		WithDeepgramEndpoint(wsURL(server)),
		WithAlternatives(2),
		WithKeyterms("guide me"),
		WithDeepgramTimeout(2*time.Second),
	)
	if err != nil {
		t.Fatalf("NewDeepgram: %v", err)
	}

	got, err := dg.Transcribe(context.Background(), speechChunk(), "en-IN")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	want := []string{"guide me now", "guide be"}
	if len(got) != len(want) {
		t.Fatalf("candidates = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDeepgramNothingHeard(t *testing.T) {
	server := deepgramServer(t, nil)
	defer server.Close()

	dg, _ := NewDeepgram("dg-test", WithDeepgramEndpoint(wsURL(server)))
	got, err := dg.Transcribe(context.Background(), speechChunk(), "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("candidates = %q, want none", got)
	}
}

func TestDeepgramDialError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	dg, _ := NewDeepgram("bad", WithDeepgramEndpoint(wsURL(server)))
	if _, err := dg.Transcribe(context.Background(), speechChunk(), "en"); err == nil {
		t.Fatal("expected dial error")
	} else if !strings.Contains(err.Error(), "401") {
		t.Errorf("err = %v, want status in message", err)
	}
}

func TestTranscribeEmptyAudio(t *testing.T) {
	wh, _ := NewWhisper("sk-test")
	dg, _ := NewDeepgram("dg-test")
	for _, tr := range []Transcriber{wh, dg} {
		t.Run(tr.Name(), func(t *testing.T) {
			_, err := tr.Transcribe(context.Background(), audioio.AudioChunk{SampleRate: testRate}, "en")
			if err != ErrNoMatch {
				t.Errorf("err = %v, want ErrNoMatch", err)
			}
		})
	}
}

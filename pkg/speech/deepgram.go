package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-guide/pkg/audioio"
)

const (
	deepgramEndpoint     = "wss://api.deepgram.com/v1/listen"
	DefaultDeepgramModel = "nova-3"

	deepgramFrame = 100 * time.Millisecond
)

// DeepgramOption configures a Deepgram transcriber.
type DeepgramOption func(*Deepgram)

// WithDeepgramModel sets the model (e.g. "nova-3", "nova-2").
func WithDeepgramModel(model string) DeepgramOption {
	return func(d *Deepgram) {
		d.model = model
	}
}

// WithDeepgramEndpoint overrides the websocket endpoint.
func WithDeepgramEndpoint(endpoint string) DeepgramOption {
	return func(d *Deepgram) {
		d.endpoint = endpoint
	}
}

// WithAlternatives asks for up to n candidates per utterance.
func WithAlternatives(n int) DeepgramOption {
	return func(d *Deepgram) {
		d.alternatives = max(1, n)
	}
}

// WithKeyterms boosts recognition of the given phrases.
func WithKeyterms(terms ...string) DeepgramOption {
	return func(d *Deepgram) {
		d.keyterms = append(d.keyterms, terms...)
	}
}

// WithDeepgramTimeout bounds one transcription round trip.
func WithDeepgramTimeout(t time.Duration) DeepgramOption {
	return func(d *Deepgram) {
		d.timeout = t
	}
}

// Deepgram transcribes utterances over the Deepgram streaming API. Each
// Transcribe call opens a session, streams the utterance, asks the server
// to flush and collects the final results.
type Deepgram struct {
	apiKey       string
	model        string
	endpoint     string
	alternatives int
	keyterms     []string
	timeout      time.Duration
	dialer       *websocket.Dialer
}

// NewDeepgram creates a Deepgram transcriber.
func NewDeepgram(apiKey string, opts ...DeepgramOption) (*Deepgram, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram: %w", ErrNoAPIKey)
	}
	d := &Deepgram{
		apiKey:       apiKey,
		model:        DefaultDeepgramModel,
		endpoint:     deepgramEndpoint,
		alternatives: 3,
		timeout:      15 * time.Second,
	}
	for _, o := range opts {
		o(d)
	}
	d.dialer = &websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	return d, nil
}

// Name returns "deepgram".
func (d *Deepgram) Name() string { return "deepgram" }

// deepgramResponse is a Results or Metadata event.
type deepgramResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// Transcribe streams audio and returns the final transcript alternatives.
func (d *Deepgram) Transcribe(ctx context.Context, audio audioio.AudioChunk, locale string) ([]string, error) {
	if len(audio.Samples) == 0 {
		return nil, ErrNoMatch
	}
	channels := max(1, audio.Channels)

	u, err := d.buildURL(audio.SampleRate, channels, locale)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.apiKey)

	conn, resp, err := d.dialer.DialContext(ctx, u, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("deepgram: dial: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}
	defer conn.Close()

	// Unblocks ReadMessage when ctx ends.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	deadline := time.Now().Add(d.timeout)
	conn.SetReadDeadline(deadline)
	conn.SetWriteDeadline(deadline)

	sent := make(chan error, 1)
	go func() { sent <- d.send(conn, audio, channels) }()

	parts := make([][]string, d.alternatives)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			return nil, fmt.Errorf("deepgram: read: %w", err)
		}

		var r deepgramResponse
		if err := json.Unmarshal(msg, &r); err != nil {
			continue
		}
		if r.Type == "Metadata" {
			break
		}
		if r.Type != "Results" || !r.IsFinal {
			continue
		}
		for i := range parts {
			if i < len(r.Channel.Alternatives) {
				parts[i] = append(parts[i], r.Channel.Alternatives[i].Transcript)
			}
		}
	}

	if err := <-sent; err != nil && ctx.Err() == nil {
		return nil, fmt.Errorf("deepgram: send: %w", err)
	}
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	candidates := make([]string, 0, len(parts))
	for _, p := range parts {
		candidates = append(candidates, strings.Join(strings.Fields(strings.Join(p, " ")), " "))
	}
	return cleanCandidates(candidates), nil
}

// send writes the audio in fixed frames and then asks the server to flush.
func (d *Deepgram) send(conn *websocket.Conn, audio audioio.AudioChunk, channels int) error {
	step := max(1, int(deepgramFrame.Seconds()*float64(audio.SampleRate))) * channels
	for off := 0; off < len(audio.Samples); off += step {
		end := min(off+step, len(audio.Samples))
		if err := conn.WriteMessage(websocket.BinaryMessage, audioio.SamplesToBytes(audio.Samples[off:end])); err != nil {
			return err
		}
	}
	return conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
}

func (d *Deepgram) buildURL(sampleRate, channels int, locale string) (string, error) {
	if sampleRate <= 0 {
		return "", errors.New("sample rate required")
	}
	u, err := url.Parse(d.endpoint)
	if err != nil {
		return "", err
	}

	lang := strings.TrimSpace(locale)
	if lang == "" {
		lang = "en"
	}

	q := u.Query()
	q.Set("model", d.model)
	q.Set("language", lang)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(sampleRate))
	q.Set("channels", strconv.Itoa(channels))
	q.Set("punctuate", "true")
	if d.alternatives > 1 {
		q.Set("alternatives", strconv.Itoa(d.alternatives))
	}
	for _, k := range d.keyterms {
		q.Add("keyterm", k)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

var _ Transcriber = (*Deepgram)(nil)

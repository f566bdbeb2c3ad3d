package speech

import (
	"bytes"
	"context"
	"fmt"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/teslashibe/go-guide/internal/httpc"
	"github.com/teslashibe/go-guide/pkg/audioio"
)

// DefaultWhisperPrompt biases recognition toward the control phrases.
const DefaultWhisperPrompt = "Guide me. Stop. Exit."

// WhisperOption configures a Whisper transcriber.
type WhisperOption func(*Whisper)

// WithWhisperModel sets the transcription model.
func WithWhisperModel(model string) WhisperOption {
	return func(w *Whisper) {
		w.model = model
	}
}

// WithWhisperBaseURL points the client at an OpenAI-compatible server.
func WithWhisperBaseURL(url string) WhisperOption {
	return func(w *Whisper) {
		w.baseURL = url
	}
}

// WithWhisperPrompt replaces the vocabulary prompt. Empty disables it.
func WithWhisperPrompt(prompt string) WhisperOption {
	return func(w *Whisper) {
		w.prompt = prompt
	}
}

// WithWhisperTimeout sets the HTTP timeout.
func WithWhisperTimeout(d time.Duration) WhisperOption {
	return func(w *Whisper) {
		w.timeout = d
	}
}

// Whisper transcribes utterances with the OpenAI audio transcription API.
// It returns a single candidate.
type Whisper struct {
	client  oai.Client
	model   string
	prompt  string
	baseURL string
	timeout time.Duration
}

// NewWhisper creates a Whisper transcriber.
func NewWhisper(apiKey string, opts ...WhisperOption) (*Whisper, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("whisper: %w", ErrNoAPIKey)
	}
	w := &Whisper{
		model:   string(oai.AudioModelWhisper1),
		prompt:  DefaultWhisperPrompt,
		timeout: 20 * time.Second,
	}
	for _, o := range opts {
		o(w)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpc.NewClient(w.timeout)),
		option.WithMaxRetries(1),
	}
	if w.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(w.baseURL))
	}
	w.client = oai.NewClient(clientOpts...)
	return w, nil
}

// Name returns "whisper".
func (w *Whisper) Name() string { return "whisper" }

// Transcribe uploads audio as WAV and returns the transcript.
func (w *Whisper) Transcribe(ctx context.Context, audio audioio.AudioChunk, locale string) ([]string, error) {
	if len(audio.Samples) == 0 {
		return nil, ErrNoMatch
	}
	wav := EncodeWAV(audio.Samples, audio.SampleRate, max(1, audio.Channels))

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "utterance.wav", "audio/wav"),
		Model: oai.AudioModel(w.model),
	}
	if lang := Language(locale); lang != "" {
		params.Language = param.NewOpt(lang)
	}
	if w.prompt != "" {
		params.Prompt = param.NewOpt(w.prompt)
	}

	res, err := w.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}
	return cleanCandidates([]string{res.Text}), nil
}

var _ Transcriber = (*Whisper)(nil)

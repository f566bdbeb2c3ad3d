package tts

import (
	"log/slog"
	"time"
)

// Config is shared by the providers; each ignores what it has no use for.
type Config struct {
	APIKey  string
	BaseURL string

	VoiceID       string
	ModelID       string
	VoiceSettings VoiceSettings // ElevenLabs only
	OutputFormat  Encoding      // ElevenLabs only; OpenAI is always 24kHz

	// Speed scales the speaking rate; 1.0 is normal, lower is slower and clearer.
	Speed float64
	// Instructions steer tone on models that accept them (gpt-4o-mini-tts).
	Instructions string

	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	Logger *slog.Logger
}

type Option func(*Config)

func WithAPIKey(key string) Option { return func(c *Config) { c.APIKey = key } }

// WithBaseURL points the provider at a proxy or test server.
func WithBaseURL(url string) Option { return func(c *Config) { c.BaseURL = url } }

// WithVoice takes a voice name ("nova", "rachel") or a raw ElevenLabs voice ID.
func WithVoice(voice string) Option { return func(c *Config) { c.VoiceID = voice } }

func WithModel(model string) Option { return func(c *Config) { c.ModelID = model } }

func WithSpeed(speed float64) Option { return func(c *Config) { c.Speed = speed } }

func WithInstructions(s string) Option { return func(c *Config) { c.Instructions = s } }

func WithOutputFormat(enc Encoding) Option { return func(c *Config) { c.OutputFormat = enc } }

func WithVoiceSettings(vs VoiceSettings) Option { return func(c *Config) { c.VoiceSettings = vs } }

func WithTimeout(d time.Duration) Option { return func(c *Config) { c.Timeout = d } }

// WithRetry sets how often retryable API errors are retried and the base
// delay, which grows linearly per attempt.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) { c.MaxRetries, c.RetryDelay = maxRetries, delay }
}

func WithLogger(l *slog.Logger) Option { return func(c *Config) { c.Logger = l } }

// DefaultConfig returns ElevenLabs turbo at 24kHz with normal speed.
func DefaultConfig() *Config {
	return &Config{
		ModelID:       ModelTurboV2_5,
		OutputFormat:  EncodingPCM24,
		VoiceSettings: DefaultVoiceSettings(),
		Speed:         1.0,
		Timeout:       30 * time.Second,
		MaxRetries:    2,
		RetryDelay:    100 * time.Millisecond,
		Logger:        slog.Default(),
	}
}

// Apply runs opts in order. A nil logger falls back to slog.Default.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

func (c *Config) Validate() error {
	switch {
	case c.APIKey == "":
		return ErrNoAPIKey
	case c.Speed < 0.25 || c.Speed > 4.0:
		return ErrInvalidSpeed
	}
	return nil
}

// ValidateWithVoice is Validate plus a required voice.
func (c *Config) ValidateWithVoice() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.VoiceID == "" {
		return ErrNoVoiceID
	}
	return nil
}

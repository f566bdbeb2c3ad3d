package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvGoogleKey     = "GOOGLE_API_KEY"
	EnvElevenLabsKey = "ELEVENLABS_API_KEY"
	EnvDeepgramKey   = "DEEPGRAM_API_KEY"
	EnvCamera        = "GUIDE_CAMERA"
)

// Load reads the YAML configuration file at path, fills secrets from the
// environment and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over [Default], applies the
// environment and validates. Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyEnv()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv fills empty API keys from the environment and overrides the
// camera device when GUIDE_CAMERA is set.
func (c *Config) ApplyEnv() {
	fill := func(e *ProviderEntry) {
		if e.APIKey != "" {
			return
		}
		switch e.Name {
		case ProviderOpenAI, ProviderWhisper:
			e.APIKey = os.Getenv(EnvOpenAIKey)
		case ProviderGemini:
			e.APIKey = os.Getenv(EnvGoogleKey)
		case ProviderElevenLabs:
			e.APIKey = os.Getenv(EnvElevenLabsKey)
		case ProviderDeepgram:
			e.APIKey = os.Getenv(EnvDeepgramKey)
		}
	}

	fill(&c.Speech.Provider)
	for i := range c.TTS.Providers {
		fill(&c.TTS.Providers[i])
	}
	for i := range c.Inference.Providers {
		fill(&c.Inference.Providers[i])
	}
	if dev := os.Getenv(EnvCamera); dev != "" {
		c.Camera.Device = dev
	}
}

// Validate checks cfg and every section. It returns a joined error listing
// all failures found.
func Validate(cfg *Config) error {
	var errs []error
	section := func(name string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if cfg.Log.Level != "" && !cfg.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}
	if cfg.Log.Format != "" && cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q is invalid; valid values: text, json", cfg.Log.Format))
	}

	section("guidance", cfg.Guidance.Validate())
	section("camera", cfg.Camera.Validate())
	section("detector", cfg.Detector.Validate())
	section("speech.listener", cfg.Speech.Listener.Validate())
	section("audio.input", cfg.Audio.Input.Validate())
	section("audio.output", cfg.Audio.Output.Validate())
	section("web", cfg.Web.Validate())

	errs = append(errs, validateProvider("speech.provider", "stt", cfg.Speech.Provider)...)

	if len(cfg.TTS.Providers) == 0 {
		errs = append(errs, errors.New("tts.providers must not be empty"))
	}
	for i, p := range cfg.TTS.Providers {
		errs = append(errs, validateProvider(fmt.Sprintf("tts.providers[%d]", i), "tts", p)...)
	}
	if cfg.TTS.Speed != 0 && (cfg.TTS.Speed < 0.25 || cfg.TTS.Speed > 4.0) {
		errs = append(errs, fmt.Errorf("tts.speed %.2f is out of range [0.25, 4.0]", cfg.TTS.Speed))
	}
	if cfg.TTS.Queue < 0 {
		errs = append(errs, fmt.Errorf("tts.queue must not be negative, got %d", cfg.TTS.Queue))
	}

	if len(cfg.Inference.Providers) == 0 {
		errs = append(errs, errors.New("inference.providers must not be empty"))
	}
	for i, p := range cfg.Inference.Providers {
		errs = append(errs, validateProvider(fmt.Sprintf("inference.providers[%d]", i), "llm", p)...)
		if p.Name == ProviderCompatible && p.BaseURL == "" {
			errs = append(errs, fmt.Errorf("inference.providers[%d].base_url is required for %q", i, ProviderCompatible))
		}
	}
	if cfg.Inference.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("inference.max_retries must not be negative, got %d", cfg.Inference.MaxRetries))
	}

	return errors.Join(errs...)
}

// validateProvider rejects unknown names. A missing API key is only a
// warning: the app can still run in a degraded mode.
func validateProvider(path, kind string, p ProviderEntry) []error {
	if p.Name == "" {
		return []error{fmt.Errorf("%s.name is required", path)}
	}
	if !slices.Contains(ValidProviderNames[kind], p.Name) {
		return []error{fmt.Errorf("%s.name %q is invalid; valid values: %v", path, p.Name, ValidProviderNames[kind])}
	}
	if p.APIKey == "" && p.Name != ProviderMock && p.Name != ProviderCompatible {
		slog.Warn("provider has no API key", "path", path, "name", p.Name)
	}
	return nil
}

package guide

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-guide/internal/config"
	"github.com/teslashibe/go-guide/pkg/inference"
	"github.com/teslashibe/go-guide/pkg/speech"
	"github.com/teslashibe/go-guide/pkg/tts"
)

// buildInference creates every configured LLM provider and chains them in
// order. Providers that fail to build are skipped with a warning.
func buildInference(ctx context.Context, cfg config.InferenceConfig, logger *slog.Logger) (inference.Provider, error) {
	var providers []inference.Provider
	var errs []error
	for _, e := range cfg.Providers {
		opts := []inference.Option{
			inference.WithAPIKey(e.APIKey),
			inference.WithLogger(logger),
		}
		if e.BaseURL != "" {
			opts = append(opts, inference.WithBaseURL(e.BaseURL))
		}
		if e.Model != "" {
			opts = append(opts, inference.WithModel(e.Model))
		}
		if cfg.VisionModel != "" {
			opts = append(opts, inference.WithVisionModel(cfg.VisionModel))
		} else if e.Model != "" {
			opts = append(opts, inference.WithVisionModel(e.Model))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, inference.WithTimeout(cfg.Timeout))
		}
		opts = append(opts, inference.WithRetry(cfg.MaxRetries, inference.DefaultConfig().RetryDelay))

		var (
			p   inference.Provider
			err error
		)
		switch e.Name {
		case config.ProviderOpenAI:
			p, err = inference.NewOpenAI(opts...)
		case config.ProviderGemini:
			p, err = inference.NewGemini(ctx, opts...)
		case config.ProviderCompatible:
			p, err = inference.NewClient(opts...)
		case config.ProviderMock:
			p = inference.NewMockReply("I can help with that.")
		default:
			err = fmt.Errorf("unknown provider %q", e.Name)
		}
		if err != nil {
			logger.Warn("llm provider unavailable", "name", e.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
			continue
		}
		providers = append(providers, p)
	}

	switch len(providers) {
	case 0:
		return nil, fmt.Errorf("no llm provider available: %w", errors.Join(errs...))
	case 1:
		return providers[0], nil
	default:
		return inference.NewChainWithLogger(logger, providers...)
	}
}

// buildTTS creates every configured TTS provider and chains them in order.
func buildTTS(cfg config.TTSConfig, logger *slog.Logger) (tts.Provider, error) {
	var providers []tts.Provider
	var errs []error
	for _, e := range cfg.Providers {
		opts := []tts.Option{
			tts.WithAPIKey(e.APIKey),
			tts.WithLogger(logger),
		}
		if e.BaseURL != "" {
			opts = append(opts, tts.WithBaseURL(e.BaseURL))
		}
		if e.Model != "" {
			opts = append(opts, tts.WithModel(e.Model))
		}
		if e.Voice != "" {
			opts = append(opts, tts.WithVoice(e.Voice))
		}
		if cfg.Speed > 0 {
			opts = append(opts, tts.WithSpeed(cfg.Speed))
		}
		if cfg.Instructions != "" {
			opts = append(opts, tts.WithInstructions(cfg.Instructions))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, tts.WithTimeout(cfg.Timeout))
		}

		var (
			p   tts.Provider
			err error
		)
		switch e.Name {
		case config.ProviderOpenAI:
			p, err = tts.NewOpenAI(opts...)
		case config.ProviderElevenLabs:
			p, err = tts.NewElevenLabs(opts...)
		case config.ProviderMock:
			p = tts.NewMock()
		default:
			err = fmt.Errorf("unknown provider %q", e.Name)
		}
		if err != nil {
			logger.Warn("tts provider unavailable", "name", e.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
			continue
		}
		providers = append(providers, p)
	}

	switch len(providers) {
	case 0:
		return nil, fmt.Errorf("no tts provider available: %w", errors.Join(errs...))
	case 1:
		return providers[0], nil
	default:
		return tts.NewChainWithLogger(logger, providers...)
	}
}

// buildTranscriber creates the speech-to-text provider.
func buildTranscriber(cfg config.SpeechConfig) (speech.Transcriber, error) {
	e := cfg.Provider
	switch e.Name {
	case config.ProviderWhisper:
		opts := []speech.WhisperOption{}
		if e.Model != "" {
			opts = append(opts, speech.WithWhisperModel(e.Model))
		}
		if e.BaseURL != "" {
			opts = append(opts, speech.WithWhisperBaseURL(e.BaseURL))
		}
		return speech.NewWhisper(e.APIKey, opts...)
	case config.ProviderDeepgram:
		opts := []speech.DeepgramOption{}
		if e.Model != "" {
			opts = append(opts, speech.WithDeepgramModel(e.Model))
		}
		if e.BaseURL != "" {
			opts = append(opts, speech.WithDeepgramEndpoint(e.BaseURL))
		}
		if len(cfg.Keyterms) > 0 {
			opts = append(opts, speech.WithKeyterms(cfg.Keyterms...))
		}
		return speech.NewDeepgram(e.APIKey, opts...)
	case config.ProviderMock:
		return speech.NewMockTranscriber(), nil
	default:
		return nil, fmt.Errorf("unknown speech provider %q", e.Name)
	}
}

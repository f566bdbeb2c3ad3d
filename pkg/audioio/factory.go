package audioio

import (
	"fmt"
	"log/slog"
)

// NewSource opens a microphone for cfg. The auto backend is PortAudio.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	backend, logger, err := prepare(cfg, logger, "source")
	if err != nil {
		return nil, err
	}
	if backend == BackendMock {
		return NewMockSource(cfg, logger), nil
	}
	return NewPortAudioSource(cfg, logger)
}

// NewSink opens a speaker for cfg. The auto backend is PortAudio.
func NewSink(cfg Config, logger *slog.Logger) (Sink, error) {
	backend, logger, err := prepare(cfg, logger, "sink")
	if err != nil {
		return nil, err
	}
	if backend == BackendMock {
		return NewMockSink(cfg, logger), nil
	}
	return NewPortAudioSink(cfg, logger)
}

func prepare(cfg Config, logger *slog.Logger, kind string) (Backend, *slog.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return "", nil, fmt.Errorf("audio %s: %w", kind, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	backend := cfg.Backend
	if backend == "" || backend == BackendAuto {
		backend = BackendPortAudio
	}
	logger.Info("opening audio "+kind,
		"backend", backend,
		"device", cfg.Device,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
	)
	return backend, logger, nil
}

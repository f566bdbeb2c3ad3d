package audioio

import (
	"context"
	"io"
)

// Sink plays audio to a speaker.
type Sink interface {
	// Start prepares the output device for Write.
	Start(ctx context.Context) error

	// Stop halts audio playback. It is safe to call Stop multiple times.
	Stop() error

	// Write plays an audio chunk, resampling to the sink rate if needed.
	// It blocks until the chunk has been handed to the device.
	Write(ctx context.Context, chunk AudioChunk) error

	// Clear aborts any Write in progress.
	Clear() error

	// Config returns the current audio configuration.
	Config() Config

	// Name returns the backend name.
	Name() string

	// Close releases all resources. After Close the sink cannot be restarted.
	io.Closer
}

// SinkStats contains statistics about the audio sink.
type SinkStats struct {
	ChunksWritten  int64  `json:"chunks_written"`
	SamplesWritten int64  `json:"samples_written"`
	Underruns      int64  `json:"underruns"`
	Running        bool   `json:"running"`
	Backend        string `json:"backend"`
}

package guidance

import "context"

// SpeechInput produces recognition events while started.
//
// Start and Stop must be idempotent. Start failures are logged by the
// coordinator and never retried in a loop.
type SpeechInput interface {
	Start(ctx context.Context, locale string) error
	Stop() error
	Results() <-chan Recognition
}

// SpeechOutput speaks text. Implementations may block until the utterance
// has been played or return immediately; they own any queuing policy.
type SpeechOutput interface {
	Speak(ctx context.Context, text string) error
}

// Detector finds objects in a frame.
type Detector interface {
	Detect(ctx context.Context, frame Frame) ([]DetectedObject, error)
}

// QueryBackend answers a question about the current scene. Failures are
// reported as errors; the coordinator owns the spoken fallback.
type QueryBackend interface {
	Query(ctx context.Context, utterance, scene string) (string, error)
}

// CaptureDevice grabs frames from a camera.
type CaptureDevice interface {
	Available() bool
	Capture(ctx context.Context) (Frame, error)
}

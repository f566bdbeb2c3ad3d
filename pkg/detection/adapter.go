package detection

import (
	"context"
	"log/slog"

	"github.com/teslashibe/go-guide/pkg/guidance"
)

// Adapter exposes a Backend as a guidance.Detector.
type Adapter struct {
	backend       Backend
	minConfidence float64
	logger        *slog.Logger
}

// NewAdapter wraps backend. Results at or below minConfidence are dropped.
func NewAdapter(backend Backend, minConfidence float64, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		backend:       backend,
		minConfidence: minConfidence,
		logger:        logger.With("component", "detection"),
	}
}

// Detect runs the backend on the frame. The network call itself cannot be
// interrupted; when ctx ends first the call finishes in the background and
// its result is dropped.
func (a *Adapter) Detect(ctx context.Context, frame guidance.Frame) ([]guidance.DetectedObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type outcome struct {
		results []Result
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := a.backend.Detect(frame.Data)
		done <- outcome{r, err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if out.err != nil {
		return nil, out.err
	}

	objects := make([]guidance.DetectedObject, 0, len(out.results))
	for _, r := range out.results {
		if r.Confidence <= a.minConfidence {
			continue
		}
		objects = append(objects, r.Object())
	}
	if len(objects) > 0 {
		a.logger.Debug("objects detected", "count", len(objects), "summary", guidance.Summarize(objects))
	}
	return objects, nil
}

// Close releases the backend.
func (a *Adapter) Close() error {
	return a.backend.Close()
}

var _ guidance.Detector = (*Adapter)(nil)

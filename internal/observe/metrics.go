// Package observe holds the OpenTelemetry metric instruments recorded by the
// guidance pipeline and the Prometheus bridge used to scrape them.
//
// All record methods are safe on a nil *Metrics so components can run without
// telemetry in tests and one-shot tools.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/teslashibe/go-guide"

// Tick outcomes recorded on the ticks counter.
const (
	TickDetected   = "detected"
	TickInFlight   = "skipped_inflight"
	TickNoCamera   = "skipped_camera"
	TickCaptureErr = "capture_error"
	TickDetectErr  = "detect_error"
	TickStale      = "stale"
)

// Metrics holds the instruments for one process.
type Metrics struct {
	Ticks             metric.Int64Counter
	DetectionDuration metric.Float64Histogram
	ObjectsDetected   metric.Int64Histogram
	HazardWarnings    metric.Int64Counter
	Queries           metric.Int64Counter
	QueryDuration     metric.Float64Histogram
	SpeechDuration    metric.Float64Histogram
	Transitions       metric.Int64Counter
	ActiveSessions    metric.Int64UpDownCounter
	Recognitions      metric.Int64Counter
}

// NewMetrics creates every instrument on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var (
		out Metrics
		err error
	)
	if out.Ticks, err = m.Int64Counter("guide.detection.ticks",
		metric.WithDescription("Detection timer fires by outcome.")); err != nil {
		return nil, err
	}
	if out.DetectionDuration, err = m.Float64Histogram("guide.detection.duration",
		metric.WithDescription("Capture plus detect latency."),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if out.ObjectsDetected, err = m.Int64Histogram("guide.detection.objects",
		metric.WithDescription("Objects kept per detection cycle.")); err != nil {
		return nil, err
	}
	if out.HazardWarnings, err = m.Int64Counter("guide.hazard.warnings",
		metric.WithDescription("Hazard warnings spoken.")); err != nil {
		return nil, err
	}
	if out.Queries, err = m.Int64Counter("guide.query.requests",
		metric.WithDescription("Query backend calls by status.")); err != nil {
		return nil, err
	}
	if out.QueryDuration, err = m.Float64Histogram("guide.query.duration",
		metric.WithDescription("Query backend latency."),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if out.SpeechDuration, err = m.Float64Histogram("guide.speech.duration",
		metric.WithDescription("Time spent speaking one utterance."),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if out.Transitions, err = m.Int64Counter("guide.session.transitions",
		metric.WithDescription("Activation state transitions.")); err != nil {
		return nil, err
	}
	if out.ActiveSessions, err = m.Int64UpDownCounter("guide.session.active",
		metric.WithDescription("Sessions currently active.")); err != nil {
		return nil, err
	}
	if out.Recognitions, err = m.Int64Counter("guide.speech.recognitions",
		metric.WithDescription("Recognition events by classification.")); err != nil {
		return nil, err
	}
	return &out, nil
}

// Default returns instruments bound to the global meter provider.
func Default() *Metrics {
	m, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return nil
	}
	return m
}

// RecordTick counts a timer fire with its outcome.
func (m *Metrics) RecordTick(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.Ticks.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordDetection records a completed capture+detect cycle.
func (m *Metrics) RecordDetection(ctx context.Context, d time.Duration, objects int) {
	if m == nil {
		return
	}
	m.DetectionDuration.Record(ctx, d.Seconds())
	m.ObjectsDetected.Record(ctx, int64(objects))
}

// RecordHazard counts a spoken hazard warning.
func (m *Metrics) RecordHazard(ctx context.Context, label string) {
	if m == nil {
		return
	}
	m.HazardWarnings.Add(ctx, 1, metric.WithAttributes(attribute.String("label", label)))
}

// RecordQuery records one query backend round trip.
func (m *Metrics) RecordQuery(ctx context.Context, d time.Duration, status string) {
	if m == nil {
		return
	}
	m.Queries.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.QueryDuration.Record(ctx, d.Seconds())
}

// RecordSpeech records how long one utterance took to speak.
func (m *Metrics) RecordSpeech(ctx context.Context, d time.Duration, kind string) {
	if m == nil {
		return
	}
	m.SpeechDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordTransition records an activation or deactivation.
func (m *Metrics) RecordTransition(ctx context.Context, active bool) {
	if m == nil {
		return
	}
	to := "idle"
	delta := int64(-1)
	if active {
		to = "active"
		delta = 1
	}
	m.Transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("to", to)))
	m.ActiveSessions.Add(ctx, delta)
}

// RecordRecognition counts a recognition event by its classification.
func (m *Metrics) RecordRecognition(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.Recognitions.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

package observe

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, r *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := r.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumInt(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	s, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: data is %T, want Sum[int64]", m.Name, m.Data)
	}
	var total int64
	for _, dp := range s.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetricsRecord(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	ctx := context.Background()
	m.RecordTick(ctx, TickDetected)
	m.RecordTick(ctx, TickInFlight)
	m.RecordHazard(ctx, "stairs")
	m.RecordQuery(ctx, 20*time.Millisecond, "ok")
	m.RecordTransition(ctx, true)
	m.RecordTransition(ctx, false)
	m.RecordTransition(ctx, true)

	got := collect(t, reader)
	if n := sumInt(t, got["guide.detection.ticks"]); n != 2 {
		t.Errorf("ticks = %d, want 2", n)
	}
	if n := sumInt(t, got["guide.hazard.warnings"]); n != 1 {
		t.Errorf("hazards = %d, want 1", n)
	}
	if n := sumInt(t, got["guide.session.transitions"]); n != 3 {
		t.Errorf("transitions = %d, want 3", n)
	}
	if n := sumInt(t, got["guide.session.active"]); n != 1 {
		t.Errorf("active sessions = %d, want 1", n)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordTick(ctx, TickDetected)
	m.RecordDetection(ctx, time.Second, 3)
	m.RecordHazard(ctx, "hole")
	m.RecordQuery(ctx, time.Second, "error")
	m.RecordSpeech(ctx, time.Second, "hazard")
	m.RecordTransition(ctx, true)
	m.RecordRecognition(ctx, "query")
}

package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*metricsImpl, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := newMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	found := findMetric(rm, name)
	if found == nil {
		return 0
	}
	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: expected Sum[int64], got %T", name, found.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_RecordOperation(t *testing.T) {
	m, reader := newTestMetrics(t)
	meta := OpMeta{Backend: "remote", Op: "set"}

	m.RecordOperation(context.Background(), meta, 3*time.Millisecond, nil)
	m.RecordOperation(context.Background(), meta, 5*time.Millisecond, errors.New("dial tcp: refused"))

	rm := collect(t, reader)
	if got := sumValue(t, rm, "cache.ops.total"); got != 2 {
		t.Errorf("cache.ops.total = %d, want 2", got)
	}
	if got := sumValue(t, rm, "cache.ops.errors"); got != 1 {
		t.Errorf("cache.ops.errors = %d, want 1", got)
	}

	hist := findMetric(rm, "cache.op.duration_ms")
	if hist == nil {
		t.Fatal("cache.op.duration_ms metric not found")
	}
	data, ok := hist.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("expected Histogram[float64], got %T", hist.Data)
	}
	var count uint64
	for _, dp := range data.DataPoints {
		count += dp.Count
	}
	if count != 2 {
		t.Errorf("histogram count = %d, want 2", count)
	}
}

func TestMetrics_RecordLookup(t *testing.T) {
	m, reader := newTestMetrics(t)
	meta := OpMeta{Backend: "memory", Op: "get"}

	m.RecordLookup(context.Background(), meta, true)
	m.RecordLookup(context.Background(), meta, true)
	m.RecordLookup(context.Background(), meta, false)

	rm := collect(t, reader)
	if got := sumValue(t, rm, "cache.hits"); got != 2 {
		t.Errorf("cache.hits = %d, want 2", got)
	}
	if got := sumValue(t, rm, "cache.misses"); got != 1 {
		t.Errorf("cache.misses = %d, want 1", got)
	}
}

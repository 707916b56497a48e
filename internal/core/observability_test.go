package core

import (
	"context"
	"expvar"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusMetricsRecorder(reg, "")
	ctx := context.Background()
	rec.Observe(ctx, "save", true, 3*time.Millisecond)
	rec.Observe(ctx, "save", true, time.Millisecond)
	rec.Observe(ctx, "save", false, time.Millisecond)
	rec.Observe(ctx, "", true, time.Millisecond)

	if got := testutil.ToFloat64(rec.operations.WithLabelValues("save", "success")); got != 2 {
		t.Fatalf("expected 2 successful saves, got %v", got)
	}
	if got := testutil.ToFloat64(rec.operations.WithLabelValues("save", "error")); got != 1 {
		t.Fatalf("expected 1 failed save, got %v", got)
	}
	if n := testutil.CollectAndCount(rec.durations, "elwinator_service_operation_duration_seconds"); n != 1 {
		t.Fatalf("expected one histogram series, got %d", n)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	if !names["elwinator_service_operations_total"] || !names["elwinator_service_operation_duration_seconds"] {
		t.Fatalf("unexpected metric families %v", names)
	}
}

func TestPrometheusRecorderCustomNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusMetricsRecorder(reg, "console")
	rec.Observe(context.Background(), "load", true, time.Millisecond)
	expected := `
# HELP console_service_operations_total Total service operations by operation and status (success, error).
# TYPE console_service_operations_total counter
console_service_operations_total{operation="load",status="success"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "console_service_operations_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestExpvarMetricsRecorderExports(t *testing.T) {
	recorder := NewExpvarMetricsRecorder("")
	if recorder.Name() == "" {
		t.Fatalf("expected recorder to have export name")
	}
	recorder.Observe(context.Background(), "dispatch", true, 10*time.Millisecond)
	recorder.Observe(context.Background(), "dispatch", false, 5*time.Millisecond)
	recorder.Observe(context.Background(), "", true, time.Millisecond)

	snapshot := recorder.Snapshot()
	stats, ok := snapshot.Operations["dispatch"]
	if !ok || stats.Success != 1 || stats.Error != 1 || stats.DurationsMS != 15 {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
	if len(snapshot.Operations) != 1 {
		t.Fatalf("empty operations are ignored, got %+v", snapshot.Operations)
	}

	if v := expvar.Get(recorder.Name()); v == nil {
		t.Fatalf("expected expvar export to be registered")
	} else if !strings.Contains(v.String(), "dispatch") {
		t.Fatalf("expected expvar output to contain operation: %s", v.String())
	}
	if other := NewExpvarMetricsRecorder(""); other.Name() == recorder.Name() {
		t.Fatal("generated names must be unique")
	}
}

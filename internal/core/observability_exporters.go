package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq uint64

// ExpvarMetricsRecorder publishes per-operation latency totals (milliseconds) and
// success/error counters through expvar.
type ExpvarMetricsRecorder struct {
	name string
	mu   sync.Mutex
	ops  map[string]ExpvarOperationStats
}

// ExpvarOperationStats aggregates one operation.
type ExpvarOperationStats struct {
	Success     int64   `json:"success"`
	Error       int64   `json:"error"`
	DurationsMS float64 `json:"durations_ms_total"`
}

// ExpvarMetricsSnapshot is a copy of the recorder's aggregates.
type ExpvarMetricsSnapshot struct {
	Operations map[string]ExpvarOperationStats `json:"operations"`
	RecordedAt time.Time                       `json:"recorded_at"`
}

// NewExpvarMetricsRecorder publishes a recorder under name, or under a generated
// unique name when name is empty. expvar names are process-global.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		id := atomic.AddUint64(&expvarSeq, 1)
		name = fmt.Sprintf("elwinator_service_metrics_%d", id)
	}
	rec := &ExpvarMetricsRecorder{name: name, ops: make(map[string]ExpvarOperationStats)}
	expvar.Publish(name, expvar.Func(func() any {
		return rec.Snapshot()
	}))
	return rec
}

// Name returns the expvar export name.
func (r *ExpvarMetricsRecorder) Name() string {
	return r.name
}

// Snapshot copies the current aggregates.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make(map[string]ExpvarOperationStats, len(r.ops))
	for op, stats := range r.ops {
		ops[op] = stats
	}
	return ExpvarMetricsSnapshot{Operations: ops, RecordedAt: time.Now().UTC()}
}

// Observe implements MetricsRecorder.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.mu.Lock()
	stats := r.ops[operation]
	if success {
		stats.Success++
	} else {
		stats.Error++
	}
	stats.DurationsMS += float64(duration) / float64(time.Millisecond)
	r.ops[operation] = stats
	r.mu.Unlock()
}

type traceAttrsKey struct{}

// WithTraceAttributes returns a context whose spans carry attrs in addition to any
// attributes already present.
func WithTraceAttributes(ctx context.Context, attrs map[string]string) context.Context {
	merged := make(map[string]string, len(attrs))
	for k, v := range TraceAttributes(ctx) {
		merged[k] = v
	}
	for k, v := range attrs {
		if v != "" {
			merged[k] = v
		}
	}
	return context.WithValue(ctx, traceAttrsKey{}, merged)
}

// TraceAttributes returns the span attributes stored in ctx.
func TraceAttributes(ctx context.Context) map[string]string {
	attrs, _ := ctx.Value(traceAttrsKey{}).(map[string]string)
	return attrs
}

// JSONTraceEntry is one finished span.
type JSONTraceEntry struct {
	Operation  string            `json:"operation"`
	Status     string            `json:"status"`
	DurationMS float64           `json:"duration_ms"`
	Error      string            `json:"error,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	EndedAt    time.Time         `json:"ended_at"`
}

// JSONTraceTracer writes finished spans as JSON lines and keeps them for Entries.
type JSONTraceTracer struct {
	mu      sync.Mutex
	entries []JSONTraceEntry
	enc     *json.Encoder
}

// NewJSONTracer returns a tracer encoding spans to w. A nil writer only retains them.
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	t := &JSONTraceTracer{}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Entries returns a copy of the finished spans.
func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]JSONTraceEntry(nil), t.entries...)
}

// Start implements Tracer.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonTraceSpan{
		tracer:    t,
		operation: operation,
		attrs:     TraceAttributes(ctx),
		started:   time.Now().UTC(),
	}
}

type jsonTraceSpan struct {
	tracer    *JSONTraceTracer
	operation string
	attrs     map[string]string
	started   time.Time
}

func (s *jsonTraceSpan) End(err error) {
	ended := time.Now().UTC()
	entry := JSONTraceEntry{
		Operation:  s.operation,
		Status:     string(AuditStatusSuccess),
		DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
		Attributes: s.attrs,
		StartedAt:  s.started,
		EndedAt:    ended,
	}
	if err != nil {
		entry.Status = string(AuditStatusError)
		entry.Error = err.Error()
	}

	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	s.tracer.entries = append(s.tracer.entries, entry)
	if s.tracer.enc != nil {
		_ = s.tracer.enc.Encode(entry)
	}
}

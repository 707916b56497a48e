package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"elwinator/internal/infra/persistence/memory"
)

type captureAuditRecorder struct {
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) has(op string, status AuditStatus, predicate func(AuditEntry) bool) bool {
	for _, entry := range c.entries {
		if entry.Operation == op && entry.Status == status {
			if predicate == nil || predicate(entry) {
				return true
			}
		}
	}
	return false
}

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type captureLogger struct {
	lines []string
}

func (c *captureLogger) log(level, msg string) { c.lines = append(c.lines, level+" "+msg) }

func (c *captureLogger) Debug(msg string, _ ...any) { c.log("debug", msg) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.log("info", msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.log("warn", msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.log("error", msg) }

func (c *captureLogger) contains(line string) bool {
	for _, l := range c.lines {
		if l == line {
			return true
		}
	}
	return false
}

type failingRule struct{}

func (failingRule) Name() string { return "failing" }

func (failingRule) Evaluate(context.Context, RuleView) (Result, error) {
	return Result{}, errors.New("rule exploded")
}

func TestServiceDispatchObservability(t *testing.T) {
	ctx := context.Background()
	audit := &captureAuditRecorder{}
	metrics := &captureMetricsRecorder{}
	tracer := NewJSONTracer(nil)
	logger := &captureLogger{}
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	svc := NewService(
		WithInitialState(fixture()),
		WithAuditRecorder(audit),
		WithMetricsRecorder(metrics),
		WithTracer(tracer),
		WithLogger(logger),
		WithClock(ClockFunc(func() time.Time { return fixed })),
	)

	state, res, err := svc.Dispatch(ctx, SetSegments{Namespace: "prod", Experiment: "exp-b", Segments: NewSegmentSet(1, 8)})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(res.Violations) != 1 || res.Violations[0].Rule != "segment_overlap" {
		t.Fatalf("expected overlap warning, got %+v", res.Violations)
	}
	if exp, _ := state.Namespaces[0].Experiment("exp-b"); exp.Segments.String() != "1,8" {
		t.Fatalf("dispatch must commit despite violations, got %s", exp.Segments)
	}
	if got := svc.State(); got.Namespaces[0] != state.Namespaces[0] {
		t.Fatal("service state must match the returned state")
	}

	if !audit.has("dispatch", AuditStatusSuccess, func(e AuditEntry) bool {
		return e.Kind == KindExperimentSegments && e.Entity == EntityExperiment && e.EntityID == "exp-b" &&
			e.Namespace == "prod" && e.Timestamp.Equal(fixed) && e.Duration == 0
	}) {
		t.Fatalf("missing dispatch audit entry: %+v", audit.entries)
	}
	if !metrics.has("dispatch", true) {
		t.Fatalf("missing dispatch metric: %+v", metrics.calls)
	}
	entries := tracer.Entries()
	if len(entries) != 1 || entries[0].Operation != "dispatch" || entries[0].Attributes["kind"] != string(KindExperimentSegments) {
		t.Fatalf("unexpected spans %+v", entries)
	}
	if !logger.contains("debug action dispatched") || !logger.contains("warn rule violation") {
		t.Fatalf("unexpected log lines %v", logger.lines)
	}
}

func TestServiceAuditTargets(t *testing.T) {
	ctx := context.Background()
	audit := &captureAuditRecorder{}
	svc := NewService(WithInitialState(fixture()), WithAuditRecorder(audit))

	actions := []Action{
		AddNamespace{Name: "beta"},
		TogglePublish{Namespace: "beta"},
		AddParam{Namespace: "prod", Experiment: "exp-a", ID: "p-new", Name: "x"},
		SetParamName{Namespace: "prod", Experiment: "exp-a", Param: "p-new", Name: "y"},
	}
	for _, a := range actions {
		if _, _, err := svc.Dispatch(ctx, a); err != nil {
			t.Fatalf("dispatch %s: %v", a.Kind(), err)
		}
	}
	want := []struct {
		entity EntityType
		id     string
	}{
		{EntityNamespace, "beta"},
		{EntityNamespace, "beta"},
		{EntityParam, "p-new"},
		{EntityParam, "p-new"},
	}
	if len(audit.entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(audit.entries))
	}
	for i, w := range want {
		if e := audit.entries[i]; e.Entity != w.entity || e.EntityID != w.id {
			t.Fatalf("entry %d: expected %s %s, got %+v", i, w.entity, w.id, e)
		}
	}
}

func TestServiceDispatchErrors(t *testing.T) {
	ctx := context.Background()
	if _, _, err := NewService().Dispatch(ctx, nil); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("expected invalid action, got %v", err)
	}

	engine := NewRulesEngine()
	engine.Register(failingRule{})
	audit := &captureAuditRecorder{}
	metrics := &captureMetricsRecorder{}
	tracer := NewJSONTracer(nil)
	svc := NewService(WithInitialState(fixture()), WithRulesEngine(engine),
		WithAuditRecorder(audit), WithMetricsRecorder(metrics), WithTracer(tracer))
	if _, _, err := svc.Dispatch(ctx, TogglePublish{Namespace: "prod"}); err == nil || !strings.Contains(err.Error(), "rule exploded") {
		t.Fatalf("expected rule error, got %v", err)
	}
	if !audit.has("dispatch", AuditStatusError, func(e AuditEntry) bool { return e.Error != "" }) {
		t.Fatalf("expected failed audit entry: %+v", audit.entries)
	}
	if !metrics.has("dispatch", false) {
		t.Fatal("expected failed metric")
	}
	if spans := tracer.Entries(); len(spans) != 1 || spans[0].Status != string(AuditStatusError) {
		t.Fatalf("expected failed span, got %+v", spans)
	}
	if _, err := svc.Validate(ctx); err == nil {
		t.Fatal("validate must surface rule errors")
	}
}

func TestServiceDispatchAll(t *testing.T) {
	svc := NewService(WithInitialState(fixture()))
	state, res, err := svc.DispatchAll(context.Background(),
		AddExperiment{Namespace: "prod", ID: "exp-c", Name: "c"},
		SetSegments{Namespace: "prod", Experiment: "exp-c", Segments: NewSegmentSet(0)},
	)
	if err != nil {
		t.Fatalf("dispatch all: %v", err)
	}
	if _, ok := state.Namespaces[0].Experiment("exp-c"); !ok {
		t.Fatal("expected new experiment")
	}
	if len(res.Violations) != 1 {
		t.Fatalf("expected one overlap, got %+v", res.Violations)
	}
}

func TestServiceLookups(t *testing.T) {
	svc := NewService(WithInitialState(fixture()))
	var nf ErrNotFound
	if _, err := svc.Namespace("missing"); !errors.As(err, &nf) || nf.ID != "missing" {
		t.Fatalf("expected not found, got %v", err)
	}
	if !strings.Contains(nf.Error(), "namespace missing not found") {
		t.Fatalf("unexpected message %q", nf.Error())
	}
	alloc, err := svc.Allocation("prod", "exp-a")
	if err != nil || alloc.Combined.String() != "8" {
		t.Fatalf("allocation: %+v %v", alloc, err)
	}
	if _, err := svc.Allocation("missing"); err == nil {
		t.Fatal("expected error for unknown namespace")
	}
	issues, err := svc.ValidateExperiment("prod", "exp-a")
	if err != nil || len(issues) != 0 {
		t.Fatalf("validate experiment: %+v %v", issues, err)
	}
	if _, err := svc.ValidateExperiment("missing", "exp-a"); err == nil {
		t.Fatal("expected error for unknown namespace")
	}
}

func TestServiceLoadSaveRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(fixturePayloads()...)
	audit := &captureAuditRecorder{}
	svc := NewService(WithPersistentStore(store), WithAuditRecorder(audit))

	state, err := svc.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(state.Namespaces) != 2 {
		t.Fatalf("expected 2 namespaces, got %d", len(state.Namespaces))
	}

	if _, _, err := svc.DispatchAll(ctx,
		DeleteExperiment{Namespace: "prod", Experiment: "exp-b"},
		AddNamespace{Name: "beta"},
	); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	tombstones, err := svc.Save(ctx)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(tombstones) != 1 || tombstones[0].ID != "exp-b" {
		t.Fatalf("unexpected tombstones %+v", tombstones)
	}
	for _, ns := range svc.State().Namespaces {
		if ns.IsNew || ns.IsDirty {
			t.Fatalf("saved namespaces must be clean, got %+v", ns)
		}
	}
	if !audit.has("load", AuditStatusSuccess, nil) || !audit.has("save", AuditStatusSuccess, nil) {
		t.Fatalf("expected load and save audit entries: %+v", audit.entries)
	}

	reloaded := NewService(WithPersistentStore(store))
	state, err = reloaded.Load(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(state.Namespaces) != 3 || len(state.Namespaces[0].ExperimentIDs) != 1 || state.Namespaces[2].Name != "beta" {
		t.Fatalf("unexpected reloaded state %+v", ExportPayloads(state))
	}
}

func TestServicePersistenceErrors(t *testing.T) {
	ctx := context.Background()
	svc := NewService()
	if _, err := svc.Load(ctx); !errors.Is(err, ErrNoPersistentStore) {
		t.Fatalf("expected ErrNoPersistentStore, got %v", err)
	}
	if _, err := svc.Save(ctx); !errors.Is(err, ErrNoPersistentStore) {
		t.Fatalf("expected ErrNoPersistentStore, got %v", err)
	}

	store := memory.NewStore()
	_ = store.Close()
	audit := &captureAuditRecorder{}
	logger := &captureLogger{}
	svc = NewService(WithPersistentStore(store), WithAuditRecorder(audit), WithLogger(logger), WithInitialState(fixture()))
	if _, err := svc.Load(ctx); !errors.Is(err, memory.ErrClosed) {
		t.Fatalf("expected closed store error, got %v", err)
	}
	if len(svc.State().Namespaces) != 2 {
		t.Fatal("failed load must keep the current state")
	}
	if _, err := svc.Save(ctx); !errors.Is(err, memory.ErrClosed) {
		t.Fatalf("expected closed store error, got %v", err)
	}
	if !audit.has("save", AuditStatusError, nil) || !logger.contains("error operation failed") {
		t.Fatalf("expected failure to be audited and logged: %+v %v", audit.entries, logger.lines)
	}
}

func TestServiceOptionsIgnoreNil(t *testing.T) {
	svc := NewService(WithLogger(nil), WithMetricsRecorder(nil), WithTracer(nil),
		WithAuditRecorder(nil), WithClock(nil), WithRulesEngine(nil))
	if _, _, err := svc.Dispatch(context.Background(), AddNamespace{Name: "x"}); err != nil {
		t.Fatalf("defaults must stay usable: %v", err)
	}
}

func TestJSONTracerWritesLines(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	ctx := WithTraceAttributes(context.Background(), map[string]string{"namespace": "prod", "empty": ""})
	ctx = WithTraceAttributes(ctx, map[string]string{"kind": "TOGGLE_PUBLISH"})
	_, span := tracer.Start(ctx, "dispatch")
	span.End(errors.New("boom"))

	entries := tracer.Entries()
	if len(entries) != 1 || entries[0].Status != string(AuditStatusError) || entries[0].Error != "boom" {
		t.Fatalf("unexpected entries %+v", entries)
	}
	attrs := entries[0].Attributes
	if attrs["namespace"] != "prod" || attrs["kind"] != "TOGGLE_PUBLISH" {
		t.Fatalf("attributes must merge, got %v", attrs)
	}
	if _, ok := attrs["empty"]; ok {
		t.Fatal("empty attribute values are dropped")
	}
	if !strings.Contains(buf.String(), `"operation":"dispatch"`) {
		t.Fatalf("expected JSON line, got %q", buf.String())
	}
}

package domain

import (
	"context"
	"fmt"
	"testing"
)

func TestResultMergeAndBlocking(t *testing.T) {
	var result Result
	result.Merge(Result{Violations: []Violation{{Rule: "warn", Severity: SeverityWarn}}})
	if result.HasBlocking() {
		t.Fatalf("expected no blocking violations")
	}
	result.Merge(Result{Violations: []Violation{{Rule: "block", Severity: SeverityBlock}}})
	if !result.HasBlocking() {
		t.Fatalf("expected blocking violation")
	}
	err := RuleViolationError{Result: result}
	if err.Error() == "" {
		t.Fatalf("expected error string")
	}
}

func TestResultMergeEmptyInput(t *testing.T) {
	original := Result{Violations: []Violation{{Rule: "existing", Severity: SeverityWarn}}}
	original.Merge(Result{})
	if len(original.Violations) != 1 || original.Violations[0].Rule != "existing" {
		t.Fatalf("expected original violations to remain, got %+v", original.Violations)
	}
}

func TestResultForNamespace(t *testing.T) {
	res := Result{Violations: []Violation{
		{Rule: "a", Namespace: "prod"},
		{Rule: "b", Namespace: "staging"},
		{Rule: "c", Namespace: "prod"},
	}}
	prod := res.ForNamespace("prod")
	if len(prod.Violations) != 2 || prod.Violations[1].Rule != "c" {
		t.Fatalf("unexpected filtered violations %+v", prod.Violations)
	}
	if got := res.ForNamespace("missing"); len(got.Violations) != 0 {
		t.Fatalf("expected no violations, got %+v", got.Violations)
	}
}

func TestRulesEngineEvaluate(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(staticRule{"warn"})
	res, err := engine.Evaluate(context.Background(), emptyView{})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 1 {
		t.Fatalf("expected violation")
	}
	if names := engine.Rules(); len(names) != 1 || names[0] != "warn" {
		t.Fatalf("unexpected rule names %v", names)
	}
}

type staticRule struct{ name string }

func (r staticRule) Name() string { return r.name }

func (r staticRule) Evaluate(context.Context, RuleView) (Result, error) {
	return Result{Violations: []Violation{{Rule: r.name, Severity: SeverityWarn}}}, nil
}

type emptyView struct{}

func (emptyView) ListNamespaces() []*Namespace            { return nil }
func (emptyView) FindNamespace(string) (*Namespace, bool) { return nil, false }

func TestRulesEngineEvaluateError(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(errorRule{})
	if _, err := engine.Evaluate(context.Background(), emptyView{}); err == nil {
		t.Fatalf("expected evaluation error")
	}
}

type errorRule struct{}

func (errorRule) Name() string { return "error" }

func (errorRule) Evaluate(context.Context, RuleView) (Result, error) {
	return Result{}, fmt.Errorf("boom")
}

package core

import (
	"context"
	"fmt"

	"elwinator/pkg/domain"
)

// NewNamespaceIntegrityRule reports duplicate namespace names and duplicate label keys.
func NewNamespaceIntegrityRule() domain.Rule {
	return namespaceIntegrityRule{}
}

type namespaceIntegrityRule struct{}

func (namespaceIntegrityRule) Name() string { return "namespace_integrity" }

func (namespaceIntegrityRule) Evaluate(_ context.Context, view domain.RuleView) (domain.Result, error) {
	res := domain.Result{}
	names := make(map[string]int)
	for _, ns := range view.ListNamespaces() {
		names[ns.Name]++
		if names[ns.Name] == 2 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:      "namespace_integrity",
				Severity:  domain.SeverityWarn,
				Message:   fmt.Sprintf("namespace name %q is used more than once", ns.Name),
				Entity:    domain.EntityNamespace,
				EntityID:  ns.Name,
				Namespace: ns.Name,
			})
		}
		keys := make(map[string]bool, len(ns.Labels))
		for _, l := range ns.Labels {
			if keys[l.Key] {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:      "namespace_integrity",
					Severity:  domain.SeverityWarn,
					Message:   fmt.Sprintf("label %q appears more than once", l.Key),
					Entity:    domain.EntityLabel,
					EntityID:  l.Key,
					Namespace: ns.Name,
				})
			}
			keys[l.Key] = true
		}
	}
	return res, nil
}

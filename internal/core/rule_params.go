package core

import (
	"context"
	"fmt"

	"elwinator/pkg/domain"
)

// NewParamNameRule reports sibling params sharing a name.
func NewParamNameRule() domain.Rule {
	return paramNameRule{}
}

type paramNameRule struct{}

func (paramNameRule) Name() string { return "param_name_unique" }

func (paramNameRule) Evaluate(_ context.Context, view domain.RuleView) (domain.Result, error) {
	res := domain.Result{}
	for _, ns := range activeNamespaces(view) {
		for _, exp := range activeExperiments(ns) {
			seen := make(map[string]bool)
			for _, p := range ns.ListParams(exp.ID) {
				if p.MarkedForDeletion() || p.Name == "" {
					continue
				}
				if seen[p.Name] {
					res.Violations = append(res.Violations, domain.Violation{
						Rule:      "param_name_unique",
						Severity:  domain.SeverityWarn,
						Message:   fmt.Sprintf("experiment %q has more than one param named %q", exp.Name, p.Name),
						Entity:    domain.EntityParam,
						EntityID:  p.ID,
						Namespace: ns.Name,
					})
				}
				seen[p.Name] = true
			}
		}
	}
	return res, nil
}

// NewParamWeightsRule reports weighted params whose distribution cannot be sampled:
// negative weights or a total weight of zero.
func NewParamWeightsRule() domain.Rule {
	return paramWeightsRule{}
}

type paramWeightsRule struct{}

func (paramWeightsRule) Name() string { return "param_weights" }

func (paramWeightsRule) Evaluate(_ context.Context, view domain.RuleView) (domain.Result, error) {
	res := domain.Result{}
	for _, ns := range activeNamespaces(view) {
		for _, exp := range activeExperiments(ns) {
			for _, p := range ns.ListParams(exp.ID) {
				if !p.Weighted || p.MarkedForDeletion() || len(p.Choices) == 0 {
					continue
				}
				var total float64
				negative := false
				for _, c := range p.Choices {
					if c.Weight < 0 {
						negative = true
					}
					total += c.Weight
				}
				var msg string
				switch {
				case negative:
					msg = fmt.Sprintf("param %q has a negative weight", p.Name)
				case total <= 0:
					msg = fmt.Sprintf("param %q has no positive weight", p.Name)
				default:
					continue
				}
				res.Violations = append(res.Violations, domain.Violation{
					Rule:      "param_weights",
					Severity:  domain.SeverityWarn,
					Message:   msg,
					Entity:    domain.EntityParam,
					EntityID:  p.ID,
					Namespace: ns.Name,
				})
			}
		}
	}
	return res, nil
}

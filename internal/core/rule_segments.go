package core

import (
	"context"
	"fmt"

	"elwinator/pkg/domain"
)

// NewSegmentOverlapRule reports active experiments of one namespace claiming the same
// segments.
func NewSegmentOverlapRule() domain.Rule {
	return segmentOverlapRule{}
}

type segmentOverlapRule struct{}

func (segmentOverlapRule) Name() string { return "segment_overlap" }

func (segmentOverlapRule) Evaluate(_ context.Context, view domain.RuleView) (domain.Result, error) {
	res := domain.Result{}
	for _, ns := range activeNamespaces(view) {
		for _, overlap := range Allocate(ns).Overlaps {
			first, _ := ns.Experiment(overlap.First)
			second, _ := ns.Experiment(overlap.Second)
			res.Violations = append(res.Violations, domain.Violation{
				Rule:      "segment_overlap",
				Severity:  domain.SeverityWarn,
				Message:   fmt.Sprintf("experiments %q and %q both claim segments %s", first.Name, second.Name, overlap.Segments),
				Entity:    domain.EntityExperiment,
				EntityID:  overlap.Second,
				Namespace: ns.Name,
			})
		}
	}
	return res, nil
}

// NewSegmentRangeRule reports claims at or beyond an experiment's declared
// numSegments.
func NewSegmentRangeRule() domain.Rule {
	return segmentRangeRule{}
}

type segmentRangeRule struct{}

func (segmentRangeRule) Name() string { return "segment_range" }

func (segmentRangeRule) Evaluate(_ context.Context, view domain.RuleView) (domain.Result, error) {
	res := domain.Result{}
	for _, ns := range activeNamespaces(view) {
		for _, exp := range activeExperiments(ns) {
			outside := exp.Segments.Difference(exp.Segments.Below(exp.NumSegments))
			if outside.IsEmpty() {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:      "segment_range",
				Severity:  domain.SeverityWarn,
				Message:   fmt.Sprintf("experiment %q claims segments %s outside 0-%d", exp.Name, outside, exp.NumSegments-1),
				Entity:    domain.EntityExperiment,
				EntityID:  exp.ID,
				Namespace: ns.Name,
			})
		}
	}
	return res, nil
}

// NewSegmentUniverseRule reports experiments whose numSegments differs from the
// namespace universe.
func NewSegmentUniverseRule() domain.Rule {
	return segmentUniverseRule{}
}

type segmentUniverseRule struct{}

func (segmentUniverseRule) Name() string { return "segment_universe" }

func (segmentUniverseRule) Evaluate(_ context.Context, view domain.RuleView) (domain.Result, error) {
	res := domain.Result{}
	for _, ns := range activeNamespaces(view) {
		universe := Universe(ns)
		for _, exp := range activeExperiments(ns) {
			if exp.NumSegments == universe {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:      "segment_universe",
				Severity:  domain.SeverityWarn,
				Message:   fmt.Sprintf("experiment %q declares %d segments, namespace universe is %d", exp.Name, exp.NumSegments, universe),
				Entity:    domain.EntityExperiment,
				EntityID:  exp.ID,
				Namespace: ns.Name,
			})
		}
	}
	return res, nil
}

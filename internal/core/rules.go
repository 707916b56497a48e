package core

// NewDefaultRulesEngine builds a rules engine with the built-in integrity checks. All
// of them report warnings; none blocks a dispatch.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewSegmentOverlapRule())
	engine.Register(NewSegmentRangeRule())
	engine.Register(NewSegmentUniverseRule())
	engine.Register(NewParamNameRule())
	engine.Register(NewParamWeightsRule())
	engine.Register(NewNamespaceIntegrityRule())
	return engine
}

// activeNamespaces skips namespaces marked for deletion.
func activeNamespaces(view RuleView) []*Namespace {
	var out []*Namespace
	for _, ns := range view.ListNamespaces() {
		if !ns.MarkedForDeletion() {
			out = append(out, ns)
		}
	}
	return out
}

func activeExperiments(ns *Namespace) []Experiment {
	var out []Experiment
	for _, exp := range ns.ListExperiments() {
		if !exp.MarkedForDeletion() {
			out = append(out, exp)
		}
	}
	return out
}

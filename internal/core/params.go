package core

// AddParam appends an empty, unweighted param to an experiment. ID must be allocated
// by the caller (see NewAddParam).
type AddParam struct {
	Namespace  string
	Experiment string
	ID         string
	Name       string
}

func (AddParam) Kind() Kind                 { return KindAddParam }
func (a AddParam) TargetNamespace() string  { return a.Namespace }
func (a AddParam) TargetExperiment() string { return a.Experiment }

func (a AddParam) envelope() Envelope {
	return Envelope{Type: a.Kind(), Namespace: a.Namespace, Experiment: a.Experiment, Param: a.ID, Name: a.Name}
}

func (a AddParam) reduceNamespace(ns *Namespace) (*Namespace, bool) {
	if a.ID == "" {
		return ns, false
	}
	if _, exists := ns.Params[a.ID]; exists {
		return ns, false
	}
	exp, ok := ns.Experiments[a.Experiment]
	if !ok {
		return ns, false
	}
	exp.ParamIDs = append(append(make([]string, 0, len(exp.ParamIDs)+1), exp.ParamIDs...), a.ID)
	exp.IsDirty = true
	out := withExperiment(ns, exp)
	out = withParam(out, Param{
		ID:        a.ID,
		Name:      a.Name,
		Choices:   []Choice{},
		IsNew:     true,
		IsDirty:   true,
		Lifecycle: LifecycleActive,
	})
	return out, true
}

// DeleteParam marks a param for deletion.
type DeleteParam struct {
	Namespace  string
	Experiment string
	Param      string
}

func (DeleteParam) Kind() Kind                 { return KindParamDelete }
func (a DeleteParam) TargetNamespace() string  { return a.Namespace }
func (a DeleteParam) TargetExperiment() string { return a.Experiment }
func (a DeleteParam) TargetParam() string      { return a.Param }

func (a DeleteParam) envelope() Envelope {
	return Envelope{Type: a.Kind(), Namespace: a.Namespace, Experiment: a.Experiment, Param: a.Param}
}

func (a DeleteParam) reduceNamespace(ns *Namespace) (*Namespace, bool) {
	return updateParam(ns, a.Experiment, a.Param, func(p Param) (Param, bool) {
		if p.MarkedForDeletion() {
			return p, false
		}
		p.Lifecycle = LifecycleMarkedForDeletion
		return p, true
	})
}

// SetParamName renames a param.
type SetParamName struct {
	Namespace  string
	Experiment string
	Param      string
	Name       string
}

func (SetParamName) Kind() Kind                 { return KindParamName }
func (a SetParamName) TargetNamespace() string  { return a.Namespace }
func (a SetParamName) TargetExperiment() string { return a.Experiment }
func (a SetParamName) TargetParam() string      { return a.Param }

func (a SetParamName) envelope() Envelope {
	return Envelope{Type: a.Kind(), Namespace: a.Namespace, Experiment: a.Experiment, Param: a.Param, Name: a.Name}
}

func (a SetParamName) reduceNamespace(ns *Namespace) (*Namespace, bool) {
	return updateParam(ns, a.Experiment, a.Param, func(p Param) (Param, bool) {
		p.Name = a.Name
		return p, true
	})
}

// ToggleWeighted flips a param between uniform and weighted. Choices and their weights
// are kept.
type ToggleWeighted struct {
	Namespace  string
	Experiment string
	Param      string
}

func (ToggleWeighted) Kind() Kind                 { return KindToggleWeighted }
func (a ToggleWeighted) TargetNamespace() string  { return a.Namespace }
func (a ToggleWeighted) TargetExperiment() string { return a.Experiment }
func (a ToggleWeighted) TargetParam() string      { return a.Param }

func (a ToggleWeighted) envelope() Envelope {
	return Envelope{Type: a.Kind(), Namespace: a.Namespace, Experiment: a.Experiment, Param: a.Param}
}

func (a ToggleWeighted) reduceNamespace(ns *Namespace) (*Namespace, bool) {
	return updateParam(ns, a.Experiment, a.Param, func(p Param) (Param, bool) {
		p.Weighted = !p.Weighted
		return p, true
	})
}

// updateParam locates a param owned by the given experiment and replaces it with fn's
// result. The param, its experiment and the namespace are marked dirty on change.
func updateParam(ns *Namespace, experimentID, paramID string, fn func(Param) (Param, bool)) (*Namespace, bool) {
	exp, ok := ns.Experiments[experimentID]
	if !ok || !containsID(exp.ParamIDs, paramID) {
		return ns, false
	}
	p, ok := ns.Params[paramID]
	if !ok {
		return ns, false
	}
	next, changed := fn(p)
	if !changed {
		return ns, false
	}
	next.IsDirty = true
	exp.IsDirty = true
	return withParam(withExperiment(ns, exp), next), true
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

package core

// AddChoice appends a choice with zero weight.
func AddChoice(choices []Choice, value string) []Choice {
	out := make([]Choice, len(choices), len(choices)+1)
	copy(out, choices)
	return append(out, Choice{Value: value})
}

// DeleteChoice removes the choice at index, keeping the relative order of the rest.
// Out-of-range indices leave the slice unchanged.
func DeleteChoice(choices []Choice, index int) ([]Choice, bool) {
	if index < 0 || index >= len(choices) {
		return choices, false
	}
	out := make([]Choice, 0, len(choices)-1)
	out = append(out, choices[:index]...)
	return append(out, choices[index+1:]...), true
}

// SetWeight replaces the weight at index verbatim; no clamping is applied.
func SetWeight(choices []Choice, index int, weight float64) ([]Choice, bool) {
	if index < 0 || index >= len(choices) {
		return choices, false
	}
	out := make([]Choice, len(choices))
	copy(out, choices)
	out[index].Weight = weight
	return out, true
}

// ClearChoices returns an empty distribution.
func ClearChoices([]Choice) []Choice {
	return []Choice{}
}

// AddParamChoice appends a choice to a param's distribution.
type AddParamChoice struct {
	Namespace  string
	Experiment string
	Param      string
	Value      string
}

func (AddParamChoice) Kind() Kind                 { return KindAddChoice }
func (a AddParamChoice) TargetNamespace() string  { return a.Namespace }
func (a AddParamChoice) TargetExperiment() string { return a.Experiment }
func (a AddParamChoice) TargetParam() string      { return a.Param }

func (a AddParamChoice) envelope() Envelope {
	return Envelope{Type: a.Kind(), Namespace: a.Namespace, Experiment: a.Experiment, Param: a.Param, Value: a.Value}
}

func (a AddParamChoice) reduceNamespace(ns *Namespace) (*Namespace, bool) {
	return updateParam(ns, a.Experiment, a.Param, func(p Param) (Param, bool) {
		p.Choices = AddChoice(p.Choices, a.Value)
		return p, true
	})
}

// DeleteParamChoice removes the choice at Index.
type DeleteParamChoice struct {
	Namespace  string
	Experiment string
	Param      string
	Index      int
}

func (DeleteParamChoice) Kind() Kind                 { return KindChoiceDelete }
func (a DeleteParamChoice) TargetNamespace() string  { return a.Namespace }
func (a DeleteParamChoice) TargetExperiment() string { return a.Experiment }
func (a DeleteParamChoice) TargetParam() string      { return a.Param }

func (a DeleteParamChoice) envelope() Envelope {
	idx := a.Index
	return Envelope{Type: a.Kind(), Namespace: a.Namespace, Experiment: a.Experiment, Param: a.Param, Index: &idx}
}

func (a DeleteParamChoice) reduceNamespace(ns *Namespace) (*Namespace, bool) {
	return updateParam(ns, a.Experiment, a.Param, func(p Param) (Param, bool) {
		choices, ok := DeleteChoice(p.Choices, a.Index)
		p.Choices = choices
		return p, ok
	})
}

// SetParamWeight replaces the weight of the choice at Index.
type SetParamWeight struct {
	Namespace  string
	Experiment string
	Param      string
	Index      int
	Weight     float64
}

func (SetParamWeight) Kind() Kind                 { return KindSetWeight }
func (a SetParamWeight) TargetNamespace() string  { return a.Namespace }
func (a SetParamWeight) TargetExperiment() string { return a.Experiment }
func (a SetParamWeight) TargetParam() string      { return a.Param }

func (a SetParamWeight) envelope() Envelope {
	idx, w := a.Index, a.Weight
	return Envelope{Type: a.Kind(), Namespace: a.Namespace, Experiment: a.Experiment, Param: a.Param, Index: &idx, Weight: &w}
}

func (a SetParamWeight) reduceNamespace(ns *Namespace) (*Namespace, bool) {
	return updateParam(ns, a.Experiment, a.Param, func(p Param) (Param, bool) {
		choices, ok := SetWeight(p.Choices, a.Index, a.Weight)
		p.Choices = choices
		return p, ok
	})
}

// ClearParamChoices empties a param's distribution.
type ClearParamChoices struct {
	Namespace  string
	Experiment string
	Param      string
}

func (ClearParamChoices) Kind() Kind                 { return KindClearChoices }
func (a ClearParamChoices) TargetNamespace() string  { return a.Namespace }
func (a ClearParamChoices) TargetExperiment() string { return a.Experiment }
func (a ClearParamChoices) TargetParam() string      { return a.Param }

func (a ClearParamChoices) envelope() Envelope {
	return Envelope{Type: a.Kind(), Namespace: a.Namespace, Experiment: a.Experiment, Param: a.Param}
}

func (a ClearParamChoices) reduceNamespace(ns *Namespace) (*Namespace, bool) {
	return updateParam(ns, a.Experiment, a.Param, func(p Param) (Param, bool) {
		p.Choices = ClearChoices(p.Choices)
		return p, true
	})
}

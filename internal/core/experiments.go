package core

import "fmt"

// AddExperiment appends an experiment to a namespace. ID must be allocated by the
// caller (see NewAddExperiment); empty or already used ids are ignored.
type AddExperiment struct {
	Namespace   string
	ID          string
	Name        string
	NumSegments int
}

func (AddExperiment) Kind() Kind                 { return KindAddExperiment }
func (a AddExperiment) TargetNamespace() string  { return a.Namespace }
func (a AddExperiment) TargetExperiment() string { return a.ID }

func (a AddExperiment) envelope() Envelope {
	env := Envelope{Type: a.Kind(), Namespace: a.Namespace, Experiment: a.ID, Name: a.Name}
	if a.NumSegments != 0 {
		n := a.NumSegments
		env.NumSegments = &n
	}
	return env
}

func (a AddExperiment) reduceNamespace(ns *Namespace) (*Namespace, bool) {
	if a.ID == "" {
		return ns, false
	}
	if _, exists := ns.Experiments[a.ID]; exists {
		return ns, false
	}
	n := a.NumSegments
	if n <= 0 {
		n = Universe(ns)
	}
	exp := Experiment{
		ID:          a.ID,
		Name:        a.Name,
		NumSegments: n,
		ParamIDs:    []string{},
		IsNew:       true,
		IsDirty:     true,
		Lifecycle:   LifecycleActive,
	}
	out := withExperiment(ns, exp)
	out.ExperimentIDs = append(append(make([]string, 0, len(ns.ExperimentIDs)+1), ns.ExperimentIDs...), a.ID)
	return out, true
}

// DeleteExperiment marks an experiment for deletion. Its segments and params are left
// intact until purge.
type DeleteExperiment struct {
	Namespace  string
	Experiment string
}

func (DeleteExperiment) Kind() Kind                 { return KindExperimentDelete }
func (a DeleteExperiment) TargetNamespace() string  { return a.Namespace }
func (a DeleteExperiment) TargetExperiment() string { return a.Experiment }

func (a DeleteExperiment) envelope() Envelope {
	return Envelope{Type: a.Kind(), Namespace: a.Namespace, Experiment: a.Experiment}
}

func (a DeleteExperiment) reduceNamespace(ns *Namespace) (*Namespace, bool) {
	return updateExperiment(ns, a.Experiment, func(exp Experiment) (Experiment, bool) {
		if exp.MarkedForDeletion() {
			return exp, false
		}
		exp.Lifecycle = LifecycleMarkedForDeletion
		return exp, true
	})
}

// SetExperimentName renames an experiment.
type SetExperimentName struct {
	Namespace  string
	Experiment string
	Name       string
}

func (SetExperimentName) Kind() Kind                 { return KindExperimentName }
func (a SetExperimentName) TargetNamespace() string  { return a.Namespace }
func (a SetExperimentName) TargetExperiment() string { return a.Experiment }

func (a SetExperimentName) envelope() Envelope {
	return Envelope{Type: a.Kind(), Namespace: a.Namespace, Experiment: a.Experiment, Name: a.Name}
}

func (a SetExperimentName) reduceNamespace(ns *Namespace) (*Namespace, bool) {
	return updateExperiment(ns, a.Experiment, func(exp Experiment) (Experiment, bool) {
		exp.Name = a.Name
		return exp, true
	})
}

// SetNumSegments replaces an experiment's declared universe size. Existing claims are
// not checked against the new size; ValidateExperiment reports them.
type SetNumSegments struct {
	Namespace   string
	Experiment  string
	NumSegments int
}

func (SetNumSegments) Kind() Kind                 { return KindExperimentNumSegments }
func (a SetNumSegments) TargetNamespace() string  { return a.Namespace }
func (a SetNumSegments) TargetExperiment() string { return a.Experiment }

func (a SetNumSegments) envelope() Envelope {
	n := a.NumSegments
	return Envelope{Type: a.Kind(), Namespace: a.Namespace, Experiment: a.Experiment, NumSegments: &n}
}

func (a SetNumSegments) reduceNamespace(ns *Namespace) (*Namespace, bool) {
	return updateExperiment(ns, a.Experiment, func(exp Experiment) (Experiment, bool) {
		exp.NumSegments = a.NumSegments
		return exp, true
	})
}

// SetSegments replaces an experiment's claimed segments with the given set.
type SetSegments struct {
	Namespace  string
	Experiment string
	Segments   SegmentSet
}

func (SetSegments) Kind() Kind                 { return KindExperimentSegments }
func (a SetSegments) TargetNamespace() string  { return a.Namespace }
func (a SetSegments) TargetExperiment() string { return a.Experiment }

func (a SetSegments) envelope() Envelope {
	segs := a.Segments
	return Envelope{Type: a.Kind(), Namespace: a.Namespace, Experiment: a.Experiment, Segments: &segs}
}

func (a SetSegments) reduceNamespace(ns *Namespace) (*Namespace, bool) {
	return updateExperiment(ns, a.Experiment, func(exp Experiment) (Experiment, bool) {
		exp.Segments = a.Segments
		return exp, true
	})
}

// updateExperiment locates an experiment by id and replaces it with fn's result. The
// experiment and the namespace are marked dirty when fn reports a change.
func updateExperiment(ns *Namespace, id string, fn func(Experiment) (Experiment, bool)) (*Namespace, bool) {
	exp, ok := ns.Experiments[id]
	if !ok {
		return ns, false
	}
	next, changed := fn(exp)
	if !changed {
		return ns, false
	}
	next.IsDirty = true
	return withExperiment(ns, next), true
}

// ExperimentIssue describes one reason an experiment's segment claim is not valid.
type ExperimentIssue struct {
	Code     string     `json:"code"`
	Message  string     `json:"message"`
	Segments SegmentSet `json:"segments"`
	// Other is the sibling experiment involved in an overlap.
	Other string `json:"other,omitempty"`
}

// Issue codes reported by ValidateExperiment.
const (
	IssueOutOfRange       = "out_of_range"
	IssueOverlap          = "overlap"
	IssueUniverseMismatch = "universe_mismatch"
)

// ValidateExperiment computes the integrity issues of one experiment against its
// siblings: claims outside its declared universe, claims shared with another active
// experiment, and a declared universe that disagrees with the namespace's. The result
// is derived on demand and never stored.
func ValidateExperiment(ns *Namespace, id string) ([]ExperimentIssue, error) {
	if ns == nil {
		return nil, ErrNotFound{Entity: EntityNamespace}
	}
	exp, ok := ns.Experiments[id]
	if !ok {
		return nil, ErrNotFound{Entity: EntityExperiment, ID: id}
	}
	var issues []ExperimentIssue
	if exp.NumSegments > 0 {
		if outside := exp.Segments.Difference(SegmentRange(exp.NumSegments)); !outside.IsEmpty() {
			issues = append(issues, ExperimentIssue{
				Code:     IssueOutOfRange,
				Message:  fmt.Sprintf("segments %s exceed numSegments %d", outside, exp.NumSegments),
				Segments: outside,
			})
		}
	}
	if universe := Universe(ns); exp.NumSegments != universe {
		issues = append(issues, ExperimentIssue{
			Code:    IssueUniverseMismatch,
			Message: fmt.Sprintf("numSegments %d differs from namespace universe %d", exp.NumSegments, universe),
		})
	}
	if exp.MarkedForDeletion() {
		return issues, nil
	}
	for _, other := range ns.ListExperiments() {
		if other.ID == exp.ID || other.MarkedForDeletion() {
			continue
		}
		if shared := exp.Segments.Intersect(other.Segments); !shared.IsEmpty() {
			issues = append(issues, ExperimentIssue{
				Code:     IssueOverlap,
				Message:  fmt.Sprintf("segments %s also claimed by %q", shared, other.Name),
				Segments: shared,
				Other:    other.ID,
			})
		}
	}
	return issues, nil
}

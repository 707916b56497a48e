// Package domain defines the console's configuration entities, value types, and
// rule evaluation primitives used by elwinator.
package domain

// EntityType identifies the type of record stored in the configuration graph.
type EntityType string

// Supported entity type identifiers used in violations, tombstones and audit entries.
const (
	// EntityNamespace identifies a namespace record.
	EntityNamespace EntityType = "namespace"
	// EntityLabel identifies a label attached to a namespace.
	EntityLabel EntityType = "label"
	// EntityExperiment identifies an experiment record.
	EntityExperiment EntityType = "experiment"
	// EntityParam identifies a parameter owned by an experiment.
	EntityParam EntityType = "param"
	// EntityChoice identifies a choice inside a parameter distribution.
	EntityChoice EntityType = "choice"
)

// Lifecycle captures the deletion state of a record.
type Lifecycle string

// Records move from active to marked_for_deletion through a delete action, and to
// purged only through the explicit purge step at the save boundary.
const (
	LifecycleActive            Lifecycle = "active"
	LifecycleMarkedForDeletion Lifecycle = "marked_for_deletion"
	LifecyclePurged            Lifecycle = "purged"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities. The console store never rejects a write, so built-in
// rules only report warnings.
const (
	// SeverityBlock marks a violation a host may refuse to publish.
	SeverityBlock Severity = "block"
	// SeverityWarn reports an integrity concern without blocking edits.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// DefaultNumSegments is the size of a namespace segment universe when nothing else
// determines it. The backend stores segment claims as a 16 byte bitmap.
const DefaultNumSegments = 128

// Label is a key/value pair attached to a namespace.
type Label struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Enabled bool   `json:"enabled"`
}

// Choice is one entry in a parameter distribution. Weight is only meaningful when the
// owning param is weighted but is always stored.
type Choice struct {
	Value  string  `json:"value"`
	Weight float64 `json:"weight"`
}

// Param is a named configuration variable belonging to an experiment.
type Param struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Weighted  bool      `json:"weighted"`
	Choices   []Choice  `json:"choices"`
	IsNew     bool      `json:"isNew"`
	IsDirty   bool      `json:"isDirty"`
	Lifecycle Lifecycle `json:"lifecycle"`
}

// MarkedForDeletion reports whether the param is pending deletion.
func (p Param) MarkedForDeletion() bool { return p.Lifecycle == LifecycleMarkedForDeletion }

// Experiment claims a subset of its namespace's segments and owns a list of params.
type Experiment struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	NumSegments int        `json:"numSegments"`
	Segments    SegmentSet `json:"segments"`
	ParamIDs    []string   `json:"paramIds"`
	IsNew       bool       `json:"isNew"`
	IsDirty     bool       `json:"isDirty"`
	Lifecycle   Lifecycle  `json:"lifecycle"`
}

// MarkedForDeletion reports whether the experiment is pending deletion.
func (e Experiment) MarkedForDeletion() bool { return e.Lifecycle == LifecycleMarkedForDeletion }

// Namespace groups experiments sharing one segment universe. Experiments and params
// are stored in identity-keyed arenas owned by the namespace; ExperimentIDs and
// Experiment.ParamIDs carry display order.
//
// A *Namespace reachable from a State must be treated as read-only. Reducers build a
// new value instead of mutating one in place.
type Namespace struct {
	Name          string                `json:"name"`
	Labels        []Label               `json:"labels"`
	ExperimentIDs []string              `json:"experimentIds"`
	Experiments   map[string]Experiment `json:"experiments"`
	Params        map[string]Param      `json:"params"`
	IsNew         bool                  `json:"isNew"`
	IsDirty       bool                  `json:"isDirty"`
	Lifecycle     Lifecycle             `json:"lifecycle"`
	Publish       bool                  `json:"publish"`
}

// NewNamespace returns the default namespace shape with the given name.
func NewNamespace(name string) *Namespace {
	return &Namespace{
		Name:          name,
		Labels:        []Label{},
		ExperimentIDs: []string{},
		Experiments:   map[string]Experiment{},
		Params:        map[string]Param{},
		Lifecycle:     LifecycleActive,
	}
}

// MarkedForDeletion reports whether the namespace is pending deletion.
func (n *Namespace) MarkedForDeletion() bool { return n.Lifecycle == LifecycleMarkedForDeletion }

// Experiment resolves an experiment owned by the namespace.
func (n *Namespace) Experiment(id string) (Experiment, bool) {
	exp, ok := n.Experiments[id]
	return exp, ok
}

// Param resolves a param owned by one of the namespace's experiments.
func (n *Namespace) Param(id string) (Param, bool) {
	p, ok := n.Params[id]
	return p, ok
}

// ListExperiments returns the namespace's experiments in display order.
func (n *Namespace) ListExperiments() []Experiment {
	out := make([]Experiment, 0, len(n.ExperimentIDs))
	for _, id := range n.ExperimentIDs {
		if exp, ok := n.Experiments[id]; ok {
			out = append(out, exp)
		}
	}
	return out
}

// ListParams returns the params of an experiment in display order.
func (n *Namespace) ListParams(experimentID string) []Param {
	exp, ok := n.Experiments[experimentID]
	if !ok {
		return nil
	}
	out := make([]Param, 0, len(exp.ParamIDs))
	for _, id := range exp.ParamIDs {
		if p, ok := n.Params[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// ExperimentByName finds the first experiment with the given name.
func (n *Namespace) ExperimentByName(name string) (Experiment, bool) {
	for _, id := range n.ExperimentIDs {
		if exp, ok := n.Experiments[id]; ok && exp.Name == name {
			return exp, true
		}
	}
	return Experiment{}, false
}

// Clone returns a shallow copy of the namespace with fresh top-level collections.
// Entity values are shared; callers replace entries rather than mutating them.
func (n *Namespace) Clone() *Namespace {
	cp := *n
	cp.Labels = append([]Label(nil), n.Labels...)
	cp.ExperimentIDs = append([]string(nil), n.ExperimentIDs...)
	cp.Experiments = make(map[string]Experiment, len(n.Experiments))
	for k, v := range n.Experiments {
		cp.Experiments[k] = v
	}
	cp.Params = make(map[string]Param, len(n.Params))
	for k, v := range n.Params {
		cp.Params[k] = v
	}
	return &cp
}

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule      string     `json:"rule"`
	Severity  Severity   `json:"severity"`
	Message   string     `json:"message"`
	Entity    EntityType `json:"entity"`
	EntityID  string     `json:"entityId"`
	Namespace string     `json:"namespace,omitempty"`
}

// Result aggregates rule evaluation output.
type Result struct {
	Violations []Violation `json:"violations"`
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// ForNamespace returns the violations attributed to the named namespace.
func (r Result) ForNamespace(name string) Result {
	var out Result
	for _, v := range r.Violations {
		if v.Namespace == name {
			out.Violations = append(out.Violations, v)
		}
	}
	return out
}

// RuleViolationError is returned by hosts that refuse to proceed on blocking violations.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "operation blocked by rules"
}

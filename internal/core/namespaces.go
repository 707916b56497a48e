package core

// ReduceNamespace applies a namespace-targeted action to ns. The returned pointer is ns
// itself when the action is a no-op; otherwise it is a fresh namespace that shares every
// untouched collection with ns.
func ReduceNamespace(ns *Namespace, action NamespaceAction) (*Namespace, bool) {
	if ns == nil || action == nil || action.TargetNamespace() != ns.Name {
		return ns, false
	}
	return action.reduceNamespace(ns)
}

// SetNamespaceName renames a namespace. Empty names and names already used by a
// sibling are ignored.
type SetNamespaceName struct {
	Namespace string
	Name      string
}

func (SetNamespaceName) Kind() Kind                { return KindNamespaceName }
func (a SetNamespaceName) TargetNamespace() string { return a.Namespace }
func (a SetNamespaceName) envelope() Envelope      { return Envelope{Type: a.Kind(), Namespace: a.Namespace, Name: a.Name} }

func (a SetNamespaceName) allowedIn(state State) bool {
	if a.Name == a.Namespace {
		return true
	}
	_, taken := state.Namespace(a.Name)
	return !taken
}

func (a SetNamespaceName) reduceNamespace(ns *Namespace) (*Namespace, bool) {
	if a.Name == "" {
		return ns, false
	}
	out := shallowNamespace(ns)
	out.Name = a.Name
	return out, true
}

// DeleteNamespace marks a namespace for deletion. Its experiments stay in place until
// the namespace is purged.
type DeleteNamespace struct {
	Namespace string
}

func (DeleteNamespace) Kind() Kind                { return KindNamespaceDelete }
func (a DeleteNamespace) TargetNamespace() string { return a.Namespace }
func (a DeleteNamespace) envelope() Envelope      { return Envelope{Type: a.Kind(), Namespace: a.Namespace} }

func (a DeleteNamespace) reduceNamespace(ns *Namespace) (*Namespace, bool) {
	if ns.MarkedForDeletion() {
		return ns, false
	}
	out := shallowNamespace(ns)
	out.Lifecycle = LifecycleMarkedForDeletion
	return out, true
}

// TogglePublish flips whether the namespace is rendered by the publisher.
type TogglePublish struct {
	Namespace string
}

func (TogglePublish) Kind() Kind                { return KindTogglePublish }
func (a TogglePublish) TargetNamespace() string { return a.Namespace }
func (a TogglePublish) envelope() Envelope      { return Envelope{Type: a.Kind(), Namespace: a.Namespace} }

func (a TogglePublish) reduceNamespace(ns *Namespace) (*Namespace, bool) {
	out := shallowNamespace(ns)
	out.Publish = !ns.Publish
	return out, true
}

// AddNamespaceLabel attaches an enabled label to a namespace.
type AddNamespaceLabel struct {
	Namespace string
	Key       string
}

func (AddNamespaceLabel) Kind() Kind                { return KindAddLabel }
func (a AddNamespaceLabel) TargetNamespace() string { return a.Namespace }
func (a AddNamespaceLabel) envelope() Envelope {
	return Envelope{Type: a.Kind(), Namespace: a.Namespace, Key: a.Key}
}

func (a AddNamespaceLabel) reduceNamespace(ns *Namespace) (*Namespace, bool) {
	labels, ok := AddLabel(ns.Labels, a.Key)
	return withLabels(ns, labels, ok)
}

// ToggleNamespaceLabel flips a label's enabled flag.
type ToggleNamespaceLabel struct {
	Namespace string
	Key       string
}

func (ToggleNamespaceLabel) Kind() Kind                { return KindToggleLabel }
func (a ToggleNamespaceLabel) TargetNamespace() string { return a.Namespace }
func (a ToggleNamespaceLabel) envelope() Envelope {
	return Envelope{Type: a.Kind(), Namespace: a.Namespace, Key: a.Key}
}

func (a ToggleNamespaceLabel) reduceNamespace(ns *Namespace) (*Namespace, bool) {
	labels, ok := ToggleLabel(ns.Labels, a.Key)
	return withLabels(ns, labels, ok)
}

// SetNamespaceLabelValue replaces a label's value.
type SetNamespaceLabelValue struct {
	Namespace string
	Key       string
	Value     string
}

func (SetNamespaceLabelValue) Kind() Kind                { return KindLabelValue }
func (a SetNamespaceLabelValue) TargetNamespace() string { return a.Namespace }
func (a SetNamespaceLabelValue) envelope() Envelope {
	return Envelope{Type: a.Kind(), Namespace: a.Namespace, Key: a.Key, Value: a.Value}
}

func (a SetNamespaceLabelValue) reduceNamespace(ns *Namespace) (*Namespace, bool) {
	labels, ok := SetLabelValue(ns.Labels, a.Key, a.Value)
	return withLabels(ns, labels, ok)
}

// shallowNamespace copies the namespace header and marks it dirty. Collections are
// shared with the source until a caller replaces them.
func shallowNamespace(ns *Namespace) *Namespace {
	out := *ns
	out.IsDirty = true
	return &out
}

func withLabels(ns *Namespace, labels []Label, changed bool) (*Namespace, bool) {
	if !changed {
		return ns, false
	}
	out := shallowNamespace(ns)
	out.Labels = labels
	return out, true
}

// withExperiment stores exp in a copy of the namespace's experiment arena.
func withExperiment(ns *Namespace, exp Experiment) *Namespace {
	out := shallowNamespace(ns)
	out.Experiments = make(map[string]Experiment, len(ns.Experiments)+1)
	for id, e := range ns.Experiments {
		out.Experiments[id] = e
	}
	out.Experiments[exp.ID] = exp
	return out
}

// withParam stores p in a copy of the namespace's param arena.
func withParam(ns *Namespace, p Param) *Namespace {
	out := shallowNamespace(ns)
	out.Params = make(map[string]Param, len(ns.Params)+1)
	for id, existing := range ns.Params {
		out.Params[id] = existing
	}
	out.Params[p.ID] = p
	return out
}

// Universe returns the namespace's segment universe: the largest NumSegments among its
// experiments, or DefaultNumSegments when none declares one.
func Universe(ns *Namespace) int {
	if ns == nil {
		return DefaultNumSegments
	}
	return universeOf(ns.ListExperiments(), 0)
}

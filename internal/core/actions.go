package core

import "github.com/google/uuid"

// Kind is the stable tag carried by an action in its envelope form.
type Kind string

// Action kinds. Root-level kinds target the namespace collection; every other kind
// names a namespace.
const (
	KindLoadNamespaces        Kind = "NAMESPACES_LOADED"
	KindAddNamespace          Kind = "ADD_NAMESPACE"
	KindNamespaceName         Kind = "NAMESPACE_NAME"
	KindNamespaceDelete       Kind = "NAMESPACE_DELETE"
	KindTogglePublish         Kind = "TOGGLE_PUBLISH"
	KindAddLabel              Kind = "ADD_LABEL"
	KindToggleLabel           Kind = "TOGGLE_LABEL"
	KindLabelValue            Kind = "LABEL_VALUE"
	KindAddExperiment         Kind = "ADD_EXPERIMENT"
	KindExperimentDelete      Kind = "EXPERIMENT_DELETE"
	KindExperimentName        Kind = "EXPERIMENT_NAME"
	KindExperimentNumSegments Kind = "EXPERIMENT_NUM_SEGMENTS"
	KindExperimentSegments    Kind = "EXPERIMENT_SEGMENTS"
	KindAddParam              Kind = "ADD_PARAM"
	KindParamDelete           Kind = "PARAM_DELETE"
	KindParamName             Kind = "PARAM_NAME"
	KindToggleWeighted        Kind = "TOGGLE_WEIGHTED"
	KindAddChoice             Kind = "ADD_CHOICE"
	KindChoiceDelete          Kind = "CHOICE_DELETE"
	KindSetWeight             Kind = "ADD_WEIGHT"
	KindClearChoices          Kind = "CLEAR_CHOICES"
)

// AllKinds lists every action kind understood by Apply and DecodeAction.
func AllKinds() []Kind {
	return []Kind{
		KindLoadNamespaces, KindAddNamespace,
		KindNamespaceName, KindNamespaceDelete, KindTogglePublish,
		KindAddLabel, KindToggleLabel, KindLabelValue,
		KindAddExperiment, KindExperimentDelete, KindExperimentName,
		KindExperimentNumSegments, KindExperimentSegments,
		KindAddParam, KindParamDelete, KindParamName, KindToggleWeighted,
		KindAddChoice, KindChoiceDelete, KindSetWeight, KindClearChoices,
	}
}

// Action is a mutation accepted by Apply. The set of actions is closed: only types in
// this package implement it, and each family carries its own reducer method.
type Action interface {
	Kind() Kind
	envelope() Envelope
}

// RootAction operates on the namespace collection itself.
type RootAction interface {
	Action
	reduceState(State) State
}

// NamespaceAction targets exactly one namespace by name.
type NamespaceAction interface {
	Action
	TargetNamespace() string
	reduceNamespace(*Namespace) (*Namespace, bool)
}

// ExperimentAction targets one experiment inside a namespace.
type ExperimentAction interface {
	NamespaceAction
	TargetExperiment() string
}

// ParamAction targets one param inside an experiment.
type ParamAction interface {
	ExperimentAction
	TargetParam() string
}

// stateGuard is implemented by namespace actions whose validity depends on sibling
// namespaces.
type stateGuard interface {
	allowedIn(State) bool
}

var newID = uuid.NewString

// NewAddNamespace builds an AddNamespace action.
func NewAddNamespace(name string) AddNamespace {
	return AddNamespace{Name: name}
}

// NewAddExperiment allocates a fresh experiment identity. A zero numSegments adopts
// the namespace universe when the action is applied.
func NewAddExperiment(namespace, name string, numSegments int) AddExperiment {
	return AddExperiment{Namespace: namespace, ID: newID(), Name: name, NumSegments: numSegments}
}

// NewAddParam allocates a fresh param identity.
func NewAddParam(namespace, experimentID, name string) AddParam {
	return AddParam{Namespace: namespace, Experiment: experimentID, ID: newID(), Name: name}
}

// NewLoadNamespaces builds a hydration action, allocating identities for experiments
// and params that arrive without one.
func NewLoadNamespaces(payloads []NamespacePayload) LoadNamespaces {
	out := make([]NamespacePayload, len(payloads))
	for i, ns := range payloads {
		cp := ns
		cp.Experiments = make([]ExperimentPayload, len(ns.Experiments))
		for j, exp := range ns.Experiments {
			if exp.ID == "" {
				exp.ID = newID()
			}
			params := make([]ParamPayload, len(exp.Params))
			for k, p := range exp.Params {
				if p.ID == "" {
					p.ID = newID()
				}
				params[k] = p
			}
			exp.Params = params
			cp.Experiments[j] = exp
		}
		out[i] = cp
	}
	return LoadNamespaces{Namespaces: out}
}

package core

import "fmt"

// State is the root of the console configuration: the ordered namespace collection.
// Namespace pointers held by a State are never mutated; Apply returns a new State
// that shares every namespace the action did not touch.
type State struct {
	Namespaces []*Namespace `json:"namespaces"`
}

// Namespace returns the first namespace with the given name.
func (s State) Namespace(name string) (*Namespace, bool) {
	if idx := s.index(name); idx >= 0 {
		return s.Namespaces[idx], true
	}
	return nil, false
}

// ListNamespaces implements RuleView.
func (s State) ListNamespaces() []*Namespace {
	return append([]*Namespace(nil), s.Namespaces...)
}

// FindNamespace implements RuleView.
func (s State) FindNamespace(name string) (*Namespace, bool) { return s.Namespace(name) }

func (s State) index(name string) int {
	for i, ns := range s.Namespaces {
		if ns.Name == name {
			return i
		}
	}
	return -1
}

// Apply reduces one action against state. Unknown targets leave the state untouched
// and the same value is returned.
func Apply(state State, action Action) State {
	switch a := action.(type) {
	case RootAction:
		return a.reduceState(state)
	case NamespaceAction:
		return routeNamespace(state, a)
	default:
		return state
	}
}

// ApplyAll folds actions over state in order.
func ApplyAll(state State, actions ...Action) State {
	for _, a := range actions {
		state = Apply(state, a)
	}
	return state
}

func routeNamespace(state State, action NamespaceAction) State {
	idx := state.index(action.TargetNamespace())
	if idx < 0 {
		return state
	}
	if guard, ok := action.(stateGuard); ok && !guard.allowedIn(state) {
		return state
	}
	next, changed := action.reduceNamespace(state.Namespaces[idx])
	if !changed {
		return state
	}
	out := make([]*Namespace, len(state.Namespaces))
	copy(out, state.Namespaces)
	out[idx] = next
	return State{Namespaces: out}
}

// LoadNamespaces replaces the whole state with hydrated payloads.
type LoadNamespaces struct {
	Namespaces []NamespacePayload
}

func (LoadNamespaces) Kind() Kind { return KindLoadNamespaces }

func (a LoadNamespaces) envelope() Envelope {
	return Envelope{Type: a.Kind(), Namespaces: a.Namespaces}
}

func (a LoadNamespaces) reduceState(State) State { return Hydrate(a.Namespaces) }

// AddNamespace appends a new namespace. Empty and already used names are ignored.
type AddNamespace struct {
	Name string
}

func (AddNamespace) Kind() Kind { return KindAddNamespace }

func (a AddNamespace) envelope() Envelope { return Envelope{Type: a.Kind(), Name: a.Name} }

func (a AddNamespace) reduceState(state State) State {
	if a.Name == "" || state.index(a.Name) >= 0 {
		return state
	}
	ns := NewNamespace(a.Name)
	ns.IsNew = true
	ns.IsDirty = true
	out := make([]*Namespace, 0, len(state.Namespaces)+1)
	out = append(out, state.Namespaces...)
	return State{Namespaces: append(out, ns)}
}

// Hydrate builds a clean state from payloads. Missing optional fields take their
// defaults; experiments and params without an id get one derived from their position.
// A payload whose name was already seen is dropped, so the first one wins.
func Hydrate(payloads []NamespacePayload) State {
	out := make([]*Namespace, 0, len(payloads))
	seen := make(map[string]bool, len(payloads))
	for _, p := range payloads {
		if seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		out = append(out, hydrateNamespace(p))
	}
	return State{Namespaces: out}
}

func hydrateNamespace(p NamespacePayload) *Namespace {
	ns := NewNamespace(p.Name)
	ns.Publish = p.Publish
	ns.Labels = append(ns.Labels, p.Labels...)

	universe := 0
	for _, ep := range p.Experiments {
		if ep.NumSegments > universe {
			universe = ep.NumSegments
		}
	}
	if universe == 0 {
		universe = DefaultNumSegments
	}

	for i, ep := range p.Experiments {
		id := uniqueID(ep.ID, fmt.Sprintf("%s/experiments/%d", p.Name, i), func(c string) bool {
			_, used := ns.Experiments[c]
			return used
		})
		exp := Experiment{
			ID:          id,
			Name:        ep.Name,
			NumSegments: ep.NumSegments,
			Segments:    ep.Segments,
			ParamIDs:    make([]string, 0, len(ep.Params)),
			Lifecycle:   LifecycleActive,
		}
		if exp.NumSegments <= 0 {
			exp.NumSegments = universe
		}
		for j, pp := range ep.Params {
			pid := uniqueID(pp.ID, fmt.Sprintf("%s/params/%d", id, j), func(c string) bool {
				_, used := ns.Params[c]
				return used
			})
			ns.Params[pid] = Param{
				ID:        pid,
				Name:      pp.Name,
				Weighted:  pp.Weighted,
				Choices:   append([]Choice{}, pp.Choices...),
				Lifecycle: LifecycleActive,
			}
			exp.ParamIDs = append(exp.ParamIDs, pid)
		}
		ns.Experiments[id] = exp
		ns.ExperimentIDs = append(ns.ExperimentIDs, id)
	}
	return ns
}

func uniqueID(id, fallback string, used func(string) bool) string {
	if id != "" && !used(id) {
		return id
	}
	candidate := fallback
	for n := 1; used(candidate); n++ {
		candidate = fmt.Sprintf("%s~%d", fallback, n)
	}
	return candidate
}

// Tombstone records a record dropped by Purge. Records nested under a purged parent
// are not reported separately.
type Tombstone struct {
	Entity    EntityType `json:"entity"`
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Namespace string     `json:"namespace"`
	Lifecycle Lifecycle  `json:"lifecycle"`
}

// Purge removes every record marked for deletion and reports what was removed.
// Namespaces without marked records keep their pointer.
func Purge(state State) (State, []Tombstone) {
	var tombstones []Tombstone
	out := make([]*Namespace, 0, len(state.Namespaces))
	for _, ns := range state.Namespaces {
		if ns.MarkedForDeletion() {
			tombstones = append(tombstones, Tombstone{
				Entity: EntityNamespace, ID: ns.Name, Name: ns.Name,
				Namespace: ns.Name, Lifecycle: LifecyclePurged,
			})
			continue
		}
		next, dropped := purgeNamespace(ns)
		tombstones = append(tombstones, dropped...)
		out = append(out, next)
	}
	return State{Namespaces: out}, tombstones
}

func purgeNamespace(ns *Namespace) (*Namespace, []Tombstone) {
	var tombstones []Tombstone
	experiments := make(map[string]Experiment, len(ns.Experiments))
	params := make(map[string]Param, len(ns.Params))
	ids := make([]string, 0, len(ns.ExperimentIDs))
	for _, id := range ns.ExperimentIDs {
		exp, ok := ns.Experiments[id]
		if !ok {
			continue
		}
		if exp.MarkedForDeletion() {
			tombstones = append(tombstones, Tombstone{
				Entity: EntityExperiment, ID: exp.ID, Name: exp.Name,
				Namespace: ns.Name, Lifecycle: LifecyclePurged,
			})
			continue
		}
		kept := make([]string, 0, len(exp.ParamIDs))
		for _, pid := range exp.ParamIDs {
			p, ok := ns.Params[pid]
			if !ok {
				continue
			}
			if p.MarkedForDeletion() {
				tombstones = append(tombstones, Tombstone{
					Entity: EntityParam, ID: p.ID, Name: p.Name,
					Namespace: ns.Name, Lifecycle: LifecyclePurged,
				})
				continue
			}
			params[pid] = p
			kept = append(kept, pid)
		}
		exp.ParamIDs = kept
		experiments[id] = exp
		ids = append(ids, id)
	}
	if len(tombstones) == 0 {
		return ns, nil
	}
	out := *ns
	out.ExperimentIDs = ids
	out.Experiments = experiments
	out.Params = params
	return &out, tombstones
}

// ExportPayloads purges the state and converts it to payloads without bookkeeping
// fields, in display order. Only the first namespace of a name is exported.
func ExportPayloads(state State) []NamespacePayload {
	purged, _ := Purge(state)
	out := make([]NamespacePayload, 0, len(purged.Namespaces))
	seen := make(map[string]bool, len(purged.Namespaces))
	for _, ns := range purged.Namespaces {
		if seen[ns.Name] {
			continue
		}
		seen[ns.Name] = true
		out = append(out, NamespaceToPayload(ns))
	}
	return out
}

// NamespaceToPayload converts one namespace, marked records included.
func NamespaceToPayload(ns *Namespace) NamespacePayload {
	p := NamespacePayload{
		Name:    ns.Name,
		Labels:  append([]Label(nil), ns.Labels...),
		Publish: ns.Publish,
	}
	for _, exp := range ns.ListExperiments() {
		ep := ExperimentPayload{
			ID:          exp.ID,
			Name:        exp.Name,
			NumSegments: exp.NumSegments,
			Segments:    exp.Segments,
		}
		for _, param := range ns.ListParams(exp.ID) {
			ep.Params = append(ep.Params, ParamPayload{
				ID:       param.ID,
				Name:     param.Name,
				Weighted: param.Weighted,
				Choices:  append([]Choice(nil), param.Choices...),
			})
		}
		p.Experiments = append(p.Experiments, ep)
	}
	return p
}

// Package publish renders namespaces to the document shape read by the experiment
// server and writes them to a blob store.
package publish

import (
	"fmt"

	"elwinator/internal/core"
)

// ValueType tags how a param's choices are drawn.
type ValueType string

const (
	ValueTypeUniform  ValueType = "uniform"
	ValueTypeWeighted ValueType = "weighted"
)

// Document is the published form of one namespace. Segments holds the namespace's
// free segments; each experiment holds its own claim. Both are hex bitmaps.
type Document struct {
	Name        string               `json:"name"`
	Segments    string               `json:"segments"`
	Labels      []string             `json:"labels"`
	Experiments []ExperimentDocument `json:"experiments"`
}

// ExperimentDocument is one active experiment of a Document.
type ExperimentDocument struct {
	Name     string          `json:"name"`
	Segments string          `json:"segments"`
	Params   []ParamDocument `json:"params"`
}

// ParamDocument is one active param of an ExperimentDocument.
type ParamDocument struct {
	Name  string     `json:"name"`
	Type  ValueType  `json:"type"`
	Value ParamValue `json:"value"`
}

// ParamValue lists the choices and, for weighted params, their weights in the same order.
type ParamValue struct {
	Choices []string  `json:"choices"`
	Weights []float64 `json:"weights,omitempty"`
}

// Render converts a namespace to its Document. Records marked for deletion are left
// out and so are disabled labels. The free bitmap still excludes the claims of
// soft-deleted experiments until they are purged. A segment outside the namespace
// universe cannot be encoded and fails the render.
func Render(ns *core.Namespace) (Document, error) {
	alloc := core.Allocate(ns)
	free, err := alloc.Available.Hex(alloc.Universe)
	if err != nil {
		return Document{}, fmt.Errorf("namespace %s: %w", ns.Name, err)
	}
	doc := Document{
		Name:        ns.Name,
		Segments:    free,
		Labels:      []string{},
		Experiments: []ExperimentDocument{},
	}
	for _, l := range ns.Labels {
		if l.Enabled {
			doc.Labels = append(doc.Labels, l.Key)
		}
	}
	for _, exp := range ns.ListExperiments() {
		if exp.MarkedForDeletion() {
			continue
		}
		claim, err := exp.Segments.Hex(alloc.Universe)
		if err != nil {
			return Document{}, fmt.Errorf("namespace %s experiment %s: %w", ns.Name, exp.Name, err)
		}
		ed := ExperimentDocument{Name: exp.Name, Segments: claim, Params: []ParamDocument{}}
		for _, p := range ns.ListParams(exp.ID) {
			if p.MarkedForDeletion() {
				continue
			}
			ed.Params = append(ed.Params, renderParam(p))
		}
		doc.Experiments = append(doc.Experiments, ed)
	}
	return doc, nil
}

func renderParam(p core.Param) ParamDocument {
	pd := ParamDocument{Name: p.Name, Type: ValueTypeUniform, Value: ParamValue{Choices: make([]string, 0, len(p.Choices))}}
	if p.Weighted {
		pd.Type = ValueTypeWeighted
		pd.Value.Weights = make([]float64, 0, len(p.Choices))
	}
	for _, c := range p.Choices {
		pd.Value.Choices = append(pd.Value.Choices, c.Value)
		if p.Weighted {
			pd.Value.Weights = append(pd.Value.Weights, c.Weight)
		}
	}
	return pd
}

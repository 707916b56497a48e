package domain

// NamespacePayload is the nested namespace shape exchanged with persistence layers and
// accepted by hydration. It carries no internal bookkeeping fields; optional fields
// may be omitted and are defaulted on load.
type NamespacePayload struct {
	Name        string              `json:"name"`
	Labels      []Label             `json:"labels,omitempty"`
	Experiments []ExperimentPayload `json:"experiments,omitempty"`
	Publish     bool                `json:"publish,omitempty"`
}

// ExperimentPayload is the nested experiment shape within a NamespacePayload.
type ExperimentPayload struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	NumSegments int            `json:"numSegments,omitempty"`
	Segments    SegmentSet     `json:"segments"`
	Params      []ParamPayload `json:"params,omitempty"`
}

// ParamPayload is the nested param shape within an ExperimentPayload.
type ParamPayload struct {
	ID       string   `json:"id,omitempty"`
	Name     string   `json:"name"`
	Weighted bool     `json:"weighted,omitempty"`
	Choices  []Choice `json:"choices,omitempty"`
}

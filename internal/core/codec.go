package core

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrUnknownAction is returned when an envelope carries an unrecognised type.
var ErrUnknownAction = errors.New("unknown action type")

// ErrInvalidAction is returned when an envelope lacks a field its type requires.
var ErrInvalidAction = errors.New("invalid action")

// Envelope is the tagged-record form of an action exchanged with hosts.
type Envelope struct {
	Type        Kind               `json:"type"`
	Namespace   string             `json:"namespace,omitempty"`
	Experiment  string             `json:"experiment,omitempty"`
	Param       string             `json:"param,omitempty"`
	Name        string             `json:"name,omitempty"`
	Key         string             `json:"key,omitempty"`
	Value       string             `json:"value,omitempty"`
	Index       *int               `json:"index,omitempty"`
	Weight      *float64           `json:"weight,omitempty"`
	NumSegments *int               `json:"numSegments,omitempty"`
	Segments    *SegmentSet        `json:"segments,omitempty"`
	Namespaces  []NamespacePayload `json:"namespaces,omitempty"`
}

// EncodeAction renders an action as JSON.
func EncodeAction(action Action) ([]byte, error) {
	if action == nil {
		return nil, fmt.Errorf("%w: nil action", ErrInvalidAction)
	}
	return json.Marshal(action.envelope())
}

// EnvelopeOf returns the tagged-record form of an action.
func EnvelopeOf(action Action) Envelope { return action.envelope() }

// DecodeAction parses one JSON envelope.
func DecodeAction(data []byte) (Action, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode action: %w", err)
	}
	return env.Action()
}

// DecodeActions reads either a JSON array of envelopes or a stream of envelopes
// (one JSON object after another, as in JSON lines).
func DecodeActions(r io.Reader) ([]Action, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("decode actions: %w", err)
	}
	dec := json.NewDecoder(br)
	var envs []Envelope
	if first == '[' {
		if err := dec.Decode(&envs); err != nil {
			return nil, fmt.Errorf("decode actions: %w", err)
		}
	} else {
		for {
			var env Envelope
			err := dec.Decode(&env)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("decode actions: %w", err)
			}
			envs = append(envs, env)
		}
	}
	actions := make([]Action, 0, len(envs))
	for i, env := range envs {
		a, err := env.Action()
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		actions = append(actions, a)
	}
	return actions, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		if !bytes.ContainsRune([]byte(" \t\r\n"), rune(b[0])) {
			return b[0], nil
		}
		if _, err := br.ReadByte(); err != nil {
			return 0, err
		}
	}
}

// Action converts the envelope to its typed action. ADD_EXPERIMENT and ADD_PARAM
// envelopes without an id get a fresh one.
func (e Envelope) Action() (Action, error) {
	build, ok := envelopeDecoders[e.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, e.Type)
	}
	if e.Type != KindLoadNamespaces && e.Type != KindAddNamespace && e.Namespace == "" {
		return nil, fmt.Errorf("%w: %s requires namespace", ErrInvalidAction, e.Type)
	}
	action, err := build(e)
	if err != nil {
		return nil, err
	}
	return action, nil
}

func (e Envelope) require(fields ...string) error {
	for _, f := range fields {
		missing := false
		switch f {
		case "experiment":
			missing = e.Experiment == ""
		case "param":
			missing = e.Param == ""
		case "key":
			missing = e.Key == ""
		case "index":
			missing = e.Index == nil
		case "weight":
			missing = e.Weight == nil
		case "numSegments":
			missing = e.NumSegments == nil
		case "segments":
			missing = e.Segments == nil
		}
		if missing {
			return fmt.Errorf("%w: %s requires %s", ErrInvalidAction, e.Type, f)
		}
	}
	return nil
}

var envelopeDecoders = map[Kind]func(Envelope) (Action, error){
	KindLoadNamespaces: func(e Envelope) (Action, error) {
		return NewLoadNamespaces(e.Namespaces), nil
	},
	KindAddNamespace: func(e Envelope) (Action, error) {
		if e.Name == "" {
			return nil, fmt.Errorf("%w: %s requires name", ErrInvalidAction, e.Type)
		}
		return AddNamespace{Name: e.Name}, nil
	},
	KindNamespaceName: func(e Envelope) (Action, error) {
		return SetNamespaceName{Namespace: e.Namespace, Name: e.Name}, nil
	},
	KindNamespaceDelete: func(e Envelope) (Action, error) {
		return DeleteNamespace{Namespace: e.Namespace}, nil
	},
	KindTogglePublish: func(e Envelope) (Action, error) {
		return TogglePublish{Namespace: e.Namespace}, nil
	},
	KindAddLabel: func(e Envelope) (Action, error) {
		return AddNamespaceLabel{Namespace: e.Namespace, Key: e.Key}, e.require("key")
	},
	KindToggleLabel: func(e Envelope) (Action, error) {
		return ToggleNamespaceLabel{Namespace: e.Namespace, Key: e.Key}, e.require("key")
	},
	KindLabelValue: func(e Envelope) (Action, error) {
		return SetNamespaceLabelValue{Namespace: e.Namespace, Key: e.Key, Value: e.Value}, e.require("key")
	},
	KindAddExperiment: func(e Envelope) (Action, error) {
		a := AddExperiment{Namespace: e.Namespace, ID: e.Experiment, Name: e.Name}
		if a.ID == "" {
			a.ID = newID()
		}
		if e.NumSegments != nil {
			a.NumSegments = *e.NumSegments
		}
		return a, nil
	},
	KindExperimentDelete: func(e Envelope) (Action, error) {
		return DeleteExperiment{Namespace: e.Namespace, Experiment: e.Experiment}, e.require("experiment")
	},
	KindExperimentName: func(e Envelope) (Action, error) {
		return SetExperimentName{Namespace: e.Namespace, Experiment: e.Experiment, Name: e.Name}, e.require("experiment")
	},
	KindExperimentNumSegments: func(e Envelope) (Action, error) {
		if err := e.require("experiment", "numSegments"); err != nil {
			return nil, err
		}
		return SetNumSegments{Namespace: e.Namespace, Experiment: e.Experiment, NumSegments: *e.NumSegments}, nil
	},
	KindExperimentSegments: func(e Envelope) (Action, error) {
		if err := e.require("experiment", "segments"); err != nil {
			return nil, err
		}
		return SetSegments{Namespace: e.Namespace, Experiment: e.Experiment, Segments: *e.Segments}, nil
	},
	KindAddParam: func(e Envelope) (Action, error) {
		a := AddParam{Namespace: e.Namespace, Experiment: e.Experiment, ID: e.Param, Name: e.Name}
		if a.ID == "" {
			a.ID = newID()
		}
		return a, e.require("experiment")
	},
	KindParamDelete: func(e Envelope) (Action, error) {
		return DeleteParam{Namespace: e.Namespace, Experiment: e.Experiment, Param: e.Param}, e.require("experiment", "param")
	},
	KindParamName: func(e Envelope) (Action, error) {
		return SetParamName{Namespace: e.Namespace, Experiment: e.Experiment, Param: e.Param, Name: e.Name}, e.require("experiment", "param")
	},
	KindToggleWeighted: func(e Envelope) (Action, error) {
		return ToggleWeighted{Namespace: e.Namespace, Experiment: e.Experiment, Param: e.Param}, e.require("experiment", "param")
	},
	KindAddChoice: func(e Envelope) (Action, error) {
		return AddParamChoice{Namespace: e.Namespace, Experiment: e.Experiment, Param: e.Param, Value: e.Value}, e.require("experiment", "param")
	},
	KindChoiceDelete: func(e Envelope) (Action, error) {
		if err := e.require("experiment", "param", "index"); err != nil {
			return nil, err
		}
		return DeleteParamChoice{Namespace: e.Namespace, Experiment: e.Experiment, Param: e.Param, Index: *e.Index}, nil
	},
	KindSetWeight: func(e Envelope) (Action, error) {
		if err := e.require("experiment", "param", "index", "weight"); err != nil {
			return nil, err
		}
		return SetParamWeight{
			Namespace:  e.Namespace,
			Experiment: e.Experiment,
			Param:      e.Param,
			Index:      *e.Index,
			Weight:     *e.Weight,
		}, nil
	},
	KindClearChoices: func(e Envelope) (Action, error) {
		return ClearParamChoices{Namespace: e.Namespace, Experiment: e.Experiment, Param: e.Param}, e.require("experiment", "param")
	},
}

package core

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func sampleActions() []Action {
	return []Action{
		NewLoadNamespaces(fixturePayloads()),
		AddNamespace{Name: "beta"},
		SetNamespaceName{Namespace: "beta", Name: "gamma"},
		DeleteNamespace{Namespace: "gamma"},
		TogglePublish{Namespace: "prod"},
		AddNamespaceLabel{Namespace: "prod", Key: "ios"},
		ToggleNamespaceLabel{Namespace: "prod", Key: "ios"},
		SetNamespaceLabelValue{Namespace: "prod", Key: "ios", Value: "17"},
		AddExperiment{Namespace: "prod", ID: "exp-c", Name: "hero", NumSegments: 16},
		DeleteExperiment{Namespace: "prod", Experiment: "exp-c"},
		SetExperimentName{Namespace: "prod", Experiment: "exp-a", Name: "cta"},
		SetNumSegments{Namespace: "prod", Experiment: "exp-a", NumSegments: 32},
		SetSegments{Namespace: "prod", Experiment: "exp-a", Segments: NewSegmentSet(4, 5)},
		AddParam{Namespace: "prod", Experiment: "exp-a", ID: "p-new", Name: "font"},
		DeleteParam{Namespace: "prod", Experiment: "exp-a", Param: "p-new"},
		SetParamName{Namespace: "prod", Experiment: "exp-a", Param: "p-color", Name: "colour"},
		ToggleWeighted{Namespace: "prod", Experiment: "exp-a", Param: "p-color"},
		AddParamChoice{Namespace: "prod", Experiment: "exp-a", Param: "p-color", Value: "green"},
		DeleteParamChoice{Namespace: "prod", Experiment: "exp-a", Param: "p-color", Index: 0},
		SetParamWeight{Namespace: "prod", Experiment: "exp-a", Param: "p-color", Index: 1, Weight: 2.5},
		ClearParamChoices{Namespace: "prod", Experiment: "exp-a", Param: "p-color"},
	}
}

func TestEveryKindRoundTrips(t *testing.T) {
	seen := map[Kind]bool{}
	for _, action := range sampleActions() {
		data, err := EncodeAction(action)
		if err != nil {
			t.Fatalf("encode %s: %v", action.Kind(), err)
		}
		decoded, err := DecodeAction(data)
		if err != nil {
			t.Fatalf("decode %s: %v (%s)", action.Kind(), err, data)
		}
		if decoded.Kind() != action.Kind() {
			t.Fatalf("kind changed: %s -> %s", action.Kind(), decoded.Kind())
		}
		if _, ok := action.(LoadNamespaces); !ok {
			if !reflect.DeepEqual(decoded, action) {
				t.Fatalf("%s did not round trip: %+v vs %+v", action.Kind(), decoded, action)
			}
		}
		seen[action.Kind()] = true
	}
	for _, k := range AllKinds() {
		if !seen[k] {
			t.Fatalf("kind %s has no round trip case", k)
		}
	}
}

func TestDecodedActionsReduceLikeTypedOnes(t *testing.T) {
	typed := ApplyAll(State{}, sampleActions()...)
	var decoded []Action
	for _, a := range sampleActions() {
		data, err := EncodeAction(a)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		d, err := DecodeAction(data)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		decoded = append(decoded, d)
	}
	viaWire := ApplyAll(State{}, decoded...)
	a, b := ExportPayloads(typed), ExportPayloads(viaWire)
	if len(a) != len(b) {
		t.Fatalf("namespace count differs: %d vs %d", len(a), len(b))
	}
	pa, _ := typed.Namespace("prod")
	pb, _ := viaWire.Namespace("prod")
	ca, _ := pa.Param("p-color")
	cb, _ := pb.Param("p-color")
	if ca.Name != cb.Name || ca.Weighted != cb.Weighted || len(ca.Choices) != len(cb.Choices) {
		t.Fatalf("param differs: %+v vs %+v", ca, cb)
	}
}

func TestDecodeActionsArrayAndStream(t *testing.T) {
	array := `[
		{"type":"TOGGLE_PUBLISH","namespace":"prod"},
		{"type":"ADD_LABEL","namespace":"prod","key":"web"}
	]`
	stream := `{"type":"TOGGLE_PUBLISH","namespace":"prod"}
{"type":"ADD_LABEL","namespace":"prod","key":"web"}
`
	for name, input := range map[string]string{"array": array, "stream": stream} {
		actions, err := DecodeActions(strings.NewReader(input))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(actions) != 2 || actions[0].Kind() != KindTogglePublish || actions[1].Kind() != KindAddLabel {
			t.Fatalf("%s: unexpected actions %+v", name, actions)
		}
	}
	actions, err := DecodeActions(strings.NewReader("  \n"))
	if err != nil || len(actions) != 0 {
		t.Fatalf("blank input: %v %v", actions, err)
	}
}

func TestDecodeAllocatesMissingIDs(t *testing.T) {
	a, err := DecodeAction([]byte(`{"type":"ADD_EXPERIMENT","namespace":"prod","name":"x"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a.(AddExperiment).ID == "" {
		t.Fatal("expected generated experiment id")
	}
	p, err := DecodeAction([]byte(`{"type":"ADD_PARAM","namespace":"prod","experiment":"exp-a","name":"x"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.(AddParam).ID == "" {
		t.Fatal("expected generated param id")
	}
}

func TestDecodeRejectsBadEnvelopes(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  error
	}{
		{"unknown type", `{"type":"NOPE","namespace":"prod"}`, ErrUnknownAction},
		{"missing namespace", `{"type":"TOGGLE_PUBLISH"}`, ErrInvalidAction},
		{"missing name", `{"type":"ADD_NAMESPACE"}`, ErrInvalidAction},
		{"missing key", `{"type":"ADD_LABEL","namespace":"prod"}`, ErrInvalidAction},
		{"missing experiment", `{"type":"EXPERIMENT_NAME","namespace":"prod","name":"x"}`, ErrInvalidAction},
		{"missing index", `{"type":"CHOICE_DELETE","namespace":"prod","experiment":"e","param":"p"}`, ErrInvalidAction},
		{"missing weight", `{"type":"ADD_WEIGHT","namespace":"prod","experiment":"e","param":"p","index":0}`, ErrInvalidAction},
		{"missing segments", `{"type":"EXPERIMENT_SEGMENTS","namespace":"prod","experiment":"e"}`, ErrInvalidAction},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, err := DecodeAction([]byte(tc.input))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if a != nil {
				t.Fatalf("expected nil action on error, got %+v", a)
			}
		})
	}

	if _, err := DecodeAction([]byte(`{"type":"EXPERIMENT_SEGMENTS","namespace":"p","experiment":"e","segments":[-1]}`)); err == nil {
		t.Fatal("expected negative segment error")
	}
	if _, err := DecodeActions(strings.NewReader(`[{"type":"TOGGLE_PUBLISH","namespace":"a"},{"type":"X"}]`)); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected unknown action in batch, got %v", err)
	}
	if _, err := EncodeAction(nil); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("expected invalid action for nil, got %v", err)
	}
}

package core

import (
	"reflect"
	"testing"
)

func TestAddLabel(t *testing.T) {
	labels, ok := AddLabel(nil, "web")
	if !ok || !reflect.DeepEqual(labels, []Label{{Key: "web", Enabled: true}}) {
		t.Fatalf("unexpected labels %+v ok=%v", labels, ok)
	}
	if _, ok := AddLabel(labels, "web"); ok {
		t.Fatal("duplicate key must be ignored")
	}
	if _, ok := AddLabel(labels, ""); ok {
		t.Fatal("empty key must be ignored")
	}
	more, _ := AddLabel(labels, "ios")
	if len(labels) != 1 || len(more) != 2 {
		t.Fatalf("input must not change: %+v %+v", labels, more)
	}
}

func TestToggleAndSetLabelValue(t *testing.T) {
	labels := []Label{{Key: "web", Enabled: true}, {Key: "ios", Enabled: true}}
	toggled, ok := ToggleLabel(labels, "ios")
	if !ok || toggled[1].Enabled || !labels[1].Enabled {
		t.Fatalf("toggle: %+v (source %+v)", toggled, labels)
	}
	valued, ok := SetLabelValue(toggled, "web", "v2")
	if !ok || valued[0].Value != "v2" || toggled[0].Value != "" {
		t.Fatalf("set value: %+v", valued)
	}
	if _, ok := ToggleLabel(labels, "android"); ok {
		t.Fatal("missing key must report no change")
	}
	if _, ok := SetLabelValue(labels, "android", "x"); ok {
		t.Fatal("missing key must report no change")
	}
}

func TestChoiceHelpers(t *testing.T) {
	choices := AddChoice(nil, "red")
	choices = AddChoice(choices, "blue")
	choices = AddChoice(choices, "green")
	if len(choices) != 3 || choices[2].Weight != 0 {
		t.Fatalf("unexpected choices %+v", choices)
	}

	weighted, ok := SetWeight(choices, 1, -2.5)
	if !ok || weighted[1].Weight != -2.5 || choices[1].Weight != 0 {
		t.Fatalf("weights are stored verbatim on a copy: %+v", weighted)
	}
	if _, ok := SetWeight(choices, 3, 1); ok {
		t.Fatal("out of range index must be ignored")
	}

	removed, ok := DeleteChoice(weighted, 0)
	if !ok || len(removed) != 2 || removed[0].Value != "blue" || removed[1].Value != "green" {
		t.Fatalf("unexpected removal %+v", removed)
	}
	if _, ok := DeleteChoice(removed, -1); ok {
		t.Fatal("negative index must be ignored")
	}
	if cleared := ClearChoices(removed); cleared == nil || len(cleared) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", cleared)
	}
}

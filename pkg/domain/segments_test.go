package domain

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestNewSegmentSetNormalizes(t *testing.T) {
	s := NewSegmentSet(5, 1, 1, -3, 0, 5)
	if got := s.Slice(); !reflect.DeepEqual(got, []int{0, 1, 5}) {
		t.Fatalf("expected sorted unique members, got %v", got)
	}
	if s.Len() != 3 || !s.Contains(5) || s.Contains(2) || s.Contains(-3) {
		t.Fatalf("unexpected membership for %v", s)
	}
	if s.Max() != 5 {
		t.Fatalf("expected max 5, got %d", s.Max())
	}
	if (SegmentSet{}).Max() != -1 || !(SegmentSet{}).IsEmpty() {
		t.Fatalf("zero value should be empty")
	}
}

func TestSegmentSetAlgebra(t *testing.T) {
	a := NewSegmentSet(0, 1, 2, 7)
	b := NewSegmentSet(2, 3, 7, 9)

	cases := []struct {
		name string
		got  SegmentSet
		want []int
	}{
		{"union", a.Union(b), []int{0, 1, 2, 3, 7, 9}},
		{"intersect", a.Intersect(b), []int{2, 7}},
		{"difference", a.Difference(b), []int{0, 1}},
		{"reverse difference", b.Difference(a), []int{3, 9}},
		{"below", b.Below(8), []int{2, 3, 7}},
		{"range", SegmentRange(4), []int{0, 1, 2, 3}},
		{"empty range", SegmentRange(0), []int{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.got.Slice(); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
	if got := a.Slice(); !reflect.DeepEqual(got, []int{0, 1, 2, 7}) {
		t.Fatalf("operands must not change, got %v", got)
	}
}

func TestSegmentSetSliceIsCopy(t *testing.T) {
	s := NewSegmentSet(1, 2)
	raw := s.Slice()
	raw[0] = 99
	if !s.Contains(1) || s.Contains(99) {
		t.Fatalf("mutating Slice result leaked into the set")
	}
}

func TestSegmentSetString(t *testing.T) {
	if got := NewSegmentSet(0, 1, 2, 5, 7, 8, 9).String(); got != "0-2,5,7-9" {
		t.Fatalf("unexpected rendering %q", got)
	}
	if got := (SegmentSet{}).String(); got != "" {
		t.Fatalf("expected empty rendering, got %q", got)
	}
}

func TestSegmentSetHexRoundTrip(t *testing.T) {
	s := NewSegmentSet(0, 9, 127)
	raw, err := s.Hex(128)
	if err != nil {
		t.Fatalf("hex: %v", err)
	}
	if len(raw) != 32 {
		t.Fatalf("expected 16 byte bitmap, got %q", raw)
	}
	if raw[:4] != "8040" {
		t.Fatalf("expected msb-first bit order, got %q", raw[:4])
	}
	back, err := ParseSegmentHex(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !back.Equal(s) {
		t.Fatalf("expected %v, got %v", s, back)
	}
	if _, err := NewSegmentSet(10).Hex(8); err == nil {
		t.Fatalf("expected out of universe error")
	}
	if _, err := ParseSegmentHex("zz"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestSegmentSetJSON(t *testing.T) {
	data, err := json.Marshal(NewSegmentSet(3, 1))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != "[1,3]" {
		t.Fatalf("unexpected json %s", data)
	}
	var empty SegmentSet
	data, _ = json.Marshal(empty)
	if string(data) != "[]" {
		t.Fatalf("expected empty array, got %s", data)
	}
	var decoded SegmentSet
	if err := json.Unmarshal([]byte("[4,4,2]"), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded.Equal(NewSegmentSet(2, 4)) {
		t.Fatalf("unexpected decoded set %v", decoded)
	}
	if err := json.Unmarshal([]byte("[-1]"), &decoded); err == nil {
		t.Fatalf("expected negative segment error")
	}
	if err := json.Unmarshal([]byte("null"), &decoded); err != nil || !decoded.IsEmpty() {
		t.Fatalf("expected null to decode as empty, got %v %v", decoded, err)
	}
}

package domain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SegmentSet is an immutable set of segment indices. The zero value is the empty set.
// Operations return new sets and never modify their receiver or arguments.
type SegmentSet struct {
	items []int // sorted, unique, non-negative
}

// NewSegmentSet builds a set from the given indices. Duplicates are collapsed and
// negative indices are dropped.
func NewSegmentSet(segments ...int) SegmentSet {
	if len(segments) == 0 {
		return SegmentSet{}
	}
	items := make([]int, 0, len(segments))
	for _, s := range segments {
		if s >= 0 {
			items = append(items, s)
		}
	}
	sort.Ints(items)
	out := items[:0]
	for i, s := range items {
		if i > 0 && s == items[i-1] {
			continue
		}
		out = append(out, s)
	}
	return SegmentSet{items: out}
}

// SegmentRange returns the universe {0 … n-1}.
func SegmentRange(n int) SegmentSet {
	if n <= 0 {
		return SegmentSet{}
	}
	items := make([]int, n)
	for i := range items {
		items[i] = i
	}
	return SegmentSet{items: items}
}

// Len returns the number of segments in the set.
func (s SegmentSet) Len() int { return len(s.items) }

// IsEmpty reports whether the set has no members.
func (s SegmentSet) IsEmpty() bool { return len(s.items) == 0 }

// Contains reports whether segment is a member.
func (s SegmentSet) Contains(segment int) bool {
	i := sort.SearchInts(s.items, segment)
	return i < len(s.items) && s.items[i] == segment
}

// Slice returns the members in ascending order. The returned slice is a copy.
func (s SegmentSet) Slice() []int {
	return append([]int{}, s.items...)
}

// Max returns the largest member, or -1 for the empty set.
func (s SegmentSet) Max() int {
	if len(s.items) == 0 {
		return -1
	}
	return s.items[len(s.items)-1]
}

// Equal reports whether both sets have the same members.
func (s SegmentSet) Equal(other SegmentSet) bool {
	if len(s.items) != len(other.items) {
		return false
	}
	for i := range s.items {
		if s.items[i] != other.items[i] {
			return false
		}
	}
	return true
}

// Union returns s ∪ other.
func (s SegmentSet) Union(other SegmentSet) SegmentSet {
	if len(other.items) == 0 {
		return s
	}
	if len(s.items) == 0 {
		return other
	}
	out := make([]int, 0, len(s.items)+len(other.items))
	i, j := 0, 0
	for i < len(s.items) && j < len(other.items) {
		switch {
		case s.items[i] < other.items[j]:
			out = append(out, s.items[i])
			i++
		case s.items[i] > other.items[j]:
			out = append(out, other.items[j])
			j++
		default:
			out = append(out, s.items[i])
			i++
			j++
		}
	}
	out = append(out, s.items[i:]...)
	out = append(out, other.items[j:]...)
	return SegmentSet{items: out}
}

// Intersect returns s ∩ other.
func (s SegmentSet) Intersect(other SegmentSet) SegmentSet {
	var out []int
	i, j := 0, 0
	for i < len(s.items) && j < len(other.items) {
		switch {
		case s.items[i] < other.items[j]:
			i++
		case s.items[i] > other.items[j]:
			j++
		default:
			out = append(out, s.items[i])
			i++
			j++
		}
	}
	return SegmentSet{items: out}
}

// Difference returns s \ other.
func (s SegmentSet) Difference(other SegmentSet) SegmentSet {
	if len(other.items) == 0 || len(s.items) == 0 {
		return s
	}
	out := make([]int, 0, len(s.items))
	j := 0
	for _, v := range s.items {
		for j < len(other.items) && other.items[j] < v {
			j++
		}
		if j < len(other.items) && other.items[j] == v {
			continue
		}
		out = append(out, v)
	}
	return SegmentSet{items: out}
}

// Below returns the members strictly less than n.
func (s SegmentSet) Below(n int) SegmentSet {
	i := sort.SearchInts(s.items, n)
	if i == len(s.items) {
		return s
	}
	return SegmentSet{items: s.items[:i:i]}
}

// String renders the set as compact ranges, e.g. "0-2,5,7-9".
func (s SegmentSet) String() string {
	if len(s.items) == 0 {
		return ""
	}
	var b strings.Builder
	start := s.items[0]
	prev := start
	flush := func() {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(start))
		if prev != start {
			b.WriteByte('-')
			b.WriteString(strconv.Itoa(prev))
		}
	}
	for _, v := range s.items[1:] {
		if v == prev+1 {
			prev = v
			continue
		}
		flush()
		start, prev = v, v
	}
	flush()
	return b.String()
}

// Hex encodes the set as a bitmap of ceil(n/8) bytes, hex encoded. Segment i is bit
// 7-(i%8) of byte i/8. Members >= n are not representable and return an error.
func (s SegmentSet) Hex(n int) (string, error) {
	if n <= 0 {
		n = DefaultNumSegments
	}
	if top := s.Max(); top >= n {
		return "", fmt.Errorf("segment %d outside universe of %d", top, n)
	}
	buf := make([]byte, (n+7)/8)
	for _, v := range s.items {
		buf[v/8] |= 0x80 >> uint(v%8)
	}
	return hex.EncodeToString(buf), nil
}

// ParseSegmentHex decodes a bitmap produced by Hex.
func ParseSegmentHex(raw string) (SegmentSet, error) {
	buf, err := hex.DecodeString(raw)
	if err != nil {
		return SegmentSet{}, fmt.Errorf("decode segment bitmap: %w", err)
	}
	var items []int
	for i, b := range buf {
		for bit := 0; bit < 8; bit++ {
			if b&(0x80>>uint(bit)) != 0 {
				items = append(items, i*8+bit)
			}
		}
	}
	return SegmentSet{items: items}, nil
}

// MarshalJSON encodes the set as an ascending array of ints.
func (s SegmentSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

// UnmarshalJSON accepts an array of ints; null decodes to the empty set.
func (s *SegmentSet) UnmarshalJSON(data []byte) error {
	var raw []int
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode segments: %w", err)
	}
	for _, v := range raw {
		if v < 0 {
			return fmt.Errorf("decode segments: negative segment %d", v)
		}
	}
	*s = NewSegmentSet(raw...)
	return nil
}

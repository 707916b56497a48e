package core

import "fmt"

// CombinedSegments is the union of the segments claimed by experiments whose id is
// not in exclude, bounded by the universe derived from the experiments. Experiments
// marked for deletion still count until purged. Claims outside the universe are
// reported by the segment_range rule, not here.
func CombinedSegments(experiments []Experiment, exclude ...string) SegmentSet {
	return CombinedSegmentsIn(experiments, 0, exclude...)
}

// CombinedSegmentsIn is CombinedSegments against an explicit universe. A universe of
// zero or less is derived as in AvailableSegments.
func CombinedSegmentsIn(experiments []Experiment, universe int, exclude ...string) SegmentSet {
	n := universeOf(experiments, universe)
	return claimedSegments(experiments, exclude).Intersect(SegmentRange(n))
}

// AvailableSegments is {0..n-1} minus CombinedSegmentsIn(experiments, n, exclude...).
// The universe n is the given value when positive, else the largest NumSegments among
// the experiments, else DefaultNumSegments.
func AvailableSegments(experiments []Experiment, universe int, exclude ...string) SegmentSet {
	n := universeOf(experiments, universe)
	return SegmentRange(n).Difference(CombinedSegmentsIn(experiments, n, exclude...))
}

func claimedSegments(experiments []Experiment, exclude []string) SegmentSet {
	skip := idSet(exclude)
	var claimed SegmentSet
	for _, exp := range experiments {
		if _, excluded := skip[exp.ID]; excluded {
			continue
		}
		claimed = claimed.Union(exp.Segments)
	}
	return claimed
}

func universeOf(experiments []Experiment, universe int) int {
	if universe > 0 {
		return universe
	}
	for _, exp := range experiments {
		if exp.NumSegments > universe {
			universe = exp.NumSegments
		}
	}
	if universe <= 0 {
		return DefaultNumSegments
	}
	return universe
}

// SegmentOverlap reports two active experiments claiming the same segments.
type SegmentOverlap struct {
	First    string     `json:"first"`
	Second   string     `json:"second"`
	Segments SegmentSet `json:"segments"`
}

// Allocation is the segment picture of one namespace seen from an edit context.
type Allocation struct {
	Universe  int              `json:"universe"`
	Combined  SegmentSet       `json:"combined"`
	Available SegmentSet       `json:"available"`
	Overlaps  []SegmentOverlap `json:"overlaps,omitempty"`
}

// Allocate computes the allocation of ns with the given experiments excluded. Overlaps
// are reported between active experiments only and never prevent a claim.
func Allocate(ns *Namespace, exclude ...string) Allocation {
	if ns == nil {
		return Allocation{Universe: DefaultNumSegments, Available: SegmentRange(DefaultNumSegments)}
	}
	experiments := ns.ListExperiments()
	universe := universeOf(experiments, 0)
	alloc := Allocation{
		Universe:  universe,
		Combined:  CombinedSegmentsIn(experiments, universe, exclude...),
		Available: AvailableSegments(experiments, universe, exclude...),
	}
	for i, a := range experiments {
		if a.MarkedForDeletion() {
			continue
		}
		for _, b := range experiments[i+1:] {
			if b.MarkedForDeletion() {
				continue
			}
			if shared := a.Segments.Intersect(b.Segments); !shared.IsEmpty() {
				alloc.Overlaps = append(alloc.Overlaps, SegmentOverlap{First: a.ID, Second: b.ID, Segments: shared})
			}
		}
	}
	return alloc
}

// SampleSegments takes the n lowest free segments from available.
func SampleSegments(available SegmentSet, n int) (SegmentSet, error) {
	if n < 0 {
		return SegmentSet{}, fmt.Errorf("sample segments: negative count %d", n)
	}
	free := available.Slice()
	if n > len(free) {
		return SegmentSet{}, fmt.Errorf("sample segments: requested %d, only %d available", n, len(free))
	}
	return NewSegmentSet(free[:n]...), nil
}

func idSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

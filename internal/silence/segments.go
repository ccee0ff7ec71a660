package silence

import "sort"

// DefaultMinSegment is the shortest keep segment worth extracting. Anything
// shorter produces degenerate encodes.
const DefaultMinSegment = 0.1

// KeepSegments returns the complement of the silence intervals within
// [0, total], dropping segments shorter than minSegment. With no detected
// silence the whole duration comes back as a single segment, which callers
// treat as a "no edit needed" signal.
func KeepSegments(silences []Interval, total, minSegment float64) []Interval {
	if minSegment <= 0 {
		minSegment = DefaultMinSegment
	}
	if total <= 0 {
		return nil
	}
	if len(silences) == 0 {
		return []Interval{{Start: 0, End: total}}
	}

	sorted := make([]Interval, len(silences))
	copy(sorted, silences)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var keep []Interval
	cursor := 0.0
	for _, s := range sorted {
		start := s.Start
		end := s.End
		if start < 0 {
			start = 0
		}
		if end > total {
			end = total
		}
		if end <= start {
			continue
		}
		if start-cursor >= minSegment {
			keep = append(keep, Interval{Start: cursor, End: start})
		}
		if end > cursor {
			cursor = end
		}
	}
	if total-cursor >= minSegment {
		keep = append(keep, Interval{Start: cursor, End: total})
	}
	return keep
}

// coversWhole reports whether the keep list is the trivial pass-through
// segment spanning the entire duration.
func coversWhole(keep []Interval, total float64) bool {
	return len(keep) == 1 && keep[0].Start == 0 && keep[0].End == total
}

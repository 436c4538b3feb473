package schedule

import "sort"

// Consolidate merges a day's selected grid units into the minimal set of
// contiguous intervals. Each unit is identified by its start minute;
// unitSize is the fixed grid granularity in minutes for the whole call.
//
// The result is sorted, pairwise non-overlapping and never adjacent:
// touching units always merge. A unit starting inside or at the end of the
// running range extends it to cover the unit's full span, so the output
// covers exactly the union of the selected units even when starts are not
// aligned to unitSize. Duplicate unit starts are ignored.
// Consolidating an already-minimal selection returns the same intervals.
func Consolidate(unitStarts []int, unitSize int) []Interval {
	if len(unitStarts) == 0 || unitSize <= 0 {
		return nil
	}

	starts := make([]int, len(unitStarts))
	copy(starts, unitStarts)
	sort.Ints(starts)

	var out []Interval
	current := Interval{Start: starts[0], End: starts[0] + unitSize}
	for _, s := range starts[1:] {
		if s <= current.End {
			if end := s + unitSize; end > current.End {
				current.End = end
			}
			continue
		}
		out = append(out, current)
		current = Interval{Start: s, End: s + unitSize}
	}
	return append(out, current)
}

// ConsolidateWeek runs Consolidate per weekday. Days with no selected units
// are absent from the result.
func ConsolidateWeek(unitsByDay map[int][]int, unitSize int) map[int][]Interval {
	out := make(map[int][]Interval, len(unitsByDay))
	for day, units := range unitsByDay {
		if ranges := Consolidate(units, unitSize); len(ranges) > 0 {
			out[day] = ranges
		}
	}
	return out
}

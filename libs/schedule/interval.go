package schedule

// Interval is a half-open [Start, End) range in minutes of day. Adjacent
// intervals (one's End equal to the other's Start) do not overlap.
type Interval struct {
	Start int
	End   int
}

// Duration returns the interval length in minutes.
func (iv Interval) Duration() int {
	return iv.End - iv.Start
}

// Overlaps reports whether the two half-open intervals share any minute.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start < other.End && other.Start < iv.End
}

// Slot is one recurring weekly range for one owner: a weekday plus an
// interval. Weekday follows time.Weekday numbering, 0=Sunday through
// 6=Saturday; that single convention is used everywhere in this codebase.
type Slot struct {
	ID      string
	Weekday int
	Interval
}

// Conflict pairs a candidate slot with every existing slot it collides with.
type Conflict struct {
	Candidate Slot
	Existing  []Slot
}

// HasConflict reports whether candidate overlaps any existing slot on the
// same weekday.
func HasConflict(candidate Slot, existing []Slot) bool {
	for _, s := range existing {
		if s.Weekday == candidate.Weekday && candidate.Overlaps(s.Interval) {
			return true
		}
	}
	return false
}

// FindConflicts checks every candidate, in input order, against the existing
// collection and returns an entry per conflicting candidate listing all
// existing slots it overlaps. Candidates without conflicts are omitted.
//
// Candidates are not checked against each other; callers batching mutually
// overlapping candidates must run that check themselves before persisting.
func FindConflicts(candidates, existing []Slot) []Conflict {
	var conflicts []Conflict
	for _, c := range candidates {
		var hits []Slot
		for _, s := range existing {
			if s.Weekday == c.Weekday && c.Overlaps(s.Interval) {
				hits = append(hits, s)
			}
		}
		if len(hits) > 0 {
			conflicts = append(conflicts, Conflict{Candidate: c, Existing: hits})
		}
	}
	return conflicts
}

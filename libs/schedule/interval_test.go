package schedule

import "testing"

func TestOverlaps(t *testing.T) {
	a := Interval{Start: 540, End: 660}  // 09:00-11:00
	b := Interval{Start: 600, End: 720}  // 10:00-12:00
	c := Interval{Start: 660, End: 780}  // 11:00-13:00, adjacent to a
	d := Interval{Start: 1020, End: 1080}

	if !a.Overlaps(b) {
		t.Fatal("09:00-11:00 should overlap 10:00-12:00")
	}
	if a.Overlaps(c) {
		t.Fatal("adjacent intervals must not overlap")
	}
	if a.Overlaps(d) {
		t.Fatal("disjoint intervals must not overlap")
	}
}

func TestOverlapsSymmetry(t *testing.T) {
	pairs := [][2]Interval{
		{{540, 660}, {600, 720}},
		{{540, 660}, {660, 780}},
		{{0, 60}, {1380, 1440}},
		{{300, 900}, {400, 500}},
	}
	for _, p := range pairs {
		if p[0].Overlaps(p[1]) != p[1].Overlaps(p[0]) {
			t.Fatalf("Overlaps not symmetric for %v and %v", p[0], p[1])
		}
	}
}

func TestHasConflict(t *testing.T) {
	existing := []Slot{
		{ID: "mon", Weekday: 1, Interval: Interval{Start: 600, End: 720}},
		{ID: "tue", Weekday: 2, Interval: Interval{Start: 540, End: 660}},
	}

	candidate := Slot{Weekday: 1, Interval: Interval{Start: 540, End: 660}}
	if !HasConflict(candidate, existing) {
		t.Fatal("expected conflict with the Monday slot")
	}

	sameTimeOtherDay := Slot{Weekday: 3, Interval: Interval{Start: 540, End: 660}}
	if HasConflict(sameTimeOtherDay, existing) {
		t.Fatal("same interval on a different weekday is not a conflict")
	}

	adjacent := Slot{Weekday: 1, Interval: Interval{Start: 720, End: 780}}
	if HasConflict(adjacent, existing) {
		t.Fatal("adjacent slot is not a conflict")
	}
}

func TestFindConflicts(t *testing.T) {
	existing := []Slot{
		{ID: "e1", Weekday: 1, Interval: Interval{Start: 600, End: 720}},
		{ID: "e2", Weekday: 1, Interval: Interval{Start: 780, End: 840}},
		{ID: "e3", Weekday: 2, Interval: Interval{Start: 540, End: 660}},
	}
	candidates := []Slot{
		{ID: "c1", Weekday: 1, Interval: Interval{Start: 540, End: 800}}, // hits e1 and e2
		{ID: "c2", Weekday: 5, Interval: Interval{Start: 540, End: 660}}, // clean
		{ID: "c3", Weekday: 2, Interval: Interval{Start: 650, End: 700}}, // hits e3
	}

	conflicts := FindConflicts(candidates, existing)
	if len(conflicts) != 2 {
		t.Fatalf("expected 2 conflict entries, got %d", len(conflicts))
	}
	if conflicts[0].Candidate.ID != "c1" || len(conflicts[0].Existing) != 2 {
		t.Fatalf("first entry should pair c1 with both Monday slots, got %+v", conflicts[0])
	}
	if conflicts[1].Candidate.ID != "c3" || len(conflicts[1].Existing) != 1 || conflicts[1].Existing[0].ID != "e3" {
		t.Fatalf("second entry should pair c3 with e3, got %+v", conflicts[1])
	}
}

func TestFindConflictsDifferentDay(t *testing.T) {
	existing := []Slot{{ID: "e1", Weekday: 2, Interval: Interval{Start: 540, End: 660}}}
	candidates := []Slot{{ID: "c1", Weekday: 1, Interval: Interval{Start: 540, End: 660}}}
	if conflicts := FindConflicts(candidates, existing); len(conflicts) != 0 {
		t.Fatalf("expected no conflicts across weekdays, got %+v", conflicts)
	}
}

func TestFindConflictsIgnoresIntraBatch(t *testing.T) {
	// Documented contract: candidates are only checked against existing
	// slots, never against each other.
	candidates := []Slot{
		{ID: "c1", Weekday: 1, Interval: Interval{Start: 540, End: 660}},
		{ID: "c2", Weekday: 1, Interval: Interval{Start: 600, End: 720}},
	}
	if conflicts := FindConflicts(candidates, nil); len(conflicts) != 0 {
		t.Fatalf("expected no conflicts against empty existing set, got %+v", conflicts)
	}
}

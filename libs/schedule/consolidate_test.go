package schedule

import (
	"reflect"
	"testing"
)

func TestConsolidateContiguous(t *testing.T) {
	// Hourly grid, 09:00 + 10:00 + 11:00 selected -> one 09:00-12:00 range.
	got := Consolidate([]int{540, 600, 660}, 60)
	want := []Interval{{Start: 540, End: 720}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Consolidate = %v, want %v", got, want)
	}
}

func TestConsolidateWithGap(t *testing.T) {
	// 09:00 + 10:00 + 13:00 -> 09:00-11:00 and 13:00-14:00.
	got := Consolidate([]int{540, 600, 780}, 60)
	want := []Interval{{Start: 540, End: 660}, {Start: 780, End: 840}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Consolidate = %v, want %v", got, want)
	}
}

func TestConsolidateUnsortedAndDuplicates(t *testing.T) {
	got := Consolidate([]int{780, 540, 600, 540, 780}, 60)
	want := []Interval{{Start: 540, End: 660}, {Start: 780, End: 840}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Consolidate = %v, want %v", got, want)
	}
}

func TestConsolidateMisalignedUnitsKeepFullCoverage(t *testing.T) {
	// 09:00 and 09:30 on an hourly grid select 09:00-10:30; the overlap
	// must widen the range, not shrink it.
	got := Consolidate([]int{540, 570}, 60)
	want := []Interval{{Start: 540, End: 630}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Consolidate = %v, want %v", got, want)
	}

	// A unit overlapping the running range extends it; a later clear gap
	// still starts a fresh range.
	got = Consolidate([]int{540, 590, 700}, 60)
	want = []Interval{{Start: 540, End: 650}, {Start: 700, End: 760}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Consolidate = %v, want %v", got, want)
	}
}

func TestConsolidateIdempotent(t *testing.T) {
	selections := [][]int{
		{540},
		{540, 600, 660},
		{0, 60, 540, 780, 840, 1380},
		{30, 60, 90, 600},
	}
	for _, units := range selections {
		first := Consolidate(units, 30)
		// Re-expand each emitted interval back into its units and consolidate again.
		var reunits []int
		for _, iv := range first {
			for u := iv.Start; u < iv.End; u += 30 {
				reunits = append(reunits, u)
			}
		}
		second := Consolidate(reunits, 30)
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("consolidation not idempotent for %v: %v vs %v", units, first, second)
		}
	}
}

func TestConsolidateProperties(t *testing.T) {
	got := Consolidate([]int{540, 600, 720, 780, 900}, 60)
	for i := 0; i < len(got); i++ {
		if got[i].End <= got[i].Start {
			t.Fatalf("empty interval emitted: %v", got[i])
		}
		if i > 0 {
			if got[i].Start < got[i-1].End {
				t.Fatalf("overlapping output intervals: %v then %v", got[i-1], got[i])
			}
			if got[i].Start == got[i-1].End {
				t.Fatalf("adjacent output intervals should have merged: %v then %v", got[i-1], got[i])
			}
		}
	}
}

func TestConsolidateEmpty(t *testing.T) {
	if got := Consolidate(nil, 60); got != nil {
		t.Fatalf("expected nil for empty selection, got %v", got)
	}
}

func TestConsolidateWeek(t *testing.T) {
	got := ConsolidateWeek(map[int][]int{
		1: {540, 600, 660},
		3: {780},
		5: {},
	}, 60)
	if len(got) != 2 {
		t.Fatalf("expected ranges for 2 weekdays, got %v", got)
	}
	if !reflect.DeepEqual(got[1], []Interval{{Start: 540, End: 720}}) {
		t.Fatalf("Monday ranges wrong: %v", got[1])
	}
	if !reflect.DeepEqual(got[3], []Interval{{Start: 780, End: 840}}) {
		t.Fatalf("Wednesday ranges wrong: %v", got[3])
	}
}

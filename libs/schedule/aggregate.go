package schedule

// OverlapMinutes returns the number of minutes shared by two half-open
// intervals. Result is bounded by the shorter interval's duration and is
// zero for disjoint or merely adjacent intervals.
func OverlapMinutes(a, b Interval) int {
	lo := a.Start
	if b.Start > lo {
		lo = b.Start
	}
	hi := a.End
	if b.End < hi {
		hi = b.End
	}
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// DayOverlap sums shared minutes between two owners' slots on one weekday.
// Each owner's own slots never overlap each other (the storage invariant),
// so the cross-product sum counts no wall-clock minute twice.
func DayOverlap(a, b []Slot, weekday int) int {
	total := 0
	for _, sa := range a {
		if sa.Weekday != weekday {
			continue
		}
		for _, sb := range b {
			if sb.Weekday != weekday {
				continue
			}
			total += OverlapMinutes(sa.Interval, sb.Interval)
		}
	}
	return total
}

// TotalOverlap is the weekly shared-availability score between two owners:
// the sum of DayOverlap across all seven weekdays, in minutes.
func TotalOverlap(a, b []Slot) int {
	total := 0
	for weekday := 0; weekday < 7; weekday++ {
		total += DayOverlap(a, b, weekday)
	}
	return total
}

// WeekOverlap returns the per-weekday breakdown alongside the total.
func WeekOverlap(a, b []Slot) (perDay [7]int, total int) {
	for weekday := 0; weekday < 7; weekday++ {
		perDay[weekday] = DayOverlap(a, b, weekday)
		total += perDay[weekday]
	}
	return perDay, total
}

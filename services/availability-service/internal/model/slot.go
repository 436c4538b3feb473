package model

import (
	"time"

	"github.com/studymatch/studymatch/libs/schedule"
)

// AvailabilitySlot is one stored recurring weekly free-time range for one
// user. DayOfWeek is 0=Sunday through 6=Saturday (time.Weekday numbering);
// StartMinute/EndMinute are minutes since midnight, end exclusive.
//
// Two invariants hold for stored slots: EndMinute > StartMinute, and no two
// slots of the same owner on the same weekday overlap. Adjacent slots are
// allowed.
type AvailabilitySlot struct {
	ID          string
	OwnerID     string
	DayOfWeek   int
	StartMinute int
	EndMinute   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SlotPatch is a partial update of a slot's timing fields. Nil means "leave
// unchanged".
type SlotPatch struct {
	DayOfWeek   *int
	StartMinute *int
	EndMinute   *int
}

// ScheduleSlot converts to the interval form the overlap engine works on.
func (s AvailabilitySlot) ScheduleSlot() schedule.Slot {
	return schedule.Slot{
		ID:       s.ID,
		Weekday:  s.DayOfWeek,
		Interval: schedule.Interval{Start: s.StartMinute, End: s.EndMinute},
	}
}

// ScheduleSlots converts a whole collection.
func ScheduleSlots(slots []AvailabilitySlot) []schedule.Slot {
	out := make([]schedule.Slot, len(slots))
	for i, s := range slots {
		out[i] = s.ScheduleSlot()
	}
	return out
}

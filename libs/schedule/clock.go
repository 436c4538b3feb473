package schedule

import (
	"fmt"
	"regexp"
)

// ClockPattern matches 24-hour wall-clock times of the form "HH:MM".
// Input validation at the API boundary uses this; the codec below
// assumes its input already matched.
var ClockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// MinutesPerDay is the exclusive upper bound for a minute-of-day value.
const MinutesPerDay = 24 * 60

// MinutesOfDay converts a well-formed "HH:MM" string to minutes since
// midnight. Malformed input must be rejected upstream with ClockPattern.
func MinutesOfDay(clock string) int {
	hours := int(clock[0]-'0')*10 + int(clock[1]-'0')
	minutes := int(clock[3]-'0')*10 + int(clock[4]-'0')
	return hours*60 + minutes
}

// Clock is the inverse of MinutesOfDay: zero-padded "HH:MM" for a minute
// of day in [0, MinutesPerDay).
func Clock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

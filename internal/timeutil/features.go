package timeutil

import "time"

// Iberian Exception window: the gas price cap mechanism applied on MIBEL
// from 2022-06-15 through the end of 2023 (UTC, inclusive).
var (
	iberianExceptionStart = time.Date(2022, time.June, 15, 0, 0, 0, 0, time.UTC)
	iberianExceptionEnd   = time.Date(2023, time.December, 31, 23, 59, 59, 0, time.UTC)
)

// TimeFeatures holds the calendar features derived from a canonical timestamp.
type TimeFeatures struct {
	Hour               int32
	DayOfWeek          int32 // Monday=0 ... Sunday=6
	Month              int32
	Year               int32
	Quarter            int32
	DayOfYear          int32
	IsWeekend          bool
	IsIberianException bool
}

// Features derives the calendar features for a canonical UTC timestamp.
func Features(t time.Time) TimeFeatures {
	t = Normalize(t)

	// time.Weekday counts Sunday=0; shift to Monday=0.
	dow := (int32(t.Weekday()) + 6) % 7

	return TimeFeatures{
		Hour:               int32(t.Hour()),
		DayOfWeek:          dow,
		Month:              int32(t.Month()),
		Year:               int32(t.Year()),
		Quarter:            (int32(t.Month())-1)/3 + 1,
		DayOfYear:          int32(t.YearDay()),
		IsWeekend:          dow >= 5,
		IsIberianException: IsIberianException(t),
	}
}

// IsIberianException reports whether t falls inside the Iberian Exception window.
func IsIberianException(t time.Time) bool {
	t = t.UTC()
	return !t.Before(iberianExceptionStart) && !t.After(iberianExceptionEnd)
}

// Package timeutil implements the canonical timestamp discipline shared by every
// pipeline stage. All stored and joined timestamps are UTC, truncated to the hour,
// and produced by the constructors in this package so that equal instants always
// compare equal as map keys.
package timeutil

import (
	"sync"
	"time"

	"github.com/tigerroll/mibel/pkg/support/logger"
)

// Normalize converts t to the canonical UTC hour representation.
// The result is always in time.UTC with zero minutes, seconds, and nanoseconds.
// Normalize is idempotent: Normalize(Normalize(t)) == Normalize(t).
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

var naiveWarnOnce sync.Once

// ParseNaiveUTC parses a timestamp carrying no zone designator and assumes UTC,
// logging a warning (once per process) so silently mislabeled source data stays
// visible. Accepted layouts are the ISO forms with and without seconds.
func ParseNaiveUTC(value string) (time.Time, error) {
	layouts := []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02T15:04", "2006-01-02 15:04"}
	var t time.Time
	var err error
	for _, layout := range layouts {
		t, err = time.ParseInLocation(layout, value, time.UTC)
		if err == nil {
			naiveWarnOnce.Do(func() {
				logger.Warnf("Timestamps like '%s' carry no timezone designator; assuming UTC.", value)
			})
			return Normalize(t), nil
		}
	}
	return time.Time{}, err
}

// NormalizeColumn normalizes every timestamp in the slice.
func NormalizeColumn(ts []time.Time) []time.Time {
	out := make([]time.Time, len(ts))
	for i, t := range ts {
		out[i] = Normalize(t)
	}
	return out
}

// ParseLocal parses a wall-clock value in the given location and converts it
// to the canonical UTC hour representation.
func ParseLocal(layout, value string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(layout, value, loc)
	if err != nil {
		return time.Time{}, err
	}
	return Normalize(t), nil
}

// IsCanonical reports whether t is already in the canonical UTC hour representation.
func IsCanonical(t time.Time) bool {
	return t.Location() == time.UTC && t.Equal(Normalize(t))
}

// MadridLocation returns the Europe/Madrid location for interpreting MIBEL
// wall-clock values where a source reports local time.
func MadridLocation() (*time.Location, error) {
	return time.LoadLocation("Europe/Madrid")
}

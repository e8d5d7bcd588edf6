package timeutil

import (
	"fmt"
	"time"

	"github.com/tigerroll/mibel/pkg/support/exception"
)

const moduleName = "timeutil"

// GenerateHourIndex returns every canonical hourly timestamp from the start of
// startDate through the last hour of endDate, inclusive on both ends.
// A run over a single day therefore yields 24 hours: 00:00 through 23:00 UTC.
// It returns an error wrapping exception.ErrInvalidRange when endDate precedes startDate.
func GenerateHourIndex(startDate, endDate time.Time) ([]time.Time, error) {
	// Day boundaries: keep the date, discard any intra-day component.
	start := time.Date(startDate.Year(), startDate.Month(), startDate.Day(), 0, 0, 0, 0, time.UTC)
	endDay := time.Date(endDate.Year(), endDate.Month(), endDate.Day(), 0, 0, 0, 0, time.UTC)

	if endDay.Before(start) {
		return nil, exception.NewPipelineError(moduleName,
			fmt.Sprintf("end date %s precedes start date %s", endDay.Format("2006-01-02"), start.Format("2006-01-02")),
			exception.ErrInvalidRange, false, false)
	}

	// Last hour of the end date.
	end := endDay.Add(23 * time.Hour)

	hours := int(end.Sub(start)/time.Hour) + 1
	index := make([]time.Time, 0, hours)
	for t := start; !t.After(end); t = t.Add(time.Hour) {
		index = append(index, t)
	}
	return index, nil
}

// SplitDayChunks splits the inclusive [startDate, endDate] day range into
// consecutive sub-ranges of at most chunkDays days each. Each chunk is a
// commit boundary during ingestion.
func SplitDayChunks(startDate, endDate time.Time, chunkDays int) ([][2]time.Time, error) {
	start := time.Date(startDate.Year(), startDate.Month(), startDate.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(endDate.Year(), endDate.Month(), endDate.Day(), 0, 0, 0, 0, time.UTC)

	if end.Before(start) {
		return nil, exception.NewPipelineError(moduleName,
			fmt.Sprintf("end date %s precedes start date %s", end.Format("2006-01-02"), start.Format("2006-01-02")),
			exception.ErrInvalidRange, false, false)
	}
	if chunkDays < 1 {
		chunkDays = 1
	}

	var chunks [][2]time.Time
	for cur := start; !cur.After(end); cur = cur.AddDate(0, 0, chunkDays) {
		chunkEnd := cur.AddDate(0, 0, chunkDays-1)
		if chunkEnd.After(end) {
			chunkEnd = end
		}
		chunks = append(chunks, [2]time.Time{cur, chunkEnd})
	}
	return chunks, nil
}

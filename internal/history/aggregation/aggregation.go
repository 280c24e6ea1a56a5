// Package aggregation selects the minimal-resolution aggregation level that
// keeps the returned point count bounded regardless of the requested span.
package aggregation

import (
	"time"

	"github.com/vikstrand/aqhistory/internal/core/model"
)

// Span bands, in whole inclusive days. A week of native-resolution readings
// and a year of weekly buckets land in the same order of magnitude.
const (
	nativeMaxDays = 7
	dailyMaxDays  = 90
)

// Choose returns the advised level for a date range. Deterministic; a longer
// span never yields a finer level than a shorter one.
func Choose(start, end time.Time) model.Aggregation {
	days := spanDays(start, end)
	switch {
	case days <= nativeMaxDays:
		return model.AggNone
	case days <= dailyMaxDays:
		return model.AggDaily
	default:
		return model.AggWeekly
	}
}

// For resolves the level for a query: an explicit caller choice wins, the
// advisor fills in the rest.
func For(q model.Query) model.Aggregation {
	if q.AggExplicit {
		return q.Aggregation
	}
	return Choose(q.Start, q.End)
}

func spanDays(start, end time.Time) int {
	return int(end.Sub(start)/(24*time.Hour)) + 1
}

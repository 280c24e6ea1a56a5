// Package validate normalizes and rejects raw history queries before any
// coordination or network step.
package validate

import (
	"fmt"
	"time"

	"github.com/vikstrand/aqhistory/internal/core/model"
	"github.com/vikstrand/aqhistory/internal/history/fingerprint"
)

const dateLayout = "2006-01-02"

// ValidationError reports bad caller input. Never retried automatically.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func errf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// knownSeries is the set of measured quantities the upstream service reports.
var knownSeries = map[string]bool{
	"pm25": true,
	"pm10": true,
	"o3":   true,
	"no2":  true,
	"so2":  true,
	"co":   true,
}

type Validator struct {
	MaxPageSize int
	FutureSkew  time.Duration
	Now         func() time.Time
}

func New(maxPageSize int, futureSkew time.Duration) *Validator {
	return &Validator{
		MaxPageSize: maxPageSize,
		FutureSkew:  futureSkew,
		Now:         time.Now,
	}
}

// Validate returns a canonical Query or a *ValidationError. Pure apart from
// reading the clock for the future-date check.
func (v *Validator) Validate(raw model.RawQuery) (model.Query, error) {
	loc := fingerprint.NormalizeLocation(raw.Location)
	if loc == "" {
		return model.Query{}, errf("location", "must not be empty")
	}

	start, err := time.ParseInLocation(dateLayout, raw.Start, time.UTC)
	if err != nil {
		return model.Query{}, errf("start", "not a valid date (want %s): %q", dateLayout, raw.Start)
	}
	end, err := time.ParseInLocation(dateLayout, raw.End, time.UTC)
	if err != nil {
		return model.Query{}, errf("end", "not a valid date (want %s): %q", dateLayout, raw.End)
	}
	if end.Before(start) {
		return model.Query{}, errf("end", "must not be before start")
	}
	if start.After(v.Now().Add(v.FutureSkew)) {
		return model.Query{}, errf("start", "is in the future")
	}

	if raw.Series != "" && !knownSeries[raw.Series] {
		return model.Query{}, errf("series", "unknown quantity %q", raw.Series)
	}

	agg, ok := model.ParseAggregation(raw.Aggregation)
	if !ok {
		return model.Query{}, errf("aggregation", "unknown level %q", raw.Aggregation)
	}

	var page *model.Page
	if raw.PageIndex != nil || raw.PageSize != nil {
		idx, size := 0, v.MaxPageSize
		if raw.PageIndex != nil {
			idx = *raw.PageIndex
		}
		if raw.PageSize != nil {
			size = *raw.PageSize
		}
		if idx < 0 {
			return model.Query{}, errf("page.index", "must not be negative")
		}
		if size < 1 || size > v.MaxPageSize {
			return model.Query{}, errf("page.size", "must be in [1,%d]", v.MaxPageSize)
		}
		page = &model.Page{Index: idx, Size: size}
	}

	return model.Query{
		Location:    loc,
		Start:       start,
		End:         end,
		Series:      raw.Series,
		Page:        page,
		Aggregation: agg,
		AggExplicit: raw.Aggregation != "",
	}, nil
}

// KnownSeries lists the accepted series filters, for error messages and docs.
func KnownSeries() []string {
	return []string{"pm25", "pm10", "o3", "no2", "so2", "co"}
}

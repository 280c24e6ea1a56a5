// Package model defines core domain types shared across the service.
package model

import (
	"fmt"
	"time"
)

// Aggregation is the temporal bucketing requested from upstream.
type Aggregation int

const (
	AggNone Aggregation = iota
	AggHourly
	AggDaily
	AggWeekly
)

// String representation matching the upstream query parameter format.
func (a Aggregation) String() string {
	switch a {
	case AggHourly:
		return "hourly"
	case AggDaily:
		return "daily"
	case AggWeekly:
		return "weekly"
	default:
		return ""
	}
}

func ParseAggregation(s string) (Aggregation, bool) {
	switch s {
	case "", "none":
		return AggNone, true
	case "hourly":
		return AggHourly, true
	case "daily":
		return AggDaily, true
	case "weekly":
		return AggWeekly, true
	default:
		return AggNone, false
	}
}

type Page struct {
	Index int
	Size  int
}

// Query is a validated, canonical history query. Page is an access pattern,
// not part of the cache identity.
type Query struct {
	Location    string
	Start       time.Time
	End         time.Time
	Series      string
	Page        *Page
	Aggregation Aggregation
	AggExplicit bool
}

// SpanDays returns the whole-day span of the range, inclusive on both ends.
func (q Query) SpanDays() int {
	return int(q.End.Sub(q.Start)/(24*time.Hour)) + 1
}

func (q Query) String() string {
	return fmt.Sprintf("%s[%s..%s]", q.Location,
		q.Start.Format("2006-01-02"), q.End.Format("2006-01-02"))
}

// RawQuery carries caller input before validation.
type RawQuery struct {
	Location    string
	Start       string
	End         string
	Series      string
	Aggregation string
	PageIndex   *int
	PageSize    *int
}

type DataPoint struct {
	TS             time.Time `json:"ts" msgpack:"ts"`
	Value          float64   `json:"value" msgpack:"value"`
	ConfidenceLow  *float64  `json:"low,omitempty" msgpack:"low,omitempty"`
	ConfidenceHigh *float64  `json:"high,omitempty" msgpack:"high,omitempty"`
}

// Series is an ordered sequence of points, strictly increasing by timestamp.
type Series []DataPoint

// Clone returns a deep copy so cached payloads can be handed out without
// aliasing the cache's own slice.
func (s Series) Clone() Series {
	if s == nil {
		return nil
	}
	out := make(Series, len(s))
	copy(out, s)
	for i := range out {
		if s[i].ConfidenceLow != nil {
			v := *s[i].ConfidenceLow
			out[i].ConfidenceLow = &v
		}
		if s[i].ConfidenceHigh != nil {
			v := *s[i].ConfidenceHigh
			out[i].ConfidenceHigh = &v
		}
	}
	return out
}

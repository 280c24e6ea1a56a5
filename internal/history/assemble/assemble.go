// Package assemble drives paginated retrieval against the upstream service
// and merges pages into one ordered, contiguous series.
package assemble

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vikstrand/aqhistory/internal/core/model"
	"github.com/vikstrand/aqhistory/internal/history/remote"
)

// Error reports an inconsistent paginated response. Fatal: the assembly is
// discarded, never repaired or partially cached.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return "assembly: " + e.Reason
}

const (
	defaultPageSize = 500
	defaultMaxPages = 1000

	// Native-resolution spans beyond this get a steering warning, not a
	// rejection.
	warnNativeSpanDays = 365
)

type Assembler struct {
	fetcher  remote.Fetcher
	pageSize int
	maxPages int
	logger   *slog.Logger
}

func New(f remote.Fetcher, pageSize int, logger *slog.Logger) *Assembler {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		fetcher:  f,
		pageSize: pageSize,
		maxPages: defaultMaxPages,
		logger:   logger,
	}
}

// Fetch retrieves the whole range for the query, following pagination until
// a short page. Any page failure aborts the assembly.
func (a *Assembler) Fetch(ctx context.Context, q model.Query) (model.Series, error) {
	if q.Aggregation == model.AggNone && q.SpanDays() > warnNativeSpanDays {
		a.logger.Warn("large native-resolution range, consider aggregation",
			"location", q.Location, "span_days", q.SpanDays())
	}

	size := a.pageSize
	if q.Page != nil && q.Page.Size > 0 {
		size = q.Page.Size
	}

	var out model.Series
	for idx := 0; ; idx++ {
		if idx >= a.maxPages {
			return nil, &Error{Reason: fmt.Sprintf("page cap %d reached for %s", a.maxPages, q)}
		}

		resp, err := a.fetcher.FetchPage(ctx, remote.PageRequest{
			Location:    q.Location,
			Start:       q.Start,
			End:         q.End,
			Series:      q.Series,
			Aggregation: q.Aggregation,
			PageIndex:   idx,
			PageSize:    size,
		})
		if err != nil {
			return nil, err
		}

		out = append(out, resp.Points...)

		if !resp.HasMore && len(resp.Points) < size {
			break
		}
	}

	if err := checkOrdered(out); err != nil {
		return nil, err
	}
	return out, nil
}

// checkOrdered enforces the series invariant: strictly increasing
// timestamps, no duplicates. A violation signals an inconsistent upstream.
func checkOrdered(s model.Series) error {
	for i := 1; i < len(s); i++ {
		if !s[i].TS.After(s[i-1].TS) {
			return &Error{Reason: fmt.Sprintf(
				"timestamps not strictly increasing at index %d (%s then %s)",
				i, s[i-1].TS.Format("2006-01-02T15:04:05Z07:00"),
				s[i].TS.Format("2006-01-02T15:04:05Z07:00"))}
		}
	}
	return nil
}

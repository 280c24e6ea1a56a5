// Package fingerprint derives the canonical cache key for a history query.
// Pagination is excluded: the cache stores fully assembled ranges.
package fingerprint

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/vikstrand/aqhistory/internal/core/model"
)

const dateLayout = "2006-01-02"

// Key returns a deterministic key over location, range, series and
// aggregation. Two queries that differ only by page share a key.
func Key(q model.Query) string {
	loc := sanitize(strings.TrimSpace(q.Location))
	series := sanitize(strings.TrimSpace(q.Series))

	canonical := strings.Join([]string{
		loc,
		q.Start.Format(dateLayout),
		q.End.Format(dateLayout),
		series,
		q.Aggregation.String(),
	}, "|")
	sum := xxhash.Sum64String(canonical)

	return fmt.Sprintf("hist:%s:%s:%s:series=%s:agg=%s:f=%016x",
		loc,
		q.Start.Format(dateLayout), q.End.Format(dateLayout),
		series, q.Aggregation.String(), sum)
}

// LocationPrefix returns the key prefix shared by every fingerprint for a
// location, used for bulk invalidation.
func LocationPrefix(location string) string {
	return "hist:" + sanitize(strings.TrimSpace(location)) + ":"
}

// NormalizeLocation folds a caller-supplied location key to its canonical
// form: trimmed, lower-cased, inner whitespace collapsed to '-'. Validation
// and invalidation both go through this so equivalent inputs share keys.
func NormalizeLocation(location string) string {
	location = strings.ToLower(strings.TrimSpace(location))
	fields := strings.Fields(location)
	return strings.Join(fields, "-")
}

// keeps keys ASCII-safe: whitespace runs become '_', anything outside the
// allowed set becomes '-', runs of separators collapse.
func sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		var out rune
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}

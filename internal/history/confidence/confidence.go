// Package confidence enriches assembled series with default confidence
// bounds when the upstream omits them. Applied after assembly; not part of
// the cache or coalescing contract.
package confidence

import "github.com/vikstrand/aqhistory/internal/core/model"

// Fraction of the value used when a bound is missing.
const defaultMargin = 0.10

// WithDefaults returns a copy of the series where points lacking bounds get
// value±10%. Points that already carry bounds are left untouched.
func WithDefaults(s model.Series) model.Series {
	out := s.Clone()
	for i := range out {
		if out[i].ConfidenceLow == nil && out[i].ConfidenceHigh == nil {
			margin := out[i].Value * defaultMargin
			if margin < 0 {
				margin = -margin
			}
			low := out[i].Value - margin
			high := out[i].Value + margin
			out[i].ConfidenceLow = &low
			out[i].ConfidenceHigh = &high
		}
	}
	return out
}

package aggregation

import (
	"testing"
	"time"

	"github.com/vikstrand/aqhistory/internal/core/model"
)

func day(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func TestChoose_BandEdges(t *testing.T) {
	cases := []struct {
		start, end string
		want       model.Aggregation
	}{
		{"2024-01-01", "2024-01-01", model.AggNone},   // 1 day
		{"2024-01-01", "2024-01-07", model.AggNone},   // 7 days
		{"2024-01-01", "2024-01-08", model.AggDaily},  // 8 days
		{"2024-01-01", "2024-03-31", model.AggDaily},  // 90 days (2024 is a leap year)
		{"2024-01-01", "2024-04-01", model.AggWeekly}, // 91 days
		{"2023-01-01", "2024-01-01", model.AggWeekly}, // 366 days
	}
	for _, tc := range cases {
		if got := Choose(day(tc.start), day(tc.end)); got != tc.want {
			t.Fatalf("Choose(%s..%s)=%v want %v", tc.start, tc.end, got, tc.want)
		}
	}
}

func TestChoose_MonotonicOverSpan(t *testing.T) {
	start := day("2023-01-01")
	prev := Choose(start, start)
	for d := 1; d <= 400; d++ {
		got := Choose(start, start.AddDate(0, 0, d))
		if got < prev {
			t.Fatalf("finer level at span %d: %v after %v", d+1, got, prev)
		}
		prev = got
	}
}

func TestFor_ExplicitWins(t *testing.T) {
	q := model.Query{
		Start:       day("2023-01-01"),
		End:         day("2024-01-01"),
		Aggregation: model.AggHourly,
		AggExplicit: true,
	}
	if got := For(q); got != model.AggHourly {
		t.Fatalf("explicit aggregation overridden: %v", got)
	}
	q.AggExplicit = false
	if got := For(q); got != model.AggWeekly {
		t.Fatalf("advisor not applied: %v", got)
	}
}

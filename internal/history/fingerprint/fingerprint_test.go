package fingerprint

import (
	"regexp"
	"testing"
	"time"
	"unicode"

	"github.com/vikstrand/aqhistory/internal/core/model"
)

func day(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func TestDeterminism_SameInputsSameKey(t *testing.T) {
	q := model.Query{
		Location:    "delhi",
		Start:       day("2024-01-01"),
		End:         day("2024-01-05"),
		Series:      "pm25",
		Aggregation: model.AggDaily,
	}
	if Key(q) != Key(q) {
		t.Fatalf("determinism failed: %s vs %s", Key(q), Key(q))
	}
}

func TestPageExcluded_SameKeyAcrossPages(t *testing.T) {
	q1 := model.Query{Location: "delhi", Start: day("2024-01-01"), End: day("2024-01-05")}
	q2 := q1
	q2.Page = &model.Page{Index: 3, Size: 50}
	if Key(q1) != Key(q2) {
		t.Fatalf("pagination leaked into key:\n k1=%s\n k2=%s", Key(q1), Key(q2))
	}
}

func TestDifference_EachDimensionChangesKey(t *testing.T) {
	base := model.Query{
		Location: "delhi", Start: day("2024-01-01"), End: day("2024-01-05"),
		Series: "pm25", Aggregation: model.AggNone,
	}
	variants := []model.Query{base, base, base, base, base}
	variants[0].Location = "oslo"
	variants[1].Start = day("2024-01-02")
	variants[2].End = day("2024-01-06")
	variants[3].Series = "no2"
	variants[4].Aggregation = model.AggWeekly

	seen := map[string]bool{Key(base): true}
	for i, q := range variants {
		k := Key(q)
		if seen[k] {
			t.Fatalf("variant %d collided: %s", i, k)
		}
		seen[k] = true
	}
}

func TestKey_ASCIISafeWithHashSuffix(t *testing.T) {
	q := model.Query{Location: "são paulo", Start: day("2024-01-01"), End: day("2024-01-05")}
	k := Key(q)
	for _, r := range k {
		if r > unicode.MaxASCII {
			t.Fatalf("non-ASCII rune leaked into key: %q in %s", r, k)
		}
	}
	if !regexp.MustCompile(`:f=[0-9a-f]{16}$`).MatchString(k) {
		t.Fatalf("missing or invalid :f=<hex64> suffix in key: %s", k)
	}
}

func TestNormalizeLocation(t *testing.T) {
	cases := map[string]string{
		"  Delhi ":   "delhi",
		"NEW  DELHI": "new-delhi",
		"oslo":       "oslo",
	}
	for in, want := range cases {
		if got := NormalizeLocation(in); got != want {
			t.Fatalf("NormalizeLocation(%q)=%q want %q", in, got, want)
		}
	}
}

func TestLocationPrefix_MatchesKeys(t *testing.T) {
	q := model.Query{Location: "delhi", Start: day("2024-01-01"), End: day("2024-01-05")}
	k := Key(q)
	p := LocationPrefix("Delhi")
	if len(p) >= len(k) || k[:len(p)] != p {
		t.Fatalf("prefix %q does not match key %q", p, k)
	}
	other := LocationPrefix("delh")
	if k[:len(other)] == other {
		t.Fatalf("prefix for a different location must not match: %q vs %q", other, k)
	}
}

package invalidation

import (
	"testing"
	"time"
)

func valid() Event {
	return Event{
		Version:  1,
		Op:       "correction",
		Location: "delhi",
		TS:       time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Revision: 7,
	}
}

func TestValidate(t *testing.T) {
	if err := valid().Validate(); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Event)
	}{
		{"wrong version", func(e *Event) { e.Version = 2 }},
		{"unknown op", func(e *Event) { e.Op = "reindex" }},
		{"blank location", func(e *Event) { e.Location = "  " }},
		{"zero ts", func(e *Event) { e.TS = time.Time{} }},
		{"zero revision", func(e *Event) { e.Revision = 0 }},
	}
	for _, tc := range cases {
		e := valid()
		tc.mutate(&e)
		if err := e.Validate(); err == nil {
			t.Errorf("%s: expected validation failure", tc.name)
		}
	}
}

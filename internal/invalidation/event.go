// Package invalidation defines the upstream data-change events that expire
// cached history ranges.
package invalidation

import (
	"fmt"
	"strings"
	"time"
)

// Event announces that readings for a location changed upstream. Revision is
// monotonically increasing per location so replays can be dropped.
type Event struct {
	Version  int       `json:"version"`
	Op       string    `json:"op"`
	Location string    `json:"location"`
	TS       time.Time `json:"ts"`
	Revision uint64    `json:"revision"`
	Source   string    `json:"source,omitempty"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	switch e.Op {
	case "finalize", "correction", "delete":
	default:
		return fmt.Errorf("op must be finalize|correction|delete")
	}
	if strings.TrimSpace(e.Location) == "" {
		return fmt.Errorf("location is required")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	if e.Revision == 0 {
		return fmt.Errorf("revision must be positive")
	}
	return nil
}

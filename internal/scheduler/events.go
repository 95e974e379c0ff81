package scheduler

import (
	"time"

	"github.com/google/uuid"
)

// Event is the outcome of one capture cycle. It is handed to the daemon's
// hub right after the cycle completes and is not persisted; the image files
// are the durable result.
type Event struct {
	ID     uuid.UUID
	Source string // section name
	Prefix string // output directory and filename stem
	Start  time.Time
	End    time.Time
	Files  []string // final output paths, empty on failure
	Err    error
}

// OK reports whether the cycle produced images.
func (e Event) OK() bool { return e.Err == nil }

// Duration is how long the whole cycle took, capture and commit included.
func (e Event) Duration() time.Duration { return e.End.Sub(e.Start) }

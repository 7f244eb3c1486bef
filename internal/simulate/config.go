// Package simulate generates synthetic progression traffic against a running
// service and verifies the resulting state, including duplicate and
// out-of-order redelivery patterns.
package simulate

import (
	"time"
)

// Config holds the simulation parameters.
type Config struct {
	// BaseURL of the service under load.
	BaseURL string

	// NumUsers is how many synthetic users to simulate.
	NumUsers int

	// EventsPerUser is the length of each user's update timeline.
	EventsPerUser int

	// DuplicateRate is the fraction of events submitted twice.
	DuplicateRate float64

	// ShuffleWindow bounds how far events may be reordered within a
	// user's timeline. Zero submits in order.
	ShuffleWindow int

	// Workers is the number of concurrent submitters.
	Workers int

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// Seed makes a run reproducible.
	Seed int64

	// Verbose enables per-event logging.
	Verbose bool
}

// Stats accumulates submission results.
type Stats struct {
	Submitted  int
	Accepted   int
	Duplicates int
	Stale      int
	Errors     int
}

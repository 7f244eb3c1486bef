package ingress

import "errors"

// Sentinel kinds for ingress errors.
var (
	ErrUnknownEventType = errors.New("unknown event type")
)

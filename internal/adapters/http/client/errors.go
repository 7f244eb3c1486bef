package client

import "errors"

// Sentinel kinds for stats client errors.
var (
	ErrNotFound = errors.New("user not found upstream")
)

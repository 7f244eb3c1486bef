package model

import "errors"

// Sentinel kinds for model validation errors.
var (
	ErrInvalidEvent = errors.New("invalid event")
)

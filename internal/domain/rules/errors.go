package rules

import "errors"

// Sentinel kinds for catalog errors.
var (
	ErrUnknownCriterion = errors.New("unknown criterion type")
	ErrInvalidRule      = errors.New("invalid unlock rule")
)

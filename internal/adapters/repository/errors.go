package repository

import "errors"

// Sentinel kinds for progression store errors.
var (
	ErrNotFound = errors.New("user not found")
)

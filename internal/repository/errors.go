package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrActiveRideExists is returned when inserting a ride would violate
	// the one-non-terminal-ride-per-rider constraint.
	ErrActiveRideExists = errors.New("rider already has an active ride")
)

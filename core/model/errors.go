package model

import "errors"

var (
	// ErrValidation is returned when snapshot, draw or management input is
	// missing or malformed. No state changes when it is returned.
	ErrValidation = errors.New("validation error")

	// ErrNoLoadData is returned when a decision is requested without any
	// circuit draw.
	ErrNoLoadData = errors.New("no load data")
)

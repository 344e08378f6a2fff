package domain

import "errors"

var (
	// ErrValidation marks bad configuration; the run stops before any network call.
	ErrValidation = errors.New("invalid configuration")

	// ErrAuth marks a failed token acquisition; no jobs are created.
	ErrAuth = errors.New("token acquisition failed")

	// ErrNotConfirmed is returned when the operator does not confirm the deletion.
	ErrNotConfirmed = errors.New("deletion not confirmed")
)

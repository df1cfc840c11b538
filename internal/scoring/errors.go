// Package scoring converts raw subject marks into NECTA grades, points,
// divisions, ranks and class statistics. Every function is pure over its
// inputs; the only state is the immutable configuration bound to an Engine.
package scoring

import "errors"

var (
	// ErrUnknownLevel is returned for an education level with no grading scheme.
	ErrUnknownLevel = errors.New("unknown education level")
	// ErrUnknownDirection is returned for an unsupported rank direction.
	ErrUnknownDirection = errors.New("unknown rank direction")
	// ErrInvalidPolicy is returned when a selection or grading policy is malformed.
	ErrInvalidPolicy = errors.New("invalid scoring policy")
)

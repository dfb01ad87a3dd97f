package planner

import "errors"

var (
	// ErrInvalidConstraints is returned before any allocation when the daily
	// cap is not positive.
	ErrInvalidConstraints = errors.New("invalid planning constraints")
	// ErrSchedulingFailed signals a broken internal invariant, such as an
	// empty block about to be emitted.
	ErrSchedulingFailed = errors.New("unable to schedule blocks")
)

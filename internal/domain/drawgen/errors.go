package drawgen

import "errors"

// Sentinel error kinds for this package.
var (
	ErrInvalidTeamCount     = errors.New("invalid team count")
	ErrInvalidConfiguration = errors.New("invalid draw configuration")
	ErrPanic                = errors.New("draw generator panicked")
	ErrInfeasible           = errors.New("draw is infeasible")
)

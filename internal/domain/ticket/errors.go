package ticket

import "errors"

// Sentinel error kinds for this package.
var (
	ErrAlreadyInProgress = errors.New("draw already in progress")
	ErrExpired           = errors.New("ticket expired")
	ErrNotHeld           = errors.New("ticket not held")
)

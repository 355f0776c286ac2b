package ballots

import (
	"errors"
	"strings"
)

// Sentinel error kinds for this package.
var (
	ErrStaleVersion = errors.New("ballot has been modified since it was loaded")
	ErrIncomplete   = errors.New("ballot set is incomplete")
	ErrInvalid      = errors.New("invalid ballot")
)

// ValidationError lists every problem found in one submission.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "invalid ballot: " + strings.Join(e.Reasons, "; ")
}

// Unwrap lets callers match ErrInvalid.
func (e *ValidationError) Unwrap() error { return ErrInvalid }

// DiscrepancyError lists disagreements between judges' ballots.
type DiscrepancyError struct {
	Problems []string
}

func (e *DiscrepancyError) Error() string {
	return "ballots disagree: " + strings.Join(e.Problems, "; ")
}

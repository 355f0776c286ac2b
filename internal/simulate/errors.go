package simulate

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidConfig = errors.New("invalid simulation config")
	ErrDrawInvariant = errors.New("draw invariant violated")
	ErrStandings     = errors.New("standings inconsistent")
)

// StatusError is a non-2xx answer from the service.
type StatusError struct {
	Method  string
	Path    string
	Status  int
	Code    string
	Message string
	Details []string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.Status, e.Code, e.Message)
	if len(e.Details) > 0 {
		msg += " (" + strings.Join(e.Details, "; ") + ")"
	}
	return msg
}

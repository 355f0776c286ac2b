package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/tabroom/internal/adapters/auth"
	"github.com/okian/tabroom/internal/adapters/mq/queue"
	"github.com/okian/tabroom/internal/adapters/repository"
	"github.com/okian/tabroom/internal/domain/access"
	"github.com/okian/tabroom/internal/domain/ballots"
	"github.com/okian/tabroom/internal/domain/drawgen"
	"github.com/okian/tabroom/internal/domain/model"
	"github.com/okian/tabroom/internal/domain/standings"
	"github.com/okian/tabroom/internal/domain/ticket"
)

// Error kinds every operation failure is classified into.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("conflict")
	ErrInternal     = errors.New("internal error")
)

// ValidationError lists every reason a request was rejected.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "bad request: " + strings.Join(e.Reasons, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrBadRequest }

// DiscrepancyError lists the disagreements between judges' ballots.
type DiscrepancyError struct {
	Problems []string
}

func (e *DiscrepancyError) Error() string {
	return "ballots disagree: " + strings.Join(e.Problems, "; ")
}

func (e *DiscrepancyError) Unwrap() error { return ErrBadRequest }

// Details returns the human-readable list carried by err, if any.
func Details(err error) []string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reasons
	}
	var de *DiscrepancyError
	if errors.As(err, &de) {
		return de.Problems
	}
	return nil
}

func badRequest(format string, args ...any) error {
	return &ValidationError{Reasons: []string{fmt.Sprintf(format, args...)}}
}

// classify maps a failure onto the error kinds while keeping the cause
// reachable through errors.Is.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{ErrNotFound, ErrUnauthorized, ErrForbidden, ErrBadRequest, ErrConflict, ErrInternal} {
		if errors.Is(err, kind) {
			return err
		}
	}

	var bv *ballots.ValidationError
	if errors.As(err, &bv) {
		return &ValidationError{Reasons: bv.Reasons}
	}
	var bd *ballots.DiscrepancyError
	if errors.As(err, &bd) {
		return &DiscrepancyError{Problems: bd.Problems}
	}

	var kind error
	switch {
	case errors.Is(err, repository.ErrNotFound):
		kind = ErrNotFound
	case errors.Is(err, access.ErrUnauthenticated),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrInvalidSignature):
		kind = ErrUnauthorized
	case errors.Is(err, access.ErrForbidden):
		kind = ErrForbidden
	case errors.Is(err, ticket.ErrAlreadyInProgress),
		errors.Is(err, ticket.ErrExpired),
		errors.Is(err, ticket.ErrNotHeld),
		errors.Is(err, ballots.ErrStaleVersion),
		errors.Is(err, repository.ErrDuplicate),
		errors.Is(err, repository.ErrSerialization),
		errors.Is(err, queue.ErrFull):
		kind = ErrConflict
	case errors.Is(err, drawgen.ErrInvalidTeamCount),
		errors.Is(err, drawgen.ErrInvalidConfiguration),
		errors.Is(err, standings.ErrInvalidConfiguration),
		errors.Is(err, model.ErrInvalidSettings),
		errors.Is(err, model.ErrUnknownMetric),
		errors.Is(err, model.ErrInvalidScore),
		errors.Is(err, ballots.ErrInvalid),
		errors.Is(err, ballots.ErrIncomplete):
		kind = ErrBadRequest
	default:
		kind = ErrInternal
	}
	return fmt.Errorf("%w: %w", kind, err)
}

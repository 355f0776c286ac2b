// Package access decides who may do what to a tournament.
package access

import (
	"errors"

	"github.com/okian/tabroom/internal/domain/model"
)

// Sentinel error kinds for this package.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
)

// Action is a class of operation with a fixed requirement.
type Action int

const (
	// Read covers public views; anyone may perform it.
	Read Action = iota
	// Authenticated covers actions outside any tournament, like creating one.
	Authenticated
	// Member covers tournament-internal views.
	Member
	// Admin covers every mutation of tournament state.
	Admin
)

func (a Action) String() string {
	switch a {
	case Read:
		return "read"
	case Authenticated:
		return "authenticated"
	case Member:
		return "member"
	case Admin:
		return "admin"
	}
	return "unknown"
}

// Grant records why an action was allowed.
type Grant struct {
	UserID    string
	Member    bool
	Superuser bool
}

// Authorize checks action for user, whose membership of the tournament in
// question is member. Both may be nil.
func Authorize(user *model.User, member *model.Member, action Action) (Grant, error) {
	var g Grant
	if user != nil {
		g.UserID = user.ID
		if member != nil && member.UserID == user.ID {
			g.Member = true
			g.Superuser = member.IsSuperuser
		}
	}
	switch action {
	case Read:
		return g, nil
	}
	if user == nil {
		return Grant{}, ErrUnauthenticated
	}
	switch {
	case action == Authenticated:
	case action == Member && g.Member:
	case action == Admin && g.Superuser:
	default:
		return Grant{}, ErrForbidden
	}
	return g, nil
}

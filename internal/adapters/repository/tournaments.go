package repository

import (
	"context"

	"github.com/okian/tabroom/internal/domain/model"
	"github.com/uptrace/bun"
)

// CreateUser inserts a user.
func CreateUser(ctx context.Context, db bun.IDB, u *model.User) error {
	return insert(ctx, db, "create user", u)
}

// UserByID loads a user.
func UserByID(ctx context.Context, db bun.IDB, id string) (*model.User, error) {
	return getWhere[model.User](ctx, db, "user by id", "id = ?", id)
}

// UserByName loads a user by username.
func UserByName(ctx context.Context, db bun.IDB, name string) (*model.User, error) {
	return getWhere[model.User](ctx, db, "user by name", "username = ?", name)
}

// CreateTournament inserts a tournament together with its creator's membership.
func CreateTournament(ctx context.Context, db bun.IDB, t *model.Tournament, owner *model.Member) error {
	if err := insert(ctx, db, "create tournament", t); err != nil {
		return err
	}
	return insert(ctx, db, "create member", owner)
}

// Tournament loads a tournament.
func Tournament(ctx context.Context, db bun.IDB, id string) (*model.Tournament, error) {
	return getWhere[model.Tournament](ctx, db, "tournament", "id = ?", id)
}

// Member loads the membership of userID in tournamentID.
func Member(ctx context.Context, db bun.IDB, tournamentID, userID string) (*model.Member, error) {
	return getWhere[model.Member](ctx, db, "member", "tournament_id = ? AND user_id = ?", tournamentID, userID)
}

package repository

import (
	"context"

	"github.com/okian/tabroom/internal/domain/model"
	"github.com/uptrace/bun"
)

// Insert stores a single new tournament-scoped row.
func Insert(ctx context.Context, db bun.IDB, row any) error {
	return insert(ctx, db, "insert", row)
}

// Institutions lists a tournament's institutions.
func Institutions(ctx context.Context, db bun.IDB, tournamentID string) ([]model.Institution, error) {
	return listWhere[model.Institution](ctx, db, "institutions", "tournament_id", tournamentID, "name")
}

// Teams lists a tournament's teams by number.
func Teams(ctx context.Context, db bun.IDB, tournamentID string) ([]model.Team, error) {
	return listWhere[model.Team](ctx, db, "teams", "tournament_id", tournamentID, "number")
}

// Team loads one team of a tournament.
func Team(ctx context.Context, db bun.IDB, tournamentID, id string) (*model.Team, error) {
	return getWhere[model.Team](ctx, db, "team", "tournament_id = ? AND id = ?", tournamentID, id)
}

// Speakers lists a tournament's speakers.
func Speakers(ctx context.Context, db bun.IDB, tournamentID string) ([]model.Speaker, error) {
	return listWhere[model.Speaker](ctx, db, "speakers", "tournament_id", tournamentID, "id")
}

// Judges lists a tournament's judges by number.
func Judges(ctx context.Context, db bun.IDB, tournamentID string) ([]model.Judge, error) {
	return listWhere[model.Judge](ctx, db, "judges", "tournament_id", tournamentID, "number")
}

// Judge loads one judge of a tournament.
func Judge(ctx context.Context, db bun.IDB, tournamentID, id string) (*model.Judge, error) {
	return getWhere[model.Judge](ctx, db, "judge", "tournament_id = ? AND id = ?", tournamentID, id)
}

// JudgeByPrivateURL resolves a judge's private URL token.
func JudgeByPrivateURL(ctx context.Context, db bun.IDB, tournamentID, token string) (*model.Judge, error) {
	return getWhere[model.Judge](ctx, db, "judge by url", "tournament_id = ? AND private_url = ?", tournamentID, token)
}

// BreakCategories lists a tournament's break categories.
func BreakCategories(ctx context.Context, db bun.IDB, tournamentID string) ([]model.BreakCategory, error) {
	return listWhere[model.BreakCategory](ctx, db, "break categories", "tournament_id", tournamentID, "name")
}

// BreakCategory loads one break category.
func BreakCategory(ctx context.Context, db bun.IDB, tournamentID, id string) (*model.BreakCategory, error) {
	return getWhere[model.BreakCategory](ctx, db, "break category", "tournament_id = ? AND id = ?", tournamentID, id)
}

// Institution loads one institution.
func Institution(ctx context.Context, db bun.IDB, tournamentID, id string) (*model.Institution, error) {
	return getWhere[model.Institution](ctx, db, "institution", "tournament_id = ? AND id = ?", tournamentID, id)
}

// NextNumber returns one more than the highest number of a numbered model
// (teams, judges) in the tournament.
func NextNumber(ctx context.Context, db bun.IDB, numbered any, tournamentID string) (int, error) {
	var top int
	err := db.NewSelect().Model(numbered).
		ColumnExpr("COALESCE(MAX(number), 0)").
		Where("tournament_id = ?", tournamentID).
		Scan(ctx, &top)
	if err != nil {
		return 0, wrap("next number", err)
	}
	return top + 1, nil
}

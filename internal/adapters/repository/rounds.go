package repository

import (
	"context"

	"github.com/okian/tabroom/internal/domain/model"
	"github.com/uptrace/bun"
)

// Rounds lists a tournament's rounds by sequence.
func Rounds(ctx context.Context, db bun.IDB, tournamentID string) ([]model.Round, error) {
	return listWhere[model.Round](ctx, db, "rounds", "tournament_id", tournamentID, "seq", "id")
}

// Round loads one round of a tournament.
func Round(ctx context.Context, db bun.IDB, tournamentID, id string) (*model.Round, error) {
	return getWhere[model.Round](ctx, db, "round", "tournament_id = ? AND id = ?", tournamentID, id)
}

// UpdateRound writes the named columns of r.
func UpdateRound(ctx context.Context, db bun.IDB, r *model.Round, columns ...string) error {
	_, err := db.NewUpdate().Model(r).Column(columns...).WherePK().Exec(ctx)
	return wrap("update round", err)
}

// Motions lists the motions of a round.
func Motions(ctx context.Context, db bun.IDB, roundID string) ([]model.Motion, error) {
	return listWhere[model.Motion](ctx, db, "motions", "round_id", roundID, "id")
}

// SetTeamAvailability replaces the availability row of (round, team).
func SetTeamAvailability(ctx context.Context, db bun.IDB, row *model.TeamAvailability) error {
	_, err := db.NewDelete().Model((*model.TeamAvailability)(nil)).
		Where("round_id = ? AND team_id = ?", row.RoundID, row.TeamID).
		Exec(ctx)
	if err != nil {
		return wrap("clear team availability", err)
	}
	return insert(ctx, db, "set team availability", row)
}

// SetJudgeAvailability replaces the availability row of (round, judge).
func SetJudgeAvailability(ctx context.Context, db bun.IDB, row *model.JudgeAvailability) error {
	_, err := db.NewDelete().Model((*model.JudgeAvailability)(nil)).
		Where("round_id = ? AND judge_id = ?", row.RoundID, row.JudgeID).
		Exec(ctx)
	if err != nil {
		return wrap("clear judge availability", err)
	}
	return insert(ctx, db, "set judge availability", row)
}

// AvailableTeams lists the ids of teams marked available for a round.
func AvailableTeams(ctx context.Context, db bun.IDB, roundID string) ([]string, error) {
	var ids []string
	err := db.NewSelect().Model((*model.TeamAvailability)(nil)).
		Column("team_id").
		Where("round_id = ? AND available = ?", roundID, true).
		Order("team_id").
		Scan(ctx, &ids)
	return ids, wrap("available teams", err)
}

// AvailableJudges lists the ids of judges marked available for a round.
func AvailableJudges(ctx context.Context, db bun.IDB, roundID string) ([]string, error) {
	var ids []string
	err := db.NewSelect().Model((*model.JudgeAvailability)(nil)).
		Column("judge_id").
		Where("round_id = ? AND available = ?", roundID, true).
		Order("judge_id").
		Scan(ctx, &ids)
	return ids, wrap("available judges", err)
}

// TeamAvailableInSiblingRound reports whether the team is already available
// in another round of the tournament with the same sequence number.
func TeamAvailableInSiblingRound(ctx context.Context, db bun.IDB, r *model.Round, teamID string) (bool, error) {
	siblings := db.NewSelect().Model((*model.Round)(nil)).Column("id").
		Where("tournament_id = ? AND seq = ? AND id <> ?", r.TournamentID, r.Seq, r.ID)
	n, err := db.NewSelect().Model((*model.TeamAvailability)(nil)).
		Where("team_id = ? AND available = ? AND round_id IN (?)", teamID, true, siblings).
		Count(ctx)
	return n > 0, wrap("sibling availability", err)
}

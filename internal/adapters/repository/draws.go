package repository

import (
	"context"

	"github.com/okian/tabroom/internal/domain/model"
	"github.com/uptrace/bun"
)

// RoundDraw is the persisted current pairing of a round.
type RoundDraw struct {
	Draw    *model.Draw
	Debates []model.Debate
	Teams   []model.DebateTeam
	Judges  []model.DebateJudge
}

// LatestDraw loads the highest draw version of a round.
func LatestDraw(ctx context.Context, db bun.IDB, roundID string) (*model.Draw, error) {
	row := new(model.Draw)
	err := db.NewSelect().Model(row).Where("round_id = ?", roundID).Order("version DESC").Limit(1).Scan(ctx)
	if err != nil {
		return nil, wrap("latest draw", err)
	}
	return row, nil
}

// NextDrawVersion returns one more than the round's highest draw version, or 0.
func NextDrawVersion(ctx context.Context, db bun.IDB, roundID string) (int, error) {
	var top int
	err := db.NewSelect().Model((*model.Draw)(nil)).
		ColumnExpr("COALESCE(MAX(version), -1)").
		Where("round_id = ?", roundID).
		Scan(ctx, &top)
	if err != nil {
		return 0, wrap("next draw version", err)
	}
	return top + 1, nil
}

// LoadRoundDraw loads the latest draw of a round with its debates.
func LoadRoundDraw(ctx context.Context, db bun.IDB, roundID string) (*RoundDraw, error) {
	d, err := LatestDraw(ctx, db, roundID)
	if err != nil {
		return nil, err
	}
	out := &RoundDraw{Draw: d}
	if out.Debates, err = listWhere[model.Debate](ctx, db, "debates", "round_id", roundID, "number"); err != nil {
		return nil, err
	}
	if out.Teams, err = listInRound[model.DebateTeam](ctx, db, "debate teams", roundID); err != nil {
		return nil, err
	}
	if out.Judges, err = listInRound[model.DebateJudge](ctx, db, "debate judges", roundID); err != nil {
		return nil, err
	}
	return out, nil
}

// CountDebates counts the debates of a round.
func CountDebates(ctx context.Context, db bun.IDB, roundID string) (int, error) {
	n, err := db.NewSelect().Model((*model.Debate)(nil)).Where("round_id = ?", roundID).Count(ctx)
	return n, wrap("count debates", err)
}

// ClearRoundDebates deletes every debate of a round with the rows it owns:
// seats, panels, ballots with their entries, and results.
func ClearRoundDebates(ctx context.Context, db bun.IDB, roundID string) error {
	debates := db.NewSelect().Model((*model.Debate)(nil)).Column("id").Where("round_id = ?", roundID)
	ballots := db.NewSelect().Model((*model.Ballot)(nil)).Column("id").Where("debate_id IN (?)", debates)
	for _, owned := range []struct {
		model any
		where string
		arg   any
	}{
		{(*model.BallotTeamRank)(nil), "ballot_id IN (?)", ballots},
		{(*model.BallotScore)(nil), "ballot_id IN (?)", ballots},
		{(*model.Ballot)(nil), "debate_id IN (?)", debates},
		{(*model.DebateTeamResult)(nil), "debate_id IN (?)", debates},
		{(*model.DebateSpeakerResult)(nil), "debate_id IN (?)", debates},
		{(*model.DebateTeam)(nil), "debate_id IN (?)", debates},
		{(*model.DebateJudge)(nil), "debate_id IN (?)", debates},
	} {
		if _, err := db.NewDelete().Model(owned.model).Where(owned.where, owned.arg).Exec(ctx); err != nil {
			return wrap("clear round debates", err)
		}
	}
	_, err := db.NewDelete().Model((*model.Debate)(nil)).Where("round_id = ?", roundID).Exec(ctx)
	return wrap("clear round debates", err)
}

// SaveDraw inserts a draw version with its debates and seats.
func SaveDraw(ctx context.Context, db bun.IDB, d *model.Draw, debates []model.Debate, seats []model.DebateTeam) error {
	if err := insert(ctx, db, "save draw", d); err != nil {
		return err
	}
	if err := insertAll(ctx, db, "save debates", debates); err != nil {
		return err
	}
	return insertAll(ctx, db, "save debate teams", seats)
}

// UpdateDraw writes the named columns of d.
func UpdateDraw(ctx context.Context, db bun.IDB, d *model.Draw, columns ...string) error {
	_, err := db.NewUpdate().Model(d).Column(columns...).WherePK().Exec(ctx)
	return wrap("update draw", err)
}

// Debate loads one debate of a tournament.
func Debate(ctx context.Context, db bun.IDB, tournamentID, id string) (*model.Debate, error) {
	return getWhere[model.Debate](ctx, db, "debate", "tournament_id = ? AND id = ?", tournamentID, id)
}

// DebateSeats lists the teams of a debate.
func DebateSeats(ctx context.Context, db bun.IDB, debateID string) ([]model.DebateTeam, error) {
	return listWhere[model.DebateTeam](ctx, db, "debate seats", "debate_id", debateID, "side", "seq")
}

// DebatePanel lists the judges of a debate.
func DebatePanel(ctx context.Context, db bun.IDB, debateID string) ([]model.DebateJudge, error) {
	return listWhere[model.DebateJudge](ctx, db, "debate panel", "debate_id", debateID, "id")
}

// SetDebateStatus stores a debate's ballot-set status.
func SetDebateStatus(ctx context.Context, db bun.IDB, debateID string, status model.DebateStatus) error {
	_, err := db.NewUpdate().Model((*model.Debate)(nil)).
		Set("status = ?", status).
		Where("id = ?", debateID).
		Exec(ctx)
	return wrap("set debate status", err)
}

// AssignJudge places a judge on a debate, replacing any earlier role.
func AssignJudge(ctx context.Context, db bun.IDB, row *model.DebateJudge) error {
	_, err := db.NewDelete().Model((*model.DebateJudge)(nil)).
		Where("debate_id = ? AND judge_id = ?", row.DebateID, row.JudgeID).
		Exec(ctx)
	if err != nil {
		return wrap("assign judge", err)
	}
	return insert(ctx, db, "assign judge", row)
}

// DebateOfJudge finds the debate of a round on which the judge sits.
func DebateOfJudge(ctx context.Context, db bun.IDB, roundID, judgeID string) (*model.Debate, error) {
	panels := db.NewSelect().Model((*model.DebateJudge)(nil)).Column("debate_id").Where("judge_id = ?", judgeID)
	return getWhere[model.Debate](ctx, db, "debate of judge", "round_id = ? AND id IN (?)", roundID, panels)
}

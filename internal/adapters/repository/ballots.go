package repository

import (
	"context"

	"github.com/okian/tabroom/internal/domain/ballots"
	"github.com/okian/tabroom/internal/domain/model"
	"github.com/uptrace/bun"
)

// LatestBallot loads the highest ballot version of (debate, judge).
func LatestBallot(ctx context.Context, db bun.IDB, debateID, judgeID string) (*model.Ballot, error) {
	row := new(model.Ballot)
	err := db.NewSelect().Model(row).
		Where("debate_id = ? AND judge_id = ?", debateID, judgeID).
		Order("version DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, wrap("latest ballot", err)
	}
	return row, nil
}

// SaveSheet inserts a ballot version with its entries.
func SaveSheet(ctx context.Context, db bun.IDB, sh *ballots.Sheet) error {
	if err := insert(ctx, db, "save ballot", &sh.Ballot); err != nil {
		return err
	}
	if err := insertAll(ctx, db, "save team ranks", sh.Ranks); err != nil {
		return err
	}
	return insertAll(ctx, db, "save speaker scores", sh.Scores)
}

// CanonicalSheets loads the highest-version sheet of every judge on a debate.
func CanonicalSheets(ctx context.Context, db bun.IDB, debateID string) ([]ballots.Sheet, error) {
	all, err := listWhere[model.Ballot](ctx, db, "ballots", "debate_id", debateID, "judge_id", "version")
	if err != nil {
		return nil, err
	}
	latest := model.LatestBallots(all)
	if len(latest) == 0 {
		return nil, nil
	}
	ids := make([]string, len(latest))
	for i, b := range latest {
		ids[i] = b.ID
	}
	var ranks []model.BallotTeamRank
	if err := db.NewSelect().Model(&ranks).Where("ballot_id IN (?)", bun.In(ids)).Order("id").Scan(ctx); err != nil {
		return nil, wrap("team ranks", err)
	}
	var scores []model.BallotScore
	if err := db.NewSelect().Model(&scores).Where("ballot_id IN (?)", bun.In(ids)).Order("team_id", "speaker_position").Scan(ctx); err != nil {
		return nil, wrap("speaker scores", err)
	}
	out := make([]ballots.Sheet, len(latest))
	at := make(map[string]int, len(latest))
	for i, b := range latest {
		out[i].Ballot = b
		at[b.ID] = i
	}
	for _, r := range ranks {
		out[at[r.BallotID]].Ranks = append(out[at[r.BallotID]].Ranks, r)
	}
	for _, s := range scores {
		out[at[s.BallotID]].Scores = append(out[at[s.BallotID]].Scores, s)
	}
	return out, nil
}

// ClearResults deletes the aggregated results of a debate.
func ClearResults(ctx context.Context, db bun.IDB, debateID string) error {
	if _, err := db.NewDelete().Model((*model.DebateTeamResult)(nil)).Where("debate_id = ?", debateID).Exec(ctx); err != nil {
		return wrap("clear team results", err)
	}
	_, err := db.NewDelete().Model((*model.DebateSpeakerResult)(nil)).Where("debate_id = ?", debateID).Exec(ctx)
	return wrap("clear speaker results", err)
}

// ReplaceResults swaps a debate's aggregated results for new ones.
func ReplaceResults(ctx context.Context, db bun.IDB, debateID string, teams []model.DebateTeamResult, speakers []model.DebateSpeakerResult) error {
	if err := ClearResults(ctx, db, debateID); err != nil {
		return err
	}
	if err := insertAll(ctx, db, "save team results", teams); err != nil {
		return err
	}
	return insertAll(ctx, db, "save speaker results", speakers)
}

// TeamResults lists the aggregated team results of a debate.
func TeamResults(ctx context.Context, db bun.IDB, debateID string) ([]model.DebateTeamResult, error) {
	return listWhere[model.DebateTeamResult](ctx, db, "team results", "debate_id", debateID, "team_id")
}

// SpeakerResults lists the aggregated speaker results of a debate.
func SpeakerResults(ctx context.Context, db bun.IDB, debateID string) ([]model.DebateSpeakerResult, error) {
	return listWhere[model.DebateSpeakerResult](ctx, db, "speaker results", "debate_id", debateID, "team_id", "position")
}

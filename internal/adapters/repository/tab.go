package repository

import (
	"context"

	"github.com/okian/tabroom/internal/domain/model"
	"github.com/okian/tabroom/internal/domain/standings"
	"github.com/uptrace/bun"
)

// LoadTab reads every row the standings engine needs for one tournament.
// Run it inside a transaction for a consistent view.
func LoadTab(ctx context.Context, db bun.IDB, t *model.Tournament) (*standings.Tab, error) {
	tab := &standings.Tab{Settings: &t.Settings}
	id := t.ID
	var err error
	if tab.Teams, err = Teams(ctx, db, id); err != nil {
		return nil, err
	}
	if tab.Speakers, err = Speakers(ctx, db, id); err != nil {
		return nil, err
	}
	if tab.Rounds, err = Rounds(ctx, db, id); err != nil {
		return nil, err
	}
	if tab.Debates, err = listWhere[model.Debate](ctx, db, "tab debates", "tournament_id", id, "id"); err != nil {
		return nil, err
	}
	if tab.DebateTeams, err = listWhere[model.DebateTeam](ctx, db, "tab debate teams", "tournament_id", id, "id"); err != nil {
		return nil, err
	}
	if tab.DebateJudges, err = listWhere[model.DebateJudge](ctx, db, "tab debate judges", "tournament_id", id, "id"); err != nil {
		return nil, err
	}
	if tab.Ballots, err = listWhere[model.Ballot](ctx, db, "tab ballots", "tournament_id", id, "id"); err != nil {
		return nil, err
	}
	if tab.BallotRanks, err = listWhere[model.BallotTeamRank](ctx, db, "tab ballot ranks", "tournament_id", id, "id"); err != nil {
		return nil, err
	}
	if tab.TeamResults, err = listWhere[model.DebateTeamResult](ctx, db, "tab team results", "tournament_id", id, "id"); err != nil {
		return nil, err
	}
	if tab.SpeakerResults, err = listWhere[model.DebateSpeakerResult](ctx, db, "tab speaker results", "tournament_id", id, "id"); err != nil {
		return nil, err
	}
	return tab, nil
}

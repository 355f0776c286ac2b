package service

import (
	"context"
	"sort"

	"github.com/okian/tabroom/internal/adapters/repository"
	"github.com/okian/tabroom/internal/domain/model"
	"github.com/okian/tabroom/internal/domain/standings"
	"github.com/uptrace/bun"
)

// drawTeams lists the teams a round is drawn from: the available teams of a
// preliminary round, or the teams still in the break of an elimination round.
func drawTeams(ctx context.Context, tx bun.IDB, tab *standings.Tab, round *model.Round) ([]string, error) {
	if !round.IsElim() {
		return repository.AvailableTeams(ctx, tx, round.ID)
	}
	return breakTeams(ctx, tx, tab, round)
}

// breakTeams picks the teams of an elimination round in seed order. The
// category's first elimination round takes the top of the preliminary
// standings; later ones take the teams that advanced from the previous round.
func breakTeams(ctx context.Context, tx bun.IDB, tab *standings.Tab, round *model.Round) ([]string, error) {
	if round.BreakCategoryID == nil {
		return nil, badRequest("elimination round %s has no break category", round.Name)
	}
	category, err := repository.BreakCategory(ctx, tx, round.TournamentID, *round.BreakCategoryID)
	if err != nil {
		return nil, err
	}
	ts, err := standings.ComputeTeams(tab)
	if err != nil {
		return nil, err
	}

	var prev *model.Round
	for i := range tab.Rounds {
		r := &tab.Rounds[i]
		if r.IsElim() && r.Seq < round.Seq && sameCategory(r.BreakCategoryID, round.BreakCategoryID) && (prev == nil || r.Seq > prev.Seq) {
			prev = r
		}
	}

	if prev == nil {
		if category.Size > len(ts.Rows) {
			return nil, badRequest("break category %s breaks %d teams but only %d are ranked", category.Name, category.Size, len(ts.Rows))
		}
		out := make([]string, 0, category.Size)
		for _, row := range ts.Rows[:category.Size] {
			out = append(out, row.TeamID)
		}
		return out, nil
	}

	if !prev.Completed {
		return nil, badRequest("round %s must be completed before round %s is drawn", prev.Name, round.Name)
	}
	debates := make(map[string]bool)
	for _, d := range tab.Debates {
		if d.RoundID == prev.ID {
			debates[d.ID] = true
		}
	}
	var out []string
	for _, r := range tab.TeamResults {
		if debates[r.DebateID] && r.Points > 0 {
			out = append(out, r.TeamID)
		}
	}
	seed := seeds(ts)
	sort.SliceStable(out, func(i, j int) bool { return seed[out[i]] < seed[out[j]] })
	return out, nil
}

// seeds numbers teams by their place in the standings, starting at 1.
func seeds(ts *standings.TeamStandings) map[string]int {
	out := make(map[string]int, len(ts.Rows))
	for i, row := range ts.Rows {
		out[row.TeamID] = i + 1
	}
	return out
}

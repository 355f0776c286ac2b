// Package standings derives team and speaker rankings from aggregated results.
package standings

import (
	"github.com/okian/tabroom/internal/domain/model"
)

// Tab is the consistent set of rows the engine reads for one tournament.
type Tab struct {
	Settings       *model.Settings
	Teams          []model.Team
	Speakers       []model.Speaker
	Rounds         []model.Round
	Debates        []model.Debate
	DebateTeams    []model.DebateTeam
	DebateJudges   []model.DebateJudge
	Ballots        []model.Ballot
	BallotRanks    []model.BallotTeamRank
	TeamResults    []model.DebateTeamResult
	SpeakerResults []model.DebateSpeakerResult
}

// index resolves debates to rounds and filters completed prelims.
type index struct {
	roundOf      map[string]*model.Round // by debate id
	counted      map[string]bool         // debate ids in completed prelims
	speaksWithin map[string]bool         // counted debates inside the speaker cutoff
	teamsOf      map[string][]string     // debate id -> team ids
	speakRounds  int
}

func newIndex(tab *Tab) *index {
	rounds := make(map[string]*model.Round, len(tab.Rounds))
	ix := &index{
		roundOf:      make(map[string]*model.Round, len(tab.Debates)),
		counted:      make(map[string]bool, len(tab.Debates)),
		speaksWithin: make(map[string]bool, len(tab.Debates)),
		teamsOf:      make(map[string][]string, len(tab.Debates)),
	}
	cutoff := tab.Settings.ExcludeFromSpeakerStandingsAfter
	for i := range tab.Rounds {
		r := &tab.Rounds[i]
		rounds[r.ID] = r
		if r.Completed && !r.IsElim() && (cutoff == -1 || r.Seq <= cutoff) {
			ix.speakRounds++
		}
	}
	for _, d := range tab.Debates {
		r, ok := rounds[d.RoundID]
		if !ok {
			continue
		}
		ix.roundOf[d.ID] = r
		if r.Completed && !r.IsElim() {
			ix.counted[d.ID] = true
			ix.speaksWithin[d.ID] = cutoff == -1 || r.Seq <= cutoff
		}
	}
	for _, dt := range tab.DebateTeams {
		ix.teamsOf[dt.DebateID] = append(ix.teamsOf[dt.DebateID], dt.TeamID)
	}
	return ix
}

// opponents lists, with multiplicity, every team met in counted debates.
func (ix *index) opponents(tab *Tab) map[string][]string {
	out := make(map[string][]string, len(tab.Teams))
	for _, dt := range tab.DebateTeams {
		if !ix.counted[dt.DebateID] {
			continue
		}
		for _, other := range ix.teamsOf[dt.DebateID] {
			if other != dt.TeamID {
				out[dt.TeamID] = append(out[dt.TeamID], other)
			}
		}
	}
	return out
}

// Package ballots validates judges' scoresheets and reconciles them into
// canonical debate results.
package ballots

import (
	"github.com/okian/tabroom/internal/domain/model"
)

// Debate is everything about one debate that ballots are checked against.
type Debate struct {
	Debate  model.Debate
	Round   *model.Round
	Seats   []model.DebateTeam
	Panel   []model.DebateJudge
	Motions []model.Motion

	TeamNames    map[string]string
	JudgeNames   map[string]string
	SpeakerNames map[string]string
	// SpeakersOf lists speaker ids by team id.
	SpeakersOf map[string][]string
}

// Sheet is one ballot with its rank and score entries.
type Sheet struct {
	Ballot model.Ballot
	Ranks  []model.BallotTeamRank
	Scores []model.BallotScore
}

// Seat returns the team sitting at (side, seq).
func (d *Debate) Seat(side, seq int) (model.DebateTeam, bool) {
	for _, s := range d.Seats {
		if s.Side == side && s.Seq == seq {
			return s, true
		}
	}
	return model.DebateTeam{}, false
}

// Voting lists the judges whose ballots count, chair first.
func (d *Debate) Voting() []model.DebateJudge {
	out := make([]model.DebateJudge, 0, len(d.Panel))
	for _, j := range d.Panel {
		if j.Role == model.RoleChair {
			out = append(out, j)
		}
	}
	for _, j := range d.Panel {
		if j.Role == model.RolePanelist {
			out = append(out, j)
		}
	}
	return out
}

func (d *Debate) hasMotion(id string) bool {
	for _, m := range d.Motions {
		if m.ID == id {
			return true
		}
	}
	return false
}

func (d *Debate) speaksFor(teamID, speakerID string) bool {
	for _, id := range d.SpeakersOf[teamID] {
		if id == speakerID {
			return true
		}
	}
	return false
}

func (d *Debate) name(names map[string]string, id string) string {
	if n, ok := names[id]; ok {
		return n
	}
	return "unknown"
}

func (s *Sheet) points(teamID string) (int, bool) {
	for _, r := range s.Ranks {
		if r.TeamID == teamID {
			return r.Points, true
		}
	}
	return 0, false
}

func (s *Sheet) speech(teamID string, pos int) (model.BallotScore, bool) {
	for _, sc := range s.Scores {
		if sc.TeamID == teamID && sc.SpeakerPosition == pos {
			return sc, true
		}
	}
	return model.BallotScore{}, false
}

func (s *Sheet) total(teamID string) float64 {
	var t float64
	for _, sc := range s.Scores {
		if sc.TeamID == teamID {
			t += sc.Score
		}
	}
	return t
}

// NumAdvancing is how many teams leave an elimination debate as winners.
func NumAdvancing(s *model.Settings, lastOfCategory bool) int {
	if s.TeamsPerDebate() == 2 || lastOfCategory {
		return 1
	}
	return s.TeamsPerDebate() / 2
}

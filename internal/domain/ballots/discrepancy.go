package ballots

import (
	"fmt"

	"github.com/okian/tabroom/internal/domain/model"
)

// Discrepancies describes every disagreement between pairs of sheets.
// Individual ballots only have to agree on who gave which speech.
func Discrepancies(s *model.Settings, d *Debate, sheets []Sheet) []string {
	consensus := s.BallotSetupFor(d.Round) == model.BallotConsensus
	var out []string
	for i := range sheets {
		for j := i + 1; j < len(sheets); j++ {
			a, b := &sheets[i], &sheets[j]
			if consensus {
				out = append(out, pointProblems(d, a, b)...)
			}
			out = append(out, speechProblems(s, d, a, b, consensus)...)
		}
	}
	return out
}

func pointProblems(d *Debate, a, b *Sheet) []string {
	var out []string
	an := d.name(d.JudgeNames, a.Ballot.JudgeID)
	bn := d.name(d.JudgeNames, b.Ballot.JudgeID)
	for _, seat := range d.Seats {
		pa, _ := a.points(seat.TeamID)
		pb, _ := b.points(seat.TeamID)
		if pa != pb {
			out = append(out, fmt.Sprintf(
				"the ballot from %s gives %s %d point(s), whereas the ballot from %s gives them %d point(s)",
				an, d.name(d.TeamNames, seat.TeamID), pa, bn, pb))
		}
	}
	return out
}

func speechProblems(s *model.Settings, d *Debate, a, b *Sheet, compareScores bool) []string {
	if len(a.Scores) == 0 || len(b.Scores) == 0 {
		return nil
	}
	var out []string
	an := d.name(d.JudgeNames, a.Ballot.JudgeID)
	bn := d.name(d.JudgeNames, b.Ballot.JudgeID)
	for side := 0; side < 2; side++ {
		for seq := 0; seq < s.TeamsPerSide; seq++ {
			seat, ok := d.Seat(side, seq)
			if !ok {
				continue
			}
			for pos := 0; pos < s.SpeakersPerTeam(); pos++ {
				sa, okA := a.speech(seat.TeamID, pos)
				sb, okB := b.speech(seat.TeamID, pos)
				if !okA || !okB {
					continue
				}
				where := model.SpeakerPositionName(s, side, seq, pos)
				if sa.SpeakerID != sb.SpeakerID {
					out = append(out, fmt.Sprintf(
						"the ballot from %s has %s as %s, whereas the ballot from %s has %s as %s",
						an, d.name(d.SpeakerNames, sa.SpeakerID), where,
						bn, d.name(d.SpeakerNames, sb.SpeakerID), where))
				}
				if compareScores && !model.ScoresEqual(sa.Score, sb.Score) {
					out = append(out, fmt.Sprintf(
						"the ballot from %s has a score of %g for %s as %s, whereas the ballot from %s has a score of %g for %s as %s",
						an, sa.Score, d.name(d.SpeakerNames, sa.SpeakerID), where,
						bn, sb.Score, d.name(d.SpeakerNames, sb.SpeakerID), where))
				}
			}
		}
	}
	return out
}

// Status classifies a debate's canonical ballot set.
func Status(s *model.Settings, d *Debate, sheets []Sheet) model.DebateStatus {
	set, err := votingSheets(d, sheets)
	if err != nil {
		return model.DebateIncomplete
	}
	if len(Discrepancies(s, d, set)) > 0 {
		return model.DebateConflict
	}
	return model.DebateConfirmed
}

// votingSheets picks the canonical sheet of every voting judge, chair first.
func votingSheets(d *Debate, sheets []Sheet) ([]Sheet, error) {
	latest := make(map[string]Sheet, len(sheets))
	for _, sh := range sheets {
		if cur, ok := latest[sh.Ballot.JudgeID]; !ok || sh.Ballot.Version > cur.Ballot.Version {
			latest[sh.Ballot.JudgeID] = sh
		}
	}
	voting := d.Voting()
	if len(voting) == 0 {
		return nil, fmt.Errorf("%w: debate %d has no voting judges", ErrIncomplete, d.Debate.Number)
	}
	out := make([]Sheet, 0, len(voting))
	for _, j := range voting {
		sh, ok := latest[j.JudgeID]
		if !ok {
			return nil, fmt.Errorf("%w: waiting for %s", ErrIncomplete, d.name(d.JudgeNames, j.JudgeID))
		}
		out = append(out, sh)
	}
	return out, nil
}

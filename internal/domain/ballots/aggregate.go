package ballots

import (
	"fmt"

	"github.com/okian/tabroom/internal/domain/model"
)

// Result is the canonical outcome of one debate.
type Result struct {
	Method         model.BallotSetup
	TeamResults    []model.DebateTeamResult
	SpeakerResults []model.DebateSpeakerResult
	// Votes is filled for individual ballots.
	Votes map[string]int
}

// Aggregate reconciles the voting judges' canonical sheets.
// It returns ErrIncomplete, a *DiscrepancyError, or the result rows.
func Aggregate(s *model.Settings, d *Debate, sheets []Sheet) (*Result, error) {
	set, err := votingSheets(d, sheets)
	if err != nil {
		return nil, err
	}
	if problems := Discrepancies(s, d, set); len(problems) > 0 {
		return nil, &DiscrepancyError{Problems: problems}
	}

	mode := s.BallotSetupFor(d.Round)
	res := &Result{Method: mode}
	switch mode {
	case model.BallotIndividual:
		if len(d.Seats) != 2 {
			return nil, fmt.Errorf("%w: individual ballots need exactly two teams", ErrInvalid)
		}
		res.Votes = tally(d, set)
		winner := majority(d, set, res.Votes)
		for _, seat := range d.Seats {
			pts := 0
			if seat.TeamID == winner {
				pts = 1
			}
			res.TeamResults = append(res.TeamResults, teamResult(d, seat.TeamID, pts))
		}
		if s.RequiresSpeaks(d.Round) {
			res.SpeakerResults = averageSpeeches(s, d, set)
		}
	default:
		base := &set[0]
		for _, seat := range d.Seats {
			pts, _ := base.points(seat.TeamID)
			res.TeamResults = append(res.TeamResults, teamResult(d, seat.TeamID, pts))
		}
		if s.RequiresSpeaks(d.Round) {
			for _, sc := range base.Scores {
				res.SpeakerResults = append(res.SpeakerResults, speakerResult(d, sc.TeamID, sc.SpeakerID, sc.SpeakerPosition, sc.Score))
			}
		}
	}
	return res, nil
}

// tally counts a vote for the team a sheet gives a point; tied sheets abstain.
func tally(d *Debate, set []Sheet) map[string]int {
	votes := make(map[string]int, len(d.Seats))
	for _, seat := range d.Seats {
		votes[seat.TeamID] = 0
	}
	for i := range set {
		if w, ok := sheetWinner(d, &set[i]); ok {
			votes[w]++
		}
	}
	return votes
}

func sheetWinner(d *Debate, sh *Sheet) (string, bool) {
	for _, seat := range d.Seats {
		if p, _ := sh.points(seat.TeamID); p == 1 {
			return seat.TeamID, true
		}
	}
	return "", false
}

// majority breaks equal votes with the chair's sheet, then side 0.
func majority(d *Debate, set []Sheet, votes map[string]int) string {
	first, _ := d.Seat(0, 0)
	second, _ := d.Seat(1, 0)
	switch a, b := votes[first.TeamID], votes[second.TeamID]; {
	case a > b:
		return first.TeamID
	case b > a:
		return second.TeamID
	}
	if set[0].Ballot.JudgeID == chairOf(d) {
		if w, ok := sheetWinner(d, &set[0]); ok {
			return w
		}
	}
	return first.TeamID
}

func chairOf(d *Debate) string {
	for _, j := range d.Panel {
		if j.Role == model.RoleChair {
			return j.JudgeID
		}
	}
	return ""
}

// averageSpeeches keeps the agreed speaker of each cell and averages the scores.
func averageSpeeches(s *model.Settings, d *Debate, set []Sheet) []model.DebateSpeakerResult {
	var out []model.DebateSpeakerResult
	for _, seat := range d.Seats {
		for pos := 0; pos < s.SpeakersPerTeam(); pos++ {
			var sum float64
			var n int
			var speaker string
			for i := range set {
				sc, ok := set[i].speech(seat.TeamID, pos)
				if !ok {
					continue
				}
				speaker = sc.SpeakerID
				sum += sc.Score
				n++
			}
			if n == 0 {
				continue
			}
			out = append(out, speakerResult(d, seat.TeamID, speaker, pos, model.Round2(sum/float64(n))))
		}
	}
	return out
}

func teamResult(d *Debate, teamID string, pts int) model.DebateTeamResult {
	return model.DebateTeamResult{
		ID:           model.NewID(),
		TournamentID: d.Debate.TournamentID,
		DebateID:     d.Debate.ID,
		TeamID:       teamID,
		Points:       pts,
	}
}

func speakerResult(d *Debate, teamID, speakerID string, pos int, score float64) model.DebateSpeakerResult {
	return model.DebateSpeakerResult{
		ID:           model.NewID(),
		TournamentID: d.Debate.TournamentID,
		DebateID:     d.Debate.ID,
		SpeakerID:    speakerID,
		TeamID:       teamID,
		Position:     pos,
		Score:        score,
	}
}

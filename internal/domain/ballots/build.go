package ballots

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/okian/tabroom/internal/domain/model"
)

// Submission is one judge's scoresheet as entered.
type Submission struct {
	MotionID string `json:"motion_id"`
	// ExpectedVersion is the latest version the submitter has seen; nil skips the check.
	ExpectedVersion *int        `json:"expected_version,omitempty"`
	Teams           []TeamEntry `json:"teams"`
}

// TeamEntry is the sheet for one seat.
type TeamEntry struct {
	Side      int      `json:"side"`
	Seq       int      `json:"seq"`
	Speeches  []Speech `json:"speeches,omitempty"`
	Advancing bool     `json:"advancing,omitempty"`
}

// Speech is one speaker's score.
type Speech struct {
	SpeakerID string  `json:"speaker_id"`
	Score     float64 `json:"score"`
}

// BuildInput carries the context a submission is validated against.
type BuildInput struct {
	Settings *model.Settings
	Debate   *Debate
	JudgeID  string
	EditorID *string
	// Prior is the judge's current canonical ballot, if any.
	Prior        *model.Ballot
	NumAdvancing int
	Now          time.Time
}

// Build validates a submission and turns it into the next ballot version.
func Build(in BuildInput, sub Submission) (*Sheet, error) {
	if err := checkVersion(in.Prior, sub.ExpectedVersion); err != nil {
		return nil, err
	}

	s := in.Settings
	d := in.Debate
	var reasons []string
	fail := func(format string, args ...any) {
		reasons = append(reasons, fmt.Sprintf(format, args...))
	}

	if !d.hasMotion(sub.MotionID) {
		fail("motion does not belong to this round")
	}

	version := 0
	if in.Prior != nil {
		version = in.Prior.Version + 1
	}
	sheet := &Sheet{Ballot: model.Ballot{
		ID:           model.NewID(),
		TournamentID: d.Debate.TournamentID,
		DebateID:     d.Debate.ID,
		JudgeID:      in.JudgeID,
		SubmittedAt:  in.Now,
		MotionID:     sub.MotionID,
		Version:      version,
		EditorID:     in.EditorID,
	}}

	speaks := s.RequiresSpeaks(d.Round)
	if len(sub.Teams) != s.TeamsPerDebate() {
		fail("expected %d teams, got %d", s.TeamsPerDebate(), len(sub.Teams))
	}
	seen := make(map[[2]int]bool, len(sub.Teams))
	var advancing []string
	for _, te := range sub.Teams {
		seat, ok := d.Seat(te.Side, te.Seq)
		if !ok {
			fail("no team sits at side %d seq %d", te.Side, te.Seq)
			continue
		}
		if seen[[2]int{te.Side, te.Seq}] {
			fail("%s submitted twice", model.SideName(s, te.Side, te.Seq, false))
			continue
		}
		seen[[2]int{te.Side, te.Seq}] = true
		if te.Advancing {
			advancing = append(advancing, seat.TeamID)
		}
		if !speaks {
			if len(te.Speeches) > 0 {
				fail("speakers should not be submitted for this round")
			}
			continue
		}
		for _, r := range checkSpeeches(s, d, seat, te.Speeches) {
			fail("%s", r)
		}
		for pos, sp := range te.Speeches {
			sheet.Scores = append(sheet.Scores, model.BallotScore{
				ID:              model.NewID(),
				TournamentID:    d.Debate.TournamentID,
				BallotID:        sheet.Ballot.ID,
				TeamID:          seat.TeamID,
				SpeakerID:       sp.SpeakerID,
				SpeakerPosition: pos,
				Score:           sp.Score,
			})
		}
	}
	if len(reasons) > 0 {
		return nil, &ValidationError{Reasons: reasons}
	}

	var points map[string]int
	if d.Round.IsElim() {
		if len(advancing) != in.NumAdvancing {
			return nil, &ValidationError{Reasons: []string{
				fmt.Sprintf("expected %d advancing team(s), but %d were selected", in.NumAdvancing, len(advancing)),
			}}
		}
		if speaks && !outscoreEliminated(d, sheet, advancing) {
			return nil, &ValidationError{Reasons: []string{
				"advancing teams must have higher total scores than eliminated teams",
			}}
		}
		points = make(map[string]int, len(d.Seats))
		for _, id := range advancing {
			points[id] = 1
		}
	} else {
		var err error
		if points, err = pointsFromTotals(s, d, sheet); err != nil {
			return nil, err
		}
	}
	for _, seat := range d.Seats {
		sheet.Ranks = append(sheet.Ranks, model.BallotTeamRank{
			ID:           model.NewID(),
			TournamentID: d.Debate.TournamentID,
			BallotID:     sheet.Ballot.ID,
			TeamID:       seat.TeamID,
			Points:       points[seat.TeamID],
		})
	}
	return sheet, nil
}

func checkVersion(prior *model.Ballot, expected *int) error {
	switch {
	case expected == nil:
		return nil
	case prior == nil:
		return fmt.Errorf("%w: no ballot exists yet", ErrStaleVersion)
	case *expected != prior.Version:
		return fmt.Errorf("%w: latest version is %d", ErrStaleVersion, prior.Version)
	}
	return nil
}

// checkSpeeches validates one team's speaker order and scores.
func checkSpeeches(s *model.Settings, d *Debate, seat model.DebateTeam, speeches []Speech) []string {
	var out []string
	side := model.SideName(s, seat.Side, seat.Seq, false)
	if len(speeches) != s.SpeakersPerTeam() {
		return []string{fmt.Sprintf("%s: expected %d speeches, got %d", side, s.SpeakersPerTeam(), len(speeches))}
	}
	substantive := make(map[string]int, s.SubstantiveSpeakers)
	for pos, sp := range speeches {
		name := d.name(d.SpeakerNames, sp.SpeakerID)
		if !d.speaksFor(seat.TeamID, sp.SpeakerID) {
			out = append(out, fmt.Sprintf("%s: speaker %s is not on this team", side, name))
			continue
		}
		reply := pos == s.ReplyPosition()
		if !reply {
			if _, dup := substantive[sp.SpeakerID]; dup {
				out = append(out, fmt.Sprintf("%s: %s gives more than one substantive speech", side, name))
			}
			substantive[sp.SpeakerID] = pos
		} else {
			idx, spoke := substantive[sp.SpeakerID]
			if s.ReplyMustSpeak && !spoke {
				out = append(out, fmt.Sprintf("%s: reply speaker %s must also give a substantive speech", side, name))
			}
			if limit := s.MaxSubstantiveSpeechIndexForReply; spoke && limit != nil && idx > *limit {
				out = append(out, fmt.Sprintf("%s: %s speaks too late in the debate to give the reply", side, name))
			}
		}
		if err := s.CheckScore(sp.Score, reply, name); err != nil {
			out = append(out, err.Error())
		}
	}
	return out
}

// outscoreEliminated reports whether every advancing team's total on sheet
// is strictly above every eliminated team's total.
func outscoreEliminated(d *Debate, sheet *Sheet, advancing []string) bool {
	lowestIn, highestOut := math.Inf(1), math.Inf(-1)
	for _, seat := range d.Seats {
		t := sheet.total(seat.TeamID)
		if slices.Contains(advancing, seat.TeamID) {
			lowestIn = min(lowestIn, t)
		} else {
			highestOut = max(highestOut, t)
		}
	}
	return lowestIn > highestOut && !model.ScoresEqual(lowestIn, highestOut)
}

// pointsFromTotals gives each team one point per team it outscored.
func pointsFromTotals(s *model.Settings, d *Debate, sheet *Sheet) (map[string]int, error) {
	type total struct {
		team  string
		score float64
	}
	totals := make([]total, 0, len(d.Seats))
	for _, seat := range d.Seats {
		totals = append(totals, total{seat.TeamID, sheet.total(seat.TeamID)})
	}
	sort.SliceStable(totals, func(i, j int) bool { return totals[i].score > totals[j].score })

	tied := false
	for i := 1; i < len(totals); i++ {
		if model.ScoresEqual(totals[i-1].score, totals[i].score) {
			tied = true
		}
	}
	points := make(map[string]int, len(totals))
	if tied {
		if s.BallotSetupFor(d.Round) == model.BallotConsensus {
			return nil, &ValidationError{Reasons: []string{"teams must have distinct total scores"}}
		}
		// an individual ballot with a tie abstains
		return points, nil
	}
	n := len(totals)
	for rank, t := range totals {
		points[t.team] = n - 1 - rank
	}
	return points, nil
}

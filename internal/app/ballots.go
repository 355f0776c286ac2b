package service

import (
	"context"
	"errors"

	"github.com/okian/tabroom/internal/adapters/repository"
	"github.com/okian/tabroom/internal/domain/access"
	"github.com/okian/tabroom/internal/domain/ballots"
	"github.com/okian/tabroom/internal/domain/model"
	"github.com/okian/tabroom/pkg/logger"
	"github.com/okian/tabroom/pkg/metrics"
	"github.com/uptrace/bun"
)

// BallotOutcome reports a stored ballot and what it did to its debate.
type BallotOutcome struct {
	Ballot        model.Ballot       `json:"ballot"`
	Status        model.DebateStatus `json:"status"`
	Aggregated    bool               `json:"aggregated"`
	Discrepancies []string           `json:"discrepancies,omitempty"`
	Votes         map[string]int     `json:"votes,omitempty"`
}

// DebateBallots is the canonical ballot set of a debate with its results.
type DebateBallots struct {
	Debate         model.Debate                `json:"debate"`
	Sheets         []ballots.Sheet             `json:"sheets"`
	TeamResults    []model.DebateTeamResult    `json:"team_results"`
	SpeakerResults []model.DebateSpeakerResult `json:"speaker_results"`
}

// SubmitBallot stores a new ballot version for the judge holding privateURL
// and re-aggregates the judge's debate in the same transaction. editor is
// the signed-in user entering the ballot on the judge's behalf, or nil.
//
// Disagreeing ballots are not an error: the ballot is kept, the debate is
// marked conflicting and the disagreements are returned.
func (s *Service) SubmitBallot(ctx context.Context, editor *model.User, tournamentID, privateURL, roundID string, sub ballots.Submission) (*BallotOutcome, error) {
	out := &BallotOutcome{}
	err := s.withTelemetry(ctx, "submit_ballot", tournamentID, func(ctx context.Context) error {
		return s.store.RunInTx(ctx, "submit ballot", func(ctx context.Context, tx bun.Tx) error {
			t, err := repository.Tournament(ctx, tx, tournamentID)
			if err != nil {
				return err
			}
			judge, err := repository.JudgeByPrivateURL(ctx, tx, tournamentID, privateURL)
			if err != nil {
				return err
			}
			var editorID *string
			if editor != nil {
				if _, _, err := s.authorize(ctx, tx, editor, tournamentID, access.Admin); err != nil {
					return err
				}
				editorID = &editor.ID
			}

			round, err := repository.Round(ctx, tx, tournamentID, roundID)
			if err != nil {
				return err
			}
			switch {
			case round.Completed:
				return badRequest("round %s is completed", round.Name)
			case editor == nil && !round.DrawStatus.Released():
				return badRequest("the draw of round %s has not been released", round.Name)
			case !round.DrawStatus.AtLeast(model.DrawConfirmed):
				return badRequest("the draw of round %s has not been confirmed", round.Name)
			}
			debate, err := repository.DebateOfJudge(ctx, tx, roundID, judge.ID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return badRequest("%s does not judge in round %s", judge.Name, round.Name)
				}
				return err
			}
			bd, err := s.ballotDebate(ctx, tx, round, debate)
			if err != nil {
				return err
			}
			if len(bd.Motions) == 0 {
				return badRequest("round %s has no motion", round.Name)
			}

			prior, err := repository.LatestBallot(ctx, tx, debate.ID, judge.ID)
			switch {
			case errors.Is(err, repository.ErrNotFound):
				prior = nil
			case err != nil:
				return err
			}
			advancing, err := s.numAdvancing(ctx, tx, &t.Settings, round)
			if err != nil {
				return err
			}
			sheet, err := ballots.Build(ballots.BuildInput{
				Settings:     &t.Settings,
				Debate:       bd,
				JudgeID:      judge.ID,
				EditorID:     editorID,
				Prior:        prior,
				NumAdvancing: advancing,
				Now:          s.store.Now(),
			}, sub)
			if err != nil {
				return err
			}
			if err := repository.SaveSheet(ctx, tx, sheet); err != nil {
				return err
			}
			out.Ballot = sheet.Ballot

			res, aggErr := s.reaggregate(ctx, tx, &t.Settings, bd)
			if out.Status, err = statusOf(aggErr); err != nil {
				return err
			}
			var disc *ballots.DiscrepancyError
			switch {
			case res != nil:
				out.Aggregated = true
				out.Votes = res.Votes
			case errors.As(aggErr, &disc):
				out.Discrepancies = disc.Problems
			}
			if err := repository.SetDebateStatus(ctx, tx, debate.ID, out.Status); err != nil {
				return err
			}
			_, err = s.store.TakeSnapshot(ctx, tx, tournamentID)
			return err
		})
	})
	if err != nil {
		metrics.RecordBallotSubmission(outcomeOf(err))
		return nil, err
	}
	metrics.RecordBallotSubmission(string(out.Status))
	s.logger.Info(ctx, "ballot submitted",
		logger.String("debate_id", out.Ballot.DebateID),
		logger.String("judge_id", out.Ballot.JudgeID),
		logger.Int("version", out.Ballot.Version),
		logger.String("status", string(out.Status)),
	)
	return out, nil
}

// AggregateDebate recomputes a debate's results from its canonical ballots.
// Disagreeing ballots fail with a *DiscrepancyError and leave no results.
func (s *Service) AggregateDebate(ctx context.Context, user *model.User, tournamentID, debateID string) (*DebateBallots, error) {
	var out *DebateBallots
	err := s.withTelemetry(ctx, "aggregate_debate", tournamentID, func(ctx context.Context) error {
		var failure error
		err := s.mutate(ctx, "aggregate debate", user, tournamentID, func(ctx context.Context, tx bun.Tx, t *model.Tournament) error {
			debate, err := repository.Debate(ctx, tx, tournamentID, debateID)
			if err != nil {
				return err
			}
			round, err := repository.Round(ctx, tx, tournamentID, debate.RoundID)
			if err != nil {
				return err
			}
			bd, err := s.ballotDebate(ctx, tx, round, debate)
			if err != nil {
				return err
			}
			_, aggErr := s.reaggregate(ctx, tx, &t.Settings, bd)
			status, err := statusOf(aggErr)
			if err != nil {
				return err
			}
			failure = aggErr
			if err := repository.SetDebateStatus(ctx, tx, debate.ID, status); err != nil {
				return err
			}
			debate.Status = status
			out, err = loadDebateBallots(ctx, tx, debate)
			return err
		})
		if err != nil {
			return err
		}
		// The cleared results and new status are committed; the disagreement
		// is still the caller's answer.
		return failure
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DebateBallots returns a debate's canonical ballots and results.
func (s *Service) DebateBallots(ctx context.Context, user *model.User, tournamentID, debateID string) (*DebateBallots, error) {
	var out *DebateBallots
	err := s.withTelemetry(ctx, "debate_ballots", tournamentID, func(ctx context.Context) error {
		return s.view(ctx, "debate ballots", user, tournamentID, access.Member, func(ctx context.Context, tx bun.Tx, _ *model.Tournament, _ access.Grant) error {
			debate, err := repository.Debate(ctx, tx, tournamentID, debateID)
			if err != nil {
				return err
			}
			out, err = loadDebateBallots(ctx, tx, debate)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func loadDebateBallots(ctx context.Context, tx bun.IDB, debate *model.Debate) (*DebateBallots, error) {
	out := &DebateBallots{Debate: *debate}
	var err error
	if out.Sheets, err = repository.CanonicalSheets(ctx, tx, debate.ID); err != nil {
		return nil, err
	}
	if out.TeamResults, err = repository.TeamResults(ctx, tx, debate.ID); err != nil {
		return nil, err
	}
	if out.SpeakerResults, err = repository.SpeakerResults(ctx, tx, debate.ID); err != nil {
		return nil, err
	}
	return out, nil
}

// reaggregate replaces the debate's results with the aggregate of its
// canonical ballots, or clears them when the set does not aggregate.
func (s *Service) reaggregate(ctx context.Context, tx bun.IDB, settings *model.Settings, bd *ballots.Debate) (*ballots.Result, error) {
	sheets, err := repository.CanonicalSheets(ctx, tx, bd.Debate.ID)
	if err != nil {
		return nil, err
	}
	method := string(settings.BallotSetupFor(bd.Round))
	res, aggErr := ballots.Aggregate(settings, bd, sheets)
	if aggErr != nil {
		outcome := "incomplete"
		var disc *ballots.DiscrepancyError
		if errors.As(aggErr, &disc) {
			outcome = "discrepancy"
		}
		metrics.RecordAggregation(method, outcome)
		if err := repository.ClearResults(ctx, tx, bd.Debate.ID); err != nil {
			return nil, err
		}
		return nil, aggErr
	}
	if err := repository.ReplaceResults(ctx, tx, bd.Debate.ID, res.TeamResults, res.SpeakerResults); err != nil {
		return nil, err
	}
	metrics.RecordAggregation(method, "ok")
	return res, nil
}

// statusOf maps the outcome of reaggregate onto a ballot-set status. Errors
// other than an incomplete or disagreeing set are returned as they are.
func statusOf(aggErr error) (model.DebateStatus, error) {
	var disc *ballots.DiscrepancyError
	switch {
	case aggErr == nil:
		return model.DebateConfirmed, nil
	case errors.As(aggErr, &disc):
		return model.DebateConflict, nil
	case errors.Is(aggErr, ballots.ErrIncomplete):
		return model.DebateIncomplete, nil
	default:
		return "", aggErr
	}
}

// settleDebate re-aggregates a debate whose panel or ballots changed and
// stores the resulting ballot-set status.
func (s *Service) settleDebate(ctx context.Context, tx bun.IDB, settings *model.Settings, round *model.Round, debate *model.Debate) (model.DebateStatus, error) {
	bd, err := s.ballotDebate(ctx, tx, round, debate)
	if err != nil {
		return "", err
	}
	_, aggErr := s.reaggregate(ctx, tx, settings, bd)
	status, err := statusOf(aggErr)
	if err != nil {
		return "", err
	}
	if status != debate.Status {
		if err := repository.SetDebateStatus(ctx, tx, debate.ID, status); err != nil {
			return "", err
		}
		debate.Status = status
	}
	return status, nil
}

// ballotDebate gathers what ballots of one debate are checked against.
func (s *Service) ballotDebate(ctx context.Context, tx bun.IDB, round *model.Round, debate *model.Debate) (*ballots.Debate, error) {
	bd := &ballots.Debate{
		Debate:       *debate,
		Round:        round,
		TeamNames:    make(map[string]string),
		JudgeNames:   make(map[string]string),
		SpeakerNames: make(map[string]string),
		SpeakersOf:   make(map[string][]string),
	}
	var err error
	if bd.Seats, err = repository.DebateSeats(ctx, tx, debate.ID); err != nil {
		return nil, err
	}
	if bd.Panel, err = repository.DebatePanel(ctx, tx, debate.ID); err != nil {
		return nil, err
	}
	if bd.Motions, err = repository.Motions(ctx, tx, round.ID); err != nil {
		return nil, err
	}
	teams, err := repository.Teams(ctx, tx, debate.TournamentID)
	if err != nil {
		return nil, err
	}
	for _, t := range teams {
		bd.TeamNames[t.ID] = t.Name
	}
	speakers, err := repository.Speakers(ctx, tx, debate.TournamentID)
	if err != nil {
		return nil, err
	}
	for _, sp := range speakers {
		bd.SpeakerNames[sp.ID] = sp.Name
		bd.SpeakersOf[sp.TeamID] = append(bd.SpeakersOf[sp.TeamID], sp.ID)
	}
	judges, err := repository.Judges(ctx, tx, debate.TournamentID)
	if err != nil {
		return nil, err
	}
	for _, j := range judges {
		bd.JudgeNames[j.ID] = j.Name
	}
	return bd, nil
}

// numAdvancing reports how many teams advance from a debate of round.
// Only elimination rounds advance anyone.
func (s *Service) numAdvancing(ctx context.Context, tx bun.IDB, settings *model.Settings, round *model.Round) (int, error) {
	if !round.IsElim() {
		return 0, nil
	}
	rounds, err := repository.Rounds(ctx, tx, round.TournamentID)
	if err != nil {
		return 0, err
	}
	last := true
	for _, r := range rounds {
		if r.IsElim() && r.Seq > round.Seq && sameCategory(r.BreakCategoryID, round.BreakCategoryID) {
			last = false
			break
		}
	}
	return ballots.NumAdvancing(settings, last), nil
}

func sameCategory(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

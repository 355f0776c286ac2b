package service

import (
	"context"
	"fmt"

	"github.com/okian/tabroom/internal/adapters/repository"
	"github.com/okian/tabroom/internal/domain/model"
	"github.com/uptrace/bun"
)

// CompleteRound marks a round complete, which requires a confirmed ballot
// set in every debate. completed=false reopens the round and withdraws any
// published results.
func (s *Service) CompleteRound(ctx context.Context, user *model.User, tournamentID, roundID string, completed bool) (*model.Round, error) {
	var round *model.Round
	err := s.withTelemetry(ctx, "complete_round", tournamentID, func(ctx context.Context) error {
		return s.mutate(ctx, "complete round", user, tournamentID, func(ctx context.Context, tx bun.Tx, t *model.Tournament) error {
			var err error
			if round, err = repository.Round(ctx, tx, tournamentID, roundID); err != nil {
				return err
			}
			if !completed {
				round.Completed = false
				round.ResultsPublishedAt = nil
				return repository.UpdateRound(ctx, tx, round, "completed", "results_published_at")
			}

			if !round.DrawStatus.AtLeast(model.DrawConfirmed) {
				return badRequest("round %s has no confirmed draw", round.Name)
			}
			rd, err := repository.LoadRoundDraw(ctx, tx, roundID)
			if err != nil {
				return err
			}
			var reasons []string
			// Stored statuses can lag behind panel changes; judge every
			// debate from its canonical ballots again.
			for i := range rd.Debates {
				d := &rd.Debates[i]
				status, err := s.settleDebate(ctx, tx, &t.Settings, round, d)
				if err != nil {
					return err
				}
				if status != model.DebateConfirmed {
					reasons = append(reasons, fmt.Sprintf("debate %d is %s", d.Number, status))
				}
			}
			if len(rd.Debates) == 0 {
				reasons = append(reasons, "the round has no debates")
			}
			if len(reasons) > 0 {
				return &ValidationError{Reasons: reasons}
			}
			round.Completed = true
			return repository.UpdateRound(ctx, tx, round, "completed")
		})
	})
	if err != nil {
		return nil, err
	}
	return round, nil
}

// PublishResults makes a completed round's results public.
func (s *Service) PublishResults(ctx context.Context, user *model.User, tournamentID, roundID string) (*model.Round, error) {
	var round *model.Round
	err := s.withTelemetry(ctx, "publish_results", tournamentID, func(ctx context.Context) error {
		return s.mutate(ctx, "publish results", user, tournamentID, func(ctx context.Context, tx bun.Tx, _ *model.Tournament) error {
			var err error
			if round, err = repository.Round(ctx, tx, tournamentID, roundID); err != nil {
				return err
			}
			if !round.Completed {
				return badRequest("round %s must be completed before its results are published", round.Name)
			}
			if round.ResultsPublishedAt == nil {
				now := s.store.Now()
				round.ResultsPublishedAt = &now
			}
			return repository.UpdateRound(ctx, tx, round, "results_published_at")
		})
	})
	if err != nil {
		return nil, err
	}
	return round, nil
}

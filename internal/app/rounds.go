package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/tabroom/internal/adapters/broadcast"
	"github.com/okian/tabroom/internal/adapters/repository"
	"github.com/okian/tabroom/internal/domain/access"
	"github.com/okian/tabroom/internal/domain/model"
	"github.com/uptrace/bun"
)

// RoundInput creates a round. Seq defaults to the next free sequence of its kind.
type RoundInput struct {
	Name            string          `json:"name"`
	Kind            model.RoundKind `json:"kind"`
	Seq             *int            `json:"seq,omitempty"`
	BreakCategoryID *string         `json:"break_category_id,omitempty"`
}

// MotionInput adds a motion to a round.
type MotionInput struct {
	Text      string  `json:"text"`
	Infoslide *string `json:"infoslide,omitempty"`
}

// Availability lists who is available for a round.
type Availability struct {
	Teams  []string `json:"teams"`
	Judges []string `json:"judges"`
}

// CreateRound adds a round. Elimination rounds need a break category and
// sequence after every preliminary round.
func (s *Service) CreateRound(ctx context.Context, user *model.User, tournamentID string, in RoundInput) (*model.Round, error) {
	var round *model.Round
	err := s.withTelemetry(ctx, "create_round", tournamentID, func(ctx context.Context) error {
		if in.Kind == "" {
			in.Kind = model.RoundPrelim
		}
		if in.Kind != model.RoundPrelim && in.Kind != model.RoundElim {
			return badRequest("round kind must be %q or %q", model.RoundPrelim, model.RoundElim)
		}
		if (in.Kind == model.RoundElim) != (in.BreakCategoryID != nil) {
			return badRequest("a break category is required for elimination rounds only")
		}
		return s.mutate(ctx, "create round", user, tournamentID, func(ctx context.Context, tx bun.Tx, _ *model.Tournament) error {
			if in.BreakCategoryID != nil {
				if _, err := repository.BreakCategory(ctx, tx, tournamentID, *in.BreakCategoryID); err != nil {
					if errors.Is(err, repository.ErrNotFound) {
						return badRequest("unknown break category %s", *in.BreakCategoryID)
					}
					return err
				}
			}
			rounds, err := repository.Rounds(ctx, tx, tournamentID)
			if err != nil {
				return err
			}
			seq, err := roundSeq(rounds, in)
			if err != nil {
				return err
			}
			name := strings.TrimSpace(in.Name)
			if name == "" {
				name = fmt.Sprintf("Round %d", seq)
			}
			round = &model.Round{
				ID:              model.NewID(),
				TournamentID:    tournamentID,
				Seq:             seq,
				Name:            name,
				Kind:            in.Kind,
				BreakCategoryID: in.BreakCategoryID,
				DrawStatus:      model.DrawNotStarted,
			}
			return repository.Insert(ctx, tx, round)
		})
	})
	if err != nil {
		return nil, err
	}
	return round, nil
}

// roundSeq keeps every elimination round after every preliminary round.
func roundSeq(rounds []model.Round, in RoundInput) (int, error) {
	maxPrelim, maxAll, minElim := 0, 0, 0
	for _, r := range rounds {
		maxAll = max(maxAll, r.Seq)
		if r.IsElim() {
			if minElim == 0 || r.Seq < minElim {
				minElim = r.Seq
			}
		} else {
			maxPrelim = max(maxPrelim, r.Seq)
		}
	}
	var seq int
	switch {
	case in.Seq != nil:
		seq = *in.Seq
	case in.Kind == model.RoundElim:
		seq = maxAll + 1
	default:
		seq = maxPrelim + 1
	}
	switch {
	case seq < 1:
		return 0, badRequest("round sequence must be positive")
	case in.Kind == model.RoundElim && seq <= maxPrelim:
		return 0, badRequest("elimination round %d must follow preliminary round %d", seq, maxPrelim)
	case in.Kind == model.RoundPrelim && minElim != 0 && seq >= minElim:
		return 0, badRequest("preliminary round %d must precede elimination round %d", seq, minElim)
	}
	return seq, nil
}

// Rounds lists the rounds of a tournament.
func (s *Service) Rounds(ctx context.Context, user *model.User, tournamentID string) ([]model.Round, error) {
	var out []model.Round
	err := s.withTelemetry(ctx, "rounds", tournamentID, func(ctx context.Context) error {
		return s.view(ctx, "rounds", user, tournamentID, access.Read, func(ctx context.Context, tx bun.Tx, _ *model.Tournament, _ access.Grant) error {
			var err error
			out, err = repository.Rounds(ctx, tx, tournamentID)
			return err
		})
	})
	return out, err
}

// AddMotion adds a motion to a round.
func (s *Service) AddMotion(ctx context.Context, user *model.User, tournamentID, roundID string, in MotionInput) (*model.Motion, error) {
	row := &model.Motion{
		ID:           model.NewID(),
		TournamentID: tournamentID,
		RoundID:      roundID,
		Text:         strings.TrimSpace(in.Text),
		Infoslide:    in.Infoslide,
	}
	err := s.withTelemetry(ctx, "add_motion", tournamentID, func(ctx context.Context) error {
		if err := required("motion text", row.Text); err != nil {
			return err
		}
		return s.mutate(ctx, "add motion", user, tournamentID, func(ctx context.Context, tx bun.Tx, _ *model.Tournament) error {
			if _, err := repository.Round(ctx, tx, tournamentID, roundID); err != nil {
				return err
			}
			return repository.Insert(ctx, tx, row)
		})
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// SetTeamAvailability marks a team (un)available for a round. A team can be
// available in only one round of each sequence number.
func (s *Service) SetTeamAvailability(ctx context.Context, user *model.User, tournamentID, roundID, teamID string, available bool) error {
	err := s.withTelemetry(ctx, "set_team_availability", tournamentID, func(ctx context.Context) error {
		return s.mutate(ctx, "set team availability", user, tournamentID, func(ctx context.Context, tx bun.Tx, _ *model.Tournament) error {
			round, err := repository.Round(ctx, tx, tournamentID, roundID)
			if err != nil {
				return err
			}
			if _, err := repository.Team(ctx, tx, tournamentID, teamID); err != nil {
				return err
			}
			if available {
				busy, err := repository.TeamAvailableInSiblingRound(ctx, tx, round, teamID)
				if err != nil {
					return err
				}
				if busy {
					return badRequest("team is already available in another round %d", round.Seq)
				}
			}
			return repository.SetTeamAvailability(ctx, tx, &model.TeamAvailability{
				ID:           model.NewID(),
				TournamentID: tournamentID,
				RoundID:      roundID,
				TeamID:       teamID,
				Available:    available,
			})
		})
	})
	if err != nil {
		return err
	}
	s.publish(ctx, broadcast.TeamAvailability(tournamentID, roundID))
	return nil
}

// SetJudgeAvailability marks a judge (un)available for a round.
func (s *Service) SetJudgeAvailability(ctx context.Context, user *model.User, tournamentID, roundID, judgeID string, available bool) error {
	err := s.withTelemetry(ctx, "set_judge_availability", tournamentID, func(ctx context.Context) error {
		return s.mutate(ctx, "set judge availability", user, tournamentID, func(ctx context.Context, tx bun.Tx, _ *model.Tournament) error {
			if _, err := repository.Round(ctx, tx, tournamentID, roundID); err != nil {
				return err
			}
			if _, err := repository.Judge(ctx, tx, tournamentID, judgeID); err != nil {
				return err
			}
			return repository.SetJudgeAvailability(ctx, tx, &model.JudgeAvailability{
				ID:           model.NewID(),
				TournamentID: tournamentID,
				RoundID:      roundID,
				JudgeID:      judgeID,
				Available:    available,
			})
		})
	})
	if err != nil {
		return err
	}
	s.publish(ctx, broadcast.JudgeAvailability(tournamentID, roundID))
	return nil
}

// RoundAvailability lists the teams and judges available for a round.
func (s *Service) RoundAvailability(ctx context.Context, user *model.User, tournamentID, roundID string) (*Availability, error) {
	out := &Availability{}
	err := s.withTelemetry(ctx, "round_availability", tournamentID, func(ctx context.Context) error {
		return s.view(ctx, "round availability", user, tournamentID, access.Member, func(ctx context.Context, tx bun.Tx, _ *model.Tournament, _ access.Grant) error {
			if _, err := repository.Round(ctx, tx, tournamentID, roundID); err != nil {
				return err
			}
			var err error
			if out.Teams, err = repository.AvailableTeams(ctx, tx, roundID); err != nil {
				return err
			}
			out.Judges, err = repository.AvailableJudges(ctx, tx, roundID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

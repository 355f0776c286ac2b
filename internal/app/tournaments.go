package service

import (
	"context"
	"strings"

	"github.com/okian/tabroom/internal/adapters/repository"
	"github.com/okian/tabroom/internal/domain/access"
	"github.com/okian/tabroom/internal/domain/model"
	"github.com/okian/tabroom/internal/domain/standings"
	"github.com/uptrace/bun"
)

// TournamentInput creates a tournament. A nil Settings means British Parliamentary defaults.
type TournamentInput struct {
	Name         string          `json:"name"`
	Abbreviation string          `json:"abbreviation"`
	Settings     *model.Settings `json:"settings,omitempty"`
}

// CreateTournament creates a tournament; its creator becomes superuser.
// Snapshots begin with the first mutation after creation.
func (s *Service) CreateTournament(ctx context.Context, user *model.User, in TournamentInput) (*model.Tournament, error) {
	var t *model.Tournament
	err := s.withTelemetry(ctx, "create_tournament", "", func(ctx context.Context) error {
		if _, err := access.Authorize(user, nil, access.Authenticated); err != nil {
			return err
		}
		in.Name = strings.TrimSpace(in.Name)
		if in.Name == "" {
			return badRequest("tournament name is required")
		}
		settings := model.DefaultSettings()
		if in.Settings != nil {
			settings = *in.Settings
		}
		if err := settings.Validate(); err != nil {
			return err
		}
		if err := standings.ValidateMetrics(&settings); err != nil {
			return err
		}
		if in.Abbreviation == "" {
			in.Abbreviation = in.Name
		}
		t = &model.Tournament{
			ID:           model.NewID(),
			Name:         in.Name,
			Abbreviation: in.Abbreviation,
			CreatedAt:    s.store.Now(),
			Settings:     settings,
		}
		owner := &model.Member{ID: model.NewID(), TournamentID: t.ID, UserID: user.ID, IsSuperuser: true}
		return s.store.RunInTx(ctx, "create tournament", func(ctx context.Context, tx bun.Tx) error {
			return repository.CreateTournament(ctx, tx, t, owner)
		})
	})
	return t, err
}

// Tournament returns a tournament's configuration. Anyone may read it.
func (s *Service) Tournament(ctx context.Context, user *model.User, tournamentID string) (*model.Tournament, error) {
	var out *model.Tournament
	err := s.withTelemetry(ctx, "tournament", tournamentID, func(ctx context.Context) error {
		return s.view(ctx, "tournament", user, tournamentID, access.Read, func(_ context.Context, _ bun.Tx, t *model.Tournament, _ access.Grant) error {
			out = t
			return nil
		})
	})
	return out, err
}

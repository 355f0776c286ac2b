package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/okian/tabroom/internal/adapters/broadcast"
	"github.com/okian/tabroom/internal/adapters/repository"
	"github.com/okian/tabroom/internal/domain/access"
	"github.com/okian/tabroom/internal/domain/model"
	"github.com/uptrace/bun"
)

// SpeakerInput registers a speaker.
type SpeakerInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TeamInput registers a team with its speakers.
type TeamInput struct {
	Name          string         `json:"name"`
	InstitutionID *string        `json:"institution_id,omitempty"`
	Speakers      []SpeakerInput `json:"speakers"`
}

// JudgeInput registers a judge.
type JudgeInput struct {
	Name          string  `json:"name"`
	InstitutionID *string `json:"institution_id,omitempty"`
}

// Participants is everything registered in a tournament.
type Participants struct {
	Institutions    []model.Institution   `json:"institutions"`
	Teams           []model.Team          `json:"teams"`
	Speakers        []model.Speaker       `json:"speakers"`
	Judges          []model.Judge         `json:"judges"`
	BreakCategories []model.BreakCategory `json:"break_categories"`
}

// privateURL is an unguessable per-participant token.
func privateURL() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return badRequest("%s is required", field)
	}
	return nil
}

func checkInstitution(ctx context.Context, db bun.IDB, tournamentID string, id *string) error {
	if id == nil {
		return nil
	}
	_, err := repository.Institution(ctx, db, tournamentID, *id)
	if errors.Is(err, repository.ErrNotFound) {
		return badRequest("unknown institution %s", *id)
	}
	return err
}

// AddInstitution registers an institution.
func (s *Service) AddInstitution(ctx context.Context, user *model.User, tournamentID, name string) (*model.Institution, error) {
	row := &model.Institution{ID: model.NewID(), TournamentID: tournamentID, Name: strings.TrimSpace(name)}
	err := s.withTelemetry(ctx, "add_institution", tournamentID, func(ctx context.Context) error {
		if err := required("institution name", row.Name); err != nil {
			return err
		}
		return s.mutate(ctx, "add institution", user, tournamentID, func(ctx context.Context, tx bun.Tx, _ *model.Tournament) error {
			return repository.Insert(ctx, tx, row)
		})
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, broadcast.Participants(tournamentID))
	return row, nil
}

// AddTeam registers a team, numbering it after the existing ones.
func (s *Service) AddTeam(ctx context.Context, user *model.User, tournamentID string, in TeamInput) (*model.Team, []model.Speaker, error) {
	var (
		team     *model.Team
		speakers []model.Speaker
	)
	err := s.withTelemetry(ctx, "add_team", tournamentID, func(ctx context.Context) error {
		if err := required("team name", in.Name); err != nil {
			return err
		}
		for _, sp := range in.Speakers {
			if err := required("speaker name", sp.Name); err != nil {
				return err
			}
		}
		return s.mutate(ctx, "add team", user, tournamentID, func(ctx context.Context, tx bun.Tx, _ *model.Tournament) error {
			if err := checkInstitution(ctx, tx, tournamentID, in.InstitutionID); err != nil {
				return err
			}
			n, err := repository.NextNumber(ctx, tx, (*model.Team)(nil), tournamentID)
			if err != nil {
				return err
			}
			team = &model.Team{
				ID:            model.NewID(),
				TournamentID:  tournamentID,
				Name:          strings.TrimSpace(in.Name),
				InstitutionID: in.InstitutionID,
				Number:        n,
			}
			if err := repository.Insert(ctx, tx, team); err != nil {
				return err
			}
			speakers = speakers[:0]
			for _, sp := range in.Speakers {
				row := newSpeaker(tournamentID, team.ID, sp)
				if err := repository.Insert(ctx, tx, &row); err != nil {
					return err
				}
				speakers = append(speakers, row)
			}
			return nil
		})
	})
	if err != nil {
		return nil, nil, err
	}
	s.publish(ctx, broadcast.Participants(tournamentID))
	return team, speakers, nil
}

func newSpeaker(tournamentID, teamID string, in SpeakerInput) model.Speaker {
	return model.Speaker{
		ID:           model.NewID(),
		TournamentID: tournamentID,
		TeamID:       teamID,
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.TrimSpace(in.Email),
		PrivateURL:   privateURL(),
	}
}

// AddSpeaker adds a speaker to an existing team.
func (s *Service) AddSpeaker(ctx context.Context, user *model.User, tournamentID, teamID string, in SpeakerInput) (*model.Speaker, error) {
	row := newSpeaker(tournamentID, teamID, in)
	err := s.withTelemetry(ctx, "add_speaker", tournamentID, func(ctx context.Context) error {
		if err := required("speaker name", row.Name); err != nil {
			return err
		}
		return s.mutate(ctx, "add speaker", user, tournamentID, func(ctx context.Context, tx bun.Tx, _ *model.Tournament) error {
			if _, err := repository.Team(ctx, tx, tournamentID, teamID); err != nil {
				return err
			}
			return repository.Insert(ctx, tx, &row)
		})
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, broadcast.Participants(tournamentID))
	return &row, nil
}

// AddJudge registers a judge with a fresh private URL.
func (s *Service) AddJudge(ctx context.Context, user *model.User, tournamentID string, in JudgeInput) (*model.Judge, error) {
	var judge *model.Judge
	err := s.withTelemetry(ctx, "add_judge", tournamentID, func(ctx context.Context) error {
		if err := required("judge name", in.Name); err != nil {
			return err
		}
		return s.mutate(ctx, "add judge", user, tournamentID, func(ctx context.Context, tx bun.Tx, _ *model.Tournament) error {
			if err := checkInstitution(ctx, tx, tournamentID, in.InstitutionID); err != nil {
				return err
			}
			n, err := repository.NextNumber(ctx, tx, (*model.Judge)(nil), tournamentID)
			if err != nil {
				return err
			}
			judge = &model.Judge{
				ID:            model.NewID(),
				TournamentID:  tournamentID,
				Name:          strings.TrimSpace(in.Name),
				InstitutionID: in.InstitutionID,
				PrivateURL:    privateURL(),
				Number:        n,
			}
			return repository.Insert(ctx, tx, judge)
		})
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, broadcast.Participants(tournamentID))
	return judge, nil
}

// AddBreakCategory registers a break category for elimination rounds. size
// teams break into its first elimination round.
func (s *Service) AddBreakCategory(ctx context.Context, user *model.User, tournamentID, name string, size int) (*model.BreakCategory, error) {
	row := &model.BreakCategory{ID: model.NewID(), TournamentID: tournamentID, Name: strings.TrimSpace(name), Size: size}
	err := s.withTelemetry(ctx, "add_break_category", tournamentID, func(ctx context.Context) error {
		if err := required("break category name", row.Name); err != nil {
			return err
		}
		if row.Size < 2 {
			return badRequest("break category %s must break at least two teams", row.Name)
		}
		return s.mutate(ctx, "add break category", user, tournamentID, func(ctx context.Context, tx bun.Tx, _ *model.Tournament) error {
			return repository.Insert(ctx, tx, row)
		})
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Participants lists every registered row. Private URLs make it members-only.
func (s *Service) Participants(ctx context.Context, user *model.User, tournamentID string) (*Participants, error) {
	out := &Participants{}
	err := s.withTelemetry(ctx, "participants", tournamentID, func(ctx context.Context) error {
		return s.view(ctx, "participants", user, tournamentID, access.Member, func(ctx context.Context, tx bun.Tx, _ *model.Tournament, _ access.Grant) error {
			var err error
			if out.Institutions, err = repository.Institutions(ctx, tx, tournamentID); err != nil {
				return err
			}
			if out.Teams, err = repository.Teams(ctx, tx, tournamentID); err != nil {
				return err
			}
			if out.Speakers, err = repository.Speakers(ctx, tx, tournamentID); err != nil {
				return err
			}
			if out.Judges, err = repository.Judges(ctx, tx, tournamentID); err != nil {
				return err
			}
			out.BreakCategories, err = repository.BreakCategories(ctx, tx, tournamentID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

package service

import (
	"context"
	"io"
	"time"

	"github.com/okian/tabroom/internal/adapters/export"
	"github.com/okian/tabroom/internal/adapters/repository"
	"github.com/okian/tabroom/internal/domain/access"
	"github.com/okian/tabroom/internal/domain/model"
	"github.com/okian/tabroom/internal/domain/standings"
	"github.com/okian/tabroom/pkg/metrics"
	"github.com/uptrace/bun"
)

// TeamTable is the team standings with names resolved.
type TeamTable struct {
	Metrics []model.TeamMetric `json:"metrics"`
	Rows    []TeamStanding     `json:"rows"`
}

// TeamStanding is one line of a TeamTable. Values follow the metrics.
type TeamStanding struct {
	Rank   int       `json:"rank"`
	TeamID string    `json:"team_id"`
	Team   string    `json:"team"`
	Points int       `json:"points"`
	Values []float64 `json:"values"`
}

// SpeakerTable is the speaker standings with names resolved.
type SpeakerTable struct {
	Metrics []model.SpeakerMetric `json:"metrics"`
	Rows    []SpeakerStanding     `json:"rows"`
}

// SpeakerStanding is one line of a SpeakerTable.
type SpeakerStanding struct {
	Rank      int       `json:"rank"`
	SpeakerID string    `json:"speaker_id"`
	Speaker   string    `json:"speaker"`
	Team      string    `json:"team"`
	Speeches  int       `json:"speeches"`
	Values    []float64 `json:"values"`
}

// TeamStandings ranks the teams over the completed preliminary rounds.
func (s *Service) TeamStandings(ctx context.Context, user *model.User, tournamentID string) (*TeamTable, error) {
	var out *TeamTable
	err := s.withTelemetry(ctx, "team_standings", tournamentID, func(ctx context.Context) error {
		return s.withTab(ctx, "team standings", user, tournamentID, func(tab *standings.Tab) error {
			ts, err := standings.ComputeTeams(tab)
			if err != nil {
				return err
			}
			names := teamNames(tab)
			out = &TeamTable{Metrics: ts.Metrics, Rows: make([]TeamStanding, 0, len(ts.Rows))}
			for _, r := range ts.Rows {
				out.Rows = append(out.Rows, TeamStanding{
					Rank:   r.Rank,
					TeamID: r.TeamID,
					Team:   names[r.TeamID],
					Points: r.Points,
					Values: r.Values,
				})
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SpeakerStandings ranks the speakers over the counted rounds.
func (s *Service) SpeakerStandings(ctx context.Context, user *model.User, tournamentID string) (*SpeakerTable, error) {
	var out *SpeakerTable
	err := s.withTelemetry(ctx, "speaker_standings", tournamentID, func(ctx context.Context) error {
		return s.withTab(ctx, "speaker standings", user, tournamentID, func(tab *standings.Tab) error {
			ss, err := standings.ComputeSpeakers(tab)
			if err != nil {
				return err
			}
			teams := teamNames(tab)
			speakers := make(map[string]string, len(tab.Speakers))
			for _, sp := range tab.Speakers {
				speakers[sp.ID] = sp.Name
			}
			out = &SpeakerTable{Metrics: ss.Metrics, Rows: make([]SpeakerStanding, 0, len(ss.Rows))}
			for _, r := range ss.Rows {
				out.Rows = append(out.Rows, SpeakerStanding{
					Rank:      r.Rank,
					SpeakerID: r.SpeakerID,
					Speaker:   speakers[r.SpeakerID],
					Team:      teams[r.TeamID],
					Speeches:  r.Speeches,
					Values:    r.Values,
				})
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ExportStandings writes the team and speaker standings as a workbook.
func (s *Service) ExportStandings(ctx context.Context, user *model.User, tournamentID string, w io.Writer) error {
	return s.withTelemetry(ctx, "export_standings", tournamentID, func(ctx context.Context) error {
		var (
			tab *standings.Tab
			ts  *standings.TeamStandings
			ss  *standings.SpeakerStandings
		)
		err := s.withTab(ctx, "export standings", user, tournamentID, func(t *standings.Tab) error {
			var err error
			if ts, err = standings.ComputeTeams(t); err != nil {
				return err
			}
			if ss, err = standings.ComputeSpeakers(t); err != nil {
				return err
			}
			tab = t
			return nil
		})
		if err != nil {
			return err
		}
		return export.Standings(w, tab, ts, ss)
	})
}

// withTab loads the tab in a read transaction for a member and hands it to fn.
func (s *Service) withTab(ctx context.Context, op string, user *model.User, tournamentID string, fn func(tab *standings.Tab) error) error {
	return s.view(ctx, op, user, tournamentID, access.Member, func(ctx context.Context, tx bun.Tx, t *model.Tournament, _ access.Grant) error {
		tab, err := repository.LoadTab(ctx, tx, t)
		if err != nil {
			return err
		}
		start := time.Now()
		err = fn(tab)
		metrics.RecordStandingsLatency(float64(time.Since(start).Milliseconds()))
		return err
	})
}

func teamNames(tab *standings.Tab) map[string]string {
	out := make(map[string]string, len(tab.Teams))
	for _, t := range tab.Teams {
		out[t.ID] = t.Name
	}
	return out
}

package service

import (
	"context"
	"encoding/json"

	"github.com/okian/tabroom/internal/adapters/repository"
	"github.com/okian/tabroom/internal/domain/access"
	"github.com/okian/tabroom/internal/domain/model"
	"github.com/uptrace/bun"
)

// SnapshotContents is one snapshot with its captured rows.
type SnapshotContents struct {
	model.Snapshot
	Contents json.RawMessage `json:"contents"`
}

// Snapshots walks a tournament's snapshot chain from the newest entry.
// limit <= 0 returns the whole chain.
func (s *Service) Snapshots(ctx context.Context, user *model.User, tournamentID string, limit int) ([]model.Snapshot, error) {
	var out []model.Snapshot
	err := s.withTelemetry(ctx, "snapshots", tournamentID, func(ctx context.Context) error {
		return s.view(ctx, "snapshots", user, tournamentID, access.Admin, func(ctx context.Context, tx bun.Tx, _ *model.Tournament, _ access.Grant) error {
			var err error
			out, err = repository.SnapshotChain(ctx, tx, tournamentID, limit)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Snapshot returns one snapshot with its contents.
func (s *Service) Snapshot(ctx context.Context, user *model.User, tournamentID, snapshotID string) (*SnapshotContents, error) {
	var out *SnapshotContents
	err := s.withTelemetry(ctx, "snapshot", tournamentID, func(ctx context.Context) error {
		return s.view(ctx, "snapshot", user, tournamentID, access.Admin, func(ctx context.Context, tx bun.Tx, _ *model.Tournament, _ access.Grant) error {
			snap, err := repository.Snapshot(ctx, tx, tournamentID, snapshotID)
			if err != nil {
				return err
			}
			out = &SnapshotContents{Snapshot: *snap, Contents: json.RawMessage(snap.Contents)}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

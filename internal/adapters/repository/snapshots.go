package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/okian/tabroom/internal/domain/model"
	"github.com/okian/tabroom/pkg/metrics"
	"github.com/uptrace/bun"
)

const migrationsTable = "bun_migrations"

// snapshotTables are the tournament-scoped tables captured by a snapshot,
// all keyed by tournament_id.
var snapshotTables = []string{
	"tournament_members",
	"tournament_institutions",
	"tournament_teams",
	"tournament_speakers",
	"tournament_judges",
	"tournament_break_categories",
	"tournament_rounds",
	"tournament_motions",
	"tournament_team_availability",
	"tournament_judge_availability",
	"tournament_draws",
	"tournament_debates",
	"tournament_debate_teams",
	"tournament_debate_judges",
	"tournament_ballots",
	"tournament_team_rank_entries",
	"tournament_speaker_score_entries",
	"tournament_debate_team_results",
	"tournament_debate_speaker_results",
}

// SchemaID returns the name of the newest applied migration.
func SchemaID(ctx context.Context, db bun.IDB) (string, error) {
	var name string
	err := db.NewSelect().Table(migrationsTable).Column("name").Order("id DESC").Limit(1).Scan(ctx, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return name, wrap("schema id", err)
}

// TakeSnapshot captures every row of the tournament and appends it to the
// tournament's chain. Call it inside the transaction of the mutation.
func (s *Store) TakeSnapshot(ctx context.Context, db bun.IDB, tournamentID string) (*model.Snapshot, error) {
	contents := make(map[string]any, len(snapshotTables)+1)

	var tournament []map[string]any
	if err := db.NewSelect().Table("tournaments").ColumnExpr("*").Where("id = ?", tournamentID).Scan(ctx, &tournament); err != nil {
		return nil, fmt.Errorf("%w: tournaments: %v", ErrSnapshotFailed, err)
	}
	contents["tournaments"] = normalise(tournament)
	for _, table := range snapshotTables {
		var rows []map[string]any
		err := db.NewSelect().Table(table).ColumnExpr("*").Where("tournament_id = ?", tournamentID).Order("id").Scan(ctx, &rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrSnapshotFailed, table, err)
		}
		contents[table] = normalise(rows)
	}
	body, err := json.Marshal(contents)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrSnapshotFailed, err)
	}

	schema, err := SchemaID(ctx, db)
	if err != nil {
		return nil, err
	}
	snap := &model.Snapshot{
		ID:           model.NewID(),
		TournamentID: tournamentID,
		CreatedAt:    s.Now(),
		SchemaID:     schema,
		Contents:     string(body),
	}
	prev, err := LatestSnapshot(ctx, db, tournamentID)
	switch {
	case err == nil:
		snap.Prev = &prev.ID
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}
	if err := insert(ctx, db, "insert snapshot", snap); err != nil {
		return nil, err
	}
	metrics.RecordSnapshot(len(body))
	return snap, nil
}

// normalise turns driver byte slices into strings so they encode as text.
func normalise(rows []map[string]any) []map[string]any {
	if rows == nil {
		return []map[string]any{}
	}
	for _, row := range rows {
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
	}
	return rows
}

// LatestSnapshot loads the head of a tournament's chain.
func LatestSnapshot(ctx context.Context, db bun.IDB, tournamentID string) (*model.Snapshot, error) {
	row := new(model.Snapshot)
	err := db.NewSelect().Model(row).
		Where("tournament_id = ?", tournamentID).
		Order("created_at DESC", "id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, wrap("latest snapshot", err)
	}
	return row, nil
}

// Snapshot loads one snapshot of a tournament.
func Snapshot(ctx context.Context, db bun.IDB, tournamentID, id string) (*model.Snapshot, error) {
	return getWhere[model.Snapshot](ctx, db, "snapshot", "tournament_id = ? AND id = ?", tournamentID, id)
}

// SnapshotChain follows prev links from the newest snapshot, newest first,
// returning at most limit entries (all when limit <= 0).
func SnapshotChain(ctx context.Context, db bun.IDB, tournamentID string, limit int) ([]model.Snapshot, error) {
	head, err := LatestSnapshot(ctx, db, tournamentID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	out := []model.Snapshot{*head}
	seen[head.ID] = true
	for cur := head; cur.Prev != nil && (limit <= 0 || len(out) < limit); {
		if seen[*cur.Prev] {
			return nil, fmt.Errorf("%w: cycle at %s", ErrSnapshotFailed, *cur.Prev)
		}
		if cur, err = Snapshot(ctx, db, tournamentID, *cur.Prev); err != nil {
			return nil, err
		}
		seen[cur.ID] = true
		out = append(out, *cur)
	}
	return out, nil
}

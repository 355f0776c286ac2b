package repository

import (
	"context"

	"github.com/okian/tabroom/internal/domain/model"
	"github.com/uptrace/bun"
)

// Tickets lists the ticket rows of (round, kind).
func Tickets(ctx context.Context, db bun.IDB, roundID, kind string) ([]model.RoundTicket, error) {
	var out []model.RoundTicket
	err := db.NewSelect().Model(&out).Where("round_id = ? AND kind = ?", roundID, kind).Order("seq").Scan(ctx)
	if err != nil {
		return nil, wrap("tickets", err)
	}
	return out, nil
}

// CollectReleasedTickets deletes the released ticket rows of (round, kind).
func CollectReleasedTickets(ctx context.Context, db bun.IDB, roundID, kind string) error {
	_, err := db.NewDelete().Model((*model.RoundTicket)(nil)).
		Where("round_id = ? AND kind = ? AND released = ?", roundID, kind, true).
		Exec(ctx)
	return wrap("collect tickets", err)
}

// InsertTicket stores a new ticket. Two attempts racing for one seq meet
// the unique index and the loser gets ErrDuplicate.
func InsertTicket(ctx context.Context, db bun.IDB, t *model.RoundTicket) error {
	return insert(ctx, db, "insert ticket", t)
}

// ReleaseTicket marks a ticket released.
func ReleaseTicket(ctx context.Context, db bun.IDB, id string) error {
	_, err := db.NewUpdate().Model((*model.RoundTicket)(nil)).
		Set("released = ?", true).
		Where("id = ?", id).
		Exec(ctx)
	return wrap("release ticket", err)
}

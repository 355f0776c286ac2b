// Package ticket decides the draw serialisation protocol over a round's
// ticket rows. The store applies the decisions inside its transactions.
package ticket

import (
	"fmt"

	"github.com/okian/tabroom/internal/domain/model"
)

// Grant is the outcome of an acquisition.
type Grant struct {
	// Seq is the sequence number of the new ticket.
	Seq int
	// CollectReleased asks the store to delete the round's released rows first.
	CollectReleased bool
}

// Acquire decides whether a new ticket may be issued given every ticket row
// of the round and kind.
//
// With no unreleased ticket the released rows are collected and seq 0 is
// issued. Otherwise the caller needs force and gets max(seq)+1 over all
// remaining rows, so a preempted holder always sees a greater seq.
func Acquire(rows []model.RoundTicket, force bool) (Grant, error) {
	held := false
	top := -1
	for _, r := range rows {
		if !r.Released {
			held = true
		}
		top = max(top, r.Seq)
	}
	if !held {
		return Grant{Seq: 0, CollectReleased: true}, nil
	}
	if !force {
		return Grant{}, ErrAlreadyInProgress
	}
	return Grant{Seq: top + 1}, nil
}

// CheckCommit reports whether the holder of mine may still commit.
// Any row with a greater seq, released or not, means mine was preempted.
func CheckCommit(rows []model.RoundTicket, mine *model.RoundTicket) error {
	found := false
	for _, r := range rows {
		if r.ID == mine.ID {
			found = true
			continue
		}
		if r.Seq > mine.Seq {
			return fmt.Errorf("%w: seq %d superseded by %d", ErrExpired, mine.Seq, r.Seq)
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotHeld, mine.ID)
	}
	return nil
}

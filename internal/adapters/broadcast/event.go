package broadcast

import (
	"fmt"
	"time"
)

// Kind tags a refresh notification.
type Kind string

const (
	ParticipantsUpdate      Kind = "participants_update"
	DrawUpdated             Kind = "draw_updated"
	TeamAvailabilityUpdate  Kind = "team_availability_update"
	JudgeAvailabilityUpdate Kind = "judge_availability_update"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case ParticipantsUpdate, DrawUpdated, TeamAvailabilityUpdate, JudgeAvailabilityUpdate:
		return true
	}
	return false
}

// Event tells subscribers of a tournament to re-read some state.
type Event struct {
	Kind         Kind      `json:"kind"`
	TournamentID string    `json:"tournament_id"`
	RoundID      string    `json:"round_id,omitempty"`
	At           time.Time `json:"at"`
}

func (e Event) validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
	return nil
}

// Participants builds a ParticipantsUpdate event.
func Participants(tournamentID string) Event {
	return Event{Kind: ParticipantsUpdate, TournamentID: tournamentID}
}

// Draw builds a DrawUpdated event for a round.
func Draw(tournamentID, roundID string) Event {
	return Event{Kind: DrawUpdated, TournamentID: tournamentID, RoundID: roundID}
}

// TeamAvailability builds a TeamAvailabilityUpdate event for a round.
func TeamAvailability(tournamentID, roundID string) Event {
	return Event{Kind: TeamAvailabilityUpdate, TournamentID: tournamentID, RoundID: roundID}
}

// JudgeAvailability builds a JudgeAvailabilityUpdate event for a round.
func JudgeAvailability(tournamentID, roundID string) Event {
	return Event{Kind: JudgeAvailabilityUpdate, TournamentID: tournamentID, RoundID: roundID}
}

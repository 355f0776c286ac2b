package simulate

import (
	"fmt"
	"time"
)

// Config holds one simulated tournament run.
type Config struct {
	BaseURL string        // Base URL of the service
	Token   string        // Bearer token of an existing user
	Teams   int           // Teams to register; a multiple of the room size
	Judges  int           // Judges to register; at least one per room
	Rounds  int           // Preliminary rounds to run
	Workers int           // Concurrent ballot submitters
	Timeout time.Duration // HTTP request timeout
	Seed    int64         // Seed for names and scores
	Verbose bool          // Log every step
}

// Stats summarises a run.
type Stats struct {
	TournamentID     string
	RoundsRun        int
	Debates          int
	BallotsSubmitted int
	BallotsFailed    int
	DrawsDeferred    int
	TopTeam          string
	TopPoints        int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}

// Validate checks the run can form full rooms.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url must not be empty", ErrInvalidConfig)
	case c.Token == "":
		return fmt.Errorf("%w: a token is required", ErrInvalidConfig)
	case c.Teams < teamsPerRoom || c.Teams%teamsPerRoom != 0:
		return fmt.Errorf("%w: teams must be a positive multiple of %d", ErrInvalidConfig, teamsPerRoom)
	case c.Judges < c.Teams/teamsPerRoom:
		return fmt.Errorf("%w: need at least %d judges", ErrInvalidConfig, c.Teams/teamsPerRoom)
	case c.Rounds < 1:
		return fmt.Errorf("%w: rounds must be positive", ErrInvalidConfig)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	}
	return nil
}

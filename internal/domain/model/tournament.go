package model

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Tournament holds identity and format configuration.
type Tournament struct {
	bun.BaseModel `bun:"table:tournaments,alias:t"`

	ID           string    `bun:"id,pk" json:"id"`
	Name         string    `bun:"name,notnull" json:"name"`
	Abbreviation string    `bun:"abbreviation,notnull" json:"abbreviation"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"created_at"`

	Settings
}

// Settings is the format configuration of a tournament.
type Settings struct {
	TeamsPerSide                      int  `bun:"teams_per_side,notnull" json:"teams_per_side"`
	SubstantiveSpeakers               int  `bun:"substantive_speakers,notnull" json:"substantive_speakers"`
	ReplySpeakers                     bool `bun:"reply_speakers,notnull" json:"reply_speakers"`
	ReplyMustSpeak                    bool `bun:"reply_must_speak,notnull" json:"reply_must_speak"`
	MaxSubstantiveSpeechIndexForReply *int `bun:"max_substantive_speech_index_for_reply" json:"max_substantive_speech_index_for_reply,omitempty"`

	PoolBallotSetup          BallotSetup `bun:"pool_ballot_setup,notnull" json:"pool_ballot_setup"`
	ElimBallotSetup          BallotSetup `bun:"elim_ballot_setup,notnull" json:"elim_ballot_setup"`
	ElimBallotsRequireSpeaks bool        `bun:"elim_ballots_require_speaks,notnull" json:"elim_ballots_require_speaks"`

	InstitutionPenalty  int            `bun:"institution_penalty,notnull" json:"institution_penalty"`
	HistoryPenalty      int            `bun:"history_penalty,notnull" json:"history_penalty"`
	PullupMetrics       []PullupMetric `bun:"pullup_metrics,type:jsonb" json:"pullup_metrics"`
	RepeatPullupPenalty int            `bun:"repeat_pullup_penalty,notnull" json:"repeat_pullup_penalty"`

	TeamStandingsMetrics             []TeamMetric    `bun:"team_standings_metrics,type:jsonb" json:"team_standings_metrics"`
	SpeakerStandingsMetrics          []SpeakerMetric `bun:"speaker_standings_metrics,type:jsonb" json:"speaker_standings_metrics"`
	ExcludeFromSpeakerStandingsAfter int             `bun:"exclude_from_speaker_standings_after,notnull" json:"exclude_from_speaker_standings_after"`

	SubstantiveSpeechMinSpeak float64 `bun:"substantive_speech_min_speak,notnull" json:"substantive_speech_min_speak"`
	SubstantiveSpeechMaxSpeak float64 `bun:"substantive_speech_max_speak,notnull" json:"substantive_speech_max_speak"`
	SubstantiveSpeechStep     float64 `bun:"substantive_speech_step,notnull" json:"substantive_speech_step"`
	ReplySpeechMinSpeak       float64 `bun:"reply_speech_min_speak,notnull" json:"reply_speech_min_speak"`
	ReplySpeechMaxSpeak       float64 `bun:"reply_speech_max_speak,notnull" json:"reply_speech_max_speak"`
}

// DefaultSettings is British Parliamentary with consensus ballots.
func DefaultSettings() Settings {
	return Settings{
		TeamsPerSide:                     2,
		SubstantiveSpeakers:              2,
		PoolBallotSetup:                  BallotConsensus,
		ElimBallotSetup:                  BallotConsensus,
		InstitutionPenalty:               0,
		HistoryPenalty:                   0,
		PullupMetrics:                    []PullupMetric{PullupRandom},
		TeamStandingsMetrics:             []TeamMetric{MetricWins, MetricTotalSpeakerScore},
		SpeakerStandingsMetrics:          []SpeakerMetric{SpeakerAvg},
		ExcludeFromSpeakerStandingsAfter: -1,
		SubstantiveSpeechMinSpeak:        50,
		SubstantiveSpeechMaxSpeak:        100,
		SubstantiveSpeechStep:            1,
		ReplySpeechMinSpeak:              25,
		ReplySpeechMaxSpeak:              50,
	}
}

// TeamsPerDebate is the number of teams in one room.
func (s *Settings) TeamsPerDebate() int { return 2 * s.TeamsPerSide }

// SpeakersPerTeam counts substantive and reply speeches on a ballot.
func (s *Settings) SpeakersPerTeam() int {
	if s.ReplySpeakers {
		return s.SubstantiveSpeakers + 1
	}
	return s.SubstantiveSpeakers
}

// ReplyPosition is the speaker position index of the reply speech, or -1.
func (s *Settings) ReplyPosition() int {
	if s.ReplySpeakers {
		return s.SubstantiveSpeakers
	}
	return -1
}

// BallotSetupFor returns the aggregation mode for a round.
func (s *Settings) BallotSetupFor(r *Round) BallotSetup {
	if r.IsElim() {
		return s.ElimBallotSetup
	}
	return s.PoolBallotSetup
}

// RequiresSpeaks reports whether ballots for r carry speaker scores.
func (s *Settings) RequiresSpeaks(r *Round) bool {
	if r.IsElim() {
		return s.ElimBallotsRequireSpeaks
	}
	return true
}

// TotalPoints is the sum of team points in one debate of r.
func (s *Settings) TotalPoints(r *Round, advancing int) int {
	if r.IsElim() {
		return advancing
	}
	n := s.TeamsPerDebate()
	return n * (n - 1) / 2
}

// Validate checks the structural format options.
func (s *Settings) Validate() error {
	switch {
	case s.TeamsPerSide != 1 && s.TeamsPerSide != 2:
		return fmt.Errorf("%w: teams_per_side must be 1 or 2", ErrInvalidSettings)
	case s.SubstantiveSpeakers < 1:
		return fmt.Errorf("%w: substantive_speakers must be positive", ErrInvalidSettings)
	case !s.PoolBallotSetup.valid() || !s.ElimBallotSetup.valid():
		return fmt.Errorf("%w: ballot setup must be consensus or individual", ErrInvalidSettings)
	case s.TeamsPerSide != 1 && (s.PoolBallotSetup == BallotIndividual || s.ElimBallotSetup == BallotIndividual):
		return fmt.Errorf("%w: individual ballots need a two-team format", ErrInvalidSettings)
	case s.InstitutionPenalty < 0 || s.HistoryPenalty < 0 || s.RepeatPullupPenalty < 0:
		return fmt.Errorf("%w: penalties must not be negative", ErrInvalidSettings)
	case s.SubstantiveSpeechStep <= 0 || s.SubstantiveSpeechMinSpeak > s.SubstantiveSpeechMaxSpeak:
		return fmt.Errorf("%w: substantive speech grid is empty", ErrInvalidSettings)
	case s.ReplySpeakers && s.ReplySpeechMinSpeak > s.ReplySpeechMaxSpeak:
		return fmt.Errorf("%w: reply speech grid is empty", ErrInvalidSettings)
	case s.ExcludeFromSpeakerStandingsAfter < -1:
		return fmt.Errorf("%w: exclude_from_speaker_standings_after must be -1 or a round sequence", ErrInvalidSettings)
	}
	if s.MaxSubstantiveSpeechIndexForReply != nil {
		if i := *s.MaxSubstantiveSpeechIndexForReply; i < 0 || i >= s.SubstantiveSpeakers {
			return fmt.Errorf("%w: max_substantive_speech_index_for_reply out of range", ErrInvalidSettings)
		}
	}
	return nil
}

func (b BallotSetup) valid() bool {
	return b == BallotConsensus || b == BallotIndividual
}

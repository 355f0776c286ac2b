// Package model contains the tournament entities passed between layers.
//
// Every tournament-scoped entity carries a TournamentID column so the
// snapshot writer can capture a tournament with one query per table.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NewID returns a time-ordered UUIDv7 rendered as a string.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// RoundKind distinguishes preliminary rounds from elimination rounds.
type RoundKind string

const (
	RoundPrelim RoundKind = "P"
	RoundElim   RoundKind = "E"
)

// BallotSetup selects how judges' ballots are combined.
type BallotSetup string

const (
	BallotConsensus  BallotSetup = "consensus"
	BallotIndividual BallotSetup = "individual"
)

// JudgeRole is a judge's role on a panel.
type JudgeRole string

const (
	RoleChair    JudgeRole = "C"
	RolePanelist JudgeRole = "P"
	RoleTrainee  JudgeRole = "T"
)

// DebateStatus summarises a debate's ballot set.
type DebateStatus string

const (
	DebateIncomplete DebateStatus = "incomplete"
	DebateConflict   DebateStatus = "conflict"
	DebateConfirmed  DebateStatus = "confirmed"
)

// TicketKindDraw is the only ticket kind in use.
const TicketKindDraw = "draw"

// User is an account that can hold tournament memberships.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        string    `bun:"id,pk" json:"id"`
	Username  string    `bun:"username,notnull,unique" json:"username"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

// Member links a user to a tournament.
type Member struct {
	bun.BaseModel `bun:"table:tournament_members,alias:tm"`

	ID           string `bun:"id,pk" json:"id"`
	TournamentID string `bun:"tournament_id,notnull" json:"tournament_id"`
	UserID       string `bun:"user_id,notnull" json:"user_id"`
	IsSuperuser  bool   `bun:"is_superuser,notnull" json:"is_superuser"`
}

// Institution groups teams and judges for clash avoidance.
type Institution struct {
	bun.BaseModel `bun:"table:tournament_institutions,alias:ti"`

	ID           string `bun:"id,pk" json:"id"`
	TournamentID string `bun:"tournament_id,notnull" json:"tournament_id"`
	Name         string `bun:"name,notnull" json:"name"`
}

// Team is a competing team.
type Team struct {
	bun.BaseModel `bun:"table:tournament_teams,alias:tt"`

	ID            string  `bun:"id,pk" json:"id"`
	TournamentID  string  `bun:"tournament_id,notnull" json:"tournament_id"`
	Name          string  `bun:"name,notnull" json:"name"`
	InstitutionID *string `bun:"institution_id" json:"institution_id,omitempty"`
	Number        int     `bun:"number,notnull" json:"number"`
}

// Speaker is a member of a team.
type Speaker struct {
	bun.BaseModel `bun:"table:tournament_speakers,alias:ts"`

	ID           string `bun:"id,pk" json:"id"`
	TournamentID string `bun:"tournament_id,notnull" json:"tournament_id"`
	TeamID       string `bun:"team_id,notnull" json:"team_id"`
	Name         string `bun:"name,notnull" json:"name"`
	Email        string `bun:"email,notnull" json:"email"`
	PrivateURL   string `bun:"private_url,notnull" json:"private_url"`
}

// Judge adjudicates debates.
type Judge struct {
	bun.BaseModel `bun:"table:tournament_judges,alias:tj"`

	ID            string  `bun:"id,pk" json:"id"`
	TournamentID  string  `bun:"tournament_id,notnull" json:"tournament_id"`
	Name          string  `bun:"name,notnull" json:"name"`
	InstitutionID *string `bun:"institution_id" json:"institution_id,omitempty"`
	PrivateURL    string  `bun:"private_url,notnull" json:"private_url"`
	Number        int     `bun:"number,notnull" json:"number"`
}

// BreakCategory groups elimination rounds.
type BreakCategory struct {
	bun.BaseModel `bun:"table:tournament_break_categories,alias:tbc"`

	ID           string `bun:"id,pk" json:"id"`
	TournamentID string `bun:"tournament_id,notnull" json:"tournament_id"`
	Name         string `bun:"name,notnull" json:"name"`
	// Size is how many teams break into the category's first elimination round.
	Size int `bun:"size,notnull" json:"size"`
}

// Round is one round of the tournament.
type Round struct {
	bun.BaseModel `bun:"table:tournament_rounds,alias:tr"`

	ID                 string     `bun:"id,pk" json:"id"`
	TournamentID       string     `bun:"tournament_id,notnull" json:"tournament_id"`
	Seq                int        `bun:"seq,notnull" json:"seq"`
	Name               string     `bun:"name,notnull" json:"name"`
	Kind               RoundKind  `bun:"kind,notnull" json:"kind"`
	BreakCategoryID    *string    `bun:"break_category_id" json:"break_category_id,omitempty"`
	Completed          bool       `bun:"completed,notnull" json:"completed"`
	DrawStatus         DrawStatus `bun:"draw_status,notnull" json:"draw_status"`
	DrawReleasedAt     *time.Time `bun:"draw_released_at" json:"draw_released_at,omitempty"`
	ResultsPublishedAt *time.Time `bun:"results_published_at" json:"results_published_at,omitempty"`
}

// IsElim reports whether r is an elimination round.
func (r *Round) IsElim() bool { return r.Kind == RoundElim }

// Draw is one generated version of a round's pairing.
type Draw struct {
	bun.BaseModel `bun:"table:tournament_draws,alias:td"`

	ID           string     `bun:"id,pk" json:"id"`
	TournamentID string     `bun:"tournament_id,notnull" json:"tournament_id"`
	RoundID      string     `bun:"round_id,notnull" json:"round_id"`
	Status       DrawStatus `bun:"status,notnull" json:"status"`
	ReleasedAt   *time.Time `bun:"released_at" json:"released_at,omitempty"`
	Version      int        `bun:"version,notnull" json:"version"`
	CreatedAt    time.Time  `bun:"created_at,notnull" json:"created_at"`
}

// Debate is one room of a draw.
type Debate struct {
	bun.BaseModel `bun:"table:tournament_debates,alias:tdb"`

	ID           string       `bun:"id,pk" json:"id"`
	TournamentID string       `bun:"tournament_id,notnull" json:"tournament_id"`
	DrawID       string       `bun:"draw_id,notnull" json:"draw_id"`
	RoundID      string       `bun:"round_id,notnull" json:"round_id"`
	Number       int          `bun:"number,notnull" json:"number"`
	Room         *string      `bun:"room" json:"room,omitempty"`
	Status       DebateStatus `bun:"status,notnull" json:"status"`
}

// DebateTeam seats a team at (side, seq) in a debate.
type DebateTeam struct {
	bun.BaseModel `bun:"table:tournament_debate_teams,alias:tdt"`

	ID           string `bun:"id,pk" json:"id"`
	TournamentID string `bun:"tournament_id,notnull" json:"tournament_id"`
	DebateID     string `bun:"debate_id,notnull" json:"debate_id"`
	TeamID       string `bun:"team_id,notnull" json:"team_id"`
	Side         int    `bun:"side,notnull" json:"side"`
	Seq          int    `bun:"seq,notnull" json:"seq"`
	PulledUp     bool   `bun:"pulled_up,notnull" json:"pulled_up"`
}

// DebateJudge places a judge on a debate's panel.
type DebateJudge struct {
	bun.BaseModel `bun:"table:tournament_debate_judges,alias:tdj"`

	ID           string    `bun:"id,pk" json:"id"`
	TournamentID string    `bun:"tournament_id,notnull" json:"tournament_id"`
	DebateID     string    `bun:"debate_id,notnull" json:"debate_id"`
	JudgeID      string    `bun:"judge_id,notnull" json:"judge_id"`
	Role         JudgeRole `bun:"role,notnull" json:"role"`
}

// TeamAvailability marks a team as available for a round.
type TeamAvailability struct {
	bun.BaseModel `bun:"table:tournament_team_availability,alias:tta"`

	ID           string `bun:"id,pk" json:"id"`
	TournamentID string `bun:"tournament_id,notnull" json:"tournament_id"`
	RoundID      string `bun:"round_id,notnull" json:"round_id"`
	TeamID       string `bun:"team_id,notnull" json:"team_id"`
	Available    bool   `bun:"available,notnull" json:"available"`
}

// JudgeAvailability marks a judge as available for a round.
type JudgeAvailability struct {
	bun.BaseModel `bun:"table:tournament_judge_availability,alias:tja"`

	ID           string `bun:"id,pk" json:"id"`
	TournamentID string `bun:"tournament_id,notnull" json:"tournament_id"`
	RoundID      string `bun:"round_id,notnull" json:"round_id"`
	JudgeID      string `bun:"judge_id,notnull" json:"judge_id"`
	Available    bool   `bun:"available,notnull" json:"available"`
}

// Motion is a motion debated in a round.
type Motion struct {
	bun.BaseModel `bun:"table:tournament_motions,alias:tmo"`

	ID           string     `bun:"id,pk" json:"id"`
	TournamentID string     `bun:"tournament_id,notnull" json:"tournament_id"`
	RoundID      string     `bun:"round_id,notnull" json:"round_id"`
	Text         string     `bun:"text,notnull" json:"text"`
	Infoslide    *string    `bun:"infoslide" json:"infoslide,omitempty"`
	PublishedAt  *time.Time `bun:"published_at" json:"published_at,omitempty"`
}

// Ballot is one version of a judge's scoresheet.
type Ballot struct {
	bun.BaseModel `bun:"table:tournament_ballots,alias:tb"`

	ID           string    `bun:"id,pk" json:"id"`
	TournamentID string    `bun:"tournament_id,notnull" json:"tournament_id"`
	DebateID     string    `bun:"debate_id,notnull" json:"debate_id"`
	JudgeID      string    `bun:"judge_id,notnull" json:"judge_id"`
	SubmittedAt  time.Time `bun:"submitted_at,notnull" json:"submitted_at"`
	MotionID     string    `bun:"motion_id,notnull" json:"motion_id"`
	Version      int       `bun:"version,notnull" json:"version"`
	EditorID     *string   `bun:"editor_id" json:"editor_id,omitempty"`
}

// BallotTeamRank records the points one ballot awards a team.
type BallotTeamRank struct {
	bun.BaseModel `bun:"table:tournament_team_rank_entries,alias:ttr"`

	ID           string `bun:"id,pk" json:"id"`
	TournamentID string `bun:"tournament_id,notnull" json:"tournament_id"`
	BallotID     string `bun:"ballot_id,notnull" json:"ballot_id"`
	TeamID       string `bun:"team_id,notnull" json:"team_id"`
	Points       int    `bun:"points,notnull" json:"points"`
}

// BallotScore is one speech on a ballot.
type BallotScore struct {
	bun.BaseModel `bun:"table:tournament_speaker_score_entries,alias:tss"`

	ID              string  `bun:"id,pk" json:"id"`
	TournamentID    string  `bun:"tournament_id,notnull" json:"tournament_id"`
	BallotID        string  `bun:"ballot_id,notnull" json:"ballot_id"`
	TeamID          string  `bun:"team_id,notnull" json:"team_id"`
	SpeakerID       string  `bun:"speaker_id,notnull" json:"speaker_id"`
	SpeakerPosition int     `bun:"speaker_position,notnull" json:"speaker_position"`
	Score           float64 `bun:"score,notnull" json:"score"`
}

// DebateTeamResult is a team's canonical points in a debate.
type DebateTeamResult struct {
	bun.BaseModel `bun:"table:tournament_debate_team_results,alias:tdtr"`

	ID           string `bun:"id,pk" json:"id"`
	TournamentID string `bun:"tournament_id,notnull" json:"tournament_id"`
	DebateID     string `bun:"debate_id,notnull" json:"debate_id"`
	TeamID       string `bun:"team_id,notnull" json:"team_id"`
	Points       int    `bun:"points,notnull" json:"points"`
}

// DebateSpeakerResult is a speaker's canonical score in a debate.
type DebateSpeakerResult struct {
	bun.BaseModel `bun:"table:tournament_debate_speaker_results,alias:tdsr"`

	ID           string  `bun:"id,pk" json:"id"`
	TournamentID string  `bun:"tournament_id,notnull" json:"tournament_id"`
	DebateID     string  `bun:"debate_id,notnull" json:"debate_id"`
	SpeakerID    string  `bun:"speaker_id,notnull" json:"speaker_id"`
	TeamID       string  `bun:"team_id,notnull" json:"team_id"`
	Position     int     `bun:"position,notnull" json:"position"`
	Score        float64 `bun:"score,notnull" json:"score"`
}

// RoundTicket records a draw attempt in flight.
type RoundTicket struct {
	bun.BaseModel `bun:"table:tournament_round_tickets,alias:trt"`

	ID           string    `bun:"id,pk" json:"id"`
	TournamentID string    `bun:"tournament_id,notnull" json:"tournament_id"`
	RoundID      string    `bun:"round_id,notnull" json:"round_id"`
	Seq          int       `bun:"seq,notnull" json:"seq"`
	Kind         string    `bun:"kind,notnull" json:"kind"`
	AcquiredAt   time.Time `bun:"acquired_at,notnull" json:"acquired_at"`
	Released     bool      `bun:"released,notnull" json:"released"`
}

// Snapshot is an append-only capture of a tournament's rows.
type Snapshot struct {
	bun.BaseModel `bun:"table:tournament_snapshots,alias:tsn"`

	ID           string    `bun:"id,pk" json:"id"`
	TournamentID string    `bun:"tournament_id,notnull" json:"tournament_id"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"created_at"`
	Prev         *string   `bun:"prev" json:"prev,omitempty"`
	SchemaID     string    `bun:"schema_id,notnull" json:"schema_id"`
	Contents     string    `bun:"contents,notnull" json:"-"`
}

package migrations

import (
	"context"
	"fmt"

	"github.com/okian/tabroom/internal/domain/model"
	"github.com/uptrace/bun"
)

var tables = []any{
	(*model.User)(nil),
	(*model.Tournament)(nil),
	(*model.Member)(nil),
	(*model.Institution)(nil),
	(*model.Team)(nil),
	(*model.Speaker)(nil),
	(*model.Judge)(nil),
	(*model.BreakCategory)(nil),
	(*model.Round)(nil),
	(*model.Draw)(nil),
	(*model.Debate)(nil),
	(*model.DebateTeam)(nil),
	(*model.DebateJudge)(nil),
	(*model.TeamAvailability)(nil),
	(*model.JudgeAvailability)(nil),
	(*model.Motion)(nil),
	(*model.Ballot)(nil),
	(*model.BallotTeamRank)(nil),
	(*model.BallotScore)(nil),
	(*model.DebateTeamResult)(nil),
	(*model.DebateSpeakerResult)(nil),
	(*model.RoundTicket)(nil),
	(*model.Snapshot)(nil),
}

type index struct {
	model   any
	name    string
	columns []string
	unique  bool
}

var indexes = []index{
	{(*model.Member)(nil), "tournament_members_user_uq", []string{"tournament_id", "user_id"}, true},
	{(*model.Team)(nil), "tournament_teams_number_uq", []string{"tournament_id", "number"}, true},
	{(*model.Judge)(nil), "tournament_judges_number_uq", []string{"tournament_id", "number"}, true},
	{(*model.Speaker)(nil), "tournament_speakers_url_uq", []string{"tournament_id", "private_url"}, true},
	{(*model.Judge)(nil), "tournament_judges_url_uq", []string{"tournament_id", "private_url"}, true},
	{(*model.Round)(nil), "tournament_rounds_seq_idx", []string{"tournament_id", "seq"}, false},
	{(*model.Draw)(nil), "tournament_draws_version_uq", []string{"round_id", "version"}, true},
	{(*model.Debate)(nil), "tournament_debates_number_uq", []string{"round_id", "number"}, true},
	{(*model.DebateTeam)(nil), "tournament_debate_teams_seat_uq", []string{"debate_id", "side", "seq"}, true},
	{(*model.DebateJudge)(nil), "tournament_debate_judges_uq", []string{"debate_id", "judge_id"}, true},
	{(*model.TeamAvailability)(nil), "tournament_team_availability_uq", []string{"round_id", "team_id"}, true},
	{(*model.JudgeAvailability)(nil), "tournament_judge_availability_uq", []string{"round_id", "judge_id"}, true},
	{(*model.Ballot)(nil), "tournament_ballots_version_uq", []string{"debate_id", "judge_id", "version"}, true},
	{(*model.BallotTeamRank)(nil), "tournament_team_rank_entries_ballot_idx", []string{"ballot_id"}, false},
	{(*model.BallotScore)(nil), "tournament_speaker_score_entries_ballot_idx", []string{"ballot_id"}, false},
	{(*model.DebateTeamResult)(nil), "tournament_debate_team_results_uq", []string{"debate_id", "team_id"}, true},
	{(*model.DebateSpeakerResult)(nil), "tournament_debate_speaker_results_uq", []string{"debate_id", "team_id", "position"}, true},
	{(*model.RoundTicket)(nil), "tournament_round_tickets_seq_uq", []string{"round_id", "kind", "seq"}, true},
	{(*model.Snapshot)(nil), "tournament_snapshots_tournament_idx", []string{"tournament_id", "created_at"}, false},
}

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			for _, m := range tables {
				if _, err := tx.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
					return fmt.Errorf("create table %T: %w", m, err)
				}
			}
			for _, ix := range indexes {
				q := tx.NewCreateIndex().Model(ix.model).Index(ix.name).Column(ix.columns...).IfNotExists()
				if ix.unique {
					q = q.Unique()
				}
				if _, err := q.Exec(ctx); err != nil {
					return fmt.Errorf("create index %s: %w", ix.name, err)
				}
			}
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			for i := len(tables) - 1; i >= 0; i-- {
				if _, err := tx.NewDropTable().Model(tables[i]).IfExists().Exec(ctx); err != nil {
					return fmt.Errorf("drop table %T: %w", tables[i], err)
				}
			}
			return nil
		})
	})
}

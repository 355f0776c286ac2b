package repository_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/okian/tabroom/internal/adapters/repository"
	"github.com/okian/tabroom/internal/config"
	"github.com/okian/tabroom/internal/domain/ballots"
	"github.com/okian/tabroom/internal/domain/model"
	"github.com/okian/tabroom/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/uptrace/bun"
)

func newStore(t *testing.T) *repository.Store {
	t.Helper()
	ctx := context.Background()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	s, err := repository.Open(ctx, config.DriverSQLite, dsn, repository.WithLogger(logger.NewNop()))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if _, err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func seedTournament(ctx context.Context, db bun.IDB) *model.Tournament {
	user := &model.User{ID: model.NewID(), Username: "tab-" + uuid.NewString(), CreatedAt: time.Now().UTC()}
	So(repository.CreateUser(ctx, db, user), ShouldBeNil)
	t := &model.Tournament{ID: model.NewID(), Name: "Open", Abbreviation: "O", CreatedAt: time.Now().UTC(), Settings: model.DefaultSettings()}
	So(repository.CreateTournament(ctx, db, t, &model.Member{ID: model.NewID(), TournamentID: t.ID, UserID: user.ID, IsSuperuser: true}), ShouldBeNil)
	return t
}

func seedRound(ctx context.Context, db bun.IDB, t *model.Tournament, seq int) *model.Round {
	r := &model.Round{ID: model.NewID(), TournamentID: t.ID, Seq: seq, Name: "Round", Kind: model.RoundPrelim, DrawStatus: model.DrawNotStarted}
	So(repository.Insert(ctx, db, r), ShouldBeNil)
	return r
}

func TestMigrateAndTournament(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	Convey("Given a migrated store", t, func() {
		schema, err := repository.SchemaID(ctx, s.DB())
		So(err, ShouldBeNil)
		So(schema, ShouldStartWith, "20261001000000")

		Convey("When a tournament is created", func() {
			tour := seedTournament(ctx, s.DB())

			Convey("Then it reads back with its settings", func() {
				got, err := repository.Tournament(ctx, s.DB(), tour.ID)
				So(err, ShouldBeNil)
				So(got.Name, ShouldEqual, "Open")
				So(got.PullupMetrics, ShouldResemble, []model.PullupMetric{model.PullupRandom})
				So(got.TeamStandingsMetrics, ShouldResemble, tour.TeamStandingsMetrics)
			})

			Convey("Then a missing row is ErrNotFound", func() {
				_, err := repository.Tournament(ctx, s.DB(), "nope")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})

			Convey("Then team numbers count up", func() {
				n, err := repository.NextNumber(ctx, s.DB(), (*model.Team)(nil), tour.ID)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
				So(repository.Insert(ctx, s.DB(), &model.Team{ID: model.NewID(), TournamentID: tour.ID, Name: "A", Number: n}), ShouldBeNil)
				n, _ = repository.NextNumber(ctx, s.DB(), (*model.Team)(nil), tour.ID)
				So(n, ShouldEqual, 2)
			})
		})
	})
}

func TestTickets(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	Convey("Given a round", t, func() {
		tour := seedTournament(ctx, s.DB())
		r := seedRound(ctx, s.DB(), tour, 1)
		ticket := func(seq int) *model.RoundTicket {
			return &model.RoundTicket{ID: model.NewID(), TournamentID: tour.ID, RoundID: r.ID, Seq: seq, Kind: model.TicketKindDraw, AcquiredAt: time.Now().UTC()}
		}

		Convey("When two tickets claim the same seq", func() {
			So(repository.InsertTicket(ctx, s.DB(), ticket(0)), ShouldBeNil)
			err := repository.InsertTicket(ctx, s.DB(), ticket(0))

			Convey("Then the second is a duplicate", func() {
				So(errors.Is(err, repository.ErrDuplicate), ShouldBeTrue)
			})
		})

		Convey("When a ticket is released and collected", func() {
			first := ticket(0)
			So(repository.InsertTicket(ctx, s.DB(), first), ShouldBeNil)
			So(repository.InsertTicket(ctx, s.DB(), ticket(1)), ShouldBeNil)
			So(repository.ReleaseTicket(ctx, s.DB(), first.ID), ShouldBeNil)
			So(repository.CollectReleasedTickets(ctx, s.DB(), r.ID, model.TicketKindDraw), ShouldBeNil)

			Convey("Then only the unreleased one is left", func() {
				rows, err := repository.Tickets(ctx, s.DB(), r.ID, model.TicketKindDraw)
				So(err, ShouldBeNil)
				So(len(rows), ShouldEqual, 1)
				So(rows[0].Seq, ShouldEqual, 1)
				So(rows[0].Released, ShouldBeFalse)
			})
		})
	})
}

func TestSnapshots(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	Convey("Given a tournament with no snapshots", t, func() {
		tour := seedTournament(ctx, s.DB())
		chain, err := repository.SnapshotChain(ctx, s.DB(), tour.ID, 0)
		So(err, ShouldBeNil)
		So(chain, ShouldBeEmpty)

		Convey("When two mutations are snapshotted", func() {
			var first, second *model.Snapshot
			err := s.RunInTx(ctx, "test", func(ctx context.Context, tx bun.Tx) error {
				So(repository.Insert(ctx, tx, &model.Team{ID: model.NewID(), TournamentID: tour.ID, Name: "A", Number: 1}), ShouldBeNil)
				var err error
				first, err = s.TakeSnapshot(ctx, tx, tour.ID)
				return err
			})
			So(err, ShouldBeNil)
			err = s.RunInTx(ctx, "test", func(ctx context.Context, tx bun.Tx) error {
				So(repository.Insert(ctx, tx, &model.Team{ID: model.NewID(), TournamentID: tour.ID, Name: "B", Number: 2}), ShouldBeNil)
				var err error
				second, err = s.TakeSnapshot(ctx, tx, tour.ID)
				return err
			})
			So(err, ShouldBeNil)

			Convey("Then they form a chain ending at the first", func() {
				So(first.Prev, ShouldBeNil)
				So(second.Prev, ShouldNotBeNil)
				So(*second.Prev, ShouldEqual, first.ID)
				chain, err := repository.SnapshotChain(ctx, s.DB(), tour.ID, 0)
				So(err, ShouldBeNil)
				So(len(chain), ShouldEqual, 2)
				So(chain[0].ID, ShouldEqual, second.ID)
				So(chain[1].ID, ShouldEqual, first.ID)
			})

			Convey("Then the contents hold every team and the tournament", func() {
				var contents map[string][]map[string]any
				So(json.Unmarshal([]byte(second.Contents), &contents), ShouldBeNil)
				So(len(contents["tournament_teams"]), ShouldEqual, 2)
				So(len(contents["tournaments"]), ShouldEqual, 1)
				So(contents["tournament_ballots"], ShouldBeEmpty)
				So(second.SchemaID, ShouldStartWith, "20261001000000")
			})
		})

		Convey("When a draw ticket is held while a mutation is snapshotted", func() {
			r := seedRound(ctx, s.DB(), tour, 1)
			held := &model.RoundTicket{ID: model.NewID(), TournamentID: tour.ID, RoundID: r.ID, Seq: 0, Kind: model.TicketKindDraw, AcquiredAt: time.Now().UTC()}
			So(repository.InsertTicket(ctx, s.DB(), held), ShouldBeNil)
			var snap *model.Snapshot
			err := s.RunInTx(ctx, "test", func(ctx context.Context, tx bun.Tx) error {
				var err error
				snap, err = s.TakeSnapshot(ctx, tx, tour.ID)
				return err
			})
			So(err, ShouldBeNil)

			Convey("Then the ticket bookkeeping is left out of the contents", func() {
				var contents map[string][]map[string]any
				So(json.Unmarshal([]byte(snap.Contents), &contents), ShouldBeNil)
				So(contents, ShouldNotContainKey, "tournament_round_tickets")
				So(contents["tournament_rounds"], ShouldHaveLength, 1)
			})
		})
	})
}

func TestDrawsAndBallots(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	Convey("Given a saved draw with one debate", t, func() {
		tour := seedTournament(ctx, s.DB())
		r := seedRound(ctx, s.DB(), tour, 1)
		v, err := repository.NextDrawVersion(ctx, s.DB(), r.ID)
		So(err, ShouldBeNil)
		So(v, ShouldEqual, 0)

		d := &model.Draw{ID: model.NewID(), TournamentID: tour.ID, RoundID: r.ID, Status: model.DrawDraft, Version: v, CreatedAt: time.Now().UTC()}
		debate := model.Debate{ID: model.NewID(), TournamentID: tour.ID, DrawID: d.ID, RoundID: r.ID, Number: 1, Status: model.DebateIncomplete}
		seats := []model.DebateTeam{
			{ID: model.NewID(), TournamentID: tour.ID, DebateID: debate.ID, TeamID: "a", Side: 0},
			{ID: model.NewID(), TournamentID: tour.ID, DebateID: debate.ID, TeamID: "b", Side: 1},
		}
		So(repository.SaveDraw(ctx, s.DB(), d, []model.Debate{debate}, seats), ShouldBeNil)
		So(repository.AssignJudge(ctx, s.DB(), &model.DebateJudge{ID: model.NewID(), TournamentID: tour.ID, DebateID: debate.ID, JudgeID: "j", Role: model.RolePanelist}), ShouldBeNil)
		So(repository.AssignJudge(ctx, s.DB(), &model.DebateJudge{ID: model.NewID(), TournamentID: tour.ID, DebateID: debate.ID, JudgeID: "j", Role: model.RoleChair}), ShouldBeNil)

		ballot := func(version int, pts int) *ballots.Sheet {
			b := model.Ballot{ID: model.NewID(), TournamentID: tour.ID, DebateID: debate.ID, JudgeID: "j", MotionID: "m", Version: version, SubmittedAt: time.Now().UTC()}
			return &ballots.Sheet{
				Ballot: b,
				Ranks: []model.BallotTeamRank{
					{ID: model.NewID(), TournamentID: tour.ID, BallotID: b.ID, TeamID: "a", Points: pts},
					{ID: model.NewID(), TournamentID: tour.ID, BallotID: b.ID, TeamID: "b", Points: 1 - pts},
				},
			}
		}

		Convey("Then it loads back as the round's draw", func() {
			rd, err := repository.LoadRoundDraw(ctx, s.DB(), r.ID)
			So(err, ShouldBeNil)
			So(rd.Draw.ID, ShouldEqual, d.ID)
			So(len(rd.Debates), ShouldEqual, 1)
			So(len(rd.Teams), ShouldEqual, 2)
			So(len(rd.Judges), ShouldEqual, 1)
			So(rd.Judges[0].Role, ShouldEqual, model.RoleChair)
			v, _ := repository.NextDrawVersion(ctx, s.DB(), r.ID)
			So(v, ShouldEqual, 1)
		})

		Convey("When a judge resubmits", func() {
			So(repository.SaveSheet(ctx, s.DB(), ballot(0, 1)), ShouldBeNil)
			So(repository.SaveSheet(ctx, s.DB(), ballot(1, 0)), ShouldBeNil)

			Convey("Then the canonical sheet is the newest version", func() {
				sheets, err := repository.CanonicalSheets(ctx, s.DB(), debate.ID)
				So(err, ShouldBeNil)
				So(len(sheets), ShouldEqual, 1)
				So(sheets[0].Ballot.Version, ShouldEqual, 1)
				So(len(sheets[0].Ranks), ShouldEqual, 2)
				latest, err := repository.LatestBallot(ctx, s.DB(), debate.ID, "j")
				So(err, ShouldBeNil)
				So(latest.Version, ShouldEqual, 1)
			})

			Convey("Then clearing the round removes debates and ballots", func() {
				So(repository.ReplaceResults(ctx, s.DB(), debate.ID, []model.DebateTeamResult{
					{ID: model.NewID(), TournamentID: tour.ID, DebateID: debate.ID, TeamID: "a", Points: 1},
				}, nil), ShouldBeNil)
				So(repository.ClearRoundDebates(ctx, s.DB(), r.ID), ShouldBeNil)
				n, err := repository.CountDebates(ctx, s.DB(), r.ID)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
				sheets, err := repository.CanonicalSheets(ctx, s.DB(), debate.ID)
				So(err, ShouldBeNil)
				So(sheets, ShouldBeEmpty)
				res, err := repository.TeamResults(ctx, s.DB(), debate.ID)
				So(err, ShouldBeNil)
				So(res, ShouldBeEmpty)
			})
		})
	})
}

func TestAvailability(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	Convey("Given two rounds sharing a sequence number", t, func() {
		tour := seedTournament(ctx, s.DB())
		r1 := seedRound(ctx, s.DB(), tour, 1)
		r2 := seedRound(ctx, s.DB(), tour, 1)
		So(repository.SetTeamAvailability(ctx, s.DB(), &model.TeamAvailability{ID: model.NewID(), TournamentID: tour.ID, RoundID: r1.ID, TeamID: "a", Available: true}), ShouldBeNil)

		Convey("Then the team is seen in the sibling round", func() {
			busy, err := repository.TeamAvailableInSiblingRound(ctx, s.DB(), r2, "a")
			So(err, ShouldBeNil)
			So(busy, ShouldBeTrue)
			busy, err = repository.TeamAvailableInSiblingRound(ctx, s.DB(), r1, "a")
			So(err, ShouldBeNil)
			So(busy, ShouldBeFalse)
		})

		Convey("Then marking it unavailable replaces the row", func() {
			So(repository.SetTeamAvailability(ctx, s.DB(), &model.TeamAvailability{ID: model.NewID(), TournamentID: tour.ID, RoundID: r1.ID, TeamID: "a"}), ShouldBeNil)
			ids, err := repository.AvailableTeams(ctx, s.DB(), r1.ID)
			So(err, ShouldBeNil)
			So(ids, ShouldBeEmpty)
		})
	})
}

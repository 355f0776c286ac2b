package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/okian/tabroom/internal/adapters/auth"
	"github.com/okian/tabroom/internal/adapters/broadcast"
	"github.com/okian/tabroom/internal/adapters/repository"
	service "github.com/okian/tabroom/internal/app"
	"github.com/okian/tabroom/internal/config"
	"github.com/okian/tabroom/internal/domain/model"
	"github.com/okian/tabroom/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// newService starts a service over a fresh in-memory database.
func newService(t *testing.T, opts ...service.Option) *service.Service {
	t.Helper()
	ctx := context.Background()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	store, err := repository.Open(ctx, config.DriverSQLite, dsn, repository.WithLogger(logger.NewNop()))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	tokens, err := auth.New("test-secret", "tabroom-test", time.Hour)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	bus := broadcast.New(broadcast.WithLogger(logger.NewNop()))
	t.Cleanup(func() { _ = bus.Close() })

	base := []service.Option{
		service.WithTokens(tokens),
		service.WithBroadcaster(bus),
		service.WithLogger(logger.NewNop()),
		service.WithWorkerCount(2),
		service.WithDrawSeed(7),
	}
	svc := service.New(store, append(base, opts...)...)
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = svc.Stop(context.Background()) })
	return svc
}

func signIn(ctx context.Context, svc *service.Service, name string) *model.User {
	_, user, err := svc.IssueToken(ctx, name)
	So(err, ShouldBeNil)
	return user
}

// registered is a team with its speakers in seat order.
type registered struct {
	team     *model.Team
	speakers []model.Speaker
}

func addTeams(ctx context.Context, svc *service.Service, admin *model.User, tid string, n, speakers int) []registered {
	out := make([]registered, 0, n)
	for i := 0; i < n; i++ {
		in := service.TeamInput{Name: fmt.Sprintf("Team %d", i+1)}
		for j := 0; j < speakers; j++ {
			in.Speakers = append(in.Speakers, service.SpeakerInput{Name: gofakeit.Name(), Email: gofakeit.Email()})
		}
		team, sps, err := svc.AddTeam(ctx, admin, tid, in)
		So(err, ShouldBeNil)
		out = append(out, registered{team: team, speakers: sps})
	}
	return out
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := newService(t)
		So(svc.Ready(), ShouldBeTrue)
		So(svc.Broadcaster(), ShouldNotBeNil)

		Convey("When it is stopped", func() {
			So(svc.Stop(context.Background()), ShouldBeNil)

			Convey("Then it is no longer ready and a second stop is harmless", func() {
				So(svc.Ready(), ShouldBeFalse)
				So(svc.Stop(context.Background()), ShouldBeNil)
			})
		})
	})
}

func TestSessions(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service issuing session tokens", t, func() {
		svc := newService(t)

		Convey("When a token is issued twice for one name", func() {
			tok1, u1, err := svc.IssueToken(ctx, "convenor")
			So(err, ShouldBeNil)
			_, u2, err := svc.IssueToken(ctx, " convenor ")
			So(err, ShouldBeNil)

			Convey("Then both belong to the same user", func() {
				So(u2.ID, ShouldEqual, u1.ID)
				got, err := svc.Authenticate(ctx, tok1)
				So(err, ShouldBeNil)
				So(got.Username, ShouldEqual, "convenor")
			})
		})

		Convey("Then a garbage token is unauthorized", func() {
			_, err := svc.Authenticate(ctx, "not-a-token")
			So(errors.Is(err, service.ErrUnauthorized), ShouldBeTrue)
		})

		Convey("Then an empty username is a bad request", func() {
			_, _, err := svc.IssueToken(ctx, "  ")
			So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
		})
	})
}

func TestTournamentAccess(t *testing.T) {
	ctx := context.Background()

	Convey("Given a tournament created by an administrator", t, func() {
		svc := newService(t)
		admin := signIn(ctx, svc, "admin")
		tour, err := svc.CreateTournament(ctx, admin, service.TournamentInput{Name: "Worlds"})
		So(err, ShouldBeNil)
		So(tour.Abbreviation, ShouldEqual, "Worlds")
		So(tour.TeamsPerSide, ShouldEqual, 2)

		Convey("Then anyone may read it", func() {
			got, err := svc.Tournament(ctx, nil, tour.ID)
			So(err, ShouldBeNil)
			So(got.Name, ShouldEqual, "Worlds")
		})

		Convey("Then an anonymous mutation is unauthorized", func() {
			_, err := svc.AddInstitution(ctx, nil, tour.ID, "Oxford")
			So(errors.Is(err, service.ErrUnauthorized), ShouldBeTrue)
		})

		Convey("Then another user may not mutate or see members-only views", func() {
			stranger := signIn(ctx, svc, "stranger")
			_, err := svc.AddInstitution(ctx, stranger, tour.ID, "Oxford")
			So(errors.Is(err, service.ErrForbidden), ShouldBeTrue)
			_, err = svc.Participants(ctx, stranger, tour.ID)
			So(errors.Is(err, service.ErrForbidden), ShouldBeTrue)
		})

		Convey("Then a missing tournament is not found", func() {
			_, err := svc.Tournament(ctx, admin, model.NewID())
			So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
		})

		Convey("Then creating a tournament needs a signed-in user", func() {
			_, err := svc.CreateTournament(ctx, nil, service.TournamentInput{Name: "Euros"})
			So(errors.Is(err, service.ErrUnauthorized), ShouldBeTrue)
		})

		Convey("Then invalid settings are rejected", func() {
			s := model.DefaultSettings()
			s.TeamStandingsMetrics = []model.TeamMetric{model.MetricDrawStrengthByWins}
			_, err := svc.CreateTournament(ctx, admin, service.TournamentInput{Name: "Bad", Settings: &s})
			So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
		})
	})
}

func TestParticipantsAndSnapshots(t *testing.T) {
	ctx := context.Background()

	Convey("Given a fresh tournament", t, func() {
		svc := newService(t)
		admin := signIn(ctx, svc, "admin")
		tour, err := svc.CreateTournament(ctx, admin, service.TournamentInput{Name: "Open"})
		So(err, ShouldBeNil)

		chain, err := svc.Snapshots(ctx, admin, tour.ID, 0)
		So(err, ShouldBeNil)
		So(chain, ShouldBeEmpty)

		Convey("When one team is added", func() {
			teams := addTeams(ctx, svc, admin, tour.ID, 1, 2)

			Convey("Then the first snapshot has no predecessor", func() {
				chain, err := svc.Snapshots(ctx, admin, tour.ID, 0)
				So(err, ShouldBeNil)
				So(chain, ShouldHaveLength, 1)
				So(chain[0].Prev, ShouldBeNil)
				So(chain[0].SchemaID, ShouldNotBeEmpty)
			})

			Convey("And a second team is added", func() {
				addTeams(ctx, svc, admin, tour.ID, 1, 2)
				chain, err := svc.Snapshots(ctx, admin, tour.ID, 0)
				So(err, ShouldBeNil)

				Convey("Then the chain links back to the first snapshot and ends there", func() {
					So(chain, ShouldHaveLength, 2)
					So(*chain[0].Prev, ShouldEqual, chain[1].ID)
					So(chain[1].Prev, ShouldBeNil)
				})

				Convey("Then the newest snapshot captures both teams and the tournament row", func() {
					snap, err := svc.Snapshot(ctx, admin, tour.ID, chain[0].ID)
					So(err, ShouldBeNil)
					var contents map[string][]map[string]any
					So(json.Unmarshal(snap.Contents, &contents), ShouldBeNil)
					So(contents["tournament_teams"], ShouldHaveLength, 2)
					So(contents["tournament_speakers"], ShouldHaveLength, 4)
					So(contents["tournaments"], ShouldHaveLength, 1)
				})

				Convey("Then a limit cuts the walk short", func() {
					short, err := svc.Snapshots(ctx, admin, tour.ID, 1)
					So(err, ShouldBeNil)
					So(short, ShouldHaveLength, 1)
				})
			})

			Convey("Then speakers get distinct private URLs", func() {
				sp := teams[0].speakers
				So(sp, ShouldHaveLength, 2)
				So(sp[0].PrivateURL, ShouldNotEqual, sp[1].PrivateURL)
				So(sp[0].PrivateURL, ShouldHaveLength, 32)
			})
		})

		Convey("When a team names an unknown institution", func() {
			bogus := model.NewID()
			_, _, err := svc.AddTeam(ctx, admin, tour.ID, service.TeamInput{Name: "X", InstitutionID: &bogus})

			Convey("Then it is rejected without a snapshot", func() {
				So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
				chain, err := svc.Snapshots(ctx, admin, tour.ID, 0)
				So(err, ShouldBeNil)
				So(chain, ShouldBeEmpty)
			})
		})

		Convey("When judges and institutions are registered", func() {
			inst, err := svc.AddInstitution(ctx, admin, tour.ID, "Sydney")
			So(err, ShouldBeNil)
			j1, err := svc.AddJudge(ctx, admin, tour.ID, service.JudgeInput{Name: gofakeit.Name(), InstitutionID: &inst.ID})
			So(err, ShouldBeNil)
			j2, err := svc.AddJudge(ctx, admin, tour.ID, service.JudgeInput{Name: gofakeit.Name()})
			So(err, ShouldBeNil)

			Convey("Then they are numbered and listed", func() {
				So(j1.Number, ShouldEqual, 1)
				So(j2.Number, ShouldEqual, 2)
				p, err := svc.Participants(ctx, admin, tour.ID)
				So(err, ShouldBeNil)
				So(p.Judges, ShouldHaveLength, 2)
				So(p.Institutions, ShouldHaveLength, 1)
			})
		})
	})
}

func TestRounds(t *testing.T) {
	ctx := context.Background()

	Convey("Given a tournament with a break category", t, func() {
		svc := newService(t)
		admin := signIn(ctx, svc, "admin")
		tour, err := svc.CreateTournament(ctx, admin, service.TournamentInput{Name: "Open"})
		So(err, ShouldBeNil)
		open, err := svc.AddBreakCategory(ctx, admin, tour.ID, "Open", 4)
		So(err, ShouldBeNil)

		r1, err := svc.CreateRound(ctx, admin, tour.ID, service.RoundInput{})
		So(err, ShouldBeNil)
		So(r1.Seq, ShouldEqual, 1)
		So(r1.Name, ShouldEqual, "Round 1")
		So(r1.DrawStatus, ShouldEqual, model.DrawNotStarted)

		Convey("When an elimination round follows", func() {
			final, err := svc.CreateRound(ctx, admin, tour.ID, service.RoundInput{Name: "Final", Kind: model.RoundElim, BreakCategoryID: &open.ID})
			So(err, ShouldBeNil)
			So(final.Seq, ShouldEqual, 2)

			Convey("Then a preliminary round may not come after it", func() {
				seq := 3
				_, err := svc.CreateRound(ctx, admin, tour.ID, service.RoundInput{Seq: &seq})
				So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
			})

			Convey("Then rounds list in sequence", func() {
				rounds, err := svc.Rounds(ctx, nil, tour.ID)
				So(err, ShouldBeNil)
				So(rounds, ShouldHaveLength, 2)
				So(rounds[1].Kind, ShouldEqual, model.RoundElim)
			})
		})

		Convey("Then an elimination round needs a break category", func() {
			_, err := svc.CreateRound(ctx, admin, tour.ID, service.RoundInput{Kind: model.RoundElim})
			So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
			bogus := model.NewID()
			_, err = svc.CreateRound(ctx, admin, tour.ID, service.RoundInput{Kind: model.RoundElim, BreakCategoryID: &bogus})
			So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
		})

		Convey("Then an elimination round may not sit among preliminary rounds", func() {
			seq := 1
			_, err := svc.CreateRound(ctx, admin, tour.ID, service.RoundInput{Kind: model.RoundElim, BreakCategoryID: &open.ID, Seq: &seq})
			So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
		})

		Convey("When a sibling round shares the sequence", func() {
			seq := 1
			sibling, err := svc.CreateRound(ctx, admin, tour.ID, service.RoundInput{Name: "Round 1B", Seq: &seq})
			So(err, ShouldBeNil)
			teams := addTeams(ctx, svc, admin, tour.ID, 1, 2)
			id := teams[0].team.ID
			So(svc.SetTeamAvailability(ctx, admin, tour.ID, r1.ID, id, true), ShouldBeNil)

			Convey("Then the team cannot also be available in the sibling", func() {
				err := svc.SetTeamAvailability(ctx, admin, tour.ID, sibling.ID, id, true)
				So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
			})

			Convey("Then it can move once withdrawn from the first", func() {
				So(svc.SetTeamAvailability(ctx, admin, tour.ID, r1.ID, id, false), ShouldBeNil)
				So(svc.SetTeamAvailability(ctx, admin, tour.ID, sibling.ID, id, true), ShouldBeNil)
				av, err := svc.RoundAvailability(ctx, admin, tour.ID, sibling.ID)
				So(err, ShouldBeNil)
				So(av.Teams, ShouldResemble, []string{id})
			})
		})

		Convey("Then motions need text", func() {
			_, err := svc.AddMotion(ctx, admin, tour.ID, r1.ID, service.MotionInput{Text: " "})
			So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
			m, err := svc.AddMotion(ctx, admin, tour.ID, r1.ID, service.MotionInput{Text: "THW ban zoos"})
			So(err, ShouldBeNil)
			So(m.RoundID, ShouldEqual, r1.ID)
		})

		Convey("Then availability changes are broadcast", func() {
			subCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			events, err := svc.Broadcaster().Subscribe(subCtx, tour.ID)
			So(err, ShouldBeNil)
			judge, err := svc.AddJudge(ctx, admin, tour.ID, service.JudgeInput{Name: gofakeit.Name()})
			So(err, ShouldBeNil)
			So(svc.SetJudgeAvailability(ctx, admin, tour.ID, r1.ID, judge.ID, true), ShouldBeNil)

			var kinds []broadcast.Kind
			timeout := time.After(2 * time.Second)
			for len(kinds) < 2 {
				select {
				case ev := <-events:
					kinds = append(kinds, ev.Kind)
				case <-timeout:
					t.Fatal("timed out waiting for broadcasts")
				}
			}
			So(kinds, ShouldHaveLength, 2)
			So(kinds, ShouldContain, broadcast.ParticipantsUpdate)
			So(kinds, ShouldContain, broadcast.JudgeAvailabilityUpdate)
		})
	})
}

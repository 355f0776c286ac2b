package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/okian/tabroom/internal/adapters/auth"
	"github.com/okian/tabroom/internal/adapters/broadcast"
	"github.com/okian/tabroom/internal/adapters/http/api"
	"github.com/okian/tabroom/internal/adapters/repository"
	service "github.com/okian/tabroom/internal/app"
	"github.com/okian/tabroom/internal/config"
	"github.com/okian/tabroom/internal/domain/ballots"
	"github.com/okian/tabroom/internal/domain/model"
	"github.com/okian/tabroom/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type fixture struct {
	svc   *service.Service
	bus   *broadcast.Broadcaster
	srv   *httptest.Server
	token string
}

func newFixture(t *testing.T, streaming bool, opts ...api.Option) *fixture {
	t.Helper()
	ctx := context.Background()
	store, err := repository.Open(ctx, config.DriverSQLite, "file:"+uuid.NewString()+"?mode=memory&cache=shared",
		repository.WithLogger(logger.NewNop()))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	tokens, err := auth.New("http-secret", "tabroom-test", time.Hour)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	bus := broadcast.New(broadcast.WithLogger(logger.NewNop()))
	t.Cleanup(func() { _ = bus.Close() })
	svc := service.New(store,
		service.WithTokens(tokens),
		service.WithBroadcaster(bus),
		service.WithLogger(logger.NewNop()),
		service.WithWorkerCount(1),
		service.WithDrawSeed(11),
	)
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = svc.Stop(context.Background()) })

	token, _, err := svc.IssueToken(ctx, "admin")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	opts = append([]api.Option{api.WithLogger(logger.NewNop())}, opts...)
	if streaming {
		opts = append(opts, api.WithEvents(bus))
	}
	srv := httptest.NewServer(api.NewServer(svc, opts...).Router())
	t.Cleanup(srv.Close)
	return &fixture{svc: svc, bus: bus, srv: srv, token: token}
}

type apiError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details"`
}

// call sends body as JSON with the admin token when auth is set and decodes
// a 2xx answer into out. Error bodies are returned instead.
func (f *fixture) call(method, path string, auth bool, body, out any) (int, apiError) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		So(err, ShouldBeNil)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	So(err, ShouldBeNil)
	if auth {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	resp, err := http.DefaultClient.Do(req)
	So(err, ShouldBeNil)
	defer resp.Body.Close()

	var e apiError
	switch {
	case resp.StatusCode >= 400:
		So(json.NewDecoder(resp.Body).Decode(&e), ShouldBeNil)
	case out != nil:
		So(json.NewDecoder(resp.Body).Decode(out), ShouldBeNil)
	}
	return resp.StatusCode, e
}

type teamBody struct {
	Team     model.Team      `json:"team"`
	Speakers []model.Speaker `json:"speakers"`
}

func TestHealthAndStats(t *testing.T) {
	Convey("Given a running API", t, func() {
		f := newFixture(t, false)

		Convey("Then health reports ok", func() {
			var body map[string]string
			status, _ := f.call(http.MethodGet, "/healthz", false, nil, &body)
			So(status, ShouldEqual, http.StatusOK)
			So(body["status"], ShouldEqual, "ok")
		})

		Convey("Then stats report the draw pool", func() {
			var body map[string]any
			status, _ := f.call(http.MethodGet, "/stats", false, nil, &body)
			So(status, ShouldEqual, http.StatusOK)
			So(body["ready"], ShouldEqual, true)
			So(body["draw_workers"], ShouldEqual, 1.0)
		})

		Convey("Then metrics are exposed in text format", func() {
			resp, err := http.Get(f.srv.URL + "/metrics")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			b, err := io.ReadAll(resp.Body)
			So(err, ShouldBeNil)
			So(string(b), ShouldContainSubstring, "tabroom_")
		})

		Convey("Then the API description is served", func() {
			resp, err := http.Get(f.srv.URL + "/openapi.yaml")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
		})

		Convey("When the service stops", func() {
			So(f.svc.Stop(context.Background()), ShouldBeNil)

			Convey("Then health answers unavailable", func() {
				status, _ := f.call(http.MethodGet, "/healthz", false, nil, nil)
				So(status, ShouldEqual, http.StatusServiceUnavailable)
			})
		})
	})
}

func TestAuthentication(t *testing.T) {
	Convey("Given a running API", t, func() {
		f := newFixture(t, false)

		Convey("Then creating a tournament anonymously is unauthorized", func() {
			status, e := f.call(http.MethodPost, "/tournaments", false, service.TournamentInput{Name: "Open"}, nil)
			So(status, ShouldEqual, http.StatusUnauthorized)
			So(e.Code, ShouldEqual, "unauthorized")
		})

		Convey("Then a forged token is rejected", func() {
			req, err := http.NewRequest(http.MethodGet, f.srv.URL+"/tournaments/x", nil)
			So(err, ShouldBeNil)
			req.Header.Set("Authorization", "Bearer not-a-token")
			resp, err := http.DefaultClient.Do(req)
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("Then a non-bearer header is rejected", func() {
			req, err := http.NewRequest(http.MethodGet, f.srv.URL+"/tournaments/x", nil)
			So(err, ShouldBeNil)
			req.Header.Set("Authorization", "Basic YWRtaW46YWRtaW4=")
			resp, err := http.DefaultClient.Do(req)
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("Then an unknown tournament is not found", func() {
			status, e := f.call(http.MethodGet, "/tournaments/"+model.NewID(), false, nil, nil)
			So(status, ShouldEqual, http.StatusNotFound)
			So(e.Code, ShouldEqual, "not_found")
		})

		Convey("Then a malformed body is a bad request", func() {
			req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/tournaments", strings.NewReader("{"))
			So(err, ShouldBeNil)
			req.Header.Set("Authorization", "Bearer "+f.token)
			resp, err := http.DefaultClient.Do(req)
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestRoundOverHTTP(t *testing.T) {
	Convey("Given a four-team BP tournament created over HTTP", t, func() {
		f := newFixture(t, false)

		var tour model.Tournament
		status, _ := f.call(http.MethodPost, "/tournaments", true, service.TournamentInput{Name: "HTTP Open"}, &tour)
		So(status, ShouldEqual, http.StatusCreated)
		base := "/tournaments/" + tour.ID

		speakers := map[string][]model.Speaker{}
		var teams []model.Team
		for i := 0; i < 4; i++ {
			var tb teamBody
			in := service.TeamInput{
				Name:     fmt.Sprintf("Team %d", i+1),
				Speakers: []service.SpeakerInput{{Name: fmt.Sprintf("First %d", i)}, {Name: fmt.Sprintf("Second %d", i)}},
			}
			status, _ := f.call(http.MethodPost, base+"/teams", true, in, &tb)
			So(status, ShouldEqual, http.StatusCreated)
			So(tb.Speakers, ShouldHaveLength, 2)
			teams = append(teams, tb.Team)
			speakers[tb.Team.ID] = tb.Speakers
		}
		var judge model.Judge
		status, _ = f.call(http.MethodPost, base+"/judges", true, service.JudgeInput{Name: "Ada"}, &judge)
		So(status, ShouldEqual, http.StatusCreated)

		var round model.Round
		status, _ = f.call(http.MethodPost, base+"/rounds", true, service.RoundInput{}, &round)
		So(status, ShouldEqual, http.StatusCreated)
		rbase := base + "/rounds/" + round.ID
		for _, team := range teams {
			status, _ := f.call(http.MethodPut, rbase+"/availability/teams/"+team.ID, true, map[string]bool{"available": true}, nil)
			So(status, ShouldEqual, http.StatusNoContent)
		}

		var res service.DrawResult
		status, _ = f.call(http.MethodPost, rbase+"/draws/create", true, nil, &res)
		So(status, ShouldEqual, http.StatusOK)
		So(res.Rooms, ShouldEqual, 1)

		Convey("Then a second draw without force conflicts", func() {
			status, e := f.call(http.MethodPost, rbase+"/draws/create", true, nil, nil)
			So(status, ShouldEqual, http.StatusConflict)
			So(e.Code, ShouldEqual, "conflict")
		})

		Convey("Then the public cannot see the draft draw", func() {
			status, _ := f.call(http.MethodGet, rbase+"/draws", false, nil, nil)
			So(status, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When the draw is confirmed", func() {
			var view service.DrawView
			status, _ := f.call(http.MethodGet, rbase+"/draws", true, nil, &view)
			So(status, ShouldEqual, http.StatusOK)
			So(view.Debates, ShouldHaveLength, 1)
			debate := view.Debates[0]

			status, _ = f.call(http.MethodPost, rbase+"/draws/confirm", true, nil, nil)
			So(status, ShouldEqual, http.StatusOK)

			Convey("Then full release without a chair lists the problem", func() {
				status, e := f.call(http.MethodPost, rbase+"/draws/setreleased", true, map[string]string{"status": "R"}, nil)
				So(status, ShouldEqual, http.StatusBadRequest)
				So(e.Details, ShouldContain, "debate 1 has 0 chairs")
			})

			Convey("When a chair is assigned, the draw released and a motion set", func() {
				status, _ := f.call(http.MethodPost, base+"/debates/"+debate.ID+"/judges", true,
					map[string]string{"judge_id": judge.ID, "role": "C"}, nil)
				So(status, ShouldEqual, http.StatusOK)
				var released model.Round
				status, _ = f.call(http.MethodPost, rbase+"/draws/setreleased", true, map[string]string{"status": "R"}, &released)
				So(status, ShouldEqual, http.StatusOK)
				So(released.DrawStatus, ShouldEqual, model.DrawReleasedFull)
				var motion model.Motion
				status, _ = f.call(http.MethodPost, rbase+"/motions", true, service.MotionInput{Text: "THW test in production"}, &motion)
				So(status, ShouldEqual, http.StatusCreated)

				sub := ballots.Submission{MotionID: motion.ID}
				for _, seat := range debate.Teams {
					te := ballots.TeamEntry{Side: seat.Side, Seq: seat.Seq}
					for _, sp := range speakers[seat.TeamID] {
						te.Speeches = append(te.Speeches, ballots.Speech{SpeakerID: sp.ID, Score: float64(70 + 2*seat.Seq + seat.Side)})
					}
					sub.Teams = append(sub.Teams, te)
				}

				Convey("Then the judge's ballot confirms the debate", func() {
					var out service.BallotOutcome
					path := fmt.Sprintf("%s/privateurls/%s/rounds/%s/submit", base, judge.PrivateURL, round.ID)
					status, _ := f.call(http.MethodPost, path, false, sub, &out)
					So(status, ShouldEqual, http.StatusOK)
					So(out.Status, ShouldEqual, model.DebateConfirmed)

					Convey("And the round completes, publishes and ranks", func() {
						status, _ := f.call(http.MethodPost, rbase+"/complete", true, nil, nil)
						So(status, ShouldEqual, http.StatusOK)
						var published model.Round
						status, _ = f.call(http.MethodPost, rbase+"/results/publish", true, nil, &published)
						So(status, ShouldEqual, http.StatusOK)
						So(published.ResultsPublishedAt, ShouldNotBeNil)

						var table service.TeamTable
						status, _ = f.call(http.MethodGet, base+"/standings/teams", true, nil, &table)
						So(status, ShouldEqual, http.StatusOK)
						So(table.Rows, ShouldHaveLength, 4)
						So(table.Rows[0].Points, ShouldEqual, 3)

						req, err := http.NewRequest(http.MethodGet, f.srv.URL+base+"/standings/export", nil)
						So(err, ShouldBeNil)
						req.Header.Set("Authorization", "Bearer "+f.token)
						resp, err := http.DefaultClient.Do(req)
						So(err, ShouldBeNil)
						defer resp.Body.Close()
						So(resp.StatusCode, ShouldEqual, http.StatusOK)
						So(resp.Header.Get("Content-Type"), ShouldStartWith, "application/vnd.openxmlformats")
					})

					Convey("And a stale resubmission conflicts", func() {
						stale := 3
						sub.ExpectedVersion = &stale
						path := fmt.Sprintf("%s/privateurls/%s/rounds/%s/submit", base, judge.PrivateURL, round.ID)
						status, e := f.call(http.MethodPost, path, false, sub, nil)
						So(status, ShouldEqual, http.StatusConflict)
						So(e.Code, ShouldEqual, "conflict")
					})
				})

				Convey("Then an unknown private URL is not found", func() {
					path := fmt.Sprintf("%s/privateurls/%s/rounds/%s/submit", base, "nobody", round.ID)
					status, _ := f.call(http.MethodPost, path, false, sub, nil)
					So(status, ShouldEqual, http.StatusNotFound)
				})
			})
		})

		Convey("Then snapshots can be paged", func() {
			var snaps []model.Snapshot
			status, _ := f.call(http.MethodGet, base+"/snapshots?limit=2", true, nil, &snaps)
			So(status, ShouldEqual, http.StatusOK)
			So(snaps, ShouldHaveLength, 2)
			So(*snaps[0].Prev, ShouldEqual, snaps[1].ID)

			var one service.SnapshotContents
			status, _ = f.call(http.MethodGet, base+"/snapshots/"+snaps[0].ID, true, nil, &one)
			So(status, ShouldEqual, http.StatusOK)
			So(len(one.Contents), ShouldBeGreaterThan, 0)

			status, _ = f.call(http.MethodGet, base+"/snapshots?limit=many", true, nil, nil)
			So(status, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestRateLimit(t *testing.T) {
	Convey("Given an API allowing one mutation per second", t, func() {
		f := newFixture(t, false, api.WithRateLimit(0.001, 1))

		Convey("When two tournaments are created back to back", func() {
			first, _ := f.call(http.MethodPost, "/tournaments", true, service.TournamentInput{Name: "One"}, nil)
			second, e := f.call(http.MethodPost, "/tournaments", true, service.TournamentInput{Name: "Two"}, nil)

			Convey("Then the second is throttled but reads still pass", func() {
				So(first, ShouldEqual, http.StatusCreated)
				So(second, ShouldEqual, http.StatusTooManyRequests)
				So(e.Code, ShouldEqual, "rate_limited")
				status, _ := f.call(http.MethodGet, "/tournaments/"+model.NewID(), false, nil, nil)
				So(status, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestEventStream(t *testing.T) {
	Convey("Given a tournament", t, func() {
		Convey("When the event stream is disabled", func() {
			f := newFixture(t, false)
			var tour model.Tournament
			f.call(http.MethodPost, "/tournaments", true, service.TournamentInput{Name: "Quiet"}, &tour)

			Convey("Then the stream is not found", func() {
				status, _ := f.call(http.MethodGet, "/tournaments/"+tour.ID+"/events", false, nil, nil)
				So(status, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When a client follows the stream and a team registers", func() {
			f := newFixture(t, true)
			var tour model.Tournament
			f.call(http.MethodPost, "/tournaments", true, service.TournamentInput{Name: "Live"}, &tour)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.srv.URL+"/tournaments/"+tour.ID+"/events", nil)
			So(err, ShouldBeNil)
			resp, err := http.DefaultClient.Do(req)
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.Header.Get("Content-Type"), ShouldEqual, "text/event-stream")

			status, _ := f.call(http.MethodPost, "/tournaments/"+tour.ID+"/teams", true,
				service.TeamInput{Name: "Latecomers"}, nil)
			So(status, ShouldEqual, http.StatusCreated)

			Convey("Then a participants update arrives", func() {
				sc := bufio.NewScanner(resp.Body)
				var got string
				for sc.Scan() {
					if line := sc.Text(); strings.HasPrefix(line, "event: ") {
						got = strings.TrimPrefix(line, "event: ")
						break
					}
				}
				So(got, ShouldEqual, string(broadcast.ParticipantsUpdate))
			})
		})
	})
}

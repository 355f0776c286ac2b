// Package simulate drives a running tabroom service through a complete
// preliminary tournament over its HTTP API and checks the results.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	service "github.com/okian/tabroom/internal/app"
	"github.com/okian/tabroom/internal/domain/ballots"
	"github.com/okian/tabroom/internal/domain/model"
	"github.com/okian/tabroom/pkg/logger"
)

// drawPollInterval spaces the checks on a draw that outlived its request.
const drawPollInterval = 250 * time.Millisecond

type runner struct {
	cfg   *Config
	api   *client
	gen   *generator
	log   logger.Logger
	stats *Stats

	tournament string
	teams      []model.Team
	speakers   map[string][]model.Speaker
	judges     []model.Judge
}

// Run registers a fake tournament, runs cfg.Rounds rounds and verifies every
// draw and the final team standings.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &runner{
		cfg:      cfg,
		api:      newClient(cfg.BaseURL, cfg.Token, cfg.Timeout),
		gen:      newGenerator(cfg.Seed),
		log:      logger.Default().Named("simulate"),
		stats:    &Stats{StartTime: time.Now()},
		speakers: make(map[string][]model.Speaker),
	}
	r.log.Info(ctx, "starting simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("teams", cfg.Teams),
		logger.Int("judges", cfg.Judges),
		logger.Int("rounds", cfg.Rounds),
		logger.Int("workers", cfg.Workers),
		logger.Int64("seed", cfg.Seed))

	if err := r.checkHealth(ctx); err != nil {
		return r.stats, fmt.Errorf("service health check failed: %w", err)
	}
	if err := r.register(ctx); err != nil {
		return r.stats, fmt.Errorf("registration failed: %w", err)
	}
	for seq := 1; seq <= cfg.Rounds; seq++ {
		if err := r.round(ctx, seq); err != nil {
			return r.stats, fmt.Errorf("round %d: %w", seq, err)
		}
		r.stats.RoundsRun++
	}

	var table service.TeamTable
	if _, err := r.api.do(ctx, http.MethodGet, r.path("/standings/teams"), nil, &table); err != nil {
		return r.stats, fmt.Errorf("team standings: %w", err)
	}
	if err := verifyStandings(&table, cfg.Teams, cfg.Rounds); err != nil {
		return r.stats, err
	}
	r.stats.TopTeam, r.stats.TopPoints = table.Rows[0].Team, table.Rows[0].Points

	r.stats.EndTime = time.Now()
	r.stats.Duration = r.stats.EndTime.Sub(r.stats.StartTime)
	r.log.Info(ctx, "final statistics",
		logger.String("tournament", r.stats.TournamentID),
		logger.Int("rounds", r.stats.RoundsRun),
		logger.Int("debates", r.stats.Debates),
		logger.Int("ballotsSubmitted", r.stats.BallotsSubmitted),
		logger.Int("ballotsFailed", r.stats.BallotsFailed),
		logger.Int("drawsDeferred", r.stats.DrawsDeferred),
		logger.String("topTeam", r.stats.TopTeam),
		logger.Int("topPoints", r.stats.TopPoints),
		logger.Duration("duration", r.stats.Duration))
	return r.stats, nil
}

func (r *runner) path(suffix string) string {
	return "/tournaments/" + r.tournament + suffix
}

func (r *runner) debug(ctx context.Context, msg string, fields ...logger.Field) {
	if r.cfg.Verbose {
		r.log.Info(ctx, msg, fields...)
	}
}

func (r *runner) checkHealth(ctx context.Context) error {
	var body map[string]string
	if _, err := r.api.do(ctx, http.MethodGet, "/healthz", nil, &body); err != nil {
		return err
	}
	r.log.Info(ctx, "service is healthy")
	return nil
}

func (r *runner) register(ctx context.Context) error {
	var t model.Tournament
	in := service.TournamentInput{Name: r.gen.faker.City() + " Open"}
	if _, err := r.api.do(ctx, http.MethodPost, "/tournaments", in, &t); err != nil {
		return err
	}
	r.tournament = t.ID
	r.stats.TournamentID = t.ID

	inputs := make([]service.TeamInput, r.cfg.Teams)
	for i := range inputs {
		inputs[i] = r.gen.team(i)
	}
	type registered struct {
		Team     model.Team      `json:"team"`
		Speakers []model.Speaker `json:"speakers"`
	}
	out := make([]registered, len(inputs))
	if _, failed, err := fanOut(ctx, r.cfg.Workers, len(inputs), func(i int) error {
		_, err := r.api.do(ctx, http.MethodPost, r.path("/teams"), inputs[i], &out[i])
		return err
	}); failed > 0 {
		return err
	}
	for _, reg := range out {
		r.teams = append(r.teams, reg.Team)
		r.speakers[reg.Team.ID] = reg.Speakers
	}

	for range r.cfg.Judges {
		var j model.Judge
		if _, err := r.api.do(ctx, http.MethodPost, r.path("/judges"), r.gen.judge(), &j); err != nil {
			return err
		}
		r.judges = append(r.judges, j)
	}
	r.log.Info(ctx, "registered participants",
		logger.String("tournament", r.tournament),
		logger.Int("teams", len(r.teams)),
		logger.Int("judges", len(r.judges)))
	return nil
}

// round draws, releases, judges and completes one preliminary round.
func (r *runner) round(ctx context.Context, seq int) error {
	points, err := r.points(ctx)
	if err != nil {
		return err
	}

	var round model.Round
	if _, err := r.api.do(ctx, http.MethodPost, r.path("/rounds"), service.RoundInput{}, &round); err != nil {
		return err
	}
	rpath := func(suffix string) string { return r.path("/rounds/" + round.ID + suffix) }

	if _, failed, err := fanOut(ctx, r.cfg.Workers, len(r.teams), func(i int) error {
		_, err := r.api.do(ctx, http.MethodPut, rpath("/availability/teams/"+r.teams[i].ID), map[string]bool{"available": true}, nil)
		return err
	}); failed > 0 {
		return err
	}
	for _, j := range r.judges {
		if _, err := r.api.do(ctx, http.MethodPut, rpath("/availability/judges/"+j.ID), map[string]bool{"available": true}, nil); err != nil {
			return err
		}
	}

	var res service.DrawResult
	status, err := r.api.do(ctx, http.MethodPost, rpath("/draws/create"), nil, &res)
	if err != nil {
		return err
	}
	if status == http.StatusAccepted {
		r.stats.DrawsDeferred++
	} else if want := leastDistance(points); res.PullupDistance != want {
		return fmt.Errorf("%w: pull-up distance %d, least possible %d", ErrDrawInvariant, res.PullupDistance, want)
	}
	view, err := r.awaitDraw(ctx, rpath("/draws"))
	if err != nil {
		return err
	}
	if err := verifyDraw(view, points); err != nil {
		return err
	}
	r.debug(ctx, "draw verified", logger.Int("round", seq), logger.Int("rooms", len(view.Debates)), logger.Int("pullupDistance", res.PullupDistance))

	if _, err := r.api.do(ctx, http.MethodPost, rpath("/draws/confirm"), nil, nil); err != nil {
		return err
	}
	for i, d := range view.Debates {
		body := map[string]string{"judge_id": r.judges[i].ID, "role": string(model.RoleChair)}
		if _, err := r.api.do(ctx, http.MethodPost, r.path("/debates/"+d.ID+"/judges"), body, nil); err != nil {
			return err
		}
	}
	var motion model.Motion
	if _, err := r.api.do(ctx, http.MethodPost, rpath("/motions"), r.gen.motion(), &motion); err != nil {
		return err
	}
	if _, err := r.api.do(ctx, http.MethodPost, rpath("/draws/setreleased"), map[string]model.DrawStatus{"status": model.DrawReleasedFull}, nil); err != nil {
		return err
	}

	sheets := make([]ballots.Submission, len(view.Debates))
	for i, d := range view.Debates {
		sheets[i] = r.gen.sheet(d, motion.ID, r.speakers)
	}
	ok, failed, err := fanOut(ctx, r.cfg.Workers, len(sheets), func(i int) error {
		var out service.BallotOutcome
		path := r.path("/privateurls/" + r.judges[i].PrivateURL + "/rounds/" + round.ID + "/submit")
		if _, err := r.api.do(ctx, http.MethodPost, path, sheets[i], &out); err != nil {
			return err
		}
		if out.Status != model.DebateConfirmed {
			return fmt.Errorf("debate %d left %s", view.Debates[i].Number, out.Status)
		}
		return nil
	})
	r.stats.Debates += len(view.Debates)
	r.stats.BallotsSubmitted += ok
	r.stats.BallotsFailed += failed
	if failed > 0 {
		return err
	}

	if _, err := r.api.do(ctx, http.MethodPost, rpath("/complete"), nil, nil); err != nil {
		return err
	}
	if _, err := r.api.do(ctx, http.MethodPost, rpath("/results/publish"), nil, nil); err != nil {
		return err
	}
	r.log.Info(ctx, "round complete", logger.Int("round", seq), logger.Int("debates", len(view.Debates)))
	return nil
}

// points reads the team points the next draw is made from.
func (r *runner) points(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int, len(r.teams))
	for _, t := range r.teams {
		out[t.ID] = 0
	}
	var table service.TeamTable
	if _, err := r.api.do(ctx, http.MethodGet, r.path("/standings/teams"), nil, &table); err != nil {
		return nil, err
	}
	for _, row := range table.Rows {
		out[row.TeamID] = row.Points
	}
	return out, nil
}

// awaitDraw polls until the round's draw has been committed.
func (r *runner) awaitDraw(ctx context.Context, path string) (*service.DrawView, error) {
	ticker := time.NewTicker(drawPollInterval)
	defer ticker.Stop()
	for {
		var view service.DrawView
		_, err := r.api.do(ctx, http.MethodGet, path, nil, &view)
		var se *StatusError
		switch {
		case err == nil && view.Draw != nil && len(view.Debates) > 0:
			return &view, nil
		case err != nil && !(errors.As(err, &se) && se.Status == http.StatusNotFound):
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// fanOut runs fn over [0, n) on workers goroutines and returns the counts
// of successes and failures with the first error seen.
func fanOut(ctx context.Context, workers, n int, fn func(i int) error) (int, int, error) {
	var (
		ok, failed int64
		firstErr   error
		once       sync.Once
		wg         sync.WaitGroup
	)
	jobs := make(chan int, workers*2)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := fn(i); err != nil {
					atomic.AddInt64(&failed, 1)
					once.Do(func() { firstErr = err })
					continue
				}
				atomic.AddInt64(&ok, 1)
			}
		}()
	}
	go func() {
		defer close(jobs)
		for i := range n {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()
	wg.Wait()
	if firstErr == nil && ctx.Err() != nil && int(ok) < n {
		return int(ok), n - int(ok), ctx.Err()
	}
	return int(ok), int(failed), firstErr
}

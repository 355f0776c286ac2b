// Package api exposes the tournament service over HTTP.
package api

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/okian/tabroom/internal/adapters/broadcast"
	"github.com/okian/tabroom/internal/adapters/http/swagger"
	service "github.com/okian/tabroom/internal/app"
	"github.com/okian/tabroom/internal/domain/ballots"
	"github.com/okian/tabroom/internal/domain/model"
	"github.com/okian/tabroom/pkg/logger"
	"golang.org/x/time/rate"
)

// Dependencies is the service surface the handlers call. Every method
// takes the signed-in user, which may be nil.
type Dependencies interface {
	Ready() bool
	Stats(ctx context.Context) map[string]any
	Authenticate(ctx context.Context, raw string) (*model.User, error)

	CreateTournament(ctx context.Context, user *model.User, in service.TournamentInput) (*model.Tournament, error)
	Tournament(ctx context.Context, user *model.User, tournamentID string) (*model.Tournament, error)

	Participants(ctx context.Context, user *model.User, tournamentID string) (*service.Participants, error)
	AddInstitution(ctx context.Context, user *model.User, tournamentID, name string) (*model.Institution, error)
	AddTeam(ctx context.Context, user *model.User, tournamentID string, in service.TeamInput) (*model.Team, []model.Speaker, error)
	AddSpeaker(ctx context.Context, user *model.User, tournamentID, teamID string, in service.SpeakerInput) (*model.Speaker, error)
	AddJudge(ctx context.Context, user *model.User, tournamentID string, in service.JudgeInput) (*model.Judge, error)
	AddBreakCategory(ctx context.Context, user *model.User, tournamentID, name string, size int) (*model.BreakCategory, error)

	CreateRound(ctx context.Context, user *model.User, tournamentID string, in service.RoundInput) (*model.Round, error)
	Rounds(ctx context.Context, user *model.User, tournamentID string) ([]model.Round, error)
	AddMotion(ctx context.Context, user *model.User, tournamentID, roundID string, in service.MotionInput) (*model.Motion, error)
	SetTeamAvailability(ctx context.Context, user *model.User, tournamentID, roundID, teamID string, available bool) error
	SetJudgeAvailability(ctx context.Context, user *model.User, tournamentID, roundID, judgeID string, available bool) error
	RoundAvailability(ctx context.Context, user *model.User, tournamentID, roundID string) (*service.Availability, error)

	CreateDraw(ctx context.Context, user *model.User, tournamentID, roundID string, force bool) (*service.DrawResult, error)
	ConfirmDraw(ctx context.Context, user *model.User, tournamentID, roundID string) (*model.Round, error)
	SetReleased(ctx context.Context, user *model.User, tournamentID, roundID string, to model.DrawStatus) (*model.Round, error)
	AssignJudge(ctx context.Context, user *model.User, tournamentID, debateID, judgeID string, role model.JudgeRole) (*model.DebateJudge, error)
	RoundDraw(ctx context.Context, user *model.User, tournamentID, roundID string) (*service.DrawView, error)

	SubmitBallot(ctx context.Context, editor *model.User, tournamentID, privateURL, roundID string, sub ballots.Submission) (*service.BallotOutcome, error)
	AggregateDebate(ctx context.Context, user *model.User, tournamentID, debateID string) (*service.DebateBallots, error)
	DebateBallots(ctx context.Context, user *model.User, tournamentID, debateID string) (*service.DebateBallots, error)

	CompleteRound(ctx context.Context, user *model.User, tournamentID, roundID string, completed bool) (*model.Round, error)
	PublishResults(ctx context.Context, user *model.User, tournamentID, roundID string) (*model.Round, error)
	TeamStandings(ctx context.Context, user *model.User, tournamentID string) (*service.TeamTable, error)
	SpeakerStandings(ctx context.Context, user *model.User, tournamentID string) (*service.SpeakerTable, error)
	ExportStandings(ctx context.Context, user *model.User, tournamentID string, w io.Writer) error

	Snapshots(ctx context.Context, user *model.User, tournamentID string, limit int) ([]model.Snapshot, error)
	Snapshot(ctx context.Context, user *model.User, tournamentID, snapshotID string) (*service.SnapshotContents, error)
}

// Subscriber streams a tournament's refresh events.
type Subscriber interface {
	Subscribe(ctx context.Context, tournamentID string) (<-chan broadcast.Event, error)
}

// Server wires HTTP routes for the tournament API.
type Server struct {
	deps    Dependencies
	events  Subscriber
	limiter *IPRateLimiter
	logger  logger.Logger

	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	eventsHandler *EventsHandler
}

// Option configures the Server.
type Option func(*Server)

// WithEvents enables the event stream endpoint.
func WithEvents(sub Subscriber) Option {
	return func(s *Server) { s.events = sub }
}

// WithRateLimit limits mutating requests per client IP. rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps > 0 {
			s.limiter = NewIPRateLimiter(rate.Limit(rps), max(burst, 1))
		}
	}
}

// WithLogger sets the logger for failed requests.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps: deps,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Default().Named("http")
	}
	s.healthHandler = NewHealthHandler(deps)
	s.statsHandler = NewStatsHandler(deps)
	s.eventsHandler = NewEventsHandler(deps, s.events, s.logger)
	return s
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	swagger.Mount(r)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		if s.limiter != nil {
			r.Use(RateLimitMiddleware(s.limiter))
		}

		r.Post("/tournaments", s.handle("create_tournament", s.createTournament))
		r.Route("/tournaments/{tid}", func(r chi.Router) {
			r.Get("/", s.handle("tournament", s.tournament))
			r.Get("/events", s.eventsHandler.HandleStream)

			r.Get("/participants", s.handle("participants", s.participants))
			r.Post("/institutions", s.handle("add_institution", s.addInstitution))
			r.Post("/teams", s.handle("add_team", s.addTeam))
			r.Post("/teams/{teamID}/speakers", s.handle("add_speaker", s.addSpeaker))
			r.Post("/judges", s.handle("add_judge", s.addJudge))
			r.Post("/breakcategories", s.handle("add_break_category", s.addBreakCategory))

			r.Get("/rounds", s.handle("rounds", s.rounds))
			r.Post("/rounds", s.handle("create_round", s.createRound))
			r.Route("/rounds/{rid}", func(r chi.Router) {
				r.Post("/motions", s.handle("add_motion", s.addMotion))
				r.Get("/availability", s.handle("availability", s.availability))
				r.Put("/availability/teams/{teamID}", s.handle("team_availability", s.teamAvailability))
				r.Put("/availability/judges/{judgeID}", s.handle("judge_availability", s.judgeAvailability))

				r.Get("/draws", s.handle("round_draw", s.roundDraw))
				r.Post("/draws/create", s.handle("create_draw", s.createDraw))
				r.Post("/draws/confirm", s.handle("confirm_draw", s.confirmDraw))
				r.Post("/draws/setreleased", s.handle("set_released", s.setReleased))

				r.Post("/complete", s.handle("complete_round", s.completeRound))
				r.Post("/results/publish", s.handle("publish_results", s.publishResults))
			})

			r.Post("/debates/{did}/judges", s.handle("assign_judge", s.assignJudge))
			r.Get("/debates/{did}/ballots", s.handle("debate_ballots", s.debateBallots))
			r.Post("/debates/{did}/aggregate", s.handle("aggregate_debate", s.aggregateDebate))
			r.Post("/privateurls/{url}/rounds/{rid}/submit", s.handle("submit_ballot", s.submitBallot))

			r.Get("/standings/teams", s.handle("team_standings", s.teamStandings))
			r.Get("/standings/speakers", s.handle("speaker_standings", s.speakerStandings))
			r.Get("/standings/export", s.handle("export_standings", s.exportStandings))

			r.Get("/snapshots", s.handle("snapshots", s.snapshots))
			r.Get("/snapshots/{sid}", s.handle("snapshot", s.snapshot))
		})
	})
	return r
}

// handlerFunc is a route body that reports failures instead of writing them.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle meters fn under endpoint and writes its error, if any.
func (s *Server) handle(endpoint string, fn handlerFunc) http.HandlerFunc {
	return MetricsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			s.fail(w, r, err)
		}
	}, endpoint)
}

// Package service implements every tournament operation on top of the store,
// the draw worker pool and the broadcast channel. Handlers hold a *Service
// and pass the resolved user explicitly; nothing here is process-global.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/tabroom/internal/adapters/auth"
	"github.com/okian/tabroom/internal/adapters/broadcast"
	"github.com/okian/tabroom/internal/adapters/mq/queue"
	"github.com/okian/tabroom/internal/adapters/mq/worker"
	"github.com/okian/tabroom/internal/adapters/repository"
	"github.com/okian/tabroom/internal/domain/access"
	"github.com/okian/tabroom/internal/domain/model"
	"github.com/okian/tabroom/pkg/logger"
	"github.com/okian/tabroom/pkg/metrics"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultDrawWait  = 20 * time.Second
	defaultQueueSize = 64
)

// Service is the application state shared by every handler.
type Service struct {
	mu sync.Mutex

	store  *repository.Store
	bus    *broadcast.Broadcaster
	tokens *auth.Tokens
	pool   *worker.Pool

	workerCount int
	queueSize   int
	drawWait    time.Duration
	drawSeed    int64

	started bool
	tracer  trace.Tracer
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of draw workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize bounds pending draw jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDrawWait sets how long CreateDraw waits before reporting a draw as still running.
func WithDrawWait(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.drawWait = d
		}
	}
}

// WithDrawSeed fixes the generator's tie-breaking seed. Zero draws a fresh seed each time.
func WithDrawSeed(seed int64) Option {
	return func(s *Service) { s.drawSeed = seed }
}

// WithBroadcaster sets the UI refresh channel.
func WithBroadcaster(b *broadcast.Broadcaster) Option {
	return func(s *Service) { s.bus = b }
}

// WithTokens enables session tokens.
func WithTokens(t *auth.Tokens) Option {
	return func(s *Service) { s.tokens = t }
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracer overrides the otel tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// New constructs a Service over store. Start it before creating draws.
func New(store *repository.Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		workerCount: runtime.NumCPU(),
		queueSize:   defaultQueueSize,
		drawWait:    defaultDrawWait,
		tracer:      otel.Tracer("tabroom"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Default().Named("service")
	}
	return s
}

// Start launches the draw worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	q := queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, q, worker.WithLogger(s.logger.Named("worker")))
	s.pool.Start(context.WithoutCancel(ctx))
	s.started = true
	s.logger.Info(ctx, "tournament service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("drawWait", s.drawWait),
	)
	return nil
}

// Stop drains the worker pool. Draws still queued are finished first.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	err := s.pool.Shutdown(ctx)
	s.logger.Info(ctx, "tournament service stopped")
	return err
}

// Ready reports whether the worker pool is running.
func (s *Service) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Stats reports the draw pool and broadcast counters.
func (s *Service) Stats(ctx context.Context) map[string]any {
	s.mu.Lock()
	pool, started := s.pool, s.started
	s.mu.Unlock()
	out := map[string]any{
		"ready":          started,
		"draw_workers":   s.workerCount,
		"draw_queue_cap": s.queueSize,
		"draw_queued":    0,
	}
	if started {
		out["draw_queued"] = pool.Pending(ctx)
	}
	if s.bus != nil {
		out["broadcast_dropped"] = s.bus.Dropped()
	}
	return out
}

// Broadcaster returns the UI refresh channel, or nil.
func (s *Service) Broadcaster() *broadcast.Broadcaster { return s.bus }

// withTelemetry runs op inside a span, records its duration, turns panics
// into ErrInternal and classifies the returned error.
func (s *Service) withTelemetry(ctx context.Context, op, tournamentID string, fn func(ctx context.Context) error) (err error) {
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("operation", op),
		attribute.String("tournament_id", tournamentID),
	))
	defer span.End()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic in %s: %v", ErrInternal, op, r)
			metrics.RecordErrorByComponent("service", "panic")
		}
		outcome := "ok"
		if err != nil {
			err = classify(err)
			outcome = outcomeOf(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
			if errors.Is(err, ErrInternal) {
				s.logger.Error(ctx, "operation failed",
					logger.String("op", op),
					logger.String("tournament_id", tournamentID),
					logger.Error(err),
				)
			} else {
				s.logger.Debug(ctx, "operation rejected",
					logger.String("op", op),
					logger.String("outcome", outcome),
					logger.Error(err),
				)
			}
		}
		metrics.RecordOperation(op, outcome, float64(time.Since(start).Milliseconds()))
	}()

	return fn(ctx)
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrBadRequest):
		return "bad_request"
	case errors.Is(err, ErrConflict):
		return "conflict"
	}
	return "internal"
}

// authorize loads the tournament and checks action for user.
func (s *Service) authorize(ctx context.Context, db bun.IDB, user *model.User, tournamentID string, action access.Action) (*model.Tournament, access.Grant, error) {
	t, err := repository.Tournament(ctx, db, tournamentID)
	if err != nil {
		return nil, access.Grant{}, err
	}
	var member *model.Member
	if user != nil {
		member, err = repository.Member(ctx, db, tournamentID, user.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, access.Grant{}, err
		}
	}
	g, err := access.Authorize(user, member, action)
	if err != nil {
		return nil, access.Grant{}, err
	}
	return t, g, nil
}

// mutate runs fn as an administrator's transaction and snapshots the
// tournament before committing.
func (s *Service) mutate(ctx context.Context, op string, user *model.User, tournamentID string, fn func(ctx context.Context, tx bun.Tx, t *model.Tournament) error) error {
	return s.store.RunInTx(ctx, op, func(ctx context.Context, tx bun.Tx) error {
		t, _, err := s.authorize(ctx, tx, user, tournamentID, access.Admin)
		if err != nil {
			return err
		}
		if err := fn(ctx, tx, t); err != nil {
			return err
		}
		_, err = s.store.TakeSnapshot(ctx, tx, tournamentID)
		return err
	})
}

// view runs fn in a read transaction after checking action.
func (s *Service) view(ctx context.Context, op string, user *model.User, tournamentID string, action access.Action, fn func(ctx context.Context, tx bun.Tx, t *model.Tournament, g access.Grant) error) error {
	return s.store.RunInTx(ctx, op, func(ctx context.Context, tx bun.Tx) error {
		t, g, err := s.authorize(ctx, tx, user, tournamentID, action)
		if err != nil {
			return err
		}
		return fn(ctx, tx, t, g)
	})
}

// publish tells subscribers to re-read. Losing a notification is harmless.
func (s *Service) publish(ctx context.Context, ev broadcast.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.logger.Warn(ctx, "broadcast failed", logger.String("kind", string(ev.Kind)), logger.Error(err))
	}
}

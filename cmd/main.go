package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/okian/tabroom/internal/adapters/auth"
	"github.com/okian/tabroom/internal/adapters/broadcast"
	"github.com/okian/tabroom/internal/adapters/http/api"
	"github.com/okian/tabroom/internal/adapters/repository"
	app "github.com/okian/tabroom/internal/app"
	"github.com/okian/tabroom/internal/config"
	"github.com/okian/tabroom/pkg/logger"
	"github.com/okian/tabroom/pkg/metrics"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 0 // event streams stay open
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		os.Stderr.WriteString("tabroom: " + err.Error() + "\n")
		os.Exit(1)
	}
}

// newApp wires the commands. Before loads .env, then the koanf config, and
// stores the result for the command actions.
func newApp() *cli.App {
	var cfg *config.Config
	return &cli.App{
		Name:  "tabroom",
		Usage: "parliamentary debate tabulation service",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "dotenv file loaded before the configuration"},
		},
		Before: func(c *cli.Context) error {
			if err := godotenv.Load(c.String("env-file")); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load %s: %w", c.String("env-file"), err)
			}
			if err := logger.Init(); err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}
			loaded, err := config.Load(c.Context)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := logger.SetLevelString(loaded.LogLevel); err != nil {
				logger.Get().Warn(c.Context, "invalid log_level; falling back to info", logger.String("log_level", loaded.LogLevel), logger.Error(err))
				_ = logger.SetLevelString("info")
			}
			cfg = loaded
			return nil
		},
		After: func(*cli.Context) error {
			_ = logger.Sync()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP API",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "migrate", Value: true, Usage: "apply pending migrations on start"},
				},
				Action: func(c *cli.Context) error { return serve(c.Context, cfg, c.Bool("migrate")) },
			},
			migrateCommand(&cfg),
			tokenCommand(&cfg),
			simulateCommand(),
		},
	}
}

// serve runs the API until SIGINT or SIGTERM.
func serve(parent context.Context, cfg *config.Config, migrate bool) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	log := logger.Get()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	if migrate {
		schema, err := store.Migrate(ctx)
		if err != nil {
			return err
		}
		log.Info(ctx, "schema ready", logger.String("schema", schema))
	}

	tokens, err := auth.New(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL())
	if err != nil {
		return fmt.Errorf("token service: %w", err)
	}

	busOpts := []broadcast.Option{broadcast.WithBuffer(cfg.BroadcastBuffer), broadcast.WithLogger(log.Named("broadcast"))}
	if cfg.NATSURL != "" {
		conn, err := broadcast.ConnectNATS(cfg.NATSURL)
		if err != nil {
			return err
		}
		defer conn.Close()
		busOpts = append(busOpts, broadcast.WithNATS(conn, cfg.NATSSubject))
		log.Info(ctx, "broadcast bridged to NATS", logger.String("subject", cfg.NATSSubject))
	}
	bus := broadcast.New(busOpts...)
	defer bus.Close()

	svc := app.New(store,
		app.WithLogger(log.Named("service")),
		app.WithTracer(otel.Tracer("tabroom")),
		app.WithTokens(tokens),
		app.WithBroadcaster(bus),
		app.WithWorkerCount(cfg.DrawWorkerCount),
		app.WithQueueSize(cfg.DrawQueueSize),
		app.WithDrawWait(cfg.DrawWait()),
		app.WithDrawSeed(cfg.DrawSeed),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(ctx, "service stop failed", logger.Error(err))
		}
	}()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	server := api.NewServer(svc,
		api.WithEvents(bus),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithLogger(log.Named("http")),
	)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Router(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (*repository.Store, error) {
	store, err := repository.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN, repository.WithLogger(logger.Get().Named("repository")))
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.DatabaseDriver, err)
	}
	return store, nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(ctx, svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}

// updateServiceMetrics copies the draw pool gauges out of the service stats.
func updateServiceMetrics(ctx context.Context, svc *app.Service) {
	stats := svc.Stats(ctx)
	queued, _ := stats["draw_queued"].(int)
	capacity, _ := stats["draw_queue_cap"].(int)
	metrics.UpdateQueueSize(queued, capacity)
	if workers, ok := stats["draw_workers"].(int); ok {
		metrics.UpdateWorkerCount(workers)
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/okian/tabroom/internal/adapters/auth"
	app "github.com/okian/tabroom/internal/app"
	"github.com/okian/tabroom/internal/config"
	"github.com/okian/tabroom/internal/simulate"
	"github.com/urfave/cli/v2"
)

// Simulation defaults.
const (
	defaultSimTeams   = 16
	defaultSimJudges  = 6
	defaultSimRounds  = 5
	defaultSimTimeout = 30 * time.Second
	simulateDeadline  = 10 * time.Minute
)

// migrateCommand manages the schema. cfg is read when the action runs.
func migrateCommand(cfg **config.Config) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "database migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply pending migrations",
				Action: func(c *cli.Context) error {
					store, err := openStore(c.Context, *cfg)
					if err != nil {
						return err
					}
					defer store.Close()
					schema, err := store.Migrate(c.Context)
					if err != nil {
						return err
					}
					fmt.Printf("schema at %s\n", schema)
					return nil
				},
			},
			{
				Name:  "rollback",
				Usage: "roll back the last migration group",
				Action: func(c *cli.Context) error {
					store, err := openStore(c.Context, *cfg)
					if err != nil {
						return err
					}
					defer store.Close()
					return store.Rollback(c.Context)
				},
			},
		},
	}
}

// tokenCommand signs a session token, creating the user on first use.
func tokenCommand(cfg **config.Config) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "issue a bearer token for a user",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Required: true, Usage: "username to sign in"},
		},
		Action: func(c *cli.Context) error {
			token, err := issueToken(c.Context, *cfg, c.String("user"))
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}

func issueToken(ctx context.Context, cfg *config.Config, username string) (string, error) {
	tokens, err := auth.New(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL())
	if err != nil {
		return "", fmt.Errorf("token service: %w", err)
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return "", err
	}
	defer store.Close()
	if _, err := store.Migrate(ctx); err != nil {
		return "", err
	}
	token, _, err := app.New(store, app.WithTokens(tokens)).IssueToken(ctx, username)
	return token, err
}

// simulateCommand runs a fake tournament against a live server.
func simulateCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "drive a running server through a full preliminary tournament",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:9080", Usage: "base URL of the service"},
			&cli.StringFlag{Name: "token", EnvVars: []string{"TABROOM_TOKEN"}, Required: true, Usage: "bearer token of an organiser"},
			&cli.IntFlag{Name: "teams", Value: defaultSimTeams, Usage: "teams to register"},
			&cli.IntFlag{Name: "judges", Value: defaultSimJudges, Usage: "judges to register"},
			&cli.IntFlag{Name: "rounds", Value: defaultSimRounds, Usage: "preliminary rounds to run"},
			&cli.IntFlag{Name: "workers", Value: runtime.NumCPU(), Usage: "concurrent ballot submitters"},
			&cli.DurationFlag{Name: "timeout", Value: defaultSimTimeout, Usage: "HTTP request timeout"},
			&cli.Int64Flag{Name: "seed", Value: time.Now().UnixNano(), DefaultText: "now", Usage: "seed for names and scores"},
			&cli.BoolFlag{Name: "verbose", Usage: "log every step"},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithTimeout(c.Context, simulateDeadline)
			defer cancel()
			stats, err := simulate.Run(ctx, &simulate.Config{
				BaseURL: c.String("url"),
				Token:   c.String("token"),
				Teams:   c.Int("teams"),
				Judges:  c.Int("judges"),
				Rounds:  c.Int("rounds"),
				Workers: c.Int("workers"),
				Timeout: c.Duration("timeout"),
				Seed:    c.Int64("seed"),
				Verbose: c.Bool("verbose"),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "tournament %s: %d rounds, %d debates, top %s on %d points in %s\n",
				stats.TournamentID, stats.RoundsRun, stats.Debates, stats.TopTeam, stats.TopPoints, stats.Duration.Round(time.Millisecond))
			return nil
		},
	}
}

//go:build integration

package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/tabroom/internal/adapters/repository"
	"github.com/okian/tabroom/internal/config"
	"github.com/okian/tabroom/internal/domain/model"
	"github.com/okian/tabroom/pkg/logger"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/uptrace/bun"
)

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()
	pg, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("tabroom"),
		postgres.WithUsername("tabroom"),
		postgres.WithPassword("tabroom"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	for _, driver := range []string{config.DriverPostgres, config.DriverPgx} {
		t.Run(driver, func(t *testing.T) {
			s, err := repository.Open(ctx, driver, dsn, repository.WithLogger(logger.NewNop()))
			require.NoError(t, err)
			defer s.Close()

			schema, err := s.Migrate(ctx)
			require.NoError(t, err)
			require.NotEmpty(t, schema)

			user := &model.User{ID: model.NewID(), Username: driver + "-owner", CreatedAt: time.Now().UTC()}
			require.NoError(t, repository.CreateUser(ctx, s.DB(), user))
			tour := &model.Tournament{ID: model.NewID(), Name: "Open", Abbreviation: "O", CreatedAt: time.Now().UTC(), Settings: model.DefaultSettings()}
			require.NoError(t, repository.CreateTournament(ctx, s.DB(), tour, &model.Member{ID: model.NewID(), TournamentID: tour.ID, UserID: user.ID, IsSuperuser: true}))

			got, err := repository.Tournament(ctx, s.DB(), tour.ID)
			require.NoError(t, err)
			require.Equal(t, tour.PullupMetrics, got.PullupMetrics)

			round := &model.Round{ID: model.NewID(), TournamentID: tour.ID, Seq: 1, Name: "R1", Kind: model.RoundPrelim, DrawStatus: model.DrawNotStarted}
			ticket := &model.RoundTicket{ID: model.NewID(), TournamentID: tour.ID, RoundID: round.ID, Kind: model.TicketKindDraw, AcquiredAt: time.Now().UTC()}
			err = s.RunInTx(ctx, "test", func(ctx context.Context, tx bun.Tx) error {
				if err := repository.Insert(ctx, tx, round); err != nil {
					return err
				}
				if err := repository.InsertTicket(ctx, tx, ticket); err != nil {
					return err
				}
				_, err := s.TakeSnapshot(ctx, tx, tour.ID)
				return err
			})
			require.NoError(t, err)

			dup := *ticket
			dup.ID = model.NewID()
			err = repository.InsertTicket(ctx, s.DB(), &dup)
			require.True(t, errors.Is(err, repository.ErrDuplicate), "got %v", err)

			chain, err := repository.SnapshotChain(ctx, s.DB(), tour.ID, 0)
			require.NoError(t, err)
			require.Len(t, chain, 1)
			require.Equal(t, schema, chain[0].SchemaID)
		})
	}
}

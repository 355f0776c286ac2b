// Package repository persists tournaments through bun on PostgreSQL or SQLite.
//
// Queries are plain functions over bun.IDB so the application composes them
// inside one transaction; none of them spans more than one aggregate.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/okian/tabroom/internal/adapters/repository/migrations"
	"github.com/okian/tabroom/internal/config"
	"github.com/okian/tabroom/internal/domain/model"
	"github.com/okian/tabroom/pkg/logger"
	"github.com/okian/tabroom/pkg/metrics"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

const defaultTxRetries = 3

// Store owns the database handle.
type Store struct {
	db      *bun.DB
	driver  string
	log     logger.Logger
	now     func() time.Time
	retries int
}

// Open connects to the configured database.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	var (
		sqldb *sql.DB
		db    *bun.DB
		err   error
	)
	switch driver {
	case config.DriverPostgres:
		sqldb = sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		db = bun.NewDB(sqldb, pgdialect.New())
	case config.DriverPgx:
		if sqldb, err = sql.Open("pgx", dsn); err != nil {
			return nil, fmt.Errorf("open pgx: %w", err)
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	case config.DriverSQLite:
		if sqldb, err = sql.Open("sqlite", dsn); err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// One writer; transactions are serial by construction.
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return New(db, driver, opts...), nil
}

// New wraps an open bun handle.
func New(db *bun.DB, driver string, opts ...Option) *Store {
	s := &Store{
		db:      db,
		driver:  driver,
		now:     time.Now,
		retries: defaultTxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Default().Named("repository")
	}
	return s
}

// DB exposes the handle for reads outside a transaction.
func (s *Store) DB() bun.IDB { return s.db }

// Now is the store clock.
func (s *Store) Now() time.Time { return s.now().UTC() }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Migrate applies every pending migration and returns the newest applied name.
func (s *Store) Migrate(ctx context.Context) (string, error) {
	m := migrate.NewMigrator(s.db, migrations.Migrations)
	if err := m.Init(ctx); err != nil {
		return "", fmt.Errorf("init migrations: %w", err)
	}
	group, err := m.Migrate(ctx)
	if err != nil {
		return "", fmt.Errorf("migrate: %w", err)
	}
	if !group.IsZero() {
		s.log.Info(ctx, "applied migrations", logger.String("group", group.String()))
	}
	return SchemaID(ctx, s.db)
}

// Rollback reverts the last migration group.
func (s *Store) Rollback(ctx context.Context) error {
	m := migrate.NewMigrator(s.db, migrations.Migrations)
	group, err := m.Rollback(ctx)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	s.log.Info(ctx, "rolled back migrations", logger.String("group", group.String()))
	return nil
}

// RunInTx runs fn in a serialisable transaction, retrying serialisation
// failures. fn must only touch the database.
func (s *Store) RunInTx(ctx context.Context, op string, fn func(ctx context.Context, tx bun.Tx) error) error {
	start := time.Now()
	var err error
	for attempt := 0; ; attempt++ {
		err = s.db.RunInTx(ctx, s.txOptions(), fn)
		if err == nil || !retryable(err) || attempt >= s.retries {
			break
		}
		s.log.Warn(ctx, "retrying transaction", logger.String("op", op), logger.Int("attempt", attempt+1))
	}
	outcome := "commit"
	if err != nil {
		outcome = "rollback"
	}
	metrics.RecordTransaction(op, outcome, float64(time.Since(start).Milliseconds()))
	return err
}

// txOptions asks PostgreSQL for serialisable isolation. SQLite serialises
// writers itself and rejects isolation levels.
func (s *Store) txOptions() *sql.TxOptions {
	if s.driver == config.DriverSQLite {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelSerializable}
}

func insert(ctx context.Context, db bun.IDB, op string, row any) error {
	_, err := db.NewInsert().Model(row).Exec(ctx)
	return wrap(op, err)
}

func insertAll[T any](ctx context.Context, db bun.IDB, op string, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := db.NewInsert().Model(&rows).Exec(ctx)
	return wrap(op, err)
}

// listWhere selects all rows of T matching column = value, in order.
func listWhere[T any](ctx context.Context, db bun.IDB, op, column string, value any, order ...string) ([]T, error) {
	var out []T
	q := db.NewSelect().Model(&out).Where("? = ?", bun.Ident(column), value)
	if len(order) > 0 {
		q = q.Order(order...)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, wrap(op, err)
	}
	return out, nil
}

// listInRound selects rows of T whose debate belongs to roundID.
func listInRound[T any](ctx context.Context, db bun.IDB, op, roundID string) ([]T, error) {
	var out []T
	debates := db.NewSelect().Model((*model.Debate)(nil)).Column("id").Where("round_id = ?", roundID)
	if err := db.NewSelect().Model(&out).Where("debate_id IN (?)", debates).Order("id").Scan(ctx); err != nil {
		return nil, wrap(op, err)
	}
	return out, nil
}

func getWhere[T any](ctx context.Context, db bun.IDB, op string, where string, args ...any) (*T, error) {
	row := new(T)
	if err := db.NewSelect().Model(row).Where(where, args...).Limit(1).Scan(ctx); err != nil {
		return nil, wrap(op, err)
	}
	return row, nil
}

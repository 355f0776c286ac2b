package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun/driver/pgdriver"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Sentinel kinds for store errors.
var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicate      = errors.New("duplicate row")
	ErrUnknownDriver  = errors.New("unknown database driver")
	ErrSerialization  = errors.New("transaction could not be serialised")
	ErrSnapshotFailed = errors.New("snapshot failed")
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
)

// wrap maps driver errors onto the sentinels.
func wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case sqlState(err) == pgUniqueViolation || sqliteCode(err) == sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return fmt.Errorf("%s: %w: %v", op, ErrDuplicate, err)
	case sqlState(err) == pgSerializationFailure:
		return fmt.Errorf("%s: %w: %v", op, ErrSerialization, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var bunErr pgdriver.Error
	if errors.As(err, &bunErr) {
		return bunErr.Field('C')
	}
	return ""
}

func sqliteCode(err error) int {
	var e *sqlite.Error
	if errors.As(err, &e) {
		return e.Code()
	}
	return 0
}

func retryable(err error) bool {
	return errors.Is(err, ErrSerialization) || sqlState(err) == pgSerializationFailure
}

// Package postgres: queries.go holds the shared query helpers:
// migration execution and error classification.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"fitplay.app/gametime/internal/common"
)

// SQLSTATE codes mapped onto the shared errors.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503" // referenced member does not exist
)

// DB is the query surface the repositories need.
// *pgxpool.Pool implements it; tests use a pgxmock pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ExecMigrationSQL runs one migration inside a transaction.
// A migration already listed in schema_migrations is skipped.
// Returns true when the migration was applied now.
func ExecMigrationSQL(ctx context.Context, pool *pgxpool.Pool, version int, sql string) (bool, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check migration: %w", err)
	}
	if exists {
		return false, nil
	}

	if _, err := tx.Exec(ctx, sql); err != nil {
		return false, fmt.Errorf("failed to run migration %d: %w", version, err)
	}

	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version) VALUES ($1)", version,
	); err != nil {
		return false, fmt.Errorf("failed to record migration version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Classify maps a pgx error onto the shared error taxonomy:
//   - pgx.ErrNoRows → common.ErrRecordNotFound
//   - unique violation → common.ErrAlreadyExists
//   - foreign key violation → common.ErrRecordNotFound
//   - any other server error (*pgconn.PgError) → returned as is
//   - everything else (dial, timeout, closed pool) → common.ErrStoreUnavailable
//
// Context cancellation by the caller is kept as is so it is not reported as an outage.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %v", common.ErrRecordNotFound, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%w: %s", common.ErrAlreadyExists, pgErr.ConstraintName)
		case foreignKeyViolation:
			return fmt.Errorf("%w: %s", common.ErrRecordNotFound, pgErr.ConstraintName)
		}
		return err
	}
	return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"fitplay.app/gametime/internal/common"
)

func TestClassify(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, Classify(nil))
	})

	t.Run("no rows", func(t *testing.T) {
		err := Classify(fmt.Errorf("scan: %w", pgx.ErrNoRows))
		assert.ErrorIs(t, err, common.ErrRecordNotFound)
	})

	t.Run("unique violation", func(t *testing.T) {
		err := Classify(&pgconn.PgError{Code: "23505", ConstraintName: "ledgers_pkey"})
		assert.ErrorIs(t, err, common.ErrAlreadyExists)
	})

	t.Run("foreign key violation", func(t *testing.T) {
		err := Classify(&pgconn.PgError{Code: "23503", ConstraintName: "streak_settings_parent_id_fkey"})
		assert.ErrorIs(t, err, common.ErrRecordNotFound)
	})

	t.Run("other server error kept", func(t *testing.T) {
		pgErr := &pgconn.PgError{Code: "23514"}
		err := Classify(pgErr)
		assert.False(t, errors.Is(err, common.ErrStoreUnavailable))
		var got *pgconn.PgError
		assert.True(t, errors.As(err, &got))
	})

	t.Run("connection failure", func(t *testing.T) {
		err := Classify(errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"))
		assert.ErrorIs(t, err, common.ErrStoreUnavailable)
	})

	t.Run("deadline", func(t *testing.T) {
		err := Classify(context.DeadlineExceeded)
		assert.ErrorIs(t, err, common.ErrStoreUnavailable)
	})

	t.Run("caller cancelled", func(t *testing.T) {
		err := Classify(context.Canceled)
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, errors.Is(err, common.ErrStoreUnavailable))
	})
}

package streak_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitplay.app/gametime/internal/common"
	"fitplay.app/gametime/internal/features/streak"
)

const settingsQuery = `FROM streak_settings`

func newMockRepository(t *testing.T) (pgxmock.PgxPoolIface, *streak.Repository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, streak.NewRepository(mock)
}

func TestRepositoryGet(t *testing.T) {
	mock, repo := newMockRepository(t)
	mock.ExpectQuery(settingsQuery).
		WithArgs(parentID).
		WillReturnRows(pgxmock.NewRows([]string{"base_minutes", "increment_minutes", "cap_minutes"}).
			AddRow(int64(10), int64(3), int64(40)))

	s, err := repo.Get(context.Background(), parentID)
	require.NoError(t, err)
	assert.Equal(t, streak.Settings{BaseMinutes: 10, IncrementMinutes: 3, CapMinutes: 40}, *s)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryGetMissing(t *testing.T) {
	mock, repo := newMockRepository(t)
	mock.ExpectQuery(settingsQuery).WithArgs(parentID).WillReturnError(pgx.ErrNoRows)

	_, err := repo.Get(context.Background(), parentID)
	assert.ErrorIs(t, err, common.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpsert(t *testing.T) {
	mock, repo := newMockRepository(t)
	mock.ExpectExec(`INSERT INTO streak_settings`).
		WithArgs(parentID, int64(5), int64(2), int64(60)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Upsert(context.Background(), parentID, streak.DefaultSettings()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpsertUnknownParent(t *testing.T) {
	mock, repo := newMockRepository(t)
	mock.ExpectExec(`INSERT INTO streak_settings`).
		WithArgs(parentID, int64(5), int64(2), int64(60)).
		WillReturnError(&pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"})

	err := repo.Upsert(context.Background(), parentID, streak.DefaultSettings())
	assert.ErrorIs(t, err, common.ErrRecordNotFound)
	assert.Equal(t, 404, common.StatusFor(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

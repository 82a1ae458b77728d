package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitplay.app/gametime/internal/common"
	"fitplay.app/gametime/internal/features/ledger"
)

const (
	lockQuery   = `FROM ledgers WHERE user_id = \$1 FOR UPDATE`
	updateQuery = `UPDATE ledgers`
)

var ledgerColumns = []string{
	"user_id", "parent_id", "earned_minutes",
	"lifetime_used_minutes", "today_used_minutes",
	"daily_limit_minutes", "weekly_limit_minutes", "daily_earned_minutes_today",
	"timer_running", "timer_started_at",
	"streak_count", "longest_streak", "streak_bonus_minutes",
	"last_activity_date", "last_daily_reset_date", "reminder_sent_on",
	"created_at", "updated_at",
}

// ledgerRow is a stored record: 40 earned, 12.5 used in total, 2 today.
func ledgerRow(created time.Time) *pgxmock.Rows {
	parent := "7a9e4c2b-1d3f-4e5a-8b6c-0f1e2d3c4b5a"
	reset := time.Date(created.Year(), created.Month(), created.Day(), 0, 0, 0, 0, time.UTC)
	return pgxmock.NewRows(ledgerColumns).AddRow(
		childID, &parent, int64(40),
		"12.5", "2.0",
		int64(60), int64(420), int64(10),
		false, (*time.Time)(nil),
		3, 5, int64(9),
		(*time.Time)(nil), &reset, (*time.Time)(nil),
		created, created,
	)
}

func newMockRepository(t *testing.T) (pgxmock.PgxPoolIface, *ledger.Repository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, ledger.NewRepository(mock)
}

func TestRepositoryUpdateCommits(t *testing.T) {
	mock, repo := newMockRepository(t)
	created := time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC)
	written := created.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs(childID).WillReturnRows(ledgerRow(created))
	mock.ExpectQuery(updateQuery).
		WithArgs(
			childID, int64(55), "12.5", "2", // earned and used minutes
			int64(75), int64(25),            // daily limit, daily earned
			false, pgxmock.AnyArg(),
			3, 5, int64(9),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), int64(420),
		).
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(written))
	mock.ExpectCommit()

	rec, err := repo.Update(context.Background(), childID, func(rec *ledger.Record) error {
		assert.Equal(t, "12.5", rec.LifetimeUsedMinutes.String())
		require.NotNil(t, rec.ParentID)
		rec.EarnedMinutes += 15
		rec.DailyLimitMinutes += 15
		rec.DailyEarnedMinutesToday += 15
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(55), rec.EarnedMinutes)
	assert.Equal(t, int64(420), rec.WeeklyLimitMinutes)
	assert.Equal(t, written, rec.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpdateRollsBackOnRuleError(t *testing.T) {
	mock, repo := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs(childID).WillReturnRows(ledgerRow(time.Now().UTC()))
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), childID, func(*ledger.Record) error {
		return common.ErrAlreadyRunning
	})
	assert.ErrorIs(t, err, common.ErrAlreadyRunning)
	assert.NoError(t, mock.ExpectationsWereMet(), "nothing written, transaction rolled back")
}

func TestRepositoryUpdateMissingRecord(t *testing.T) {
	mock, repo := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs(childID).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	called := false
	_, err := repo.Update(context.Background(), childID, func(*ledger.Record) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, common.ErrRecordNotFound)
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpdateCommitFailure(t *testing.T) {
	mock, repo := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs(childID).WillReturnRows(ledgerRow(time.Now().UTC()))
	mock.ExpectQuery(updateQuery).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(time.Now().UTC()))
	mock.ExpectCommit().WillReturnError(errors.New("connection reset by peer"))

	_, err := repo.Update(context.Background(), childID, func(*ledger.Record) error { return nil })
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryBeginFailure(t *testing.T) {
	mock, repo := newMockRepository(t)
	mock.ExpectBegin().WillReturnError(errors.New("dial tcp: connection refused"))

	_, err := repo.Update(context.Background(), childID, func(*ledger.Record) error { return nil })
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryDeleteMissing(t *testing.T) {
	mock, repo := newMockRepository(t)
	mock.ExpectExec(`DELETE FROM ledgers WHERE user_id = \$1`).
		WithArgs(childID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.Delete(context.Background(), childID)
	assert.ErrorIs(t, err, common.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

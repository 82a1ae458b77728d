package challenge_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitplay.app/gametime/internal/common"
	"fitplay.app/gametime/internal/features/challenge"
)

const (
	requestID   = "0a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d"
	challengeID = "6e5d4c3b-2a19-4f8e-8d7c-6b5a49382716"
)

var requestCols = []string{"id", "child_id", "challenge_id", "status", "created_at", "responded_at"}

func newMockRepository(t *testing.T) (pgxmock.PgxPoolIface, *challenge.Repository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, challenge.NewRepository(mock)
}

func TestRepositoryApproveGrantsUnlock(t *testing.T) {
	mock, repo := newMockRepository(t)
	at := time.Date(2025, 5, 20, 18, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE challenge_requests`).
		WithArgs(requestID, "approved", at).
		WillReturnRows(pgxmock.NewRows(requestCols).
			AddRow(requestID, childID, challengeID, "approved", at.Add(-time.Hour), &at))
	mock.ExpectExec(`INSERT INTO challenge_unlocks`).
		WithArgs(childID, challengeID, at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	req, err := repo.Respond(context.Background(), requestID, challenge.StatusApproved, at)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusApproved, req.Status)
	assert.Equal(t, childID, req.ChildID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryRejectWritesNoUnlock(t *testing.T) {
	mock, repo := newMockRepository(t)
	at := time.Date(2025, 5, 20, 18, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE challenge_requests`).
		WithArgs(requestID, "rejected", at).
		WillReturnRows(pgxmock.NewRows(requestCols).
			AddRow(requestID, childID, challengeID, "rejected", at.Add(-time.Hour), &at))
	mock.ExpectCommit()

	_, err := repo.Respond(context.Background(), requestID, challenge.StatusRejected, at)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryRespondTwice(t *testing.T) {
	mock, repo := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE challenge_requests`).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Respond(context.Background(), requestID, challenge.StatusApproved, time.Now())
	assert.ErrorIs(t, err, common.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryDuplicateCompletion(t *testing.T) {
	mock, repo := newMockRepository(t)
	mock.ExpectQuery(`INSERT INTO challenge_completions`).
		WithArgs(childID, challengeID, int64(20)).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.InsertCompletion(context.Background(), &challenge.Completion{ChildID: childID, ChallengeID: challengeID, RewardMinutes: 20})
	assert.ErrorIs(t, err, common.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

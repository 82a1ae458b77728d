// Package challenge: repository.go works with the challenge tables.
// Answering a request and granting the unlock happen in one transaction.
package challenge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"fitplay.app/gametime/internal/common"
	"fitplay.app/gametime/internal/db/postgres"
)

const challengeColumns = `id, title, description, reward_minutes, created_by, created_at`

const requestColumns = `id, child_id, challenge_id, status, created_at, responded_at`

// Repository is the PostgreSQL Store.
type Repository struct {
	db postgres.DB
}

// NewRepository creates a challenge repository.
func NewRepository(db postgres.DB) *Repository {
	return &Repository{db: db}
}

// CreateChallenge inserts c and fills its id and creation time.
func (r *Repository) CreateChallenge(ctx context.Context, c *Challenge) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO challenges (id, title, description, reward_minutes, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, c.ID, c.Title, c.Description, c.RewardMinutes, c.CreatedBy).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create challenge: %w", postgres.Classify(err))
	}
	return nil
}

// GetChallenge returns challenge id.
func (r *Repository) GetChallenge(ctx context.Context, id string) (*Challenge, error) {
	var c Challenge
	err := r.db.QueryRow(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE id = $1`, id).Scan(
		&c.ID, &c.Title, &c.Description, &c.RewardMinutes, &c.CreatedBy, &c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("challenge not found (id=%s): %w", id, postgres.Classify(err))
	}
	return &c, nil
}

// ListChallenges returns the catalog, newest first.
func (r *Repository) ListChallenges(ctx context.Context) ([]*Challenge, error) {
	rows, err := r.db.Query(ctx, `SELECT `+challengeColumns+` FROM challenges ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", postgres.Classify(err))
	}
	defer rows.Close()

	out := make([]*Challenge, 0)
	for rows.Next() {
		var c Challenge
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.RewardMinutes, &c.CreatedBy, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", postgres.Classify(err))
	}
	return out, nil
}

// UnlockedIDs returns the challenges childID may complete.
func (r *Repository) UnlockedIDs(ctx context.Context, childID string) (map[string]bool, error) {
	return r.idSet(ctx, `SELECT challenge_id FROM challenge_unlocks WHERE child_id = $1`, childID)
}

// CompletedIDs returns the challenges childID already completed.
func (r *Repository) CompletedIDs(ctx context.Context, childID string) (map[string]bool, error) {
	return r.idSet(ctx, `SELECT challenge_id FROM challenge_completions WHERE child_id = $1`, childID)
}

func (r *Repository) idSet(ctx context.Context, query, childID string) (map[string]bool, error) {
	rows, err := r.db.Query(ctx, query, childID)
	if err != nil {
		return nil, fmt.Errorf("failed to query challenge ids: %w", postgres.Classify(err))
	}
	defer rows.Close()

	set := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan challenge_id: %w", err)
		}
		set[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query challenge ids: %w", postgres.Classify(err))
	}
	return set, nil
}

// IsUnlocked reports whether childID holds an unlock for challengeID.
func (r *Repository) IsUnlocked(ctx context.Context, childID, challengeID string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM challenge_unlocks WHERE child_id = $1 AND challenge_id = $2)
	`, childID, challengeID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check unlock: %w", postgres.Classify(err))
	}
	return ok, nil
}

// CreateRequest stores a pending request.
// A second pending request for the same pair yields ErrAlreadyExists.
func (r *Repository) CreateRequest(ctx context.Context, req *Request) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Status = StatusPending
	err := r.db.QueryRow(ctx, `
		INSERT INTO challenge_requests (id, child_id, challenge_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, req.ID, req.ChildID, req.ChallengeID, string(req.Status)).Scan(&req.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create unlock request: %w", postgres.Classify(err))
	}
	return nil
}

// GetRequest returns request id.
func (r *Repository) GetRequest(ctx context.Context, id string) (*Request, error) {
	req, err := scanRequest(r.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM challenge_requests WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("unlock request not found (id=%s): %w", id, postgres.Classify(err))
	}
	return req, nil
}

// ListPending returns open requests of parentID's children, oldest first.
func (r *Repository) ListPending(ctx context.Context, parentID string) ([]*Request, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+requestColumns+`
		FROM challenge_requests
		WHERE status = 'pending'
		  AND child_id IN (SELECT id FROM members WHERE parent_id = $1)
		ORDER BY created_at, id
	`, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unlock requests: %w", postgres.Classify(err))
	}
	defer rows.Close()

	out := make([]*Request, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unlock request: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list unlock requests: %w", postgres.Classify(err))
	}
	return out, nil
}

// Respond moves a pending request to status. Approval also grants the unlock.
// A request that is no longer pending yields ErrAlreadyExists.
func (r *Repository) Respond(ctx context.Context, id string, status Status, at time.Time) (*Request, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", postgres.Classify(err))
	}
	defer tx.Rollback(ctx)

	// Step 1: only a pending request can be answered
	req, err := scanRequest(tx.QueryRow(ctx, `
		UPDATE challenge_requests
		SET status = $2, responded_at = $3
		WHERE id = $1 AND status = 'pending'
		RETURNING `+requestColumns,
		id, string(status), at,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("unlock request %s already answered: %w", id, common.ErrAlreadyExists)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to answer unlock request: %w", postgres.Classify(err))
	}

	// Step 2: grant the unlock
	if status == StatusApproved {
		if _, err := tx.Exec(ctx, `
			INSERT INTO challenge_unlocks (child_id, challenge_id, unlocked_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (child_id, challenge_id) DO NOTHING
		`, req.ChildID, req.ChallengeID, at); err != nil {
			return nil, fmt.Errorf("failed to unlock challenge: %w", postgres.Classify(err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit unlock answer: %w", postgres.Classify(err))
	}
	return req, nil
}

// InsertCompletion records c. A repeated completion yields ErrAlreadyExists.
func (r *Repository) InsertCompletion(ctx context.Context, c *Completion) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO challenge_completions (child_id, challenge_id, reward_minutes)
		VALUES ($1, $2, $3)
		RETURNING completed_at
	`, c.ChildID, c.ChallengeID, c.RewardMinutes).Scan(&c.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to record completion: %w", postgres.Classify(err))
	}
	return nil
}

// DeleteCompletion removes a completion whose reward could not be credited.
func (r *Repository) DeleteCompletion(ctx context.Context, childID, challengeID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM challenge_completions WHERE child_id = $1 AND challenge_id = $2`, childID, challengeID)
	if err != nil {
		return fmt.Errorf("failed to delete completion: %w", postgres.Classify(err))
	}
	return nil
}

func scanRequest(row pgx.Row) (*Request, error) {
	var (
		req    Request
		status string
	)
	if err := row.Scan(&req.ID, &req.ChildID, &req.ChallengeID, &status, &req.CreatedAt, &req.RespondedAt); err != nil {
		return nil, err
	}
	req.Status = Status(status)
	return &req, nil
}

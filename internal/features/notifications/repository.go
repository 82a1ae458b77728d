// Package notifications: repository.go works with the notifications table.
package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"fitplay.app/gametime/internal/common"
	"fitplay.app/gametime/internal/db/postgres"
)

// Repository stores notifications in Postgres.
type Repository struct {
	db postgres.DB
}

// NewRepository creates a notifications repository.
func NewRepository(db postgres.DB) *Repository {
	return &Repository{db: db}
}

// Insert saves n, filling ID and CreatedAt.
func (r *Repository) Insert(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	query := `
		INSERT INTO notifications (id, child_id, from_name, message, bonus_minutes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query, n.ID, n.ChildID, n.FromName, n.Message, n.BonusMinutes).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", postgres.Classify(err))
	}
	return nil
}

// List returns up to limit notifications of childID, newest first.
func (r *Repository) List(ctx context.Context, childID string, limit int) ([]*Notification, error) {
	query := `
		SELECT id, child_id, from_name, message, bonus_minutes, read, created_at
		FROM notifications
		WHERE child_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, childID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", postgres.Classify(err))
	}
	defer rows.Close()

	out := make([]*Notification, 0)
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.ChildID, &n.FromName, &n.Message, &n.BonusMinutes, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read notifications: %w", postgres.Classify(err))
	}
	return out, nil
}

// MarkRead flags notification id of childID as read.
func (r *Repository) MarkRead(ctx context.Context, childID, id string) error {
	query := `UPDATE notifications SET read = TRUE WHERE id = $1 AND child_id = $2`
	tag, err := r.db.Exec(ctx, query, id, childID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", postgres.Classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification %s: %w", id, common.ErrRecordNotFound)
	}
	return nil
}

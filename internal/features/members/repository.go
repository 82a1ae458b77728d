// Package members: repository.go runs every query against the members table.
package members

import (
	"context"
	"fmt"

	"fitplay.app/gametime/internal/common"
	"fitplay.app/gametime/internal/db/postgres"
)

const memberColumns = `id, email, name, account_type, parent_id, telegram_chat_id, created_at, updated_at`

// Repository is the PostgreSQL Store.
type Repository struct {
	db postgres.DB
}

func NewRepository(db postgres.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts m. A duplicate e-mail yields ErrAlreadyExists.
func (r *Repository) Create(ctx context.Context, m *Member) error {
	query := `
		INSERT INTO members (id, email, name, account_type, parent_id)
		VALUES ($1, LOWER($2), $3, $4, $5)
		RETURNING email, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, m.ID, m.Email, m.Name, m.AccountType, m.ParentID).
		Scan(&m.Email, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		// 23505 on the e-mail index becomes ErrAlreadyExists
		return fmt.Errorf("failed to create member (email=%s): %w", m.Email, postgres.Classify(err))
	}
	return nil
}

// GetByID: ErrRecordNotFound when absent.
func (r *Repository) GetByID(ctx context.Context, id string) (*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`
	var m Member
	err := r.db.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.Email, &m.Name, &m.AccountType, &m.ParentID, &m.TelegramChatID, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("member (id=%s): %w", id, postgres.Classify(err))
	}
	return &m, nil
}

// ListChildren returns parentID's children ordered by name.
func (r *Repository) ListChildren(ctx context.Context, parentID string) ([]*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE parent_id = $1 ORDER BY name, id`
	return r.queryMembers(ctx, query, parentID)
}

// ListByIDs loads several members in one round trip. Unknown ids are skipped.
func (r *Repository) ListByIDs(ctx context.Context, ids []string) ([]*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = ANY($1::uuid[])`
	return r.queryMembers(ctx, query, ids)
}

// Delete removes the member; ledger, notifications and activities go with it (ON DELETE CASCADE).
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM members WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", postgres.Classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("member (id=%s): %w", id, common.ErrRecordNotFound)
	}
	return nil
}

// SetTelegramChat stores or clears (nil) the chat that receives forwarded notifications.
func (r *Repository) SetTelegramChat(ctx context.Context, id string, chatID *int64) error {
	query := `UPDATE members SET telegram_chat_id = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, id, chatID); err != nil {
		return fmt.Errorf("failed to update telegram chat: %w", postgres.Classify(err))
	}
	return nil
}

func (r *Repository) queryMembers(ctx context.Context, query string, args ...any) ([]*Member, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", postgres.Classify(err))
	}
	defer rows.Close()

	out := make([]*Member, 0)
	for rows.Next() {
		var m Member
		if err := rows.Scan(
			&m.ID, &m.Email, &m.Name, &m.AccountType, &m.ParentID, &m.TelegramChatID, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		out = append(out, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read members: %w", postgres.Classify(err))
	}

	return out, nil
}

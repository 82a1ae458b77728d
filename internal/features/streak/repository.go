// Package streak: repository.go stores parent reward settings in streak_settings.
package streak

import (
	"context"
	"fmt"

	"fitplay.app/gametime/internal/db/postgres"
)

// Repository reads and writes streak_settings.
type Repository struct {
	db postgres.DB
}

// NewRepository creates a settings repository.
func NewRepository(db postgres.DB) *Repository {
	return &Repository{db: db}
}

// Get returns the settings of parentID. ErrRecordNotFound when none were saved.
func (r *Repository) Get(ctx context.Context, parentID string) (*Settings, error) {
	query := `
		SELECT base_minutes, increment_minutes, cap_minutes
		FROM streak_settings
		WHERE parent_id = $1
	`
	var s Settings
	err := r.db.QueryRow(ctx, query, parentID).Scan(&s.BaseMinutes, &s.IncrementMinutes, &s.CapMinutes)
	if err != nil {
		return nil, fmt.Errorf("streak settings (parent_id=%s): %w", parentID, postgres.Classify(err))
	}
	return &s, nil
}

// Upsert saves the settings of parentID.
func (r *Repository) Upsert(ctx context.Context, parentID string, s Settings) error {
	query := `
		INSERT INTO streak_settings (parent_id, base_minutes, increment_minutes, cap_minutes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (parent_id) DO UPDATE
		SET base_minutes = EXCLUDED.base_minutes,
		    increment_minutes = EXCLUDED.increment_minutes,
		    cap_minutes = EXCLUDED.cap_minutes,
		    updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, parentID, s.BaseMinutes, s.IncrementMinutes, s.CapMinutes)
	if err != nil {
		return fmt.Errorf("failed to save streak settings: %w", postgres.Classify(err))
	}
	return nil
}

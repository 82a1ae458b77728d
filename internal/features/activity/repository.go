// Package activity: repository.go works with the activities table.
package activity

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"fitplay.app/gametime/internal/db/postgres"
	"fitplay.app/gametime/internal/features/streak"
)

const activityColumns = `id, user_id, source, external_id, title, type, distance_km, duration_minutes,
	avg_heart_rate, intensity, earned_minutes, activity_date, created_at`

// Repository stores activities in Postgres.
type Repository struct {
	db postgres.DB
}

// NewRepository creates an activities repository.
func NewRepository(db postgres.DB) *Repository {
	return &Repository{db: db}
}

// Insert saves a. A repeated (user_id, source, external_id) yields ErrAlreadyExists.
func (r *Repository) Insert(ctx context.Context, a *Activity) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	query := `
		INSERT INTO activities (id, user_id, source, external_id, title, type, distance_km,
			duration_minutes, avg_heart_rate, intensity, earned_minutes, activity_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		a.ID, a.UserID, string(a.Source), a.ExternalID, a.Title, a.Type, a.DistanceKM,
		a.DurationMinutes, a.AvgHeartRate, a.Intensity, a.EarnedMinutes, a.ActivityDate,
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", postgres.Classify(err))
	}
	return nil
}

// Delete removes activity id.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM activities WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete activity: %w", postgres.Classify(err))
	}
	return nil
}

// List returns the newest activities of userID.
func (r *Repository) List(ctx context.Context, userID string, limit int) ([]*Activity, error) {
	query := `SELECT ` + activityColumns + `
		FROM activities
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", postgres.Classify(err))
	}
	defer rows.Close()

	out := make([]*Activity, 0)
	for rows.Next() {
		var a Activity
		var source string
		if err := rows.Scan(
			&a.ID, &a.UserID, &source, &a.ExternalID, &a.Title, &a.Type, &a.DistanceKM,
			&a.DurationMinutes, &a.AvgHeartRate, &a.Intensity, &a.EarnedMinutes, &a.ActivityDate, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		a.Source = streak.Source(source)
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read activities: %w", postgres.Classify(err))
	}
	return out, nil
}

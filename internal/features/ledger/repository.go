// Package ledger: repository.go runs all queries against the ledgers table.
// Read-modify-write goes through Update, which locks the row with FOR UPDATE
// inside a transaction so concurrent processes are serialised as well.
package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"fitplay.app/gametime/internal/db/postgres"
)

// Used minutes are NUMERIC; they travel as text to keep decimal precision.
const recordColumns = `
	user_id, parent_id, earned_minutes,
	lifetime_used_minutes::text, today_used_minutes::text,
	daily_limit_minutes, weekly_limit_minutes, daily_earned_minutes_today,
	timer_running, timer_started_at,
	streak_count, longest_streak, streak_bonus_minutes,
	last_activity_date, last_daily_reset_date, reminder_sent_on,
	created_at, updated_at`

// Repository is the PostgreSQL Store.
type Repository struct {
	db postgres.DB
}

// NewRepository creates a ledger repository.
func NewRepository(db postgres.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new record. ErrAlreadyExists when the user already has one.
func (r *Repository) Create(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO ledgers (user_id, parent_id, earned_minutes, lifetime_used_minutes,
		                     today_used_minutes, daily_limit_minutes, weekly_limit_minutes,
		                     daily_earned_minutes_today, timer_running, streak_count, longest_streak,
		                     streak_bonus_minutes, last_daily_reset_date)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, $8, FALSE, 0, 0, 0, $9)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		rec.UserID, rec.ParentID, rec.EarnedMinutes,
		rec.LifetimeUsedMinutes.String(), rec.TodayUsedMinutes.String(),
		rec.DailyLimitMinutes, rec.WeeklyLimitMinutes, rec.DailyEarnedMinutesToday, rec.LastDailyResetDate,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ledger (user_id=%s): %w", rec.UserID, postgres.Classify(err))
	}
	return nil
}

// Get returns the record of userID.
func (r *Repository) Get(ctx context.Context, userID string) (*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM ledgers WHERE user_id = $1`
	rec, err := scanRecord(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("ledger not found (user_id=%s): %w", userID, postgres.Classify(err))
	}
	return rec, nil
}

// Update locks the row, applies fn and writes the result in one transaction.
func (r *Repository) Update(ctx context.Context, userID string, fn func(rec *Record) error) (*Record, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", postgres.Classify(err))
	}
	defer tx.Rollback(ctx)

	// Step 1: read and lock the row
	rec, err := scanRecord(tx.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM ledgers WHERE user_id = $1 FOR UPDATE`, userID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to lock ledger (user_id=%s): %w", userID, postgres.Classify(err))
	}

	// Step 2: business rules
	if err := fn(rec); err != nil {
		return nil, err
	}

	// Step 3: write every mutable column back
	err = tx.QueryRow(ctx, `
		UPDATE ledgers
		SET earned_minutes = $2, lifetime_used_minutes = $3::numeric, today_used_minutes = $4::numeric,
		    daily_limit_minutes = $5, daily_earned_minutes_today = $6,
		    timer_running = $7, timer_started_at = $8,
		    streak_count = $9, longest_streak = $10, streak_bonus_minutes = $11,
		    last_activity_date = $12, last_daily_reset_date = $13, reminder_sent_on = $14,
		    parent_id = $15, weekly_limit_minutes = $16, updated_at = NOW()
		WHERE user_id = $1
		RETURNING updated_at
	`,
		rec.UserID, rec.EarnedMinutes, rec.LifetimeUsedMinutes.String(), rec.TodayUsedMinutes.String(),
		rec.DailyLimitMinutes, rec.DailyEarnedMinutesToday,
		rec.TimerRunning, rec.TimerStartedAt,
		rec.StreakCount, rec.LongestStreak, rec.StreakBonusMinutes,
		rec.LastActivityDate, rec.LastDailyResetDate, rec.ReminderSentOn,
		rec.ParentID, rec.WeeklyLimitMinutes,
	).Scan(&rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update ledger (user_id=%s): %w", userID, postgres.Classify(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit ledger update: %w", postgres.Classify(err))
	}
	return rec, nil
}

// Delete removes the record of userID.
func (r *Repository) Delete(ctx context.Context, userID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM ledgers WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete ledger: %w", postgres.Classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to delete ledger (user_id=%s): %w", userID, postgres.Classify(pgx.ErrNoRows))
	}
	return nil
}

// ListUserIDs returns every ledger owner. Used by the daily reset job.
func (r *Repository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT user_id FROM ledgers ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledgers: %w", postgres.Classify(err))
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user_id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list ledgers: %w", postgres.Classify(err))
	}
	return ids, nil
}

// ListByMinStreak returns records with streak_count >= minStreak.
// Used for streak reminders.
func (r *Repository) ListByMinStreak(ctx context.Context, minStreak int) ([]*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM ledgers WHERE streak_count >= $1 ORDER BY user_id`
	return r.queryRecords(ctx, query, minStreak)
}

// Top returns the records with the most earned minutes.
func (r *Repository) Top(ctx context.Context, limit int) ([]*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM ledgers ORDER BY earned_minutes DESC, user_id LIMIT $1`
	return r.queryRecords(ctx, query, limit)
}

func (r *Repository) queryRecords(ctx context.Context, query string, args ...any) ([]*Record, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledgers: %w", postgres.Classify(err))
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query ledgers: %w", postgres.Classify(err))
	}
	return out, nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec                 Record
		lifetimeUsed, today string
	)
	err := row.Scan(
		&rec.UserID, &rec.ParentID, &rec.EarnedMinutes,
		&lifetimeUsed, &today,
		&rec.DailyLimitMinutes, &rec.WeeklyLimitMinutes, &rec.DailyEarnedMinutesToday,
		&rec.TimerRunning, &rec.TimerStartedAt,
		&rec.StreakCount, &rec.LongestStreak, &rec.StreakBonusMinutes,
		&rec.LastActivityDate, &rec.LastDailyResetDate, &rec.ReminderSentOn,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if rec.LifetimeUsedMinutes, err = decimal.NewFromString(lifetimeUsed); err != nil {
		return nil, fmt.Errorf("bad lifetime_used_minutes %q: %w", lifetimeUsed, err)
	}
	if rec.TodayUsedMinutes, err = decimal.NewFromString(today); err != nil {
		return nil, fmt.Errorf("bad today_used_minutes %q: %w", today, err)
	}
	return &rec, nil
}

// Package app: migrations.go lists the schema versions in order.
// A released migration is never edited; changes go into a new version.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"fitplay.app/gametime/internal/db/postgres"
)

// Migrate applies every pending migration in order.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if err := postgres.EnsureMigrationsTable(ctx, pool); err != nil {
		return err
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001Members},
		{2, migration002Ledgers},
		{3, migration003StreakSettings},
		{4, migration004Notifications},
		{5, migration005Activities},
		{6, migration006Challenges},
		{7, migration007WeeklyLimit},
	}

	for _, m := range migrations {
		applied, err := postgres.ExecMigrationSQL(ctx, pool, m.version, m.sql)
		if err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		if applied {
			log.Infof("Migration %d applied", m.version)
		}
	}

	return nil
}

// SQL migrations are embedded in code to keep deployment a single binary.

var migration001Members = `
CREATE TABLE IF NOT EXISTS members (
    id UUID PRIMARY KEY,
    email VARCHAR(254) UNIQUE NOT NULL,
    name VARCHAR(100) NOT NULL DEFAULT '',
    account_type VARCHAR(10) NOT NULL CHECK (account_type IN ('parent', 'child')),
    parent_id UUID REFERENCES members(id) ON DELETE CASCADE,
    telegram_chat_id BIGINT,
    created_at TIMESTAMPTZ DEFAULT NOW(),
    updated_at TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_members_parent_id ON members(parent_id);
`

var migration002Ledgers = `
CREATE TABLE IF NOT EXISTS ledgers (
    user_id UUID PRIMARY KEY REFERENCES members(id) ON DELETE CASCADE,
    parent_id UUID,
    earned_minutes BIGINT NOT NULL DEFAULT 0,
    lifetime_used_minutes NUMERIC(12,1) NOT NULL DEFAULT 0,
    today_used_minutes NUMERIC(12,1) NOT NULL DEFAULT 0,
    daily_limit_minutes BIGINT NOT NULL DEFAULT 60,
    daily_earned_minutes_today BIGINT NOT NULL DEFAULT 0,
    timer_running BOOLEAN NOT NULL DEFAULT FALSE,
    timer_started_at TIMESTAMPTZ,
    streak_count INTEGER NOT NULL DEFAULT 0,
    longest_streak INTEGER NOT NULL DEFAULT 0,
    streak_bonus_minutes BIGINT NOT NULL DEFAULT 0,
    last_activity_date DATE,
    last_daily_reset_date DATE,
    reminder_sent_on DATE,
    created_at TIMESTAMPTZ DEFAULT NOW(),
    updated_at TIMESTAMPTZ DEFAULT NOW(),
    CHECK (timer_running = (timer_started_at IS NOT NULL))
);
CREATE INDEX IF NOT EXISTS idx_ledgers_earned ON ledgers(earned_minutes DESC);
CREATE INDEX IF NOT EXISTS idx_ledgers_streak ON ledgers(streak_count);
`

var migration003StreakSettings = `
CREATE TABLE IF NOT EXISTS streak_settings (
    parent_id UUID PRIMARY KEY REFERENCES members(id) ON DELETE CASCADE,
    base_minutes BIGINT NOT NULL DEFAULT 5,
    increment_minutes BIGINT NOT NULL DEFAULT 2,
    cap_minutes BIGINT NOT NULL DEFAULT 60,
    updated_at TIMESTAMPTZ DEFAULT NOW()
);
`

var migration004Notifications = `
CREATE TABLE IF NOT EXISTS notifications (
    id UUID PRIMARY KEY,
    child_id UUID NOT NULL REFERENCES members(id) ON DELETE CASCADE,
    from_name VARCHAR(100) NOT NULL,
    message TEXT NOT NULL,
    bonus_minutes BIGINT NOT NULL DEFAULT 0,
    read BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_notifications_child ON notifications(child_id, created_at DESC);
`

var migration005Activities = `
CREATE TABLE IF NOT EXISTS activities (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES members(id) ON DELETE CASCADE,
    source VARCHAR(20) NOT NULL,
    external_id VARCHAR(128),
    title VARCHAR(200) NOT NULL,
    type VARCHAR(32) NOT NULL,
    distance_km DOUBLE PRECISION NOT NULL DEFAULT 0,
    duration_minutes INTEGER NOT NULL DEFAULT 0,
    avg_heart_rate DOUBLE PRECISION,
    intensity VARCHAR(10) NOT NULL,
    earned_minutes BIGINT NOT NULL,
    activity_date DATE NOT NULL,
    created_at TIMESTAMPTZ DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_activities_external
    ON activities(user_id, source, external_id) WHERE external_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_activities_user ON activities(user_id, created_at DESC);
`

var migration006Challenges = `
CREATE TABLE IF NOT EXISTS challenges (
    id UUID PRIMARY KEY,
    title VARCHAR(200) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    reward_minutes BIGINT NOT NULL CHECK (reward_minutes >= 0),
    created_by UUID REFERENCES members(id) ON DELETE SET NULL,
    created_at TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS challenge_requests (
    id UUID PRIMARY KEY,
    child_id UUID NOT NULL REFERENCES members(id) ON DELETE CASCADE,
    challenge_id UUID NOT NULL REFERENCES challenges(id) ON DELETE CASCADE,
    status VARCHAR(16) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
    created_at TIMESTAMPTZ DEFAULT NOW(),
    responded_at TIMESTAMPTZ
);
-- at most one open request per child and challenge
CREATE UNIQUE INDEX IF NOT EXISTS idx_challenge_requests_pending
    ON challenge_requests(child_id, challenge_id) WHERE status = 'pending';

CREATE TABLE IF NOT EXISTS challenge_unlocks (
    child_id UUID NOT NULL REFERENCES members(id) ON DELETE CASCADE,
    challenge_id UUID NOT NULL REFERENCES challenges(id) ON DELETE CASCADE,
    unlocked_at TIMESTAMPTZ DEFAULT NOW(),
    PRIMARY KEY (child_id, challenge_id)
);

CREATE TABLE IF NOT EXISTS challenge_completions (
    child_id UUID NOT NULL REFERENCES members(id) ON DELETE CASCADE,
    challenge_id UUID NOT NULL REFERENCES challenges(id) ON DELETE CASCADE,
    reward_minutes BIGINT NOT NULL,
    completed_at TIMESTAMPTZ DEFAULT NOW(),
    PRIMARY KEY (child_id, challenge_id)
);
`

// Informational for now: the timer enforces the daily limit only.
var migration007WeeklyLimit = `
ALTER TABLE ledgers ADD COLUMN IF NOT EXISTS weekly_limit_minutes BIGINT NOT NULL DEFAULT 420;
`

// Package ledger keeps the per-child game-time ledger: earned and used minutes,
// the play timer, the daily limit and the streak fields.
// models.go describes the stored record and the values computed from it.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Record is one child's ledger row.
// Used minutes carry half-minute precision because timer stops round to 0.5m.
type Record struct {
	UserID                  string          `json:"user_id"`
	ParentID                *string         `json:"parent_id,omitempty"`        // Used to look up streak settings
	EarnedMinutes           int64           `json:"earned_minutes"`             // Cumulative credits
	LifetimeUsedMinutes     decimal.Decimal `json:"lifetime_used_minutes"`      // Never reset, feeds the balance
	TodayUsedMinutes        decimal.Decimal `json:"today_used_minutes"`         // Reset at rollover
	DailyLimitMinutes       int64           `json:"daily_limit_minutes"`        // Raised by every credit
	WeeklyLimitMinutes      int64           `json:"weekly_limit_minutes"`       // Set by the parent, informational
	DailyEarnedMinutesToday int64           `json:"daily_earned_minutes_today"` // Non-persistent credits of today
	TimerRunning            bool            `json:"timer_running"`
	TimerStartedAt          *time.Time      `json:"timer_started_at,omitempty"` // Set iff TimerRunning
	StreakCount             int             `json:"streak_count"`
	LongestStreak           int             `json:"longest_streak"`       // Personal best
	StreakBonusMinutes      int64           `json:"streak_bonus_minutes"` // Last computed reward
	LastActivityDate        *time.Time      `json:"last_activity_date,omitempty"`
	LastDailyResetDate      *time.Time      `json:"last_daily_reset_date,omitempty"`
	ReminderSentOn          *time.Time      `json:"reminder_sent_on,omitempty"` // Date of the last streak reminder
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
}

// Clone returns a deep copy, so callers can mutate without aliasing pointers.
func (r *Record) Clone() *Record {
	c := *r
	c.ParentID = clonePtr(r.ParentID)
	c.TimerStartedAt = clonePtr(r.TimerStartedAt)
	c.LastActivityDate = clonePtr(r.LastActivityDate)
	c.LastDailyResetDate = clonePtr(r.LastDailyResetDate)
	c.ReminderSentOn = clonePtr(r.ReminderSentOn)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Balance is the view a child or parent sees.
// UsedMinutes and TodayUsedMinutes already include the running timer.
type Balance struct {
	UserID                string          `json:"user_id"`
	EarnedMinutes         int64           `json:"earned_minutes"`
	UsedMinutes           decimal.Decimal `json:"used_minutes"`
	RunningMinutes        decimal.Decimal `json:"running_minutes"`
	BalanceMinutes        decimal.Decimal `json:"balance_minutes"`
	DailyLimitMinutes     int64           `json:"daily_limit_minutes"`
	WeeklyLimitMinutes    int64           `json:"weekly_limit_minutes"`
	TodayUsedMinutes      decimal.Decimal `json:"today_used_minutes"`
	RemainingTodayMinutes decimal.Decimal `json:"remaining_today_minutes"`
	DailyEarnedToday      int64           `json:"daily_earned_minutes_today"`
	TimerRunning          bool            `json:"timer_running"`
	TimerStartedAt        *time.Time      `json:"timer_started_at,omitempty"`
	StreakCount           int             `json:"streak_count"`
	LongestStreak         int             `json:"longest_streak"`
	StreakBonusMinutes    int64           `json:"streak_bonus_minutes"`
	LastActivityDate      string          `json:"last_activity_date,omitempty"`
	Stale                 bool            `json:"stale"` // Served from the snapshot cache
	AsOf                  time.Time       `json:"as_of"`
}

// StopResult is returned by StopTimer.
type StopResult struct {
	WasRunning      bool            `json:"was_running"`
	MinutesRecorded decimal.Decimal `json:"minutes_recorded"`
	Balance         *Balance        `json:"balance"`
}

// ResetReport describes what a daily reset did to one record.
type ResetReport struct {
	UserID           string          `json:"user_id"`
	Applied          bool            `json:"applied"`
	RevertedMinutes  int64           `json:"reverted_minutes"`  // daily_earned_minutes_today before reset
	Clamped          bool            `json:"clamped"`           // earned or limit would have gone negative
	DiscardedTimer   bool            `json:"discarded_timer"`   // a running timer was force-stopped
	DiscardedMinutes decimal.Decimal `json:"discarded_minutes"` // its elapsed time, not counted
	PreviousReset    *time.Time      `json:"previous_reset,omitempty"`
}

// ResetSummary aggregates ResetAll.
type ResetSummary struct {
	Total    int `json:"total"`
	Applied  int `json:"applied"`
	Clamped  int `json:"clamped"`
	Failures int `json:"failures"`
}

// Bonus is a parent credit with an optional personal message.
type Bonus struct {
	Minutes    int64
	Persistent bool
	From       string
	Message    string
}

// Package ledger: timer.go holds the play-timer rules.
// Elapsed time is counted in half minutes: a stop after 125s records 2.0m.
package ledger

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"fitplay.app/gametime/internal/common"
)

const halfMinute = 30 * time.Second

// RoundHalfMinutes converts elapsed time to minutes rounded to the nearest 0.5.
// Exact halves round to even (75s → 1.0m, 105s → 2.0m). Negative input gives 0.
func RoundHalfMinutes(elapsed time.Duration) decimal.Decimal {
	if elapsed <= 0 {
		return decimal.Zero
	}
	units := int64(math.RoundToEven(elapsed.Seconds() / halfMinute.Seconds()))
	return decimal.New(units*5, -1)
}

// PeekElapsedMinutes returns the running timer's minutes without changing anything.
// Zero when no timer runs.
func PeekElapsedMinutes(rec *Record, now time.Time) decimal.Decimal {
	if !rec.TimerRunning || rec.TimerStartedAt == nil {
		return decimal.Zero
	}
	return RoundHalfMinutes(now.Sub(*rec.TimerStartedAt))
}

// startTimer marks the timer as running from now.
func startTimer(rec *Record, now time.Time) error {
	if rec.TimerRunning {
		return common.ErrAlreadyRunning
	}
	started := now.UTC()
	rec.TimerRunning = true
	rec.TimerStartedAt = &started
	return nil
}

// stopTimer adds the elapsed minutes to both used counters and clears the timer.
// A stop without a running timer records nothing.
func stopTimer(rec *Record, now time.Time) (decimal.Decimal, bool) {
	wasRunning := rec.TimerRunning && rec.TimerStartedAt != nil
	minutes := decimal.Zero
	if wasRunning {
		minutes = RoundHalfMinutes(now.Sub(*rec.TimerStartedAt))
		rec.LifetimeUsedMinutes = rec.LifetimeUsedMinutes.Add(minutes)
		rec.TodayUsedMinutes = rec.TodayUsedMinutes.Add(minutes)
	}
	rec.TimerRunning = false
	rec.TimerStartedAt = nil
	return minutes, wasRunning
}

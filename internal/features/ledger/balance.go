package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"fitplay.app/gametime/internal/common"
)

// ComputeBalance renders rec as a Balance at instant now.
//
//	used    = lifetime_used + running
//	balance = max(0, earned - used)
//	remaining_today = max(0, limit - (today_used + running))
func ComputeBalance(rec *Record, now time.Time) Balance {
	running := PeekElapsedMinutes(rec, now)
	used := rec.LifetimeUsedMinutes.Add(running)
	todayUsed := rec.TodayUsedMinutes.Add(running)

	b := Balance{
		UserID:                rec.UserID,
		EarnedMinutes:         rec.EarnedMinutes,
		UsedMinutes:           used,
		RunningMinutes:        running,
		BalanceMinutes:        clampZero(decimal.NewFromInt(rec.EarnedMinutes).Sub(used)),
		DailyLimitMinutes:     rec.DailyLimitMinutes,
		WeeklyLimitMinutes:    rec.WeeklyLimitMinutes,
		TodayUsedMinutes:      todayUsed,
		RemainingTodayMinutes: clampZero(decimal.NewFromInt(rec.DailyLimitMinutes).Sub(todayUsed)),
		DailyEarnedToday:      rec.DailyEarnedMinutesToday,
		TimerRunning:          rec.TimerRunning,
		TimerStartedAt:        clonePtr(rec.TimerStartedAt),
		StreakCount:           rec.StreakCount,
		LongestStreak:         rec.LongestStreak,
		StreakBonusMinutes:    rec.StreakBonusMinutes,
		LastActivityDate:      common.FormatDate(rec.LastActivityDate),
		AsOf:                  now.UTC(),
	}
	return b
}

func clampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

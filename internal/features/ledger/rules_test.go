package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitplay.app/gametime/internal/common"
)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestRoundHalfMinutes(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		want    string
	}{
		{125 * time.Second, "2"},  // 4.17 units → 4
		{20 * time.Second, "0.5"}, // 0.67 units → 1
		{14 * time.Second, "0"},   // 0.47 units → 0
		{15 * time.Second, "0"},   // exact half rounds to even (0)
		{45 * time.Second, "1"},   // 1.5 units → 2
		{75 * time.Second, "1"},   // 2.5 units → 2
		{90 * time.Second, "1.5"}, // 3 units
		{60 * time.Minute, "60"},
		{-5 * time.Second, "0"}, // clock skew
	}
	for _, tt := range tests {
		t.Run(tt.elapsed.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, RoundHalfMinutes(tt.elapsed).String())
		})
	}
}

func TestTimerRules(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	t.Run("start then stop", func(t *testing.T) {
		rec := &Record{UserID: "u"}
		require.NoError(t, startTimer(rec, now))
		assert.True(t, rec.TimerRunning)
		require.NotNil(t, rec.TimerStartedAt)

		minutes, was := stopTimer(rec, now.Add(125*time.Second))
		assert.True(t, was)
		assert.Equal(t, "2", minutes.String())
		assert.Equal(t, "2", rec.LifetimeUsedMinutes.String())
		assert.Equal(t, "2", rec.TodayUsedMinutes.String())
		assert.False(t, rec.TimerRunning)
		assert.Nil(t, rec.TimerStartedAt)
	})

	t.Run("start twice keeps first start", func(t *testing.T) {
		rec := &Record{UserID: "u"}
		require.NoError(t, startTimer(rec, now))
		err := startTimer(rec, now.Add(time.Minute))
		assert.ErrorIs(t, err, common.ErrAlreadyRunning)
		assert.Equal(t, now, *rec.TimerStartedAt)
	})

	t.Run("stop idle timer records nothing", func(t *testing.T) {
		rec := &Record{UserID: "u", LifetimeUsedMinutes: decimal.NewFromInt(7)}
		minutes, was := stopTimer(rec, now)
		assert.False(t, was)
		assert.True(t, minutes.IsZero())
		assert.Equal(t, "7", rec.LifetimeUsedMinutes.String())
	})

	t.Run("peek does not mutate", func(t *testing.T) {
		rec := &Record{UserID: "u"}
		require.NoError(t, startTimer(rec, now))
		assert.Equal(t, "1.5", PeekElapsedMinutes(rec, now.Add(95*time.Second)).String())
		assert.True(t, rec.TimerRunning)
		assert.True(t, rec.LifetimeUsedMinutes.IsZero())
	})
}

func TestComputeBalance(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	t.Run("debt is clamped", func(t *testing.T) {
		rec := &Record{UserID: "u", EarnedMinutes: 10, LifetimeUsedMinutes: decimal.NewFromInt(15)}
		b := ComputeBalance(rec, now)
		assert.True(t, b.BalanceMinutes.IsZero())
		assert.Equal(t, "15", b.UsedMinutes.String())
	})

	t.Run("running timer counts", func(t *testing.T) {
		started := now.Add(-10 * time.Minute)
		rec := &Record{
			UserID:              "u",
			EarnedMinutes:       30,
			DailyLimitMinutes:   60,
			LifetimeUsedMinutes: decimal.NewFromInt(5),
			TodayUsedMinutes:    decimal.NewFromInt(5),
			TimerRunning:        true,
			TimerStartedAt:      &started,
			LastActivityDate:    day(2025, 5, 31),
		}
		b := ComputeBalance(rec, now)
		assert.Equal(t, "10", b.RunningMinutes.String())
		assert.Equal(t, "15", b.UsedMinutes.String())
		assert.Equal(t, "15", b.BalanceMinutes.String())
		assert.Equal(t, "45", b.RemainingTodayMinutes.String())
		assert.Equal(t, "2025-05-31", b.LastActivityDate)
	})
}

func TestApplyDailyReset(t *testing.T) {
	now := time.Date(2025, 6, 2, 0, 5, 0, 0, time.UTC)

	t.Run("reverts daily credits", func(t *testing.T) {
		// 50 credited yesterday with persistent=false
		rec := &Record{
			UserID:                  "u",
			EarnedMinutes:           80,
			DailyLimitMinutes:       110,
			DailyEarnedMinutesToday: 50,
			LifetimeUsedMinutes:     decimal.NewFromInt(12),
			TodayUsedMinutes:        decimal.NewFromInt(12),
			LastDailyResetDate:      day(2025, 6, 1),
		}
		report := applyDailyReset(rec, now)

		assert.True(t, report.Applied)
		assert.Equal(t, int64(50), report.RevertedMinutes)
		assert.False(t, report.Clamped)
		assert.Equal(t, int64(30), rec.EarnedMinutes)
		assert.Equal(t, int64(60), rec.DailyLimitMinutes)
		assert.Equal(t, int64(0), rec.DailyEarnedMinutesToday)
		assert.True(t, rec.TodayUsedMinutes.IsZero())
		assert.Equal(t, "12", rec.LifetimeUsedMinutes.String())
		assert.Equal(t, *day(2025, 6, 2), *rec.LastDailyResetDate)
	})

	t.Run("second run same day is a no-op", func(t *testing.T) {
		rec := &Record{UserID: "u", EarnedMinutes: 10, DailyEarnedMinutesToday: 10, LastDailyResetDate: day(2025, 6, 1)}
		applyDailyReset(rec, now)
		snapshot := *rec
		report := applyDailyReset(rec, now.Add(time.Hour))
		assert.False(t, report.Applied)
		assert.Equal(t, snapshot, *rec)
	})

	t.Run("clamps inconsistent totals", func(t *testing.T) {
		rec := &Record{UserID: "u", EarnedMinutes: 5, DailyLimitMinutes: 3, DailyEarnedMinutesToday: 20, LastDailyResetDate: day(2025, 6, 1)}
		report := applyDailyReset(rec, now)
		assert.True(t, report.Clamped)
		assert.Equal(t, int64(0), rec.EarnedMinutes)
		assert.Equal(t, int64(0), rec.DailyLimitMinutes)
	})

	t.Run("discards timer spanning midnight", func(t *testing.T) {
		started := time.Date(2025, 6, 1, 23, 50, 0, 0, time.UTC)
		rec := &Record{
			UserID:              "u",
			TimerRunning:        true,
			TimerStartedAt:      &started,
			LifetimeUsedMinutes: decimal.Zero,
			LastDailyResetDate:  day(2025, 6, 1),
		}
		report := applyDailyReset(rec, now)
		assert.True(t, report.DiscardedTimer)
		assert.Equal(t, "15", report.DiscardedMinutes.String())
		assert.False(t, rec.TimerRunning)
		assert.Nil(t, rec.TimerStartedAt)
		assert.True(t, rec.LifetimeUsedMinutes.IsZero())
	})

	t.Run("never reset record is reset", func(t *testing.T) {
		rec := &Record{UserID: "u"}
		report := applyDailyReset(rec, now)
		assert.True(t, report.Applied)
		assert.Nil(t, report.PreviousReset)
	})
}

func TestLocker(t *testing.T) {
	l := NewLocker()

	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("child")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, l.size())

	// Different users do not block each other.
	unlockA := l.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := l.Lock("b")
		unlockB()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock for b blocked on a")
	}
	unlockA()
}

func TestRecordClone(t *testing.T) {
	parent := "p"
	rec := &Record{UserID: "u", ParentID: &parent, LastActivityDate: day(2025, 6, 1)}
	c := rec.Clone()
	*c.ParentID = "other"
	*c.LastActivityDate = time.Time{}
	assert.Equal(t, "p", *rec.ParentID)
	assert.Equal(t, *day(2025, 6, 1), *rec.LastActivityDate)
}

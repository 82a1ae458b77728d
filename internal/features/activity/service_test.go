package activity_test

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitplay.app/gametime/internal/clock"
	"fitplay.app/gametime/internal/common"
	"fitplay.app/gametime/internal/features/activity"
	"fitplay.app/gametime/internal/features/ledger"
	"fitplay.app/gametime/internal/features/ledger/ledgertest"
	"fitplay.app/gametime/internal/features/streak"
)

const childID = "c3a1f2e4-5b6d-4e7f-8a9b-0c1d2e3f4a5b"

type memStore struct {
	mu    sync.Mutex
	items map[string]*activity.Activity
}

func (m *memStore) Insert(_ context.Context, a *activity.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ExternalID != nil {
		for _, other := range m.items {
			if other.UserID == a.UserID && other.Source == a.Source && other.ExternalID != nil && *other.ExternalID == *a.ExternalID {
				return fmt.Errorf("activity: %w", common.ErrAlreadyExists)
			}
		}
	}
	a.ID = uuid.NewString()
	a.CreatedAt = time.Now()
	c := *a
	m.items[a.ID] = &c
	return nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *memStore) List(_ context.Context, userID string, limit int) ([]*activity.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*activity.Activity, 0)
	for _, a := range m.items {
		if a.UserID == userID && len(out) < limit {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

type fixture struct {
	clock   *clock.Manual
	store   *memStore
	ledgers *ledgertest.MemoryStore
	ledger  *ledger.Service
	service *activity.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   &memStore{items: map[string]*activity.Activity{}},
		ledgers: ledgertest.NewMemoryStore(),
	}
	f.clock = clock.NewManual(time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC))
	f.ledger = ledger.NewService(f.ledgers, f.clock, nil, nil, nil, ledger.Options{DefaultDailyLimit: 60})
	streaks := streak.NewService(nil, f.ledger, streak.Options{Enabled: true, Defaults: streak.DefaultSettings()})
	f.service = activity.NewService(f.store, f.ledger, streaks, rand.New(rand.NewPCG(1, 2)))
	_, err := f.ledger.Create(context.Background(), childID, nil)
	require.NoError(t, err)
	return f
}

func run(date string) activity.Input {
	return activity.Input{Title: "Morning run", Type: "Run", DistanceKM: 5, DurationMinutes: 25, Date: date}
}

func TestLogToday(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.service.Log(ctx, childID, run(""))
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(6), res.Activity.EarnedMinutes)
	assert.Equal(t, activity.IntensityMedium, res.Activity.Intensity)
	assert.Equal(t, int64(6), res.CreditedMinutes)
	require.NotNil(t, res.Streak)
	assert.Equal(t, int64(5), res.Streak.RewardMinutes)

	rec, err := f.ledger.Get(ctx, childID)
	require.NoError(t, err)
	assert.Equal(t, int64(11), rec.EarnedMinutes)
	assert.Equal(t, int64(71), rec.DailyLimitMinutes)
	assert.Equal(t, int64(6), rec.DailyEarnedMinutesToday)
}

func TestLogPastDayIsCreditedPersistently(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.service.Log(ctx, childID, run("2025-06-09"))
	require.NoError(t, err)
	assert.Equal(t, int64(6), res.CreditedMinutes)
	require.NotNil(t, res.Streak)
	assert.Equal(t, 1, res.Streak.StreakCount)

	rec, err := f.ledger.Get(ctx, childID)
	require.NoError(t, err)
	assert.Equal(t, int64(6+5), rec.EarnedMinutes)
	assert.Equal(t, int64(0), rec.DailyEarnedMinutesToday, "a past day is not a daily credit")

	res, err = f.service.Log(ctx, childID, run("2025-06-10T07:30:00Z"))
	require.NoError(t, err)
	assert.Equal(t, int64(6), res.CreditedMinutes)
	assert.Equal(t, 2, res.Streak.StreakCount)
	assert.Equal(t, int64(7), res.Streak.RewardMinutes)

	rec, err = f.ledger.Get(ctx, childID)
	require.NoError(t, err)
	assert.Equal(t, int64(6+5+6+7), rec.EarnedMinutes)
	assert.Equal(t, int64(6), rec.DailyEarnedMinutesToday)

	// Midnight takes back only today's daily credit
	f.clock.Advance(24 * time.Hour)
	_, err = f.ledger.ResetIfNeeded(ctx, childID)
	require.NoError(t, err)
	rec, err = f.ledger.Get(ctx, childID)
	require.NoError(t, err)
	assert.Equal(t, int64(6+5+7), rec.EarnedMinutes)
}

func TestLogRejectsFutureDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, date := range []string{"2025-06-11", "2025-06-11T06:00:00Z", "2025-07-09"} {
		_, err := f.service.Log(ctx, childID, run(date))
		assert.ErrorIs(t, err, common.ErrInvalidInput, date)
	}
	assert.Equal(t, 0, f.store.count())

	rec, err := f.ledger.Get(ctx, childID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rec.EarnedMinutes)
	assert.Equal(t, 0, rec.StreakCount)
}

func TestLogDuplicateExternalID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := run("")
	in.Source = streak.SourceTracker
	in.ExternalID = "strava-991"

	first, err := f.service.Log(ctx, childID, in)
	require.NoError(t, err)
	require.True(t, first.Applied)

	second, err := f.service.Log(ctx, childID, in)
	require.NoError(t, err)
	assert.False(t, second.Applied)
	assert.Equal(t, activity.ReasonDuplicate, second.Reason)

	rec, err := f.ledger.Get(ctx, childID)
	require.NoError(t, err)
	assert.Equal(t, int64(11), rec.EarnedMinutes)
	assert.Equal(t, 1, f.store.count())
}

func TestLogValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Log(ctx, childID, activity.Input{Type: "Run"})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = f.service.Log(ctx, childID, run("06/10/2025"))
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = f.service.Log(ctx, uuid.NewString(), run(""))
	assert.ErrorIs(t, err, common.ErrRecordNotFound)
	assert.Equal(t, 0, f.store.count())
}

func TestLogRollsBackWhenCreditFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Get succeeds, the credit's Update fails.
	failing := &failingUpdates{MemoryStore: f.ledgers}
	clk := clock.NewManual(time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC))
	led := ledger.NewService(failing, clk, nil, nil, nil, ledger.Options{})
	svc := activity.NewService(f.store, led, streak.NewService(nil, led, streak.Options{}), nil)

	_, err := svc.Log(ctx, childID, run(""))
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
	assert.Equal(t, 0, f.store.count())
}

type failingUpdates struct {
	*ledgertest.MemoryStore
}

func (failingUpdates) Update(context.Context, string, func(*ledger.Record) error) (*ledger.Record, error) {
	return nil, common.ErrStoreUnavailable
}

func TestSimulate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.service.Simulate(ctx, childID, 8)
	require.NoError(t, err)
	assert.Equal(t, 8, res.Created)
	assert.Equal(t, 8, f.store.count())
	assert.Positive(t, res.CreditedMinutes)

	rec, err := f.ledger.Get(ctx, childID)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.StreakCount, "only today's activity counts for the streak")
	assert.Equal(t, res.CreditedMinutes, rec.DailyEarnedMinutesToday)

	stored, err := f.service.List(ctx, childID, 100)
	require.NoError(t, err)
	for _, a := range stored {
		assert.Equal(t, activity.SimulatedEarnedMinutes(a.DistanceKM, a.Intensity), a.EarnedMinutes, a.Title)
	}

	_, err = f.service.Simulate(ctx, childID, 0)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	_, err = f.service.Simulate(ctx, childID, activity.MaxSimulated+1)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestHandlers(t *testing.T) {
	f := newFixture(t)
	r := chi.NewRouter()
	r.Route("/api/children/{childID}", activity.NewHandler(f.service).Routes)
	base := "/api/children/" + childID

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, base+"/activities",
		strings.NewReader(`{"title":"Ride","type":"Ride","distance_km":20,"duration_minutes":60}`)))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"earned_minutes":27`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, base+"/activities",
		strings.NewReader(`{"title":"Ride","type":"Ride","intensity":"Extreme"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, base+"/activities/simulate", strings.NewReader(`{"count":3}`)))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":3`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, base+"/activities/simulate", strings.NewReader(`{"count":500}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, base+"/activities", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

package members_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitplay.app/gametime/internal/clock"
	"fitplay.app/gametime/internal/common"
	"fitplay.app/gametime/internal/features/ledger"
	"fitplay.app/gametime/internal/features/ledger/ledgertest"
	"fitplay.app/gametime/internal/features/members"
)

type memberStore struct {
	mu   sync.Mutex
	byID map[string]*members.Member
}

func newMemberStore() *memberStore {
	return &memberStore{byID: map[string]*members.Member{}}
}

func (s *memberStore) Create(_ context.Context, m *members.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.Email = strings.ToLower(m.Email)
	for _, other := range s.byID {
		if other.Email == m.Email {
			return fmt.Errorf("member %s: %w", m.Email, common.ErrAlreadyExists)
		}
	}
	m.CreatedAt = time.Now()
	c := *m
	s.byID[m.ID] = &c
	return nil
}

func (s *memberStore) GetByID(_ context.Context, id string) (*members.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("member %s: %w", id, common.ErrRecordNotFound)
	}
	c := *m
	return &c, nil
}

func (s *memberStore) ListChildren(_ context.Context, parentID string) ([]*members.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*members.Member, 0)
	for _, m := range s.byID {
		if m.ParentID != nil && *m.ParentID == parentID {
			c := *m
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memberStore) ListByIDs(_ context.Context, ids []string) ([]*members.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*members.Member, 0)
	for _, id := range ids {
		if m, ok := s.byID[id]; ok {
			c := *m
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *memberStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return fmt.Errorf("member %s: %w", id, common.ErrRecordNotFound)
	}
	delete(s.byID, id)
	return nil
}

func (s *memberStore) SetTelegramChat(_ context.Context, id string, chatID *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[id].TelegramChatID = chatID
	return nil
}

type fixture struct {
	members *memberStore
	ledgers *ledgertest.MemoryStore
	ledger  *ledger.Service
	service *members.Service
}

func newFixture() *fixture {
	f := &fixture{members: newMemberStore(), ledgers: ledgertest.NewMemoryStore()}
	clk := clock.NewManual(time.Date(2025, 5, 4, 12, 0, 0, 0, time.UTC))
	f.ledger = ledger.NewService(f.ledgers, clk, nil, nil, nil, ledger.Options{DefaultDailyLimit: 60})
	f.service = members.NewService(f.members, f.ledger)
	return f
}

func TestAddChildCreatesLedger(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	parent, err := f.service.CreateParent(ctx, "Anna", "Anna@Example.com")
	require.NoError(t, err)
	assert.Equal(t, members.TypeParent, parent.AccountType)

	child, err := f.service.AddChild(ctx, parent.ID, "Mia", "mia@example.com")
	require.NoError(t, err)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, parent.ID, *child.ParentID)

	rec, err := f.ledger.Get(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(60), rec.DailyLimitMinutes)
	assert.Equal(t, parent.ID, *rec.ParentID)

	list, err := f.service.ListChildren(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Balance)
	assert.Equal(t, "60", list[0].Balance.RemainingTodayMinutes.String())
}

func TestAddChildRules(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	parent, err := f.service.CreateParent(ctx, "Anna", "anna@example.com")
	require.NoError(t, err)
	child, err := f.service.AddChild(ctx, parent.ID, "Mia", "mia@example.com")
	require.NoError(t, err)

	_, err = f.service.AddChild(ctx, child.ID, "Kid", "kid@example.com")
	assert.ErrorIs(t, err, common.ErrNotParent)

	_, err = f.service.AddChild(ctx, parent.ID, "Mia again", "MIA@example.com")
	assert.ErrorIs(t, err, common.ErrAlreadyExists)

	_, err = f.service.AddChild(ctx, "9b2f0000-0000-4000-8000-000000000000", "Kid", "kid@example.com")
	assert.ErrorIs(t, err, common.ErrRecordNotFound)
}

func TestAddChildRollsBackWhenLedgerFails(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	parent, err := f.service.CreateParent(ctx, "Anna", "anna@example.com")
	require.NoError(t, err)

	f.ledgers.SetErr(common.ErrStoreUnavailable)
	_, err = f.service.AddChild(ctx, parent.ID, "Mia", "mia@example.com")
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
	f.ledgers.SetErr(nil)

	children, err := f.members.ListChildren(ctx, parent.ID)
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestDeleteChild(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	anna, _ := f.service.CreateParent(ctx, "Anna", "anna@example.com")
	bob, _ := f.service.CreateParent(ctx, "Bob", "bob@example.com")
	child, err := f.service.AddChild(ctx, anna.ID, "Mia", "mia@example.com")
	require.NoError(t, err)

	assert.ErrorIs(t, f.service.DeleteChild(ctx, bob.ID, child.ID), common.ErrNotYourChild)

	require.NoError(t, f.service.DeleteChild(ctx, anna.ID, child.ID))
	_, err = f.ledger.Get(ctx, child.ID)
	assert.ErrorIs(t, err, common.ErrRecordNotFound)
	_, err = f.members.GetByID(ctx, child.ID)
	assert.ErrorIs(t, err, common.ErrRecordNotFound)
}

func TestIsParent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	anna, _ := f.service.CreateParent(ctx, "Anna", "anna@example.com")
	child, err := f.service.AddChild(ctx, anna.ID, "Mia", "mia@example.com")
	require.NoError(t, err)

	ok, err := f.service.IsParent(ctx, anna.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.service.IsParent(ctx, child.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.service.IsParent(ctx, "d3000000-0000-4000-8000-000000000000")
	assert.ErrorIs(t, err, common.ErrRecordNotFound)
}

func TestParentChat(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	parent, _ := f.service.CreateParent(ctx, "Anna", "anna@example.com")
	child, _ := f.service.AddChild(ctx, parent.ID, "Mia", "mia@example.com")

	_, name, ok, err := f.service.ParentChat(ctx, child.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "Mia", name)

	chat := int64(4242)
	require.NoError(t, f.service.SetTelegramChat(ctx, parent.ID, &chat))
	id, _, ok, err := f.service.ParentChat(ctx, child.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, chat, id)

	assert.ErrorIs(t, f.service.SetTelegramChat(ctx, child.ID, &chat), common.ErrNotParent)
}

func TestLeaderboard(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	parent, _ := f.service.CreateParent(ctx, "Anna", "anna@example.com")
	mia, _ := f.service.AddChild(ctx, parent.ID, "Mia", "mia@example.com")
	leo, _ := f.service.AddChild(ctx, parent.ID, "Leo", "leo@example.com")

	_, err := f.ledger.AddEarnedAndIncreaseLimit(ctx, leo.ID, 30, true)
	require.NoError(t, err)
	_, err = f.ledger.AddEarnedAndIncreaseLimit(ctx, mia.ID, 10, true)
	require.NoError(t, err)

	board, err := f.service.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, "Leo", board[0].Name)
	assert.Equal(t, int64(30), board[0].EarnedMinutes)
	assert.Equal(t, "Mia", board[1].Name)
}

func TestHandlers(t *testing.T) {
	f := newFixture()
	h := members.NewHandler(f.service)
	r := chi.NewRouter()
	r.Post("/api/parents", h.CreateParent)
	r.Route("/api/parents/{parentID}", h.ParentRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/parents",
		strings.NewReader(`{"name":"Anna","email":"not-an-email"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	parent, err := f.service.CreateParent(context.Background(), "Anna", "anna@example.com")
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/parents/"+parent.ID+"/children",
		strings.NewReader(`{"name":"Mia","email":"mia@example.com"}`)))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"account_type":"child"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/parents/"+parent.ID+"/children", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Mia"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/parents/not-a-uuid/children", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

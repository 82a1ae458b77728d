// Package ledgertest provides an in-memory ledger.Store for tests of the
// ledger and of the packages built on top of it.
package ledgertest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"fitplay.app/gametime/internal/common"
	"fitplay.app/gametime/internal/features/ledger"
)

// MemoryStore implements ledger.Store on a map.
// Set Err to make every call fail, e.g. with common.ErrStoreUnavailable.
// UpdateErr fails only Update, so reads keep working.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*ledger.Record

	Err       error
	UpdateErr error
	Updates   int // number of committed Update calls
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*ledger.Record)}
}

// Put stores rec as is, bypassing Create. Handy for arranging test state.
func (s *MemoryStore) Put(rec *ledger.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.UserID] = rec.Clone()
}

func (s *MemoryStore) Create(_ context.Context, rec *ledger.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.records[rec.UserID]; ok {
		return fmt.Errorf("ledger %s: %w", rec.UserID, common.ErrAlreadyExists)
	}
	now := time.Now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now
	s.records[rec.UserID] = rec.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, userID string) (*ledger.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	rec, ok := s.records[userID]
	if !ok {
		return nil, fmt.Errorf("ledger %s: %w", userID, common.ErrRecordNotFound)
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, userID string, fn func(rec *ledger.Record) error) (*ledger.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if s.UpdateErr != nil {
		return nil, s.UpdateErr
	}
	cur, ok := s.records[userID]
	if !ok {
		return nil, fmt.Errorf("ledger %s: %w", userID, common.ErrRecordNotFound)
	}
	work := cur.Clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	work.UpdatedAt = time.Now().UTC()
	s.records[userID] = work.Clone()
	s.Updates++
	return work, nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.records[userID]; !ok {
		return fmt.Errorf("ledger %s: %w", userID, common.ErrRecordNotFound)
	}
	delete(s.records, userID)
	return nil
}

func (s *MemoryStore) ListUserIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) ListByMinStreak(_ context.Context, minStreak int) ([]*ledger.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []*ledger.Record
	for _, rec := range s.records {
		if rec.StreakCount >= minStreak {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *MemoryStore) Top(_ context.Context, limit int) ([]*ledger.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]*ledger.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EarnedMinutes != out[j].EarnedMinutes {
			return out[i].EarnedMinutes > out[j].EarnedMinutes
		}
		return out[i].UserID < out[j].UserID
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SetErr sets Err under the store lock.
func (s *MemoryStore) SetErr(err error) {
	s.mu.Lock()
	s.Err = err
	s.mu.Unlock()
}

// SetUpdateErr sets UpdateErr under the store lock.
func (s *MemoryStore) SetUpdateErr(err error) {
	s.mu.Lock()
	s.UpdateErr = err
	s.mu.Unlock()
}

// Notice is one captured notification.
type Notice struct {
	ChildID      string
	From         string
	Message      string
	BonusMinutes int64
}

// RecordingNotifier captures notifications in memory.
type RecordingNotifier struct {
	mu      sync.Mutex
	Notices []Notice
}

func (n *RecordingNotifier) Notify(_ context.Context, childID, from, message string, bonusMinutes int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Notices = append(n.Notices, Notice{ChildID: childID, From: from, Message: message, BonusMinutes: bonusMinutes})
	return nil
}

// All returns a copy of the captured notices.
func (n *RecordingNotifier) All() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notice(nil), n.Notices...)
}

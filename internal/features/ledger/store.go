package ledger

import (
	"context"
)

// Store persists ledger records.
// Update must run fn on a locked copy of the row and write it back atomically;
// an error from fn discards every change.
type Store interface {
	Create(ctx context.Context, rec *Record) error
	Get(ctx context.Context, userID string) (*Record, error)
	Update(ctx context.Context, userID string, fn func(rec *Record) error) (*Record, error)
	Delete(ctx context.Context, userID string) error
	ListUserIDs(ctx context.Context) ([]string, error)
	ListByMinStreak(ctx context.Context, minStreak int) ([]*Record, error)
	Top(ctx context.Context, limit int) ([]*Record, error)
}

// SnapshotCache keeps the last balance served per user.
// Get returns (nil, nil) when nothing is cached.
type SnapshotCache interface {
	Put(ctx context.Context, b *Balance) error
	Get(ctx context.Context, userID string) (*Balance, error)
}

// Notifier appends an entry to a child's notification list.
type Notifier interface {
	Notify(ctx context.Context, childID, from, message string, bonusMinutes int64) error
}

// Publisher pushes fresh balances to live subscribers.
type Publisher interface {
	PublishBalance(b Balance)
}

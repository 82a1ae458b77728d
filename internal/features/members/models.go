// Package members manages parent and child accounts.
// models.go describes the rows of the members table.
package members

import (
	"time"

	"fitplay.app/gametime/internal/features/ledger"
)

// Account types.
const (
	TypeParent = "parent"
	TypeChild  = "child"
)

// Member is a row of the members table.
type Member struct {
	ID             string    `json:"id"`                         // UUID
	Email          string    `json:"email"`                      // Unique
	Name           string    `json:"name"`                       // Shown in notifications and the leaderboard
	AccountType    string    `json:"account_type"`               // parent | child
	ParentID       *string   `json:"parent_id,omitempty"`        // Set for children
	TelegramChatID *int64    `json:"telegram_chat_id,omitempty"` // Parents only, for forwarding
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DisplayName returns the name, falling back to the e-mail local part.
func (m *Member) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	for i, c := range m.Email {
		if c == '@' {
			return m.Email[:i]
		}
	}
	return m.Email
}

// IsParent reports whether m is a parent account.
func (m *Member) IsParent() bool { return m.AccountType == TypeParent }

// ChildSummary is a child with its current balance.
// Balance is nil when the ledger could not be read.
type ChildSummary struct {
	Member  *Member         `json:"member"`
	Balance *ledger.Balance `json:"balance,omitempty"`
}

// LeaderboardEntry is one row of the leaderboard.
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	ChildID       string `json:"child_id"`
	Name          string `json:"name"`
	EarnedMinutes int64  `json:"earned_minutes"`
	StreakCount   int    `json:"streak_count"`
	LongestStreak int    `json:"longest_streak"`
}

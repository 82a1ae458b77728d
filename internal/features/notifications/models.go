// Package notifications keeps the per-child list of messages from parents
// and from the system (bonuses, timer events, streak rewards).
package notifications

import "time"

// Notification is one entry of a child's list.
type Notification struct {
	ID           string    `json:"id"`
	ChildID      string    `json:"child_id"`
	FromName     string    `json:"from"`
	Message      string    `json:"message"`
	BonusMinutes int64     `json:"bonus_minutes"` // 0 when nothing was credited
	Read         bool      `json:"read"`
	CreatedAt    time.Time `json:"created_at"`
}

// DefaultListLimit caps List when the caller passes no limit.
const DefaultListLimit = 50

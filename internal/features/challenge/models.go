// Package challenge runs the challenge catalog: a child asks to unlock a
// challenge, the parent approves or rejects, and completing an unlocked
// challenge credits its reward once.
// models.go describes the stored rows and the views built from them.
package challenge

import "time"

// Status of an unlock request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Parent answers to an unlock request.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// ReasonAlreadyCompleted is returned when a challenge was completed before.
const ReasonAlreadyCompleted = "already completed"

// MaxRewardMinutes bounds the reward of one challenge.
const MaxRewardMinutes = 1440

// Challenge is a row of the challenges table.
type Challenge struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	RewardMinutes int64     `json:"reward_minutes"`
	CreatedBy     *string   `json:"created_by,omitempty"` // Parent that added it, nil for seeded ones
	CreatedAt     time.Time `json:"created_at"`
}

// ChildChallenge is a catalog entry as one child sees it.
type ChildChallenge struct {
	Challenge
	Locked    bool `json:"locked"`
	Completed bool `json:"completed"`
}

// Request is a child's unlock request.
type Request struct {
	ID          string     `json:"id"`
	ChildID     string     `json:"child_id"`
	ChallengeID string     `json:"challenge_id"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

// Completion marks a challenge as done by a child.
type Completion struct {
	ChildID       string    `json:"child_id"`
	ChallengeID   string    `json:"challenge_id"`
	RewardMinutes int64     `json:"reward_minutes"` // Reward at completion time
	CompletedAt   time.Time `json:"completed_at"`
}

// NewChallenge is what a parent submits to add a challenge.
type NewChallenge struct {
	Title         string `json:"title" validate:"required,max=200"`
	Description   string `json:"description" validate:"max=2000"`
	RewardMinutes *int64 `json:"reward_minutes" validate:"required,gte=0,lte=1440"`
}

// CompleteResult is the outcome of Complete.
type CompleteResult struct {
	Applied       bool   `json:"applied"`
	Reason        string `json:"reason,omitempty"`
	RewardMinutes int64  `json:"reward_minutes"`
}

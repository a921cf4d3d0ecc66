package domain

import "time"

// PriceImpactMeasurement is one price-impact reading taken during a follow-up attempt.
type PriceImpactMeasurement struct {
	Coin          string    `json:"coin"`
	ImpactPercent float64   `json:"impact_percent"`
	MeasuredAt    time.Time `json:"measured_at"`
}

// FollowUpStatus is derived from the Completed flag.
type FollowUpStatus string

const (
	FollowUpScheduled FollowUpStatus = "scheduled"
	FollowUpCompleted FollowUpStatus = "completed"
)

// FollowUpTask is a durable pending re-check of a post's coins.
// Keyed by PostID; at most one task per post.
type FollowUpTask struct {
	PostID                 string                   `json:"post_id"`
	Coins                  []string                 `json:"coins"`
	Author                 string                   `json:"author"`
	CreatedAt              time.Time                `json:"created_at"`
	ScheduledAt            time.Time                `json:"scheduled_at"`
	Completed              bool                     `json:"completed"`
	CompletedAt            *time.Time               `json:"completed_at,omitempty"`
	SignificantImpactFound bool                     `json:"significant_impact_found"`
	Attempts               int                      `json:"attempts"`
	LastAttemptedAt        *time.Time               `json:"last_attempted_at,omitempty"`
	PriceImpacts           []PriceImpactMeasurement `json:"price_impacts"`
}

// Status reports the lifecycle state.
func (t *FollowUpTask) Status() FollowUpStatus {
	if t.Completed {
		return FollowUpCompleted
	}
	return FollowUpScheduled
}

// IsDue reports whether the task should be picked up by a sweep at now.
func (t *FollowUpTask) IsDue(now time.Time, maxAttempts int) bool {
	return !t.Completed && !t.ScheduledAt.After(now) && t.Attempts < maxAttempts
}

// Clone returns a deep copy.
func (t *FollowUpTask) Clone() *FollowUpTask {
	c := *t
	c.Coins = append([]string(nil), t.Coins...)
	c.PriceImpacts = append([]PriceImpactMeasurement(nil), t.PriceImpacts...)
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	if t.LastAttemptedAt != nil {
		at := *t.LastAttemptedAt
		c.LastAttemptedAt = &at
	}
	return &c
}

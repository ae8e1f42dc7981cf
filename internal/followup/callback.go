package followup

import "time"

// CallbackRequest is a scheduled retry created after a failed call attempt.
// Retries chain: a failed callback spawns a successor until MaxAttempts is
// reached, at which point the case moves to the next cycle instead.
type CallbackRequest struct {
	ID     string `json:"id" db:"id"`
	CaseID string `json:"case_id" db:"case_id"`

	// OriginOrdinal is the stage whose failure opened this chain.
	OriginOrdinal int          `json:"origin_ordinal" db:"origin_ordinal"`
	Type          CallbackType `json:"type" db:"type"`
	Reason        string       `json:"reason,omitempty" db:"reason"`

	// Revenue opportunity carried forward from the failed stage.
	PotentialRevenue      int64 `json:"potential_revenue" db:"potential_revenue"`
	OpportunityMaintained bool  `json:"opportunity_maintained" db:"opportunity_maintained"`

	ScheduledAt time.Time        `json:"scheduled_at" db:"scheduled_at"`
	Priority    CallbackPriority `json:"priority" db:"priority"`

	Attempt     int `json:"attempt" db:"attempt"`
	MaxAttempts int `json:"max_attempts" db:"max_attempts"`

	AssignedTo string `json:"assigned_to,omitempty" db:"assigned_to"`

	Status      CallbackStatus `json:"status" db:"status"`
	AttemptedAt *time.Time     `json:"attempted_at,omitempty" db:"attempted_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
	ResultNotes string         `json:"result_notes,omitempty" db:"result_notes"`

	// Next-cycle deferral, set when the chain exhausts its attempts.
	MovedToNextCycle bool       `json:"moved_to_next_cycle" db:"moved_to_next_cycle"`
	NextCycleAt      *time.Time `json:"next_cycle_at,omitempty" db:"next_cycle_at"`
	DeferredRevenue  int64      `json:"deferred_revenue" db:"deferred_revenue"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type CallbackType string

const (
	CallbackFailedCall      CallbackType = "failed_call"
	CallbackCustomerRequest CallbackType = "customer_request"
	CallbackSpecificTime    CallbackType = "specific_time"
	CallbackFollowUp        CallbackType = "follow_up"
)

type CallbackStatus string

const (
	CallbackScheduled  CallbackStatus = "scheduled"
	CallbackInProgress CallbackStatus = "in_progress"
	CallbackCompleted  CallbackStatus = "completed"
	CallbackFailed     CallbackStatus = "failed"
	CallbackCancelled  CallbackStatus = "cancelled"
)

type CallbackPriority string

const (
	PriorityLow    CallbackPriority = "low"
	PriorityNormal CallbackPriority = "normal"
	PriorityHigh   CallbackPriority = "high"
	PriorityUrgent CallbackPriority = "urgent"
)

// Open reports whether the callback still awaits an outcome.
func (cb CallbackRequest) Open() bool {
	return cb.Status == CallbackScheduled || cb.Status == CallbackInProgress
}

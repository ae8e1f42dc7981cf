package optout

import "time"

// Scope selects how much of the call lifecycle the customer is opting out of.
type Scope string

const (
	ScopeAll          Scope = "all"              // end the lifecycle, no further contact
	ScopeCurrentStage Scope = "current_stage"    // drop the stage in flight only
	ScopeRemaining    Scope = "remaining_stages" // finish the current stage, skip the rest
	ScopeCategories   Scope = "categories"       // block proposals in named product categories
)

func (s Scope) Valid() bool {
	switch s {
	case ScopeAll, ScopeCurrentStage, ScopeRemaining, ScopeCategories:
		return true
	}
	return false
}

// Reason classifies why the customer asked to stop.
type Reason string

const (
	ReasonTooFrequent    Reason = "too_frequent"
	ReasonNotInterested  Reason = "not_interested"
	ReasonBadExperience  Reason = "bad_experience"
	ReasonSoldVehicle    Reason = "sold_vehicle"
	ReasonMovedAway      Reason = "moved_away"
	ReasonPrivacyConcern Reason = "privacy_concern"
	ReasonOther          Reason = "other"
)

func (r Reason) Valid() bool {
	switch r {
	case ReasonTooFrequent, ReasonNotInterested, ReasonBadExperience,
		ReasonSoldVehicle, ReasonMovedAway, ReasonPrivacyConcern, ReasonOther:
		return true
	}
	return false
}

// Attitude is the agent's read of the customer during the request.
type Attitude string

const (
	AttitudeCalm    Attitude = "calm"
	AttitudeAnnoyed Attitude = "annoyed"
	AttitudeAngry   Attitude = "angry"
	AttitudeNeutral Attitude = "neutral"
)

// FutureContact records whether the customer would accept contact later.
type FutureContact string

const (
	FutureContactNever     FutureContact = "never"
	FutureContactNextCycle FutureContact = "next_cycle"
	FutureContactImportant FutureContact = "important_only"
)

// Status is the approval state of an opt-out request. Application to the
// case happens exactly once, when the admin approves.
type Status string

const (
	StatusPending         Status = "pending"
	StatusManagerApproved Status = "manager_approved"
	StatusApplied         Status = "applied"
	StatusRejected        Status = "rejected"
)

// Request is a customer's ask to reduce or stop follow-up contact. It takes
// effect only after both approval levels sign off.
type Request struct {
	ID     string `json:"id" db:"id"`
	CaseID string `json:"case_id" db:"case_id"`

	Scope      Scope    `json:"scope" db:"scope"`
	Categories []string `json:"categories,omitempty" db:"categories"`

	Reason        Reason        `json:"reason" db:"reason"`
	Detail        string        `json:"detail,omitempty" db:"detail"`
	Attitude      Attitude      `json:"attitude,omitempty" db:"attitude"`
	FutureContact FutureContact `json:"future_contact,omitempty" db:"future_contact"`

	RequestedBy string `json:"requested_by" db:"requested_by"`

	Status           Status     `json:"status" db:"status"`
	ManagerDecidedBy string     `json:"manager_decided_by,omitempty" db:"manager_decided_by"`
	ManagerDecidedAt *time.Time `json:"manager_decided_at,omitempty" db:"manager_decided_at"`
	AdminDecidedBy   string     `json:"admin_decided_by,omitempty" db:"admin_decided_by"`
	AdminDecidedAt   *time.Time `json:"admin_decided_at,omitempty" db:"admin_decided_at"`
	RejectionComment string     `json:"rejection_comment,omitempty" db:"rejection_comment"`
	AppliedAt        *time.Time `json:"applied_at,omitempty" db:"applied_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Open reports whether the request still awaits a decision.
func (r Request) Open() bool {
	return r.Status == StatusPending || r.Status == StatusManagerApproved
}

package revenue

import "time"

// ProposalStatus is the bookkeeping state of one revenue opportunity.
//
//	proposed -> accepted -> voucher_created -> completed
//	                                        \-> cancelled
//	proposed/accepted -> deferred | cancelled
type ProposalStatus string

const (
	StatusProposed       ProposalStatus = "proposed"
	StatusAccepted       ProposalStatus = "accepted"
	StatusVoucherCreated ProposalStatus = "voucher_created"
	StatusCompleted      ProposalStatus = "completed"
	StatusCancelled      ProposalStatus = "cancelled"
	StatusDeferred       ProposalStatus = "deferred"
)

// Proposal records one upsell opportunity raised during a follow-up call.
// Amounts are KRW whole units.
type Proposal struct {
	ID     string `json:"id" db:"id"`
	CaseID string `json:"case_id" db:"case_id"`

	// StageOrdinal is the call stage during which the proposal was raised.
	StageOrdinal int    `json:"stage_ordinal" db:"stage_ordinal"`
	Category     string `json:"category" db:"category"`
	Description  string `json:"description,omitempty" db:"description"`

	EstimatedAmount int64 `json:"estimated_amount" db:"estimated_amount"`
	ActualAmount    int64 `json:"actual_amount" db:"actual_amount"`

	// CommissionRate is a percentage; Commission = ActualAmount * rate / 100,
	// computed at completion.
	CommissionRate float64 `json:"commission_rate" db:"commission_rate"`
	Commission     int64   `json:"commission" db:"commission"`

	Status     ProposalStatus `json:"status" db:"status"`
	ProposedBy string         `json:"proposed_by" db:"proposed_by"`

	VoucherID string `json:"voucher_id,omitempty" db:"voucher_id"`

	AcceptedAt  *time.Time `json:"accepted_at,omitempty" db:"accepted_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty" db:"cancelled_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Active reports whether the proposal still counts toward the open pipeline.
func (p Proposal) Active() bool {
	switch p.Status {
	case StatusProposed, StatusAccepted, StatusVoucherCreated:
		return true
	}
	return false
}

// Voucher is the redeemable artifact minted when an accepted proposal is
// converted. It freezes the amount the customer committed to.
type Voucher struct {
	ID         string `json:"id" db:"id"`
	ProposalID string `json:"proposal_id" db:"proposal_id"`
	CaseID     string `json:"case_id" db:"case_id"`
	Amount     int64  `json:"amount" db:"amount"`

	// IssuedTo/IssuedPhone identify the customer for the accounting module.
	IssuedTo    string `json:"issued_to" db:"issued_to"`
	IssuedPhone string `json:"issued_phone" db:"issued_phone"`

	Description string `json:"description,omitempty" db:"description"`
	// Source tags the ledger entry with where the revenue originated.
	Source string `json:"source" db:"source"`

	IssuedAt  time.Time `json:"issued_at" db:"issued_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// Loss records revenue opportunity lost to a failed call, and whether the
// opportunity was later recovered through the callback chain.
type Loss struct {
	ID     string `json:"id" db:"id"`
	CaseID string `json:"case_id" db:"case_id"`

	StageOrdinal    int    `json:"stage_ordinal" db:"stage_ordinal"`
	Reason          string `json:"reason" db:"reason"`
	EstimatedAmount int64  `json:"estimated_amount" db:"estimated_amount"`

	// SMSSent records whether the customer was notified about the failed
	// call; recovery correlates with it.
	SMSSent bool `json:"sms_sent" db:"sms_sent"`

	Recovered       bool       `json:"recovered" db:"recovered"`
	RecoveredAmount int64      `json:"recovered_amount" db:"recovered_amount"`
	RecoveredAt     *time.Time `json:"recovered_at,omitempty" db:"recovered_at"`
	RecoveryNotes   string     `json:"recovery_notes,omitempty" db:"recovery_notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// RecoveryRate is recovered amount over estimated loss, as a percentage.
// Zero estimated loss yields zero.
func (l Loss) RecoveryRate() float64 {
	if l.EstimatedAmount <= 0 {
		return 0
	}
	return float64(l.RecoveredAmount) / float64(l.EstimatedAmount) * 100
}

// CaseSummary aggregates a case's completed proposals.
type CaseSummary struct {
	CaseID          string `json:"case_id"`
	TotalRevenue    int64  `json:"total_revenue"`
	CompletedCount  int    `json:"completed_count"`
	TotalCommission int64  `json:"total_commission"`
	DeferredAmount  int64  `json:"deferred_amount"`
}

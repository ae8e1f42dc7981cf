package followup

import "time"

// Case is the aggregate record tracking one customer's progress through the
// post-service call sequence. One case per originating service event (1:1).
//
// Amounts are KRW whole units stored as int64; there are no fractional
// amounts anywhere in this domain.
type Case struct {
	ID             string `json:"id" db:"id"`
	ServiceEventID string `json:"service_event_id" db:"service_event_id"`

	// Contact snapshot from the originating service record; read-only input
	// to notification templates.
	CustomerName  string `json:"customer_name" db:"customer_name"`
	CustomerPhone string `json:"customer_phone" db:"customer_phone"`

	// ServiceCompletedAt anchors the per-stage call schedule.
	ServiceCompletedAt time.Time `json:"service_completed_at" db:"service_completed_at"`

	Stage Stage `json:"stage"`

	// RequiresAdminApproval demands a second (admin) approval after the
	// manager's before a stage may be called.
	RequiresAdminApproval bool `json:"requires_admin_approval" db:"requires_admin_approval"`

	// Per-stage call records, indexed by ordinal (index 0 unused).
	Calls [NumStages + 1]CallRecord `json:"calls"`

	// Satisfaction survey, four independent 1-5 scales (0 = not answered).
	OverallSatisfaction int `json:"overall_satisfaction,omitempty" db:"overall_satisfaction"`
	ServiceQuality      int `json:"service_quality,omitempty" db:"service_quality"`
	StaffKindness       int `json:"staff_kindness,omitempty" db:"staff_kindness"`
	PriceSatisfaction   int `json:"price_satisfaction,omitempty" db:"price_satisfaction"`

	CustomerFeedback       string `json:"customer_feedback,omitempty" db:"customer_feedback"`
	ImprovementSuggestions string `json:"improvement_suggestions,omitempty" db:"improvement_suggestions"`
	AdditionalNeeds        string `json:"additional_needs,omitempty" db:"additional_needs"`

	WillRevisit       *bool `json:"will_revisit,omitempty" db:"will_revisit"`
	RecommendToOthers *bool `json:"recommend_to_others,omitempty" db:"recommend_to_others"`

	// 1st-call specifics: engine oil promotion.
	EngineOilInterest *bool  `json:"engine_oil_interest,omitempty" db:"engine_oil_interest"`
	EngineOilNotes    string `json:"engine_oil_notes,omitempty" db:"engine_oil_notes"`

	// 2nd-call specifics: insurance consultation intent. These two fields
	// gate whether the 3rd stage happens at all.
	CarInsuranceInterest      InterestLevel `json:"car_insurance_interest,omitempty" db:"car_insurance_interest"`
	DriverInsuranceInterest   InterestLevel `json:"driver_insurance_interest,omitempty" db:"driver_insurance_interest"`
	InsuranceConsultRequested *bool         `json:"insurance_consult_requested,omitempty" db:"insurance_consult_requested"`
	CurrentInsurer            string        `json:"current_insurer,omitempty" db:"current_insurer"`

	// 3rd-call specifics: consultation outcome.
	InsuranceConsultCompleted *bool  `json:"insurance_consult_completed,omitempty" db:"insurance_consult_completed"`
	InsuranceConsultResult    string `json:"insurance_consult_result,omitempty" db:"insurance_consult_result"`
	InsurancePolicyApplied    *bool  `json:"insurance_policy_applied,omitempty" db:"insurance_policy_applied"`

	// 4th-call specifics: next inspection booking.
	NextInspectionBooked *bool      `json:"next_inspection_booked,omitempty" db:"next_inspection_booked"`
	NextInspectionDate   *time.Time `json:"next_inspection_date,omitempty" db:"next_inspection_date"`
	LongTermNotes        string     `json:"long_term_notes,omitempty" db:"long_term_notes"`

	TotalCallAttempts int        `json:"total_call_attempts" db:"total_call_attempts"`
	NextCallAt        *time.Time `json:"next_call_at,omitempty" db:"next_call_at"`

	// Revenue aggregates, recomputed from completed proposals.
	TotalRevenue    int64 `json:"total_revenue" db:"total_revenue"`
	RevenueCount    int   `json:"revenue_count" db:"revenue_count"`
	DeferredRevenue int64 `json:"deferred_revenue" db:"deferred_revenue"`

	// Stage-creation approvals for the stage currently gated. Reset each
	// time Advance opens a new approval gate.
	ManagerApprovedBy string     `json:"manager_approved_by,omitempty" db:"manager_approved_by"`
	ManagerApprovedAt *time.Time `json:"manager_approved_at,omitempty" db:"manager_approved_at"`
	AdminApprovedBy   string     `json:"admin_approved_by,omitempty" db:"admin_approved_by"`
	AdminApprovedAt   *time.Time `json:"admin_approved_at,omitempty" db:"admin_approved_at"`

	// Opt-out effects.
	NoCallRequest           bool       `json:"no_call_request" db:"no_call_request"`
	RemainingStagesRejected bool       `json:"remaining_stages_rejected" db:"remaining_stages_rejected"`
	ExcludedCategories      []string   `json:"excluded_categories,omitempty" db:"excluded_categories"`
	RejectionReason         string     `json:"rejection_reason,omitempty" db:"rejection_reason"`
	RejectedAt              *time.Time `json:"rejected_at,omitempty" db:"rejected_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CallRecord holds the execution details of one ordinal call attempt.
type CallRecord struct {
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	CalledAt    *time.Time `json:"called_at,omitempty"`
	CallerID    string     `json:"caller_id,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	Success     *bool      `json:"success,omitempty"`
}

// AverageSatisfaction averages the answered survey scales; ok is false when
// no scale was answered.
func (c Case) AverageSatisfaction() (avg float64, ok bool) {
	scores := [4]int{c.OverallSatisfaction, c.ServiceQuality, c.StaffKindness, c.PriceSatisfaction}
	sum, n := 0, 0
	for _, s := range scores {
		if s > 0 {
			sum += s
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return float64(sum) / float64(n), true
}

// InsuranceInterested is the stage-3 eligibility predicate: interest
// recorded on either tracked insurance line during the 2nd call.
func (c Case) InsuranceInterested() bool {
	return c.CarInsuranceInterest.Positive() || c.DriverInsuranceInterest.Positive()
}

type InterestLevel string

const (
	InterestVeryInterested InterestLevel = "very_interested"
	InterestInterested     InterestLevel = "interested"
	InterestNeutral        InterestLevel = "neutral"
	InterestNone           InterestLevel = "not_interested"
	InterestRefused        InterestLevel = "refused"
)

func (l InterestLevel) Positive() bool {
	return l == InterestVeryInterested || l == InterestInterested
}

func (l InterestLevel) Valid() bool {
	switch l {
	case "", InterestVeryInterested, InterestInterested, InterestNeutral, InterestNone, InterestRefused:
		return true
	}
	return false
}

// FailureReason classifies why a call attempt failed.
type FailureReason string

const (
	FailureCustomerUnavailable FailureReason = "customer_unavailable"
	FailureCustomerBusy        FailureReason = "customer_busy"
	FailureTechnicalIssue      FailureReason = "technical_issue"
	FailureCustomerRefused     FailureReason = "customer_refused"
	FailureStaffUnavailable    FailureReason = "staff_unavailable"
	FailureSystemError         FailureReason = "system_error"
	FailureOther               FailureReason = "other"
)

func (r FailureReason) Valid() bool {
	switch r {
	case FailureCustomerUnavailable, FailureCustomerBusy, FailureTechnicalIssue,
		FailureCustomerRefused, FailureStaffUnavailable, FailureSystemError, FailureOther:
		return true
	}
	return false
}

// Per-stage tuning derived from historical campaign data.

// stagePotentialRevenue estimates the revenue opportunity carried by each
// stage (engine oil, maintenance upsell, insurance commission, inspection
// package respectively).
var stagePotentialRevenue = [NumStages + 1]int64{0, 50_000, 200_000, 150_000, 300_000}

const defaultPotentialRevenue int64 = 100_000

// stageRetryDelayDays is the callback delay applied when stage N fails.
var stageRetryDelayDays = [NumStages + 1]int{0, 7, 14, 21, 30}

// stageNextCycleDays is the deferral applied when the callback chain for
// stage N exhausts its attempts.
var stageNextCycleDays = [NumStages + 1]int{0, 90, 90, 120, 365}

// stageLeadDays schedules the Nth call relative to service completion
// (1 week, 3 months, 6 months, 9 months).
var stageLeadDays = [NumStages + 1]int{0, 7, 90, 180, 270}

// PotentialRevenue returns the revenue-opportunity estimate for a stage.
func PotentialRevenue(ordinal int) int64 {
	if ordinal >= 1 && ordinal <= NumStages {
		return stagePotentialRevenue[ordinal]
	}
	return defaultPotentialRevenue
}

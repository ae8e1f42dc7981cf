package followup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for cases and their callbacks.
type Repository interface {
	CreateCase(ctx context.Context, c Case) error
	GetCase(ctx context.Context, id string) (Case, error)
	GetCaseByServiceEvent(ctx context.Context, serviceEventID string) (Case, bool, error)
	UpdateCase(ctx context.Context, c Case) error

	CreateCallback(ctx context.Context, cb CallbackRequest) error
	GetCallback(ctx context.Context, id string) (CallbackRequest, error)
	UpdateCallback(ctx context.Context, cb CallbackRequest) error
	ListCallbacks(ctx context.Context, caseID string) ([]CallbackRequest, error)

	// SaveFailureTransition persists a failed case together with the
	// callback the failure opened. The two writes must commit together; a
	// partial write would leave a scheduled callback against an unfailed
	// case.
	SaveFailureTransition(ctx context.Context, c Case, cb CallbackRequest) error
}

// Notifier dispatches customer-facing SMS around failed calls.
// Implementations must be best-effort: the returned flags record whether the
// message went out, and errors are swallowed into them.
type Notifier interface {
	CallFailed(ctx context.Context, caseID, customerName, phone string, ordinal int, reason string) bool
	CallbackScheduled(ctx context.Context, caseID, customerName, phone string, at time.Time, finalAttempt bool) bool
	MovedToNextCycle(ctx context.Context, caseID, customerName, phone string, at time.Time) bool
}

// RevenueLedger is what the lifecycle needs from revenue bookkeeping when a
// stage fails: defer the stage's in-flight proposals and record the lost
// opportunity.
type RevenueLedger interface {
	DeferStage(ctx context.Context, caseID string, ordinal int) (deferred int64, err error)
	RecordLoss(ctx context.Context, caseID string, ordinal int, reason string, estimated int64, smsSent bool) error
}

var (
	ErrNotFound          = errors.New("followup: not found")
	ErrInvalidArgument   = errors.New("followup: invalid argument")
	ErrDuplicateCase     = errors.New("followup: case already exists for service event")
	ErrInvalidTransition = errors.New("followup: transition not allowed")
	ErrApprovalOrder     = errors.New("followup: admin approval requires prior manager approval")
	ErrLifecycleOver     = errors.New("followup: lifecycle finished")
)

type ApprovalLevel string

const (
	ApprovalManager ApprovalLevel = "manager"
	ApprovalAdmin   ApprovalLevel = "admin"
)

// Service drives the follow-up call lifecycle.
//
// Invariants:
// - Stage mutations only through the transition table (stage.go).
// - A failed call produces exactly one new CallbackRequest.
// - Stage N+1 call records are only written after stage N settled.
//
// All mutations on one case are serialized through a per-case mutex; the
// repository still sees whole-record updates (last write wins across
// processes unless the HTTP layer also takes the shared lock).
type Service struct {
	repo     Repository
	notifier Notifier
	revenue  RevenueLedger
	log      *slog.Logger
	clock    func() time.Time

	maxCallbackAttempts int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type Options struct {
	Notifier            Notifier
	Revenue             RevenueLedger
	Logger              *slog.Logger
	MaxCallbackAttempts int
}

func NewService(repo Repository, opts Options) *Service {
	max := opts.MaxCallbackAttempts
	if max <= 0 {
		max = 3
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:                repo,
		notifier:            opts.Notifier,
		revenue:             opts.Revenue,
		log:                 log,
		clock:               time.Now,
		maxCallbackAttempts: max,
		locks:               map[string]*sync.Mutex{},
	}
}

// SetRevenueLedger attaches the revenue collaborator after construction.
// The lifecycle and revenue services reference each other; one side has to
// be wired late.
func (s *Service) SetRevenueLedger(l RevenueLedger) { s.revenue = l }

func (s *Service) caseLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[id]
	if !ok {
		m = &sync.Mutex{}
		s.locks[id] = m
	}
	return m
}

// CreateCaseRequest seeds a lifecycle instance from a completed service event.
type CreateCaseRequest struct {
	ServiceEventID     string    `json:"service_event_id"`
	CustomerName       string    `json:"customer_name"`
	CustomerPhone      string    `json:"customer_phone"`
	ServiceCompletedAt time.Time `json:"service_completed_at"`

	RequiresAdminApproval bool `json:"requires_admin_approval"`
}

func (s *Service) CreateCase(ctx context.Context, req CreateCaseRequest) (Case, error) {
	if req.ServiceEventID == "" || req.CustomerName == "" || req.CustomerPhone == "" {
		return Case{}, ErrInvalidArgument
	}
	if _, ok, err := s.repo.GetCaseByServiceEvent(ctx, req.ServiceEventID); err != nil {
		return Case{}, err
	} else if ok {
		return Case{}, ErrDuplicateCase
	}

	now := s.clock().UTC()
	completed := req.ServiceCompletedAt.UTC()
	if completed.IsZero() {
		completed = now
	}

	c := Case{
		ID:                    uuid.NewString(),
		ServiceEventID:        req.ServiceEventID,
		CustomerName:          req.CustomerName,
		CustomerPhone:         req.CustomerPhone,
		ServiceCompletedAt:    completed,
		Stage:                 Stage{Ordinal: 1, Phase: PhasePendingApproval},
		RequiresAdminApproval: req.RequiresAdminApproval,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	first := completed.AddDate(0, 0, stageLeadDays[1])
	c.Calls[1].ScheduledAt = &first
	c.NextCallAt = &first

	if err := s.repo.CreateCase(ctx, c); err != nil {
		return Case{}, err
	}
	return c, nil
}

func (s *Service) GetCase(ctx context.Context, id string) (Case, error) {
	if id == "" {
		return Case{}, ErrInvalidArgument
	}
	return s.repo.GetCase(ctx, id)
}

// ApproveStage processes stage-creation approval.
//
// Manager approval clears the gate unless the case requires admin approval
// too, in which case it only records and the admin's approval clears. Admin
// approval without a prior manager approval is rejected; the two approval
// workflows in this system use the same ordering.
func (s *Service) ApproveStage(ctx context.Context, caseID, approver string, level ApprovalLevel) (Case, error) {
	if caseID == "" || approver == "" {
		return Case{}, ErrInvalidArgument
	}
	if level != ApprovalManager && level != ApprovalAdmin {
		return Case{}, ErrInvalidArgument
	}

	lock := s.caseLock(caseID)
	lock.Lock()
	defer lock.Unlock()

	c, err := s.repo.GetCase(ctx, caseID)
	if err != nil {
		return Case{}, err
	}
	if !c.Stage.CanApprove() {
		return Case{}, fmt.Errorf("%w: approve from %s", ErrInvalidTransition, c.Stage)
	}

	now := s.clock().UTC()
	cleared := false

	switch level {
	case ApprovalManager:
		c.ManagerApprovedBy = approver
		c.ManagerApprovedAt = &now
		cleared = !c.RequiresAdminApproval
	case ApprovalAdmin:
		if c.ManagerApprovedAt == nil {
			return Case{}, ErrApprovalOrder
		}
		c.AdminApprovedBy = approver
		c.AdminApprovedAt = &now
		cleared = true
	}

	if cleared {
		next := Stage{Ordinal: c.Stage.Ordinal, Phase: PhasePending}
		if !c.Stage.canEnter(next) {
			return Case{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Stage, next)
		}
		c.Stage = next
	}
	c.UpdatedAt = now

	if err := s.repo.UpdateCase(ctx, c); err != nil {
		return Case{}, err
	}
	return c, nil
}

// StartCall marks the stage's call as picked up, so other agents see the
// case is on the line. Recording the outcome still works straight from
// pending; starting first is optional.
func (s *Service) StartCall(ctx context.Context, caseID, agent string) (Case, error) {
	if caseID == "" || agent == "" {
		return Case{}, ErrInvalidArgument
	}

	lock := s.caseLock(caseID)
	lock.Lock()
	defer lock.Unlock()

	c, err := s.repo.GetCase(ctx, caseID)
	if err != nil {
		return Case{}, err
	}
	next := Stage{Ordinal: c.Stage.Ordinal, Phase: PhaseInProgress}
	if !c.Stage.canEnter(next) {
		return Case{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Stage, next)
	}
	c.Stage = next
	c.Calls[next.Ordinal].CallerID = agent
	c.UpdatedAt = s.clock().UTC()

	if err := s.repo.UpdateCase(ctx, c); err != nil {
		return Case{}, err
	}
	return c, nil
}

// CallOutcome is what the agent observed on the line.
type CallOutcome string

const (
	OutcomeSuccess CallOutcome = "success"
	OutcomeFailure CallOutcome = "failure"
)

// ExecuteRequest carries one call attempt's results.
type ExecuteRequest struct {
	Agent   string        `json:"agent"`
	Outcome CallOutcome   `json:"outcome"`
	Reason  FailureReason `json:"reason,omitempty"` // required on failure
	Notes   string        `json:"notes,omitempty"`

	// Survey answers, applied only on success. Zero values mean unanswered.
	OverallSatisfaction int `json:"overall_satisfaction,omitempty"`
	ServiceQuality      int `json:"service_quality,omitempty"`
	StaffKindness       int `json:"staff_kindness,omitempty"`
	PriceSatisfaction   int `json:"price_satisfaction,omitempty"`

	CustomerFeedback string `json:"customer_feedback,omitempty"`

	WillRevisit       *bool `json:"will_revisit,omitempty"`
	RecommendToOthers *bool `json:"recommend_to_others,omitempty"`

	EngineOilInterest *bool  `json:"engine_oil_interest,omitempty"`
	EngineOilNotes    string `json:"engine_oil_notes,omitempty"`

	CarInsuranceInterest      InterestLevel `json:"car_insurance_interest,omitempty"`
	DriverInsuranceInterest   InterestLevel `json:"driver_insurance_interest,omitempty"`
	InsuranceConsultRequested *bool         `json:"insurance_consult_requested,omitempty"`
	CurrentInsurer            string        `json:"current_insurer,omitempty"`

	InsuranceConsultCompleted *bool  `json:"insurance_consult_completed,omitempty"`
	InsuranceConsultResult    string `json:"insurance_consult_result,omitempty"`
	InsurancePolicyApplied    *bool  `json:"insurance_policy_applied,omitempty"`

	NextInspectionBooked *bool      `json:"next_inspection_booked,omitempty"`
	NextInspectionDate   *time.Time `json:"next_inspection_date,omitempty"`
	LongTermNotes        string     `json:"long_term_notes,omitempty"`

	NoCallRequest bool `json:"no_call_request,omitempty"`
}

func (r ExecuteRequest) validate() error {
	if r.Agent == "" {
		return ErrInvalidArgument
	}
	switch r.Outcome {
	case OutcomeSuccess:
	case OutcomeFailure:
		if !r.Reason.Valid() {
			return fmt.Errorf("%w: failure reason required", ErrInvalidArgument)
		}
	default:
		return fmt.Errorf("%w: outcome must be success or failure", ErrInvalidArgument)
	}
	for _, score := range [4]int{r.OverallSatisfaction, r.ServiceQuality, r.StaffKindness, r.PriceSatisfaction} {
		if score < 0 || score > 5 {
			return fmt.Errorf("%w: satisfaction scores are 1-5", ErrInvalidArgument)
		}
	}
	if !r.CarInsuranceInterest.Valid() || !r.DriverInsuranceInterest.Valid() {
		return fmt.Errorf("%w: bad interest level", ErrInvalidArgument)
	}
	return nil
}

// ExecuteResult reports what a call attempt caused.
type ExecuteResult struct {
	Case     Case             `json:"case"`
	Callback *CallbackRequest `json:"callback,omitempty"`
	SMSSent  bool             `json:"sms_sent"`
	Deferred int64            `json:"deferred_revenue"`
}

// ExecuteCall records a call attempt's outcome and runs the failure side
// effects. Permitted only from pending or in_progress.
func (s *Service) ExecuteCall(ctx context.Context, caseID string, req ExecuteRequest) (ExecuteResult, error) {
	if caseID == "" {
		return ExecuteResult{}, ErrInvalidArgument
	}
	if err := req.validate(); err != nil {
		return ExecuteResult{}, err
	}

	lock := s.caseLock(caseID)
	lock.Lock()
	defer lock.Unlock()

	c, err := s.repo.GetCase(ctx, caseID)
	if err != nil {
		return ExecuteResult{}, err
	}
	if !c.Stage.CanExecute() {
		return ExecuteResult{}, fmt.Errorf("%w: execute from %s", ErrInvalidTransition, c.Stage)
	}

	now := s.clock().UTC()
	ord := c.Stage.Ordinal
	c.TotalCallAttempts++
	// A stop-calling request sticks regardless of the call outcome.
	if req.NoCallRequest {
		c.NoCallRequest = true
	}

	if req.Outcome == OutcomeSuccess {
		c.applySurvey(req)
		rec := &c.Calls[ord]
		rec.CalledAt = &now
		rec.CallerID = req.Agent
		rec.Notes = req.Notes
		success := true
		rec.Success = &success

		next := Stage{Ordinal: ord, Phase: PhaseCompleted}
		if !c.Stage.canEnter(next) {
			return ExecuteResult{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Stage, next)
		}
		c.Stage = next
		c.UpdatedAt = now
		if err := s.repo.UpdateCase(ctx, c); err != nil {
			return ExecuteResult{}, err
		}
		return ExecuteResult{Case: c}, nil
	}

	// Failure path: mark the stage failed, then run side effects in order:
	// defer in-flight proposals, notify the customer, record the loss, and
	// commit the failed case with its one new callback in a single write.
	// None of the side effects roll the transition back.
	rec := &c.Calls[ord]
	rec.CalledAt = &now
	rec.CallerID = req.Agent
	rec.Notes = fmt.Sprintf("call failed: %s", req.Reason)
	if req.Notes != "" {
		rec.Notes = req.Notes
	}
	success := false
	rec.Success = &success

	next := Stage{Ordinal: ord, Phase: PhaseFailed}
	if !c.Stage.canEnter(next) {
		return ExecuteResult{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Stage, next)
	}
	c.Stage = next

	potential := PotentialRevenue(ord)
	var deferred int64
	if s.revenue != nil {
		deferred, err = s.revenue.DeferStage(ctx, c.ID, ord)
		if err != nil {
			s.log.Error("revenue deferral failed", "case_id", c.ID, "stage", ord, "err", err)
		}
	}
	c.DeferredRevenue += deferred

	retryAt := now.AddDate(0, 0, stageRetryDelayDays[ord])
	cb := CallbackRequest{
		ID:                    uuid.NewString(),
		CaseID:                c.ID,
		OriginOrdinal:         ord,
		Type:                  CallbackFailedCall,
		Reason:                string(req.Reason),
		PotentialRevenue:      potential + deferred,
		OpportunityMaintained: true,
		ScheduledAt:           retryAt,
		Priority:              PriorityNormal,
		Attempt:               1,
		MaxAttempts:           s.maxCallbackAttempts,
		AssignedTo:            req.Agent,
		Status:                CallbackScheduled,
		CreatedAt:             now,
	}
	c.NextCallAt = &retryAt

	smsSent := false
	if s.notifier != nil {
		smsSent = s.notifier.CallFailed(ctx, c.ID, c.CustomerName, c.CustomerPhone, ord, string(req.Reason))
	}
	if s.revenue != nil {
		if err := s.revenue.RecordLoss(ctx, c.ID, ord, string(req.Reason), potential, smsSent); err != nil {
			s.log.Error("loss record failed", "case_id", c.ID, "stage", ord, "err", err)
		}
	}

	c.UpdatedAt = now
	if err := s.repo.SaveFailureTransition(ctx, c, cb); err != nil {
		return ExecuteResult{}, err
	}
	return ExecuteResult{Case: c, Callback: &cb, SMSSent: smsSent, Deferred: deferred}, nil
}

func (c *Case) applySurvey(req ExecuteRequest) {
	if req.OverallSatisfaction > 0 {
		c.OverallSatisfaction = req.OverallSatisfaction
	}
	if req.ServiceQuality > 0 {
		c.ServiceQuality = req.ServiceQuality
	}
	if req.StaffKindness > 0 {
		c.StaffKindness = req.StaffKindness
	}
	if req.PriceSatisfaction > 0 {
		c.PriceSatisfaction = req.PriceSatisfaction
	}
	if req.CustomerFeedback != "" {
		c.CustomerFeedback = req.CustomerFeedback
	}
	if req.WillRevisit != nil {
		c.WillRevisit = req.WillRevisit
	}
	if req.RecommendToOthers != nil {
		c.RecommendToOthers = req.RecommendToOthers
	}
	if req.EngineOilInterest != nil {
		c.EngineOilInterest = req.EngineOilInterest
	}
	if req.EngineOilNotes != "" {
		c.EngineOilNotes = req.EngineOilNotes
	}
	if req.CarInsuranceInterest != "" {
		c.CarInsuranceInterest = req.CarInsuranceInterest
	}
	if req.DriverInsuranceInterest != "" {
		c.DriverInsuranceInterest = req.DriverInsuranceInterest
	}
	if req.InsuranceConsultRequested != nil {
		c.InsuranceConsultRequested = req.InsuranceConsultRequested
	}
	if req.CurrentInsurer != "" {
		c.CurrentInsurer = req.CurrentInsurer
	}
	if req.InsuranceConsultCompleted != nil {
		c.InsuranceConsultCompleted = req.InsuranceConsultCompleted
	}
	if req.InsuranceConsultResult != "" {
		c.InsuranceConsultResult = req.InsuranceConsultResult
	}
	if req.InsurancePolicyApplied != nil {
		c.InsurancePolicyApplied = req.InsurancePolicyApplied
	}
	if req.NextInspectionBooked != nil {
		c.NextInspectionBooked = req.NextInspectionBooked
	}
	if req.NextInspectionDate != nil {
		c.NextInspectionDate = req.NextInspectionDate
	}
	if req.LongTermNotes != "" {
		c.LongTermNotes = req.LongTermNotes
	}
}

// Advance moves a settled case to the next stage's approval gate. The
// remaining-stages opt-out short-circuits into the skip terminal.
func (s *Service) Advance(ctx context.Context, caseID string) (Case, error) {
	if caseID == "" {
		return Case{}, ErrInvalidArgument
	}

	lock := s.caseLock(caseID)
	lock.Lock()
	defer lock.Unlock()

	c, err := s.repo.GetCase(ctx, caseID)
	if err != nil {
		return Case{}, err
	}
	return s.advanceLocked(ctx, c)
}

func (s *Service) advanceLocked(ctx context.Context, c Case) (Case, error) {
	if !c.Stage.Settled() {
		return Case{}, fmt.Errorf("%w: advance from %s", ErrInvalidTransition, c.Stage)
	}
	now := s.clock().UTC()

	if c.RemainingStagesRejected || c.NoCallRequest {
		c.Stage = StageSkipped()
		c.NextCallAt = nil
		c.UpdatedAt = now
		if err := s.repo.UpdateCase(ctx, c); err != nil {
			return Case{}, err
		}
		return c, nil
	}

	next, ok := nextStage(c.Stage, c.InsuranceInterested())
	if !ok {
		return Case{}, ErrLifecycleOver
	}
	if !c.Stage.canEnter(next) {
		return Case{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Stage, next)
	}
	c.Stage = next

	scheduled := c.ServiceCompletedAt.AddDate(0, 0, stageLeadDays[next.Ordinal])
	if scheduled.Before(now) {
		scheduled = now.AddDate(0, 0, stageRetryDelayDays[next.Ordinal])
	}
	c.Calls[next.Ordinal].ScheduledAt = &scheduled
	c.NextCallAt = &scheduled

	// Approvals gate one stage at a time.
	c.ManagerApprovedBy, c.ManagerApprovedAt = "", nil
	c.AdminApprovedBy, c.AdminApprovedAt = "", nil

	c.UpdatedAt = now
	if err := s.repo.UpdateCase(ctx, c); err != nil {
		return Case{}, err
	}
	return c, nil
}

// StartCallback marks a scheduled callback as being dialed and assigns it
// to the agent on the line.
func (s *Service) StartCallback(ctx context.Context, callbackID, agent string) (CallbackRequest, error) {
	if callbackID == "" || agent == "" {
		return CallbackRequest{}, ErrInvalidArgument
	}
	cb, err := s.repo.GetCallback(ctx, callbackID)
	if err != nil {
		return CallbackRequest{}, err
	}

	lock := s.caseLock(cb.CaseID)
	lock.Lock()
	defer lock.Unlock()

	cb, err = s.repo.GetCallback(ctx, callbackID)
	if err != nil {
		return CallbackRequest{}, err
	}
	if cb.Status != CallbackScheduled {
		return CallbackRequest{}, fmt.Errorf("%w: callback %s is %s", ErrInvalidTransition, cb.ID, cb.Status)
	}

	now := s.clock().UTC()
	cb.Status = CallbackInProgress
	cb.AttemptedAt = &now
	cb.AssignedTo = agent
	if err := s.repo.UpdateCallback(ctx, cb); err != nil {
		return CallbackRequest{}, err
	}
	return cb, nil
}

// CompleteCallback closes a callback whose retry call connected.
func (s *Service) CompleteCallback(ctx context.Context, callbackID, notes string) (CallbackRequest, error) {
	if callbackID == "" {
		return CallbackRequest{}, ErrInvalidArgument
	}
	cb, err := s.repo.GetCallback(ctx, callbackID)
	if err != nil {
		return CallbackRequest{}, err
	}

	lock := s.caseLock(cb.CaseID)
	lock.Lock()
	defer lock.Unlock()

	cb, err = s.repo.GetCallback(ctx, callbackID)
	if err != nil {
		return CallbackRequest{}, err
	}
	if !cb.Open() {
		return CallbackRequest{}, fmt.Errorf("%w: callback %s is %s", ErrInvalidTransition, cb.ID, cb.Status)
	}

	now := s.clock().UTC()
	cb.Status = CallbackCompleted
	cb.CompletedAt = &now
	cb.ResultNotes = notes
	if err := s.repo.UpdateCallback(ctx, cb); err != nil {
		return CallbackRequest{}, err
	}
	return cb, nil
}

// FailCallbackResult reports what a failed callback caused: either a
// successor retry or a next-cycle deferral with a stage advance.
type FailCallbackResult struct {
	Callback CallbackRequest  `json:"callback"`
	Next     *CallbackRequest `json:"next,omitempty"`
	Case     *Case            `json:"case,omitempty"`
}

// FailCallback marks a callback failed. Under the attempt cap it spawns the
// next retry for the following day; at the cap it defers the revenue
// opportunity to the next cycle and advances the case.
func (s *Service) FailCallback(ctx context.Context, callbackID, notes string) (FailCallbackResult, error) {
	if callbackID == "" {
		return FailCallbackResult{}, ErrInvalidArgument
	}
	cb, err := s.repo.GetCallback(ctx, callbackID)
	if err != nil {
		return FailCallbackResult{}, err
	}

	lock := s.caseLock(cb.CaseID)
	lock.Lock()
	defer lock.Unlock()

	cb, err = s.repo.GetCallback(ctx, callbackID)
	if err != nil {
		return FailCallbackResult{}, err
	}
	if !cb.Open() {
		return FailCallbackResult{}, fmt.Errorf("%w: callback %s is %s", ErrInvalidTransition, cb.ID, cb.Status)
	}

	now := s.clock().UTC()
	cb.Status = CallbackFailed
	cb.AttemptedAt = &now
	cb.ResultNotes = notes

	if cb.Attempt < cb.MaxAttempts {
		priority := PriorityNormal
		if cb.Attempt >= 2 {
			priority = PriorityHigh
		}
		next := CallbackRequest{
			ID:                    uuid.NewString(),
			CaseID:                cb.CaseID,
			OriginOrdinal:         cb.OriginOrdinal,
			Type:                  CallbackFailedCall,
			Reason:                cb.Reason,
			PotentialRevenue:      cb.PotentialRevenue,
			OpportunityMaintained: true,
			ScheduledAt:           now.AddDate(0, 0, 1),
			Priority:              priority,
			Attempt:               cb.Attempt + 1,
			MaxAttempts:           cb.MaxAttempts,
			AssignedTo:            cb.AssignedTo,
			Status:                CallbackScheduled,
			CreatedAt:             now,
		}
		if err := s.repo.UpdateCallback(ctx, cb); err != nil {
			return FailCallbackResult{}, err
		}
		if err := s.repo.CreateCallback(ctx, next); err != nil {
			return FailCallbackResult{}, err
		}
		if s.notifier != nil {
			if c, err := s.repo.GetCase(ctx, cb.CaseID); err == nil {
				final := next.Attempt == next.MaxAttempts
				s.notifier.CallbackScheduled(ctx, c.ID, c.CustomerName, c.CustomerPhone, next.ScheduledAt, final)
			}
		}
		return FailCallbackResult{Callback: cb, Next: &next}, nil
	}

	// Chain exhausted: carry the opportunity to the next cycle and move on.
	cycleAt := now.AddDate(0, 0, stageNextCycleDays[cb.OriginOrdinal])
	cb.MovedToNextCycle = true
	cb.NextCycleAt = &cycleAt
	cb.DeferredRevenue = cb.PotentialRevenue
	cb.OpportunityMaintained = false
	if err := s.repo.UpdateCallback(ctx, cb); err != nil {
		return FailCallbackResult{}, err
	}

	c, err := s.repo.GetCase(ctx, cb.CaseID)
	if err != nil {
		return FailCallbackResult{}, err
	}
	c.DeferredRevenue += cb.PotentialRevenue
	if s.notifier != nil {
		s.notifier.MovedToNextCycle(ctx, c.ID, c.CustomerName, c.CustomerPhone, cycleAt)
	}

	if c.Stage.Settled() && c.Stage.Ordinal < NumStages {
		advanced, err := s.advanceLocked(ctx, c)
		if err != nil {
			return FailCallbackResult{}, err
		}
		return FailCallbackResult{Callback: cb, Case: &advanced}, nil
	}

	c.UpdatedAt = now
	if err := s.repo.UpdateCase(ctx, c); err != nil {
		return FailCallbackResult{}, err
	}
	return FailCallbackResult{Callback: cb, Case: &c}, nil
}

func (s *Service) ListCallbacks(ctx context.Context, caseID string) ([]CallbackRequest, error) {
	if caseID == "" {
		return nil, ErrInvalidArgument
	}
	return s.repo.ListCallbacks(ctx, caseID)
}

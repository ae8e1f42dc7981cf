package optout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Repository persists opt-out requests.
type Repository interface {
	CreateRequest(ctx context.Context, r Request) error
	GetRequest(ctx context.Context, id string) (Request, error)
	UpdateRequest(ctx context.Context, r Request) error
	ListRequests(ctx context.Context, caseID string) ([]Request, error)
	ListOpenForScope(ctx context.Context, caseID string, scope Scope) ([]Request, error)
}

// CaseApplier mutates the follow-up case once a request clears both
// approvals. One method per scope.
type CaseApplier interface {
	ApplyAll(ctx context.Context, caseID, reason string) error
	ApplyCurrentStage(ctx context.Context, caseID, reason string) error
	ApplyRemaining(ctx context.Context, caseID, reason string) error
	ApplyCategories(ctx context.Context, caseID string, categories []string) error
}

var (
	ErrNotFound        = errors.New("optout: not found")
	ErrInvalidArgument = errors.New("optout: invalid argument")
	ErrInvalidStatus   = errors.New("optout: decision not allowed in current status")
	ErrApprovalOrder   = errors.New("optout: admin decision requires prior manager approval")
	ErrAlreadyApplied  = errors.New("optout: request already applied")
	ErrDuplicateOpen   = errors.New("optout: an open request with this scope already exists")
)

// Service runs the two-level opt-out approval workflow. The case mutation
// happens exactly once, inside the admin approval; re-approving an applied
// request is rejected.
type Service struct {
	repo    Repository
	applier CaseApplier
	log     *slog.Logger
	clock   func() time.Time
}

func NewService(repo Repository, applier CaseApplier, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, applier: applier, log: log, clock: time.Now}
}

// CreateRequest opens a new opt-out request in pending state.
type CreateRequest struct {
	CaseID        string        `json:"case_id"`
	Scope         Scope         `json:"scope"`
	Categories    []string      `json:"categories,omitempty"`
	Reason        Reason        `json:"reason"`
	Detail        string        `json:"detail,omitempty"`
	Attitude      Attitude      `json:"attitude,omitempty"`
	FutureContact FutureContact `json:"future_contact,omitempty"`
	RequestedBy   string        `json:"requested_by"`
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Request, error) {
	if req.CaseID == "" || req.RequestedBy == "" {
		return Request{}, ErrInvalidArgument
	}
	if !req.Scope.Valid() {
		return Request{}, fmt.Errorf("%w: bad scope %q", ErrInvalidArgument, req.Scope)
	}
	if !req.Reason.Valid() {
		return Request{}, fmt.Errorf("%w: bad reason %q", ErrInvalidArgument, req.Reason)
	}
	if req.Scope == ScopeCategories && len(req.Categories) == 0 {
		return Request{}, fmt.Errorf("%w: categories scope needs categories", ErrInvalidArgument)
	}
	if req.Scope != ScopeCategories && len(req.Categories) > 0 {
		return Request{}, fmt.Errorf("%w: categories only valid with categories scope", ErrInvalidArgument)
	}

	open, err := s.repo.ListOpenForScope(ctx, req.CaseID, req.Scope)
	if err != nil {
		return Request{}, err
	}
	if len(open) > 0 {
		return Request{}, ErrDuplicateOpen
	}

	now := s.clock().UTC()
	r := Request{
		ID:            uuid.NewString(),
		CaseID:        req.CaseID,
		Scope:         req.Scope,
		Categories:    req.Categories,
		Reason:        req.Reason,
		Detail:        req.Detail,
		Attitude:      req.Attitude,
		FutureContact: req.FutureContact,
		RequestedBy:   req.RequestedBy,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.CreateRequest(ctx, r); err != nil {
		return Request{}, err
	}
	return r, nil
}

func (s *Service) Get(ctx context.Context, id string) (Request, error) {
	if id == "" {
		return Request{}, ErrInvalidArgument
	}
	return s.repo.GetRequest(ctx, id)
}

func (s *Service) ListForCase(ctx context.Context, caseID string) ([]Request, error) {
	if caseID == "" {
		return nil, ErrInvalidArgument
	}
	return s.repo.ListRequests(ctx, caseID)
}

// ApproveByManager records the first-level sign-off.
func (s *Service) ApproveByManager(ctx context.Context, id, approver string) (Request, error) {
	if id == "" || approver == "" {
		return Request{}, ErrInvalidArgument
	}
	r, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if r.Status == StatusApplied {
		return Request{}, ErrAlreadyApplied
	}
	if r.Status != StatusPending {
		return Request{}, fmt.Errorf("%w: %s", ErrInvalidStatus, r.Status)
	}
	now := s.clock().UTC()
	r.Status = StatusManagerApproved
	r.ManagerDecidedBy = approver
	r.ManagerDecidedAt = &now
	r.UpdatedAt = now
	if err := s.repo.UpdateRequest(ctx, r); err != nil {
		return Request{}, err
	}
	return r, nil
}

// ApproveByAdmin records the second-level sign-off and applies the request
// to the case. The status flips to applied only after the case mutation
// succeeds, so a failed application can be retried.
func (s *Service) ApproveByAdmin(ctx context.Context, id, approver string) (Request, error) {
	if id == "" || approver == "" {
		return Request{}, ErrInvalidArgument
	}
	r, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if r.Status == StatusApplied {
		return Request{}, ErrAlreadyApplied
	}
	if r.Status == StatusPending {
		return Request{}, ErrApprovalOrder
	}
	if r.Status != StatusManagerApproved {
		return Request{}, fmt.Errorf("%w: %s", ErrInvalidStatus, r.Status)
	}

	if err := s.apply(ctx, r); err != nil {
		return Request{}, fmt.Errorf("apply opt-out %s: %w", r.ID, err)
	}

	now := s.clock().UTC()
	r.Status = StatusApplied
	r.AdminDecidedBy = approver
	r.AdminDecidedAt = &now
	r.AppliedAt = &now
	r.UpdatedAt = now
	if err := s.repo.UpdateRequest(ctx, r); err != nil {
		return Request{}, err
	}
	s.log.Info("opt-out applied", "request_id", r.ID, "case_id", r.CaseID, "scope", r.Scope)
	return r, nil
}

// Reject closes an open request at either approval level.
func (s *Service) Reject(ctx context.Context, id, decider, comment string) (Request, error) {
	if id == "" || decider == "" {
		return Request{}, ErrInvalidArgument
	}
	r, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if r.Status == StatusApplied {
		return Request{}, ErrAlreadyApplied
	}
	if !r.Open() {
		return Request{}, fmt.Errorf("%w: %s", ErrInvalidStatus, r.Status)
	}
	now := s.clock().UTC()
	if r.Status == StatusPending {
		r.ManagerDecidedBy = decider
		r.ManagerDecidedAt = &now
	} else {
		r.AdminDecidedBy = decider
		r.AdminDecidedAt = &now
	}
	r.Status = StatusRejected
	r.RejectionComment = comment
	r.UpdatedAt = now
	if err := s.repo.UpdateRequest(ctx, r); err != nil {
		return Request{}, err
	}
	return r, nil
}

func (s *Service) apply(ctx context.Context, r Request) error {
	reason := string(r.Reason)
	if r.Detail != "" {
		reason = reason + ": " + r.Detail
	}
	switch r.Scope {
	case ScopeAll:
		return s.applier.ApplyAll(ctx, r.CaseID, reason)
	case ScopeCurrentStage:
		return s.applier.ApplyCurrentStage(ctx, r.CaseID, reason)
	case ScopeRemaining:
		return s.applier.ApplyRemaining(ctx, r.CaseID, reason)
	case ScopeCategories:
		return s.applier.ApplyCategories(ctx, r.CaseID, r.Categories)
	}
	return fmt.Errorf("%w: bad scope %q", ErrInvalidArgument, r.Scope)
}

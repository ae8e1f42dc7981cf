package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
	ListForCase(ctx context.Context, caseID string, limit int) ([]Event, error)
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to customers.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// ListForCase returns the audit trail for a case, oldest first.
func (s *Service) ListForCase(ctx context.Context, caseID string, limit int) ([]Event, error) {
	if caseID == "" {
		return nil, ErrInvalidEvent
	}
	return s.repo.ListForCase(ctx, caseID, limit)
}

// LogStageApproved records a stage-creation approval decision.
func (s *Service) LogStageApproved(ctx context.Context, actorUserID, actorRole, ip, caseID, stage string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeStageApproved,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		CaseID:      caseID,
		Message:     "stage approved: " + stage,
	})
}

// LogCallRecorded records a call execution outcome.
func (s *Service) LogCallRecorded(ctx context.Context, actorUserID, actorRole, ip, caseID, outcome, metadata string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeCallRecorded,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		CaseID:      caseID,
		Message:     "call recorded: " + outcome,
		Metadata:    metadata,
	})
}

// LogOptOutDecision records an approval or rejection on an opt-out request.
func (s *Service) LogOptOutDecision(ctx context.Context, actorUserID, actorRole, ip, caseID, requestID, decision string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeOptOutDecision,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		CaseID:      caseID,
		RequestID:   requestID,
		Message:     "opt-out " + decision,
	})
}

// LogRevenueChange records a proposal status change.
func (s *Service) LogRevenueChange(ctx context.Context, actorUserID, actorRole, ip, caseID, proposalID, change string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeRevenueChange,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		CaseID:      caseID,
		ProposalID:  proposalID,
		Message:     "revenue " + change,
	})
}

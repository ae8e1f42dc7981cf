package revenue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for proposals, vouchers and losses.
type Repository interface {
	CreateProposal(ctx context.Context, p Proposal) error
	GetProposal(ctx context.Context, id string) (Proposal, error)
	UpdateProposal(ctx context.Context, p Proposal) error
	ListProposals(ctx context.Context, caseID string) ([]Proposal, error)

	// SaveVoucherConversion persists a voucher together with the proposal
	// update that references it. The two writes must commit together.
	SaveVoucherConversion(ctx context.Context, p Proposal, v Voucher) error
	GetVoucher(ctx context.Context, id string) (Voucher, error)

	CreateLoss(ctx context.Context, l Loss) error
	GetLoss(ctx context.Context, id string) (Loss, error)
	UpdateLoss(ctx context.Context, l Loss) error
	ListLosses(ctx context.Context, caseID string) ([]Loss, error)
}

// CaseDirectory is what revenue bookkeeping needs back from the call
// lifecycle: stage position, category exclusions, the contact snapshot, and
// a place to push recomputed aggregates.
type CaseDirectory interface {
	StageOrdinal(ctx context.Context, caseID string) (int, error)
	CategoryExcluded(ctx context.Context, caseID, category string) (bool, error)
	Contact(ctx context.Context, caseID string) (name, phone string, err error)
	SetRevenueTotals(ctx context.Context, caseID string, total int64, count int) error
}

var (
	ErrNotFound         = errors.New("revenue: not found")
	ErrInvalidArgument  = errors.New("revenue: invalid argument")
	ErrInvalidStatus    = errors.New("revenue: operation not allowed in current status")
	ErrCategoryExcluded = errors.New("revenue: category excluded by customer opt-out")
	ErrAlreadyRecovered = errors.New("revenue: loss already recovered")
	ErrOverRecovery     = errors.New("revenue: recovered amount exceeds estimated loss")
)

const voucherValidity = 90 * 24 * time.Hour

// Service owns revenue proposal bookkeeping and loss/recovery tracking.
type Service struct {
	repo  Repository
	cases CaseDirectory
	log   *slog.Logger
	clock func() time.Time
}

func NewService(repo Repository, cases CaseDirectory, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, cases: cases, log: log, clock: time.Now}
}

// CreateRequest raises a new revenue proposal against a case.
type CreateRequest struct {
	CaseID          string  `json:"case_id"`
	Category        string  `json:"category"`
	Description     string  `json:"description,omitempty"`
	EstimatedAmount int64   `json:"estimated_amount"`
	CommissionRate  float64 `json:"commission_rate,omitempty"`
	ProposedBy      string  `json:"proposed_by"`
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Proposal, error) {
	if req.CaseID == "" || req.Category == "" || req.ProposedBy == "" {
		return Proposal{}, ErrInvalidArgument
	}
	if req.EstimatedAmount <= 0 {
		return Proposal{}, fmt.Errorf("%w: estimated amount must be positive", ErrInvalidArgument)
	}
	if req.CommissionRate < 0 || req.CommissionRate > 100 {
		return Proposal{}, fmt.Errorf("%w: commission rate out of range", ErrInvalidArgument)
	}

	excluded, err := s.cases.CategoryExcluded(ctx, req.CaseID, req.Category)
	if err != nil {
		return Proposal{}, err
	}
	if excluded {
		return Proposal{}, ErrCategoryExcluded
	}
	ordinal, err := s.cases.StageOrdinal(ctx, req.CaseID)
	if err != nil {
		return Proposal{}, err
	}

	now := s.clock().UTC()
	p := Proposal{
		ID:              uuid.NewString(),
		CaseID:          req.CaseID,
		StageOrdinal:    ordinal,
		Category:        req.Category,
		Description:     req.Description,
		EstimatedAmount: req.EstimatedAmount,
		CommissionRate:  req.CommissionRate,
		Status:          StatusProposed,
		ProposedBy:      req.ProposedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.CreateProposal(ctx, p); err != nil {
		return Proposal{}, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (Proposal, error) {
	if id == "" {
		return Proposal{}, ErrInvalidArgument
	}
	return s.repo.GetProposal(ctx, id)
}

func (s *Service) ListForCase(ctx context.Context, caseID string) ([]Proposal, error) {
	if caseID == "" {
		return nil, ErrInvalidArgument
	}
	return s.repo.ListProposals(ctx, caseID)
}

// Accept marks a proposed opportunity as accepted by the customer.
func (s *Service) Accept(ctx context.Context, id string) (Proposal, error) {
	return s.transition(ctx, id, StatusProposed, func(p *Proposal, now time.Time) error {
		p.Status = StatusAccepted
		p.AcceptedAt = &now
		return nil
	})
}

// ConvertToVoucher mints a voucher for an accepted proposal. actualAmount
// is the committed purchase amount; zero keeps the estimate.
func (s *Service) ConvertToVoucher(ctx context.Context, id string, actualAmount int64) (Proposal, Voucher, error) {
	if actualAmount < 0 {
		return Proposal{}, Voucher{}, fmt.Errorf("%w: negative actual amount", ErrInvalidArgument)
	}
	if id == "" {
		return Proposal{}, Voucher{}, ErrInvalidArgument
	}
	p, err := s.repo.GetProposal(ctx, id)
	if err != nil {
		return Proposal{}, Voucher{}, err
	}
	if p.Status != StatusAccepted {
		return Proposal{}, Voucher{}, fmt.Errorf("%w: %s, need %s", ErrInvalidStatus, p.Status, StatusAccepted)
	}

	now := s.clock().UTC()
	if actualAmount > 0 {
		p.ActualAmount = actualAmount
	} else {
		p.ActualAmount = p.EstimatedAmount
	}
	name, phone, err := s.cases.Contact(ctx, p.CaseID)
	if err != nil {
		return Proposal{}, Voucher{}, err
	}
	voucher := Voucher{
		ID:          uuid.NewString(),
		ProposalID:  p.ID,
		CaseID:      p.CaseID,
		Amount:      p.ActualAmount,
		IssuedTo:    name,
		IssuedPhone: phone,
		Description: p.Description,
		Source:      "follow_up_call",
		IssuedAt:    now,
		ExpiresAt:   now.Add(voucherValidity),
	}
	p.Status = StatusVoucherCreated
	p.VoucherID = voucher.ID
	p.UpdatedAt = now
	if err := s.repo.SaveVoucherConversion(ctx, p, voucher); err != nil {
		return Proposal{}, Voucher{}, err
	}
	return p, voucher, nil
}

// Complete settles a voucher-backed proposal: commission is computed and
// the case aggregates are recomputed. Completing twice is rejected.
func (s *Service) Complete(ctx context.Context, id string) (Proposal, error) {
	p, err := s.transition(ctx, id, StatusVoucherCreated, func(p *Proposal, now time.Time) error {
		p.Status = StatusCompleted
		p.CompletedAt = &now
		p.Commission = int64(float64(p.ActualAmount) * p.CommissionRate / 100)
		return nil
	})
	if err != nil {
		return Proposal{}, err
	}
	if err := s.recomputeTotals(ctx, p.CaseID); err != nil {
		s.log.Error("case revenue totals update failed", "case_id", p.CaseID, "err", err)
	}
	return p, nil
}

// Cancel voids a not-yet-completed proposal.
func (s *Service) Cancel(ctx context.Context, id, reason string) (Proposal, error) {
	if id == "" {
		return Proposal{}, ErrInvalidArgument
	}
	p, err := s.repo.GetProposal(ctx, id)
	if err != nil {
		return Proposal{}, err
	}
	if !p.Active() {
		return Proposal{}, fmt.Errorf("%w: cancel from %s", ErrInvalidStatus, p.Status)
	}
	now := s.clock().UTC()
	p.Status = StatusCancelled
	p.CancelledAt = &now
	if reason != "" {
		p.Description = p.Description + " [cancelled: " + reason + "]"
	}
	p.UpdatedAt = now
	if err := s.repo.UpdateProposal(ctx, p); err != nil {
		return Proposal{}, err
	}
	if err := s.recomputeTotals(ctx, p.CaseID); err != nil {
		s.log.Error("case revenue totals update failed", "case_id", p.CaseID, "err", err)
	}
	return p, nil
}

// DeferStage parks every open proposal raised at the given stage and
// returns the total amount moved out of the active pipeline. Called when a
// stage's call fails.
func (s *Service) DeferStage(ctx context.Context, caseID string, ordinal int) (int64, error) {
	if caseID == "" || ordinal < 1 {
		return 0, ErrInvalidArgument
	}
	proposals, err := s.repo.ListProposals(ctx, caseID)
	if err != nil {
		return 0, err
	}
	now := s.clock().UTC()
	var total int64
	for _, p := range proposals {
		if p.StageOrdinal != ordinal {
			continue
		}
		if p.Status != StatusProposed && p.Status != StatusAccepted {
			continue
		}
		p.Status = StatusDeferred
		p.UpdatedAt = now
		if err := s.repo.UpdateProposal(ctx, p); err != nil {
			return total, err
		}
		total += p.EstimatedAmount
	}
	return total, nil
}

// RecordLoss writes a loss entry for a failed stage call.
func (s *Service) RecordLoss(ctx context.Context, caseID string, ordinal int, reason string, estimated int64, smsSent bool) error {
	if caseID == "" || ordinal < 1 || estimated < 0 {
		return ErrInvalidArgument
	}
	return s.repo.CreateLoss(ctx, Loss{
		ID:              uuid.NewString(),
		CaseID:          caseID,
		StageOrdinal:    ordinal,
		Reason:          reason,
		EstimatedAmount: estimated,
		SMSSent:         smsSent,
		CreatedAt:       s.clock().UTC(),
	})
}

// MarkRecovered records that a lost opportunity was won back, typically
// through the callback chain. The recovered amount may not exceed the
// estimated loss, and a loss recovers at most once.
func (s *Service) MarkRecovered(ctx context.Context, lossID string, amount int64, notes string) (Loss, error) {
	if lossID == "" || amount <= 0 {
		return Loss{}, ErrInvalidArgument
	}
	l, err := s.repo.GetLoss(ctx, lossID)
	if err != nil {
		return Loss{}, err
	}
	if l.Recovered {
		return Loss{}, ErrAlreadyRecovered
	}
	if amount > l.EstimatedAmount {
		return Loss{}, ErrOverRecovery
	}
	now := s.clock().UTC()
	l.Recovered = true
	l.RecoveredAmount = amount
	l.RecoveredAt = &now
	l.RecoveryNotes = notes
	if err := s.repo.UpdateLoss(ctx, l); err != nil {
		return Loss{}, err
	}
	return l, nil
}

func (s *Service) GetLoss(ctx context.Context, id string) (Loss, error) {
	if id == "" {
		return Loss{}, ErrInvalidArgument
	}
	return s.repo.GetLoss(ctx, id)
}

func (s *Service) ListLosses(ctx context.Context, caseID string) ([]Loss, error) {
	if caseID == "" {
		return nil, ErrInvalidArgument
	}
	return s.repo.ListLosses(ctx, caseID)
}

// Summary aggregates a case's proposals.
func (s *Service) Summary(ctx context.Context, caseID string) (CaseSummary, error) {
	if caseID == "" {
		return CaseSummary{}, ErrInvalidArgument
	}
	proposals, err := s.repo.ListProposals(ctx, caseID)
	if err != nil {
		return CaseSummary{}, err
	}
	out := CaseSummary{CaseID: caseID}
	for _, p := range proposals {
		switch p.Status {
		case StatusCompleted:
			out.TotalRevenue += p.ActualAmount
			out.TotalCommission += p.Commission
			out.CompletedCount++
		case StatusDeferred:
			out.DeferredAmount += p.EstimatedAmount
		}
	}
	return out, nil
}

func (s *Service) transition(ctx context.Context, id string, from ProposalStatus, apply func(*Proposal, time.Time) error) (Proposal, error) {
	if id == "" {
		return Proposal{}, ErrInvalidArgument
	}
	p, err := s.repo.GetProposal(ctx, id)
	if err != nil {
		return Proposal{}, err
	}
	if p.Status != from {
		return Proposal{}, fmt.Errorf("%w: %s, need %s", ErrInvalidStatus, p.Status, from)
	}
	now := s.clock().UTC()
	if err := apply(&p, now); err != nil {
		return Proposal{}, err
	}
	p.UpdatedAt = now
	if err := s.repo.UpdateProposal(ctx, p); err != nil {
		return Proposal{}, err
	}
	return p, nil
}

func (s *Service) recomputeTotals(ctx context.Context, caseID string) error {
	sum, err := s.Summary(ctx, caseID)
	if err != nil {
		return err
	}
	return s.cases.SetRevenueTotals(ctx, caseID, sum.TotalRevenue, sum.CompletedCount)
}

package followup

import (
	"context"
	"fmt"
)

// The four opt-out applications. The opt-out workflow owns the approval
// chain; these run once a request clears it and mutate the case accordingly.

// ApplyOptOutAll ends the lifecycle for good: rejected_all plus the sticky
// no-call flag.
func (s *Service) ApplyOptOutAll(ctx context.Context, caseID, reason string) (Case, error) {
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
	next := StageRejectedAll()
	if !c.Stage.canEnter(next) {
		return Case{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Stage, next)
	}
	now := s.clock().UTC()
	c.Stage = next
	c.NoCallRequest = true
	c.RejectionReason = reason
	c.RejectedAt = &now
	c.NextCallAt = nil
	c.UpdatedAt = now
	if err := s.repo.UpdateCase(ctx, c); err != nil {
		return Case{}, err
	}
	return c, nil
}

// ApplyOptOutCurrentStage rejects only the stage in flight; the case can
// still advance from there.
func (s *Service) ApplyOptOutCurrentStage(ctx context.Context, caseID, reason string) (Case, error) {
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
	next := Stage{Ordinal: c.Stage.Ordinal, Phase: PhaseRejected}
	if !c.Stage.canEnter(next) {
		return Case{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Stage, next)
	}
	now := s.clock().UTC()
	c.Stage = next
	c.RejectionReason = reason
	c.RejectedAt = &now
	c.NextCallAt = nil
	c.UpdatedAt = now
	if err := s.repo.UpdateCase(ctx, c); err != nil {
		return Case{}, err
	}
	return c, nil
}

// ApplyOptOutRemaining lets the current stage finish and sends the next
// advance into the skip terminal.
func (s *Service) ApplyOptOutRemaining(ctx context.Context, caseID, reason string) (Case, error) {
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
	if c.Stage.Terminal() {
		return Case{}, fmt.Errorf("%w: lifecycle already over", ErrInvalidTransition)
	}
	now := s.clock().UTC()
	c.RemainingStagesRejected = true
	c.RejectionReason = reason
	c.UpdatedAt = now

	// Nothing left in flight for this stage: skip immediately.
	if c.Stage.Settled() || c.Stage.Phase == PhaseRejected {
		c.Stage = StageSkipped()
		c.RejectedAt = &now
		c.NextCallAt = nil
	}
	if err := s.repo.UpdateCase(ctx, c); err != nil {
		return Case{}, err
	}
	return c, nil
}

// ApplyOptOutCategories records product categories the customer refused;
// revenue proposals in those categories are blocked at creation.
func (s *Service) ApplyOptOutCategories(ctx context.Context, caseID string, categories []string) (Case, error) {
	if caseID == "" || len(categories) == 0 {
		return Case{}, ErrInvalidArgument
	}
	lock := s.caseLock(caseID)
	lock.Lock()
	defer lock.Unlock()

	c, err := s.repo.GetCase(ctx, caseID)
	if err != nil {
		return Case{}, err
	}
	for _, cat := range categories {
		if cat == "" {
			continue
		}
		seen := false
		for _, have := range c.ExcludedCategories {
			if have == cat {
				seen = true
				break
			}
		}
		if !seen {
			c.ExcludedCategories = append(c.ExcludedCategories, cat)
		}
	}
	c.UpdatedAt = s.clock().UTC()
	if err := s.repo.UpdateCase(ctx, c); err != nil {
		return Case{}, err
	}
	return c, nil
}

// Directory methods consumed by revenue bookkeeping.

func (s *Service) StageOrdinal(ctx context.Context, caseID string) (int, error) {
	c, err := s.repo.GetCase(ctx, caseID)
	if err != nil {
		return 0, err
	}
	return c.Stage.Ordinal, nil
}

func (s *Service) CategoryExcluded(ctx context.Context, caseID, category string) (bool, error) {
	c, err := s.repo.GetCase(ctx, caseID)
	if err != nil {
		return false, err
	}
	for _, have := range c.ExcludedCategories {
		if have == category {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) Contact(ctx context.Context, caseID string) (name, phone string, err error) {
	c, err := s.repo.GetCase(ctx, caseID)
	if err != nil {
		return "", "", err
	}
	return c.CustomerName, c.CustomerPhone, nil
}

// SetRevenueTotals writes the recomputed per-case aggregates back after a
// proposal completes or is cancelled.
func (s *Service) SetRevenueTotals(ctx context.Context, caseID string, total int64, count int) error {
	lock := s.caseLock(caseID)
	lock.Lock()
	defer lock.Unlock()

	c, err := s.repo.GetCase(ctx, caseID)
	if err != nil {
		return err
	}
	c.TotalRevenue = total
	c.RevenueCount = count
	c.UpdatedAt = s.clock().UTC()
	return s.repo.UpdateCase(ctx, c)
}

package revenue

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository is an in-memory Repository for tests and local runs.
type MemoryRepository struct {
	mu        sync.RWMutex
	proposals map[string]Proposal
	vouchers  map[string]Voucher
	losses    map[string]Loss
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		proposals: map[string]Proposal{},
		vouchers:  map[string]Voucher{},
		losses:    map[string]Loss{},
	}
}

func (r *MemoryRepository) CreateProposal(_ context.Context, p Proposal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.proposals[p.ID] = p
	return nil
}

func (r *MemoryRepository) GetProposal(_ context.Context, id string) (Proposal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.proposals[id]
	if !ok {
		return Proposal{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepository) UpdateProposal(_ context.Context, p Proposal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.proposals[p.ID]; !ok {
		return ErrNotFound
	}
	r.proposals[p.ID] = p
	return nil
}

func (r *MemoryRepository) ListProposals(_ context.Context, caseID string) ([]Proposal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Proposal
	for _, p := range r.proposals {
		if p.CaseID == caseID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) SaveVoucherConversion(_ context.Context, p Proposal, v Voucher) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.proposals[p.ID]; !ok {
		return ErrNotFound
	}
	r.proposals[p.ID] = p
	r.vouchers[v.ID] = v
	return nil
}

func (r *MemoryRepository) GetVoucher(_ context.Context, id string) (Voucher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.vouchers[id]
	if !ok {
		return Voucher{}, ErrNotFound
	}
	return v, nil
}

func (r *MemoryRepository) CreateLoss(_ context.Context, l Loss) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.losses[l.ID] = l
	return nil
}

func (r *MemoryRepository) GetLoss(_ context.Context, id string) (Loss, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.losses[id]
	if !ok {
		return Loss{}, ErrNotFound
	}
	return l, nil
}

func (r *MemoryRepository) UpdateLoss(_ context.Context, l Loss) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.losses[l.ID]; !ok {
		return ErrNotFound
	}
	r.losses[l.ID] = l
	return nil
}

func (r *MemoryRepository) ListLosses(_ context.Context, caseID string) ([]Loss, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Loss
	for _, l := range r.losses {
		if l.CaseID == caseID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

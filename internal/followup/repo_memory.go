package followup

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository is an in-memory Repository for tests and local runs.
type MemoryRepository struct {
	mu        sync.RWMutex
	cases     map[string]Case
	byEvent   map[string]string
	callbacks map[string]CallbackRequest
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		cases:     map[string]Case{},
		byEvent:   map[string]string{},
		callbacks: map[string]CallbackRequest{},
	}
}

func (r *MemoryRepository) CreateCase(_ context.Context, c Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEvent[c.ServiceEventID]; ok {
		return ErrDuplicateCase
	}
	r.cases[c.ID] = cloneCase(c)
	r.byEvent[c.ServiceEventID] = c.ID
	return nil
}

func (r *MemoryRepository) GetCase(_ context.Context, id string) (Case, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cases[id]
	if !ok {
		return Case{}, ErrNotFound
	}
	return cloneCase(c), nil
}

func (r *MemoryRepository) GetCaseByServiceEvent(_ context.Context, serviceEventID string) (Case, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEvent[serviceEventID]
	if !ok {
		return Case{}, false, nil
	}
	return cloneCase(r.cases[id]), true, nil
}

func (r *MemoryRepository) UpdateCase(_ context.Context, c Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cases[c.ID]; !ok {
		return ErrNotFound
	}
	r.cases[c.ID] = cloneCase(c)
	return nil
}

func (r *MemoryRepository) CreateCallback(_ context.Context, cb CallbackRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[cb.ID] = cb
	return nil
}

func (r *MemoryRepository) GetCallback(_ context.Context, id string) (CallbackRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cb, ok := r.callbacks[id]
	if !ok {
		return CallbackRequest{}, ErrNotFound
	}
	return cb, nil
}

func (r *MemoryRepository) UpdateCallback(_ context.Context, cb CallbackRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.callbacks[cb.ID]; !ok {
		return ErrNotFound
	}
	r.callbacks[cb.ID] = cb
	return nil
}

func (r *MemoryRepository) SaveFailureTransition(_ context.Context, c Case, cb CallbackRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cases[c.ID]; !ok {
		return ErrNotFound
	}
	r.cases[c.ID] = cloneCase(c)
	r.callbacks[cb.ID] = cb
	return nil
}

func (r *MemoryRepository) ListCallbacks(_ context.Context, caseID string) ([]CallbackRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []CallbackRequest
	for _, cb := range r.callbacks {
		if cb.CaseID == caseID {
			out = append(out, cb)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Attempt < out[j].Attempt
	})
	return out, nil
}

func cloneCase(c Case) Case {
	if c.ExcludedCategories != nil {
		c.ExcludedCategories = append([]string(nil), c.ExcludedCategories...)
	}
	return c
}

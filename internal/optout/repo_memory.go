package optout

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository is an in-memory Repository for tests and local runs.
type MemoryRepository struct {
	mu       sync.RWMutex
	requests map[string]Request
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{requests: map[string]Request{}}
}

func (r *MemoryRepository) CreateRequest(_ context.Context, req Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[req.ID] = cloneRequest(req)
	return nil
}

func (r *MemoryRepository) GetRequest(_ context.Context, id string) (Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return cloneRequest(req), nil
}

func (r *MemoryRepository) UpdateRequest(_ context.Context, req Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[req.ID]; !ok {
		return ErrNotFound
	}
	r.requests[req.ID] = cloneRequest(req)
	return nil
}

func (r *MemoryRepository) ListRequests(_ context.Context, caseID string) ([]Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Request
	for _, req := range r.requests {
		if req.CaseID == caseID {
			out = append(out, cloneRequest(req))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) ListOpenForScope(_ context.Context, caseID string, scope Scope) ([]Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Request
	for _, req := range r.requests {
		if req.CaseID == caseID && req.Scope == scope && req.Open() {
			out = append(out, cloneRequest(req))
		}
	}
	return out, nil
}

func cloneRequest(req Request) Request {
	if req.Categories != nil {
		req.Categories = append([]string(nil), req.Categories...)
	}
	return req
}

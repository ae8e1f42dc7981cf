package notify

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository is an in-memory message log for tests and local runs.
type MemoryRepository struct {
	mu       sync.RWMutex
	messages map[string]Message
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{messages: map[string]Message{}}
}

func (r *MemoryRepository) CreateMessage(_ context.Context, m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[m.ID] = m
	return nil
}

func (r *MemoryRepository) GetMessage(_ context.Context, id string) (Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.messages[id]
	if !ok {
		return Message{}, ErrNotFound
	}
	return m, nil
}

func (r *MemoryRepository) UpdateMessage(_ context.Context, m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[m.ID]; !ok {
		return ErrNotFound
	}
	r.messages[m.ID] = m
	return nil
}

func (r *MemoryRepository) ListMessages(_ context.Context, caseID string) ([]Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Message
	for _, m := range r.messages {
		if m.CaseID == caseID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.Before(out[j].SentAt) })
	return out, nil
}

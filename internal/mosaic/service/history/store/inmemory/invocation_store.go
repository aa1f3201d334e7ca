package inmemory

import (
	"context"
	"sync"

	"github.com/kiosk404/mosaic/internal/mosaic/service/history/domain/entity"
)

// InvocationStore keeps the journal in process memory, oldest first.
type InvocationStore struct {
	mu          sync.RWMutex
	invocations []*entity.Invocation
}

func NewInvocationStore() *InvocationStore {
	return &InvocationStore{}
}

func (s *InvocationStore) Append(_ context.Context, inv *entity.Invocation) error {
	cp := *inv
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invocations = append(s.invocations, &cp)
	return nil
}

func (s *InvocationStore) List(_ context.Context, q entity.Query) ([]*entity.Invocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*entity.Invocation
	for i := len(s.invocations) - 1; i >= 0; i-- {
		inv := s.invocations[i]
		if !q.Match(inv) {
			continue
		}
		cp := *inv
		result = append(result, &cp)
		if q.Limit > 0 && len(result) == q.Limit {
			break
		}
	}
	return result, nil
}

func (s *InvocationStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.invocations), nil
}

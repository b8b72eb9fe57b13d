package targets

import (
	"context"
	"sync"

	"rosterwatch/pkg/domain"
)

// MemoryQueue is an in-process Queue guarded by a mutex.
type MemoryQueue struct {
	mu    sync.RWMutex
	order []domain.Identifier
	index map[domain.Identifier]struct{}
}

// NewMemoryQueue creates an empty queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{index: make(map[domain.Identifier]struct{})}
}

func (q *MemoryQueue) Append(_ context.Context, id domain.Identifier) (bool, error) {
	if id.IsZero() {
		return false, nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.index[id]; ok {
		return false, nil
	}
	q.index[id] = struct{}{}
	q.order = append(q.order, id)
	return true, nil
}

func (q *MemoryQueue) Remove(_ context.Context, id domain.Identifier) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.index[id]; !ok {
		return false, nil
	}
	delete(q.index, id)
	for i, queued := range q.order {
		if queued == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (q *MemoryQueue) Contains(_ context.Context, id domain.Identifier) (bool, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	_, ok := q.index[id]
	return ok, nil
}

func (q *MemoryQueue) Snapshot(_ context.Context) ([]domain.Identifier, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return append([]domain.Identifier(nil), q.order...), nil
}

func (q *MemoryQueue) Len(_ context.Context) (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.order), nil
}

package lock

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
	"github.com/vsinha/mrp-planner/pkg/domain/repositories"
)

// MemoryLocker serializes runs within one process
type MemoryLocker struct {
	mu   sync.Mutex
	held map[uuid.UUID]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[uuid.UUID]struct{})}
}

var _ repositories.RunLocker = (*MemoryLocker)(nil)

func (l *MemoryLocker) TryLock(_ context.Context, runID uuid.UUID) (repositories.Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[runID]; ok {
		return nil, entities.ErrRunBusy
	}
	l.held[runID] = struct{}{}
	return &memoryLease{locker: l, runID: runID}, nil
}

type memoryLease struct {
	locker *MemoryLocker
	runID  uuid.UUID
	once   sync.Once
}

func (m *memoryLease) Release(context.Context) error {
	m.once.Do(func() {
		m.locker.mu.Lock()
		delete(m.locker.held, m.runID)
		m.locker.mu.Unlock()
	})
	return nil
}

package memory

import (
	"context"
	"sort"
	"sync"

	"rentdesk/internal/domain/catalog"
)

// lockManager hands out one mutex per product so concurrent bookings of the
// same fleet serialize their check-then-commit sections.
type lockManager struct {
	mu    sync.Mutex
	locks map[catalog.ProductID]*sync.Mutex
}

func newLockManager() *lockManager {
	return &lockManager{locks: make(map[catalog.ProductID]*sync.Mutex)}
}

func (m *lockManager) lockFor(id catalog.ProductID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

// acquire takes the product locks in sorted order. The returned release
// function is idempotent.
func (m *lockManager) acquire(ctx context.Context, ids []catalog.ProductID) (func(), error) {
	distinct := make(map[catalog.ProductID]struct{}, len(ids))
	for _, id := range ids {
		distinct[id] = struct{}{}
	}
	ordered := make([]catalog.ProductID, 0, len(distinct))
	for id := range distinct {
		ordered = append(ordered, id)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	held := make([]*sync.Mutex, 0, len(ordered))
	releaseHeld := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
		held = nil
	}
	for _, id := range ordered {
		if err := ctx.Err(); err != nil {
			releaseHeld()
			return nil, err
		}
		l := m.lockFor(id)
		l.Lock()
		held = append(held, l)
	}
	var once sync.Once
	return func() { once.Do(releaseHeld) }, nil
}

// internal/distribution/lock.go
package distribution

import "sync"

// franchiseLocks serializes distributions per franchise. Two revenue events
// for different franchises proceed in parallel; two for the same franchise
// queue behind one mutex so accruals never interleave.
type franchiseLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newFranchiseLocks() *franchiseLocks {
	return &franchiseLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *franchiseLocks) get(franchiseID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[franchiseID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[franchiseID] = m
	}
	return m
}

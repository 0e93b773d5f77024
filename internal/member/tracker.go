// Package member tracks the set of peer destinations believed
// reachable. The failure detector is the only remover; the mutation
// observer re-adds a destination the next time a write touches its
// replica set.
package member

import (
	"sync"

	"github.com/arya-analytics/pulse/internal/address"
)

// ConvictListener receives failure-detector convictions. phi is the
// detector's suspicion score at conviction time.
type ConvictListener interface {
	OnConvict(addr address.Address, phi float64)
}

// Tracker is an ordered, concurrently mutable set of destination
// addresses. Snapshots iterate in address order so the shutdown
// broadcast is deterministic.
type Tracker struct {
	mu    sync.RWMutex
	addrs map[address.Address]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{addrs: make(map[address.Address]struct{})}
}

func (t *Tracker) Add(addr address.Address) {
	t.mu.Lock()
	t.addrs[addr] = struct{}{}
	t.mu.Unlock()
}

// Remove drops addr from the set. Removing an absent address is a
// no-op.
func (t *Tracker) Remove(addr address.Address) {
	t.mu.Lock()
	delete(t.addrs, addr)
	t.mu.Unlock()
}

func (t *Tracker) Contains(addr address.Address) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.addrs[addr]
	return ok
}

// Snapshot returns the current membership in address order. The
// returned slice is detached; convictions arriving after the snapshot
// do not affect it.
func (t *Tracker) Snapshot() []address.Address {
	t.mu.RLock()
	addrs := make([]address.Address, 0, len(t.addrs))
	for addr := range t.addrs {
		addrs = append(addrs, addr)
	}
	t.mu.RUnlock()
	address.Sort(addrs)
	return addrs
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.addrs)
}

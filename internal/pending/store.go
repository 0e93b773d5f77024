// Package pending accumulates per-destination sync messages between
// dissemination ticks. Folds arrive from arbitrary writer goroutines
// and must never block on the sender, so the store is striped across
// shards keyed by destination address rather than guarded by one lock.
package pending

import (
	"sync"

	"github.com/arya-analytics/pulse/internal/address"
	"github.com/cespare/xxhash/v2"
)

const shardCount = 32

type shard struct {
	mu       sync.RWMutex
	messages map[address.Address]*SyncMessage
}

// Store maps destination addresses to their accumulating SyncMessage.
// Entries are created lazily on first fold, emptied on drain, and
// removed only when a destination is evicted.
type Store struct {
	origin string
	shards [shardCount]shard
}

func NewStore(origin string) *Store {
	s := &Store{origin: origin}
	for i := range s.shards {
		s.shards[i].messages = make(map[address.Address]*SyncMessage)
	}
	return s
}

func (s *Store) shardFor(dest address.Address) *shard {
	return &s.shards[xxhash.Sum64String(string(dest))&(shardCount-1)]
}

// Fold records that dest should hear about keyID at the given version.
// Safe for concurrent use and non-blocking: the write path calls this
// inline.
func (s *Store) Fold(dest address.Address, keyID string, version, writeTime int64) {
	sh := s.shardFor(dest)
	sh.mu.RLock()
	msg, ok := sh.messages[dest]
	sh.mu.RUnlock()
	if !ok {
		sh.mu.Lock()
		msg, ok = sh.messages[dest]
		if !ok {
			msg = newSyncMessage(s.origin)
			sh.messages[dest] = msg
		}
		sh.mu.Unlock()
	}
	msg.fold(keyID, version, writeTime)
}

// Remove drops dest's entry entirely. Used on failure-detector
// eviction.
func (s *Store) Remove(dest address.Address) {
	sh := s.shardFor(dest)
	sh.mu.Lock()
	delete(sh.messages, dest)
	sh.mu.Unlock()
}

// DrainAndSend captures each destination's accumulated entries, hands
// non-empty digests to sink in address order, then empties every
// message. Destination entries themselves survive the drain so they
// can be refilled on the next fold.
func (s *Store) DrainAndSend(sentAt int64, sink func(dest address.Address, d Digest)) {
	for _, dest := range s.Destinations() {
		sh := s.shardFor(dest)
		sh.mu.RLock()
		msg, ok := sh.messages[dest]
		sh.mu.RUnlock()
		if !ok {
			continue
		}
		if d, ok := msg.capture(sentAt); ok {
			sink(dest, d)
		}
		msg.clear()
	}
}

// Clear empties every message without sending. Destination entries
// survive.
func (s *Store) Clear() {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		messages := make([]*SyncMessage, 0, len(sh.messages))
		for _, msg := range sh.messages {
			messages = append(messages, msg)
		}
		sh.mu.RUnlock()
		for _, msg := range messages {
			msg.clear()
		}
	}
}

// Destinations returns every tracked destination in address order,
// whether or not it has pending entries.
func (s *Store) Destinations() []address.Address {
	var dests []address.Address
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for dest := range sh.messages {
			dests = append(dests, dest)
		}
		sh.mu.RUnlock()
	}
	address.Sort(dests)
	return dests
}

// PendingFor returns dest's accumulated entries sorted by key
// identifier, without draining them.
func (s *Store) PendingFor(dest address.Address) []Entry {
	sh := s.shardFor(dest)
	sh.mu.RLock()
	msg, ok := sh.messages[dest]
	sh.mu.RUnlock()
	if !ok {
		return nil
	}
	return msg.snapshot()
}

// Count returns the number of destinations with at least one pending
// entry.
func (s *Store) Count() int {
	count := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, msg := range sh.messages {
			if msg.len() > 0 {
				count++
			}
		}
		sh.mu.RUnlock()
	}
	return count
}

// Empty reports whether no destination has pending entries.
func (s *Store) Empty() bool { return s.Count() == 0 }

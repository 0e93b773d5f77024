package pending

import (
	"sort"
	"sync"
)

// Entry is one key's version evidence inside a digest. WriteTime is in
// microseconds since the unix epoch.
type Entry struct {
	KeyID     string
	Version   int64
	WriteTime int64
}

// Digest is the wire form of one destination's accumulated state, sent
// as a HEARTBEAT_DIGEST. Entries are sorted by KeyID.
type Digest struct {
	Origin  string
	SentAt  int64
	Entries []Entry
}

// SyncMessage accumulates key versions bound for one destination. It is
// mutable between ticks and captured into an immutable Digest at send
// time. A fold racing the post-send clear may land in either tick or,
// at the boundary, neither; the protocol is best-effort.
type SyncMessage struct {
	mu      sync.Mutex
	origin  string
	entries map[string]Entry
}

func newSyncMessage(origin string) *SyncMessage {
	return &SyncMessage{origin: origin, entries: make(map[string]Entry)}
}

// fold upserts the entry for keyID unconditionally. Within one tick the
// newest locally observed state for a key is the only one that matters,
// so the last fold wins with no version comparison.
func (m *SyncMessage) fold(keyID string, version, writeTime int64) {
	m.mu.Lock()
	m.entries[keyID] = Entry{KeyID: keyID, Version: version, WriteTime: writeTime}
	m.mu.Unlock()
}

// capture stamps the send timestamp and copies the accumulated entries
// into a Digest. Returns false when there is nothing to send.
func (m *SyncMessage) capture(sentAt int64) (Digest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return Digest{}, false
	}
	d := Digest{Origin: m.origin, SentAt: sentAt, Entries: make([]Entry, 0, len(m.entries))}
	for _, e := range m.entries {
		d.Entries = append(d.Entries, e)
	}
	sort.Slice(d.Entries, func(i, j int) bool { return d.Entries[i].KeyID < d.Entries[j].KeyID })
	return d, true
}

func (m *SyncMessage) clear() {
	m.mu.Lock()
	m.entries = make(map[string]Entry)
	m.mu.Unlock()
}

func (m *SyncMessage) snapshot() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].KeyID < entries[j].KeyID })
	return entries
}

func (m *SyncMessage) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

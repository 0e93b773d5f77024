// Package meta defines the boundary to the node's local metadata
// store: which keys were written recently and what version evidence
// they carry. The disseminator only reads from it, and only on the
// startup backfill path.
package meta

// Key identifies one locally stored record.
type Key struct {
	Keyspace string
	Table    string
	Key      []byte
}

// Version is the stored version evidence for a key. WriteTime is in
// microseconds since the unix epoch.
type Version struct {
	Counter   int64
	WriteTime int64
}

type Store interface {
	// RecentlyWrittenKeys returns the keys the local node has written
	// within the store's recency window.
	RecentlyWrittenKeys() ([]Key, error)
	// StoredVersion returns the version evidence recorded for a key.
	// The boolean is false when the store holds no record for it.
	StoredVersion(keyspace, table string, key []byte) (Version, bool, error)
}

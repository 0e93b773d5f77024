// Package pebblemeta persists write metadata in a pebble database and
// serves it back through the meta.Store interface.
package pebblemeta

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/arya-analytics/pulse/internal/meta"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

var keyPrefix = []byte("pulse.meta\x00")

const valueSize = 24

type Config struct {
	// Window bounds how far back RecentlyWrittenKeys reaches. Records
	// older than the window are skipped, not deleted.
	Window time.Duration
}

func (cfg Config) Merge(def Config) Config {
	if cfg.Window == 0 {
		cfg.Window = def.Window
	}
	return cfg
}

func DefaultConfig() Config { return Config{Window: time.Hour} }

// DB wraps a pebble database as a meta.Store. The same pebble instance
// may be shared with other subsystems; all records live under a
// dedicated key prefix.
type DB struct {
	Config
	db *pebble.DB
}

func Wrap(db *pebble.DB, cfg Config) *DB {
	return &DB{Config: cfg.Merge(DefaultConfig()), db: db}
}

// RecordWrite stores version evidence for a key. Called by the storage
// write path after a mutation is applied.
func (d *DB) RecordWrite(key meta.Key, version meta.Version) error {
	value := make([]byte, valueSize)
	binary.BigEndian.PutUint64(value[0:8], uint64(version.Counter))
	binary.BigEndian.PutUint64(value[8:16], uint64(version.WriteTime))
	binary.BigEndian.PutUint64(value[16:24], uint64(time.Now().UnixNano()))
	return d.db.Set(encodeKey(key), value, pebble.NoSync)
}

func (d *DB) RecentlyWrittenKeys() ([]meta.Key, error) {
	lower := keyPrefix
	upper := make([]byte, len(keyPrefix))
	copy(upper, keyPrefix)
	upper[len(upper)-1]++
	iter := d.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	defer iter.Close()

	cutoff := time.Now().Add(-d.Window).UnixNano()
	var keys []meta.Key
	for iter.First(); iter.Valid(); iter.Next() {
		value := iter.Value()
		if len(value) != valueSize {
			return nil, errors.Newf("pebblemeta: malformed record for key %q", iter.Key())
		}
		if int64(binary.BigEndian.Uint64(value[16:24])) < cutoff {
			continue
		}
		key, err := decodeKey(iter.Key())
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, iter.Error()
}

func (d *DB) StoredVersion(keyspace, table string, key []byte) (meta.Version, bool, error) {
	value, closer, err := d.db.Get(encodeKey(meta.Key{Keyspace: keyspace, Table: table, Key: key}))
	if errors.Is(err, pebble.ErrNotFound) {
		return meta.Version{}, false, nil
	}
	if err != nil {
		return meta.Version{}, false, err
	}
	defer closer.Close()
	if len(value) != valueSize {
		return meta.Version{}, false, errors.Newf("pebblemeta: malformed record for %s.%s", keyspace, table)
	}
	return meta.Version{
		Counter:   int64(binary.BigEndian.Uint64(value[0:8])),
		WriteTime: int64(binary.BigEndian.Uint64(value[8:16])),
	}, true, nil
}

// encodeKey lays records out as prefix | keyspace | 0x00 | table |
// 0x00 | raw key. Keyspace and table names cannot contain NUL, raw key
// bytes can.
func encodeKey(key meta.Key) []byte {
	encoded := make([]byte, 0, len(keyPrefix)+len(key.Keyspace)+len(key.Table)+len(key.Key)+2)
	encoded = append(encoded, keyPrefix...)
	encoded = append(encoded, key.Keyspace...)
	encoded = append(encoded, 0)
	encoded = append(encoded, key.Table...)
	encoded = append(encoded, 0)
	encoded = append(encoded, key.Key...)
	return encoded
}

func decodeKey(encoded []byte) (meta.Key, error) {
	rest := bytes.TrimPrefix(encoded, keyPrefix)
	i := bytes.IndexByte(rest, 0)
	if i < 0 {
		return meta.Key{}, errors.Newf("pebblemeta: malformed key %q", encoded)
	}
	keyspace, rest := rest[:i], rest[i+1:]
	j := bytes.IndexByte(rest, 0)
	if j < 0 {
		return meta.Key{}, errors.Newf("pebblemeta: malformed key %q", encoded)
	}
	table, raw := rest[:j], rest[j+1:]
	key := meta.Key{Keyspace: string(keyspace), Table: string(table)}
	key.Key = append(key.Key, raw...)
	return key, nil
}

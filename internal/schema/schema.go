// Package schema exposes the slice of the table catalog the
// disseminator needs: per-table key rendering and the reserved
// keyspace filter. The catalog itself is owned by the embedding
// system.
package schema

import (
	"encoding/hex"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
)

// Catalog resolves table metadata.
type Catalog interface {
	Table(keyspace, name string) (Table, bool)
}

// Table describes the key encoding of a single table.
type Table interface {
	Keyspace() string
	Name() string
	// RenderKey renders raw key bytes into a stable identifier that is
	// unique within the table's key encoding and safe to log.
	RenderKey(key []byte) (string, error)
}

// Encoding selects how a table's raw key bytes are rendered.
type Encoding byte

const (
	// EncodingHex renders keys as lowercase hex. Always succeeds.
	EncodingHex Encoding = iota
	// EncodingText renders keys as UTF-8 text and rejects invalid
	// sequences.
	EncodingText
)

var ErrInvalidKey = errors.New("key bytes do not match table encoding")

// TableMeta is a concrete Table.
type TableMeta struct {
	TableKeyspace string
	TableName     string
	Encoding      Encoding
}

func (t TableMeta) Keyspace() string { return t.TableKeyspace }

func (t TableMeta) Name() string { return t.TableName }

func (t TableMeta) RenderKey(key []byte) (string, error) {
	prefix := t.TableKeyspace + "." + t.TableName + ":"
	switch t.Encoding {
	case EncodingText:
		if !utf8.Valid(key) {
			return "", errors.Wrapf(ErrInvalidKey, "table %s.%s", t.TableKeyspace, t.TableName)
		}
		return prefix + string(key), nil
	default:
		return prefix + hex.EncodeToString(key), nil
	}
}

// Static is an immutable in-memory Catalog.
type Static struct {
	tables map[string]Table
}

func NewStatic(tables ...Table) *Static {
	s := &Static{tables: make(map[string]Table, len(tables))}
	for _, t := range tables {
		s.tables[t.Keyspace()+"."+t.Name()] = t
	}
	return s
}

func (s *Static) Table(keyspace, name string) (Table, bool) {
	t, ok := s.tables[keyspace+"."+name]
	return t, ok
}

// reserved keyspaces hold internal bookkeeping data and are never
// disseminated.
var reserved = map[string]struct{}{
	"system":             {},
	"system_auth":        {},
	"system_distributed": {},
	"system_schema":      {},
	"system_traces":      {},
}

func Reserved(keyspace string) bool {
	_, ok := reserved[keyspace]
	return ok
}

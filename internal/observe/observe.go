// Package observe folds applied local mutations into the pending
// message store. It sits on the storage write path, so nothing here
// may block on I/O or surface an error to the writer.
package observe

import (
	"github.com/arya-analytics/pulse/internal/address"
	"github.com/arya-analytics/pulse/internal/member"
	"github.com/arya-analytics/pulse/internal/meta"
	"github.com/arya-analytics/pulse/internal/pending"
	"github.com/arya-analytics/pulse/internal/schema"
	"go.uber.org/zap"
)

// TableWrite is the per-table evidence carried by a mutation. Version
// is nil when the write carried no version evidence, in which case
// that table's portion of the mutation is not disseminated.
type TableWrite struct {
	Table   string
	Version *meta.Version
}

// Mutation is one applied local write as reported by the storage path.
type Mutation struct {
	Keyspace string
	Key      []byte
	Writes   []TableWrite
}

// PlacementResolver computes the replica list for a key. External
// collaborator; typically a consistent-hash ring lookup.
type PlacementResolver interface {
	ReplicasFor(keyspace string, key []byte) ([]address.Address, error)
}

type Config struct {
	// Host is the local node's address, stripped from every replica
	// list so the node never disseminates to itself.
	Host      address.Address
	Placement PlacementResolver
	Catalog   schema.Catalog
	Logger    *zap.Logger
}

func (cfg Config) Merge(def Config) Config {
	if cfg.Placement == nil {
		cfg.Placement = def.Placement
	}
	if cfg.Catalog == nil {
		cfg.Catalog = def.Catalog
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	return cfg
}

func DefaultConfig() Config { return Config{Logger: zap.NewNop()} }

// Observer fans mutations out across the destinations interested in
// each key.
type Observer struct {
	Config
	pending *pending.Store
	members *member.Tracker
}

func New(store *pending.Store, members *member.Tracker, cfg Config) *Observer {
	return &Observer{Config: cfg.Merge(DefaultConfig()), pending: store, members: members}
}

// OnMutation folds the mutation's version evidence into the pending
// store for every external replica of its key. Mutations against
// reserved keyspaces and table writes without version evidence are
// skipped.
func (o *Observer) OnMutation(m Mutation) {
	if schema.Reserved(m.Keyspace) {
		return
	}
	for _, w := range m.Writes {
		if w.Version == nil {
			continue
		}
		o.fold(m.Keyspace, w.Table, m.Key, *w.Version)
	}
}

// Backfill folds every recently written key so peers are informed even
// before new writes arrive. Per-key read failures are logged and skip
// only that key.
func (o *Observer) Backfill(store meta.Store) {
	keys, err := store.RecentlyWrittenKeys()
	if err != nil {
		o.Logger.Error("failed to list recently written keys", zap.Error(err))
		return
	}
	o.Logger.Info("backfilling pending messages", zap.Int("keys", len(keys)))
	for _, key := range keys {
		version, ok, err := store.StoredVersion(key.Keyspace, key.Table, key.Key)
		if err != nil {
			o.Logger.Error("failed to read stored version",
				zap.String("keyspace", key.Keyspace),
				zap.String("table", key.Table),
				zap.Error(err),
			)
			continue
		}
		if !ok {
			continue
		}
		o.fold(key.Keyspace, key.Table, key.Key, version)
	}
}

func (o *Observer) fold(keyspace, table string, key []byte, version meta.Version) {
	tbl, ok := o.Catalog.Table(keyspace, table)
	if !ok {
		o.Logger.Warn("no metadata for table",
			zap.String("keyspace", keyspace),
			zap.String("table", table),
		)
		return
	}
	keyID, err := tbl.RenderKey(key)
	if err != nil {
		o.Logger.Error("failed to render key identifier",
			zap.String("keyspace", keyspace),
			zap.String("table", table),
			zap.Error(err),
		)
		return
	}
	replicas, err := o.Placement.ReplicasFor(keyspace, key)
	if err != nil {
		o.Logger.Error("failed to resolve replicas",
			zap.String("keyspace", keyspace),
			zap.Error(err),
		)
		return
	}
	for _, dest := range address.Remove(replicas, o.Host) {
		o.pending.Fold(dest, keyID, version.Counter, version.WriteTime)
		o.members.Add(dest)
	}
}

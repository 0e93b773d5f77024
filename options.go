package pulse

import (
	"time"

	"github.com/arya-analytics/pulse/internal/address"
	"github.com/arya-analytics/pulse/internal/meta"
	"github.com/arya-analytics/pulse/internal/schema"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

type Option func(*options)

type options struct {
	// addr is the local node's address, never disseminated to.
	addr address.Address
	// datacenter labels the origin of every outbound digest.
	datacenter string
	// interval between dissemination ticks.
	interval time.Duration
	// transport carries digests and shutdown notices to peers.
	transport Transport
	// placement computes replica lists for keys.
	placement PlacementResolver
	// detector delivers conviction callbacks.
	detector FailureDetector
	// catalog renders raw key bytes into stable identifiers.
	catalog schema.Catalog
	// meta serves the startup backfill.
	meta   meta.Store
	logger *zap.Logger
}

func newOptions(addr Address, t Transport, opts ...Option) *options {
	o := &options{addr: addr, transport: t}
	for _, opt := range opts {
		opt(o)
	}
	mergeDefaultOptions(o)
	return o
}

func mergeDefaultOptions(o *options) {
	if o.datacenter == "" {
		o.datacenter = "datacenter1"
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
}

func validateOptions(o *options) error {
	if o.addr == "" {
		return errors.New("local address must be set")
	}
	if o.transport.Digests == nil || o.transport.Shutdowns == nil || o.transport.Listener == nil {
		return errors.New("transport must be fully configured")
	}
	if o.placement == nil {
		return errors.New("placement resolver must be set")
	}
	if o.detector == nil {
		return errors.New("failure detector must be set")
	}
	if o.catalog == nil {
		return errors.New("schema catalog must be set")
	}
	if o.meta == nil {
		return errors.New("metadata store must be set")
	}
	return nil
}

func WithDatacenter(dc string) Option { return func(o *options) { o.datacenter = dc } }

func WithInterval(interval time.Duration) Option {
	return func(o *options) { o.interval = interval }
}

func WithPlacement(p PlacementResolver) Option { return func(o *options) { o.placement = p } }

func WithFailureDetector(d FailureDetector) Option { return func(o *options) { o.detector = d } }

func WithCatalog(c schema.Catalog) Option { return func(o *options) { o.catalog = c } }

func WithMetaStore(s meta.Store) Option { return func(o *options) { o.meta = s } }

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.logger = l } }

// Package mock provisions fully wired in-memory pulse nodes for
// tests and examples.
package mock

import (
	"context"

	"github.com/arya-analytics/pulse"
	"github.com/arya-analytics/pulse/internal/beat"
	"github.com/arya-analytics/pulse/internal/meta/pebblemeta"
	"github.com/arya-analytics/pulse/internal/pending"
	"github.com/arya-analytics/pulse/internal/schema"
	"github.com/arya-analytics/pulse/transport/tmock"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

type NodeInfo struct {
	Addr  pulse.Address
	Pulse pulse.Pulse
	Meta  *pebblemeta.DB
}

// Builder provisions nodes that share one in-memory transport network,
// one failure detector, and one catalog, each with its own
// memory-backed metadata store.
type Builder struct {
	DigestNet      *tmock.Network[pending.Digest]
	ShutdownNet    *tmock.Network[beat.Shutdown]
	Detector       *Detector
	Catalog        schema.Catalog
	Placement      pulse.PlacementResolver
	DefaultOptions []pulse.Option
	Nodes          map[pulse.Address]NodeInfo
}

func NewBuilder(defaultOpts ...pulse.Option) *Builder {
	return &Builder{
		DigestNet:      tmock.NewNetwork[pending.Digest](),
		ShutdownNet:    tmock.NewNetwork[beat.Shutdown](),
		Detector:       &Detector{},
		DefaultOptions: defaultOpts,
		Nodes:          make(map[pulse.Address]NodeInfo),
	}
}

func (b *Builder) New(addr pulse.Address, opts ...pulse.Option) (pulse.Pulse, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, err
	}
	metaStore := pebblemeta.Wrap(db, pebblemeta.Config{})
	t := pulse.Transport{
		Digests:   b.DigestNet.Route(addr),
		Shutdowns: b.ShutdownNet.Route(addr),
		Listener:  ReadyListener(),
	}
	p, err := pulse.Open(addr, t, append(append([]pulse.Option{
		pulse.WithPlacement(b.Placement),
		pulse.WithFailureDetector(b.Detector),
		pulse.WithCatalog(b.Catalog),
		pulse.WithMetaStore(metaStore),
	}, b.DefaultOptions...), opts...)...)
	if err != nil {
		return nil, err
	}
	b.Nodes[addr] = NodeInfo{Addr: addr, Pulse: p, Meta: metaStore}
	return p, nil
}

// ReadyListener is a readiness gate that is always open.
func ReadyListener() beat.Listener {
	return beat.ListenerFunc(func(context.Context) error { return nil })
}

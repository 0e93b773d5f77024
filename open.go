package pulse

import (
	"context"

	"github.com/arya-analytics/pulse/internal/beat"
	"github.com/arya-analytics/pulse/internal/member"
	"github.com/arya-analytics/pulse/internal/observe"
	"github.com/arya-analytics/pulse/internal/pending"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Open wires a disseminator for the node at addr. Registration with
// the failure detector happens here and is a hard requirement: without
// conviction events the shutdown broadcast would target dead peers
// forever, so a registration failure aborts Open.
func Open(addr Address, t Transport, opts ...Option) (Pulse, error) {
	o := newOptions(addr, t, opts...)
	if err := validateOptions(o); err != nil {
		return nil, err
	}
	store := pending.NewStore(o.datacenter)
	members := member.NewTracker()
	c := &core{
		options: o,
		pending: store,
		members: members,
		observer: observe.New(store, members, observe.Config{
			Host:      o.addr,
			Placement: o.placement,
			Catalog:   o.catalog,
			Logger:    o.logger.Named("observe"),
		}),
		beat: beat.New(store, members, beat.Config{
			Host:      o.addr,
			Interval:  o.interval,
			Digests:   o.transport.Digests,
			Shutdowns: o.transport.Shutdowns,
			Listener:  o.transport.Listener,
			Logger:    o.logger.Named("beat"),
		}),
	}
	if err := o.detector.RegisterListener(c); err != nil {
		return nil, errors.Wrap(err, "pulse: failed to register with failure detector")
	}
	return c, nil
}

type core struct {
	*options
	pending  *pending.Store
	members  *member.Tracker
	observer *observe.Observer
	beat     *beat.Disseminator
}

func (c *core) Start(ctx context.Context) error {
	c.observer.Backfill(c.meta)
	return c.beat.Start(ctx)
}

func (c *core) Stop(ctx context.Context) error { return c.beat.Stop(ctx) }

func (c *core) OnMutation(m Mutation) { c.observer.OnMutation(m) }

// OnConvict implements member.ConvictListener. The destination is
// dropped from both the membership set and the pending store; a later
// write touching its replica set re-discovers it.
func (c *core) OnConvict(addr Address, phi float64) {
	c.logger.Info("peer convicted",
		zap.String("peer", addr.String()),
		zap.Float64("phi", phi),
	)
	c.members.Remove(addr)
	c.pending.Remove(addr)
}

func (c *core) Generation() int64 { return c.beat.Generation() }

func (c *core) PendingDestinations() int { return c.pending.Count() }

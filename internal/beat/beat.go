// Package beat schedules the periodic dissemination of pending sync
// messages and owns the disseminator lifecycle.
package beat

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arya-analytics/pulse/internal/address"
	"github.com/arya-analytics/pulse/internal/member"
	"github.com/arya-analytics/pulse/internal/pending"
	"github.com/arya-analytics/pulse/transport"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Shutdown is the HEARTBEAT_SHUTDOWN notice broadcast when the local
// node withdraws. It carries no key payload.
type Shutdown struct {
	Origin address.Address
}

type (
	DigestTransport   = transport.OneWay[pending.Digest]
	ShutdownTransport = transport.OneWay[Shutdown]
)

// Listener gates sends on the messaging layer actually accepting
// traffic.
type Listener interface {
	WaitUntilListening(ctx context.Context) error
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(ctx context.Context) error

func (f ListenerFunc) WaitUntilListening(ctx context.Context) error { return f(ctx) }

type State byte

const (
	Stopped State = iota
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "stopped"
	}
}

type Config struct {
	// Host is the local node's address, carried as the origin of
	// shutdown notices.
	Host address.Address
	// Interval between dissemination ticks. The first tick fires one
	// interval after Start, and Stop waits two intervals before the
	// shutdown broadcast.
	Interval  time.Duration
	Digests   DigestTransport
	Shutdowns ShutdownTransport
	Listener  Listener
	Logger    *zap.Logger
}

func (cfg Config) Merge(def Config) Config {
	if cfg.Interval == 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	return cfg
}

func (cfg Config) Validate() error {
	if cfg.Host == "" {
		return errors.New("host address must be set")
	}
	if cfg.Digests == nil {
		return errors.New("digest transport must be set")
	}
	if cfg.Shutdowns == nil {
		return errors.New("shutdown transport must be set")
	}
	if cfg.Listener == nil {
		return errors.New("listener must be set")
	}
	return nil
}

func DefaultConfig() Config {
	return Config{Interval: 1 * time.Second, Logger: zap.NewNop()}
}

// Disseminator periodically drains the pending store and sends one
// digest per non-empty destination.
type Disseminator struct {
	Config
	pending    *pending.Store
	members    *member.Tracker
	generation int64

	mu    sync.Mutex
	state State
	stop  chan struct{}
	done  chan struct{}
}

func New(store *pending.Store, members *member.Tracker, cfg Config) *Disseminator {
	return &Disseminator{Config: cfg.Merge(DefaultConfig()), pending: store, members: members}
}

// Start schedules ticks at the configured interval. The first tick
// fires one interval from now, not immediately.
func (d *Disseminator) Start(ctx context.Context) error {
	if err := d.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Stopped {
		return errors.Newf("cannot start disseminator while %s", d.state)
	}
	d.state = Running
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	d.Logger.Info("starting disseminator", zap.Duration("interval", d.Interval))
	go d.run(ctx)
	return nil
}

func (d *Disseminator) run(ctx context.Context) {
	defer close(d.done)
	t := time.NewTicker(d.Interval)
	defer t.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-ctx.Done():
			return
		case <-t.C:
			d.tick(ctx)
		}
	}
}

// tick runs one dissemination cycle. A panic inside the tick body is
// contained so it cannot cancel future ticks.
func (d *Disseminator) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			d.Logger.Error("dissemination tick panicked", zap.Any("panic", r))
		}
	}()
	d.TickOnce(ctx)
}

// TickOnce runs a single dissemination cycle: if any destination has
// pending entries, bump the generation, stamp the send time, and send
// one digest per non-empty destination in address order; then clear.
// An empty store skips the send (and the generation bump) but still
// clears.
func (d *Disseminator) TickOnce(ctx context.Context) {
	if err := d.Listener.WaitUntilListening(ctx); err != nil {
		d.Logger.Warn("messaging layer not listening", zap.Error(err))
		return
	}
	if d.pending.Empty() {
		d.pending.Clear()
		return
	}
	gen := atomic.AddInt64(&d.generation, 1)
	sentAt := time.Now().UnixMilli()
	d.pending.DrainAndSend(sentAt, func(dest address.Address, digest pending.Digest) {
		// One destination failing must not starve the others.
		if err := d.Digests.Send(ctx, dest, digest); err != nil {
			d.Logger.Warn("failed to send heartbeat digest",
				zap.String("to", dest.String()),
				zap.Error(err),
			)
			return
		}
		d.Logger.Debug("sent heartbeat digest",
			zap.String("to", dest.String()),
			zap.Int("keys", len(digest.Entries)),
			zap.Int64("generation", gen),
		)
	})
}

// Stop cancels future ticks without interrupting an in-flight one,
// waits two intervals for the last tick to settle, then broadcasts a
// shutdown notice to every destination still in the membership set.
func (d *Disseminator) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.state != Running {
		d.mu.Unlock()
		return errors.Newf("cannot stop disseminator while %s", d.state)
	}
	d.state = Stopping
	d.mu.Unlock()
	d.Logger.Info("stopping disseminator")
	close(d.stop)
	<-d.done

	select {
	case <-time.After(2 * d.Interval):
	case <-ctx.Done():
		d.setState(Stopped)
		return ctx.Err()
	}

	var g errgroup.Group
	for _, addr := range d.members.Snapshot() {
		addr := addr
		g.Go(func() error {
			if err := d.Shutdowns.Send(ctx, addr, Shutdown{Origin: d.Host}); err != nil {
				d.Logger.Warn("failed to send shutdown notice",
					zap.String("to", addr.String()),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
	d.setState(Stopped)
	d.Logger.Info("disseminator stopped")
	return nil
}

func (d *Disseminator) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// State returns the current lifecycle state.
func (d *Disseminator) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Generation returns the number of ticks that have sent at least one
// digest.
func (d *Disseminator) Generation() int64 {
	return atomic.LoadInt64(&d.generation)
}

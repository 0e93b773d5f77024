// Package tmock provides an in-memory, synchronous transport network
// for tests.
package tmock

import (
	"context"
	"fmt"
	"sync"

	"github.com/arya-analytics/pulse/internal/address"
	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
)

// Entry records one send that crossed the network.
type Entry[M any] struct {
	Target  address.Address
	Message M
}

// Network routes messages between the endpoints it has issued. All
// delivery is synchronous on the sender's goroutine.
type Network[M any] struct {
	mu        sync.Mutex
	endpoints map[address.Address]*OneWay[M]
	entries   []Entry[M]
}

func NewNetwork[M any]() *Network[M] {
	return &Network[M]{endpoints: make(map[address.Address]*OneWay[M])}
}

// Route issues an endpoint at addr. An empty addr is assigned a unique
// localhost address.
func (n *Network[M]) Route(addr address.Address) *OneWay[M] {
	n.mu.Lock()
	defer n.mu.Unlock()
	if addr == "" {
		addr = address.Address(fmt.Sprintf("localhost:%d", len(n.endpoints)+1))
	}
	ep := &OneWay[M]{Address: addr, net: n}
	n.endpoints[addr] = ep
	return ep
}

// Entries returns every send observed so far, in order.
func (n *Network[M]) Entries() []Entry[M] {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Entry[M]{}, n.entries...)
}

// Sent returns the messages delivered to target, in order.
func (n *Network[M]) Sent(target address.Address) []M {
	n.mu.Lock()
	defer n.mu.Unlock()
	var msgs []M
	for _, e := range n.entries {
		if e.Target == target {
			msgs = append(msgs, e.Message)
		}
	}
	return msgs
}

// OneWay is a single addressable endpoint on a Network.
type OneWay[M any] struct {
	Address address.Address
	net     *Network[M]

	mu      sync.RWMutex
	handler func(ctx context.Context, m M) error
}

func (u *OneWay[M]) Send(ctx context.Context, target address.Address, m M) error {
	u.net.mu.Lock()
	ep, ok := u.net.endpoints[target]
	if ok {
		u.net.entries = append(u.net.entries, Entry[M]{Target: target, Message: m})
	}
	u.net.mu.Unlock()
	if !ok {
		return errors.Newf("tmock: no route to %s", target)
	}
	ep.mu.RLock()
	handler := ep.handler
	ep.mu.RUnlock()
	if handler == nil {
		log.Warnf("tmock: no handler bound at %s", target)
		return nil
	}
	return handler(ctx, m)
}

func (u *OneWay[M]) Handle(handle func(ctx context.Context, m M) error) {
	u.mu.Lock()
	u.handler = handle
	u.mu.Unlock()
}

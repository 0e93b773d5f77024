// Package transport defines the one-way messaging boundary the
// disseminator sends on. Implementations live in sub-packages; tests
// use the in-memory network in tmock.
package transport

import (
	"context"

	"github.com/arya-analytics/pulse/internal/address"
)

// OneWay is a fire-and-forget transport for messages of type M. Send
// returns once the message is handed to the underlying layer; there is
// no delivery confirmation and no retry.
type OneWay[M any] interface {
	Send(ctx context.Context, target address.Address, m M) error
	// Handle binds the server-side handler invoked for each received
	// message.
	Handle(handle func(ctx context.Context, m M) error)
}

package pulse

import "github.com/arya-analytics/pulse/internal/beat"

// Transport bundles the one-way channels the disseminator sends on and
// the readiness gate it checks before the first send of each tick.
type Transport struct {
	Digests   beat.DigestTransport
	Shutdowns beat.ShutdownTransport
	Listener  beat.Listener
}

// Package pulse disseminates replica liveness and version metadata.
// One Pulse instance runs per process: the storage write path reports
// applied mutations to it, and a periodic sender informs every peer
// replica which locally owned keys were recently mutated and at what
// version, so peers can detect staleness in their copies without a
// full anti-entropy scan.
package pulse

import (
	"context"

	"github.com/arya-analytics/pulse/internal/address"
	"github.com/arya-analytics/pulse/internal/member"
	"github.com/arya-analytics/pulse/internal/meta"
	"github.com/arya-analytics/pulse/internal/observe"
	"github.com/arya-analytics/pulse/internal/pending"
)

type (
	Address           = address.Address
	Mutation          = observe.Mutation
	TableWrite        = observe.TableWrite
	KeyVersion        = meta.Version
	Digest            = pending.Digest
	PlacementResolver = observe.PlacementResolver
	ConvictListener   = member.ConvictListener
)

// FailureDetector is the external membership/suspicion subsystem. The
// core only registers for conviction callbacks; the detection
// algorithm itself lives elsewhere.
type FailureDetector interface {
	RegisterListener(ConvictListener) error
}

// Pulse is the process-scoped disseminator service. Construct it once
// with Open and hand the same instance to every call site that reports
// mutations or queries state.
type Pulse interface {
	// Start backfills pending messages from recently written keys and
	// schedules dissemination ticks.
	Start(ctx context.Context) error
	// Stop cancels future ticks, waits out the grace period, and
	// broadcasts a shutdown notice to the current membership.
	Stop(ctx context.Context) error
	// OnMutation reports one applied local mutation. It never blocks
	// on I/O and never surfaces an error to the writer.
	OnMutation(m Mutation)
	// Generation is the number of ticks that have sent at least one
	// digest.
	Generation() int64
	// PendingDestinations is the number of destinations with pending
	// key versions.
	PendingDestinations() int
}

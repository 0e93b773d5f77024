package mock

import (
	"github.com/arya-analytics/pulse"
	"github.com/cockroachdb/errors"
)

// Placement resolves replica lists from a static table keyed by
// keyspace. Every key in a keyspace maps to the same replicas, which
// is all the disseminator tests need.
type Placement struct {
	Replicas map[string][]pulse.Address
}

func (p Placement) ReplicasFor(keyspace string, _ []byte) ([]pulse.Address, error) {
	replicas, ok := p.Replicas[keyspace]
	if !ok {
		return nil, errors.Newf("mock: no placement for keyspace %q", keyspace)
	}
	return append([]pulse.Address{}, replicas...), nil
}

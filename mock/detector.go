package mock

import (
	"sync"

	"github.com/arya-analytics/pulse"
)

// Detector is a scriptable failure detector. Tests call Convict to
// deliver conviction events to every registered listener.
type Detector struct {
	mu        sync.Mutex
	listeners []pulse.ConvictListener
	// RejectRegistration makes RegisterListener fail, for exercising
	// the fatal startup path.
	RejectRegistration error
}

func (d *Detector) RegisterListener(l pulse.ConvictListener) error {
	if d.RejectRegistration != nil {
		return d.RejectRegistration
	}
	d.mu.Lock()
	d.listeners = append(d.listeners, l)
	d.mu.Unlock()
	return nil
}

func (d *Detector) Convict(addr pulse.Address, phi float64) {
	d.mu.Lock()
	listeners := append([]pulse.ConvictListener{}, d.listeners...)
	d.mu.Unlock()
	for _, l := range listeners {
		l.OnConvict(addr, phi)
	}
}

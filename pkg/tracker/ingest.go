package tracker

import (
	"sync/atomic"
	"time"

	"github.com/unklstewy/ads-btrack/pkg/adsb"
	"github.com/unklstewy/ads-btrack/pkg/modes"
)

// Tracker feeds decoded messages into a Store.
type Tracker struct {
	store     *Store
	positions atomic.Int64
}

// NewTracker creates a Tracker writing to store.
func NewTracker(store *Store) *Tracker {
	return &Tracker{store: store}
}

// Store returns the underlying store.
func (t *Tracker) Store() *Store {
	return t.store
}

// Positions returns the number of position reports accepted so far.
func (t *Tracker) Positions() int64 {
	return t.positions.Load()
}

// Handle applies one message received at now. Every message carrying an
// address refreshes that aircraft; airborne position reports additionally
// record their CPR fragment. Altitude is kept from any message that has one.
//
// It returns the identity touched, or false if the message had no address.
func (t *Tracker) Handle(m modes.Message, now time.Time) (adsb.Identity, bool) {
	if !m.HasICAO {
		return 0, false
	}
	id := adsb.Identity(m.ICAO)

	if r, ok := adsb.Classify(m); ok {
		t.store.RecordFragment(id, r.Fragment(now), now)
		t.positions.Add(1)
	} else {
		t.store.Touch(id, now)
	}

	if m.HasAltitude {
		t.store.RecordAltitude(id, m.Altitude)
	}
	return id, true
}

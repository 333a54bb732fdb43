// Package tracker maintains the live per-aircraft picture: the latest even
// and odd CPR fragments, altitude and last-seen time of every aircraft heard,
// with on-demand position resolution and eviction of silent aircraft.
package tracker

import (
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/unklstewy/ads-btrack/pkg/adsb"
)

const (
	// DefaultMaxPairAge is the largest time gap between an even and an odd
	// fragment that are still combined into a position. Airborne position
	// squitters of each parity are broadcast about twice per second.
	DefaultMaxPairAge = 10 * time.Second

	// DefaultStaleAfter is how long an aircraft may stay silent before it is
	// evicted.
	DefaultStaleAfter = 60 * time.Second
)

// Options configures a Store.
type Options struct {
	// MaxPairAge bounds the even/odd timestamp gap used by Snapshot and
	// Aircraft (default: 10 seconds)
	MaxPairAge time.Duration

	// StaleAfter is the eviction threshold used by Prune (default: 60 seconds)
	StaleAfter time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxPairAge <= 0 {
		o.MaxPairAge = DefaultMaxPairAge
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = DefaultStaleAfter
	}
	return o
}

// state is everything the store knows about one aircraft.
type state struct {
	// fragments holds the latest fragment of each parity, indexed by Parity
	fragments [2]*adsb.Fragment

	// lastParity is the parity recorded most recently
	lastParity adsb.Parity

	altitude    int
	hasAltitude bool

	firstSeen time.Time
	lastSeen  time.Time
	messages  int64
}

// Store maps aircraft identities to their tracking state.
// All methods are safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	aircraft map[adsb.Identity]*state
	opts     Options
}

// New creates an empty Store.
func New(opts Options) *Store {
	return &Store{
		aircraft: make(map[adsb.Identity]*state),
		opts:     opts.withDefaults(),
	}
}

// Options returns the effective options of the store.
func (s *Store) Options() Options {
	return s.opts
}

// Touch records that a message of any kind was heard from id at now,
// creating the entry if needed.
func (s *Store) Touch(id adsb.Identity, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touch(id, now)
}

// RecordFragment touches id and stores frag in the slot of its parity,
// replacing any earlier fragment of the same parity.
func (s *Store) RecordFragment(id adsb.Identity, frag adsb.Fragment, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.touch(id, now)
	st.fragments[frag.Parity&1] = &frag
	st.lastParity = frag.Parity & 1
}

// RecordAltitude stores the latest altitude of a tracked aircraft. It does
// nothing for an identity that is not tracked.
func (s *Store) RecordAltitude(id adsb.Identity, altitude int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.aircraft[id]; ok {
		st.altitude = altitude
		st.hasAltitude = true
	}
}

func (s *Store) touch(id adsb.Identity, now time.Time) *state {
	st, ok := s.aircraft[id]
	if !ok {
		st = &state{firstSeen: now}
		s.aircraft[id] = st
	}
	if now.After(st.lastSeen) {
		st.lastSeen = now
	}
	st.messages++
	return st
}

// Resolve returns the position of id from its current even and odd
// fragments. It returns false if the aircraft is unknown, a fragment is
// missing, the fragments were captured more than maxPairAge apart, or the
// pair does not decode.
func (s *Store) Resolve(id adsb.Identity, maxPairAge time.Duration) (adsb.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.aircraft[id]
	if !ok {
		return adsb.Position{}, false
	}
	return st.resolve(maxPairAge)
}

func (st *state) resolve(maxPairAge time.Duration) (adsb.Position, bool) {
	even, odd := st.fragments[adsb.Even], st.fragments[adsb.Odd]
	if even == nil || odd == nil {
		return adsb.Position{}, false
	}

	gap := even.Time.Sub(odd.Time)
	if gap < 0 {
		gap = -gap
	}
	if gap > maxPairAge {
		return adsb.Position{}, false
	}

	// The newer fragment is canonical; on a tie, the one recorded last.
	latest := st.lastParity
	switch {
	case even.Time.After(odd.Time):
		latest = adsb.Even
	case odd.Time.After(even.Time):
		latest = adsb.Odd
	}

	lat, lon, ok := adsb.DecodeGlobal(*even, *odd, latest)
	if !ok {
		return adsb.Position{}, false
	}

	return adsb.Position{
		Latitude:    lat,
		Longitude:   lon,
		Altitude:    st.altitude,
		HasAltitude: st.hasAltitude,
	}, true
}

// Evict removes every aircraft last seen more than threshold before now and
// returns the removed identities in ascending order.
func (s *Store) Evict(now time.Time, threshold time.Duration) []adsb.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []adsb.Identity
	for id, st := range s.aircraft {
		if now.Sub(st.lastSeen) > threshold {
			delete(s.aircraft, id)
			evicted = append(evicted, id)
		}
	}
	slices.Sort(evicted)
	return evicted
}

// Prune evicts with the store's configured StaleAfter threshold.
func (s *Store) Prune(now time.Time) []adsb.Identity {
	return s.Evict(now, s.opts.StaleAfter)
}

// Snapshot returns a sequence over all tracked aircraft in ascending
// identity order, each paired with its resolved position or nil.
//
// The sequence is lazy: the identity set is captured when iteration starts
// and each position is resolved as it is yielded. Aircraft evicted in the
// meantime are skipped. Ranging over the sequence again re-reads the store.
func (s *Store) Snapshot() iter.Seq2[adsb.Identity, *adsb.Position] {
	return func(yield func(adsb.Identity, *adsb.Position) bool) {
		for _, id := range s.Identities() {
			pos, tracked := s.lookupPosition(id)
			if !tracked {
				continue
			}
			if !yield(id, pos) {
				return
			}
		}
	}
}

func (s *Store) lookupPosition(id adsb.Identity) (*adsb.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.aircraft[id]
	if !ok {
		return nil, false
	}
	if pos, ok := st.resolve(s.opts.MaxPairAge); ok {
		return &pos, true
	}
	return nil, true
}

// Len returns the number of tracked aircraft.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.aircraft)
}

// Identities returns the tracked identities in ascending order.
func (s *Store) Identities() []adsb.Identity {
	s.mu.RLock()
	ids := make([]adsb.Identity, 0, len(s.aircraft))
	for id := range s.aircraft {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

// Aircraft returns a view of every tracked aircraft, ordered by identity.
func (s *Store) Aircraft() []adsb.Aircraft {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]adsb.Aircraft, 0, len(s.aircraft))
	for id, st := range s.aircraft {
		list = append(list, s.view(id, st))
	}
	slices.SortFunc(list, func(a, b adsb.Aircraft) int {
		return int(a.ICAO) - int(b.ICAO)
	})
	return list
}

// Lookup returns the view of a single aircraft.
func (s *Store) Lookup(id adsb.Identity) (adsb.Aircraft, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.aircraft[id]
	if !ok {
		return adsb.Aircraft{}, false
	}
	return s.view(id, st), true
}

func (s *Store) view(id adsb.Identity, st *state) adsb.Aircraft {
	ac := adsb.Aircraft{
		ICAO:        id,
		Altitude:    st.altitude,
		HasAltitude: st.hasAltitude,
		Messages:    st.messages,
		FirstSeen:   st.firstSeen,
		LastSeen:    st.lastSeen,
	}
	if pos, ok := st.resolve(s.opts.MaxPairAge); ok {
		ac.Position = &pos
	}
	return ac
}

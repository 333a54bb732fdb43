package tracker

import (
	"maps"
	"math"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/unklstewy/ads-btrack/pkg/adsb"
)

const testICAO adsb.Identity = 0xABCDEF

var epoch = time.Unix(1700000000, 0)

func at(seconds float64) time.Time {
	return epoch.Add(time.Duration(seconds * float64(time.Second)))
}

func evenFragment(t time.Time) adsb.Fragment {
	return adsb.Fragment{Lat: 93000, Lon: 51372, Parity: adsb.Even, Time: t}
}

func oddFragment(t time.Time) adsb.Fragment {
	return adsb.Fragment{Lat: 74158, Lon: 50194, Parity: adsb.Odd, Time: t}
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= 1e-4
}

// TestResolveScenario walks one aircraft through resolution and eviction.
func TestResolveScenario(t *testing.T) {
	s := New(Options{})

	s.RecordFragment(testICAO, oddFragment(at(0)), at(0))
	s.RecordFragment(testICAO, evenFragment(at(1)), at(1))

	pos, ok := s.Resolve(testICAO, DefaultMaxPairAge)
	if !ok {
		t.Fatal("Expected resolved position at t=1")
	}
	if !near(pos.Latitude, 52.2572) || !near(pos.Longitude, 3.91937) {
		t.Errorf("Expected (52.2572, 3.91937), got (%.5f, %.5f)", pos.Latitude, pos.Longitude)
	}

	t.Run("Silent aircraft is evicted", func(t *testing.T) {
		s := New(Options{})
		s.RecordFragment(testICAO, oddFragment(at(0)), at(0))
		s.RecordFragment(testICAO, evenFragment(at(1)), at(1))

		if got := s.Evict(at(61), 60*time.Second); len(got) != 0 {
			t.Errorf("Expected no eviction at t=61, got %v", got)
		}
		got := s.Evict(at(62), 60*time.Second)
		if !slices.Equal(got, []adsb.Identity{testICAO}) {
			t.Errorf("Expected [ABCDEF] evicted at t=62, got %v", got)
		}
		if s.Len() != 0 {
			t.Errorf("Expected empty store, got %d entries", s.Len())
		}
	})

	t.Run("Touch keeps aircraft alive", func(t *testing.T) {
		s := New(Options{})
		s.RecordFragment(testICAO, oddFragment(at(0)), at(0))
		s.RecordFragment(testICAO, evenFragment(at(1)), at(1))

		s.Touch(testICAO, at(61))
		if got := s.Evict(at(61), 60*time.Second); len(got) != 0 {
			t.Errorf("Expected no eviction at t=61, got %v", got)
		}
		if got := s.Evict(at(62), 60*time.Second); len(got) != 0 {
			t.Errorf("Expected no eviction at t=62, got %v", got)
		}
		if _, ok := s.Lookup(testICAO); !ok {
			t.Error("Expected aircraft to remain tracked")
		}
	})
}

// TestResolveLatestParity tests which fragment's latitude band is used.
func TestResolveLatestParity(t *testing.T) {
	tests := []struct {
		name    string
		record  []adsb.Fragment
		wantLat float64
		wantLon float64
	}{
		{
			name:    "Even newer",
			record:  []adsb.Fragment{oddFragment(at(0)), evenFragment(at(1))},
			wantLat: 52.2572021484375,
			wantLon: 3.91937255859375,
		},
		{
			name:    "Odd newer",
			record:  []adsb.Fragment{evenFragment(at(0)), oddFragment(at(1))},
			wantLat: 52.26578017412606,
			wantLon: 3.938912527901786,
		},
		{
			name:    "Odd newer but recorded first",
			record:  []adsb.Fragment{oddFragment(at(1)), evenFragment(at(0))},
			wantLat: 52.26578017412606,
			wantLon: 3.938912527901786,
		},
		{
			name:    "Tie goes to last recorded",
			record:  []adsb.Fragment{evenFragment(at(1)), oddFragment(at(1))},
			wantLat: 52.26578017412606,
			wantLon: 3.938912527901786,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Options{})
			for _, f := range tt.record {
				s.RecordFragment(testICAO, f, f.Time)
			}

			pos, ok := s.Resolve(testICAO, DefaultMaxPairAge)
			if !ok {
				t.Fatal("Expected resolved position")
			}
			if !near(pos.Latitude, tt.wantLat) || !near(pos.Longitude, tt.wantLon) {
				t.Errorf("Expected (%.5f, %.5f), got (%.5f, %.5f)",
					tt.wantLat, tt.wantLon, pos.Latitude, pos.Longitude)
			}
		})
	}
}

// TestResolveAbsent tests the cases where no position can be produced.
func TestResolveAbsent(t *testing.T) {
	t.Run("Unknown aircraft", func(t *testing.T) {
		s := New(Options{})
		if _, ok := s.Resolve(testICAO, DefaultMaxPairAge); ok {
			t.Error("Expected no position for unknown aircraft")
		}
	})

	t.Run("Only even fragments", func(t *testing.T) {
		s := New(Options{})
		s.RecordFragment(testICAO, evenFragment(at(0)), at(0))
		s.RecordFragment(testICAO, evenFragment(at(1)), at(1))
		if _, ok := s.Resolve(testICAO, DefaultMaxPairAge); ok {
			t.Error("Expected no position with a single parity")
		}
	})

	t.Run("Only odd fragment", func(t *testing.T) {
		s := New(Options{})
		s.RecordFragment(testICAO, oddFragment(at(0)), at(0))
		if _, ok := s.Resolve(testICAO, DefaultMaxPairAge); ok {
			t.Error("Expected no position with a single parity")
		}
	})

	t.Run("Pair too far apart", func(t *testing.T) {
		s := New(Options{})
		s.RecordFragment(testICAO, evenFragment(at(0)), at(0))
		s.RecordFragment(testICAO, oddFragment(at(11)), at(11))
		if _, ok := s.Resolve(testICAO, 10*time.Second); ok {
			t.Error("Expected no position for an 11s gap with a 10s window")
		}
		if _, ok := s.Resolve(testICAO, 11*time.Second); !ok {
			t.Error("Expected a position for an 11s gap with an 11s window")
		}
	})

	t.Run("Touch only", func(t *testing.T) {
		s := New(Options{})
		s.Touch(testICAO, at(0))
		if _, ok := s.Resolve(testICAO, DefaultMaxPairAge); ok {
			t.Error("Expected no position without fragments")
		}
	})
}

// TestRecordFragmentOverwrites tests that a newer fragment replaces the
// older one of the same parity.
func TestRecordFragmentOverwrites(t *testing.T) {
	s := New(Options{})

	bogus := adsb.Fragment{Lat: 0, Lon: 0, Parity: adsb.Even, Time: at(0)}
	s.RecordFragment(testICAO, bogus, at(0))
	s.RecordFragment(testICAO, oddFragment(at(1)), at(1))

	if pos, ok := s.Resolve(testICAO, DefaultMaxPairAge); ok && near(pos.Latitude, 52.26578) {
		t.Fatal("Expected the first even fragment to give a different result")
	}

	s.RecordFragment(testICAO, evenFragment(at(1.5)), at(1.5))
	pos, ok := s.Resolve(testICAO, DefaultMaxPairAge)
	if !ok {
		t.Fatal("Expected resolved position after overwrite")
	}
	if !near(pos.Latitude, 52.2572021484375) || !near(pos.Longitude, 3.91937255859375) {
		t.Errorf("Expected reference position, got (%.5f, %.5f)", pos.Latitude, pos.Longitude)
	}
}

// TestAltitude tests that resolved positions carry the latest altitude.
func TestAltitude(t *testing.T) {
	s := New(Options{})

	s.RecordAltitude(testICAO, 1000)
	if s.Len() != 0 {
		t.Fatal("Expected RecordAltitude to ignore unknown aircraft")
	}

	s.RecordFragment(testICAO, evenFragment(at(0)), at(0))
	s.RecordFragment(testICAO, oddFragment(at(1)), at(1))

	pos, ok := s.Resolve(testICAO, DefaultMaxPairAge)
	if !ok {
		t.Fatal("Expected resolved position")
	}
	if pos.HasAltitude {
		t.Errorf("Expected no altitude yet, got %d", pos.Altitude)
	}

	s.RecordAltitude(testICAO, 38000)
	s.RecordAltitude(testICAO, 38025)
	pos, _ = s.Resolve(testICAO, DefaultMaxPairAge)
	if !pos.HasAltitude || pos.Altitude != 38025 {
		t.Errorf("Expected altitude 38025, got %d (present=%v)", pos.Altitude, pos.HasAltitude)
	}
}

// TestEvict tests that eviction removes exactly the stale entries.
func TestEvict(t *testing.T) {
	s := New(Options{})

	s.Touch(0x000001, at(0))
	s.Touch(0x000002, at(10))
	s.Touch(0x000003, at(30))
	s.RecordFragment(0x000004, evenFragment(at(40)), at(40))
	s.RecordFragment(0x000004, oddFragment(at(41)), at(41))
	s.RecordAltitude(0x000004, 12000)

	before, _ := s.Lookup(0x000004)

	got := s.Evict(at(50), 20*time.Second)
	want := []adsb.Identity{0x000001, 0x000002}
	if !slices.Equal(got, want) {
		t.Errorf("Expected %v evicted, got %v", want, got)
	}

	// Exactly 20s old is kept.
	if _, ok := s.Lookup(0x000003); !ok {
		t.Error("Expected entry at the threshold to be kept")
	}

	after, ok := s.Lookup(0x000004)
	if !ok {
		t.Fatal("Expected live entry to be kept")
	}
	if after.Messages != before.Messages || after.Altitude != before.Altitude ||
		!after.LastSeen.Equal(before.LastSeen) || *after.Position != *before.Position {
		t.Errorf("Expected live entry unchanged, before %+v after %+v", before, after)
	}

	if got := s.Evict(at(50), 20*time.Second); len(got) != 0 {
		t.Errorf("Expected repeated eviction to be a no-op, got %v", got)
	}
}

// TestEvictedAircraftReturns tests that an evicted aircraft starts over.
func TestEvictedAircraftReturns(t *testing.T) {
	s := New(Options{})
	s.RecordFragment(testICAO, evenFragment(at(0)), at(0))
	s.Evict(at(100), 60*time.Second)

	s.RecordFragment(testICAO, oddFragment(at(101)), at(101))
	if _, ok := s.Resolve(testICAO, DefaultMaxPairAge); ok {
		t.Error("Expected evicted fragments to be forgotten")
	}

	ac, ok := s.Lookup(testICAO)
	if !ok {
		t.Fatal("Expected aircraft to be tracked again")
	}
	if ac.Messages != 1 || !ac.FirstSeen.Equal(at(101)) {
		t.Errorf("Expected a first sighting, got %d messages since %v", ac.Messages, ac.FirstSeen)
	}
}

// TestTouch tests last-seen and message counting.
func TestTouch(t *testing.T) {
	s := New(Options{})
	s.Touch(testICAO, at(5))
	s.Touch(testICAO, at(7))
	s.RecordFragment(testICAO, evenFragment(at(9)), at(9))

	ac, ok := s.Lookup(testICAO)
	if !ok {
		t.Fatal("Expected aircraft to be tracked")
	}
	if ac.Messages != 3 {
		t.Errorf("Expected 3 messages, got %d", ac.Messages)
	}
	if !ac.FirstSeen.Equal(at(5)) {
		t.Errorf("Expected first seen at t=5, got %v", ac.FirstSeen)
	}
	if !ac.LastSeen.Equal(at(9)) {
		t.Errorf("Expected last seen at t=9, got %v", ac.LastSeen)
	}
	if ac.Position != nil {
		t.Errorf("Expected no position, got %+v", ac.Position)
	}
}

// TestSnapshot tests the lazy snapshot sequence.
func TestSnapshot(t *testing.T) {
	s := New(Options{})
	s.Touch(0x300000, at(0))
	s.RecordFragment(0x100000, evenFragment(at(0)), at(0))
	s.RecordFragment(0x100000, oddFragment(at(1)), at(1))
	s.Touch(0x200000, at(1))

	var ids []adsb.Identity
	var positions []*adsb.Position
	for id, pos := range s.Snapshot() {
		ids = append(ids, id)
		positions = append(positions, pos)
	}

	want := []adsb.Identity{0x100000, 0x200000, 0x300000}
	if !slices.Equal(ids, want) {
		t.Fatalf("Expected %v, got %v", want, ids)
	}
	if positions[0] == nil {
		t.Error("Expected 100000 to have a position")
	}
	if positions[1] != nil || positions[2] != nil {
		t.Error("Expected touched-only aircraft without position")
	}

	t.Run("Restartable", func(t *testing.T) {
		seq := s.Snapshot()
		first := maps.Collect(seq)
		s.Touch(0x400000, at(2))
		second := maps.Collect(seq)
		if len(first) != 3 || len(second) != 4 {
			t.Errorf("Expected 3 then 4 entries, got %d then %d", len(first), len(second))
		}
	})

	t.Run("Early stop", func(t *testing.T) {
		n := 0
		for range s.Snapshot() {
			n++
			break
		}
		if n != 1 {
			t.Errorf("Expected 1 iteration, got %d", n)
		}
	})

	t.Run("Evicted during iteration", func(t *testing.T) {
		s := New(Options{})
		s.Touch(0x000001, at(0))
		s.Touch(0x000002, at(0))
		s.Touch(0x000003, at(100))

		var seen []adsb.Identity
		for id := range s.Snapshot() {
			seen = append(seen, id)
			if id == 0x000001 {
				s.Evict(at(100), 60*time.Second)
			}
		}
		want := []adsb.Identity{0x000001, 0x000003}
		if !slices.Equal(seen, want) {
			t.Errorf("Expected %v, got %v", want, seen)
		}
	})
}

// TestSnapshotStableAcrossNoopEvict tests that sweeping nothing changes
// nothing.
func TestSnapshotStableAcrossNoopEvict(t *testing.T) {
	s := New(Options{})
	s.RecordFragment(testICAO, evenFragment(at(0)), at(0))
	s.RecordFragment(testICAO, oddFragment(at(1)), at(1))
	s.RecordAltitude(testICAO, 38000)
	s.Touch(0x123456, at(2))

	collect := func() map[adsb.Identity]adsb.Position {
		m := make(map[adsb.Identity]adsb.Position)
		for id, pos := range s.Snapshot() {
			if pos != nil {
				m[id] = *pos
			} else {
				m[id] = adsb.Position{}
			}
		}
		return m
	}

	before := collect()
	if evicted := s.Evict(at(3), 60*time.Second); len(evicted) != 0 {
		t.Fatalf("Expected nothing stale, got %v", evicted)
	}
	after := collect()

	if !maps.Equal(before, after) {
		t.Errorf("Expected identical snapshots, got %v and %v", before, after)
	}
}

// TestOptionsDefaults tests zero-value option handling.
func TestOptionsDefaults(t *testing.T) {
	opts := New(Options{}).Options()
	if opts.MaxPairAge != DefaultMaxPairAge {
		t.Errorf("Expected MaxPairAge %v, got %v", DefaultMaxPairAge, opts.MaxPairAge)
	}
	if opts.StaleAfter != DefaultStaleAfter {
		t.Errorf("Expected StaleAfter %v, got %v", DefaultStaleAfter, opts.StaleAfter)
	}

	s := New(Options{MaxPairAge: time.Second})
	s.RecordFragment(testICAO, evenFragment(at(0)), at(0))
	s.RecordFragment(testICAO, oddFragment(at(2)), at(2))
	for _, pos := range s.Snapshot() {
		if pos != nil {
			t.Error("Expected snapshot to honour the configured MaxPairAge")
		}
	}
}

// TestConcurrentAccess exercises the store from several goroutines.
func TestConcurrentAccess(t *testing.T) {
	s := New(Options{})
	var wg sync.WaitGroup

	for g := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				id := adsb.Identity(g*1000 + i%50)
				now := at(float64(i))
				s.RecordFragment(id, evenFragment(now), now)
				s.RecordFragment(id, oddFragment(now), now)
				s.Resolve(id, DefaultMaxPairAge)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range 50 {
			s.Evict(at(float64(i*4)), 30*time.Second)
			for range s.Snapshot() {
			}
		}
	}()

	wg.Wait()
}

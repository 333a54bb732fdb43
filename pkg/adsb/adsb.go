// Package adsb holds the ADS-B tracking core: aircraft identities, CPR
// position fragments, the message classifier and the global CPR decoder.
package adsb

import (
	"fmt"
	"strconv"
	"time"
)

// Identity is the 24-bit ICAO aircraft address transmitted by a transponder.
type Identity uint32

// MaxIdentity is the largest valid 24-bit address.
const MaxIdentity Identity = 0xFFFFFF

// String renders the address as six upper-case hex digits (e.g., "40621D").
func (id Identity) String() string {
	return fmt.Sprintf("%06X", uint32(id))
}

// ParseIdentity parses a hex ICAO address such as "40621d".
func ParseIdentity(s string) (Identity, error) {
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid ICAO address %q: %w", s, err)
	}
	if Identity(v) > MaxIdentity {
		return 0, fmt.Errorf("invalid ICAO address %q: exceeds 24 bits", s)
	}
	return Identity(v), nil
}

// MarshalText encodes the address in its hex form, so JSON carries
// "40621D" rather than a number.
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *Identity) UnmarshalText(text []byte) error {
	v, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// Parity selects one of the two CPR quantization grids.
type Parity uint8

const (
	Even Parity = 0
	Odd  Parity = 1
)

func (p Parity) String() string {
	if p == Odd {
		return "odd"
	}
	return "even"
}

// Fragment is one half of a CPR position report.
type Fragment struct {
	// Lat and Lon are the raw 17-bit CPR values, not degrees.
	Lat uint32
	Lon uint32

	// Parity is the CPR format flag of the report.
	Parity Parity

	// Time is when the report was captured.
	Time time.Time
}

// Position is a resolved geographic position.
// All position data is in WGS84 coordinate system.
type Position struct {
	// Latitude in decimal degrees (-90 to +90)
	Latitude float64 `json:"lat"`

	// Longitude in decimal degrees (-180 to +180)
	Longitude float64 `json:"lon"`

	// Altitude in feet (barometric, referenced to 1013.25 hPa)
	// Valid only if HasAltitude is set.
	Altitude    int  `json:"altitude,omitempty"`
	HasAltitude bool `json:"has_altitude"`
}

// Aircraft is a point-in-time view of one tracked aircraft, used for
// reporting. It is a copy; mutating it does not affect the tracker.
type Aircraft struct {
	// ICAO is the unique 24-bit ICAO aircraft address
	ICAO Identity `json:"icao"`

	// Position is the resolved position, nil if no valid even/odd pair exists
	Position *Position `json:"position,omitempty"`

	// Altitude is the most recently reported altitude in feet
	Altitude    int  `json:"altitude,omitempty"`
	HasAltitude bool `json:"has_altitude"`

	// Messages is the number of messages received from this aircraft
	Messages int64 `json:"messages"`

	// FirstSeen is when the aircraft was first heard (since its last eviction)
	FirstSeen time.Time `json:"first_seen"`

	// LastSeen is the timestamp of the last message of any type
	LastSeen time.Time `json:"last_seen"`
}

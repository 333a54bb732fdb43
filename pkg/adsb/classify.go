package adsb

import (
	"time"

	"github.com/unklstewy/ads-btrack/pkg/modes"
)

// PositionReport is the part of an airborne position squitter the tracker
// keeps.
type PositionReport struct {
	ICAO        Identity
	Altitude    int
	HasAltitude bool
	Parity      Parity
	Lat         uint32
	Lon         uint32
}

// Fragment returns the CPR fragment of the report captured at t.
func (r PositionReport) Fragment(t time.Time) Fragment {
	return Fragment{
		Lat:    r.Lat,
		Lon:    r.Lon,
		Parity: r.Parity,
		Time:   t,
	}
}

// Classify extracts a PositionReport from an airborne position message with
// barometric altitude (DF17, or DF18 with CF=0, type codes 9-18).
// Every other message yields false.
func Classify(m modes.Message) (PositionReport, bool) {
	if !m.HasICAO || !m.HasCPR {
		return PositionReport{}, false
	}

	switch m.DF {
	case modes.DFExtendedSquitter:
	case modes.DFNonTransponder:
		if m.Capability != 0 {
			return PositionReport{}, false
		}
	default:
		return PositionReport{}, false
	}

	if m.TypeCode < 9 || m.TypeCode > 18 {
		return PositionReport{}, false
	}

	r := PositionReport{
		ICAO:        Identity(m.ICAO),
		Altitude:    m.Altitude,
		HasAltitude: m.HasAltitude,
		Parity:      Even,
		Lat:         m.CPRLat,
		Lon:         m.CPRLon,
	}
	if m.CPROdd {
		r.Parity = Odd
	}
	return r, true
}

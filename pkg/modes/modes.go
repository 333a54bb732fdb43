// Package modes decodes raw Mode S downlink frames (as emitted by a 1090 MHz
// demodulator in AVR format) into structured message records.
//
// Only the fields needed by the tracker are extracted: downlink format,
// aircraft address, extended squitter type code, altitude and the raw CPR
// position fields. Decoding failures are returned as errors; the caller
// decides whether to skip the frame or stop.
package modes

import (
	"errors"
	"fmt"
	"strings"
)

// Frame lengths in bytes.
const (
	ShortFrameBytes = 7
	LongFrameBytes  = 14
)

// Downlink formats handled by the decoder.
const (
	DFShortAirAir       = 0
	DFSurveillanceAlt   = 4
	DFSurveillanceIdent = 5
	DFAllCall           = 11
	DFLongAirAir        = 16
	DFExtendedSquitter  = 17
	DFNonTransponder    = 18
	DFCommBAlt          = 20
	DFCommBIdent        = 21
)

var (
	// ErrFraming is returned for lines that are not "*<hex>;" or bare hex.
	ErrFraming = errors.New("modes: bad line framing")

	// ErrLength is returned when the frame length does not match its format.
	ErrLength = errors.New("modes: bad frame length")

	// ErrCRC is returned when the parity check fails.
	ErrCRC = errors.New("modes: parity check failed")

	// ErrUnknownAddress is returned for address/parity frames whose recovered
	// address has not been seen recently in a squitter.
	ErrUnknownAddress = errors.New("modes: address not recently seen")

	// ErrUnsupportedDF is returned for downlink formats the decoder ignores.
	ErrUnsupportedDF = errors.New("modes: unsupported downlink format")
)

// Message is one decoded Mode S frame.
type Message struct {
	// DF is the downlink format (0-24).
	DF int

	// ICAO is the 24-bit aircraft address. Valid only if HasICAO.
	ICAO    uint32
	HasICAO bool

	// Capability is CA for DF11/DF17 and CF for DF18.
	Capability int

	// TypeCode and Subtype of the extended squitter ME field (DF17/18 only).
	TypeCode int
	Subtype  int

	// Altitude in feet. Valid only if HasAltitude.
	Altitude    int
	HasAltitude bool

	// Raw CPR position fields, present for airborne position squitters.
	HasCPR bool
	CPROdd bool
	CPRLat uint32
	CPRLon uint32

	// Raw holds the frame bytes the message was decoded from.
	Raw []byte
}

// IsExtendedSquitter reports whether the message carries an ADS-B ME field.
func (m Message) IsExtendedSquitter() bool {
	return m.DF == DFExtendedSquitter || m.DF == DFNonTransponder
}

// String renders a one-line description of the message.
func (m Message) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "DF%d", m.DF)
	if m.HasICAO {
		fmt.Fprintf(&b, " %06X", m.ICAO)
	}
	if m.IsExtendedSquitter() {
		fmt.Fprintf(&b, " TC%d", m.TypeCode)
	}
	if m.HasAltitude {
		fmt.Fprintf(&b, " alt=%dft", m.Altitude)
	}
	if m.HasCPR {
		parity := "even"
		if m.CPROdd {
			parity = "odd"
		}
		fmt.Fprintf(&b, " cpr=%s lat=%d lon=%d", parity, m.CPRLat, m.CPRLon)
	}
	return b.String()
}

// FrameBytes returns the expected frame length in bytes for a downlink format.
func FrameBytes(df int) int {
	if df >= 16 {
		return LongFrameBytes
	}
	return ShortFrameBytes
}

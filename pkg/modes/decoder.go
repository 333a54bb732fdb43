package modes

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultAddressTTL is how long an address stays "recently seen" after its
// last DF11/DF17/DF18 frame.
const DefaultAddressTTL = 60 * time.Second

// DecoderOptions configures a Decoder.
type DecoderOptions struct {
	// AddressTTL bounds how long an address recovered from a squitter is
	// trusted for address/parity replies (default: 60 seconds).
	AddressTTL time.Duration
}

// Decoder turns frame bytes into Messages. It remembers addresses seen in
// frames with a plain parity field so that surveillance replies, whose
// parity is overlaid with the address, can be attributed.
//
// A Decoder is safe for concurrent use.
type Decoder struct {
	recent *cache.Cache
}

// NewDecoder creates a Decoder.
func NewDecoder(opts DecoderOptions) *Decoder {
	ttl := opts.AddressTTL
	if ttl <= 0 {
		ttl = DefaultAddressTTL
	}
	return &Decoder{
		recent: cache.New(ttl, 2*ttl),
	}
}

// Decode parses one frame.
func (d *Decoder) Decode(frame []byte) (Message, error) {
	if len(frame) != ShortFrameBytes && len(frame) != LongFrameBytes {
		return Message{}, fmt.Errorf("%w: %d bytes", ErrLength, len(frame))
	}

	df := int(frame[0] >> 3)
	if df > 24 {
		// DF24 is signalled by the first two bits only.
		df = 24
	}
	if FrameBytes(df) != len(frame) {
		return Message{}, fmt.Errorf("%w: DF%d in %d bytes", ErrLength, df, len(frame))
	}

	m := Message{
		DF:  df,
		Raw: append([]byte(nil), frame...),
	}
	res := residual(frame)

	switch df {
	case DFAllCall:
		// The low 7 bits may carry the interrogator code.
		if res&^0x7F != 0 {
			return Message{}, ErrCRC
		}
		m.Capability = int(frame[0] & 0x07)
		m.ICAO, m.HasICAO = address(frame), true
		d.remember(m.ICAO)

	case DFExtendedSquitter, DFNonTransponder:
		if res != 0 {
			return Message{}, ErrCRC
		}
		m.Capability = int(frame[0] & 0x07)
		m.ICAO = address(frame)
		// DF18 CF0 carries an ICAO address; other control fields use
		// anonymous or TIS-B addressing.
		m.HasICAO = df == DFExtendedSquitter || m.Capability == 0
		if m.HasICAO {
			d.remember(m.ICAO)
		}
		decodeExtendedSquitter(&m, frame[4:11])

	case DFShortAirAir, DFSurveillanceAlt, DFLongAirAir, DFCommBAlt:
		if !d.seen(res) {
			return Message{}, fmt.Errorf("%w: %06X", ErrUnknownAddress, res)
		}
		m.ICAO, m.HasICAO = res, true
		m.Altitude, m.HasAltitude = decodeAC13(int(frame[2]&0x1F)<<8 | int(frame[3]))

	case DFSurveillanceIdent, DFCommBIdent:
		if !d.seen(res) {
			return Message{}, fmt.Errorf("%w: %06X", ErrUnknownAddress, res)
		}
		m.ICAO, m.HasICAO = res, true

	default:
		return Message{}, fmt.Errorf("%w: DF%d", ErrUnsupportedDF, df)
	}

	return m, nil
}

// decodeExtendedSquitter fills the ME-derived fields from the 56-bit ME.
func decodeExtendedSquitter(m *Message, me []byte) {
	m.TypeCode = int(me[0] >> 3)
	m.Subtype = int(me[0] & 0x07)

	airbornePosition := m.TypeCode >= 9 && m.TypeCode <= 18
	gnssPosition := m.TypeCode >= 20 && m.TypeCode <= 22
	if !airbornePosition && !gnssPosition {
		return
	}

	if airbornePosition {
		m.Altitude, m.HasAltitude = decodeAC12(int(me[1])<<4 | int(me[2])>>4)
	}

	m.HasCPR = true
	m.CPROdd = (me[2]>>2)&0x01 == 1
	m.CPRLat = uint32(me[2]&0x03)<<15 | uint32(me[3])<<7 | uint32(me[4])>>1
	m.CPRLon = uint32(me[4]&0x01)<<16 | uint32(me[5])<<8 | uint32(me[6])
}

func address(frame []byte) uint32 {
	return uint32(frame[1])<<16 | uint32(frame[2])<<8 | uint32(frame[3])
}

func (d *Decoder) remember(addr uint32) {
	d.recent.SetDefault(addrKey(addr), struct{}{})
}

func (d *Decoder) seen(addr uint32) bool {
	_, ok := d.recent.Get(addrKey(addr))
	return ok
}

func addrKey(addr uint32) string {
	return fmt.Sprintf("%06X", addr)
}

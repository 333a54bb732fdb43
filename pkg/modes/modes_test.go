package modes

import (
	"errors"
	"strings"
	"testing"
)

const (
	evenPositionFrame = "8D40621D58C382D690C8AC2863A7"
	oddPositionFrame  = "8D40621D58C386435CC412692AD6"
	velocityFrame     = "8D485020994409940838175B284F"
	allCallFrame      = "5D40621D4F94D0"
	surveillanceFrame = "20000D1886C376" // DF4, 40621D, 20000 ft
)

func mustParse(t *testing.T, line string) []byte {
	t.Helper()
	frame, err := ParseLine(line)
	if err != nil {
		t.Fatalf("ParseLine(%q): %v", line, err)
	}
	return frame
}

// TestParseLine tests demodulator line framing.
func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantLen int
		wantErr error
	}{
		{"AVR long", "*" + evenPositionFrame + ";", LongFrameBytes, nil},
		{"AVR with CRLF", "*" + evenPositionFrame + ";\r\n", LongFrameBytes, nil},
		{"AVR short", "*" + allCallFrame + ";", ShortFrameBytes, nil},
		{"Lower case", "*" + strings.ToLower(evenPositionFrame) + ";", LongFrameBytes, nil},
		{"MLAT timestamp", "@0123456789AB" + evenPositionFrame + ";", LongFrameBytes, nil},
		{"Bare hex", evenPositionFrame, LongFrameBytes, nil},
		{"Missing terminator", "*" + evenPositionFrame, 0, ErrFraming},
		{"Dangling terminator", evenPositionFrame + ";", 0, ErrFraming},
		{"Odd length", "*8D40621D;", 0, ErrLength},
		{"Empty", "", 0, ErrLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := ParseLine(tt.line)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if len(frame) != tt.wantLen {
				t.Errorf("Expected %d bytes, got %d", tt.wantLen, len(frame))
			}
		})
	}

	t.Run("Bad hex digit", func(t *testing.T) {
		_, err := ParseLine("*8D40621D58C382D690C8AC2863AZ;")
		if err == nil {
			t.Fatal("Expected hex error, got nil")
		}
	})
}

// TestDecodeAirbornePosition tests the reference even/odd position squitters.
func TestDecodeAirbornePosition(t *testing.T) {
	d := NewDecoder(DecoderOptions{})

	tests := []struct {
		frame string
		odd   bool
		lat   uint32
		lon   uint32
	}{
		{evenPositionFrame, false, 93000, 51372},
		{oddPositionFrame, true, 74158, 50194},
	}

	for _, tt := range tests {
		t.Run(tt.frame, func(t *testing.T) {
			m, err := d.Decode(mustParse(t, tt.frame))
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if m.DF != DFExtendedSquitter {
				t.Errorf("Expected DF17, got DF%d", m.DF)
			}
			if !m.HasICAO || m.ICAO != 0x40621D {
				t.Errorf("Expected ICAO 40621D, got %06X (has=%v)", m.ICAO, m.HasICAO)
			}
			if m.TypeCode != 11 {
				t.Errorf("Expected TC 11, got %d", m.TypeCode)
			}
			if !m.HasAltitude || m.Altitude != 38000 {
				t.Errorf("Expected altitude 38000, got %d (has=%v)", m.Altitude, m.HasAltitude)
			}
			if !m.HasCPR {
				t.Fatal("Expected CPR fields")
			}
			if m.CPROdd != tt.odd {
				t.Errorf("Expected odd=%v, got %v", tt.odd, m.CPROdd)
			}
			if m.CPRLat != tt.lat || m.CPRLon != tt.lon {
				t.Errorf("Expected CPR %d/%d, got %d/%d", tt.lat, tt.lon, m.CPRLat, m.CPRLon)
			}
		})
	}
}

// TestDecodeVelocity tests that non-position squitters carry no CPR fields.
func TestDecodeVelocity(t *testing.T) {
	d := NewDecoder(DecoderOptions{})

	m, err := d.Decode(mustParse(t, velocityFrame))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if m.ICAO != 0x485020 {
		t.Errorf("Expected ICAO 485020, got %06X", m.ICAO)
	}
	if m.TypeCode != 19 || m.Subtype != 1 {
		t.Errorf("Expected TC19/1, got TC%d/%d", m.TypeCode, m.Subtype)
	}
	if m.HasCPR || m.HasAltitude {
		t.Error("Velocity message should not carry position or altitude")
	}
}

// TestDecodeCRC tests that corrupted frames are rejected.
func TestDecodeCRC(t *testing.T) {
	d := NewDecoder(DecoderOptions{})

	frame := mustParse(t, evenPositionFrame)
	frame[5] ^= 0x01

	_, err := d.Decode(frame)
	if !errors.Is(err, ErrCRC) {
		t.Fatalf("Expected ErrCRC, got %v", err)
	}
}

// TestDecodeAddressParity tests address recovery for surveillance replies.
func TestDecodeAddressParity(t *testing.T) {
	t.Run("Unknown address rejected", func(t *testing.T) {
		d := NewDecoder(DecoderOptions{})

		_, err := d.Decode(mustParse(t, surveillanceFrame))
		if !errors.Is(err, ErrUnknownAddress) {
			t.Fatalf("Expected ErrUnknownAddress, got %v", err)
		}
	})

	t.Run("Address learned from all-call", func(t *testing.T) {
		d := NewDecoder(DecoderOptions{})

		ac, err := d.Decode(mustParse(t, allCallFrame))
		if err != nil {
			t.Fatalf("All-call decode failed: %v", err)
		}
		if ac.DF != DFAllCall || ac.ICAO != 0x40621D || ac.Capability != 5 {
			t.Errorf("Unexpected all-call: %+v", ac)
		}

		m, err := d.Decode(mustParse(t, surveillanceFrame))
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if !m.HasICAO || m.ICAO != 0x40621D {
			t.Errorf("Expected recovered ICAO 40621D, got %06X", m.ICAO)
		}
		if !m.HasAltitude || m.Altitude != 20000 {
			t.Errorf("Expected altitude 20000, got %d (has=%v)", m.Altitude, m.HasAltitude)
		}
	})

	t.Run("Address learned from squitter", func(t *testing.T) {
		d := NewDecoder(DecoderOptions{})

		if _, err := d.Decode(mustParse(t, evenPositionFrame)); err != nil {
			t.Fatalf("Squitter decode failed: %v", err)
		}
		if _, err := d.Decode(mustParse(t, surveillanceFrame)); err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
	})
}

// TestDecodeLengthMismatch tests frames whose length disagrees with the DF.
func TestDecodeLengthMismatch(t *testing.T) {
	d := NewDecoder(DecoderOptions{})

	// DF17 header in a short frame.
	_, err := d.Decode([]byte{0x8D, 0x40, 0x62, 0x1D, 0x00, 0x00, 0x00})
	if !errors.Is(err, ErrLength) {
		t.Errorf("Expected ErrLength, got %v", err)
	}

	_, err = d.Decode([]byte{0x8D})
	if !errors.Is(err, ErrLength) {
		t.Errorf("Expected ErrLength, got %v", err)
	}
}

// TestAltitudeCodes tests the 25 ft altitude encodings.
func TestAltitudeCodes(t *testing.T) {
	if alt, ok := decodeAC12(0xC38); !ok || alt != 38000 {
		t.Errorf("AC12 0xC38: expected 38000, got %d (ok=%v)", alt, ok)
	}
	if _, ok := decodeAC12(0xC28); ok {
		t.Error("AC12 with Q=0 should be absent")
	}
	if alt, ok := decodeAC13(0xD18); !ok || alt != 20000 {
		t.Errorf("AC13 0xD18: expected 20000, got %d (ok=%v)", alt, ok)
	}
	if _, ok := decodeAC13(0x0D58); ok {
		t.Error("AC13 with M=1 should be absent")
	}
	if _, ok := decodeAC13(0); ok {
		t.Error("AC13 zero should be absent")
	}
}

// TestMessageString tests the one-line rendering.
func TestMessageString(t *testing.T) {
	d := NewDecoder(DecoderOptions{})
	m, err := d.Decode(mustParse(t, oddPositionFrame))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	want := "DF17 40621D TC11 alt=38000ft cpr=odd lat=74158 lon=50194"
	if got := m.String(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

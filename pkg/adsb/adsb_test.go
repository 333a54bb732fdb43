package adsb

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/unklstewy/ads-btrack/pkg/modes"
)

func positionMessage(df, typeCode int, odd bool) modes.Message {
	return modes.Message{
		DF:          df,
		ICAO:        0xABCDEF,
		HasICAO:     true,
		TypeCode:    typeCode,
		Altitude:    38000,
		HasAltitude: true,
		HasCPR:      true,
		CPROdd:      odd,
		CPRLat:      93000,
		CPRLon:      51372,
	}
}

// TestClassify tests which messages are accepted as airborne position reports.
func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		msg  modes.Message
		want bool
	}{
		{"DF17 TC11 even", positionMessage(17, 11, false), true},
		{"DF17 TC9 lowest", positionMessage(17, 9, true), true},
		{"DF17 TC18 highest", positionMessage(17, 18, false), true},
		{"DF17 TC20 GNSS altitude", positionMessage(17, 20, false), false},
		{"DF17 TC6 surface", positionMessage(17, 6, false), false},
		{"DF18 CF0", positionMessage(18, 11, false), true},
		{"DF11 all-call", modes.Message{DF: 11, ICAO: 0xABCDEF, HasICAO: true}, false},
		{"DF4 altitude reply", modes.Message{DF: 4, ICAO: 0xABCDEF, HasICAO: true, Altitude: 20000, HasAltitude: true}, false},
		{"DF17 velocity", modes.Message{DF: 17, ICAO: 0xABCDEF, HasICAO: true, TypeCode: 19}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Classify(tt.msg)
			if ok != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, ok)
			}
		})
	}

	t.Run("DF18 non-ICAO address", func(t *testing.T) {
		m := positionMessage(18, 11, false)
		m.Capability = 1
		if _, ok := Classify(m); ok {
			t.Error("Expected DF18 CF1 to be rejected")
		}
	})

	t.Run("Missing address", func(t *testing.T) {
		m := positionMessage(17, 11, false)
		m.HasICAO = false
		if _, ok := Classify(m); ok {
			t.Error("Expected message without address to be rejected")
		}
	})
}

// TestClassifyFields tests field extraction.
func TestClassifyFields(t *testing.T) {
	r, ok := Classify(positionMessage(17, 11, true))
	if !ok {
		t.Fatal("Expected position report")
	}
	if r.ICAO != 0xABCDEF {
		t.Errorf("Expected ICAO ABCDEF, got %s", r.ICAO)
	}
	if r.Parity != Odd {
		t.Errorf("Expected odd parity, got %s", r.Parity)
	}
	if r.Lat != 93000 || r.Lon != 51372 {
		t.Errorf("Expected CPR 93000/51372, got %d/%d", r.Lat, r.Lon)
	}
	if !r.HasAltitude || r.Altitude != 38000 {
		t.Errorf("Expected altitude 38000, got %d", r.Altitude)
	}

	now := time.Unix(1700000000, 0)
	f := r.Fragment(now)
	if !f.Time.Equal(now) || f.Parity != Odd || f.Lat != r.Lat || f.Lon != r.Lon {
		t.Errorf("Unexpected fragment: %+v", f)
	}
}

// TestIdentity tests address formatting and parsing.
func TestIdentity(t *testing.T) {
	if got := Identity(0x40621D).String(); got != "40621D" {
		t.Errorf("Expected 40621D, got %s", got)
	}
	if got := Identity(0xA).String(); got != "00000A" {
		t.Errorf("Expected zero padding, got %s", got)
	}

	id, err := ParseIdentity("abcdef")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if id != 0xABCDEF {
		t.Errorf("Expected ABCDEF, got %s", id)
	}

	text, err := json.Marshal(Aircraft{ICAO: 0x40621D})
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	var decoded struct {
		ICAO Identity `json:"icao"`
	}
	if err := json.Unmarshal(text, &decoded); err != nil || decoded.ICAO != 0x40621D {
		t.Errorf("Expected ICAO to round-trip as hex, got %s (%v) from %s", decoded.ICAO, err, text)
	}

	for _, bad := range []string{"", "xyz", "1000000"} {
		if _, err := ParseIdentity(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

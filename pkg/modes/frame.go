package modes

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// mlatTimestampHex is the length of the 48-bit receiver timestamp that
// precedes the frame in "@" prefixed lines.
const mlatTimestampHex = 12

// ParseLine converts one line of demodulator output into frame bytes.
//
// Accepted forms:
//
//	*8D40621D58C382D690C8AC2863A7;
//	@0123456789AB8D40621D58C382D690C8AC2863A7;
//	8D40621D58C382D690C8AC2863A7
func ParseLine(line string) ([]byte, error) {
	s := strings.TrimSpace(line)

	switch {
	case strings.HasPrefix(s, "*"):
		if !strings.HasSuffix(s, ";") {
			return nil, fmt.Errorf("%w: %q", ErrFraming, line)
		}
		s = s[1 : len(s)-1]
	case strings.HasPrefix(s, "@"):
		if !strings.HasSuffix(s, ";") || len(s) < 2+mlatTimestampHex {
			return nil, fmt.Errorf("%w: %q", ErrFraming, line)
		}
		s = s[1+mlatTimestampHex : len(s)-1]
	case strings.HasSuffix(s, ";"):
		return nil, fmt.Errorf("%w: %q", ErrFraming, line)
	}

	if len(s) != 2*ShortFrameBytes && len(s) != 2*LongFrameBytes {
		return nil, fmt.Errorf("%w: %d hex digits", ErrLength, len(s))
	}

	frame, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("modes: bad hex %q: %w", s, err)
	}
	return frame, nil
}

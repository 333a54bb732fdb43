package modes

// Mode S parity uses the 24-bit generator 0x1FFF409. The table is the
// byte-wise form of the per-bit xor table used by dump1090.
const crcPoly = 0xFFF409

var crcTable [256]uint32

func init() {
	for i := range crcTable {
		c := uint32(i) << 16
		for range 8 {
			if c&0x800000 != 0 {
				c = (c << 1) ^ crcPoly
			} else {
				c <<= 1
			}
		}
		crcTable[i] = c & 0xFFFFFF
	}
}

// checksum computes the 24-bit parity over data.
func checksum(data []byte) uint32 {
	var crc uint32
	for _, b := range data {
		crc = ((crc << 8) ^ crcTable[byte(crc>>16)^b]) & 0xFFFFFF
	}
	return crc
}

// residual returns the computed parity xor the transmitted parity field.
// It is zero for an intact DF17 frame and equals the aircraft address for
// address/parity replies.
func residual(frame []byte) uint32 {
	n := len(frame)
	parity := uint32(frame[n-3])<<16 | uint32(frame[n-2])<<8 | uint32(frame[n-1])
	return checksum(frame[:n-3]) ^ parity
}

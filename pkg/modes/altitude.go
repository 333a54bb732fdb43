package modes

// decodeAC13 decodes the 13-bit altitude code of surveillance replies.
// Only the 25 ft (Q=1) encoding is supported; metric (M=1) and Gillham
// coded altitudes are reported as absent.
func decodeAC13(ac int) (int, bool) {
	if ac == 0 {
		return 0, false
	}
	if ac&0x40 != 0 {
		return 0, false
	}
	if ac&0x10 == 0 {
		return 0, false
	}
	n := (ac&0x1F80)>>2 | (ac&0x0020)>>1 | ac&0x000F
	return n*25 - 1000, true
}

// decodeAC12 decodes the 12-bit altitude field of airborne position squitters.
func decodeAC12(ac int) (int, bool) {
	if ac == 0 {
		return 0, false
	}
	if ac&0x10 == 0 {
		return 0, false
	}
	n := (ac&0x0FE0)>>1 | ac&0x000F
	return n*25 - 1000, true
}

package adsb

import "math"

const (
	// cprScale is 2^17: CPR latitude and longitude are 17-bit fractions.
	cprScale = 131072.0

	// nz is the number of latitude zones between the equator and a pole.
	nz = 15

	dLatEven = 360.0 / (4 * nz)   // 6 degrees
	dLatOdd  = 360.0 / (4*nz - 1) // ~6.1 degrees
)

// DecodeGlobal combines an even and an odd fragment into a single position.
// latest names the parity of the more recent fragment; the result is
// expressed in that fragment's latitude band.
//
// It returns false when the pair cannot be resolved: the two latitudes fall
// in different longitude-zone bands (the aircraft crossed a boundary between
// the reports) or the latitude is out of range.
//
// Time proximity of the two fragments is the caller's concern.
func DecodeGlobal(even, odd Fragment, latest Parity) (lat, lon float64, ok bool) {
	latEven := float64(even.Lat) / cprScale
	latOdd := float64(odd.Lat) / cprScale
	lonEven := float64(even.Lon) / cprScale
	lonOdd := float64(odd.Lon) / cprScale

	// Latitude zone index
	j := math.Floor(59*latEven - 60*latOdd + 0.5)

	rlatEven := dLatEven * (mod(j, 60) + latEven)
	rlatOdd := dLatOdd * (mod(j, 59) + latOdd)
	if rlatEven >= 270 {
		rlatEven -= 360
	}
	if rlatOdd >= 270 {
		rlatOdd -= 360
	}
	if rlatEven < -90 || rlatEven > 90 || rlatOdd < -90 || rlatOdd > 90 {
		return 0, 0, false
	}

	if NL(rlatEven) != NL(rlatOdd) {
		return 0, 0, false
	}

	lat = rlatEven
	lonCPR := lonEven
	if latest == Odd {
		lat = rlatOdd
		lonCPR = lonOdd
	}

	nl := NL(lat)
	ni := max(nl-int(latest), 1)

	// Longitude zone index
	m := math.Floor(lonEven*float64(nl-1) - lonOdd*float64(nl) + 0.5)

	lon = (360.0 / float64(ni)) * (mod(m, float64(ni)) + lonCPR)
	if lon > 180 {
		lon -= 360
	}

	return lat, lon, true
}

// NL returns the number of longitude zones at the given latitude, between
// 59 at the equator and 1 above 87 degrees.
func NL(lat float64) int {
	lat = math.Abs(lat)
	switch {
	case lat == 0:
		return 59
	case lat == 87:
		return 2
	case lat > 87:
		return 1
	}

	a := 1 - math.Cos(math.Pi/(2*nz))
	cosLat := math.Cos(lat * math.Pi / 180)
	x := 1 - a/(cosLat*cosLat)
	x = math.Max(-1, math.Min(1, x))

	return max(int(math.Floor(2*math.Pi/math.Acos(x))), 1)
}

// mod is the always non-negative modulo used throughout CPR decoding.
func mod(a, b float64) float64 {
	return a - b*math.Floor(a/b)
}

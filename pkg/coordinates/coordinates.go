// Package coordinates provides great-circle geometry between the receiver
// site and the aircraft it hears.
package coordinates

import "math"

// Constants for coordinate calculations
const (
	// DegreesToRadians converts degrees to radians
	DegreesToRadians = math.Pi / 180.0

	// RadiansToDegrees converts radians to degrees
	RadiansToDegrees = 180.0 / math.Pi

	// EarthRadiusKm is the Earth's radius in kilometers (WGS84 mean radius)
	EarthRadiusKm = 6371.0

	// KmPerNauticalMile is the length of a nautical mile
	KmPerNauticalMile = 1.852

	// FeetToMeters converts feet to meters
	FeetToMeters = 0.3048
)

// Geographic represents a position on Earth's surface.
// Uses the WGS84 coordinate system (same as GPS).
type Geographic struct {
	// Latitude in decimal degrees (-90 to +90)
	// Positive = North, Negative = South
	Latitude float64

	// Longitude in decimal degrees (-180 to +180)
	// Positive = East, Negative = West
	Longitude float64

	// Altitude in meters above mean sea level (MSL)
	Altitude float64
}

// LookAngle is the direction from an observer to a target.
type LookAngle struct {
	// Elevation in degrees above the local horizon; negative below it
	Elevation float64

	// Azimuth in degrees from north (0-360)
	Azimuth float64

	// RangeNM is the great-circle ground distance in nautical miles
	RangeNM float64
}

// ToRadians converts the Geographic coordinates to radians.
// Returns (latRad, lonRad, altMeters).
func (g Geographic) ToRadians() (float64, float64, float64) {
	return g.Latitude * DegreesToRadians,
		g.Longitude * DegreesToRadians,
		g.Altitude
}

// NormalizeAzimuth ensures azimuth is in the range [0, 360).
func NormalizeAzimuth(azimuth float64) float64 {
	az := math.Mod(azimuth, 360.0)
	if az < 0 {
		az += 360.0
	}
	return az
}

// Bearing calculates the initial bearing (forward azimuth) from one point to another
// along a great circle.
// Returns bearing in degrees (0-360), where 0/360 = North, 90 = East, 180 = South, 270 = West.
func Bearing(from, to Geographic) float64 {
	lat1, lon1, _ := from.ToRadians()
	lat2, lon2, _ := to.ToRadians()

	dLon := lon2 - lon1
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	return NormalizeAzimuth(math.Atan2(y, x) * RadiansToDegrees)
}

// centralAngle returns the great-circle angle between two points in radians,
// using the Haversine formula.
func centralAngle(from, to Geographic) float64 {
	lat1, lon1, _ := from.ToRadians()
	lat2, lon2, _ := to.ToRadians()

	dLat := lat2 - lat1
	dLon := lon2 - lon1

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// DistanceNauticalMiles calculates the great-circle distance between two points.
func DistanceNauticalMiles(from, to Geographic) float64 {
	return EarthRadiusKm * centralAngle(from, to) / KmPerNauticalMile
}

// Look returns the look angle from observer to target. Elevation accounts
// for Earth curvature, so distant low aircraft appear below the horizon.
func Look(observer, target Geographic) LookAngle {
	c := centralAngle(observer, target)

	r1 := EarthRadiusKm*1000 + observer.Altitude
	r2 := EarthRadiusKm*1000 + target.Altitude

	// Target in the observer's local vertical plane:
	// up = r2·cos(c) - r1, along = r2·sin(c)
	elevation := math.Atan2(r2*math.Cos(c)-r1, r2*math.Sin(c)) * RadiansToDegrees
	if c == 0 {
		elevation = 90
		if target.Altitude < observer.Altitude {
			elevation = -90
		}
	}

	return LookAngle{
		Elevation: elevation,
		Azimuth:   Bearing(observer, target),
		RangeNM:   EarthRadiusKm * c / KmPerNauticalMile,
	}
}

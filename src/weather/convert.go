// Package weather turns raw current-weather payloads from the upstream
// provider into the compact forecast served by the EcoGarden API.
//
// Everything in this package is a pure function: no I/O, no shared state,
// safe to call from any number of request goroutines.
package weather

import "math"

// metersPerSecondToKmh is the m/s → km/h factor.
const metersPerSecondToKmh = 3.6

// compassSector is the width in degrees of one compass rose sector.
const compassSector = 45.0

// compassRose is the 8-point rose, clockwise from true north.
var compassRose = [8]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// ConvertWindSpeed converts a wind speed in m/s to km/h.
// The result is truncated toward zero, not rounded: 5.55 m/s gives 19.
// A nil speed stays nil, and so does one whose km/h value is not finite
// or does not fit in an int32.
func ConvertWindSpeed(speed *float64) *int {
	if speed == nil {
		return nil
	}
	f := *speed * metersPerSecondToKmh
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return nil
	}
	kmh := int(f)
	return &kmh
}

// ConvertWindDirection maps a wind direction in degrees to its 8-point
// compass label. Degrees outside [0, 360) are wrapped first, so 360 and
// -45 read as "N" and "NW". A nil direction stays nil.
func ConvertWindDirection(deg *int) *string {
	if deg == nil {
		return nil
	}
	normalized := ((*deg % 360) + 360) % 360
	// math.Round rounds half away from zero
	index := int(math.Round(float64(normalized)/compassSector)) % len(compassRose)
	label := compassRose[index]
	return &label
}

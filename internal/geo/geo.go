// Package geo provides great-circle math for positions expressed as
// latitude/longitude degrees.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used by all conversions
const EarthRadiusMeters = 6371000.0

// DistanceMeters returns the great-circle distance between two points using
// the haversine formula.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := radians(lat1)
	phi2 := radians(lat2)
	dPhi := radians(lat2 - lat1)
	dLambda := radians(lng2 - lng1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)

	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(a))
}

// Bearing returns the initial bearing in radians from the first point to the
// second, measured clockwise from north.
func Bearing(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := radians(lat1)
	phi2 := radians(lat2)
	dLambda := radians(lng2 - lng1)

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	return math.Atan2(y, x)
}

// Offset returns the point reached by travelling the given distance from the
// start point along the given bearing (radians, clockwise from north).
func Offset(lat, lng, bearing, meters float64) (float64, float64) {
	phi1 := radians(lat)
	lambda1 := radians(lng)
	delta := meters / EarthRadiusMeters

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) +
		math.Cos(phi1)*math.Sin(delta)*math.Cos(bearing))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(bearing)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2),
	)

	return degrees(phi2), normalizeLng(degrees(lambda2))
}

// Clamp forces a coordinate into the valid latitude/longitude ranges
func Clamp(lat, lng float64) (float64, float64) {
	if lat > 90 {
		lat = 90
	} else if lat < -90 {
		lat = -90
	}
	if lng > 180 {
		lng = 180
	} else if lng < -180 {
		lng = -180
	}
	return lat, lng
}

func normalizeLng(lng float64) float64 {
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return lng
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }

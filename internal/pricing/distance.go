package pricing

import (
	"errors"
	"math"

	"hail/internal/domain"
)

const earthRadiusKm = 6371.0

// ErrInvalidCoordinate is returned when a stop's coordinates are not a pair
// of finite numbers inside the valid lat/lng ranges.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Distance returns the great-circle distance between two stops in kilometers
// using the haversine formula.
func Distance(from, to domain.Stop) (float64, error) {
	if !ValidStop(from) || !ValidStop(to) {
		return 0, ErrInvalidCoordinate
	}

	lat1 := toRadians(from.Lat)
	lat2 := toRadians(to.Lat)
	dLat := toRadians(to.Lat - from.Lat)
	dLng := toRadians(to.Lng - from.Lng)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c, nil
}

// TripDistance returns the total route distance for a pickup followed by an
// ordered sequence of drops: pickup to first drop plus each drop-to-drop leg.
// The result is rounded to 3 decimal places; it is computed once at
// acceptance and frozen onto the ride, never re-rounded on read.
func TripDistance(pickup domain.Stop, drops []domain.Stop) (float64, error) {
	if len(drops) == 0 {
		return 0, ErrInvalidCoordinate
	}

	total := 0.0
	prev := pickup
	for _, drop := range drops {
		leg, err := Distance(prev, drop)
		if err != nil {
			return 0, err
		}
		total += leg
		prev = drop
	}

	return roundTo(total, 3), nil
}

// ValidStop reports whether a stop's coordinates are finite and within the
// valid latitude/longitude ranges.
func ValidStop(s domain.Stop) bool {
	if math.IsNaN(s.Lat) || math.IsInf(s.Lat, 0) || math.IsNaN(s.Lng) || math.IsInf(s.Lng, 0) {
		return false
	}
	return s.Lat >= -90 && s.Lat <= 90 && s.Lng >= -180 && s.Lng <= 180
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}

package domain

// FareSlab is a configured distance range with base fare and per-km rate for
// one vehicle class. Slabs for the same vehicle type must not overlap; when
// they do, the narrowest matching slab wins.
type FareSlab struct {
	ID           string
	VehicleType  VehicleType
	DistanceFrom float64
	DistanceTo   float64
	BaseFare     float64
	PerKmRate    float64
	Active       bool
}

// Contains reports whether the slab covers the given distance. Bounds are
// inclusive on both ends.
func (s *FareSlab) Contains(distanceKm float64) bool {
	return distanceKm >= s.DistanceFrom && distanceKm <= s.DistanceTo
}

// Width returns the span of the slab's distance range.
func (s *FareSlab) Width() float64 {
	return s.DistanceTo - s.DistanceFrom
}

// SurgeRule is a configured day/time/distance window carrying a demand
// multiplier. StartTime/EndTime are local wall-clock "HH:MM" strings and are
// compared lexicographically.
type SurgeRule struct {
	ID           string
	Title        string
	DaysOfWeek   []int // 0 = Sunday .. 6 = Saturday
	StartTime    string
	EndTime      string
	DistanceFrom float64
	DistanceTo   float64
	Multiplier   float64 // >= 1
	Active       bool
}

// AppliesOn reports whether the rule is in effect for the given day of week
// and local "HH:MM" clock string.
func (r *SurgeRule) AppliesOn(day int, hhmm string) bool {
	if hhmm < r.StartTime || hhmm > r.EndTime {
		return false
	}
	for _, d := range r.DaysOfWeek {
		if d == day {
			return true
		}
	}
	return false
}

// CoversDistance reports whether the rule's distance window contains the
// given trip distance.
func (r *SurgeRule) CoversDistance(distanceKm float64) bool {
	return distanceKm >= r.DistanceFrom && distanceKm <= r.DistanceTo
}

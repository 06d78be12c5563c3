package pricing

import (
	"context"
	"math"

	"hail/internal/domain"
	"hail/internal/repository"
)

// Rate is the base-fare/per-km pair resolved for a vehicle class and trip
// distance.
type Rate struct {
	BaseFare  float64
	PerKmRate float64
}

// Amount returns the slab's fare contribution for a trip distance, rounded
// to the nearest integer currency unit.
func (r Rate) Amount(distanceKm float64) float64 {
	return math.Round(r.BaseFare + r.PerKmRate*distanceKm)
}

// Fixed fallback rates used when no configured slab covers a trip. Keyed by
// vehicle class; unknown classes use fallbackRate.
var defaultRates = map[domain.VehicleType]Rate{
	domain.VehicleSUV:     {BaseFare: 100, PerKmRate: 18},
	domain.VehicleSedan:   {BaseFare: 80, PerKmRate: 15},
	domain.VehicleCar:     {BaseFare: 70, PerKmRate: 12},
	domain.VehicleAuto:    {BaseFare: 40, PerKmRate: 10},
	domain.VehicleBike:    {BaseFare: 30, PerKmRate: 7},
	domain.VehicleScooter: {BaseFare: 25, PerKmRate: 6},
}

var fallbackRate = Rate{BaseFare: 50, PerKmRate: 10}

// DefaultRate returns the fixed fallback rate for a vehicle class.
func DefaultRate(vehicleType domain.VehicleType) Rate {
	if rate, ok := defaultRates[vehicleType]; ok {
		return rate
	}
	return fallbackRate
}

// SlabResolver looks up the fare slab applicable to a vehicle class and trip
// distance from the configured slab table.
type SlabResolver struct {
	config repository.FareConfigRepository
}

// NewSlabResolver creates a new SlabResolver.
func NewSlabResolver(config repository.FareConfigRepository) *SlabResolver {
	return &SlabResolver{config: config}
}

// Resolve selects the active slab for the vehicle class whose distance range
// contains the trip distance. Overlapping slabs are misconfiguration; the
// narrowest match wins. When nothing matches, the fixed default table is
// used.
func (r *SlabResolver) Resolve(ctx context.Context, vehicleType domain.VehicleType, distanceKm float64) (Rate, error) {
	slabs, err := r.config.ActiveSlabs(ctx)
	if err != nil {
		return Rate{}, err
	}

	var best *domain.FareSlab
	for _, slab := range slabs {
		if !slab.Active || slab.VehicleType != vehicleType || !slab.Contains(distanceKm) {
			continue
		}
		if best == nil || slab.Width() < best.Width() {
			best = slab
		}
	}

	if best == nil {
		return DefaultRate(vehicleType), nil
	}

	return Rate{BaseFare: best.BaseFare, PerKmRate: best.PerKmRate}, nil
}

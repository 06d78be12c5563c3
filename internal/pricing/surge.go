package pricing

import (
	"context"
	"time"

	"hail/internal/repository"
)

// SurgeResolver resolves the active demand multiplier for a trip distance
// and wall-clock moment from the configured surge rule table.
type SurgeResolver struct {
	config repository.FareConfigRepository
}

// NewSurgeResolver creates a new SurgeResolver.
func NewSurgeResolver(config repository.FareConfigRepository) *SurgeResolver {
	return &SurgeResolver{config: config}
}

// Multiplier evaluates the local day-of-week and HH:MM of the instant
// against all active surge rules. Zero matches yield 1.0. When several rules
// match, the greatest multiplier is charged.
func (r *SurgeResolver) Multiplier(ctx context.Context, distanceKm float64, at time.Time) (float64, error) {
	rules, err := r.config.ActiveSurgeRules(ctx)
	if err != nil {
		return 0, err
	}

	day := int(at.Weekday())
	hhmm := at.Format("15:04")

	multiplier := 1.0
	for _, rule := range rules {
		if !rule.Active || rule.Multiplier <= multiplier {
			continue
		}
		if rule.AppliesOn(day, hhmm) && rule.CoversDistance(distanceKm) {
			multiplier = rule.Multiplier
		}
	}

	return multiplier, nil
}

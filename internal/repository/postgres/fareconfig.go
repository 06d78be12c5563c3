package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"hail/internal/domain"
)

// FareConfigRepository is a PostgreSQL implementation of
// repository.FareConfigRepository. The slab and surge tables are maintained
// by an external admin surface; this service only reads them.
type FareConfigRepository struct {
	db *sql.DB
}

// NewFareConfigRepository creates a new PostgreSQL fare config repository.
func NewFareConfigRepository(db *sql.DB) *FareConfigRepository {
	return &FareConfigRepository{db: db}
}

// ActiveSlabs retrieves all active fare slabs.
func (r *FareConfigRepository) ActiveSlabs(ctx context.Context) ([]*domain.FareSlab, error) {
	query := `
		SELECT id, vehicle_type, distance_from, distance_to, base_fare, per_km_rate, active
		FROM fare_slabs
		WHERE active
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slabs []*domain.FareSlab
	for rows.Next() {
		var slab domain.FareSlab
		if err := rows.Scan(
			&slab.ID,
			&slab.VehicleType,
			&slab.DistanceFrom,
			&slab.DistanceTo,
			&slab.BaseFare,
			&slab.PerKmRate,
			&slab.Active,
		); err != nil {
			return nil, err
		}
		slabs = append(slabs, &slab)
	}

	return slabs, rows.Err()
}

// ActiveSurgeRules retrieves all active surge rules.
func (r *FareConfigRepository) ActiveSurgeRules(ctx context.Context) ([]*domain.SurgeRule, error) {
	query := `
		SELECT id, title, days_of_week, start_time, end_time, distance_from, distance_to, multiplier, active
		FROM surge_rules
		WHERE active
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.SurgeRule
	for rows.Next() {
		var rule domain.SurgeRule
		var days pq.Int64Array
		if err := rows.Scan(
			&rule.ID,
			&rule.Title,
			&days,
			&rule.StartTime,
			&rule.EndTime,
			&rule.DistanceFrom,
			&rule.DistanceTo,
			&rule.Multiplier,
			&rule.Active,
		); err != nil {
			return nil, err
		}
		rule.DaysOfWeek = make([]int, len(days))
		for i, d := range days {
			rule.DaysOfWeek[i] = int(d)
		}
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"

	"hail/internal/domain"
	"hail/internal/repository"
)

// oneActiveRideIndex is the partial unique index enforcing at most one
// non-terminal ride per rider:
//
//	CREATE UNIQUE INDEX rides_one_active_per_rider ON rides (rider_id)
//	WHERE status IN ('requested', 'accepted', 'ongoing');
const oneActiveRideIndex = "rides_one_active_per_rider"

const rideColumns = `
	id, rider_id, driver_id, pickup, drops, vehicle_type, status, pin,
	fare, distance_km, surge_multiplier, penalty_amount, penalty_settled,
	promo, payment_method, cancelled_by, cancel_reason,
	requested_at, started_at, driver_reached_at, ongoing_at, completed_at, cancelled_at`

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	db *sql.DB
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{db: db}
}

// Create persists a new ride. A violation of the one-active-ride partial
// unique index maps to repository.ErrActiveRideExists.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (id, rider_id, pickup, drops, vehicle_type, status, pin, surge_multiplier, payment_method, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	pickup, err := json.Marshal(ride.Pickup)
	if err != nil {
		return err
	}
	drops, err := json.Marshal(ride.Drops)
	if err != nil {
		return err
	}

	surge := ride.SurgeMultiplier
	if surge < 1.0 {
		surge = 1.0
	}

	paymentMethod := ride.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = domain.PaymentMethodCash
	}

	_, err = r.db.ExecContext(ctx, query,
		ride.ID,
		ride.RiderID,
		pickup,
		drops,
		ride.VehicleType,
		ride.Status,
		ride.PIN,
		surge,
		paymentMethod,
		ride.RequestedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == oneActiveRideIndex {
			return repository.ErrActiveRideExists
		}
		return err
	}

	return nil
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`

	ride, err := scanRide(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return ride, nil
}

// GetActiveByRiderID retrieves the rider's non-terminal ride, or (nil, nil).
func (r *RideRepository) GetActiveByRiderID(ctx context.Context, riderID string) (*domain.Ride, error) {
	query := `
		SELECT ` + rideColumns + `
		FROM rides
		WHERE rider_id = $1 AND status IN ('requested', 'accepted', 'ongoing')
		LIMIT 1
	`

	ride, err := scanRide(r.db.QueryRowContext(ctx, query, riderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return ride, nil
}

// AcceptForDriver atomically claims the ride for a driver. The legality
// check (offerable status, no assigned driver) and the write are one
// conditional UPDATE, so two concurrent drivers resolve to exactly one
// winner. The rider's outstanding cancellation penalties are settled in the
// same transaction, having been folded into the new fare.
func (r *RideRepository) AcceptForDriver(ctx context.Context, rideID string, p repository.AcceptParams) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	claim := `
		UPDATE rides
		SET status = 'accepted', driver_id = $2, fare = $3, distance_km = $4, surge_multiplier = $5, started_at = $6
		WHERE id = $1 AND status IN ('requested', 'rejected') AND driver_id IS NULL
	`

	claimed, err := conditional(ctx, tx, claim, rideID, p.DriverID, p.Fare, p.DistanceKm, p.SurgeMultiplier, p.AcceptedAt)
	if err != nil {
		return false, err
	}
	if !claimed {
		_ = tx.Rollback()
		return false, nil
	}

	// Only penalties that were folded into the quoted fare are settled;
	// a cancellation landing after the quote stays outstanding for the
	// rider's next acceptance.
	settle := `
		UPDATE rides
		SET penalty_settled = TRUE
		WHERE rider_id = (SELECT rider_id FROM rides WHERE id = $1)
		  AND status = 'cancelled' AND penalty_amount > 0 AND NOT penalty_settled
		  AND cancelled_at <= $2
	`

	if _, err = tx.ExecContext(ctx, settle, rideID, p.PenaltiesAsOf); err != nil {
		return false, err
	}

	if err = tx.Commit(); err != nil {
		return false, err
	}

	return true, nil
}

// Reject moves a requested ride to rejected.
func (r *RideRepository) Reject(ctx context.Context, rideID string) (bool, error) {
	query := `
		UPDATE rides SET status = 'rejected'
		WHERE id = $1 AND status = 'requested' AND driver_id IS NULL
	`
	return conditional(ctx, r.db, query, rideID)
}

// ReassignDriver swaps the driver on an accepted ride. Any arrival stamp
// belongs to the outgoing driver, so it is cleared: the replacement must mark
// reached before the ride can start.
func (r *RideRepository) ReassignDriver(ctx context.Context, rideID, newDriverID string) (bool, error) {
	query := `
		UPDATE rides SET driver_id = $2, driver_reached_at = NULL
		WHERE id = $1 AND status = 'accepted'
	`
	return conditional(ctx, r.db, query, rideID, newDriverID)
}

// MarkDriverReached stamps driver arrival on an accepted ride.
func (r *RideRepository) MarkDriverReached(ctx context.Context, rideID, driverID string, at time.Time) (bool, error) {
	query := `
		UPDATE rides SET driver_reached_at = $3
		WHERE id = $1 AND driver_id = $2 AND status = 'accepted'
	`
	return conditional(ctx, r.db, query, rideID, driverID, at)
}

// Start moves an accepted ride with driver arrival recorded to ongoing.
func (r *RideRepository) Start(ctx context.Context, rideID string, at time.Time) (bool, error) {
	query := `
		UPDATE rides SET status = 'ongoing', ongoing_at = $2
		WHERE id = $1 AND status = 'accepted' AND driver_reached_at IS NOT NULL
	`
	return conditional(ctx, r.db, query, rideID, at)
}

// Complete moves an ongoing ride to completed.
func (r *RideRepository) Complete(ctx context.Context, rideID string, method domain.PaymentMethod, at time.Time) (bool, error) {
	query := `
		UPDATE rides SET status = 'completed', payment_method = $2, completed_at = $3
		WHERE id = $1 AND status = 'ongoing'
	`
	return conditional(ctx, r.db, query, rideID, method, at)
}

// Cancel moves a requested/accepted ride to cancelled. Whichever of cancel
// and a concurrent accept commits first wins; the loser's condition fails.
// The penalty is a tenth of the fare on the row at commit time, so a promo
// applied or removed concurrently cannot leave the penalty out of step with
// the cancelled fare. A ride that was never accepted has no fare and no
// penalty.
func (r *RideRepository) Cancel(ctx context.Context, rideID string, by domain.CancelActor, reason string, at time.Time) (bool, error) {
	query := `
		UPDATE rides
		SET status = 'cancelled', cancelled_by = $2, cancel_reason = $3, penalty_amount = COALESCE(fare, 0) * 0.10, cancelled_at = $4
		WHERE id = $1 AND status IN ('requested', 'accepted')
	`
	return conditional(ctx, r.db, query, rideID, by, reason, at)
}

// SetPromo applies a promotion snapshot and discounted fare to an accepted,
// promotion-free ride.
func (r *RideRepository) SetPromo(ctx context.Context, rideID string, fare float64, promo *domain.PromoApplication) (bool, error) {
	snapshot, err := json.Marshal(promo)
	if err != nil {
		return false, err
	}

	query := `
		UPDATE rides SET fare = $2, promo = $3
		WHERE id = $1 AND status = 'accepted' AND promo IS NULL
	`
	return conditional(ctx, r.db, query, rideID, fare, snapshot)
}

// ClearPromo removes the promotion snapshot and restores the fare.
func (r *RideRepository) ClearPromo(ctx context.Context, rideID string, fare float64) (bool, error) {
	query := `
		UPDATE rides SET fare = $2, promo = NULL
		WHERE id = $1 AND status = 'accepted' AND promo IS NOT NULL
	`
	return conditional(ctx, r.db, query, rideID, fare)
}

// OutstandingPenalty sums the rider's unsettled cancellation penalties from
// rides cancelled at or before asOf. Passing the same instant here and in
// AcceptParams.PenaltiesAsOf makes the quote and the settle cover the same
// set of penalties.
func (r *RideRepository) OutstandingPenalty(ctx context.Context, riderID string, asOf time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(penalty_amount), 0)
		FROM rides
		WHERE rider_id = $1 AND status = 'cancelled' AND NOT penalty_settled AND cancelled_at <= $2
	`

	var total float64
	if err := r.db.QueryRowContext(ctx, query, riderID, asOf).Scan(&total); err != nil {
		return 0, err
	}

	return total, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*domain.Ride, error) {
	var ride domain.Ride
	var driverID, cancelledBy, cancelReason sql.NullString
	var fare sql.NullFloat64
	var pickup, drops []byte
	var promo []byte
	var startedAt, reachedAt, ongoingAt, completedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&ride.ID,
		&ride.RiderID,
		&driverID,
		&pickup,
		&drops,
		&ride.VehicleType,
		&ride.Status,
		&ride.PIN,
		&fare,
		&ride.DistanceKm,
		&ride.SurgeMultiplier,
		&ride.PenaltyAmount,
		&ride.PenaltySettled,
		&promo,
		&ride.PaymentMethod,
		&cancelledBy,
		&cancelReason,
		&ride.RequestedAt,
		&startedAt,
		&reachedAt,
		&ongoingAt,
		&completedAt,
		&cancelledAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(pickup, &ride.Pickup); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(drops, &ride.Drops); err != nil {
		return nil, err
	}
	if len(promo) > 0 {
		ride.Promo = &domain.PromoApplication{}
		if err := json.Unmarshal(promo, ride.Promo); err != nil {
			return nil, err
		}
	}

	if driverID.Valid {
		ride.DriverID = driverID.String
	}
	if fare.Valid {
		ride.Fare = &fare.Float64
	}
	if cancelledBy.Valid {
		ride.CancelledBy = domain.CancelActor(cancelledBy.String)
	}
	if cancelReason.Valid {
		ride.CancelReason = cancelReason.String
	}
	if startedAt.Valid {
		ride.StartedAt = &startedAt.Time
	}
	if reachedAt.Valid {
		ride.DriverReachedAt = &reachedAt.Time
	}
	if ongoingAt.Valid {
		ride.OngoingAt = &ongoingAt.Time
	}
	if completedAt.Valid {
		ride.CompletedAt = &completedAt.Time
	}
	if cancelledAt.Valid {
		ride.CancelledAt = &cancelledAt.Time
	}

	return &ride, nil
}

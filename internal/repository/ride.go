package repository

import (
	"context"
	"time"

	"hail/internal/domain"
)

// AcceptParams carries the fare snapshot written when a driver claims a ride.
// PenaltiesAsOf is the instant the fare was quoted: only penalties from rides
// cancelled at or before it were folded into Fare, and only those get settled.
type AcceptParams struct {
	DriverID        string
	Fare            float64
	DistanceKm      float64
	SurgeMultiplier float64
	AcceptedAt      time.Time
	PenaltiesAsOf   time.Time
}

// RideRepository defines the persistence operations for rides.
//
// Every state transition is a conditional update: the legality check and the
// write happen in one statement, and the boolean result reports whether this
// caller won the transition. A false result means the ride moved on under a
// concurrent request and the caller should re-read and report a conflict.
type RideRepository interface {
	// Create persists a new ride. Returns ErrActiveRideExists when the rider
	// already has a ride in a non-terminal status.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// GetActiveByRiderID retrieves the rider's ride in a non-terminal status.
	// Returns (nil, nil) when no such ride exists.
	GetActiveByRiderID(ctx context.Context, riderID string) (*domain.Ride, error)

	// AcceptForDriver atomically claims a ride for a driver: succeeds only
	// while the ride is requested/rejected and unassigned. On success it
	// freezes the fare snapshot and settles, in the same transaction, the
	// rider's cancellation penalties dating from at or before PenaltiesAsOf.
	AcceptForDriver(ctx context.Context, rideID string, p AcceptParams) (bool, error)

	// Reject moves a requested ride to rejected.
	Reject(ctx context.Context, rideID string) (bool, error)

	// ReassignDriver swaps the driver on an accepted ride, keeping the
	// frozen fare but clearing any recorded arrival: the replacement driver
	// must mark reached before the ride can start.
	ReassignDriver(ctx context.Context, rideID, newDriverID string) (bool, error)

	// MarkDriverReached stamps driver arrival on an accepted ride.
	MarkDriverReached(ctx context.Context, rideID, driverID string, at time.Time) (bool, error)

	// Start moves an accepted ride with driver arrival recorded to ongoing.
	Start(ctx context.Context, rideID string, at time.Time) (bool, error)

	// Complete moves an ongoing ride to completed with its payment method.
	Complete(ctx context.Context, rideID string, method domain.PaymentMethod, at time.Time) (bool, error)

	// Cancel moves a requested/accepted ride to cancelled, recording who
	// cancelled and why. The penalty retained for the rider's next fare is
	// a tenth of the fare on the ride at commit time; a ride that was never
	// accepted carries no fare and incurs none.
	Cancel(ctx context.Context, rideID string, by domain.CancelActor, reason string, at time.Time) (bool, error)

	// SetPromo applies a promotion snapshot and the discounted fare. Succeeds
	// only while the ride is accepted and carries no promotion.
	SetPromo(ctx context.Context, rideID string, fare float64, promo *domain.PromoApplication) (bool, error)

	// ClearPromo removes the promotion snapshot and restores the fare.
	// Succeeds only while the ride is accepted and carries a promotion.
	ClearPromo(ctx context.Context, rideID string, fare float64) (bool, error)

	// OutstandingPenalty sums the rider's unsettled cancellation penalties
	// from rides cancelled at or before asOf.
	OutstandingPenalty(ctx context.Context, riderID string, asOf time.Time) (float64, error)
}

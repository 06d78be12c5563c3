package domain

import "time"

// RideStatus represents the current status of a ride.
// Values are transmitted verbatim over the API.
type RideStatus string

const (
	RideStatusRequested RideStatus = "requested"
	RideStatusAccepted  RideStatus = "accepted"
	RideStatusRejected  RideStatus = "rejected"
	RideStatusOngoing   RideStatus = "ongoing"
	RideStatusCompleted RideStatus = "completed"
	RideStatusCancelled RideStatus = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions.
func (s RideStatus) IsTerminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

// VehicleType represents the vehicle class requested for a ride.
type VehicleType string

const (
	VehicleSedan   VehicleType = "sedan"
	VehicleSUV     VehicleType = "suv"
	VehicleCar     VehicleType = "car"
	VehicleAuto    VehicleType = "auto"
	VehicleBike    VehicleType = "bike"
	VehicleScooter VehicleType = "scooter"
)

// PaymentMethod represents the payment method for a ride.
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "CASH"
	PaymentMethodCard   PaymentMethod = "CARD"
	PaymentMethodWallet PaymentMethod = "WALLET"
	PaymentMethodUPI    PaymentMethod = "UPI"
)

// CancelActor identifies who cancelled a ride.
type CancelActor string

const (
	CancelActorRider  CancelActor = "rider"
	CancelActorDriver CancelActor = "driver"
	CancelActorAdmin  CancelActor = "admin"
)

// Stop is an addressed coordinate on a ride's route.
type Stop struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// PromoApplication is the snapshot of a promotion frozen onto a ride at the
// moment it was applied. Later edits to the Promotion never change it.
type PromoApplication struct {
	PromotionID string    `json:"promotion_id"`
	Code        string    `json:"code"`
	Kind        PromoKind `json:"kind"`
	Value       float64   `json:"value"`
	Discount    float64   `json:"discount"`
	AppliedAt   time.Time `json:"applied_at"`
}

// Ride represents one transportation request from pickup to one or more drops.
type Ride struct {
	ID          string
	RiderID     string
	DriverID    string // empty until a driver claims the ride
	Pickup      Stop
	Drops       []Stop // non-empty, visited in order
	VehicleType VehicleType
	Status      RideStatus

	// PIN is the 6-digit code the rider shares with the driver to start the
	// trip. Compared exactly as stored, no normalization.
	PIN string

	// Fare is frozen at acceptance and mutated only by promotion
	// application/removal. Nil until the ride is accepted.
	Fare *float64

	// DistanceKm is the total trip distance, computed once at acceptance.
	DistanceKm      float64
	SurgeMultiplier float64

	// PenaltyAmount is set when an accepted ride is cancelled. It is carried
	// as a surcharge into the rider's next accepted fare, then settled.
	PenaltyAmount  float64
	PenaltySettled bool

	Promo *PromoApplication

	PaymentMethod PaymentMethod
	CancelledBy   CancelActor
	CancelReason  string

	RequestedAt     time.Time
	StartedAt       *time.Time // acceptance time
	DriverReachedAt *time.Time
	OngoingAt       *time.Time
	CompletedAt     *time.Time
	CancelledAt     *time.Time
}

// FareAmount returns the frozen fare, or 0 when none has been computed yet.
func (r *Ride) FareAmount() float64 {
	if r.Fare == nil {
		return 0
	}
	return *r.Fare
}

// HasDriver reports whether a driver has been assigned.
func (r *Ride) HasDriver() bool {
	return r.DriverID != ""
}

// Acceptable reports whether a driver may claim the ride: it must be awaiting
// an offer and unassigned.
func (r *Ride) Acceptable() bool {
	return (r.Status == RideStatusRequested || r.Status == RideStatusRejected) && !r.HasDriver()
}

// Cancellable reports whether the ride may still be cancelled.
func (r *Ride) Cancellable() bool {
	return r.Status == RideStatusRequested || r.Status == RideStatusAccepted
}

package service

import (
	"errors"
	"fmt"

	"hail/internal/domain"
)

var (
	// ErrInvalidRiderID is returned when rider ID is empty.
	ErrInvalidRiderID = errors.New("invalid rider id")

	// ErrInvalidRideID is returned when ride ID is empty.
	ErrInvalidRideID = errors.New("invalid ride id")

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = errors.New("invalid driver id")

	// ErrInvalidPickup is returned when pickup coordinates are invalid.
	ErrInvalidPickup = errors.New("invalid pickup location")

	// ErrInvalidDrops is returned when the drop sequence is empty or contains
	// invalid coordinates.
	ErrInvalidDrops = errors.New("invalid drop locations")

	// ErrInvalidVehicleType is returned when the vehicle class is unknown.
	ErrInvalidVehicleType = errors.New("invalid vehicle type")

	// ErrInvalidPaymentMethod is returned when the payment method is unknown.
	ErrInvalidPaymentMethod = errors.New("invalid payment method")

	// ErrInvalidCancelActor is returned when cancelled-by is not rider,
	// driver, or admin.
	ErrInvalidCancelActor = errors.New("invalid cancellation actor")

	// ErrCancelReasonTooShort is returned when a cancellation reason is
	// shorter than 3 characters.
	ErrCancelReasonTooShort = errors.New("cancellation reason too short")

	// ErrRiderInactive is returned when the rider account is deactivated.
	ErrRiderInactive = errors.New("rider is not active")

	// ErrDriverInactive is returned when the driver account is deactivated.
	ErrDriverInactive = errors.New("driver is not active")

	// ErrPinMismatch is returned when the start pin does not match.
	ErrPinMismatch = errors.New("pin does not match")

	// ErrDriverNotReached is returned when start is attempted before the
	// driver marked arrival.
	ErrDriverNotReached = errors.New("driver has not reached pickup")

	// ErrDriverNotOnRide is returned when a driver acts on a ride assigned
	// to someone else.
	ErrDriverNotOnRide = errors.New("driver not assigned to this ride")

	// ErrInvalidPromoCode is returned when the code is empty or malformed.
	ErrInvalidPromoCode = errors.New("invalid promotion code")

	// ErrPromoInactive is returned when the promotion is disabled.
	ErrPromoInactive = errors.New("promotion is not active")

	// ErrPromoNotInWindow is returned outside the validity window.
	ErrPromoNotInWindow = errors.New("promotion is not valid at this time")

	// ErrPromoMinAmount is returned when the fare is below the promotion's
	// minimum ride amount.
	ErrPromoMinAmount = errors.New("fare below promotion minimum ride amount")

	// ErrPromoAlreadyApplied is returned when the ride already carries a
	// promotion.
	ErrPromoAlreadyApplied = errors.New("ride already has a promotion applied")

	// ErrPromoNotApplied is returned on removal when the ride carries no
	// promotion, or a different one.
	ErrPromoNotApplied = errors.New("promotion not applied to this ride")
)

// ActiveRideError reports that the rider already has a ride in a
// non-terminal status, identifying it so the client can resynchronize.
type ActiveRideError struct {
	RideID string
	Status domain.RideStatus
}

func (e *ActiveRideError) Error() string {
	return fmt.Sprintf("rider already has an active ride %s in status %s", e.RideID, e.Status)
}

// StateConflictError reports an illegal state transition. It names the
// ride's authoritative status and the attempted action so callers can
// present an actionable message instead of guessing.
type StateConflictError struct {
	RideID string
	Status domain.RideStatus
	Action string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("cannot %s ride %s in status %s", e.Action, e.RideID, e.Status)
}

// LimitExceededError reports a promotion usage cap being hit.
type LimitExceededError struct {
	Code  string
	Scope string // "user" or "global"
	Limit int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("promotion %s %s usage limit of %d exceeded", e.Code, e.Scope, e.Limit)
}

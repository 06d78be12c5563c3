package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hail/internal/domain"
	"hail/internal/pricing"
	"hail/internal/redis"
	"hail/internal/repository"
)

const riderCreateLockTTL = 5 * time.Second

// ErrRideCreationInProgress is returned when another creation request for
// the same rider holds the serialization lock.
var ErrRideCreationInProgress = errors.New("ride creation already in progress")

// RideService owns the ride lifecycle. All status transitions go through it;
// handlers never mutate ride state directly.
type RideService struct {
	rideRepo      repository.RideRepository
	riderRepo     repository.RiderRepository
	driverRepo    repository.DriverRepository
	slabs         *pricing.SlabResolver
	surge         *pricing.SurgeResolver
	lockStore     redis.LockStoreInterface
	notifications *NotificationService
	log           *zap.Logger
}

// NewRideService creates a new RideService.
func NewRideService(
	rideRepo repository.RideRepository,
	riderRepo repository.RiderRepository,
	driverRepo repository.DriverRepository,
	slabs *pricing.SlabResolver,
	surge *pricing.SurgeResolver,
	lockStore redis.LockStoreInterface,
	notifications *NotificationService,
	log *zap.Logger,
) *RideService {
	return &RideService{
		rideRepo:      rideRepo,
		riderRepo:     riderRepo,
		driverRepo:    driverRepo,
		slabs:         slabs,
		surge:         surge,
		lockStore:     lockStore,
		notifications: notifications,
		log:           log,
	}
}

// CreateRideRequest contains the parameters for creating a ride.
type CreateRideRequest struct {
	RiderID       string
	Pickup        domain.Stop
	Drops         []domain.Stop
	VehicleType   domain.VehicleType
	PaymentMethod domain.PaymentMethod
}

// CreateRide creates a new ride in requested status. At most one ride per
// rider may be non-terminal; the check-then-insert window is closed by a
// per-rider lock, with the storage layer's partial unique index as the
// backstop.
func (s *RideService) CreateRide(ctx context.Context, req CreateRideRequest) (*domain.Ride, error) {
	if req.RiderID == "" {
		return nil, ErrInvalidRiderID
	}
	if !pricing.ValidStop(req.Pickup) {
		return nil, ErrInvalidPickup
	}
	if len(req.Drops) == 0 {
		return nil, ErrInvalidDrops
	}
	for _, drop := range req.Drops {
		if !pricing.ValidStop(drop) {
			return nil, ErrInvalidDrops
		}
	}
	if !validVehicleType(req.VehicleType) {
		return nil, ErrInvalidVehicleType
	}

	paymentMethod := req.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = domain.PaymentMethodCash
	}
	if !validPaymentMethod(paymentMethod) {
		return nil, ErrInvalidPaymentMethod
	}

	rider, err := s.riderRepo.GetByID(ctx, req.RiderID)
	if err != nil {
		return nil, err
	}
	if !rider.Active {
		return nil, ErrRiderInactive
	}

	if s.lockStore != nil {
		locked, err := s.lockStore.AcquireRiderLock(ctx, req.RiderID, riderCreateLockTTL)
		if err != nil {
			return nil, err
		}
		if !locked {
			return nil, ErrRideCreationInProgress
		}
		defer func() {
			_ = s.lockStore.ReleaseRiderLock(ctx, req.RiderID)
		}()
	}

	active, err := s.rideRepo.GetActiveByRiderID(ctx, req.RiderID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, &ActiveRideError{RideID: active.ID, Status: active.Status}
	}

	ride := &domain.Ride{
		ID:              uuid.New().String(),
		RiderID:         req.RiderID,
		Pickup:          req.Pickup,
		Drops:           req.Drops,
		VehicleType:     req.VehicleType,
		Status:          domain.RideStatusRequested,
		PIN:             generatePIN(),
		SurgeMultiplier: 1.0,
		PaymentMethod:   paymentMethod,
		RequestedAt:     time.Now(),
	}

	if err := s.rideRepo.Create(ctx, ride); err != nil {
		if err == repository.ErrActiveRideExists {
			if active, lookupErr := s.rideRepo.GetActiveByRiderID(ctx, req.RiderID); lookupErr == nil && active != nil {
				return nil, &ActiveRideError{RideID: active.ID, Status: active.Status}
			}
			return nil, ErrRideCreationInProgress
		}
		return nil, err
	}

	if s.notifications != nil {
		s.notifications.RideRequested(ctx, ride)
	}

	return ride, nil
}

// FareBreakdown explains the fare frozen at acceptance.
type FareBreakdown struct {
	BaseFare        float64 `json:"base_fare"`
	PerKmRate       float64 `json:"per_km_rate"`
	DistanceKm      float64 `json:"distance_km"`
	SlabAmount      float64 `json:"slab_amount"`
	PriorPenalty    float64 `json:"prior_penalty"`
	SurgeMultiplier float64 `json:"surge_multiplier"`
	Total           float64 `json:"total"`
}

// AcceptRide claims a ride for a driver. The legality check and the write
// are one conditional update in the repository: out of N concurrent accepts
// exactly one wins, the rest get a StateConflictError with the authoritative
// status. On success the trip distance and fare snapshot are frozen onto the
// ride.
func (s *RideService) AcceptRide(ctx context.Context, rideID, driverID string) (*domain.Ride, *FareBreakdown, error) {
	if rideID == "" {
		return nil, nil, ErrInvalidRideID
	}
	if driverID == "" {
		return nil, nil, ErrInvalidDriverID
	}

	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, nil, err
	}
	if !driver.Active {
		return nil, nil, ErrDriverInactive
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, nil, err
	}
	if !ride.Acceptable() {
		return nil, nil, &StateConflictError{RideID: rideID, Status: ride.Status, Action: "accept"}
	}

	now := time.Now()

	breakdown, err := s.quoteFare(ctx, ride, now)
	if err != nil {
		return nil, nil, err
	}

	// The settle in AcceptForDriver covers exactly the penalties the quote
	// read: both are scoped to the same instant.
	claimed, err := s.rideRepo.AcceptForDriver(ctx, rideID, repository.AcceptParams{
		DriverID:        driverID,
		Fare:            breakdown.Total,
		DistanceKm:      breakdown.DistanceKm,
		SurgeMultiplier: breakdown.SurgeMultiplier,
		AcceptedAt:      now,
		PenaltiesAsOf:   now,
	})
	if err != nil {
		return nil, nil, err
	}
	if !claimed {
		return nil, nil, s.conflict(ctx, rideID, "accept")
	}

	ride, err = s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, nil, err
	}

	if s.notifications != nil {
		s.notifications.RideAccepted(ctx, ride)
	}

	return ride, breakdown, nil
}

// RejectRide moves a requested ride to rejected so it can be re-offered.
func (s *RideService) RejectRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	if _, err := s.rideRepo.GetByID(ctx, rideID); err != nil {
		return nil, err
	}

	ok, err := s.rideRepo.Reject(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.conflict(ctx, rideID, "reject")
	}

	return s.rideRepo.GetByID(ctx, rideID)
}

// MarkDriverReached stamps driver arrival at the pickup point. The ride
// stays accepted; start is gated on this stamp.
func (s *RideService) MarkDriverReached(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.HasDriver() && ride.DriverID != driverID {
		return nil, ErrDriverNotOnRide
	}

	ok, err := s.rideRepo.MarkDriverReached(ctx, rideID, driverID, time.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.conflict(ctx, rideID, "mark reached on")
	}

	ride, err = s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	if s.notifications != nil {
		s.notifications.DriverReached(ctx, ride)
	}

	return ride, nil
}

// StartRide moves an accepted ride to ongoing. The driver must have marked
// arrival, and the supplied pin must match the stored one exactly as typed.
func (s *RideService) StartRide(ctx context.Context, rideID, driverID, pin string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status != domain.RideStatusAccepted {
		return nil, &StateConflictError{RideID: rideID, Status: ride.Status, Action: "start"}
	}
	if ride.DriverID != driverID {
		return nil, ErrDriverNotOnRide
	}
	if ride.DriverReachedAt == nil {
		return nil, ErrDriverNotReached
	}
	if ride.PIN != pin {
		return nil, ErrPinMismatch
	}

	ok, err := s.rideRepo.Start(ctx, rideID, time.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.conflict(ctx, rideID, "start")
	}

	ride, err = s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	if s.notifications != nil {
		s.notifications.RideStarted(ctx, ride)
	}

	return ride, nil
}

// CompleteRide moves an ongoing ride to completed, records the payment
// method, and bumps the driver's completed-ride counter.
func (s *RideService) CompleteRide(ctx context.Context, rideID, driverID string, method domain.PaymentMethod) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	if method == "" {
		method = domain.PaymentMethodCash
	}
	if !validPaymentMethod(method) {
		return nil, ErrInvalidPaymentMethod
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.DriverID != driverID {
		return nil, ErrDriverNotOnRide
	}

	ok, err := s.rideRepo.Complete(ctx, rideID, method, time.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.conflict(ctx, rideID, "complete")
	}

	// The transition has committed; a failed counter bump must not undo it.
	if err := s.driverRepo.IncrementCompletedRides(ctx, driverID); err != nil {
		s.log.Warn("failed to increment completed rides",
			zap.String("driver_id", driverID), zap.Error(err))
	}

	ride, err = s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	if s.notifications != nil {
		s.notifications.RideCompleted(ctx, ride)
	}

	return ride, nil
}

// CancelRide cancels a requested or accepted ride. When a fare is already
// frozen, 10% of it is retained as a penalty and surcharged onto the
// rider's next accepted fare. Cancellation never waits for an in-flight
// accept: whichever conditional update lands first wins.
func (s *RideService) CancelRide(ctx context.Context, rideID string, by domain.CancelActor, reason string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if by != domain.CancelActorRider && by != domain.CancelActorDriver && by != domain.CancelActorAdmin {
		return nil, ErrInvalidCancelActor
	}
	if len(reason) < 3 {
		return nil, ErrCancelReasonTooShort
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !ride.Cancellable() {
		return nil, &StateConflictError{RideID: rideID, Status: ride.Status, Action: "cancel"}
	}

	// The repository computes the penalty from the fare on the row at
	// commit time; a requested ride has no fare and incurs none.
	ok, err := s.rideRepo.Cancel(ctx, rideID, by, reason, time.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.conflict(ctx, rideID, "cancel")
	}

	ride, err = s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	if s.notifications != nil {
		s.notifications.RideCancelled(ctx, ride)
	}

	return ride, nil
}

// ReassignDriver administratively puts a new driver on a ride. On an
// accepted ride the frozen fare is kept and only the driver changes; on a
// requested or rejected ride this is a full acceptance on the new driver's
// behalf. Never legal once the ride is ongoing or terminal.
func (s *RideService) ReassignDriver(ctx context.Context, rideID, newDriverID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if newDriverID == "" {
		return nil, ErrInvalidDriverID
	}

	driver, err := s.driverRepo.GetByID(ctx, newDriverID)
	if err != nil {
		return nil, err
	}
	if !driver.Active {
		return nil, ErrDriverInactive
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	switch ride.Status {
	case domain.RideStatusAccepted:
		ok, err := s.rideRepo.ReassignDriver(ctx, rideID, newDriverID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, s.conflict(ctx, rideID, "reassign")
		}
	case domain.RideStatusRequested, domain.RideStatusRejected:
		ride, _, err = s.AcceptRide(ctx, rideID, newDriverID)
		if err != nil {
			return nil, err
		}
		return ride, nil
	default:
		return nil, &StateConflictError{RideID: rideID, Status: ride.Status, Action: "reassign"}
	}

	ride, err = s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	if s.notifications != nil {
		s.notifications.RideAccepted(ctx, ride)
	}

	return ride, nil
}

// GetRide retrieves a ride by ID.
func (s *RideService) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	return s.rideRepo.GetByID(ctx, rideID)
}

// quoteFare computes the fare snapshot for a ride at the given instant:
// round((slabBase + perKm*distance + priorPenalty) * surge).
func (s *RideService) quoteFare(ctx context.Context, ride *domain.Ride, at time.Time) (*FareBreakdown, error) {
	distance, err := pricing.TripDistance(ride.Pickup, ride.Drops)
	if err != nil {
		return nil, ErrInvalidDrops
	}

	rate, err := s.slabs.Resolve(ctx, ride.VehicleType, distance)
	if err != nil {
		return nil, err
	}

	multiplier, err := s.surge.Multiplier(ctx, distance, at)
	if err != nil {
		return nil, err
	}

	penalty, err := s.rideRepo.OutstandingPenalty(ctx, ride.RiderID, at)
	if err != nil {
		return nil, err
	}

	slabAmount := rate.Amount(distance)
	total := math.Round((slabAmount + penalty) * multiplier)

	return &FareBreakdown{
		BaseFare:        rate.BaseFare,
		PerKmRate:       rate.PerKmRate,
		DistanceKm:      distance,
		SlabAmount:      slabAmount,
		PriorPenalty:    penalty,
		SurgeMultiplier: multiplier,
		Total:           total,
	}, nil
}

// conflict re-reads the ride and construes a lost conditional update as a
// typed conflict naming the authoritative status.
func (s *RideService) conflict(ctx context.Context, rideID, action string) error {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return err
	}
	return &StateConflictError{RideID: rideID, Status: ride.Status, Action: action}
}

// generatePIN returns the 6-digit code the rider shares with the driver at
// pickup. Leading zeros are preserved; the pin is compared as a string.
func generatePIN() string {
	return fmt.Sprintf("%06d", rand.IntN(1000000))
}

func validVehicleType(v domain.VehicleType) bool {
	switch v {
	case domain.VehicleSedan, domain.VehicleSUV, domain.VehicleCar,
		domain.VehicleAuto, domain.VehicleBike, domain.VehicleScooter:
		return true
	}
	return false
}

func validPaymentMethod(m domain.PaymentMethod) bool {
	switch m {
	case domain.PaymentMethodCash, domain.PaymentMethodCard,
		domain.PaymentMethodWallet, domain.PaymentMethodUPI:
		return true
	}
	return false
}

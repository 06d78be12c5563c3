package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"hail/internal/domain"
)

// NotificationType labels a ride transition event.
type NotificationType string

const (
	NotificationTripRequested NotificationType = "trip-requested"
	NotificationTripAccepted  NotificationType = "trip-accepted"
	NotificationDriverReached NotificationType = "driver-reached"
	NotificationTripStarted   NotificationType = "trip-started"
	NotificationTripCompleted NotificationType = "trip-completed"
	NotificationTripCancelled NotificationType = "trip-cancelled"
)

// NotificationEvent is the abstract event emitted at each ride transition.
type NotificationEvent struct {
	Type      NotificationType `json:"type"`
	ToUserID  string           `json:"to_user_id"`
	ToRole    string           `json:"to_role"` // "rider" or "driver"
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	RideID    string           `json:"ride_id"`
	CreatedAt time.Time        `json:"created_at"`
}

// Pusher delivers an event over a realtime channel.
type Pusher interface {
	Push(event NotificationEvent)
}

// NotificationService dispatches transition events to riders and drivers.
// Delivery is fire-and-forget: failures are logged and never propagate into
// the state transition that produced the event.
type NotificationService struct {
	pusher Pusher
	log    *zap.Logger
}

// NewNotificationService creates a new NotificationService. pusher may be
// nil, in which case events are only logged.
func NewNotificationService(pusher Pusher, log *zap.Logger) *NotificationService {
	return &NotificationService{pusher: pusher, log: log}
}

// RideRequested notifies the rider their request was placed.
func (s *NotificationService) RideRequested(ctx context.Context, ride *domain.Ride) {
	s.dispatch(NotificationEvent{
		Type:     NotificationTripRequested,
		ToUserID: ride.RiderID,
		ToRole:   "rider",
		Title:    "Ride Requested",
		Message:  "Looking for a driver near your pickup point.",
		RideID:   ride.ID,
	})
}

// RideAccepted notifies the rider a driver claimed the ride.
func (s *NotificationService) RideAccepted(ctx context.Context, ride *domain.Ride) {
	s.dispatch(NotificationEvent{
		Type:     NotificationTripAccepted,
		ToUserID: ride.RiderID,
		ToRole:   "rider",
		Title:    "Driver Assigned",
		Message:  fmt.Sprintf("Your driver is on the way. Fare: %.0f", ride.FareAmount()),
		RideID:   ride.ID,
	})
}

// DriverReached notifies the rider the driver arrived at pickup.
func (s *NotificationService) DriverReached(ctx context.Context, ride *domain.Ride) {
	s.dispatch(NotificationEvent{
		Type:     NotificationDriverReached,
		ToUserID: ride.RiderID,
		ToRole:   "rider",
		Title:    "Driver Arrived",
		Message:  "Your driver has reached the pickup point. Share your PIN to start.",
		RideID:   ride.ID,
	})
}

// RideStarted notifies the rider the trip began.
func (s *NotificationService) RideStarted(ctx context.Context, ride *domain.Ride) {
	s.dispatch(NotificationEvent{
		Type:     NotificationTripStarted,
		ToUserID: ride.RiderID,
		ToRole:   "rider",
		Title:    "Trip Started",
		Message:  "Your trip has started. Enjoy your ride!",
		RideID:   ride.ID,
	})
}

// RideCompleted notifies the rider the trip ended.
func (s *NotificationService) RideCompleted(ctx context.Context, ride *domain.Ride) {
	s.dispatch(NotificationEvent{
		Type:     NotificationTripCompleted,
		ToUserID: ride.RiderID,
		ToRole:   "rider",
		Title:    "Trip Completed",
		Message:  fmt.Sprintf("Your trip is complete. Total fare: %.0f", ride.FareAmount()),
		RideID:   ride.ID,
	})
}

// RideCancelled notifies the counterparty of a cancellation.
func (s *NotificationService) RideCancelled(ctx context.Context, ride *domain.Ride) {
	event := NotificationEvent{
		Type:    NotificationTripCancelled,
		Title:   "Ride Cancelled",
		RideID:  ride.ID,
		Message: fmt.Sprintf("The ride was cancelled by the %s.", ride.CancelledBy),
	}

	switch ride.CancelledBy {
	case domain.CancelActorRider:
		if !ride.HasDriver() {
			return
		}
		event.ToUserID = ride.DriverID
		event.ToRole = "driver"
	default:
		event.ToUserID = ride.RiderID
		event.ToRole = "rider"
	}

	s.dispatch(event)
}

func (s *NotificationService) dispatch(event NotificationEvent) {
	event.CreatedAt = time.Now()

	s.log.Info("notification dispatched",
		zap.String("type", string(event.Type)),
		zap.String("to_user_id", event.ToUserID),
		zap.String("to_role", event.ToRole),
		zap.String("ride_id", event.RideID),
	)

	if s.pusher != nil {
		s.pusher.Push(event)
	}
}

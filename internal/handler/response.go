package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hail/internal/repository"
	"hail/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`

	// ActiveRideID and Status are set on active-ride conflicts so the
	// client can resynchronize instead of retrying blindly.
	ActiveRideID string `json:"active_ride_id,omitempty"`
	Status       string `json:"status,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	resp := ErrorResponse{Error: err.Error()}

	var activeErr *service.ActiveRideError
	if errors.As(err, &activeErr) {
		resp.ActiveRideID = activeErr.RideID
		resp.Status = string(activeErr.Status)
	}

	var conflictErr *service.StateConflictError
	if errors.As(err, &conflictErr) {
		resp.Status = string(conflictErr.Status)
	}

	c.JSON(mapErrorToHTTPStatus(err), resp)
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	var activeErr *service.ActiveRideError
	var conflictErr *service.StateConflictError
	var limitErr *service.LimitExceededError

	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation and business-rule errors - Bad Request
	case errors.Is(err, service.ErrInvalidRiderID),
		errors.Is(err, service.ErrInvalidRideID),
		errors.Is(err, service.ErrInvalidDriverID),
		errors.Is(err, service.ErrInvalidPickup),
		errors.Is(err, service.ErrInvalidDrops),
		errors.Is(err, service.ErrInvalidVehicleType),
		errors.Is(err, service.ErrInvalidPaymentMethod),
		errors.Is(err, service.ErrInvalidCancelActor),
		errors.Is(err, service.ErrCancelReasonTooShort),
		errors.Is(err, service.ErrPinMismatch),
		errors.Is(err, service.ErrDriverNotReached),
		errors.Is(err, service.ErrInvalidPromoCode),
		errors.Is(err, service.ErrPromoInactive),
		errors.Is(err, service.ErrPromoNotInWindow),
		errors.Is(err, service.ErrPromoMinAmount),
		errors.Is(err, service.ErrPromoAlreadyApplied),
		errors.Is(err, service.ErrPromoNotApplied):
		return http.StatusBadRequest

	case errors.As(err, &activeErr),
		errors.As(err, &limitErr):
		return http.StatusBadRequest

	// Conflict errors
	case errors.As(err, &conflictErr),
		errors.Is(err, service.ErrRideCreationInProgress):
		return http.StatusConflict

	// Forbidden/Business rule errors
	case errors.Is(err, service.ErrDriverNotOnRide),
		errors.Is(err, service.ErrNotRideOwner),
		errors.Is(err, service.ErrRiderInactive),
		errors.Is(err, service.ErrDriverInactive):
		return http.StatusForbidden

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}

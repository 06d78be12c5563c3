package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hail/internal/domain"
	"hail/internal/service"
)

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rideService *service.RideService
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rideService *service.RideService) *RideHandler {
	return &RideHandler{rideService: rideService}
}

// StopPayload is a route point in a request or response body.
type StopPayload struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// CreateRideRequest is the HTTP request body for creating a ride.
type CreateRideRequest struct {
	RiderID       string        `json:"rider_id"`
	Pickup        StopPayload   `json:"pickup"`
	Drops         []StopPayload `json:"drops"`
	VehicleType   string        `json:"vehicle_type"`
	PaymentMethod string        `json:"payment_method,omitempty"` // CASH, CARD, WALLET, UPI
}

// AcceptRideRequest is the HTTP request body for a driver accepting a ride.
type AcceptRideRequest struct {
	DriverID string `json:"driver_id"`
}

// StartRideRequest is the HTTP request body for starting a ride.
type StartRideRequest struct {
	DriverID string `json:"driver_id"`
	Pin      string `json:"pin"`
}

// CompleteRideRequest is the HTTP request body for completing a ride.
type CompleteRideRequest struct {
	DriverID      string `json:"driver_id"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

// CancelRideRequest is the HTTP request body for cancelling a ride.
type CancelRideRequest struct {
	CancelledBy string `json:"cancelled_by"` // rider, driver, admin
	Reason      string `json:"reason"`
}

// ReassignDriverRequest is the HTTP request body for reassigning a driver.
type ReassignDriverRequest struct {
	NewDriverID string `json:"new_driver_id"`
}

// PromoPayload is the promotion snapshot carried on a ride response.
type PromoPayload struct {
	Code      string  `json:"code"`
	Kind      string  `json:"kind"`
	Value     float64 `json:"value"`
	Discount  float64 `json:"discount"`
	AppliedAt string  `json:"applied_at"`
}

// RideResponse is the HTTP representation of a ride.
type RideResponse struct {
	ID              string        `json:"id"`
	RiderID         string        `json:"rider_id"`
	DriverID        string        `json:"driver_id,omitempty"`
	Pickup          StopPayload   `json:"pickup"`
	Drops           []StopPayload `json:"drops"`
	VehicleType     string        `json:"vehicle_type"`
	Status          string        `json:"status"`
	Pin             string        `json:"pin,omitempty"`
	Fare            *float64      `json:"fare,omitempty"`
	DistanceKm      float64       `json:"distance_km,omitempty"`
	SurgeMultiplier float64       `json:"surge_multiplier"`
	SurgeActive     bool          `json:"surge_active"`
	PenaltyAmount   float64       `json:"penalty_amount,omitempty"`
	Promo           *PromoPayload `json:"promo,omitempty"`
	PaymentMethod   string        `json:"payment_method"`
	CancelledBy     string        `json:"cancelled_by,omitempty"`
	CancelReason    string        `json:"cancel_reason,omitempty"`
	RequestedAt     string        `json:"requested_at"`
	AcceptedAt      string        `json:"accepted_at,omitempty"`
	DriverReachedAt string        `json:"driver_reached_at,omitempty"`
	OngoingAt       string        `json:"ongoing_at,omitempty"`
	CompletedAt     string        `json:"completed_at,omitempty"`
	CancelledAt     string        `json:"cancelled_at,omitempty"`
}

// AcceptRideResponse pairs the claimed ride with the frozen fare breakdown.
type AcceptRideResponse struct {
	Ride      RideResponse          `json:"ride"`
	Breakdown service.FareBreakdown `json:"fare_breakdown"`
}

// CreateRide handles POST /ride
func (h *RideHandler) CreateRide(c *gin.Context) {
	var req CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, err := h.rideService.CreateRide(c.Request.Context(), service.CreateRideRequest{
		RiderID:       req.RiderID,
		Pickup:        toStop(req.Pickup),
		Drops:         toStops(req.Drops),
		VehicleType:   domain.VehicleType(req.VehicleType),
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toRideResponse(ride))
}

// GetRide handles GET /ride/:rideId
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, err := h.rideService.GetRide(c.Request.Context(), c.Param("rideId"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// AcceptRide handles POST /ride/accept/:rideId
func (h *RideHandler) AcceptRide(c *gin.Context) {
	var req AcceptRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, breakdown, err := h.rideService.AcceptRide(c.Request.Context(), c.Param("rideId"), req.DriverID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, AcceptRideResponse{
		Ride:      toRideResponse(ride),
		Breakdown: *breakdown,
	})
}

// RejectRide handles POST /ride/reject/:rideId
func (h *RideHandler) RejectRide(c *gin.Context) {
	ride, err := h.rideService.RejectRide(c.Request.Context(), c.Param("rideId"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// DriverReached handles POST /ride/reached/:rideId
func (h *RideHandler) DriverReached(c *gin.Context) {
	var req AcceptRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, err := h.rideService.MarkDriverReached(c.Request.Context(), c.Param("rideId"), req.DriverID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// StartRide handles POST /ride/start/:rideId
func (h *RideHandler) StartRide(c *gin.Context) {
	var req StartRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, err := h.rideService.StartRide(c.Request.Context(), c.Param("rideId"), req.DriverID, req.Pin)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// CompleteRide handles POST /ride/complete/:rideId
func (h *RideHandler) CompleteRide(c *gin.Context) {
	var req CompleteRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, err := h.rideService.CompleteRide(c.Request.Context(), c.Param("rideId"),
		req.DriverID, domain.PaymentMethod(req.PaymentMethod))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// CancelRide handles POST /ride/cancel/:rideId
func (h *RideHandler) CancelRide(c *gin.Context) {
	var req CancelRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, err := h.rideService.CancelRide(c.Request.Context(), c.Param("rideId"),
		domain.CancelActor(req.CancelledBy), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// ReassignDriver handles POST /ride/reassign-driver/:rideId
func (h *RideHandler) ReassignDriver(c *gin.Context) {
	var req ReassignDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, err := h.rideService.ReassignDriver(c.Request.Context(), c.Param("rideId"), req.NewDriverID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

func toStop(p StopPayload) domain.Stop {
	return domain.Stop{Address: p.Address, Lat: p.Lat, Lng: p.Lng}
}

func toStops(ps []StopPayload) []domain.Stop {
	stops := make([]domain.Stop, 0, len(ps))
	for _, p := range ps {
		stops = append(stops, toStop(p))
	}
	return stops
}

func fromStop(s domain.Stop) StopPayload {
	return StopPayload{Address: s.Address, Lat: s.Lat, Lng: s.Lng}
}

func fromStops(ss []domain.Stop) []StopPayload {
	stops := make([]StopPayload, 0, len(ss))
	for _, s := range ss {
		stops = append(stops, fromStop(s))
	}
	return stops
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func toRideResponse(r *domain.Ride) RideResponse {
	resp := RideResponse{
		ID:              r.ID,
		RiderID:         r.RiderID,
		DriverID:        r.DriverID,
		Pickup:          fromStop(r.Pickup),
		Drops:           fromStops(r.Drops),
		VehicleType:     string(r.VehicleType),
		Status:          string(r.Status),
		Pin:             r.PIN,
		Fare:            r.Fare,
		DistanceKm:      r.DistanceKm,
		SurgeMultiplier: r.SurgeMultiplier,
		SurgeActive:     r.SurgeMultiplier > 1.0,
		PenaltyAmount:   r.PenaltyAmount,
		PaymentMethod:   string(r.PaymentMethod),
		CancelledBy:     string(r.CancelledBy),
		CancelReason:    r.CancelReason,
		RequestedAt:     r.RequestedAt.Format(time.RFC3339),
		AcceptedAt:      formatTime(r.StartedAt),
		DriverReachedAt: formatTime(r.DriverReachedAt),
		OngoingAt:       formatTime(r.OngoingAt),
		CompletedAt:     formatTime(r.CompletedAt),
		CancelledAt:     formatTime(r.CancelledAt),
	}

	if r.Promo != nil {
		resp.Promo = &PromoPayload{
			Code:      r.Promo.Code,
			Kind:      string(r.Promo.Kind),
			Value:     r.Promo.Value,
			Discount:  r.Promo.Discount,
			AppliedAt: r.Promo.AppliedAt.Format(time.RFC3339),
		}
	}

	return resp
}

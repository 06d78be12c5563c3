package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"hail/internal/domain"
	"hail/internal/repository"
)

// AccountHandler handles rider and driver registration.
type AccountHandler struct {
	riderRepo  repository.RiderRepository
	driverRepo repository.DriverRepository
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(riderRepo repository.RiderRepository, driverRepo repository.DriverRepository) *AccountHandler {
	return &AccountHandler{
		riderRepo:  riderRepo,
		driverRepo: driverRepo,
	}
}

// RegisterRiderRequest is the HTTP request body for registering a rider.
type RegisterRiderRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// RegisterDriverRequest is the HTTP request body for registering a driver.
type RegisterDriverRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Vehicle string `json:"vehicle"`
}

// RiderResponse is the HTTP representation of a rider.
type RiderResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

// DriverResponse is the HTTP representation of a driver.
type DriverResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	Vehicle        string `json:"vehicle"`
	Active         bool   `json:"active"`
	CompletedRides int    `json:"completed_rides"`
	CreatedAt      string `json:"created_at"`
}

// RegisterRider handles POST /riders
func (h *AccountHandler) RegisterRider(c *gin.Context) {
	var req RegisterRiderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "name is required"})
		return
	}

	rider := &domain.Rider{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Phone:     req.Phone,
		Active:    true,
		CreatedAt: time.Now(),
	}
	if err := h.riderRepo.Create(c.Request.Context(), rider); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, RiderResponse{
		ID:        rider.ID,
		Name:      rider.Name,
		Phone:     rider.Phone,
		Active:    rider.Active,
		CreatedAt: rider.CreatedAt.Format(time.RFC3339),
	})
}

// RegisterDriver handles POST /drivers
func (h *AccountHandler) RegisterDriver(c *gin.Context) {
	var req RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "name is required"})
		return
	}

	driver := &domain.Driver{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Phone:     req.Phone,
		Vehicle:   domain.VehicleType(req.Vehicle),
		Active:    true,
		CreatedAt: time.Now(),
	}
	if err := h.driverRepo.Create(c.Request.Context(), driver); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, DriverResponse{
		ID:             driver.ID,
		Name:           driver.Name,
		Phone:          driver.Phone,
		Vehicle:        string(driver.Vehicle),
		Active:         driver.Active,
		CompletedRides: driver.CompletedRides,
		CreatedAt:      driver.CreatedAt.Format(time.RFC3339),
	})
}

package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hail/internal/service"
)

// CouponHandler handles HTTP requests for promotions on rides.
type CouponHandler struct {
	promoService *service.PromotionService
}

// NewCouponHandler creates a new CouponHandler.
func NewCouponHandler(promoService *service.PromotionService) *CouponHandler {
	return &CouponHandler{promoService: promoService}
}

// ApplyCouponRequest is the HTTP request body for applying a promotion.
type ApplyCouponRequest struct {
	RideID  string `json:"ride_id"`
	Code    string `json:"code"`
	RiderID string `json:"rider_id"`
}

// RemoveCouponRequest is the HTTP request body for removing a promotion.
type RemoveCouponRequest struct {
	RideID  string `json:"ride_id"`
	Code    string `json:"code"`
	RiderID string `json:"rider_id"`
}

// ApplyCouponResponse is the HTTP response for a successful application.
type ApplyCouponResponse struct {
	Discount     float64      `json:"discount"`
	FinalFare    float64      `json:"final_fare"`
	PromoDetails PromoPayload `json:"promo_details"`
}

// Apply handles POST /coupon/apply
func (h *CouponHandler) Apply(c *gin.Context) {
	var req ApplyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.promoService.Apply(c.Request.Context(), req.RideID, req.Code, req.RiderID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, ApplyCouponResponse{
		Discount:  result.Discount,
		FinalFare: result.FinalFare,
		PromoDetails: PromoPayload{
			Code:      result.Promo.Code,
			Kind:      string(result.Promo.Kind),
			Value:     result.Promo.Value,
			Discount:  result.Promo.Discount,
			AppliedAt: result.Promo.AppliedAt.Format(time.RFC3339),
		},
	})
}

// Remove handles POST /coupon/remove
func (h *CouponHandler) Remove(c *gin.Context) {
	var req RemoveCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, err := h.promoService.Remove(c.Request.Context(), req.RideID, req.Code, req.RiderID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"hail/internal/domain"
	"hail/internal/repository"
)

// ErrNotRideOwner is returned when a rider operates on someone else's ride.
var ErrNotRideOwner = errors.New("ride does not belong to rider")

// PromotionService validates and applies discount codes against a ride's
// frozen fare.
type PromotionService struct {
	rideRepo  repository.RideRepository
	promoRepo repository.PromotionRepository
	log       *zap.Logger
}

// NewPromotionService creates a new PromotionService.
func NewPromotionService(rideRepo repository.RideRepository, promoRepo repository.PromotionRepository, log *zap.Logger) *PromotionService {
	return &PromotionService{
		rideRepo:  rideRepo,
		promoRepo: promoRepo,
		log:       log,
	}
}

// ApplyResult describes a successful promotion application.
type ApplyResult struct {
	Discount  float64
	FinalFare float64
	Promo     *domain.PromoApplication
}

// Apply validates the code against the ride and, when everything passes,
// records the usage and discounts the fare. The usage-cap check and the
// usage append are one conditional update in the repository, so N
// concurrent applications can never exceed a cap; the ride-side write is a
// second conditional update compensated on failure by releasing the usage.
func (s *PromotionService) Apply(ctx context.Context, rideID, code, riderID string) (*ApplyResult, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if riderID == "" {
		return nil, ErrInvalidRiderID
	}
	if domain.NormalizeCode(code) == "" {
		return nil, ErrInvalidPromoCode
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.RiderID != riderID {
		return nil, ErrNotRideOwner
	}
	if ride.Status != domain.RideStatusAccepted {
		return nil, &StateConflictError{RideID: rideID, Status: ride.Status, Action: "apply promotion to"}
	}
	if ride.Promo != nil {
		return nil, ErrPromoAlreadyApplied
	}

	promo, err := s.promoRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !promo.Active {
		return nil, ErrPromoInactive
	}
	if !promo.ValidAt(time.Now()) {
		return nil, ErrPromoNotInWindow
	}

	fare := ride.FareAmount()
	if fare < promo.MinRideAmount {
		return nil, ErrPromoMinAmount
	}

	if err := s.checkCaps(promo, riderID); err != nil {
		return nil, err
	}

	// The caps are re-checked inside this conditional update; the pre-check
	// above only exists to produce a precise error without burning a write.
	recorded, err := s.promoRepo.RecordUsage(ctx, promo.ID, riderID)
	if err != nil {
		return nil, err
	}
	if !recorded {
		if promo, err = s.promoRepo.GetByCode(ctx, code); err == nil {
			if capErr := s.checkCaps(promo, riderID); capErr != nil {
				return nil, capErr
			}
		}
		return nil, ErrPromoInactive
	}

	discount := promo.DiscountFor(fare)
	snapshot := &domain.PromoApplication{
		PromotionID: promo.ID,
		Code:        promo.Code,
		Kind:        promo.Kind,
		Value:       promo.Value,
		Discount:    discount,
		AppliedAt:   time.Now(),
	}

	applied, err := s.rideRepo.SetPromo(ctx, rideID, fare-discount, snapshot)
	if err == nil && !applied {
		err = s.applyConflict(ctx, rideID)
	}
	if err != nil {
		// The usage was recorded but the ride moved on; give it back.
		if _, releaseErr := s.promoRepo.ReleaseUsage(ctx, promo.ID, riderID); releaseErr != nil {
			s.log.Error("failed to release promo usage after lost apply",
				zap.String("promotion_id", promo.ID),
				zap.String("rider_id", riderID),
				zap.Error(releaseErr))
		}
		return nil, err
	}

	return &ApplyResult{
		Discount:  discount,
		FinalFare: fare - discount,
		Promo:     snapshot,
	}, nil
}

// Remove reverses a prior application: restores the fare by the snapshotted
// discount, clears the snapshot, and releases the rider's usage. Legal only
// while the ride is still accepted.
func (s *PromotionService) Remove(ctx context.Context, rideID, code, riderID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if riderID == "" {
		return nil, ErrInvalidRiderID
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.RiderID != riderID {
		return nil, ErrNotRideOwner
	}
	if ride.Status != domain.RideStatusAccepted {
		return nil, &StateConflictError{RideID: rideID, Status: ride.Status, Action: "remove promotion from"}
	}
	if ride.Promo == nil || domain.NormalizeCode(ride.Promo.Code) != domain.NormalizeCode(code) {
		return nil, ErrPromoNotApplied
	}

	restored := ride.FareAmount() + ride.Promo.Discount

	cleared, err := s.rideRepo.ClearPromo(ctx, rideID, restored)
	if err != nil {
		return nil, err
	}
	if !cleared {
		return nil, ErrPromoNotApplied
	}

	if _, err := s.promoRepo.ReleaseUsage(ctx, ride.Promo.PromotionID, riderID); err != nil {
		s.log.Error("failed to release promo usage on removal",
			zap.String("promotion_id", ride.Promo.PromotionID),
			zap.String("rider_id", riderID),
			zap.Error(err))
	}

	return s.rideRepo.GetByID(ctx, rideID)
}

// checkCaps returns the precise limit error when a usage cap is exhausted.
func (s *PromotionService) checkCaps(promo *domain.Promotion, riderID string) error {
	if promo.UsageLimitPerUser > 0 && promo.UsageCountFor(riderID) >= promo.UsageLimitPerUser {
		return &LimitExceededError{Code: promo.Code, Scope: "user", Limit: promo.UsageLimitPerUser}
	}
	if promo.GlobalUsageLimit > 0 && len(promo.UsedBy) >= promo.GlobalUsageLimit {
		return &LimitExceededError{Code: promo.Code, Scope: "global", Limit: promo.GlobalUsageLimit}
	}
	return nil
}

// applyConflict explains why the ride-side write lost.
func (s *PromotionService) applyConflict(ctx context.Context, rideID string) error {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return err
	}
	if ride.Promo != nil {
		return ErrPromoAlreadyApplied
	}
	return &StateConflictError{RideID: rideID, Status: ride.Status, Action: "apply promotion to"}
}

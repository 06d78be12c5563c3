package repository

import (
	"context"

	"hail/internal/domain"
)

// PromotionRepository defines the persistence operations for promotions.
type PromotionRepository interface {
	// Create persists a new promotion.
	Create(ctx context.Context, promo *domain.Promotion) error

	// GetByCode retrieves a promotion by its canonical code.
	GetByCode(ctx context.Context, code string) (*domain.Promotion, error)

	// RecordUsage appends the rider to the promotion's usage list. The
	// per-user and global caps are enforced in the same conditional update,
	// so two concurrent applications can never both slip under a cap. A
	// false result means a cap (or the active flag) blocked the usage.
	RecordUsage(ctx context.Context, promoID, riderID string) (bool, error)

	// ReleaseUsage removes exactly one occurrence of the rider from the
	// usage list. A false result means no occurrence remained.
	ReleaseUsage(ctx context.Context, promoID, riderID string) (bool, error)
}

// FareConfigRepository provides the read-only pricing configuration the fare
// pipeline consumes: distance slabs and surge windows maintained elsewhere.
type FareConfigRepository interface {
	// ActiveSlabs retrieves all active fare slabs.
	ActiveSlabs(ctx context.Context) ([]*domain.FareSlab, error)

	// ActiveSurgeRules retrieves all active surge rules.
	ActiveSurgeRules(ctx context.Context) ([]*domain.SurgeRule, error)
}

package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"hail/internal/domain"
	"hail/internal/repository"
)

const promotionColumns = `
	id, code, kind, value, valid_from, valid_to, min_ride_amount,
	usage_limit_per_user, global_usage_limit, max_discount_amount,
	used_by, active, created_at`

// PromotionRepository is a PostgreSQL implementation of
// repository.PromotionRepository.
type PromotionRepository struct {
	db *sql.DB
}

// NewPromotionRepository creates a new PostgreSQL promotion repository.
func NewPromotionRepository(db *sql.DB) *PromotionRepository {
	return &PromotionRepository{db: db}
}

// Create persists a new promotion. Codes are stored in canonical form.
func (r *PromotionRepository) Create(ctx context.Context, promo *domain.Promotion) error {
	query := `
		INSERT INTO promotions (id, code, kind, value, valid_from, valid_to, min_ride_amount, usage_limit_per_user, global_usage_limit, max_discount_amount, used_by, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	usedBy := promo.UsedBy
	if usedBy == nil {
		usedBy = []string{}
	}

	_, err := r.db.ExecContext(ctx, query,
		promo.ID,
		domain.NormalizeCode(promo.Code),
		promo.Kind,
		promo.Value,
		promo.ValidFrom,
		promo.ValidTo,
		promo.MinRideAmount,
		promo.UsageLimitPerUser,
		promo.GlobalUsageLimit,
		promo.MaxDiscountAmount,
		pq.Array(usedBy),
		promo.Active,
		promo.CreatedAt,
	)

	return err
}

// GetByCode retrieves a promotion by its canonical code.
func (r *PromotionRepository) GetByCode(ctx context.Context, code string) (*domain.Promotion, error) {
	query := `SELECT ` + promotionColumns + ` FROM promotions WHERE code = $1`

	var promo domain.Promotion
	var usedBy pq.StringArray

	err := r.db.QueryRowContext(ctx, query, domain.NormalizeCode(code)).Scan(
		&promo.ID,
		&promo.Code,
		&promo.Kind,
		&promo.Value,
		&promo.ValidFrom,
		&promo.ValidTo,
		&promo.MinRideAmount,
		&promo.UsageLimitPerUser,
		&promo.GlobalUsageLimit,
		&promo.MaxDiscountAmount,
		&usedBy,
		&promo.Active,
		&promo.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	promo.UsedBy = usedBy

	return &promo, nil
}

// RecordUsage appends the rider to used_by. The per-user and global caps sit
// in the WHERE clause of the same UPDATE, so the cap check and the append
// cannot be interleaved by a concurrent application: the row either still
// satisfies the caps when the write lands, or nothing is written.
func (r *PromotionRepository) RecordUsage(ctx context.Context, promoID, riderID string) (bool, error) {
	query := `
		UPDATE promotions
		SET used_by = array_append(used_by, $2)
		WHERE id = $1 AND active
		  AND (usage_limit_per_user <= 0 OR
		       (SELECT COUNT(*) FROM unnest(used_by) AS u WHERE u = $2) < usage_limit_per_user)
		  AND (global_usage_limit <= 0 OR cardinality(used_by) < global_usage_limit)
	`

	return conditional(ctx, r.db, query, promoID, riderID)
}

// ReleaseUsage removes exactly one occurrence of the rider from used_by.
func (r *PromotionRepository) ReleaseUsage(ctx context.Context, promoID, riderID string) (bool, error) {
	query := `
		UPDATE promotions
		SET used_by = used_by[1:array_position(used_by, $2) - 1] || used_by[array_position(used_by, $2) + 1:]
		WHERE id = $1 AND $2 = ANY(used_by)
	`

	return conditional(ctx, r.db, query, promoID, riderID)
}

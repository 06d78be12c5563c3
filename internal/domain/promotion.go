package domain

import (
	"strings"
	"time"
)

// PromoKind discriminates how a promotion's value is interpreted.
type PromoKind string

const (
	PromoFlat       PromoKind = "FLAT"
	PromoPercentage PromoKind = "PERCENTAGE"
)

// Promotion is a discount code with a validity window, usage caps, and
// discount terms. Codes are unique case-insensitively.
type Promotion struct {
	ID        string
	Code      string
	Kind      PromoKind
	Value     float64
	ValidFrom time.Time
	ValidTo   time.Time

	// MinRideAmount is the smallest fare the code may be applied to.
	MinRideAmount float64

	// UsageLimitPerUser caps how many times one rider may use the code.
	UsageLimitPerUser int

	// GlobalUsageLimit caps total uses across all riders. 0 means no cap.
	GlobalUsageLimit int

	// MaxDiscountAmount clamps the computed discount. 0 means no clamp.
	MaxDiscountAmount float64

	// UsedBy holds one entry per successful application, so a rider id may
	// appear multiple times.
	UsedBy []string

	Active    bool
	CreatedAt time.Time
}

// NormalizeCode returns the canonical form of a promotion code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidAt reports whether the instant falls inside the validity window.
func (p *Promotion) ValidAt(at time.Time) bool {
	return !at.Before(p.ValidFrom) && !at.After(p.ValidTo)
}

// UsageCountFor returns how many times the rider has used the promotion.
func (p *Promotion) UsageCountFor(riderID string) int {
	n := 0
	for _, id := range p.UsedBy {
		if id == riderID {
			n++
		}
	}
	return n
}

// DiscountFor computes the discount against the given fare, clamped to
// MaxDiscountAmount when configured and never exceeding the fare itself.
func (p *Promotion) DiscountFor(fare float64) float64 {
	var discount float64
	switch p.Kind {
	case PromoPercentage:
		discount = fare * p.Value / 100
	default:
		discount = p.Value
	}
	if p.MaxDiscountAmount > 0 && discount > p.MaxDiscountAmount {
		discount = p.MaxDiscountAmount
	}
	if discount > fare {
		discount = fare
	}
	return discount
}

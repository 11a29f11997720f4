package models

import (
	"time"

	"github.com/lib/pq"
)

// CouponType distinguishes percentage from fixed-amount coupons.
type CouponType string

// Supported coupon types.
const (
	CouponTypePercentage CouponType = "PERCENTAGE"
	CouponTypeFixed      CouponType = "FIXED"
)

// Coupon is a promo code applicable to an order amount. Applicability
// lists restrict the coupon to specific batches or courses; empty lists
// mean unrestricted.
type Coupon struct {
	ID                  string         `db:"id" json:"id"`
	Code                string         `db:"code" json:"code"`
	Type                CouponType     `db:"type" json:"type"`
	Value               int64          `db:"value" json:"value"`
	MinAmount           *int64         `db:"min_amount" json:"min_amount,omitempty"`
	MaxDiscount         *int64         `db:"max_discount" json:"max_discount,omitempty"`
	ValidFrom           time.Time      `db:"valid_from" json:"valid_from"`
	ValidUntil          time.Time      `db:"valid_until" json:"valid_until"`
	UsageLimit          *int           `db:"usage_limit" json:"usage_limit,omitempty"`
	UsedCount           int            `db:"used_count" json:"used_count"`
	IsActive            bool           `db:"is_active" json:"is_active"`
	ApplicableBatchIDs  pq.StringArray `db:"applicable_batch_ids" json:"applicable_batch_ids,omitempty"`
	ApplicableCourseIDs pq.StringArray `db:"applicable_course_ids" json:"applicable_course_ids,omitempty"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`
}

// DiscountFor computes the discount this coupon grants against the order
// amount. Percentage discounts are capped at MaxDiscount when configured;
// fixed discounts never exceed the order amount.
func (c *Coupon) DiscountFor(orderAmount int64) int64 {
	switch c.Type {
	case CouponTypePercentage:
		discount := orderAmount * c.Value / 100
		if c.MaxDiscount != nil && discount > *c.MaxDiscount {
			discount = *c.MaxDiscount
		}
		return discount
	case CouponTypeFixed:
		if c.Value > orderAmount {
			return orderAmount
		}
		return c.Value
	}
	return 0
}

// AppliesTo reports whether the coupon may be used for the given batch and
// course. Empty applicability lists impose no restriction.
func (c *Coupon) AppliesTo(batchID, courseID string) bool {
	if len(c.ApplicableBatchIDs) == 0 && len(c.ApplicableCourseIDs) == 0 {
		return true
	}
	for _, id := range c.ApplicableBatchIDs {
		if id == batchID {
			return true
		}
	}
	for _, id := range c.ApplicableCourseIDs {
		if id == courseID {
			return true
		}
	}
	return false
}

// CouponFilter provides filters for listing coupons.
type CouponFilter struct {
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

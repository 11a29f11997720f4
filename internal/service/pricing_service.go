package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/moshiurrahman101/ccit-sub003/internal/models"
	appErrors "github.com/moshiurrahman101/ccit-sub003/pkg/errors"
)

type pricingBatchReader interface {
	FindByID(ctx context.Context, id string) (*models.Batch, error)
}

type pricingCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type couponValidator interface {
	Validate(ctx context.Context, code, batchID, courseID string, orderAmount int64) (*CouponValidationResult, error)
}

// PriceQuote is the response for an anonymous pricing preview. It carries
// the same breakdown an invoice would freeze plus seat availability.
type PriceQuote struct {
	BatchID        string                `json:"batch_id"`
	CourseID       string                `json:"course_id"`
	Breakdown      models.PriceBreakdown `json:"breakdown"`
	SeatsRemaining int                   `json:"seats_remaining"`
	QuotedAt       time.Time             `json:"quoted_at"`
}

// PricingService resolves the price waterfall for a batch: the batch price
// override wins over the course price, the listed discount price reduces
// the base, and a promo coupon is applied last.
type PricingService struct {
	batches  pricingBatchReader
	courses  pricingCourseReader
	coupons  couponValidator
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewPricingService constructs PricingService.
func NewPricingService(batches pricingBatchReader, courses pricingCourseReader, coupons couponValidator, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *PricingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PricingService{
		batches:  batches,
		courses:  courses,
		coupons:  coupons,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Resolve computes the frozen price breakdown for a batch, optionally with
// a coupon. The coupon is validated but never consumed here.
func (s *PricingService) Resolve(ctx context.Context, batchID, couponCode string) (*models.PriceBreakdown, *models.Batch, error) {
	batch, err := s.batches.FindByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}

	course, err := s.courses.FindByID(ctx, batch.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	// Each price field falls back from batch to course independently, so
	// a batch can override the regular price while the course discount
	// still applies.
	regular := course.RegularPrice
	if batch.RegularPrice != nil {
		regular = *batch.RegularPrice
	}
	discountPrice := course.DiscountPrice
	if batch.DiscountPrice != nil {
		discountPrice = batch.DiscountPrice
	}
	discounted := regular
	if discountPrice != nil && *discountPrice < regular {
		discounted = *discountPrice
	}

	breakdown := &models.PriceBreakdown{
		RegularPrice:   regular,
		DiscountAmount: regular - discounted,
	}

	orderAmount := discounted
	if couponCode != "" {
		result, err := s.coupons.Validate(ctx, couponCode, batch.ID, course.ID, orderAmount)
		if err != nil {
			return nil, nil, err
		}
		breakdown.PromoDiscount = result.Discount
		breakdown.CouponCode = result.Coupon.Code
	}

	final := orderAmount - breakdown.PromoDiscount
	if final < 0 {
		final = 0
	}
	breakdown.FinalAmount = final

	return breakdown, batch, nil
}

// Quote returns a cached pricing preview for a batch. Quotes without a
// coupon are cached briefly; coupon quotes are always computed fresh so
// usage-limit exhaustion shows up immediately.
func (s *PricingService) Quote(ctx context.Context, batchID, couponCode string) (*PriceQuote, error) {
	cacheKey := fmt.Sprintf("pricing:quote:%s", batchID)
	if couponCode == "" && s.cache.Enabled() {
		var cached PriceQuote
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	breakdown, batch, err := s.Resolve(ctx, batchID, couponCode)
	if err != nil {
		return nil, err
	}

	quote := &PriceQuote{
		BatchID:        batch.ID,
		CourseID:       batch.CourseID,
		Breakdown:      *breakdown,
		SeatsRemaining: batch.SeatsRemaining(),
		QuotedAt:       s.now(),
	}

	if couponCode == "" {
		if err := s.cache.Set(ctx, cacheKey, quote, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache price quote", zap.String("batch_id", batchID), zap.Error(err))
		}
	}
	return quote, nil
}

// InvalidateQuotes drops cached quotes for a batch after a price change.
func (s *PricingService) InvalidateQuotes(ctx context.Context, batchID string) {
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("pricing:quote:%s", batchID)); err != nil {
		s.logger.Warn("failed to invalidate price quotes", zap.String("batch_id", batchID), zap.Error(err))
	}
}

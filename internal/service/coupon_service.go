package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/moshiurrahman101/ccit-sub003/internal/models"
	appErrors "github.com/moshiurrahman101/ccit-sub003/pkg/errors"
)

// Coupon rejection reasons carried in COUPON_INVALID messages.
const (
	CouponReasonUnknownCode   = "unknown-code"
	CouponReasonInactive      = "inactive"
	CouponReasonExpired       = "expired"
	CouponReasonExhausted     = "exhausted"
	CouponReasonBelowMinimum  = "below-minimum"
	CouponReasonNotApplicable = "not-applicable"
)

type couponRepository interface {
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	List(ctx context.Context, filter models.CouponFilter) ([]models.Coupon, int, error)
	Create(ctx context.Context, coupon *models.Coupon) error
	Update(ctx context.Context, coupon *models.Coupon) error
	Deactivate(ctx context.Context, id string) error
}

// CreateCouponRequest describes a new promo coupon.
type CreateCouponRequest struct {
	Code                string    `json:"code" validate:"required,uppercase,min=3,max=32"`
	Type                string    `json:"type" validate:"required,oneof=PERCENTAGE FIXED"`
	Value               int64     `json:"value" validate:"required,gt=0"`
	MinAmount           *int64    `json:"min_amount" validate:"omitempty,gt=0"`
	MaxDiscount         *int64    `json:"max_discount" validate:"omitempty,gt=0"`
	ValidFrom           time.Time `json:"valid_from" validate:"required"`
	ValidUntil          time.Time `json:"valid_until" validate:"required,gtfield=ValidFrom"`
	UsageLimit          *int      `json:"usage_limit" validate:"omitempty,gt=0"`
	ApplicableBatchIDs  []string  `json:"applicable_batch_ids"`
	ApplicableCourseIDs []string  `json:"applicable_course_ids"`
}

// UpdateCouponRequest describes mutable coupon fields. The code itself is
// immutable once issued.
type UpdateCouponRequest struct {
	Value               *int64     `json:"value" validate:"omitempty,gt=0"`
	MinAmount           *int64     `json:"min_amount" validate:"omitempty,gt=0"`
	MaxDiscount         *int64     `json:"max_discount" validate:"omitempty,gt=0"`
	ValidFrom           *time.Time `json:"valid_from"`
	ValidUntil          *time.Time `json:"valid_until"`
	UsageLimit          *int       `json:"usage_limit" validate:"omitempty,gt=0"`
	IsActive            *bool      `json:"is_active"`
	ApplicableBatchIDs  []string   `json:"applicable_batch_ids"`
	ApplicableCourseIDs []string   `json:"applicable_course_ids"`
}

// CouponValidationResult is the outcome of a successful validation. The
// coupon is not consumed; usage is committed only when an invoice is
// created with it.
type CouponValidationResult struct {
	Coupon   models.Coupon `json:"coupon"`
	Discount int64         `json:"discount"`
}

// CouponService validates coupons against orders and manages the coupon
// catalog.
type CouponService struct {
	repo      couponRepository
	validator *validator.Validate
	logger    *zap.Logger
	audit     *AuditService
	now       func() time.Time
}

// NewCouponService constructs CouponService.
func NewCouponService(repo couponRepository, validate *validator.Validate, logger *zap.Logger, audit *AuditService) *CouponService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CouponService{repo: repo, validator: validate, logger: logger, audit: audit, now: func() time.Time { return time.Now().UTC() }}
}

// Validate runs the coupon rule chain against an order and returns the
// discount the coupon would grant. Checks run in a fixed order and the
// first failure wins, so callers always see a stable reason.
func (s *CouponService) Validate(ctx context.Context, code, batchID, courseID string, orderAmount int64) (*CouponValidationResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, appErrors.CouponInvalid(CouponReasonUnknownCode)
	}

	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.CouponInvalid(CouponReasonUnknownCode)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load coupon")
	}

	now := s.now()
	switch {
	case !coupon.IsActive:
		return nil, appErrors.CouponInvalid(CouponReasonInactive)
	case now.Before(coupon.ValidFrom) || now.After(coupon.ValidUntil):
		return nil, appErrors.CouponInvalid(CouponReasonExpired)
	case coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit:
		return nil, appErrors.CouponInvalid(CouponReasonExhausted)
	case coupon.MinAmount != nil && orderAmount < *coupon.MinAmount:
		return nil, appErrors.CouponInvalid(CouponReasonBelowMinimum)
	case !coupon.AppliesTo(batchID, courseID):
		return nil, appErrors.CouponInvalid(CouponReasonNotApplicable)
	}

	return &CouponValidationResult{Coupon: *coupon, Discount: coupon.DiscountFor(orderAmount)}, nil
}

// List returns coupons with pagination metadata.
func (s *CouponService) List(ctx context.Context, filter models.CouponFilter) ([]models.Coupon, *models.Pagination, error) {
	coupons, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list coupons")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return coupons, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Create issues a new coupon.
func (s *CouponService) Create(ctx context.Context, actorID string, req CreateCouponRequest) (*models.Coupon, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid coupon payload")
	}

	if _, err := s.repo.FindByCode(ctx, req.Code); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "coupon code already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check coupon code")
	}

	coupon := &models.Coupon{
		Code:                req.Code,
		Type:                models.CouponType(req.Type),
		Value:               req.Value,
		MinAmount:           req.MinAmount,
		MaxDiscount:         req.MaxDiscount,
		ValidFrom:           req.ValidFrom,
		ValidUntil:          req.ValidUntil,
		UsageLimit:          req.UsageLimit,
		IsActive:            true,
		ApplicableBatchIDs:  pq.StringArray(req.ApplicableBatchIDs),
		ApplicableCourseIDs: pq.StringArray(req.ApplicableCourseIDs),
	}
	if coupon.Type == models.CouponTypePercentage && coupon.Value > 100 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "percentage value cannot exceed 100")
	}

	if err := s.repo.Create(ctx, coupon); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create coupon")
	}

	s.recordMutation(actorID, coupon, "created")
	return coupon, nil
}

// Update mutates an existing coupon by code.
func (s *CouponService) Update(ctx context.Context, actorID, code string, req UpdateCouponRequest) (*models.Coupon, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid coupon payload")
	}

	coupon, err := s.repo.FindByCode(ctx, strings.ToUpper(code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "coupon not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load coupon")
	}

	if req.Value != nil {
		coupon.Value = *req.Value
	}
	if req.MinAmount != nil {
		coupon.MinAmount = req.MinAmount
	}
	if req.MaxDiscount != nil {
		coupon.MaxDiscount = req.MaxDiscount
	}
	if req.ValidFrom != nil {
		coupon.ValidFrom = *req.ValidFrom
	}
	if req.ValidUntil != nil {
		coupon.ValidUntil = *req.ValidUntil
	}
	if req.UsageLimit != nil {
		coupon.UsageLimit = req.UsageLimit
	}
	if req.IsActive != nil {
		coupon.IsActive = *req.IsActive
	}
	if req.ApplicableBatchIDs != nil {
		coupon.ApplicableBatchIDs = pq.StringArray(req.ApplicableBatchIDs)
	}
	if req.ApplicableCourseIDs != nil {
		coupon.ApplicableCourseIDs = pq.StringArray(req.ApplicableCourseIDs)
	}

	if !coupon.ValidUntil.After(coupon.ValidFrom) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "valid_until must be after valid_from")
	}
	if coupon.Type == models.CouponTypePercentage && coupon.Value > 100 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "percentage value cannot exceed 100")
	}

	if err := s.repo.Update(ctx, coupon); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update coupon")
	}

	s.recordMutation(actorID, coupon, "updated")
	return coupon, nil
}

// Deactivate switches a coupon off.
func (s *CouponService) Deactivate(ctx context.Context, actorID, code string) error {
	coupon, err := s.repo.FindByCode(ctx, strings.ToUpper(code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "coupon not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load coupon")
	}

	if err := s.repo.Deactivate(ctx, coupon.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate coupon")
	}

	s.recordMutation(actorID, coupon, "deactivated")
	return nil
}

func (s *CouponService) recordMutation(actorID string, coupon *models.Coupon, change string) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{"code": coupon.Code, "change": change})
	s.audit.Record(&models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionCouponMutate,
		Resource:   "coupon",
		ResourceID: &coupon.ID,
		NewValues:  payload,
	})
}

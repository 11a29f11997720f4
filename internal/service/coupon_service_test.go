package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moshiurrahman101/ccit-sub003/internal/models"
	appErrors "github.com/moshiurrahman101/ccit-sub003/pkg/errors"
)

type mockCouponRepo struct {
	items       map[string]*models.Coupon
	deactivated []string
}

func (m *mockCouponRepo) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	if coupon, ok := m.items[code]; ok {
		cp := *coupon
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCouponRepo) List(ctx context.Context, filter models.CouponFilter) ([]models.Coupon, int, error) {
	var coupons []models.Coupon
	for _, coupon := range m.items {
		coupons = append(coupons, *coupon)
	}
	return coupons, len(coupons), nil
}

func (m *mockCouponRepo) Create(ctx context.Context, coupon *models.Coupon) error {
	if m.items == nil {
		m.items = make(map[string]*models.Coupon)
	}
	if coupon.ID == "" {
		coupon.ID = "generated"
	}
	cp := *coupon
	m.items[coupon.Code] = &cp
	return nil
}

func (m *mockCouponRepo) Update(ctx context.Context, coupon *models.Coupon) error {
	cp := *coupon
	m.items[coupon.Code] = &cp
	return nil
}

func (m *mockCouponRepo) Deactivate(ctx context.Context, id string) error {
	m.deactivated = append(m.deactivated, id)
	return nil
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

func validCoupon() *models.Coupon {
	return &models.Coupon{
		ID:         "c1",
		Code:       "SUMMER10",
		Type:       models.CouponTypePercentage,
		Value:      10,
		ValidFrom:  fixedNow().Add(-24 * time.Hour),
		ValidUntil: fixedNow().Add(24 * time.Hour),
		IsActive:   true,
	}
}

func newCouponService(repo *mockCouponRepo) *CouponService {
	svc := NewCouponService(repo, nil, nil, nil)
	svc.now = fixedNow
	return svc
}

func TestCouponServiceValidate(t *testing.T) {
	repo := &mockCouponRepo{items: map[string]*models.Coupon{"SUMMER10": validCoupon()}}
	svc := newCouponService(repo)

	result, err := svc.Validate(context.Background(), "summer10", "batch-1", "course-1", 5000)
	require.NoError(t, err)
	assert.Equal(t, int64(500), result.Discount)
	assert.Equal(t, "SUMMER10", result.Coupon.Code)
	// Validation never touches the stored coupon.
	assert.Equal(t, 0, repo.items["SUMMER10"].UsedCount)
}

func TestCouponServiceValidateRejections(t *testing.T) {
	limit := 5
	minAmount := int64(10000)

	cases := []struct {
		name    string
		mutate  func(c *models.Coupon)
		message string
	}{
		{"inactive", func(c *models.Coupon) { c.IsActive = false }, CouponReasonInactive},
		{"not yet valid", func(c *models.Coupon) { c.ValidFrom = fixedNow().Add(time.Hour) }, CouponReasonExpired},
		{"expired", func(c *models.Coupon) { c.ValidUntil = fixedNow().Add(-time.Hour) }, CouponReasonExpired},
		{"exhausted", func(c *models.Coupon) { c.UsageLimit = &limit; c.UsedCount = 5 }, CouponReasonExhausted},
		{"below minimum", func(c *models.Coupon) { c.MinAmount = &minAmount }, CouponReasonBelowMinimum},
		{"not applicable", func(c *models.Coupon) { c.ApplicableBatchIDs = []string{"batch-9"} }, CouponReasonNotApplicable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			coupon := validCoupon()
			tc.mutate(coupon)
			repo := &mockCouponRepo{items: map[string]*models.Coupon{"SUMMER10": coupon}}
			svc := newCouponService(repo)

			_, err := svc.Validate(context.Background(), "SUMMER10", "batch-1", "course-1", 5000)
			require.Error(t, err)
			appErr := appErrors.FromError(err)
			assert.Equal(t, appErrors.ErrCouponInvalid.Code, appErr.Code)
			assert.Contains(t, appErr.Message, tc.message)
		})
	}
}

func TestCouponServiceValidateInactiveBeatsExpired(t *testing.T) {
	// An inactive, expired coupon reports inactive: the checks run in a
	// fixed order so the reason is stable.
	coupon := validCoupon()
	coupon.IsActive = false
	coupon.ValidUntil = fixedNow().Add(-time.Hour)
	repo := &mockCouponRepo{items: map[string]*models.Coupon{"SUMMER10": coupon}}
	svc := newCouponService(repo)

	_, err := svc.Validate(context.Background(), "SUMMER10", "batch-1", "course-1", 5000)
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, CouponReasonInactive)
}

func TestCouponServiceValidateUnknownCode(t *testing.T) {
	svc := newCouponService(&mockCouponRepo{})

	_, err := svc.Validate(context.Background(), "NOPE", "batch-1", "course-1", 5000)
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, CouponReasonUnknownCode)

	_, err = svc.Validate(context.Background(), "  ", "batch-1", "course-1", 5000)
	require.Error(t, err)
}

func TestCouponServiceCreate(t *testing.T) {
	repo := &mockCouponRepo{}
	svc := newCouponService(repo)

	coupon, err := svc.Create(context.Background(), "admin-1", CreateCouponRequest{
		Code:       "LAUNCH50",
		Type:       "FIXED",
		Value:      500,
		ValidFrom:  fixedNow(),
		ValidUntil: fixedNow().Add(30 * 24 * time.Hour),
	})
	require.NoError(t, err)
	assert.True(t, coupon.IsActive)
	assert.Equal(t, 0, coupon.UsedCount)
	assert.Len(t, repo.items, 1)
}

func TestCouponServiceCreateDuplicateCode(t *testing.T) {
	repo := &mockCouponRepo{items: map[string]*models.Coupon{"SUMMER10": validCoupon()}}
	svc := newCouponService(repo)

	_, err := svc.Create(context.Background(), "admin-1", CreateCouponRequest{
		Code:       "SUMMER10",
		Type:       "PERCENTAGE",
		Value:      10,
		ValidFrom:  fixedNow(),
		ValidUntil: fixedNow().Add(24 * time.Hour),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCouponServiceCreatePercentageOverHundred(t *testing.T) {
	svc := newCouponService(&mockCouponRepo{})

	_, err := svc.Create(context.Background(), "admin-1", CreateCouponRequest{
		Code:       "TOOMUCH",
		Type:       "PERCENTAGE",
		Value:      150,
		ValidFrom:  fixedNow(),
		ValidUntil: fixedNow().Add(24 * time.Hour),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCouponServiceDeactivate(t *testing.T) {
	repo := &mockCouponRepo{items: map[string]*models.Coupon{"SUMMER10": validCoupon()}}
	svc := newCouponService(repo)

	require.NoError(t, svc.Deactivate(context.Background(), "admin-1", "summer10"))
	assert.Equal(t, []string{"c1"}, repo.deactivated)
}

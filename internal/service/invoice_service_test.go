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

type mockInvoiceRepo struct {
	items           map[string]*models.Invoice
	listResult      []models.Invoice
	listTotal       int
	created         *models.Invoice
	enrollment      *models.Enrollment
	openExists      bool
	couponExhausted bool
	consumedCoupons []string
}

func (m *mockInvoiceRepo) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	if invoice, ok := m.items[id]; ok {
		cp := *invoice
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockInvoiceRepo) List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, int, error) {
	return m.listResult, m.listTotal, nil
}

func (m *mockInvoiceRepo) CreateWithEnrollment(ctx context.Context, invoice *models.Invoice, enrollment *models.Enrollment, couponCode string) (bool, error) {
	if couponCode != "" {
		if m.couponExhausted {
			return false, nil
		}
		m.consumedCoupons = append(m.consumedCoupons, couponCode)
	}
	invoice.ID = "inv-1"
	enrollment.ID = "enr-1"
	enrollment.InvoiceID = invoice.ID
	enrollment.Status = models.EnrollmentStatusPending
	m.created = invoice
	m.enrollment = enrollment
	return true, nil
}

func (m *mockInvoiceRepo) ExistsOpenForStudentAndBatch(ctx context.Context, studentID, batchID string) (bool, error) {
	return m.openExists, nil
}

type stubPaymentLister struct {
	payments []models.Payment
}

func (s *stubPaymentLister) ListByInvoice(ctx context.Context, invoiceID string) ([]models.Payment, error) {
	return s.payments, nil
}

type stubResolver struct {
	breakdown *models.PriceBreakdown
	batch     *models.Batch
	err       error
}

func (s *stubResolver) Resolve(ctx context.Context, batchID, couponCode string) (*models.PriceBreakdown, *models.Batch, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.breakdown, s.batch, nil
}

func openBatch() *models.Batch {
	return &models.Batch{ID: "b1", CourseID: "c1", Status: models.BatchStatusPublished, MaxStudents: 30, CurrentStudents: 5}
}

func newInvoiceFixture(repo *mockInvoiceRepo, resolver *stubResolver) *InvoiceService {
	svc := NewInvoiceService(repo, &stubPaymentLister{}, resolver, nil, nil, nil, 7)
	svc.now = fixedNow
	return svc
}

func TestInvoiceServiceCreate(t *testing.T) {
	repo := &mockInvoiceRepo{}
	resolver := &stubResolver{
		breakdown: &models.PriceBreakdown{RegularPrice: 10000, DiscountAmount: 2000, FinalAmount: 8000},
		batch:     openBatch(),
	}
	svc := newInvoiceFixture(repo, resolver)

	view, err := svc.Create(context.Background(), "student-1", CreateInvoiceRequest{BatchID: "b1"})
	require.NoError(t, err)

	assert.Equal(t, int64(10000), view.Amount)
	assert.Equal(t, int64(2000), view.DiscountAmount)
	assert.Equal(t, int64(8000), view.FinalAmount)
	assert.Equal(t, int64(0), view.PaidAmount)
	assert.Equal(t, models.InvoiceStatusPending, view.Status)
	assert.Equal(t, fixedNow().AddDate(0, 0, 7), view.DueDate)
	assert.Nil(t, view.CouponCode)

	require.NotNil(t, repo.enrollment)
	assert.Equal(t, models.EnrollmentStatusPending, repo.enrollment.Status)
	assert.Equal(t, "inv-1", repo.enrollment.InvoiceID)
}

func TestInvoiceServiceCreateConsumesCoupon(t *testing.T) {
	repo := &mockInvoiceRepo{}
	resolver := &stubResolver{
		breakdown: &models.PriceBreakdown{RegularPrice: 10000, DiscountAmount: 2000, PromoDiscount: 800, FinalAmount: 7200, CouponCode: "SUMMER10"},
		batch:     openBatch(),
	}
	svc := newInvoiceFixture(repo, resolver)

	view, err := svc.Create(context.Background(), "student-1", CreateInvoiceRequest{BatchID: "b1", CouponCode: "SUMMER10"})
	require.NoError(t, err)
	assert.Equal(t, []string{"SUMMER10"}, repo.consumedCoupons)
	require.NotNil(t, view.CouponCode)
	assert.Equal(t, "SUMMER10", *view.CouponCode)
}

func TestInvoiceServiceCreateCouponExhaustedAtCommit(t *testing.T) {
	// The usage limit runs out inside the creation transaction: the whole
	// attempt aborts and no invoice row exists.
	repo := &mockInvoiceRepo{couponExhausted: true}
	resolver := &stubResolver{
		breakdown: &models.PriceBreakdown{RegularPrice: 10000, FinalAmount: 9000, PromoDiscount: 1000, CouponCode: "SUMMER10"},
		batch:     openBatch(),
	}
	svc := newInvoiceFixture(repo, resolver)

	_, err := svc.Create(context.Background(), "student-1", CreateInvoiceRequest{BatchID: "b1", CouponCode: "SUMMER10"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCouponInvalid.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.created)
	assert.Empty(t, repo.consumedCoupons)
}

func TestInvoiceServiceCreateBatchNotOpen(t *testing.T) {
	for _, status := range []models.BatchStatus{models.BatchStatusDraft, models.BatchStatusCompleted, models.BatchStatusCancelled} {
		batch := openBatch()
		batch.Status = status
		resolver := &stubResolver{breakdown: &models.PriceBreakdown{RegularPrice: 10000, FinalAmount: 10000}, batch: batch}
		svc := newInvoiceFixture(&mockInvoiceRepo{}, resolver)

		_, err := svc.Create(context.Background(), "student-1", CreateInvoiceRequest{BatchID: "b1"})
		require.Error(t, err, "status %s", status)
		assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	}
}

func TestInvoiceServiceCreateBatchFull(t *testing.T) {
	batch := openBatch()
	batch.CurrentStudents = batch.MaxStudents
	resolver := &stubResolver{breakdown: &models.PriceBreakdown{RegularPrice: 10000, FinalAmount: 10000}, batch: batch}
	svc := newInvoiceFixture(&mockInvoiceRepo{}, resolver)

	_, err := svc.Create(context.Background(), "student-1", CreateInvoiceRequest{BatchID: "b1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrBatchFull.Code, appErrors.FromError(err).Code)
}

func TestInvoiceServiceCreateDuplicateAttempt(t *testing.T) {
	repo := &mockInvoiceRepo{openExists: true}
	resolver := &stubResolver{breakdown: &models.PriceBreakdown{RegularPrice: 10000, FinalAmount: 9000, PromoDiscount: 1000, CouponCode: "SUMMER10"}, batch: openBatch()}
	svc := newInvoiceFixture(repo, resolver)

	_, err := svc.Create(context.Background(), "student-1", CreateInvoiceRequest{BatchID: "b1", CouponCode: "SUMMER10"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	// Rejected before the creation transaction, so no usage burned.
	assert.Empty(t, repo.consumedCoupons)
}

func TestInvoiceServiceGetOwnership(t *testing.T) {
	repo := &mockInvoiceRepo{items: map[string]*models.Invoice{
		"inv-1": {ID: "inv-1", StudentID: "student-1", FinalAmount: 8000, DueDate: fixedNow().Add(time.Hour)},
	}}
	svc := newInvoiceFixture(repo, &stubResolver{})

	detail, err := svc.Get(context.Background(), models.RoleStudent, "student-1", "inv-1")
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPending, detail.Status)

	_, err = svc.Get(context.Background(), models.RoleStudent, "student-2", "inv-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Get(context.Background(), models.RoleAdmin, "admin-1", "inv-1")
	require.NoError(t, err)
}

func TestInvoiceServiceListPinsStudents(t *testing.T) {
	repo := &mockInvoiceRepo{listResult: []models.Invoice{
		{ID: "inv-1", StudentID: "student-1", FinalAmount: 8000, PaidAmount: 8000, DueDate: fixedNow().Add(time.Hour)},
	}, listTotal: 1}
	svc := newInvoiceFixture(repo, &stubResolver{})

	views, pagination, err := svc.List(context.Background(), models.RoleStudent, "student-1", models.InvoiceFilter{StudentID: "someone-else"})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, models.InvoiceStatusPaid, views[0].Status)
	assert.Equal(t, 1, pagination.TotalCount)
}

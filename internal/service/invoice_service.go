package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/moshiurrahman101/ccit-sub003/internal/models"
	appErrors "github.com/moshiurrahman101/ccit-sub003/pkg/errors"
)

type invoiceRepository interface {
	FindByID(ctx context.Context, id string) (*models.Invoice, error)
	List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, int, error)
	CreateWithEnrollment(ctx context.Context, invoice *models.Invoice, enrollment *models.Enrollment, couponCode string) (bool, error)
	ExistsOpenForStudentAndBatch(ctx context.Context, studentID, batchID string) (bool, error)
}

type invoicePaymentLister interface {
	ListByInvoice(ctx context.Context, invoiceID string) ([]models.Payment, error)
}

type priceResolver interface {
	Resolve(ctx context.Context, batchID, couponCode string) (*models.PriceBreakdown, *models.Batch, error)
}

// CreateInvoiceRequest starts an enrollment attempt for a batch.
type CreateInvoiceRequest struct {
	BatchID    string `json:"batch_id" validate:"required"`
	CouponCode string `json:"coupon_code"`
}

// InvoiceService freezes price breakdowns into invoices and opens the
// matching pending enrollment.
type InvoiceService struct {
	repo      invoiceRepository
	payments  invoicePaymentLister
	pricing   priceResolver
	validator *validator.Validate
	logger    *zap.Logger
	audit     *AuditService
	dueDays   int
	now       func() time.Time
}

// NewInvoiceService constructs InvoiceService.
func NewInvoiceService(repo invoiceRepository, payments invoicePaymentLister, pricing priceResolver, validate *validator.Validate, logger *zap.Logger, audit *AuditService, dueDays int) *InvoiceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if dueDays <= 0 {
		dueDays = 7
	}
	return &InvoiceService{
		repo:      repo,
		payments:  payments,
		pricing:   pricing,
		validator: validate,
		logger:    logger,
		audit:     audit,
		dueDays:   dueDays,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create resolves the price waterfall, commits the coupon use and persists
// the invoice together with its pending enrollment. The breakdown written
// here never changes, whatever happens to catalog prices later.
func (s *InvoiceService) Create(ctx context.Context, studentID string, req CreateInvoiceRequest) (*models.InvoiceView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invoice payload")
	}

	breakdown, batch, err := s.pricing.Resolve(ctx, req.BatchID, req.CouponCode)
	if err != nil {
		return nil, err
	}

	if batch.Status != models.BatchStatusPublished && batch.Status != models.BatchStatusUpcoming && batch.Status != models.BatchStatusOngoing {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "batch is not open for enrollment")
	}
	if batch.IsFull() {
		return nil, appErrors.Clone(appErrors.ErrBatchFull, "")
	}

	exists, err := s.repo.ExistsOpenForStudentAndBatch(ctx, studentID, req.BatchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment attempts")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already has an open enrollment attempt for this batch")
	}

	now := s.now()
	invoice := &models.Invoice{
		StudentID:      studentID,
		BatchID:        batch.ID,
		Amount:         breakdown.RegularPrice,
		DiscountAmount: breakdown.DiscountAmount,
		PromoDiscount:  breakdown.PromoDiscount,
		FinalAmount:    breakdown.FinalAmount,
		PaidAmount:     0,
		DueDate:        now.AddDate(0, 0, s.dueDays),
	}
	if breakdown.CouponCode != "" {
		code := breakdown.CouponCode
		invoice.CouponCode = &code
	}

	enrollment := &models.Enrollment{
		StudentID: studentID,
		BatchID:   batch.ID,
	}

	// The coupon use commits in the same transaction as the invoice and
	// enrollment rows: a failed insert never burns a usage, and an
	// exhausted limit aborts the whole attempt.
	consumed, err := s.repo.CreateWithEnrollment(ctx, invoice, enrollment, breakdown.CouponCode)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create invoice")
	}
	if !consumed {
		return nil, appErrors.CouponInvalid(CouponReasonExhausted)
	}

	if s.audit != nil {
		payload, _ := json.Marshal(breakdown)
		s.audit.Record(&models.AuditLog{
			UserID:     &studentID,
			Action:     models.AuditActionInvoiceCreate,
			Resource:   "invoice",
			ResourceID: &invoice.ID,
			NewValues:  payload,
		})
	}

	view := invoice.View(now)
	return &view, nil
}

// Get returns an invoice with its claim history. Students only see their
// own invoices.
func (s *InvoiceService) Get(ctx context.Context, role models.UserRole, userID, invoiceID string) (*models.InvoiceDetail, error) {
	invoice, err := s.repo.FindByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
	}

	if !CanViewInvoice(role, userID, invoice.StudentID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invoice belongs to another student")
	}

	payments, err := s.payments.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payments")
	}

	return &models.InvoiceDetail{
		InvoiceView: invoice.View(s.now()),
		Payments:    payments,
	}, nil
}

// List returns invoices with their derived views. Student callers are
// pinned to their own invoices regardless of the requested filter.
func (s *InvoiceService) List(ctx context.Context, role models.UserRole, userID string, filter models.InvoiceFilter) ([]models.InvoiceView, *models.Pagination, error) {
	if role == models.RoleStudent {
		filter.StudentID = userID
	}

	invoices, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invoices")
	}

	now := s.now()
	views := make([]models.InvoiceView, 0, len(invoices))
	for i := range invoices {
		views = append(views, invoices[i].View(now))
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return views, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

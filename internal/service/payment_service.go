package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/moshiurrahman101/ccit-sub003/internal/models"
	appErrors "github.com/moshiurrahman101/ccit-sub003/pkg/errors"
)

// Mobile wallet sender numbers are Bangladeshi subscriber numbers.
var walletNumberPattern = regexp.MustCompile(`^01\d{9}$`)

type paymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	ListByInvoice(ctx context.Context, invoiceID string) ([]models.Payment, error)
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error)
	Verify(ctx context.Context, paymentID, actorID string) (*models.Payment, bool, error)
	Reject(ctx context.Context, paymentID, actorID string) (*models.Payment, bool, error)
}

type paymentInvoiceReader interface {
	FindByID(ctx context.Context, id string) (*models.Invoice, error)
}

type paymentBatchReader interface {
	FindByID(ctx context.Context, id string) (*models.Batch, error)
}

// SubmitClaimRequest reports a manual payment against an invoice. A zero
// amount claims the full remaining balance.
type SubmitClaimRequest struct {
	InvoiceID     string  `json:"invoice_id" validate:"required"`
	Amount        int64   `json:"amount" validate:"gte=0"`
	Method        string  `json:"method" validate:"required"`
	SenderNumber  string  `json:"sender_number" validate:"required"`
	TransactionID string  `json:"transaction_id" validate:"required,min=4,max=64"`
	EvidenceURL   *string `json:"evidence_url" validate:"omitempty,url"`
}

// DecideClaimRequest carries an admin's verdict on a pending claim.
type DecideClaimRequest struct {
	Approve bool `json:"approve"`
}

// PaymentService handles the manual payment claim workflow: students
// submit claims, admins verify or reject them. Only verification moves
// invoice money.
type PaymentService struct {
	repo      paymentRepository
	invoices  paymentInvoiceReader
	batches   paymentBatchReader
	validator *validator.Validate
	logger    *zap.Logger
	audit     *AuditService
	metrics   *MetricsService
	now       func() time.Time
}

// NewPaymentService constructs PaymentService.
func NewPaymentService(repo paymentRepository, invoices paymentInvoiceReader, batches paymentBatchReader, validate *validator.Validate, logger *zap.Logger, audit *AuditService, metrics *MetricsService) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		repo:      repo,
		invoices:  invoices,
		batches:   batches,
		validator: validate,
		logger:    logger,
		audit:     audit,
		metrics:   metrics,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SubmitClaim records a pending payment claim. The claim must not exceed
// the invoice's remaining balance; it has no effect on the invoice until
// an admin verifies it.
func (s *PaymentService) SubmitClaim(ctx context.Context, role models.UserRole, userID string, req SubmitClaimRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid claim payload")
	}

	method := models.PaymentMethod(req.Method)
	if !method.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown payment method")
	}

	switch method {
	case models.PaymentMethodBkash, models.PaymentMethodNagad, models.PaymentMethodRocket:
		if !walletNumberPattern.MatchString(req.SenderNumber) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "sender number must be an 11 digit mobile number")
		}
	}

	invoice, err := s.invoices.FindByID(ctx, req.InvoiceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
	}

	if !CanViewInvoice(role, userID, invoice.StudentID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invoice belongs to another student")
	}

	// A fully paid invoice has zero remaining, so any claim against it
	// exceeds the balance.
	remaining := invoice.RemainingAmount()
	if remaining == 0 {
		return nil, appErrors.Clone(appErrors.ErrAmountExceedsRemaining, "invoice is already fully paid")
	}

	amount := req.Amount
	if amount == 0 {
		amount = remaining
	}
	if amount > remaining {
		return nil, appErrors.Clone(appErrors.ErrAmountExceedsRemaining, "")
	}

	payment := &models.Payment{
		InvoiceID:     invoice.ID,
		Amount:        amount,
		Method:        method,
		SenderNumber:  req.SenderNumber,
		TransactionID: req.TransactionID,
		EvidenceURL:   req.EvidenceURL,
	}

	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create payment claim")
	}

	if s.audit != nil {
		payload, _ := json.Marshal(map[string]interface{}{"invoice_id": invoice.ID, "amount": amount, "method": method})
		s.audit.Record(&models.AuditLog{
			UserID:     &userID,
			Action:     models.AuditActionClaimSubmit,
			Resource:   "payment",
			ResourceID: &payment.ID,
			NewValues:  payload,
		})
	}

	return payment, nil
}

// DecideClaim verifies or rejects a pending claim. Verification applies
// the amount to the invoice inside the repository transaction; a claim
// that would overpay is refused and stays pending.
func (s *PaymentService) DecideClaim(ctx context.Context, role models.UserRole, actorID, paymentID string, approve bool) (*models.Payment, error) {
	if err := s.authorizeDecision(ctx, role, actorID, paymentID); err != nil {
		return nil, err
	}

	var (
		payment *models.Payment
		decided bool
		err     error
	)
	if approve {
		payment, decided, err = s.repo.Verify(ctx, paymentID, actorID)
	} else {
		payment, decided, err = s.repo.Reject(ctx, paymentID, actorID)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment claim not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decide payment claim")
	}
	if !decided {
		if payment != nil && payment.Status != models.PaymentStatusPending {
			return nil, appErrors.Clone(appErrors.ErrClaimAlreadyDecided, "")
		}
		return nil, appErrors.Clone(appErrors.ErrOverpaymentRejected, "")
	}

	outcome := "rejected"
	if approve {
		outcome = "verified"
	}
	if s.metrics != nil {
		s.metrics.RecordClaimDecision(outcome)
	}
	if s.audit != nil {
		payload, _ := json.Marshal(map[string]interface{}{"outcome": outcome, "amount": payment.Amount})
		s.audit.Record(&models.AuditLog{
			UserID:     &actorID,
			Action:     models.AuditActionClaimDecide,
			Resource:   "payment",
			ResourceID: &payment.ID,
			NewValues:  payload,
		})
	}

	return payment, nil
}

// authorizeDecision checks the actor against the claim's batch: admins
// always pass, mentors only for batches they own.
func (s *PaymentService) authorizeDecision(ctx context.Context, role models.UserRole, actorID, paymentID string) error {
	if role != models.RoleAdmin && role != models.RoleMentor {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins and batch mentors can decide payment claims")
	}
	if role == models.RoleAdmin {
		return nil
	}

	payment, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "payment claim not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment claim")
	}
	invoice, err := s.invoices.FindByID(ctx, payment.InvoiceID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
	}
	batch, err := s.batches.FindByID(ctx, invoice.BatchID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	if !CanVerifyPayments(role, actorID, batch.MentorID) {
		return appErrors.Clone(appErrors.ErrForbidden, "mentor does not own this batch")
	}
	return nil
}

// List returns payment claims for the admin queue.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, *models.Pagination, error) {
	payments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payment claims")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return payments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

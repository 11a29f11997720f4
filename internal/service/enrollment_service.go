package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/moshiurrahman101/ccit-sub003/internal/models"
	appErrors "github.com/moshiurrahman101/ccit-sub003/pkg/errors"
)

type enrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindApprovedByStudentAndBatch(ctx context.Context, studentID, batchID string) (*models.Enrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	Approve(ctx context.Context, id string) (*models.Enrollment, bool, error)
	Reject(ctx context.Context, id string) (*models.Enrollment, error)
	Complete(ctx context.Context, id string) (*models.Enrollment, error)
	Drop(ctx context.Context, id string) (*models.Enrollment, error)
}

type enrollmentInvoiceReader interface {
	FindByID(ctx context.Context, id string) (*models.Invoice, error)
}

type enrollmentBatchReader interface {
	FindByID(ctx context.Context, id string) (*models.Batch, error)
}

// EnrollmentService drives the enrollment state machine. Approval is the
// only transition that consumes a seat; drop is the only one that
// releases it.
type EnrollmentService struct {
	repo     enrollmentRepository
	invoices enrollmentInvoiceReader
	batches  enrollmentBatchReader
	logger   *zap.Logger
	audit    *AuditService
	metrics  *MetricsService
	now      func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, invoices enrollmentInvoiceReader, batches enrollmentBatchReader, logger *zap.Logger, audit *AuditService, metrics *MetricsService) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:     repo,
		invoices: invoices,
		batches:  batches,
		logger:   logger,
		audit:    audit,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// List returns enrollments with the derived payment status of each
// invoice. Student callers are pinned to their own enrollments.
func (s *EnrollmentService) List(ctx context.Context, role models.UserRole, userID string, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if role == models.RoleStudent {
		filter.StudentID = userID
	}

	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}

	now := s.now()
	for i := range enrollments {
		invoice, err := s.invoices.FindByID(ctx, enrollments[i].InvoiceID)
		if err != nil {
			s.logger.Warn("failed to load invoice for enrollment", zap.String("enrollment_id", enrollments[i].ID), zap.Error(err))
			continue
		}
		enrollments[i].PaymentStatus = invoice.Status(now)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Decide approves or rejects a pending enrollment. Approval requires a
// verified payment on the invoice and reserves a seat atomically; a full
// batch refuses the approval and the enrollment stays pending.
func (s *EnrollmentService) Decide(ctx context.Context, role models.UserRole, actorID, enrollmentID string, approve bool) (*models.Enrollment, error) {
	enrollment, err := s.authorizeTransition(ctx, role, actorID, enrollmentID)
	if err != nil {
		return nil, err
	}

	if approve {
		// The money check keys on the amounts, not the derived status:
		// a partially paid invoice past its due date presents as OVERDUE
		// but still clears a verified payment. Non-pending enrollments
		// skip the gate and fail the transition guard instead.
		if enrollment.Status == models.EnrollmentStatusPending {
			invoice, err := s.invoices.FindByID(ctx, enrollment.InvoiceID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
				}
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
			}
			if invoice.PaidAmount <= 0 {
				return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "invoice has no verified payment")
			}
		}

		var full bool
		enrollment, full, err = s.repo.Approve(ctx, enrollmentID)
		if err != nil {
			return nil, s.mapTransitionError(err)
		}
		if full {
			if s.metrics != nil {
				s.metrics.RecordSeatRejection()
			}
			return nil, appErrors.Clone(appErrors.ErrBatchFull, "")
		}
	} else {
		enrollment, err = s.repo.Reject(ctx, enrollmentID)
		if err != nil {
			return nil, s.mapTransitionError(err)
		}
	}

	outcome := "rejected"
	if approve {
		outcome = "approved"
	}
	s.recordDecision(actorID, enrollment, outcome)
	return enrollment, nil
}

// Complete closes an approved enrollment as completed.
func (s *EnrollmentService) Complete(ctx context.Context, role models.UserRole, actorID, enrollmentID string) (*models.Enrollment, error) {
	if _, err := s.authorizeTransition(ctx, role, actorID, enrollmentID); err != nil {
		return nil, err
	}
	enrollment, err := s.repo.Complete(ctx, enrollmentID)
	if err != nil {
		return nil, s.mapTransitionError(err)
	}
	s.recordDecision(actorID, enrollment, "completed")
	return enrollment, nil
}

// Drop closes an approved enrollment as dropped and releases the seat.
func (s *EnrollmentService) Drop(ctx context.Context, role models.UserRole, actorID, enrollmentID string) (*models.Enrollment, error) {
	if _, err := s.authorizeTransition(ctx, role, actorID, enrollmentID); err != nil {
		return nil, err
	}
	enrollment, err := s.repo.Drop(ctx, enrollmentID)
	if err != nil {
		return nil, s.mapTransitionError(err)
	}
	s.recordDecision(actorID, enrollment, "dropped")
	return enrollment, nil
}

// authorizeTransition loads the enrollment and checks the actor against
// the batch: admins always pass, mentors only for batches they own.
func (s *EnrollmentService) authorizeTransition(ctx context.Context, role models.UserRole, actorID, enrollmentID string) (*models.Enrollment, error) {
	if role != models.RoleAdmin && role != models.RoleMentor {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins and batch mentors can decide enrollments")
	}

	enrollment, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	batch, err := s.batches.FindByID(ctx, enrollment.BatchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	if !CanApprove(role, actorID, batch.MentorID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "mentor does not own this batch")
	}
	return enrollment, nil
}

// CanAccessContent reports whether the student holds an approved
// enrollment in the batch with at least a verified partial payment.
func (s *EnrollmentService) CanAccessContent(ctx context.Context, studentID, batchID string) (bool, error) {
	enrollment, err := s.repo.FindApprovedByStudentAndBatch(ctx, studentID, batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}

	invoice, err := s.invoices.FindByID(ctx, enrollment.InvoiceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check invoice")
	}
	return invoice.PaidAmount > 0, nil
}

func (s *EnrollmentService) mapTransitionError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	// Repository transition guards surface as plain errors.
	return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "enrollment transition not allowed")
}

func (s *EnrollmentService) recordDecision(actorID string, enrollment *models.Enrollment, outcome string) {
	if s.audit == nil || enrollment == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{"outcome": outcome, "batch_id": enrollment.BatchID})
	s.audit.Record(&models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionEnrollmentDecide,
		Resource:   "enrollment",
		ResourceID: &enrollment.ID,
		NewValues:  payload,
	})
}

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

type batchRepository interface {
	List(ctx context.Context, filter models.BatchFilter) ([]models.BatchDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Batch, error)
	Create(ctx context.Context, batch *models.Batch) error
	Update(ctx context.Context, batch *models.Batch) error
	UpdateStatus(ctx context.Context, id string, status models.BatchStatus) error
}

type batchCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type quoteInvalidator interface {
	InvalidateQuotes(ctx context.Context, batchID string)
}

// CreateBatchRequest describes a new batch offering.
type CreateBatchRequest struct {
	CourseID      string     `json:"course_id" validate:"required"`
	Name          string     `json:"name" validate:"required,min=2,max=160"`
	MentorID      *string    `json:"mentor_id"`
	RegularPrice  *int64     `json:"regular_price" validate:"omitempty,gt=0"`
	DiscountPrice *int64     `json:"discount_price" validate:"omitempty,gt=0"`
	MaxStudents   int        `json:"max_students" validate:"omitempty,gt=0"`
	StartDate     *time.Time `json:"start_date"`
	EndDate       *time.Time `json:"end_date"`
}

// UpdateBatchRequest describes mutable batch fields. The seat counter is
// not among them.
type UpdateBatchRequest struct {
	Name          *string    `json:"name" validate:"omitempty,min=2,max=160"`
	MentorID      *string    `json:"mentor_id"`
	RegularPrice  *int64     `json:"regular_price" validate:"omitempty,gt=0"`
	DiscountPrice *int64     `json:"discount_price" validate:"omitempty,gt=0"`
	MaxStudents   *int       `json:"max_students" validate:"omitempty,gt=0"`
	StartDate     *time.Time `json:"start_date"`
	EndDate       *time.Time `json:"end_date"`
}

// BatchService manages batch offerings and their lifecycle.
type BatchService struct {
	repo      batchRepository
	courses   batchCourseReader
	pricing   quoteInvalidator
	validator *validator.Validate
	logger    *zap.Logger
	audit     *AuditService
}

// NewBatchService constructs BatchService.
func NewBatchService(repo batchRepository, courses batchCourseReader, pricing quoteInvalidator, validate *validator.Validate, logger *zap.Logger, audit *AuditService) *BatchService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchService{repo: repo, courses: courses, pricing: pricing, validator: validate, logger: logger, audit: audit}
}

// List returns batches with pagination metadata.
func (s *BatchService) List(ctx context.Context, filter models.BatchFilter) ([]models.BatchDetail, *models.Pagination, error) {
	batches, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list batches")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return batches, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a batch by ID.
func (s *BatchService) Get(ctx context.Context, id string) (*models.Batch, error) {
	batch, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	return batch, nil
}

// Create schedules a new batch of a course. Capacity defaults to the
// course's default when not provided.
func (s *BatchService) Create(ctx context.Context, actorID string, req CreateBatchRequest) (*models.Batch, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	maxStudents := req.MaxStudents
	if maxStudents <= 0 {
		maxStudents = course.DefaultCapacity
	}
	if err := validatePriceOverride(req.RegularPrice, req.DiscountPrice); err != nil {
		return nil, err
	}

	batch := &models.Batch{
		CourseID:      course.ID,
		Name:          req.Name,
		MentorID:      req.MentorID,
		RegularPrice:  req.RegularPrice,
		DiscountPrice: req.DiscountPrice,
		MaxStudents:   maxStudents,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
	}

	if err := s.repo.Create(ctx, batch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create batch")
	}

	s.recordMutation(actorID, batch.ID, "batch created")
	return batch, nil
}

// Update mutates an existing batch and drops any cached price quotes.
func (s *BatchService) Update(ctx context.Context, actorID, id string, req UpdateBatchRequest) (*models.Batch, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}

	batch, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}

	if req.Name != nil {
		batch.Name = *req.Name
	}
	if req.MentorID != nil {
		batch.MentorID = req.MentorID
	}
	if req.RegularPrice != nil {
		batch.RegularPrice = req.RegularPrice
	}
	if req.DiscountPrice != nil {
		batch.DiscountPrice = req.DiscountPrice
	}
	if req.MaxStudents != nil {
		if *req.MaxStudents < batch.CurrentStudents {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "capacity cannot drop below the current student count")
		}
		batch.MaxStudents = *req.MaxStudents
	}
	if req.StartDate != nil {
		batch.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		batch.EndDate = req.EndDate
	}
	if err := validatePriceOverride(batch.RegularPrice, batch.DiscountPrice); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, batch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update batch")
	}

	if s.pricing != nil {
		s.pricing.InvalidateQuotes(ctx, batch.ID)
	}
	s.recordMutation(actorID, batch.ID, "batch updated")
	return batch, nil
}

// UpdateStatus moves a batch to a new lifecycle status.
func (s *BatchService) UpdateStatus(ctx context.Context, actorID, id string, status models.BatchStatus) (*models.Batch, error) {
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown batch status")
	}

	batch, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update batch status")
	}

	batch.Status = status
	s.recordMutation(actorID, batch.ID, "batch status "+string(status))
	return batch, nil
}

func validatePriceOverride(regular, discount *int64) error {
	if discount == nil {
		return nil
	}
	if regular != nil && *discount >= *regular {
		return appErrors.Clone(appErrors.ErrValidation, "discount price must be below the regular price")
	}
	return nil
}

func (s *BatchService) recordMutation(actorID, batchID, change string) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{"change": change})
	s.audit.Record(&models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionCatalogMutate,
		Resource:   "batch",
		ResourceID: &batchID,
		NewValues:  payload,
	})
}

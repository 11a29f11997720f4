package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/moshiurrahman101/ccit-sub003/internal/models"
	appErrors "github.com/moshiurrahman101/ccit-sub003/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
}

// CreateCourseRequest describes a new catalog course.
type CreateCourseRequest struct {
	Title           string `json:"title" validate:"required,min=3,max=160"`
	Category        string `json:"category" validate:"required"`
	Description     string `json:"description"`
	RegularPrice    int64  `json:"regular_price" validate:"required,gt=0"`
	DiscountPrice   *int64 `json:"discount_price" validate:"omitempty,gt=0"`
	DefaultCapacity int    `json:"default_capacity" validate:"required,gt=0"`
}

// UpdateCourseRequest describes mutable course fields.
type UpdateCourseRequest struct {
	Title           *string `json:"title" validate:"omitempty,min=3,max=160"`
	Category        *string `json:"category"`
	Description     *string `json:"description"`
	RegularPrice    *int64  `json:"regular_price" validate:"omitempty,gt=0"`
	DiscountPrice   *int64  `json:"discount_price" validate:"omitempty,gt=0"`
	DefaultCapacity *int    `json:"default_capacity" validate:"omitempty,gt=0"`
	Active          *bool   `json:"active"`
}

// CourseService manages the course catalog.
type CourseService struct {
	repo      courseRepository
	validator *validator.Validate
	logger    *zap.Logger
	audit     *AuditService
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, validate *validator.Validate, logger *zap.Logger, audit *AuditService) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, validator: validate, logger: logger, audit: audit}
}

// List returns courses with pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a course by ID.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Create adds a course to the catalog.
func (s *CourseService) Create(ctx context.Context, actorID string, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if req.DiscountPrice != nil && *req.DiscountPrice >= req.RegularPrice {
		return nil, appErrors.Clone(appErrors.ErrValidation, "discount price must be below the regular price")
	}

	course := &models.Course{
		Title:           req.Title,
		Category:        req.Category,
		Description:     req.Description,
		RegularPrice:    req.RegularPrice,
		DiscountPrice:   req.DiscountPrice,
		DefaultCapacity: req.DefaultCapacity,
		Active:          true,
	}

	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	s.recordMutation(actorID, course.ID, "course created")
	return course, nil
}

// Update mutates an existing course. Price changes never touch issued
// invoices; their breakdowns are frozen at creation.
func (s *CourseService) Update(ctx context.Context, actorID, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	if req.Title != nil {
		course.Title = *req.Title
	}
	if req.Category != nil {
		course.Category = *req.Category
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if req.RegularPrice != nil {
		course.RegularPrice = *req.RegularPrice
	}
	if req.DiscountPrice != nil {
		course.DiscountPrice = req.DiscountPrice
	}
	if req.DefaultCapacity != nil {
		course.DefaultCapacity = *req.DefaultCapacity
	}
	if req.Active != nil {
		course.Active = *req.Active
	}

	if course.DiscountPrice != nil && *course.DiscountPrice >= course.RegularPrice {
		return nil, appErrors.Clone(appErrors.ErrValidation, "discount price must be below the regular price")
	}

	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	s.recordMutation(actorID, course.ID, "course updated")
	return course, nil
}

func (s *CourseService) recordMutation(actorID, courseID, change string) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{"change": change})
	s.audit.Record(&models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionCatalogMutate,
		Resource:   "course",
		ResourceID: &courseID,
		NewValues:  payload,
	})
}

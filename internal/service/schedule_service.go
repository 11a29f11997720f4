package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/moshiurrahman101/ccit-sub003/internal/models"
	appErrors "github.com/moshiurrahman101/ccit-sub003/pkg/errors"
)

type scheduleRepository interface {
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
	ListByBatch(ctx context.Context, batchID string) ([]models.Schedule, error)
	Create(ctx context.Context, schedule *models.Schedule) error
	Update(ctx context.Context, schedule *models.Schedule) error
	Delete(ctx context.Context, id string) error
}

type scheduleBatchReader interface {
	FindByID(ctx context.Context, id string) (*models.Batch, error)
}

// CreateScheduleRequest describes a new class session.
type CreateScheduleRequest struct {
	BatchID     string    `json:"batch_id" validate:"required"`
	Title       string    `json:"title" validate:"required,min=2,max=160"`
	ClassDate   time.Time `json:"class_date" validate:"required"`
	StartTime   string    `json:"start_time" validate:"required"`
	EndTime     string    `json:"end_time" validate:"required"`
	Location    *string   `json:"location"`
	MeetingLink *string   `json:"meeting_link" validate:"omitempty,url"`
}

// UpdateScheduleRequest describes mutable session fields.
type UpdateScheduleRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=2,max=160"`
	ClassDate   *time.Time `json:"class_date"`
	StartTime   *string    `json:"start_time"`
	EndTime     *string    `json:"end_time"`
	Location    *string    `json:"location"`
	MeetingLink *string    `json:"meeting_link" validate:"omitempty,url"`
}

// ScheduleService manages class sessions of batches.
type ScheduleService struct {
	repo      scheduleRepository
	batches   scheduleBatchReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService constructs ScheduleService.
func NewScheduleService(repo scheduleRepository, batches scheduleBatchReader, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{repo: repo, batches: batches, validator: validate, logger: logger}
}

// ListByBatch returns the sessions of a batch.
func (s *ScheduleService) ListByBatch(ctx context.Context, batchID string) ([]models.Schedule, error) {
	if _, err := s.batches.FindByID(ctx, batchID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	schedules, err := s.repo.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	return schedules, nil
}

// Create adds a session to a batch.
func (s *ScheduleService) Create(ctx context.Context, req CreateScheduleRequest) (*models.Schedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}

	if _, err := s.batches.FindByID(ctx, req.BatchID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}

	schedule := &models.Schedule{
		BatchID:     req.BatchID,
		Title:       req.Title,
		ClassDate:   req.ClassDate,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Location:    req.Location,
		MeetingLink: req.MeetingLink,
	}

	if err := s.repo.Create(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule")
	}
	return schedule, nil
}

// Update mutates an existing session.
func (s *ScheduleService) Update(ctx context.Context, id string, req UpdateScheduleRequest) (*models.Schedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}

	schedule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}

	if req.Title != nil {
		schedule.Title = *req.Title
	}
	if req.ClassDate != nil {
		schedule.ClassDate = *req.ClassDate
	}
	if req.StartTime != nil {
		schedule.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		schedule.EndTime = *req.EndTime
	}
	if req.Location != nil {
		schedule.Location = req.Location
	}
	if req.MeetingLink != nil {
		schedule.MeetingLink = req.MeetingLink
	}

	if err := s.repo.Update(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schedule")
	}
	return schedule, nil
}

// Delete removes a session.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule")
	}
	return nil
}

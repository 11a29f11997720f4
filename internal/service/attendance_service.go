package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/moshiurrahman101/ccit-sub003/internal/models"
	appErrors "github.com/moshiurrahman101/ccit-sub003/pkg/errors"
	"github.com/moshiurrahman101/ccit-sub003/pkg/export"
)

type attendanceRepository interface {
	Upsert(ctx context.Context, record *models.AttendanceRecord) error
	ListByBatchStudent(ctx context.Context, batchID, studentID string) ([]models.AttendanceRecord, error)
	ListForBatch(ctx context.Context, batchID string) ([]models.AttendanceRecord, error)
	Counts(ctx context.Context, batchID, studentID string) (*models.AttendanceCounts, error)
	CountDistinctDates(ctx context.Context, batchID string) (int, error)
}

type scheduleCounter interface {
	CountForBatchUpTo(ctx context.Context, batchID string, cutoff time.Time) (int, error)
}

type contentAccessChecker interface {
	CanAccessContent(ctx context.Context, studentID, batchID string) (bool, error)
}

type attendanceBatchReader interface {
	FindByID(ctx context.Context, id string) (*models.Batch, error)
}

// MarkAttendanceRequest records one student's presence for a class date.
type MarkAttendanceRequest struct {
	BatchID     string     `json:"batch_id" validate:"required"`
	StudentID   string     `json:"student_id" validate:"required"`
	ScheduleID  *string    `json:"schedule_id"`
	ClassDate   time.Time  `json:"class_date" validate:"required"`
	Status      string     `json:"status" validate:"required"`
	CheckInTime *time.Time `json:"check_in_time"`
	Notes       *string    `json:"notes"`
}

// AttendanceService records presence and derives per-student statistics.
// The class denominator comes from the batch schedule; batches without a
// schedule fall back to the distinct recorded class dates.
type AttendanceService struct {
	repo        attendanceRepository
	schedules   scheduleCounter
	enrollments contentAccessChecker
	batches     attendanceBatchReader
	cache       *CacheService
	cacheTTL    time.Duration
	validator   *validator.Validate
	logger      *zap.Logger
	audit       *AuditService
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	now         func() time.Time
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(repo attendanceRepository, schedules scheduleCounter, enrollments contentAccessChecker, batches attendanceBatchReader, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger, audit *AuditService) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		repo:        repo,
		schedules:   schedules,
		enrollments: enrollments,
		batches:     batches,
		cache:       cache,
		cacheTTL:    cacheTTL,
		validator:   validate,
		logger:      logger,
		audit:       audit,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Mark writes an attendance record. A rewrite for the same batch, student
// and class date overwrites the earlier status. Only students with an
// approved enrollment in the batch can be marked.
func (s *AttendanceService) Mark(ctx context.Context, role models.UserRole, markerID string, req MarkAttendanceRequest) (*models.AttendanceRecord, error) {
	if role != models.RoleAdmin && role != models.RoleMentor {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins and batch mentors can mark attendance")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	batch, err := s.batches.FindByID(ctx, req.BatchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	if !CanMarkAttendance(role, markerID, batch.MentorID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "mentor does not own this batch")
	}

	status := models.AttendanceStatus(req.Status)
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown attendance status")
	}

	enrolled, err := s.enrollments.CanAccessContent(ctx, req.StudentID, req.BatchID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrNotEnrolled, "")
	}

	record := &models.AttendanceRecord{
		BatchID:     req.BatchID,
		StudentID:   req.StudentID,
		ScheduleID:  req.ScheduleID,
		ClassDate:   classDay(req.ClassDate),
		Status:      status,
		CheckInTime: req.CheckInTime,
		Notes:       req.Notes,
		MarkedBy:    markerID,
	}

	if err := s.repo.Upsert(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}

	if err := s.cache.Invalidate(ctx, s.statsKey(req.BatchID, "*")); err != nil {
		s.logger.Warn("failed to invalidate attendance stats cache", zap.String("batch_id", req.BatchID), zap.Error(err))
	}

	if s.audit != nil {
		payload, _ := json.Marshal(map[string]string{"student_id": req.StudentID, "status": string(status), "class_date": record.ClassDate.Format("2006-01-02")})
		s.audit.Record(&models.AuditLog{
			UserID:     &markerID,
			Action:     models.AuditActionAttendanceMark,
			Resource:   "attendance",
			ResourceID: &record.ID,
			NewValues:  payload,
		})
	}

	return record, nil
}

// ListForStudent returns a student's attendance history in a batch.
func (s *AttendanceService) ListForStudent(ctx context.Context, batchID, studentID string) ([]models.AttendanceRecord, error) {
	records, err := s.repo.ListByBatchStudent(ctx, batchID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, nil
}

// Statistics aggregates a student's attendance in a batch at read time.
// The percentage is computed against the scheduled classes held so far.
func (s *AttendanceService) Statistics(ctx context.Context, batchID, studentID string) (*models.AttendanceStatistics, error) {
	cacheKey := s.statsKey(batchID, studentID)
	var cached models.AttendanceStatistics
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	counts, err := s.repo.Counts(ctx, batchID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate attendance")
	}

	totalClasses, err := s.schedules.CountForBatchUpTo(ctx, batchID, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count classes")
	}
	if totalClasses == 0 {
		totalClasses, err = s.repo.CountDistinctDates(ctx, batchID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count class dates")
		}
	}

	stats := &models.AttendanceStatistics{
		BatchID:      batchID,
		StudentID:    studentID,
		TotalClasses: totalClasses,
		Counts:       *counts,
		Percentage:   models.AttendancePercentage(counts.Present, totalClasses),
	}

	if err := s.cache.Set(ctx, cacheKey, stats, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache attendance stats", zap.String("batch_id", batchID), zap.Error(err))
	}
	return stats, nil
}

// Export renders the batch attendance sheet as CSV or PDF.
func (s *AttendanceService) Export(ctx context.Context, batchID, format string) ([]byte, string, error) {
	records, err := s.repo.ListForBatch(ctx, batchID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch attendance")
	}

	sheet := export.Sheet{
		Title:   fmt.Sprintf("Attendance %s", batchID),
		Columns: []string{"Class Date", "Student ID", "Status", "Check In", "Marked By"},
	}
	for _, record := range records {
		checkIn := ""
		if record.CheckInTime != nil {
			checkIn = record.CheckInTime.Format("15:04")
		}
		sheet.Rows = append(sheet.Rows, []string{
			record.ClassDate.Format("2006-01-02"),
			record.StudentID,
			string(record.Status),
			checkIn,
			record.MarkedBy,
		})
	}

	switch format {
	case "csv", "":
		payload, err := s.csv.Render(sheet)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := s.pdf.Render(sheet)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

func (s *AttendanceService) statsKey(batchID, studentID string) string {
	return fmt.Sprintf("attendance:stats:%s:%s", batchID, studentID)
}

// classDay pins the record to the calendar day of the instant in UTC.
// Truncating by 24h would cut at epoch-relative boundaries and shift
// instants carrying a non-UTC offset onto the wrong day.
func classDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

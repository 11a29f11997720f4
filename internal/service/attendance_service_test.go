package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moshiurrahman101/ccit-sub003/internal/models"
	appErrors "github.com/moshiurrahman101/ccit-sub003/pkg/errors"
)

type mockAttendanceRepo struct {
	upserted      []*models.AttendanceRecord
	records       []models.AttendanceRecord
	counts        models.AttendanceCounts
	distinctDates int
}

func (m *mockAttendanceRepo) Upsert(ctx context.Context, record *models.AttendanceRecord) error {
	record.ID = "att-1"
	m.upserted = append(m.upserted, record)
	return nil
}

func (m *mockAttendanceRepo) ListByBatchStudent(ctx context.Context, batchID, studentID string) ([]models.AttendanceRecord, error) {
	return m.records, nil
}

func (m *mockAttendanceRepo) ListForBatch(ctx context.Context, batchID string) ([]models.AttendanceRecord, error) {
	return m.records, nil
}

func (m *mockAttendanceRepo) Counts(ctx context.Context, batchID, studentID string) (*models.AttendanceCounts, error) {
	cp := m.counts
	return &cp, nil
}

func (m *mockAttendanceRepo) CountDistinctDates(ctx context.Context, batchID string) (int, error) {
	return m.distinctDates, nil
}

type scheduleCounterStub struct {
	count int
}

func (s *scheduleCounterStub) CountForBatchUpTo(ctx context.Context, batchID string, cutoff time.Time) (int, error) {
	return s.count, nil
}

type accessCheckerStub struct {
	allowed map[string]bool
}

func (s *accessCheckerStub) CanAccessContent(ctx context.Context, studentID, batchID string) (bool, error) {
	return s.allowed[studentID+"/"+batchID], nil
}

func newAttendanceFixture(repo *mockAttendanceRepo, schedules *scheduleCounterStub, access *accessCheckerStub) *AttendanceService {
	svc := NewAttendanceService(repo, schedules, access, enrollmentBatches(), nil, time.Minute, nil, nil, nil)
	svc.now = fixedNow
	return svc
}

func markRequest() MarkAttendanceRequest {
	return MarkAttendanceRequest{
		BatchID:   "b1",
		StudentID: "student-1",
		ClassDate: time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC),
		Status:    "PRESENT",
	}
}

func TestAttendanceServiceMark(t *testing.T) {
	repo := &mockAttendanceRepo{}
	access := &accessCheckerStub{allowed: map[string]bool{"student-1/b1": true}}
	svc := newAttendanceFixture(repo, &scheduleCounterStub{}, access)

	record, err := svc.Mark(context.Background(), models.RoleMentor, "mentor-1", markRequest())
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusPresent, record.Status)
	assert.Equal(t, "mentor-1", record.MarkedBy)
	// The class date is stored day-granular.
	assert.Equal(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), record.ClassDate)
	assert.Len(t, repo.upserted, 1)
}

func TestAttendanceServiceMarkNotEnrolled(t *testing.T) {
	svc := newAttendanceFixture(&mockAttendanceRepo{}, &scheduleCounterStub{}, &accessCheckerStub{})

	_, err := svc.Mark(context.Background(), models.RoleAdmin, "admin-1", markRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotEnrolled.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceMarkForbiddenForStudents(t *testing.T) {
	svc := newAttendanceFixture(&mockAttendanceRepo{}, &scheduleCounterStub{}, &accessCheckerStub{})

	_, err := svc.Mark(context.Background(), models.RoleStudent, "student-1", markRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceMarkMentorOwnership(t *testing.T) {
	// Only the batch mentor may mark its attendance.
	access := &accessCheckerStub{allowed: map[string]bool{"student-1/b1": true}}
	repo := &mockAttendanceRepo{}
	svc := newAttendanceFixture(repo, &scheduleCounterStub{}, access)

	_, err := svc.Mark(context.Background(), models.RoleMentor, "mentor-2", markRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.upserted)
}

func TestAttendanceServiceMarkNormalizesOffsetDates(t *testing.T) {
	// An instant sent with a zone offset lands on its UTC calendar day.
	dhaka := time.FixedZone("BST", 6*60*60)
	repo := &mockAttendanceRepo{}
	access := &accessCheckerStub{allowed: map[string]bool{"student-1/b1": true}}
	svc := newAttendanceFixture(repo, &scheduleCounterStub{}, access)

	req := markRequest()
	req.ClassDate = time.Date(2025, 6, 10, 4, 30, 0, 0, dhaka)
	record, err := svc.Mark(context.Background(), models.RoleAdmin, "admin-1", req)
	require.NoError(t, err)
	// 04:30 +06:00 is 22:30 UTC the day before.
	assert.Equal(t, time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC), record.ClassDate)
}

func TestAttendanceServiceMarkUnknownStatus(t *testing.T) {
	access := &accessCheckerStub{allowed: map[string]bool{"student-1/b1": true}}
	svc := newAttendanceFixture(&mockAttendanceRepo{}, &scheduleCounterStub{}, access)

	req := markRequest()
	req.Status = "SLEEPING"
	_, err := svc.Mark(context.Background(), models.RoleAdmin, "admin-1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceStatistics(t *testing.T) {
	repo := &mockAttendanceRepo{counts: models.AttendanceCounts{Recorded: 9, Present: 8, Absent: 1}}
	svc := newAttendanceFixture(repo, &scheduleCounterStub{count: 10}, &accessCheckerStub{})

	stats, err := svc.Statistics(context.Background(), "b1", "student-1")
	require.NoError(t, err)
	assert.Equal(t, 10, stats.TotalClasses)
	assert.Equal(t, 8, stats.Counts.Present)
	assert.Equal(t, 80, stats.Percentage)
}

func TestAttendanceServiceStatisticsFallbackDenominator(t *testing.T) {
	// No schedule rows: the denominator falls back to the distinct
	// recorded class dates.
	repo := &mockAttendanceRepo{counts: models.AttendanceCounts{Recorded: 4, Present: 3}, distinctDates: 4}
	svc := newAttendanceFixture(repo, &scheduleCounterStub{count: 0}, &accessCheckerStub{})

	stats, err := svc.Statistics(context.Background(), "b1", "student-1")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalClasses)
	assert.Equal(t, 75, stats.Percentage)
}

func TestAttendanceServiceExportCSV(t *testing.T) {
	checkIn := time.Date(2025, 6, 10, 9, 5, 0, 0, time.UTC)
	repo := &mockAttendanceRepo{records: []models.AttendanceRecord{
		{
			BatchID:     "b1",
			StudentID:   "student-1",
			ClassDate:   time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
			Status:      models.AttendanceStatusPresent,
			CheckInTime: &checkIn,
			MarkedBy:    "mentor-1",
		},
	}}
	svc := newAttendanceFixture(repo, &scheduleCounterStub{}, &accessCheckerStub{})

	payload, contentType, err := svc.Export(context.Background(), "b1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)

	body := string(payload)
	assert.True(t, strings.Contains(body, "Class Date"))
	assert.True(t, strings.Contains(body, "2025-06-10"))
	assert.True(t, strings.Contains(body, "PRESENT"))
	assert.True(t, strings.Contains(body, "09:05"))
}

func TestAttendanceServiceExportUnknownFormat(t *testing.T) {
	svc := newAttendanceFixture(&mockAttendanceRepo{}, &scheduleCounterStub{}, &accessCheckerStub{})

	_, _, err := svc.Export(context.Background(), "b1", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

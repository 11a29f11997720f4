package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moshiurrahman101/ccit-sub003/internal/models"
)

func newAttendanceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAttendanceRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendance")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	record := &models.AttendanceRecord{
		BatchID:   "b1",
		StudentID: "student-1",
		ClassDate: time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		Status:    models.AttendanceStatusPresent,
		MarkedBy:  "mentor-1",
	}
	require.NoError(t, repo.Upsert(context.Background(), record))
	assert.NotEmpty(t, record.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryCounts(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"recorded", "present", "absent", "late", "excused"}).
		AddRow(10, 7, 1, 2, 0)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) AS recorded")).
		WithArgs("b1", "student-1").
		WillReturnRows(rows)

	counts, err := repo.Counts(context.Background(), "b1", "student-1")
	require.NoError(t, err)
	assert.Equal(t, 10, counts.Recorded)
	assert.Equal(t, 7, counts.Present)
	assert.Equal(t, 2, counts.Late)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryCountDistinctDates(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT class_date) FROM attendance")).
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountDistinctDates(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListByBatchStudent(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "batch_id", "student_id", "schedule_id", "class_date", "status",
		"check_in_time", "notes", "marked_by", "created_at", "updated_at"}).
		AddRow("att-1", "b1", "student-1", nil, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), "PRESENT", nil, nil, "mentor-1", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance WHERE batch_id = $1 AND student_id = $2 ORDER BY class_date ASC")).
		WithArgs("b1", "student-1").
		WillReturnRows(rows)

	records, err := repo.ListByBatchStudent(context.Background(), "b1", "student-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.AttendanceStatusPresent, records[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

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

func newScheduleRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestScheduleRepositoryListByBatch(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	rows := sqlmock.NewRows([]string{"id", "batch_id", "title", "class_date", "start_time", "end_time",
		"location", "meeting_link", "created_at", "updated_at"}).
		AddRow("sch-1", "b1", "Session 1", time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), "09:00", "11:00", nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM schedules WHERE batch_id = $1 ORDER BY class_date ASC")).
		WithArgs("b1").
		WillReturnRows(rows)

	schedules, err := repo.ListByBatch(context.Background(), "b1")
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, "09:00", schedules[0].StartTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryCountForBatchUpTo(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	cutoff := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM schedules WHERE batch_id = $1 AND class_date <= $2")).
		WithArgs("b1", cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(10))

	count, err := repo.CountForBatchUpTo(context.Background(), "b1", cutoff)
	require.NoError(t, err)
	assert.Equal(t, 10, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryCreateAndDelete(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedules")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	schedule := &models.Schedule{
		BatchID:   "b1",
		Title:     "Session 1",
		ClassDate: time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		StartTime: "09:00",
		EndTime:   "11:00",
	}
	require.NoError(t, repo.Create(context.Background(), schedule))
	assert.NotEmpty(t, schedule.ID)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schedules WHERE id = $1")).
		WithArgs("sch-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "sch-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

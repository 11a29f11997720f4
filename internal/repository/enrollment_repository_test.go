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

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func enrollmentRow(id, batchID string, status models.EnrollmentStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "student_id", "batch_id", "invoice_id", "status", "progress",
		"enrollment_date", "approved_at", "closed_at", "created_at", "updated_at"}).
		AddRow(id, "student-1", batchID, "inv-1", string(status), 0, now, nil, nil, now, now)
}

func TestEnrollmentRepositoryApprove(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE id = $1 FOR UPDATE")).
		WithArgs("enr-1").
		WillReturnRows(enrollmentRow("enr-1", "b1", models.EnrollmentStatusPending))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE batches SET current_students = current_students + 1")).
		WithArgs("b1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, approved_at = $3")).
		WithArgs("enr-1", "APPROVED", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	enrollment, full, err := repo.Approve(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.False(t, full)
	assert.Equal(t, models.EnrollmentStatusApproved, enrollment.Status)
	assert.NotNil(t, enrollment.ApprovedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryApproveFullBatchRollsBack(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	// Seat reservation fails twice; the enrollment stays pending and the
	// transaction rolls back.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE id = $1 FOR UPDATE")).
		WithArgs("enr-1").
		WillReturnRows(enrollmentRow("enr-1", "b1", models.EnrollmentStatusPending))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE batches SET current_students = current_students + 1")).
		WithArgs("b1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE batches SET current_students = current_students + 1")).
		WithArgs("b1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	enrollment, full, err := repo.Approve(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.True(t, full)
	assert.Equal(t, models.EnrollmentStatusPending, enrollment.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryApproveNonPending(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE id = $1 FOR UPDATE")).
		WithArgs("enr-1").
		WillReturnRows(enrollmentRow("enr-1", "b1", models.EnrollmentStatusRejected))
	mock.ExpectRollback()

	_, _, err := repo.Approve(context.Background(), "enr-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not pending")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryDropReleasesSeat(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE id = $1 FOR UPDATE")).
		WithArgs("enr-1").
		WillReturnRows(enrollmentRow("enr-1", "b1", models.EnrollmentStatusApproved))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, closed_at = $3")).
		WithArgs("enr-1", "DROPPED", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE batches SET current_students = current_students - 1")).
		WithArgs("b1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	enrollment, err := repo.Drop(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusDropped, enrollment.Status)
	assert.NotNil(t, enrollment.ClosedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCompleteKeepsSeat(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE id = $1 FOR UPDATE")).
		WithArgs("enr-1").
		WillReturnRows(enrollmentRow("enr-1", "b1", models.EnrollmentStatusApproved))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, closed_at = $3")).
		WithArgs("enr-1", "COMPLETED", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	enrollment, err := repo.Complete(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCompleted, enrollment.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindApprovedByStudentAndBatch(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE student_id = $1 AND batch_id = $2 AND status = $3")).
		WithArgs("student-1", "b1", "APPROVED").
		WillReturnRows(enrollmentRow("enr-1", "b1", models.EnrollmentStatusApproved))

	enrollment, err := repo.FindApprovedByStudentAndBatch(context.Background(), "student-1", "b1")
	require.NoError(t, err)
	assert.Equal(t, "enr-1", enrollment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

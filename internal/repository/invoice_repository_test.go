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

func newInvoiceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestInvoiceRepositoryCreateWithEnrollment(t *testing.T) {
	db, mock, cleanup := newInvoiceRepoMock(t)
	defer cleanup()
	repo := NewInvoiceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO invoices")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	invoice := &models.Invoice{
		StudentID:   "student-1",
		BatchID:     "b1",
		Amount:      10000,
		FinalAmount: 8000,
		DueDate:     time.Now().AddDate(0, 0, 7),
	}
	enrollment := &models.Enrollment{StudentID: "student-1", BatchID: "b1"}
	ok, err := repo.CreateWithEnrollment(context.Background(), invoice, enrollment, "")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.NotEmpty(t, invoice.ID)
	assert.Equal(t, invoice.ID, enrollment.InvoiceID)
	assert.Equal(t, models.EnrollmentStatusPending, enrollment.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepositoryCreateWithEnrollmentConsumesCouponInTx(t *testing.T) {
	db, mock, cleanup := newInvoiceRepoMock(t)
	defer cleanup()
	repo := NewInvoiceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE coupons SET used_count = used_count + 1")).
		WithArgs("eid2025").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO invoices")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	invoice := &models.Invoice{StudentID: "student-1", BatchID: "b1", FinalAmount: 7200}
	enrollment := &models.Enrollment{StudentID: "student-1", BatchID: "b1"}
	ok, err := repo.CreateWithEnrollment(context.Background(), invoice, enrollment, "eid2025")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepositoryCreateWithEnrollmentCouponExhausted(t *testing.T) {
	db, mock, cleanup := newInvoiceRepoMock(t)
	defer cleanup()
	repo := NewInvoiceRepository(db)

	// The guarded increment matches no row at the usage limit: the whole
	// transaction rolls back before any insert.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE coupons SET used_count = used_count + 1")).
		WithArgs("eid2025").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	invoice := &models.Invoice{StudentID: "student-1", BatchID: "b1", FinalAmount: 7200}
	enrollment := &models.Enrollment{StudentID: "student-1", BatchID: "b1"}
	ok, err := repo.CreateWithEnrollment(context.Background(), invoice, enrollment, "eid2025")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepositoryCreateWithEnrollmentRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newInvoiceRepoMock(t)
	defer cleanup()
	repo := NewInvoiceRepository(db)

	// A failed insert after the coupon increment rolls everything back,
	// including the consumed use.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE coupons SET used_count = used_count + 1")).
		WithArgs("eid2025").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO invoices")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	invoice := &models.Invoice{StudentID: "student-1", BatchID: "b1", FinalAmount: 8000}
	enrollment := &models.Enrollment{StudentID: "student-1", BatchID: "b1"}
	_, err := repo.CreateWithEnrollment(context.Background(), invoice, enrollment, "eid2025")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepositoryExistsOpenForStudentAndBatch(t *testing.T) {
	db, mock, cleanup := newInvoiceRepoMock(t)
	defer cleanup()
	repo := NewInvoiceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE student_id = $1 AND batch_id = $2")).
		WithArgs("student-1", "b1", "PENDING", "APPROVED").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := repo.ExistsOpenForStudentAndBatch(context.Background(), "student-1", "b1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newInvoiceRepoMock(t)
	defer cleanup()
	repo := NewInvoiceRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "batch_id", "amount", "discount_amount", "promo_discount",
		"final_amount", "paid_amount", "coupon_code", "due_date", "created_at", "updated_at"}).
		AddRow("inv-1", "student-1", "b1", 10000, 2000, 800, 7200, 3000, "eid2025", time.Now().AddDate(0, 0, 7), time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM invoices WHERE id = $1")).
		WithArgs("inv-1").
		WillReturnRows(rows)

	invoice, err := repo.FindByID(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4200), invoice.RemainingAmount())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepositoryListFiltersDerivedStatus(t *testing.T) {
	db, mock, cleanup := newInvoiceRepoMock(t)
	defer cleanup()
	repo := NewInvoiceRepository(db)

	// The OVERDUE filter matches against the CASE expression; no stored
	// status column is ever queried.
	rows := sqlmock.NewRows([]string{"id", "student_id", "batch_id", "amount", "discount_amount", "promo_discount",
		"final_amount", "paid_amount", "coupon_code", "due_date", "created_at", "updated_at"}).
		AddRow("inv-1", "student-1", "b1", 10000, 0, 0, 10000, 3000, nil, time.Now().AddDate(0, 0, -3), time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHEN due_date < NOW() THEN 'OVERDUE'")).
		WithArgs("student-1", "OVERDUE").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM invoices")).
		WithArgs("student-1", "OVERDUE").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.InvoiceFilter{
		StudentID: "student-1",
		Status:    models.InvoiceStatusOverdue,
	})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

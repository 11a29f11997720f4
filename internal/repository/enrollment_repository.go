package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/moshiurrahman101/ccit-sub003/internal/models"
)

// EnrollmentRepository handles persistence of enrollments and the
// transitions that move the batch seat counter.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, student_id, batch_id, invoice_id, status, progress, enrollment_date, approved_at, closed_at, created_at, updated_at`

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindApprovedByStudentAndBatch returns the student's approved enrollment
// in the batch, or sql.ErrNoRows.
func (r *EnrollmentRepository) FindApprovedByStudentAndBatch(ctx context.Context, studentID, batchID string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE student_id = $1 AND batch_id = $2 AND status = $3 LIMIT 1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, batchID, models.EnrollmentStatusApproved); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// List returns enrollments enriched with student and batch names.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
JOIN users s ON s.id = e.student_id
JOIN batches b ON b.id = e.batch_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.BatchID != "" {
		conditions = append(conditions, fmt.Sprintf("e.batch_id = $%d", len(args)+1))
		args = append(args, filter.BatchID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrollment_date": "e.enrollment_date",
		"status":          "e.status",
		"created_at":      "e.created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.batch_id, e.invoice_id, e.status, e.progress,
        e.enrollment_date, e.approved_at, e.closed_at, e.created_at, e.updated_at,
        s.full_name AS student_name, b.name AS batch_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// Approve moves a pending enrollment to approved and reserves a seat in
// the same transaction. The seat reservation uses the bounded increment;
// when the batch is full the transaction rolls back and full is true.
func (r *EnrollmentRepository) Approve(ctx context.Context, id string) (enrollment *models.Enrollment, full bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin approve tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	lockQuery := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1 FOR UPDATE`, enrollmentColumns)
	var current models.Enrollment
	if err := tx.GetContext(ctx, &current, lockQuery, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("lock enrollment: %w", err)
	}
	if current.Status != models.EnrollmentStatusPending {
		return &current, false, fmt.Errorf("enrollment is %s, not pending", current.Status)
	}

	reserved := false
	for attempt := 0; attempt < 2; attempt++ {
		res, err := tx.ExecContext(ctx, incrementSeatsQuery, current.BatchID)
		if err != nil {
			return nil, false, fmt.Errorf("reserve batch seat: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, false, fmt.Errorf("reserve batch seat result: %w", err)
		}
		if affected == 1 {
			reserved = true
			break
		}
	}
	if !reserved {
		return &current, true, nil
	}

	now := time.Now().UTC()
	const update = `UPDATE enrollments SET status = $2, approved_at = $3, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update, id, models.EnrollmentStatusApproved, now); err != nil {
		return nil, false, fmt.Errorf("approve enrollment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit approve tx: %w", err)
	}
	current.Status = models.EnrollmentStatusApproved
	current.ApprovedAt = &now
	current.UpdatedAt = now
	return &current, false, nil
}

// Reject moves a pending enrollment to rejected. No seat was held so the
// counter is untouched.
func (r *EnrollmentRepository) Reject(ctx context.Context, id string) (*models.Enrollment, error) {
	return r.transition(ctx, id, models.EnrollmentStatusPending, models.EnrollmentStatusRejected, false)
}

// Complete closes an approved enrollment as completed. The seat stays
// consumed; a completed student still occupied it.
func (r *EnrollmentRepository) Complete(ctx context.Context, id string) (*models.Enrollment, error) {
	return r.transition(ctx, id, models.EnrollmentStatusApproved, models.EnrollmentStatusCompleted, false)
}

// Drop closes an approved enrollment as dropped and releases the seat in
// the same transaction.
func (r *EnrollmentRepository) Drop(ctx context.Context, id string) (*models.Enrollment, error) {
	return r.transition(ctx, id, models.EnrollmentStatusApproved, models.EnrollmentStatusDropped, true)
}

func (r *EnrollmentRepository) transition(ctx context.Context, id string, from, to models.EnrollmentStatus, releaseSeat bool) (*models.Enrollment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin enrollment tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	lockQuery := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1 FOR UPDATE`, enrollmentColumns)
	var current models.Enrollment
	if err := tx.GetContext(ctx, &current, lockQuery, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock enrollment: %w", err)
	}
	if current.Status != from {
		return &current, fmt.Errorf("enrollment is %s, not %s", current.Status, strings.ToLower(string(from)))
	}

	now := time.Now().UTC()
	const update = `UPDATE enrollments SET status = $2, closed_at = $3, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update, id, to, now); err != nil {
		return nil, fmt.Errorf("transition enrollment: %w", err)
	}

	if releaseSeat {
		if _, err := tx.ExecContext(ctx, decrementSeatsQuery, current.BatchID); err != nil {
			return nil, fmt.Errorf("release batch seat: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enrollment tx: %w", err)
	}
	current.Status = to
	current.ClosedAt = &now
	current.UpdatedAt = now
	return &current, nil
}

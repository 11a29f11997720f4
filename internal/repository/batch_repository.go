package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/moshiurrahman101/ccit-sub003/internal/models"
)

// Conditional seat counter statements. The bound check lives inside the
// UPDATE itself so concurrent writers can never push current_students
// outside [0, max_students].
const (
	incrementSeatsQuery = `UPDATE batches SET current_students = current_students + 1, updated_at = NOW()
        WHERE id = $1 AND current_students < max_students`
	decrementSeatsQuery = `UPDATE batches SET current_students = current_students - 1, updated_at = NOW()
        WHERE id = $1 AND current_students > 0`
)

// BatchRepository handles persistence of batches and their seat counter.
type BatchRepository struct {
	db *sqlx.DB
}

// NewBatchRepository constructs the repository.
func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

const batchColumns = `id, course_id, name, mentor_id, regular_price, discount_price, max_students, current_students, status, start_date, end_date, created_at, updated_at`

// List returns batches filtered by the provided criteria.
func (r *BatchRepository) List(ctx context.Context, filter models.BatchFilter) ([]models.BatchDetail, int, error) {
	base := `FROM batches b
LEFT JOIN courses c ON c.id = b.course_id
LEFT JOIN users m ON m.id = b.mentor_id`
	var conditions []string
	var args []interface{}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("b.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.MentorID != "" {
		conditions = append(conditions, fmt.Sprintf("b.mentor_id = $%d", len(args)+1))
		args = append(args, filter.MentorID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("b.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"name":       "b.name",
		"start_date": "b.start_date",
		"created_at": "b.created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "b.created_at"
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

	query := fmt.Sprintf(`SELECT b.id, b.course_id, b.name, b.mentor_id, b.regular_price, b.discount_price,
        b.max_students, b.current_students, b.status, b.start_date, b.end_date, b.created_at, b.updated_at,
        c.title AS course_title, m.full_name AS mentor_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var batches []models.BatchDetail
	if err := r.db.SelectContext(ctx, &batches, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list batches: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count batches: %w", err)
	}
	return batches, total, nil
}

// FindByID returns a batch by its ID.
func (r *BatchRepository) FindByID(ctx context.Context, id string) (*models.Batch, error) {
	query := fmt.Sprintf(`SELECT %s FROM batches WHERE id = $1`, batchColumns)
	var batch models.Batch
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		return nil, err
	}
	return &batch, nil
}

// Create persists a new batch with an empty seat counter.
func (r *BatchRepository) Create(ctx context.Context, batch *models.Batch) error {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	if batch.Status == "" {
		batch.Status = models.BatchStatusDraft
	}
	now := time.Now().UTC()
	batch.CreatedAt = now
	batch.UpdatedAt = now
	batch.CurrentStudents = 0
	const query = `INSERT INTO batches (id, course_id, name, mentor_id, regular_price, discount_price, max_students, current_students, status, start_date, end_date, created_at, updated_at)
        VALUES (:id, :course_id, :name, :mentor_id, :regular_price, :discount_price, :max_students, :current_students, :status, :start_date, :end_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, batch); err != nil {
		return fmt.Errorf("create batch: %w", err)
	}
	return nil
}

// Update persists mutable batch fields. The seat counter is never written
// here; it only moves through the conditional increment/decrement.
func (r *BatchRepository) Update(ctx context.Context, batch *models.Batch) error {
	batch.UpdatedAt = time.Now().UTC()
	const query = `UPDATE batches SET name = :name, mentor_id = :mentor_id, regular_price = :regular_price,
        discount_price = :discount_price, max_students = :max_students, status = :status,
        start_date = :start_date, end_date = :end_date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, batch); err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	return nil
}

// UpdateStatus moves a batch to a new lifecycle status.
func (r *BatchRepository) UpdateStatus(ctx context.Context, id string, status models.BatchStatus) error {
	const query = `UPDATE batches SET status = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("update batch status: %w", err)
	}
	return nil
}

// TryIncrementSeats reserves one seat if capacity allows. The conditional
// update is retried once before reporting failure, per the consistency
// policy for counter contention.
func (r *BatchRepository) TryIncrementSeats(ctx context.Context, id string) (bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		res, err := r.db.ExecContext(ctx, incrementSeatsQuery, id)
		if err != nil {
			return false, fmt.Errorf("increment batch seats: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("increment batch seats result: %w", err)
		}
		if affected == 1 {
			return true, nil
		}
	}
	return false, nil
}

// DecrementSeats releases one seat, guarded so the counter never goes
// negative.
func (r *BatchRepository) DecrementSeats(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, decrementSeatsQuery, id); err != nil {
		return fmt.Errorf("decrement batch seats: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/moshiurrahman101/ccit-sub003/internal/models"
)

// ScheduleRepository handles persistence of class sessions.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs the repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

const scheduleColumns = `id, batch_id, title, class_date, start_time, end_time, location, meeting_link, created_at, updated_at`

// FindByID returns a schedule entry by its ID.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedules WHERE id = $1`, scheduleColumns)
	var schedule models.Schedule
	if err := r.db.GetContext(ctx, &schedule, query, id); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// ListByBatch returns every session of a batch ordered by class date.
func (r *ScheduleRepository) ListByBatch(ctx context.Context, batchID string) ([]models.Schedule, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedules WHERE batch_id = $1 ORDER BY class_date ASC, start_time ASC`, scheduleColumns)
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query, batchID); err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return schedules, nil
}

// CountForBatchUpTo counts sessions of a batch with a class date not after
// the cutoff. Attendance statistics use it as the class denominator.
func (r *ScheduleRepository) CountForBatchUpTo(ctx context.Context, batchID string, cutoff time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM schedules WHERE batch_id = $1 AND class_date <= $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, batchID, cutoff); err != nil {
		return 0, fmt.Errorf("count schedules: %w", err)
	}
	return count, nil
}

// Create persists a new class session.
func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.Schedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now
	const query = `INSERT INTO schedules (id, batch_id, title, class_date, start_time, end_time, location, meeting_link, created_at, updated_at)
        VALUES (:id, :batch_id, :title, :class_date, :start_time, :end_time, :location, :meeting_link, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

// Update persists mutable session fields.
func (r *ScheduleRepository) Update(ctx context.Context, schedule *models.Schedule) error {
	schedule.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedules SET title = :title, class_date = :class_date, start_time = :start_time,
        end_time = :end_time, location = :location, meeting_link = :meeting_link, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	return nil
}

// Delete removes a session. Attendance rows keep their class date so
// history survives the removal.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM schedules WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}

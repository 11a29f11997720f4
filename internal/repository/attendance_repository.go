package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/moshiurrahman101/ccit-sub003/internal/models"
)

// AttendanceRepository handles persistence of attendance records. The
// (batch, student, class date) key is unique; a rewrite overwrites the
// earlier status.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const attendanceColumns = `id, batch_id, student_id, schedule_id, class_date, status, check_in_time, notes, marked_by, created_at, updated_at`

// Upsert writes one attendance record, overwriting any earlier record for
// the same batch, student and class date.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	const query = `INSERT INTO attendance (id, batch_id, student_id, schedule_id, class_date, status, check_in_time, notes, marked_by, created_at, updated_at)
        VALUES (:id, :batch_id, :student_id, :schedule_id, :class_date, :status, :check_in_time, :notes, :marked_by, :created_at, :updated_at)
        ON CONFLICT (batch_id, student_id, class_date) DO UPDATE SET
        schedule_id = EXCLUDED.schedule_id, status = EXCLUDED.status, check_in_time = EXCLUDED.check_in_time,
        notes = EXCLUDED.notes, marked_by = EXCLUDED.marked_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

// ListByBatchStudent returns a student's attendance in a batch ordered by
// class date.
func (r *AttendanceRepository) ListByBatchStudent(ctx context.Context, batchID, studentID string) ([]models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance WHERE batch_id = $1 AND student_id = $2 ORDER BY class_date ASC`, attendanceColumns)
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, batchID, studentID); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

// ListForBatch returns every attendance record of a batch, ordered by
// class date then student, for report export.
func (r *AttendanceRepository) ListForBatch(ctx context.Context, batchID string) ([]models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance WHERE batch_id = $1 ORDER BY class_date ASC, student_id ASC`, attendanceColumns)
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, batchID); err != nil {
		return nil, fmt.Errorf("list batch attendance: %w", err)
	}
	return records, nil
}

// Counts aggregates a student's recorded statuses in a batch.
func (r *AttendanceRepository) Counts(ctx context.Context, batchID, studentID string) (*models.AttendanceCounts, error) {
	const query = `SELECT COUNT(*) AS recorded,
        COUNT(*) FILTER (WHERE status = 'PRESENT') AS present,
        COUNT(*) FILTER (WHERE status = 'ABSENT') AS absent,
        COUNT(*) FILTER (WHERE status = 'LATE') AS late,
        COUNT(*) FILTER (WHERE status = 'EXCUSED') AS excused
        FROM attendance WHERE batch_id = $1 AND student_id = $2`
	var counts models.AttendanceCounts
	if err := r.db.GetContext(ctx, &counts, query, batchID, studentID); err != nil {
		return nil, fmt.Errorf("count attendance: %w", err)
	}
	return &counts, nil
}

// CountDistinctDates counts the distinct class dates recorded for a batch.
// It is the fallback class denominator when the batch has no schedule.
func (r *AttendanceRepository) CountDistinctDates(ctx context.Context, batchID string) (int, error) {
	const query = `SELECT COUNT(DISTINCT class_date) FROM attendance WHERE batch_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, batchID); err != nil {
		return 0, fmt.Errorf("count attendance dates: %w", err)
	}
	return count, nil
}

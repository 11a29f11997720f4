package models

import "time"

// BatchStatus represents the lifecycle of a batch offering.
type BatchStatus string

// Possible batch statuses.
const (
	BatchStatusDraft     BatchStatus = "DRAFT"
	BatchStatusPublished BatchStatus = "PUBLISHED"
	BatchStatusUpcoming  BatchStatus = "UPCOMING"
	BatchStatusOngoing   BatchStatus = "ONGOING"
	BatchStatusCompleted BatchStatus = "COMPLETED"
	BatchStatusCancelled BatchStatus = "CANCELLED"
)

// Valid reports whether the status is a known batch status.
func (s BatchStatus) Valid() bool {
	switch s {
	case BatchStatusDraft, BatchStatusPublished, BatchStatusUpcoming,
		BatchStatusOngoing, BatchStatusCompleted, BatchStatusCancelled:
		return true
	}
	return false
}

// Batch is a scheduled, capacity-bounded offering of a Course. Batch-level
// prices, when present, override the course prices.
type Batch struct {
	ID              string      `db:"id" json:"id"`
	CourseID        string      `db:"course_id" json:"course_id"`
	Name            string      `db:"name" json:"name"`
	MentorID        *string     `db:"mentor_id" json:"mentor_id,omitempty"`
	RegularPrice    *int64      `db:"regular_price" json:"regular_price,omitempty"`
	DiscountPrice   *int64      `db:"discount_price" json:"discount_price,omitempty"`
	MaxStudents     int         `db:"max_students" json:"max_students"`
	CurrentStudents int         `db:"current_students" json:"current_students"`
	Status          BatchStatus `db:"status" json:"status"`
	StartDate       *time.Time  `db:"start_date" json:"start_date,omitempty"`
	EndDate         *time.Time  `db:"end_date" json:"end_date,omitempty"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}

// SeatsRemaining returns the number of unreserved seats.
func (b *Batch) SeatsRemaining() int {
	remaining := b.MaxStudents - b.CurrentStudents
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsFull reports whether the batch has no remaining capacity.
func (b *Batch) IsFull() bool {
	return b.CurrentStudents >= b.MaxStudents
}

// BatchDetail enriches Batch with course and mentor info.
type BatchDetail struct {
	Batch
	CourseTitle string  `db:"course_title" json:"course_title"`
	MentorName  *string `db:"mentor_name" json:"mentor_name,omitempty"`
}

// BatchFilter provides filters for listing batches.
type BatchFilter struct {
	CourseID  string
	MentorID  string
	Status    BatchStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

package models

import "time"

// Schedule is a single class session of a batch.
type Schedule struct {
	ID          string    `db:"id" json:"id"`
	BatchID     string    `db:"batch_id" json:"batch_id"`
	Title       string    `db:"title" json:"title"`
	ClassDate   time.Time `db:"class_date" json:"class_date"`
	StartTime   string    `db:"start_time" json:"start_time"`
	EndTime     string    `db:"end_time" json:"end_time"`
	Location    *string   `db:"location" json:"location,omitempty"`
	MeetingLink *string   `db:"meeting_link" json:"meeting_link,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

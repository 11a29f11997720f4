package models

import (
	"math"
	"time"
)

// AttendanceStatus classifies a student's presence at a class session.
type AttendanceStatus string

// Possible attendance statuses.
const (
	AttendanceStatusPresent AttendanceStatus = "PRESENT"
	AttendanceStatusAbsent  AttendanceStatus = "ABSENT"
	AttendanceStatusLate    AttendanceStatus = "LATE"
	AttendanceStatusExcused AttendanceStatus = "EXCUSED"
)

// Valid reports whether the status is a known attendance status.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent,
		AttendanceStatusLate, AttendanceStatusExcused:
		return true
	}
	return false
}

// AttendanceRecord stores one student's presence for one class date of a
// batch. A second write for the same (batch, student, class date) key
// overwrites the previous record.
type AttendanceRecord struct {
	ID          string           `db:"id" json:"id"`
	BatchID     string           `db:"batch_id" json:"batch_id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	ScheduleID  *string          `db:"schedule_id" json:"schedule_id,omitempty"`
	ClassDate   time.Time        `db:"class_date" json:"class_date"`
	Status      AttendanceStatus `db:"status" json:"status"`
	CheckInTime *time.Time       `db:"check_in_time" json:"check_in_time,omitempty"`
	Notes       *string          `db:"notes" json:"notes,omitempty"`
	MarkedBy    string           `db:"marked_by" json:"marked_by"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceCounts aggregates recorded statuses for a student in a batch.
type AttendanceCounts struct {
	Recorded int `db:"recorded" json:"recorded"`
	Present  int `db:"present" json:"present"`
	Absent   int `db:"absent" json:"absent"`
	Late     int `db:"late" json:"late"`
	Excused  int `db:"excused" json:"excused"`
}

// AttendanceStatistics is the read-time aggregation for a student in a
// batch; the percentage is never stored.
type AttendanceStatistics struct {
	BatchID      string           `json:"batch_id"`
	StudentID    string           `json:"student_id"`
	TotalClasses int              `json:"total_classes"`
	Counts       AttendanceCounts `json:"counts"`
	Percentage   int              `json:"percentage"`
}

// AttendancePercentage computes present / totalClasses * 100 rounded to the
// nearest integer.
func AttendancePercentage(present, totalClasses int) int {
	if totalClasses <= 0 {
		return 0
	}
	return int(math.Round(float64(present) / float64(totalClasses) * 100))
}

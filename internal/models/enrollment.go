package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. Rejected, completed and dropped are
// terminal; completed and dropped are reachable only from approved.
const (
	EnrollmentStatusPending   EnrollmentStatus = "PENDING"
	EnrollmentStatusApproved  EnrollmentStatus = "APPROVED"
	EnrollmentStatusRejected  EnrollmentStatus = "REJECTED"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusDropped   EnrollmentStatus = "DROPPED"
)

// Enrollment links a student, a batch and the invoice raised for the
// attempt. It is created pending alongside the invoice and only approval
// reserves a seat.
type Enrollment struct {
	ID             string           `db:"id" json:"id"`
	StudentID      string           `db:"student_id" json:"student_id"`
	BatchID        string           `db:"batch_id" json:"batch_id"`
	InvoiceID      string           `db:"invoice_id" json:"invoice_id"`
	Status         EnrollmentStatus `db:"status" json:"status"`
	Progress       int              `db:"progress" json:"progress"`
	EnrollmentDate time.Time        `db:"enrollment_date" json:"enrollment_date"`
	ApprovedAt     *time.Time       `db:"approved_at" json:"approved_at,omitempty"`
	ClosedAt       *time.Time       `db:"closed_at" json:"closed_at,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with student, batch and the derived
// payment status mirrored from the invoice.
type EnrollmentDetail struct {
	Enrollment
	StudentName   string        `db:"student_name" json:"student_name"`
	BatchName     string        `db:"batch_name" json:"batch_name"`
	PaymentStatus InvoiceStatus `json:"payment_status"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	BatchID   string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

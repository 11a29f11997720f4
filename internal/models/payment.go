package models

import "time"

// PaymentMethod enumerates the manual payment channels students report.
type PaymentMethod string

// Supported payment methods.
const (
	PaymentMethodBkash  PaymentMethod = "BKASH"
	PaymentMethodNagad  PaymentMethod = "NAGAD"
	PaymentMethodRocket PaymentMethod = "ROCKET"
	PaymentMethodBank   PaymentMethod = "BANK"
	PaymentMethodCash   PaymentMethod = "CASH"
)

// Valid reports whether the method is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodBkash, PaymentMethodNagad, PaymentMethodRocket,
		PaymentMethodBank, PaymentMethodCash:
		return true
	}
	return false
}

// PaymentStatus tracks a claim through the manual verification workflow.
type PaymentStatus string

// Possible payment claim statuses. Verified and rejected are terminal.
const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusVerified PaymentStatus = "VERIFIED"
	PaymentStatusRejected PaymentStatus = "REJECTED"
)

// Payment is a student-submitted payment claim against an invoice. It has
// no financial effect until an admin verifies it.
type Payment struct {
	ID            string        `db:"id" json:"id"`
	InvoiceID     string        `db:"invoice_id" json:"invoice_id"`
	Amount        int64         `db:"amount" json:"amount"`
	Method        PaymentMethod `db:"method" json:"method"`
	SenderNumber  string        `db:"sender_number" json:"sender_number"`
	TransactionID string        `db:"transaction_id" json:"transaction_id"`
	EvidenceURL   *string       `db:"evidence_url" json:"evidence_url,omitempty"`
	Status        PaymentStatus `db:"status" json:"status"`
	SubmittedAt   time.Time     `db:"submitted_at" json:"submitted_at"`
	VerifiedAt    *time.Time    `db:"verified_at" json:"verified_at,omitempty"`
	DecidedBy     *string       `db:"decided_by" json:"decided_by,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// PaymentDetail enriches a claim with invoice context for admin queues.
type PaymentDetail struct {
	Payment
	StudentID   string `db:"student_id" json:"student_id"`
	BatchID     string `db:"batch_id" json:"batch_id"`
	FinalAmount int64  `db:"final_amount" json:"final_amount"`
	PaidAmount  int64  `db:"paid_amount" json:"paid_amount"`
}

// PaymentFilter provides filters for listing payment claims.
type PaymentFilter struct {
	InvoiceID string
	BatchID   string
	Status    PaymentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

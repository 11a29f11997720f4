package models

import "time"

// InvoiceStatus is derived from paid versus final amount and the due date.
// It is never stored: every read recomputes it so it cannot drift.
type InvoiceStatus string

// Possible invoice statuses.
const (
	InvoiceStatusPending InvoiceStatus = "PENDING"
	InvoiceStatusPartial InvoiceStatus = "PARTIAL"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusOverdue InvoiceStatus = "OVERDUE"
)

// DeriveInvoiceStatus computes the invoice status as a pure function of the
// stored amounts and the due date. Overdue is a presentation state layered
// over any non-paid invoice whose due date has passed; the underlying
// amounts are untouched.
func DeriveInvoiceStatus(paidAmount, finalAmount int64, dueDate, now time.Time) InvoiceStatus {
	if paidAmount >= finalAmount {
		return InvoiceStatusPaid
	}
	if now.After(dueDate) {
		return InvoiceStatusOverdue
	}
	if paidAmount > 0 {
		return InvoiceStatusPartial
	}
	return InvoiceStatusPending
}

// PriceBreakdown is the frozen pricing result persisted verbatim onto the
// invoice at creation time, so later course or batch price changes never
// alter an issued invoice.
type PriceBreakdown struct {
	RegularPrice   int64  `json:"regular_price"`
	DiscountAmount int64  `json:"discount_amount"`
	PromoDiscount  int64  `json:"promo_discount"`
	FinalAmount    int64  `json:"final_amount"`
	CouponCode     string `json:"coupon_code,omitempty"`
}

// Invoice bills one enrollment attempt. Amount is the pre-discount base,
// FinalAmount = Amount - DiscountAmount - PromoDiscount (never negative),
// PaidAmount is the sum of verified payments.
type Invoice struct {
	ID             string    `db:"id" json:"id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	BatchID        string    `db:"batch_id" json:"batch_id"`
	Amount         int64     `db:"amount" json:"amount"`
	DiscountAmount int64     `db:"discount_amount" json:"discount_amount"`
	PromoDiscount  int64     `db:"promo_discount" json:"promo_discount"`
	FinalAmount    int64     `db:"final_amount" json:"final_amount"`
	PaidAmount     int64     `db:"paid_amount" json:"paid_amount"`
	CouponCode     *string   `db:"coupon_code" json:"coupon_code,omitempty"`
	DueDate        time.Time `db:"due_date" json:"due_date"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// RemainingAmount returns the unpaid balance, floored at zero.
func (i *Invoice) RemainingAmount() int64 {
	remaining := i.FinalAmount - i.PaidAmount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Status derives the invoice status at the given instant.
func (i *Invoice) Status(now time.Time) InvoiceStatus {
	return DeriveInvoiceStatus(i.PaidAmount, i.FinalAmount, i.DueDate, now)
}

// View renders the invoice with its derived fields for API responses.
func (i *Invoice) View(now time.Time) InvoiceView {
	return InvoiceView{
		Invoice:         *i,
		RemainingAmount: i.RemainingAmount(),
		Status:          i.Status(now),
	}
}

// InvoiceView is an Invoice plus its derived status and remaining amount.
type InvoiceView struct {
	Invoice
	RemainingAmount int64         `json:"remaining_amount"`
	Status          InvoiceStatus `json:"status"`
}

// InvoiceDetail is an InvoiceView with its payment claim history.
type InvoiceDetail struct {
	InvoiceView
	Payments []Payment `json:"payments"`
}

// InvoiceFilter provides filters for listing invoices. Status filtering is
// applied against the derived status.
type InvoiceFilter struct {
	StudentID string
	BatchID   string
	Status    InvoiceStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeriveInvoiceStatus(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	future := now.Add(48 * time.Hour)
	past := now.Add(-48 * time.Hour)

	cases := []struct {
		name    string
		paid    int64
		final   int64
		dueDate time.Time
		want    InvoiceStatus
	}{
		{"unpaid before due", 0, 5000, future, InvoiceStatusPending},
		{"partially paid before due", 2000, 5000, future, InvoiceStatusPartial},
		{"fully paid", 5000, 5000, future, InvoiceStatusPaid},
		{"paid beats overdue", 5000, 5000, past, InvoiceStatusPaid},
		{"unpaid past due", 0, 5000, past, InvoiceStatusOverdue},
		{"partial past due", 2000, 5000, past, InvoiceStatusOverdue},
		{"zero amount invoice", 0, 0, future, InvoiceStatusPaid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveInvoiceStatus(tc.paid, tc.final, tc.dueDate, now))
		})
	}
}

func TestInvoiceRemainingAmount(t *testing.T) {
	invoice := &Invoice{FinalAmount: 5000, PaidAmount: 1500}
	assert.Equal(t, int64(3500), invoice.RemainingAmount())

	invoice.PaidAmount = 5000
	assert.Equal(t, int64(0), invoice.RemainingAmount())

	invoice.PaidAmount = 6000
	assert.Equal(t, int64(0), invoice.RemainingAmount())
}

func TestInvoiceView(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	invoice := &Invoice{ID: "inv-1", FinalAmount: 5000, PaidAmount: 2000, DueDate: now.Add(24 * time.Hour)}

	view := invoice.View(now)
	assert.Equal(t, "inv-1", view.ID)
	assert.Equal(t, int64(3000), view.RemainingAmount)
	assert.Equal(t, InvoiceStatusPartial, view.Status)
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/moshiurrahman101/ccit-sub003/internal/models"
)

// Bounded paid amount: the final_amount check is part of the UPDATE so two
// concurrent verifications cannot overpay the invoice.
const applyPaymentQuery = `UPDATE invoices SET paid_amount = paid_amount + $2, updated_at = NOW()
        WHERE id = $1 AND paid_amount + $2 <= final_amount`

// PaymentRepository handles persistence of payment claims and the
// transactional verification workflow.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, invoice_id, amount, method, sender_number, transaction_id, evidence_url, status, submitted_at, verified_at, decided_by, created_at, updated_at`

// Create persists a new pending payment claim.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	payment.Status = models.PaymentStatusPending
	payment.SubmittedAt = now
	payment.CreatedAt = now
	payment.UpdatedAt = now
	const query = `INSERT INTO payments (id, invoice_id, amount, method, sender_number, transaction_id, evidence_url, status, submitted_at, created_at, updated_at)
        VALUES (:id, :invoice_id, :amount, :method, :sender_number, :transaction_id, :evidence_url, :status, :submitted_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment claim: %w", err)
	}
	return nil
}

// FindByID returns a payment claim by its ID.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1`, paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListByInvoice returns every claim submitted against an invoice, oldest
// first.
func (r *PaymentRepository) ListByInvoice(ctx context.Context, invoiceID string) ([]models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE invoice_id = $1 ORDER BY submitted_at ASC`, paymentColumns)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, invoiceID); err != nil {
		return nil, fmt.Errorf("list payments by invoice: %w", err)
	}
	return payments, nil
}

// List returns payment claims enriched with invoice context, for the admin
// verification queue.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	base := `FROM payments p
JOIN invoices i ON i.id = p.invoice_id`
	var conditions []string
	var args []interface{}

	if filter.InvoiceID != "" {
		conditions = append(conditions, fmt.Sprintf("p.invoice_id = $%d", len(args)+1))
		args = append(args, filter.InvoiceID)
	}
	if filter.BatchID != "" {
		conditions = append(conditions, fmt.Sprintf("i.batch_id = $%d", len(args)+1))
		args = append(args, filter.BatchID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("p.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"submitted_at": "p.submitted_at",
		"amount":       "p.amount",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "p.submitted_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf(`SELECT p.id, p.invoice_id, p.amount, p.method, p.sender_number, p.transaction_id,
        p.evidence_url, p.status, p.submitted_at, p.verified_at, p.decided_by, p.created_at, p.updated_at,
        i.student_id, i.batch_id, i.final_amount, i.paid_amount
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payment claims: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payment claims: %w", err)
	}
	return payments, total, nil
}

// Verify settles a pending claim against its invoice in one transaction.
// The claim row is locked so a concurrent decision sees the terminal
// status, and the paid amount moves through the bounded update. Returns
// the claim as decided, or false when the invoice could not absorb the
// amount.
func (r *PaymentRepository) Verify(ctx context.Context, paymentID, actorID string) (*models.Payment, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin verify tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	lockQuery := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1 FOR UPDATE`, paymentColumns)
	var payment models.Payment
	if err := tx.GetContext(ctx, &payment, lockQuery, paymentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("lock payment claim: %w", err)
	}
	if payment.Status != models.PaymentStatusPending {
		return &payment, false, nil
	}

	res, err := tx.ExecContext(ctx, applyPaymentQuery, payment.InvoiceID, payment.Amount)
	if err != nil {
		return nil, false, fmt.Errorf("apply verified payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("apply verified payment result: %w", err)
	}
	if affected != 1 {
		// Overpayment: leave the claim pending and roll back.
		return &payment, false, nil
	}

	now := time.Now().UTC()
	const decide = `UPDATE payments SET status = $2, verified_at = $3, decided_by = $4, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, decide, payment.ID, models.PaymentStatusVerified, now, actorID); err != nil {
		return nil, false, fmt.Errorf("mark payment verified: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit verify tx: %w", err)
	}
	payment.Status = models.PaymentStatusVerified
	payment.VerifiedAt = &now
	payment.DecidedBy = &actorID
	payment.UpdatedAt = now
	return &payment, true, nil
}

// Reject marks a pending claim rejected without touching the invoice.
// Returns the claim as decided, or false when it was already terminal.
func (r *PaymentRepository) Reject(ctx context.Context, paymentID, actorID string) (*models.Payment, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin reject tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	lockQuery := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1 FOR UPDATE`, paymentColumns)
	var payment models.Payment
	if err := tx.GetContext(ctx, &payment, lockQuery, paymentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("lock payment claim: %w", err)
	}
	if payment.Status != models.PaymentStatusPending {
		return &payment, false, nil
	}

	now := time.Now().UTC()
	const decide = `UPDATE payments SET status = $2, decided_by = $3, updated_at = $4 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, decide, payment.ID, models.PaymentStatusRejected, actorID, now); err != nil {
		return nil, false, fmt.Errorf("mark payment rejected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit reject tx: %w", err)
	}
	payment.Status = models.PaymentStatusRejected
	payment.DecidedBy = &actorID
	payment.UpdatedAt = now
	return &payment, true, nil
}

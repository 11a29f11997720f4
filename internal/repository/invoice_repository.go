package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/moshiurrahman101/ccit-sub003/internal/models"
)

// derivedStatusExpr mirrors models.DeriveInvoiceStatus in SQL so list
// filters can match on the derived status without ever storing it.
const derivedStatusExpr = `CASE
        WHEN paid_amount >= final_amount THEN 'PAID'
        WHEN due_date < NOW() THEN 'OVERDUE'
        WHEN paid_amount > 0 THEN 'PARTIAL'
        ELSE 'PENDING' END`

// InvoiceRepository handles persistence of invoices and their frozen price
// breakdowns.
type InvoiceRepository struct {
	db *sqlx.DB
}

// NewInvoiceRepository constructs the repository.
func NewInvoiceRepository(db *sqlx.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

const invoiceColumns = `id, student_id, batch_id, amount, discount_amount, promo_discount, final_amount, paid_amount, coupon_code, due_date, created_at, updated_at`

// FindByID returns an invoice by its ID.
func (r *InvoiceRepository) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE id = $1`, invoiceColumns)
	var invoice models.Invoice
	if err := r.db.GetContext(ctx, &invoice, query, id); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// List returns invoices filtered by the provided criteria. The status
// filter matches the derived status, including OVERDUE.
func (r *InvoiceRepository) List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, int, error) {
	base := `FROM invoices`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.BatchID != "" {
		conditions = append(conditions, fmt.Sprintf("batch_id = $%d", len(args)+1))
		args = append(args, filter.BatchID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("(%s) = $%d", derivedStatusExpr, len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"due_date":     "due_date",
		"final_amount": "final_amount",
		"created_at":   "created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf(`SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d`, invoiceColumns, base+clause, orderBy, order, size, offset)

	var invoices []models.Invoice
	if err := r.db.SelectContext(ctx, &invoices, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}
	return invoices, total, nil
}

// CreateWithEnrollment persists the invoice and its pending enrollment in
// one transaction so an enrollment attempt can never exist half-written.
// A non-empty couponCode commits one coupon use inside the same
// transaction; false means the usage limit is exhausted and nothing was
// written, including the coupon counter.
func (r *InvoiceRepository) CreateWithEnrollment(ctx context.Context, invoice *models.Invoice, enrollment *models.Enrollment, couponCode string) (bool, error) {
	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	invoice.CreatedAt = now
	invoice.UpdatedAt = now
	enrollment.InvoiceID = invoice.ID
	enrollment.Status = models.EnrollmentStatusPending
	enrollment.EnrollmentDate = now
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin invoice tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if couponCode != "" {
		res, err := tx.ExecContext(ctx, consumeCouponQuery, couponCode)
		if err != nil {
			return false, fmt.Errorf("consume coupon: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("consume coupon result: %w", err)
		}
		if affected == 0 {
			return false, nil
		}
	}

	const invoiceInsert = `INSERT INTO invoices (id, student_id, batch_id, amount, discount_amount, promo_discount, final_amount, paid_amount, coupon_code, due_date, created_at, updated_at)
        VALUES (:id, :student_id, :batch_id, :amount, :discount_amount, :promo_discount, :final_amount, :paid_amount, :coupon_code, :due_date, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, invoiceInsert, invoice); err != nil {
		return false, fmt.Errorf("create invoice: %w", err)
	}

	const enrollmentInsert = `INSERT INTO enrollments (id, student_id, batch_id, invoice_id, status, progress, enrollment_date, created_at, updated_at)
        VALUES (:id, :student_id, :batch_id, :invoice_id, :status, :progress, :enrollment_date, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, enrollmentInsert, enrollment); err != nil {
		return false, fmt.Errorf("create enrollment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit invoice tx: %w", err)
	}
	return true, nil
}

// ExistsOpenForStudentAndBatch reports whether the student already has a
// non-rejected enrollment attempt (and thus an invoice) for the batch.
func (r *InvoiceRepository) ExistsOpenForStudentAndBatch(ctx context.Context, studentID, batchID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE student_id = $1 AND batch_id = $2 AND status IN ($3, $4)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID, batchID, models.EnrollmentStatusPending, models.EnrollmentStatusApproved); err != nil {
		return false, fmt.Errorf("check open enrollment attempt: %w", err)
	}
	return count > 0, nil
}

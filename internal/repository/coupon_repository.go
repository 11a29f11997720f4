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

// Bounded usage counter: the usage_limit check is part of the UPDATE so two
// concurrent commits cannot push used_count past the limit. The increment
// runs inside the invoice creation transaction in InvoiceRepository.
const consumeCouponQuery = `UPDATE coupons SET used_count = used_count + 1, updated_at = NOW()
        WHERE code = $1 AND (usage_limit IS NULL OR used_count < usage_limit)`

// CouponRepository handles persistence of promo coupons.
type CouponRepository struct {
	db *sqlx.DB
}

// NewCouponRepository constructs the repository.
func NewCouponRepository(db *sqlx.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

const couponColumns = `id, code, type, value, min_amount, max_discount, valid_from, valid_until, usage_limit, used_count, is_active, applicable_batch_ids, applicable_course_ids, created_at, updated_at`

// FindByCode returns a coupon by its unique code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	query := fmt.Sprintf(`SELECT %s FROM coupons WHERE code = $1 LIMIT 1`, couponColumns)
	var coupon models.Coupon
	if err := r.db.GetContext(ctx, &coupon, query, code); err != nil {
		return nil, err
	}
	return &coupon, nil
}

// List returns coupons filtered by the provided criteria.
func (r *CouponRepository) List(ctx context.Context, filter models.CouponFilter) ([]models.Coupon, int, error) {
	base := `FROM coupons`
	var conditions []string
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(code) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"code":        "code",
		"valid_until": "valid_until",
		"created_at":  "created_at",
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

	query := fmt.Sprintf(`SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d`, couponColumns, base+clause, orderBy, order, size, offset)

	var coupons []models.Coupon
	if err := r.db.SelectContext(ctx, &coupons, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list coupons: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count coupons: %w", err)
	}
	return coupons, total, nil
}

// Create persists a new coupon.
func (r *CouponRepository) Create(ctx context.Context, coupon *models.Coupon) error {
	if coupon.ID == "" {
		coupon.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	coupon.CreatedAt = now
	coupon.UpdatedAt = now
	coupon.UsedCount = 0
	const query = `INSERT INTO coupons (id, code, type, value, min_amount, max_discount, valid_from, valid_until, usage_limit, used_count, is_active, applicable_batch_ids, applicable_course_ids, created_at, updated_at)
        VALUES (:id, :code, :type, :value, :min_amount, :max_discount, :valid_from, :valid_until, :usage_limit, :used_count, :is_active, :applicable_batch_ids, :applicable_course_ids, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, coupon); err != nil {
		return fmt.Errorf("create coupon: %w", err)
	}
	return nil
}

// Update persists mutable coupon fields. used_count only moves through
// the invoice creation transaction.
func (r *CouponRepository) Update(ctx context.Context, coupon *models.Coupon) error {
	coupon.UpdatedAt = time.Now().UTC()
	const query = `UPDATE coupons SET type = :type, value = :value, min_amount = :min_amount,
        max_discount = :max_discount, valid_from = :valid_from, valid_until = :valid_until,
        usage_limit = :usage_limit, is_active = :is_active, applicable_batch_ids = :applicable_batch_ids,
        applicable_course_ids = :applicable_course_ids, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, coupon); err != nil {
		return fmt.Errorf("update coupon: %w", err)
	}
	return nil
}

// Deactivate switches a coupon off without deleting its usage history.
func (r *CouponRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE coupons SET is_active = FALSE, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("deactivate coupon: %w", err)
	}
	return nil
}

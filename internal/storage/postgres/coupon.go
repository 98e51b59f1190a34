package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/plateful/marketplace-api/internal/domain/coupon"
)

const (
	couponColumns = `id::text, code, discount_percentage, max_discount_amount,
		expires_at, usage_limit, used_count, minimum_order, created_at, updated_at`

	insertCouponSQL = `INSERT INTO coupons
		(id, code, discount_percentage, max_discount_amount, expires_at, usage_limit, minimum_order)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7)`

	getCouponByIDSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1::uuid`

	findCouponByCodeSQL = `SELECT ` + couponColumns + ` FROM coupons
		WHERE UPPER(code) = UPPER($1)`

	listCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons ORDER BY created_at DESC`

	listActiveCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons
		WHERE expires_at > now() AND used_count < usage_limit
		ORDER BY created_at DESC`

	updateCouponSQL = `UPDATE coupons SET code = $2, discount_percentage = $3,
		max_discount_amount = $4, expires_at = $5, usage_limit = $6,
		minimum_order = $7, updated_at = now()
		WHERE id = $1::uuid`

	deleteCouponSQL = `DELETE FROM coupons WHERE id = $1::uuid`

	// reserveCouponSQL claims one use only while uses remain. Zero rows
	// affected means the limit was hit, possibly by a concurrent order.
	reserveCouponSQL = `UPDATE coupons SET used_count = used_count + 1, updated_at = now()
		WHERE id = $1::uuid AND used_count < usage_limit`

	// releaseCouponSQL returns one use without ever going below zero.
	releaseCouponSQL = `UPDATE coupons SET used_count = used_count - 1, updated_at = now()
		WHERE id = $1::uuid AND used_count > 0`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
// The usage ledger operations are conditional single-statement updates, so
// concurrent reservations can never overrun the usage limit.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// Create persists a new coupon. Returns coupon.ErrCodeExists when the code
// collides with an existing one.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, insertCouponSQL,
		c.ID, c.Code, c.DiscountPercentage, nullDecimal(c.MaxDiscountAmount),
		c.ExpiresAt, c.UsageLimit, c.MinimumOrder,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrCodeExists
		}
		return errors.Wrapf(err, "creating coupon %q", c.Code)
	}
	return nil
}

// GetByID returns a single coupon by its identifier.
func (r *CouponRepository) GetByID(ctx context.Context, id string) (*coupon.Coupon, error) {
	return r.queryOne(ctx, getCouponByIDSQL, id)
}

// FindByCode looks up a coupon by its code, case-insensitively.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	return r.queryOne(ctx, findCouponByCodeSQL, code)
}

// List returns all coupons, newest first.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "listing coupons")
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// ListActive returns coupons that are not expired and still have uses left.
func (r *CouponRepository) ListActive(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listActiveCouponsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "listing active coupons")
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// Update rewrites a coupon's rule fields. The usage counter is not touched;
// it belongs to the ledger operations.
func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	tag, err := r.pool.Exec(ctx, updateCouponSQL,
		c.ID, c.Code, c.DiscountPercentage, nullDecimal(c.MaxDiscountAmount),
		c.ExpiresAt, c.UsageLimit, c.MinimumOrder,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrCodeExists
		}
		return errors.Wrapf(err, "updating coupon %q", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// Delete removes a coupon.
func (r *CouponRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteCouponSQL, id)
	if err != nil {
		return errors.Wrapf(err, "deleting coupon %q", id)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// Reserve atomically claims one use of the coupon.
func (r *CouponRepository) Reserve(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, reserveCouponSQL, id)
	if err != nil {
		return errors.Wrapf(err, "reserving coupon %q", id)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrUsageLimitReached
	}
	return nil
}

// Release atomically returns one use of the coupon.
func (r *CouponRepository) Release(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, releaseCouponSQL, id); err != nil {
		return errors.Wrapf(err, "releasing coupon %q", id)
	}
	return nil
}

func (r *CouponRepository) queryOne(ctx context.Context, sql, arg string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, errors.Wrap(err, "querying coupon")
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, errors.Wrap(err, "querying coupon")
	}
	return &c, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c       coupon.Coupon
		maxDisc decimal.NullDecimal
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.DiscountPercentage, &maxDisc,
		&c.ExpiresAt, &c.UsageLimit, &c.UsedCount, &c.MinimumOrder,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if maxDisc.Valid {
		c.MaxDiscountAmount = &maxDisc.Decimal
	}
	return c, err
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/plateful/marketplace-api/internal/domain/coupon"
	"github.com/plateful/marketplace-api/internal/domain/order"
)

const (
	orderColumns = `id::text, customer_id::text, store_id::text, total_price,
		coupon_id::text, final_price, status, created_at, updated_at`

	insertOrderSQL = `INSERT INTO orders
		(id, customer_id, store_id, total_price, coupon_id, final_price, status)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5::uuid, $6, $7)`

	insertOrderItemSQL = `INSERT INTO order_items
		(order_id, position, food_id, quantity, price_each, subtotal)
		VALUES ($1::uuid, $2, $3::uuid, $4, $5, $6)`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1::uuid`

	getOrderItemsSQL = `SELECT food_id::text, quantity, price_each, subtotal
		FROM order_items WHERE order_id = $1::uuid ORDER BY position`

	getItemsForOrdersSQL = `SELECT order_id::text, food_id::text, quantity, price_each, subtotal
		FROM order_items WHERE order_id = ANY($1::uuid[]) ORDER BY order_id, position`

	// transitionOrderSQL is a compare-and-set on status so concurrent
	// transitions cannot both win.
	transitionOrderSQL = `UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1::uuid AND status = $2
		RETURNING coupon_id::text`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1::uuid)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order and its items. When a coupon is attached, its
// use is reserved in the same transaction, so a failed insert leaves no
// reservation dangling and a hit usage limit persists nothing.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if o.CouponID != nil {
		tag, err := tx.Exec(ctx, reserveCouponSQL, *o.CouponID)
		if err != nil {
			return errors.Wrapf(err, "reserving coupon %q", *o.CouponID)
		}
		if tag.RowsAffected() == 0 {
			return coupon.ErrUsageLimitReached
		}
	}

	_, err = tx.Exec(ctx, insertOrderSQL,
		o.ID, o.CustomerID, o.StoreID, o.TotalPrice, o.CouponID, o.FinalPrice, string(o.Status),
	)
	if err != nil {
		return errors.Wrapf(err, "creating order %q", o.ID)
	}

	batch := &pgx.Batch{}
	for i, it := range o.Items {
		batch.Queue(insertOrderItemSQL, o.ID, i, it.FoodID, it.Quantity, it.PriceEach, it.Subtotal)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrapf(err, "creating items for order %q", o.ID)
	}

	return errors.Wrap(tx.Commit(ctx), "commit")
}

// GetByID returns a single order with its items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "getting order %q", id)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting order %q", id)
	}

	itemRows, err := r.pool.Query(ctx, getOrderItemsSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "getting items for order %q", id)
	}
	o.Items, err = pgx.CollectRows(itemRows, scanOrderItem)
	if err != nil {
		return nil, errors.Wrapf(err, "getting items for order %q", id)
	}

	return &o, nil
}

// List returns orders matching the filter, newest first, with items loaded.
func (r *OrderRepository) List(ctx context.Context, f order.ListFilter) ([]order.Order, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT ` + orderColumns + ` FROM orders`)

	var conds []string
	if f.CustomerID != "" {
		args = append(args, f.CustomerID)
		conds = append(conds, "customer_id = $"+strconv.Itoa(len(args))+"::uuid")
	}
	if f.StoreID != "" {
		args = append(args, f.StoreID)
		conds = append(conds, "store_id = $"+strconv.Itoa(len(args))+"::uuid")
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, "status = $"+strconv.Itoa(len(args)))
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	sb.WriteString(" ORDER BY created_at DESC")

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, errors.Wrap(err, "listing orders")
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrap(err, "listing orders")
	}
	if len(orders) == 0 {
		return []order.Order{}, nil
	}

	return r.attachItems(ctx, orders)
}

// Transition performs a compare-and-set status change. When the target is
// cancelled and the order holds a coupon, the reserved use is released in
// the same transaction.
func (r *OrderRepository) Transition(ctx context.Context, id string, from, to order.Status) (*order.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var couponID *string
	err = tx.QueryRow(ctx, transitionOrderSQL, id, string(from), string(to)).Scan(&couponID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if err := r.pool.QueryRow(ctx, orderExistsSQL, id).Scan(&exists); err != nil {
				return nil, errors.Wrapf(err, "checking order %q", id)
			}
			if !exists {
				return nil, order.ErrNotFound
			}
			return nil, order.ErrStatusChanged
		}
		return nil, errors.Wrapf(err, "transitioning order %q", id)
	}

	if to == order.StatusCancelled && couponID != nil {
		if _, err := tx.Exec(ctx, releaseCouponSQL, *couponID); err != nil {
			return nil, errors.Wrapf(err, "releasing coupon %q", *couponID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit")
	}

	return r.GetByID(ctx, id)
}

// attachItems loads items for all orders in one query.
func (r *OrderRepository) attachItems(ctx context.Context, orders []order.Order) ([]order.Order, error) {
	ids := make([]string, len(orders))
	idx := make(map[string]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		idx[orders[i].ID] = i
	}

	rows, err := r.pool.Query(ctx, getItemsForOrdersSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "getting order items")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			it      order.OrderItem
		)
		if err := rows.Scan(&orderID, &it.FoodID, &it.Quantity, &it.PriceEach, &it.Subtotal); err != nil {
			return nil, errors.Wrap(err, "scanning order item")
		}
		orders[idx[orderID]].Items = append(orders[idx[orderID]].Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "getting order items")
	}

	return orders, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.StoreID, &o.TotalPrice,
		&o.CouponID, &o.FinalPrice, &status, &o.CreatedAt, &o.UpdatedAt,
	)
	o.Status = order.Status(status)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.OrderItem, error) {
	var it order.OrderItem
	err := row.Scan(&it.FoodID, &it.Quantity, &it.PriceEach, &it.Subtotal)
	return it, err
}

// Package order implements the order workflow: pricing line items against
// the food catalog, coupon application, status transitions, and the
// orchestration that ties them to persistence.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/plateful/marketplace-api/internal/domain/coupon"
	"github.com/plateful/marketplace-api/internal/domain/food"
	"github.com/plateful/marketplace-api/internal/domain/store"
)

// Sentinel errors for order persistence.
var (
	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrStatusChanged is returned by Repository.Transition when the stored
	// status no longer matches the expected one.
	ErrStatusChanged = errors.New("order status changed concurrently")
)

// OrderItem is a single line of an order. PriceEach snapshots the food price
// at order time; items are immutable once the order is created.
type OrderItem struct {
	FoodID    string
	Quantity  int
	PriceEach decimal.Decimal
	Subtotal  decimal.Decimal
}

// Order represents a customer order scoped to a single store.
type Order struct {
	ID         string
	CustomerID string
	StoreID    string
	Items      []OrderItem
	TotalPrice decimal.Decimal
	// CouponID references the applied coupon, nil when none was used.
	CouponID   *string
	FinalPrice decimal.Decimal
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Detail is an order with its referenced entities expanded for the caller.
// The expansion is an explicit read-join performed after persistence; stored
// rows stay normalized.
type Detail struct {
	Order
	Store  *store.Store
	Foods  map[string]food.Food
	Coupon *coupon.Coupon
}

// ListFilter narrows a listing. Zero-value fields are ignored.
type ListFilter struct {
	CustomerID string
	StoreID    string
	Status     Status
}

// Repository defines persistence operations for orders. Orders are never
// physically deleted.
type Repository interface {
	// Create persists a new order with its items. When o.CouponID is set the
	// implementation must reserve the coupon use in the same transaction as
	// the insert, returning coupon.ErrUsageLimitReached (and persisting
	// nothing) when the limit is already met.
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, error)
	// Transition moves the order from one status to another as a conditional
	// update: it fails with ErrStatusChanged when the stored status no longer
	// equals from. When to is StatusCancelled and the order carries a coupon,
	// the reserved use is released in the same transaction.
	Transition(ctx context.Context, id string, from, to Status) (*Order, error)
}

// Package coupon implements the discount coupon ledger: coupon rules,
// validation against an order total, and usage-limited reservation counters.
package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when no coupon matches the requested code or id.
	ErrNotFound = errors.New("coupon not found")
	// ErrExpired is returned when the coupon's expiry timestamp has passed.
	ErrExpired = errors.New("coupon has expired")
	// ErrUsageLimitReached is returned when the coupon has exhausted its
	// allowed uses, either at validation time or when a concurrent
	// reservation claims the last use first.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrCodeExists is returned when creating or renaming a coupon would
	// duplicate an existing code.
	ErrCodeExists = errors.New("coupon code already exists")
)

// MinimumOrderError indicates the order total is below the coupon's
// minimum order amount.
type MinimumOrderError struct {
	Minimum decimal.Decimal
}

func (e *MinimumOrderError) Error() string {
	return fmt.Sprintf("minimum order amount is %s", e.Minimum)
}

// Coupon is a percentage discount with an expiry, a usage limit, and an
// optional cap on the absolute discount amount.
//
// UsedCount is mutated only through Repository.Reserve and Release; the
// invariant 0 <= UsedCount <= UsageLimit holds at all times.
type Coupon struct {
	ID                 string
	Code               string
	DiscountPercentage decimal.Decimal
	// MaxDiscountAmount caps the absolute discount when non-nil.
	MaxDiscountAmount *decimal.Decimal
	ExpiresAt          time.Time
	UsageLimit         int
	UsedCount          int
	MinimumOrder       decimal.Decimal
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Quote is the result of validating a coupon against an order total.
type Quote struct {
	Coupon     *Coupon
	Discount   decimal.Decimal
	FinalPrice decimal.Decimal
}

// Repository provides coupon persistence and the atomic usage ledger.
//
// Reserve and Release must be implemented as conditional single-statement
// updates so that concurrent redemptions can never push UsedCount past
// UsageLimit or below zero.
type Repository interface {
	Create(ctx context.Context, c *Coupon) error
	GetByID(ctx context.Context, id string) (*Coupon, error)
	// FindByCode looks up a coupon by its case-normalized code.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	List(ctx context.Context) ([]Coupon, error)
	// ListActive returns coupons that are not expired and still have uses left.
	ListActive(ctx context.Context) ([]Coupon, error)
	Update(ctx context.Context, c *Coupon) error
	Delete(ctx context.Context, id string) error

	// Reserve claims one use. Returns ErrUsageLimitReached when the limit
	// is already met.
	Reserve(ctx context.Context, id string) error
	// Release returns one use after a cancellation. A release against a
	// coupon with zero uses is a no-op.
	Release(ctx context.Context, id string) error
}

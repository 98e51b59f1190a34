package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Validator validates a coupon code against an order total and returns the
// computed discount quote. Validation never reserves a use; reservation is a
// separate ledger operation so the public validate endpoint and the order
// workflow can share this logic.
type Validator interface {
	Validate(ctx context.Context, code string, orderTotal decimal.Decimal) (*Quote, error)
}

// RepoValidator implements Validator by looking up coupons from a Repository.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate normalizes the code to uppercase, looks up the coupon, checks
// expiry, usage limit, and minimum order, and computes the discount.
func (v *RepoValidator) Validate(ctx context.Context, code string, orderTotal decimal.Decimal) (*Quote, error) {
	c, err := v.repo.FindByCode(ctx, strings.ToUpper(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if v.now().After(c.ExpiresAt) {
		return nil, ErrExpired
	}

	if c.UsedCount >= c.UsageLimit {
		return nil, ErrUsageLimitReached
	}

	if orderTotal.LessThan(c.MinimumOrder) {
		return nil, &MinimumOrderError{Minimum: c.MinimumOrder}
	}

	discount := Discount(c, orderTotal)

	return &Quote{
		Coupon:     c,
		Discount:   discount,
		FinalPrice: orderTotal.Sub(discount),
	}, nil
}

// Discount computes the discount the coupon grants on the given order total:
// a percentage of the total, clamped to MaxDiscountAmount when set.
func Discount(c *Coupon, orderTotal decimal.Decimal) decimal.Decimal {
	discount := orderTotal.Mul(c.DiscountPercentage).Div(hundred)
	if c.MaxDiscountAmount != nil && discount.GreaterThan(*c.MaxDiscountAmount) {
		discount = *c.MaxDiscountAmount
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return discount.Round(2)
}

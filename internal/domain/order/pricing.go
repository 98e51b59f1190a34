package order

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/plateful/marketplace-api/internal/domain/food"
)

// Sentinel errors for item pricing.
var (
	ErrEmptyItems    = errors.New("order must contain at least one item")
	ErrStoreMismatch = errors.New("all items must be from the same store")
)

// FoodNotFoundError indicates a requested food does not exist.
type FoodNotFoundError struct {
	FoodID string
}

func (e *FoodNotFoundError) Error() string {
	return fmt.Sprintf("food %s not found", e.FoodID)
}

// FoodUnavailableError indicates a requested food is not currently offered.
type FoodUnavailableError struct {
	Name string
}

func (e *FoodUnavailableError) Error() string {
	return fmt.Sprintf("%s is not available", e.Name)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	FoodID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for food %s", e.FoodID)
}

// ItemRequest is one requested line of an incoming order.
type ItemRequest struct {
	FoodID   string
	Quantity int
}

// Pricer resolves requested items against the food catalog and computes the
// order total. It has no side effects beyond the catalog read.
type Pricer struct {
	foods food.Repository
}

// NewPricer creates a Pricer over the given catalog.
func NewPricer(foods food.Repository) *Pricer {
	return &Pricer{foods: foods}
}

// Price validates every requested item against the catalog and the store
// scope, snapshots unit prices, and returns the resolved line items together
// with the order total.
//
// Every food must exist, belong to storeID, and be available; every quantity
// must be positive. Failures surface as the typed errors above.
func (p *Pricer) Price(ctx context.Context, storeID string, reqs []ItemRequest) ([]OrderItem, decimal.Decimal, error) {
	if len(reqs) == 0 {
		return nil, decimal.Zero, ErrEmptyItems
	}

	ids := make([]string, len(reqs))
	for i, r := range reqs {
		if r.Quantity <= 0 {
			return nil, decimal.Zero, &InvalidQuantityError{FoodID: r.FoodID}
		}
		ids[i] = r.FoodID
	}

	// Batch fetch all foods in a single query.
	fetched, err := p.foods.GetByIDs(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, errors.Wrap(err, "get foods")
	}

	byID := make(map[string]food.Food, len(fetched))
	for _, f := range fetched {
		byID[f.ID] = f
	}

	items := make([]OrderItem, len(reqs))
	total := decimal.Zero
	for i, r := range reqs {
		f, ok := byID[r.FoodID]
		if !ok {
			return nil, decimal.Zero, &FoodNotFoundError{FoodID: r.FoodID}
		}
		if f.StoreID != storeID {
			return nil, decimal.Zero, ErrStoreMismatch
		}
		if !f.IsAvailable {
			return nil, decimal.Zero, &FoodUnavailableError{Name: f.Name}
		}

		subtotal := f.Price.Mul(decimal.NewFromInt(int64(r.Quantity)))
		items[i] = OrderItem{
			FoodID:    f.ID,
			Quantity:  r.Quantity,
			PriceEach: f.Price,
			Subtotal:  subtotal,
		}
		total = total.Add(subtotal)
	}

	return items, total.Round(2), nil
}

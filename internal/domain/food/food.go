// Package food exposes the read-only food catalog the order workflow
// prices against. Catalog management lives in a separate service.
package food

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested food does not exist.
var ErrNotFound = errors.New("food not found")

// Food represents a catalog item offered by a store.
type Food struct {
	ID          string
	StoreID     string
	Name        string
	Price       decimal.Decimal
	IsAvailable bool
}

// Repository defines read operations for the food catalog.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Food, error)
	GetByIDs(ctx context.Context, ids []string) ([]Food, error)
}

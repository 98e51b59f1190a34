// Package store exposes the read-only store directory used for order
// scoping and seller authorization.
package store

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested store does not exist.
var ErrNotFound = errors.New("store not found")

// Store represents a seller's storefront.
type Store struct {
	ID      string
	OwnerID string
	Name    string
}

// Repository defines read operations for the store directory.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Store, error)
	// FindByOwner returns the store owned by the given user, or ErrNotFound
	// when the user owns none.
	FindByOwner(ctx context.Context, ownerID string) (*Store, error)
}

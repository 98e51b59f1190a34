package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/plateful/marketplace-api/internal/domain/store"
)

const (
	getStoreByIDSQL = `SELECT id::text, owner_id::text, name
		FROM stores WHERE id = $1::uuid`

	findStoreByOwnerSQL = `SELECT id::text, owner_id::text, name
		FROM stores WHERE owner_id = $1::uuid`
)

var _ store.Repository = (*StoreRepository)(nil)

// StoreRepository implements store.Repository backed by PostgreSQL.
type StoreRepository struct {
	pool *pgxpool.Pool
}

// NewStoreRepository returns a StoreRepository that uses the given pool.
func NewStoreRepository(pool *pgxpool.Pool) *StoreRepository {
	return &StoreRepository{pool: pool}
}

// GetByID returns a single store by its identifier.
func (r *StoreRepository) GetByID(ctx context.Context, id string) (*store.Store, error) {
	return r.queryOne(ctx, getStoreByIDSQL, id)
}

// FindByOwner returns the store owned by the given user.
func (r *StoreRepository) FindByOwner(ctx context.Context, ownerID string) (*store.Store, error) {
	return r.queryOne(ctx, findStoreByOwnerSQL, ownerID)
}

func (r *StoreRepository) queryOne(ctx context.Context, sql, arg string) (*store.Store, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, errors.Wrap(err, "querying store")
	}

	s, err := pgx.CollectExactlyOneRow(rows, scanStore)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "querying store")
	}
	return &s, nil
}

func scanStore(row pgx.CollectableRow) (store.Store, error) {
	var s store.Store
	err := row.Scan(&s.ID, &s.OwnerID, &s.Name)
	return s, err
}

package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/plateful/marketplace-api/internal/domain/food"
)

const (
	getFoodByIDSQL = `SELECT id::text, store_id::text, name, price, is_available
		FROM foods WHERE id = $1::uuid`

	getFoodsByIDsSQL = `SELECT id::text, store_id::text, name, price, is_available
		FROM foods WHERE id = ANY($1::uuid[])`
)

var _ food.Repository = (*FoodRepository)(nil)

// FoodRepository implements food.Repository backed by PostgreSQL.
type FoodRepository struct {
	pool *pgxpool.Pool
}

// NewFoodRepository returns a FoodRepository that uses the given pool.
func NewFoodRepository(pool *pgxpool.Pool) *FoodRepository {
	return &FoodRepository{pool: pool}
}

// GetByID returns a single food by its identifier.
func (r *FoodRepository) GetByID(ctx context.Context, id string) (*food.Food, error) {
	rows, err := r.pool.Query(ctx, getFoodByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "getting food %q", id)
	}

	f, err := pgx.CollectExactlyOneRow(rows, scanFood)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, food.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting food %q", id)
	}
	return &f, nil
}

// GetByIDs returns foods matching any of the given IDs.
func (r *FoodRepository) GetByIDs(ctx context.Context, ids []string) ([]food.Food, error) {
	rows, err := r.pool.Query(ctx, getFoodsByIDsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "getting foods by ids")
	}
	return pgx.CollectRows(rows, scanFood)
}

func scanFood(row pgx.CollectableRow) (food.Food, error) {
	var f food.Food
	err := row.Scan(&f.ID, &f.StoreID, &f.Name, &f.Price, &f.IsAvailable)
	return f, err
}

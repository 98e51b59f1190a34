// Command seed-db loads a demo catalog (stores, foods, coupons) into the
// database. The catalog is a JSON file, optionally gzip-compressed.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/plateful/marketplace-api/internal/storage/postgres"
)

type catalogJSON struct {
	Stores  []storeJSON  `json:"stores"`
	Foods   []foodJSON   `json:"foods"`
	Coupons []couponJSON `json:"coupons"`
}

type storeJSON struct {
	ID      string `json:"id"`
	OwnerID string `json:"ownerId"`
	Name    string `json:"name"`
}

type foodJSON struct {
	ID          string          `json:"id"`
	StoreID     string          `json:"storeId"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	IsAvailable bool            `json:"isAvailable"`
}

type couponJSON struct {
	ID                 string           `json:"id"`
	Code               string           `json:"code"`
	DiscountPercentage decimal.Decimal  `json:"discountPercentage"`
	MaxDiscountAmount  *decimal.Decimal `json:"maxDiscountAmount"`
	ExpiresAt          time.Time        `json:"expiresAt"`
	UsageLimit         int              `json:"usageLimit"`
	MinimumOrder       decimal.Decimal  `json:"minimumOrder"`
}

func main() {
	var (
		databaseURL string
		catalogFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file (.gz supported)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	catalog, err := readCatalog(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog")
	}

	if err := seedStores(ctx, pool, catalog.Stores); err != nil {
		return errors.Wrap(err, "seed stores")
	}
	if err := seedFoods(ctx, pool, catalog.Foods); err != nil {
		return errors.Wrap(err, "seed foods")
	}
	if err := seedCoupons(ctx, pool, catalog.Coupons); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	return nil
}

func readCatalog(path string) (*catalogJSON, error) {
	slog.Info("reading catalog file", slog.String("path", path))

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer gz.Close()
		r = gz
	}

	var catalog catalogJSON
	if err := json.NewDecoder(r).Decode(&catalog); err != nil {
		return nil, errors.Wrap(err, "parse catalog JSON")
	}
	return &catalog, nil
}

const upsertStoreSQL = `INSERT INTO stores (id, owner_id, name)
VALUES ($1::uuid, $2::uuid, $3)
ON CONFLICT (id) DO UPDATE SET owner_id = EXCLUDED.owner_id, name = EXCLUDED.name`

func seedStores(ctx context.Context, pool *pgxpool.Pool, stores []storeJSON) error {
	slog.Info("upserting stores", slog.Int("count", len(stores)))

	for _, s := range stores {
		if _, err := pool.Exec(ctx, upsertStoreSQL, s.ID, s.OwnerID, s.Name); err != nil {
			return errors.Wrapf(err, "upsert store %s", s.ID)
		}
		slog.Info("upserted store", slog.String("id", s.ID), slog.String("name", s.Name))
	}
	return nil
}

const upsertFoodSQL = `INSERT INTO foods (id, store_id, name, price, is_available)
VALUES ($1::uuid, $2::uuid, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
	store_id = EXCLUDED.store_id,
	name = EXCLUDED.name,
	price = EXCLUDED.price,
	is_available = EXCLUDED.is_available`

func seedFoods(ctx context.Context, pool *pgxpool.Pool, foods []foodJSON) error {
	slog.Info("upserting foods", slog.Int("count", len(foods)))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for _, f := range foods {
		g.Go(func() error {
			if _, err := pool.Exec(ctx, upsertFoodSQL, f.ID, f.StoreID, f.Name, f.Price, f.IsAvailable); err != nil {
				return errors.Wrapf(err, "upsert food %s", f.ID)
			}
			return nil
		})
	}
	return g.Wait()
}

const upsertCouponSQL = `INSERT INTO coupons
	(id, code, discount_percentage, max_discount_amount, expires_at, usage_limit, minimum_order)
VALUES ($1::uuid, $2, $3, $4, $5, $6, $7)
ON CONFLICT (code) DO UPDATE SET
	discount_percentage = EXCLUDED.discount_percentage,
	max_discount_amount = EXCLUDED.max_discount_amount,
	expires_at = EXCLUDED.expires_at,
	usage_limit = EXCLUDED.usage_limit,
	minimum_order = EXCLUDED.minimum_order,
	updated_at = now()`

func seedCoupons(ctx context.Context, pool *pgxpool.Pool, coupons []couponJSON) error {
	slog.Info("upserting coupons", slog.Int("count", len(coupons)))

	for _, c := range coupons {
		var maxDiscount any
		if c.MaxDiscountAmount != nil {
			maxDiscount = *c.MaxDiscountAmount
		}
		if _, err := pool.Exec(ctx, upsertCouponSQL,
			c.ID, strings.ToUpper(c.Code), c.DiscountPercentage, maxDiscount,
			c.ExpiresAt, c.UsageLimit, c.MinimumOrder,
		); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}
		slog.Info("upserted coupon", slog.String("code", c.Code))
	}
	return nil
}

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

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/rentkart/internal/domain/auth"
	"github.com/xenking/rentkart/internal/domain/product"
	"github.com/xenking/rentkart/internal/storage/postgres"
)

type productJSON struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Category          string          `json:"category"`
	Price             decimal.Decimal `json:"price"`
	RentalPricePerDay decimal.Decimal `json:"rentalPricePerDay"`
	RentalDeposit     decimal.Decimal `json:"rentalDeposit"`
	StockQuantity     int             `json:"stockQuantity"`
	IsAvailable       bool            `json:"isAvailable"`
	CanBeRented       bool            `json:"canBeRented"`
	ImageURL          string          `json:"imageUrl"`
}

type seedKey struct {
	id     string
	key    string
	userID string
	name   string
	email  string
	scopes []string
}

func main() {
	var (
		databaseURL  string
		productsFile string
		userKey      string
		adminKey     string
		apiKeyPepper string
		workers      int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file, optionally gzipped (.gz)")
	flag.StringVar(&userKey, "user-key", "", "API key of the demo customer (or RENTKART_SEED_USER_KEY env)")
	flag.StringVar(&adminKey, "admin-key", "", "API key of the admin (or RENTKART_SEED_ADMIN_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or RENTKART_API_KEY_PEPPER env)")
	flag.IntVar(&workers, "workers", 4, "concurrent product upserts")
	flag.Parse()

	databaseURL = orEnv(databaseURL, "DATABASE_URL")
	userKey = orEnv(userKey, "RENTKART_SEED_USER_KEY")
	adminKey = orEnv(adminKey, "RENTKART_SEED_ADMIN_KEY")
	apiKeyPepper = orEnv(apiKeyPepper, "RENTKART_API_KEY_PEPPER")

	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if userKey == "" || adminKey == "" {
		slog.Error("API keys are required: set --user-key and --admin-key")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	keys := []seedKey{
		{id: "demo-user", key: userKey, userID: "demo-user", name: "Demo customer", email: "customer@rentkart.test"},
		{id: "admin", key: adminKey, userID: "admin", name: "Administrator", email: "admin@rentkart.test", scopes: []string{auth.ScopeAdmin}},
	}
	if err := run(ctx, databaseURL, productsFile, apiKeyPepper, keys, workers); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func orEnv(v, env string) string {
	if v != "" {
		return v
	}
	return os.Getenv(env)
}

func run(ctx context.Context, databaseURL, productsFile, pepper string, keys []seedKey, workers int) error {
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

	products, err := readProducts(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products")
	}
	if err := seedProducts(ctx, postgres.NewProductRepository(pool), products, workers); err != nil {
		return errors.Wrap(err, "seed products")
	}

	apikeys := postgres.NewAPIKeyRepository(pool)
	for _, k := range keys {
		info := auth.APIKeyInfo{
			ID:      k.id,
			KeyHash: auth.HashKey([]byte(pepper), k.key),
			UserID:  k.userID,
			Name:    k.name,
			Scopes:  k.scopes,
		}
		if err := apikeys.Upsert(ctx, info, k.email); err != nil {
			return errors.Wrapf(err, "seed api key %s", k.id)
		}
		slog.Info("upserted API key", slog.String("id", k.id), slog.Any("scopes", k.scopes))
	}

	return nil
}

func readProducts(path string) ([]product.Product, error) {
	slog.Info("reading products file", slog.String("path", path))

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "gzip")
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}

	var raw []productJSON
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "parse products JSON")
	}

	out := make([]product.Product, 0, len(raw))
	for _, p := range raw {
		out = append(out, product.Product{
			ID:                p.ID,
			Name:              p.Name,
			Category:          p.Category,
			Price:             p.Price,
			RentalPricePerDay: p.RentalPricePerDay,
			RentalDeposit:     p.RentalDeposit,
			StockQuantity:     p.StockQuantity,
			IsAvailable:       p.IsAvailable,
			CanBeRented:       p.CanBeRented,
			ImageURL:          p.ImageURL,
		})
	}
	return out, nil
}

type productUpserter interface {
	Upsert(ctx context.Context, p product.Product) error
}

func seedProducts(ctx context.Context, repo productUpserter, products []product.Product, workers int) error {
	slog.Info("upserting products", slog.Int("count", len(products)), slog.Int("workers", workers))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for _, p := range products {
		g.Go(func() error {
			if err := repo.Upsert(ctx, p); err != nil {
				return errors.Wrapf(err, "upsert product %s", p.ID)
			}
			slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
			return nil
		})
	}
	return g.Wait()
}

// Package postgres implements the domain repositories on PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/rentkart/db"
	"github.com/xenking/rentkart/internal/domain/product"
)

// NewPool creates a pgxpool.Pool configured with shopspring/decimal support
// for NUMERIC columns.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	return pool, nil
}

// RunMigrations executes the embedded DDL schema against the pool.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, db.Schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// validID reports whether id can be a UUID primary key. Malformed ids are
// treated as missing rows instead of surfacing a cast error.
func validID(id string) bool {
	return uuid.Validate(id) == nil
}

const productColumns = `p.id, p.name, p.category, p.price, p.rental_price_per_day, p.rental_deposit,
	p.stock_quantity, p.is_available, p.can_be_rented, p.image_url`

func productDest(p *product.Product) []any {
	return []any{
		&p.ID, &p.Name, &p.Category, &p.Price, &p.RentalPricePerDay, &p.RentalDeposit,
		&p.StockQuantity, &p.IsAvailable, &p.CanBeRented, &p.ImageURL,
	}
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

func derefInt(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

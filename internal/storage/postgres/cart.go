package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/rentkart/internal/domain/cart"
	"github.com/xenking/rentkart/internal/domain/product"
)

const (
	cartLineColumns = `ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.is_rental, ci.rental_days, ci.price_at_addition`

	getCartByUserSQL = `SELECT id, user_id, created_at FROM carts WHERE user_id = $1`

	listCartLinesSQL = `SELECT ` + cartLineColumns + `, ` + productColumns + `
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at, ci.id`

	ensureCartSQL = `INSERT INTO carts (id, user_id) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id`

	upsertCartLineSQL = `INSERT INTO cart_items AS ci (id, cart_id, product_id, quantity, is_rental, rental_days, price_at_addition)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (cart_id, product_id, is_rental) DO UPDATE SET quantity = ci.quantity + EXCLUDED.quantity
		RETURNING ` + cartLineColumns

	getCartLineSQL = `SELECT ` + cartLineColumns + `, ` + productColumns + `
		FROM cart_items ci
		JOIN carts c ON c.id = ci.cart_id
		JOIN products p ON p.id = ci.product_id
		WHERE ci.id = $1 AND c.user_id = $2`

	updateCartLineSQL = `UPDATE cart_items ci SET quantity = $3, rental_days = $4, price_at_addition = $5
		FROM carts c
		WHERE ci.id = $1 AND ci.cart_id = c.id AND c.user_id = $2`

	deleteCartLineSQL = `DELETE FROM cart_items ci USING carts c
		WHERE ci.id = $1 AND ci.cart_id = c.id AND c.user_id = $2`

	clearCartSQL = `DELETE FROM cart_items WHERE cart_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// GetByUser returns the user's cart with its lines and their products.
func (r *CartRepository) GetByUser(ctx context.Context, userID string) (*cart.Cart, error) {
	var c cart.Cart
	err := r.pool.QueryRow(ctx, getCartByUserSQL, userID).Scan(&c.ID, &c.UserID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart of %q: %w", userID, err)
	}

	rows, err := r.pool.Query(ctx, listCartLinesSQL, c.ID)
	if err != nil {
		return nil, fmt.Errorf("listing cart lines: %w", err)
	}
	c.Lines, err = pgx.CollectRows(rows, scanCartLineWithProduct)
	if err != nil {
		return nil, fmt.Errorf("listing cart lines: %w", err)
	}
	return &c, nil
}

// AddLine creates the cart on first use and merges the line into an existing
// one with the same product and rental flag.
func (r *CartRepository) AddLine(ctx context.Context, userID string, l cart.Line) (*cart.Line, error) {
	var added cart.Line
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var cartID string
		if err := tx.QueryRow(ctx, ensureCartSQL, uuid.NewString(), userID).Scan(&cartID); err != nil {
			return fmt.Errorf("ensuring cart: %w", err)
		}

		rows, err := tx.Query(ctx, upsertCartLineSQL,
			uuid.NewString(), cartID, l.ProductID, l.Quantity, l.IsRental, nullInt(l.RentalDays), l.PriceAtAddition,
		)
		if err != nil {
			return fmt.Errorf("upserting cart line: %w", err)
		}
		added, err = pgx.CollectExactlyOneRow(rows, scanCartLine)
		if err != nil {
			return fmt.Errorf("upserting cart line: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &added, nil
}

// GetLine returns a line of the user's cart with its product.
func (r *CartRepository) GetLine(ctx context.Context, userID, lineID string) (*cart.Line, error) {
	if !validID(lineID) {
		return nil, cart.ErrLineNotFound
	}
	rows, err := r.pool.Query(ctx, getCartLineSQL, lineID, userID)
	if err != nil {
		return nil, fmt.Errorf("getting cart line %q: %w", lineID, err)
	}
	l, err := pgx.CollectExactlyOneRow(rows, scanCartLineWithProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrLineNotFound
		}
		return nil, fmt.Errorf("getting cart line %q: %w", lineID, err)
	}
	return &l, nil
}

// UpdateLine stores the quantity, rental period and price of a line.
func (r *CartRepository) UpdateLine(ctx context.Context, userID string, l cart.Line) error {
	if !validID(l.ID) {
		return cart.ErrLineNotFound
	}
	tag, err := r.pool.Exec(ctx, updateCartLineSQL, l.ID, userID, l.Quantity, nullInt(l.RentalDays), l.PriceAtAddition)
	if err != nil {
		return fmt.Errorf("updating cart line %q: %w", l.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrLineNotFound
	}
	return nil
}

// RemoveLine deletes a line of the user's cart.
func (r *CartRepository) RemoveLine(ctx context.Context, userID, lineID string) error {
	if !validID(lineID) {
		return cart.ErrLineNotFound
	}
	tag, err := r.pool.Exec(ctx, deleteCartLineSQL, lineID, userID)
	if err != nil {
		return fmt.Errorf("deleting cart line %q: %w", lineID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrLineNotFound
	}
	return nil
}

// Clear empties the user's cart. The cart row itself is kept.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	var cartID string
	err := r.pool.QueryRow(ctx, `SELECT id FROM carts WHERE user_id = $1`, userID).Scan(&cartID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cart.ErrNotFound
		}
		return fmt.Errorf("getting cart of %q: %w", userID, err)
	}
	if _, err := r.pool.Exec(ctx, clearCartSQL, cartID); err != nil {
		return fmt.Errorf("clearing cart %q: %w", cartID, err)
	}
	return nil
}

func cartLineDest(l *cart.Line, days **int) []any {
	return []any{&l.ID, &l.CartID, &l.ProductID, &l.Quantity, &l.IsRental, days, &l.PriceAtAddition}
}

func scanCartLine(row pgx.CollectableRow) (cart.Line, error) {
	var (
		l    cart.Line
		days *int
	)
	err := row.Scan(cartLineDest(&l, &days)...)
	l.RentalDays = derefInt(days)
	return l, err
}

func scanCartLineWithProduct(row pgx.CollectableRow) (cart.Line, error) {
	var (
		l    cart.Line
		days *int
	)
	l.Product = new(product.Product)
	err := row.Scan(append(cartLineDest(&l, &days), productDest(l.Product)...)...)
	l.RentalDays = derefInt(days)
	return l, err
}

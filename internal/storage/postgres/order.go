package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/rentkart/internal/domain/cart"
	"github.com/xenking/rentkart/internal/domain/order"
	"github.com/xenking/rentkart/internal/domain/product"
)

const (
	orderColumns = `o.id, o.user_id, o.total_amount, o.status, o.shipping_address, o.payment_method, o.created_at, o.updated_at`

	orderLineColumns = `oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price, oi.is_rental, oi.rental_days,
		oi.rental_start_date, oi.rental_end_date`

	lockCartSQL = `SELECT id, user_id, created_at FROM carts WHERE user_id = $1 FOR UPDATE`

	// Products are locked in id order so concurrent checkouts sharing
	// products cannot deadlock.
	lockCartProductsSQL = `SELECT ` + productColumns + ` FROM products p
		WHERE p.id IN (SELECT product_id FROM cart_items WHERE cart_id = $1)
		ORDER BY p.id
		FOR UPDATE`

	listLockedCartLinesSQL = `SELECT ` + cartLineColumns + ` FROM cart_items ci
		WHERE ci.cart_id = $1 ORDER BY ci.created_at, ci.id`

	insertOrderSQL = `INSERT INTO orders (id, user_id, total_amount, status, shipping_address, payment_method, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	insertOrderLineSQL = `INSERT INTO order_items (id, order_id, product_id, quantity, price, is_rental, rental_days,
			rental_start_date, rental_end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	decrementStockSQL = `UPDATE products SET stock_quantity = stock_quantity - $2
		WHERE id = $1 AND stock_quantity >= $2`

	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders o
		WHERE o.user_id = $1 ORDER BY o.created_at DESC, o.id`

	listOrderLinesByUserSQL = `SELECT ` + orderLineColumns + `, ` + productColumns + `
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN products p ON p.id = oi.product_id
		WHERE o.user_id = $1
		ORDER BY oi.order_id, oi.id`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1`

	getOrderForUserSQL = `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1 AND o.user_id = $2`

	listOrderLinesSQL = `SELECT ` + orderLineColumns + `, ` + productColumns + `
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.id`

	updateOrderStatusSQL = `UPDATE orders SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Checkout runs build against the locked cart and persists its result. The
// cart row and every product in it stay locked until commit, so stock checks
// made by build cannot be invalidated by a concurrent checkout.
func (r *OrderRepository) Checkout(ctx context.Context, userID string, build func(c *cart.Cart) (*order.Order, error)) (*order.Order, error) {
	var out *order.Order
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		c, err := lockCart(ctx, tx, userID)
		if err != nil {
			return err
		}

		o, err := build(c)
		if err != nil {
			return err
		}

		if err := insertOrder(ctx, tx, o); err != nil {
			return err
		}
		for _, l := range o.Lines {
			if l.IsRental {
				continue
			}
			tag, err := tx.Exec(ctx, decrementStockSQL, l.ProductID, l.Quantity)
			if err != nil {
				return fmt.Errorf("decrementing stock of %q: %w", l.ProductID, err)
			}
			if tag.RowsAffected() == 0 {
				name := l.ProductID
				if l.Product != nil {
					name = l.Product.Name
				}
				return &order.UnavailableError{ProductID: l.ProductID, Name: name, Reason: "has insufficient stock"}
			}
		}
		if _, err := tx.Exec(ctx, clearCartSQL, c.ID); err != nil {
			return fmt.Errorf("clearing cart %q: %w", c.ID, err)
		}

		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func lockCart(ctx context.Context, tx pgx.Tx, userID string) (*cart.Cart, error) {
	var c cart.Cart
	if err := tx.QueryRow(ctx, lockCartSQL, userID).Scan(&c.ID, &c.UserID, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("locking cart of %q: %w", userID, err)
	}

	rows, err := tx.Query(ctx, lockCartProductsSQL, c.ID)
	if err != nil {
		return nil, fmt.Errorf("locking cart products: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("locking cart products: %w", err)
	}
	byID := make(map[string]*product.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	rows, err = tx.Query(ctx, listLockedCartLinesSQL, c.ID)
	if err != nil {
		return nil, fmt.Errorf("listing cart lines: %w", err)
	}
	c.Lines, err = pgx.CollectRows(rows, scanCartLine)
	if err != nil {
		return nil, fmt.Errorf("listing cart lines: %w", err)
	}
	for i := range c.Lines {
		c.Lines[i].Product = byID[c.Lines[i].ProductID]
	}
	return &c, nil
}

func insertOrder(ctx context.Context, tx pgx.Tx, o *order.Order) error {
	o.ID = uuid.NewString()
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = o.CreatedAt

	if _, err := tx.Exec(ctx, insertOrderSQL,
		o.ID, o.UserID, o.TotalAmount, string(o.Status), o.ShippingAddress, o.PaymentMethod, o.CreatedAt, o.UpdatedAt,
	); err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}

	batch := &pgx.Batch{}
	for i := range o.Lines {
		l := &o.Lines[i]
		l.ID = uuid.NewString()
		l.OrderID = o.ID
		batch.Queue(insertOrderLineSQL,
			l.ID, l.OrderID, l.ProductID, l.Quantity, l.Price, l.IsRental, nullInt(l.RentalDays),
			l.RentalStartDate, l.RentalEndDate,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting order lines: %w", err)
	}
	return nil
}

// ListByUser returns the user's orders with their lines, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders of %q: %w", userID, err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders of %q: %w", userID, err)
	}

	rows, err = r.pool.Query(ctx, listOrderLinesByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing order lines of %q: %w", userID, err)
	}
	lines, err := pgx.CollectRows(rows, scanOrderLine)
	if err != nil {
		return nil, fmt.Errorf("listing order lines of %q: %w", userID, err)
	}

	byOrder := make(map[string][]order.Line, len(orders))
	for _, l := range lines {
		byOrder[l.OrderID] = append(byOrder[l.OrderID], l)
	}
	for i := range orders {
		orders[i].Lines = byOrder[orders[i].ID]
	}
	return orders, nil
}

// GetForUser returns an order owned by userID.
func (r *OrderRepository) GetForUser(ctx context.Context, userID, orderID string) (*order.Order, error) {
	if !validID(orderID) {
		return nil, order.ErrNotFound
	}
	return r.get(ctx, getOrderForUserSQL, orderID, userID)
}

// Get returns an order regardless of owner.
func (r *OrderRepository) Get(ctx context.Context, orderID string) (*order.Order, error) {
	if !validID(orderID) {
		return nil, order.ErrNotFound
	}
	return r.get(ctx, getOrderSQL, orderID)
}

func (r *OrderRepository) get(ctx context.Context, query string, args ...any) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order: %w", err)
	}

	rows, err = r.pool.Query(ctx, listOrderLinesSQL, o.ID)
	if err != nil {
		return nil, fmt.Errorf("listing lines of order %q: %w", o.ID, err)
	}
	o.Lines, err = pgx.CollectRows(rows, scanOrderLine)
	if err != nil {
		return nil, fmt.Errorf("listing lines of order %q: %w", o.ID, err)
	}
	return &o, nil
}

// UpdateStatus performs a compare-and-set on the order status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, from, to order.Status) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, orderID, string(from), string(to))
	if err != nil {
		return fmt.Errorf("updating status of order %q: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrStatusChanged
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.TotalAmount, &status, &o.ShippingAddress, &o.PaymentMethod, &o.CreatedAt, &o.UpdatedAt)
	o.Status = order.Status(status)
	return o, err
}

func scanOrderLine(row pgx.CollectableRow) (order.Line, error) {
	var (
		l    order.Line
		days *int
	)
	l.Product = new(product.Product)
	dest := []any{
		&l.ID, &l.OrderID, &l.ProductID, &l.Quantity, &l.Price, &l.IsRental, &days,
		&l.RentalStartDate, &l.RentalEndDate,
	}
	err := row.Scan(append(dest, productDest(l.Product)...)...)
	l.RentalDays = derefInt(days)
	return l, err
}

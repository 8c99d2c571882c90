package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/rentkart/internal/domain/order"
	"github.com/xenking/rentkart/internal/domain/payment"
)

const (
	paymentColumns = `pm.id, pm.order_id, pm.method, pm.amount, pm.phone_number, pm.status, pm.external_reference,
		pm.poll_url, pm.invoice_number, pm.created_at, pm.updated_at`

	claimOrderForPaymentSQL = `UPDATE orders SET status = 'payment_pending', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`

	releaseOrderSQL = `UPDATE orders SET status = 'pending', updated_at = NOW()
		WHERE id = $1 AND status = 'payment_pending'
			AND NOT EXISTS (SELECT 1 FROM payments WHERE order_id = $1 AND status = 'pending')`

	insertPaymentSQL = `INSERT INTO payments (id, order_id, method, amount, phone_number, status, external_reference,
			poll_url, invoice_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	invoiceExistsSQL = `SELECT EXISTS (SELECT 1 FROM payments WHERE invoice_number = $1)`

	getPaymentSQL = `SELECT ` + paymentColumns + ` FROM payments pm WHERE pm.id = $1`

	getPaymentForUserSQL = `SELECT ` + paymentColumns + ` FROM payments pm
		JOIN orders o ON o.id = pm.order_id
		WHERE pm.id = $1 AND o.user_id = $2`

	findPaymentByReferenceSQL = `SELECT ` + paymentColumns + ` FROM payments pm
		WHERE (pm.external_reference <> '' AND pm.external_reference = $1) OR pm.invoice_number = $1
		ORDER BY pm.created_at DESC
		LIMIT 1`

	listPaymentsByUserSQL = `SELECT ` + paymentColumns + ` FROM payments pm
		JOIN orders o ON o.id = pm.order_id
		WHERE o.user_id = $1
		ORDER BY pm.created_at DESC, pm.id`

	resolvePaymentSQL = `UPDATE payments SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING order_id`

	resolveOrderSQL = `UPDATE orders SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)`

	// Same lock order as checkout so a restock racing a checkout cannot
	// deadlock.
	lockOrderProductsSQL = `SELECT p.id FROM products p
		WHERE p.id IN (SELECT product_id FROM order_items WHERE order_id = $1 AND NOT is_rental)
		ORDER BY p.id
		FOR UPDATE`

	restockOrderSQL = `UPDATE products p SET stock_quantity = p.stock_quantity + r.quantity
		FROM (SELECT product_id, SUM(quantity) AS quantity FROM order_items
			WHERE order_id = $1 AND NOT is_rental
			GROUP BY product_id) r
		WHERE p.id = r.product_id`

	insertRentalSQL = `INSERT INTO rentals (id, order_item_id, start_date, end_date, deposit_amount, deposit_status,
			late_fee, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (order_item_id) DO NOTHING`
)

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository backed by PostgreSQL.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository returns a PaymentRepository that uses the given pool.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// ClaimOrder moves a pending order to payment_pending.
func (r *PaymentRepository) ClaimOrder(ctx context.Context, orderID string) error {
	tag, err := r.pool.Exec(ctx, claimOrderForPaymentSQL, orderID)
	if err != nil {
		return fmt.Errorf("claiming order %q: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrAlreadyProcessed
	}
	return nil
}

// ReleaseOrder returns a claimed order without a pending payment to pending.
func (r *PaymentRepository) ReleaseOrder(ctx context.Context, orderID string) error {
	if _, err := r.pool.Exec(ctx, releaseOrderSQL, orderID); err != nil {
		return fmt.Errorf("releasing order %q: %w", orderID, err)
	}
	return nil
}

// Create inserts a pending payment for a claimed order.
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	p.ID = uuid.NewString()
	err := r.pool.QueryRow(ctx, insertPaymentSQL,
		p.ID, p.OrderID, p.Method, p.Amount, nullString(p.PhoneNumber), string(p.Status),
		p.ExternalReference, p.PollURL, p.InvoiceNumber,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting payment: %w", err)
	}
	return nil
}

// InvoiceExists reports whether an invoice number is already used.
func (r *PaymentRepository) InvoiceExists(ctx context.Context, invoice string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, invoiceExistsSQL, invoice).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking invoice %q: %w", invoice, err)
	}
	return exists, nil
}

// Get returns a payment by id.
func (r *PaymentRepository) Get(ctx context.Context, id string) (*payment.Payment, error) {
	if !validID(id) {
		return nil, payment.ErrNotFound
	}
	return r.one(ctx, getPaymentSQL, id)
}

// GetForUser returns a payment whose order belongs to userID.
func (r *PaymentRepository) GetForUser(ctx context.Context, userID, id string) (*payment.Payment, error) {
	if !validID(id) {
		return nil, payment.ErrNotFound
	}
	return r.one(ctx, getPaymentForUserSQL, id, userID)
}

// FindByReference returns the latest payment with the given gateway
// reference or invoice number.
func (r *PaymentRepository) FindByReference(ctx context.Context, ref string) (*payment.Payment, error) {
	return r.one(ctx, findPaymentByReferenceSQL, ref)
}

func (r *PaymentRepository) one(ctx context.Context, query string, args ...any) (*payment.Payment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("getting payment: %w", err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPayment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNotFound
		}
		return nil, fmt.Errorf("getting payment: %w", err)
	}
	return &p, nil
}

// ListByUser returns the user's payments, newest first.
func (r *PaymentRepository) ListByUser(ctx context.Context, userID string) ([]payment.Payment, error) {
	rows, err := r.pool.Query(ctx, listPaymentsByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing payments of %q: %w", userID, err)
	}
	ps, err := pgx.CollectRows(rows, scanPayment)
	if err != nil {
		return nil, fmt.Errorf("listing payments of %q: %w", userID, err)
	}
	return ps, nil
}

// Resolve moves a pending payment to its terminal status and applies the
// order side effects. The payment row lock taken by the first UPDATE
// serializes concurrent resolvers; the loser sees a non-pending row and
// changes nothing. Order side effects (restock, rentals) apply only if the
// order itself was still in one of res.OrderFrom.
func (r *PaymentRepository) Resolve(ctx context.Context, id string, res payment.Resolution) (bool, error) {
	var applied bool
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var orderID string
		err := tx.QueryRow(ctx, resolvePaymentSQL, id, string(res.PaymentStatus)).Scan(&orderID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("resolving payment %q: %w", id, err)
		}
		applied = true

		from := make([]string, len(res.OrderFrom))
		for i, s := range res.OrderFrom {
			from[i] = string(s)
		}
		tag, err := tx.Exec(ctx, resolveOrderSQL, orderID, string(res.OrderStatus), from)
		if err != nil {
			return fmt.Errorf("updating order %q: %w", orderID, err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		if res.Restock {
			if _, err := tx.Exec(ctx, lockOrderProductsSQL, orderID); err != nil {
				return fmt.Errorf("locking products of order %q: %w", orderID, err)
			}
			if _, err := tx.Exec(ctx, restockOrderSQL, orderID); err != nil {
				return fmt.Errorf("restocking order %q: %w", orderID, err)
			}
		}

		batch := &pgx.Batch{}
		for _, rt := range res.Rentals {
			batch.Queue(insertRentalSQL,
				uuid.NewString(), rt.OrderItemID, rt.StartDate, rt.EndDate, rt.DepositAmount,
				string(rt.DepositStatus), rt.LateFee, string(rt.Status),
			)
		}
		if batch.Len() > 0 {
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("creating rentals for order %q: %w", orderID, err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func scanPayment(row pgx.CollectableRow) (payment.Payment, error) {
	var (
		p      payment.Payment
		phone  *string
		status string
	)
	err := row.Scan(
		&p.ID, &p.OrderID, &p.Method, &p.Amount, &phone, &status, &p.ExternalReference,
		&p.PollURL, &p.InvoiceNumber, &p.CreatedAt, &p.UpdatedAt,
	)
	p.PhoneNumber = derefString(phone)
	p.Status = payment.Status(status)
	return p, err
}

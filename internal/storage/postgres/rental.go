package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/rentkart/internal/domain/order"
	"github.com/xenking/rentkart/internal/domain/product"
	"github.com/xenking/rentkart/internal/domain/rental"
)

const (
	rentalColumns = `r.id, r.order_item_id, r.start_date, r.end_date, r.actual_return_date, r.deposit_amount,
		r.deposit_status, r.late_fee, r.status, r.created_at,
		o.id, o.user_id,
		oi.product_id, oi.quantity, oi.price, oi.rental_days,
		p.id, p.name, p.category, p.image_url`

	rentalJoins = `JOIN order_items oi ON oi.id = r.order_item_id
		JOIN orders o ON o.id = oi.order_id
		JOIN products p ON p.id = oi.product_id`

	listRentalsSQL = `SELECT ` + rentalColumns + ` FROM rentals r ` + rentalJoins + `
		ORDER BY r.created_at DESC, r.id`

	listRentalsByUserSQL = `SELECT ` + rentalColumns + ` FROM rentals r ` + rentalJoins + `
		WHERE o.user_id = $1
		ORDER BY r.created_at DESC, r.id`

	getRentalSQL = `SELECT ` + rentalColumns + ` FROM rentals r ` + rentalJoins + ` WHERE r.id = $1`

	saveReturnSQL = `UPDATE rentals SET actual_return_date = $2, late_fee = $3, deposit_status = $4, status = $5
		WHERE id = $1 AND status IN ('active', 'overdue')`

	// The outer select reads from the RETURNING set so it sees the new status.
	markOverdueSQL = `WITH r AS (
			UPDATE rentals SET status = 'overdue'
			WHERE status = 'active' AND end_date < $1
			RETURNING *
		)
		SELECT ` + rentalColumns + ` FROM r ` + rentalJoins + `
		ORDER BY r.end_date, r.id`
)

var _ rental.Repository = (*RentalRepository)(nil)

// RentalRepository implements rental.Repository backed by PostgreSQL.
type RentalRepository struct {
	pool *pgxpool.Pool
}

// NewRentalRepository returns a RentalRepository that uses the given pool.
func NewRentalRepository(pool *pgxpool.Pool) *RentalRepository {
	return &RentalRepository{pool: pool}
}

// ListByUser returns rentals whose order belongs to userID, newest first.
func (r *RentalRepository) ListByUser(ctx context.Context, userID string) ([]rental.Rental, error) {
	return r.list(ctx, listRentalsByUserSQL, userID)
}

// ListAll returns every rental, newest first.
func (r *RentalRepository) ListAll(ctx context.Context) ([]rental.Rental, error) {
	return r.list(ctx, listRentalsSQL)
}

func (r *RentalRepository) list(ctx context.Context, query string, args ...any) ([]rental.Rental, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing rentals: %w", err)
	}
	rs, err := pgx.CollectRows(rows, scanRental)
	if err != nil {
		return nil, fmt.Errorf("listing rentals: %w", err)
	}
	return rs, nil
}

// Get returns a rental with its order line.
func (r *RentalRepository) Get(ctx context.Context, id string) (*rental.Rental, error) {
	if !validID(id) {
		return nil, rental.ErrNotFound
	}
	rows, err := r.pool.Query(ctx, getRentalSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting rental %q: %w", id, err)
	}
	rt, err := pgx.CollectExactlyOneRow(rows, scanRental)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, rental.ErrNotFound
		}
		return nil, fmt.Errorf("getting rental %q: %w", id, err)
	}
	return &rt, nil
}

// SaveReturn stores the settlement of a returned rental.
func (r *RentalRepository) SaveReturn(ctx context.Context, rt *rental.Rental) error {
	tag, err := r.pool.Exec(ctx, saveReturnSQL,
		rt.ID, rt.ActualReturnDate, rt.LateFee, string(rt.DepositStatus), string(rt.Status),
	)
	if err != nil {
		return fmt.Errorf("saving return of rental %q: %w", rt.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return rental.ErrNotReturnable
	}
	return nil
}

// MarkOverdue flags active rentals past their end date in a single statement.
func (r *RentalRepository) MarkOverdue(ctx context.Context, now time.Time) ([]rental.Rental, error) {
	rows, err := r.pool.Query(ctx, markOverdueSQL, now)
	if err != nil {
		return nil, fmt.Errorf("marking overdue rentals: %w", err)
	}
	rs, err := pgx.CollectRows(rows, scanRental)
	if err != nil {
		return nil, fmt.Errorf("marking overdue rentals: %w", err)
	}
	return rs, nil
}

func scanRental(row pgx.CollectableRow) (rental.Rental, error) {
	var (
		rt            rental.Rental
		depositStatus string
		status        string
		days          *int
		p             product.Product
		l             order.Line
	)
	err := row.Scan(
		&rt.ID, &rt.OrderItemID, &rt.StartDate, &rt.EndDate, &rt.ActualReturnDate, &rt.DepositAmount,
		&depositStatus, &rt.LateFee, &status, &rt.CreatedAt,
		&rt.OrderID, &rt.UserID,
		&l.ProductID, &l.Quantity, &l.Price, &days,
		&p.ID, &p.Name, &p.Category, &p.ImageURL,
	)
	rt.DepositStatus = rental.DepositStatus(depositStatus)
	rt.Status = rental.Status(status)

	l.ID = rt.OrderItemID
	l.OrderID = rt.OrderID
	l.IsRental = true
	l.RentalDays = derefInt(days)
	start, end := rt.StartDate, rt.EndDate
	l.RentalStartDate = &start
	l.RentalEndDate = &end
	l.Product = &p
	rt.Item = &l
	return rt, err
}

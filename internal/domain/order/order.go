package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/rentkart/internal/domain/cart"
	"github.com/xenking/rentkart/internal/domain/product"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending        Status = "pending"
	StatusPaymentPending Status = "payment_pending"
	StatusConfirmed      Status = "confirmed"
	StatusProcessing     Status = "processing"
	StatusShipped        Status = "shipped"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPending:        {StatusPaymentPending, StatusCancelled},
	StatusPaymentPending: {StatusConfirmed, StatusCancelled, StatusPending},
	StatusConfirmed:      {StatusProcessing},
	StatusProcessing:     {StatusShipped},
	StatusShipped:        {StatusDelivered},
}

// CanTransitionTo reports whether an order may move from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, st := range transitions[s] {
		if st == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaymentPending, StatusConfirmed, StatusProcessing,
		StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Order is the frozen snapshot of a checkout.
type Order struct {
	ID              string
	UserID          string
	Lines           []Line
	TotalAmount     decimal.Decimal
	Status          Status
	ShippingAddress string
	PaymentMethod   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Line is a single frozen order line. Price is the line total: price times
// quantity for purchases, per-day rate times days for rentals.
type Line struct {
	ID              string
	OrderID         string
	ProductID       string
	Quantity        int
	Price           decimal.Decimal
	IsRental        bool
	RentalDays      int
	RentalStartDate *time.Time
	RentalEndDate   *time.Time
	Product         *product.Product
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Checkout locks the user's cart and the products it references, passes the
	// locked cart to build and, if build succeeds, persists the returned order
	// with its lines, decrements stock for purchase lines and empties the cart
	// in a single transaction. It returns cart.ErrNotFound when the user has no
	// cart.
	Checkout(ctx context.Context, userID string, build func(c *cart.Cart) (*Order, error)) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	// GetForUser returns ErrNotFound for orders owned by someone else.
	GetForUser(ctx context.Context, userID, orderID string) (*Order, error)
	Get(ctx context.Context, orderID string) (*Order, error)
	// UpdateStatus moves the order to `to` only if it is still in `from`, and
	// returns ErrStatusChanged otherwise.
	UpdateStatus(ctx context.Context, orderID string, from, to Status) error
}

package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/rentkart/internal/apperr"
	"github.com/xenking/rentkart/internal/domain/order"
	"github.com/xenking/rentkart/internal/domain/rental"
)

// Sentinel errors for payment operations.
var (
	ErrNotFound           = apperr.NotFound("payment not found")
	ErrInvalidPhone       = apperr.Invalid("invalid phone number")
	ErrUnsupportedCarrier = apperr.Invalid("phone number is not an EcoCash number")
)

// MethodEcocash is the EcoCash mobile money method.
const MethodEcocash = "ecocash"

// Status is the state of a payment attempt. Terminal states are sticky.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s can no longer change.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusFailed || s == StatusCancelled
}

// Payment is one attempt to pay for an order.
type Payment struct {
	ID      string
	OrderID string
	Method  string
	Amount  decimal.Decimal
	// PhoneNumber is the canonical payer number, empty for non-mobile methods.
	PhoneNumber string
	Status      Status
	// ExternalReference is the gateway's reference for the transaction.
	ExternalReference string
	PollURL           string
	InvoiceNumber     string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Resolution is the set of changes a terminal gateway status causes.
type Resolution struct {
	PaymentStatus Status
	// OrderStatus is applied only when the order is currently in one of
	// OrderFrom.
	OrderStatus order.Status
	OrderFrom   []order.Status
	// Restock returns purchase line quantities to stock.
	Restock bool
	Rentals []rental.Rental
}

// Repository defines persistence operations for payments.
type Repository interface {
	// ClaimOrder moves an order from pending to payment_pending. It returns
	// order.ErrAlreadyProcessed when the order is no longer pending.
	ClaimOrder(ctx context.Context, orderID string) error
	// ReleaseOrder moves a claimed order back to pending unless a pending
	// payment exists for it.
	ReleaseOrder(ctx context.Context, orderID string) error
	// Create persists a pending payment for a claimed order.
	Create(ctx context.Context, p *Payment) error
	InvoiceExists(ctx context.Context, invoice string) (bool, error)
	Get(ctx context.Context, id string) (*Payment, error)
	// GetForUser returns ErrNotFound when the payment's order belongs to
	// someone else.
	GetForUser(ctx context.Context, userID, id string) (*Payment, error)
	// FindByReference matches the gateway reference or the invoice number.
	FindByReference(ctx context.Context, ref string) (*Payment, error)
	// ListByUser returns the user's payments, newest first.
	ListByUser(ctx context.Context, userID string) ([]Payment, error)
	// Resolve applies res atomically if the payment is still pending. It
	// reports false when the payment had already reached a terminal state, in
	// which case nothing is changed.
	Resolve(ctx context.Context, id string, res Resolution) (bool, error)
}

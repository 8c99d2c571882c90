package rental

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/rentkart/internal/apperr"
	"github.com/xenking/rentkart/internal/domain/order"
)

// Sentinel errors for rental operations.
var (
	ErrNotFound      = apperr.NotFound("rental not found")
	ErrNotReturnable = apperr.Conflict("rental is not active or overdue")
)

// Status is the lifecycle state of a rental.
type Status string

const (
	StatusActive    Status = "active"
	StatusOverdue   Status = "overdue"
	StatusReturned  Status = "returned"
	StatusCancelled Status = "cancelled"
)

// Returnable reports whether a rental in status s can be checked back in.
func (s Status) Returnable() bool {
	return s == StatusActive || s == StatusOverdue
}

// DepositStatus tracks what happened to the deposit hold.
type DepositStatus string

const (
	DepositHeld              DepositStatus = "held"
	DepositRefunded          DepositStatus = "refunded"
	DepositPartiallyRefunded DepositStatus = "partially_refunded"
)

// Condition is the state an item was returned in. Any value other than
// ConditionDamaged is settled with a full deposit refund.
type Condition string

const (
	ConditionGood    Condition = "good"
	ConditionDamaged Condition = "damaged"
)

// Rental is a time-boxed lease derived from a rental order line. EndDate is
// fixed at creation.
type Rental struct {
	ID               string
	OrderItemID      string
	StartDate        time.Time
	EndDate          time.Time
	ActualReturnDate *time.Time
	DepositAmount    decimal.Decimal
	DepositStatus    DepositStatus
	LateFee          decimal.Decimal
	Status           Status
	CreatedAt        time.Time

	// Read-side data joined through the order line.
	OrderID string
	UserID  string
	Item    *order.Line
}

// FromOrderLine derives the rental record for a rental order line. The deposit
// is the product's per-unit deposit times the line quantity.
func FromOrderLine(l order.Line) (Rental, bool) {
	if !l.IsRental || l.RentalStartDate == nil || l.RentalEndDate == nil {
		return Rental{}, false
	}
	deposit := decimal.Zero
	if l.Product != nil {
		deposit = l.Product.RentalDeposit.Mul(decimal.NewFromInt(int64(l.Quantity))).Round(2)
	}
	return Rental{
		OrderItemID:   l.ID,
		StartDate:     *l.RentalStartDate,
		EndDate:       *l.RentalEndDate,
		DepositAmount: deposit,
		DepositStatus: DepositHeld,
		LateFee:       decimal.Zero,
		Status:        StatusActive,
		OrderID:       l.OrderID,
	}, true
}

// Repository defines persistence operations for rentals.
type Repository interface {
	ListByUser(ctx context.Context, userID string) ([]Rental, error)
	ListAll(ctx context.Context) ([]Rental, error)
	// Get returns the rental with its order line attached, or ErrNotFound.
	Get(ctx context.Context, id string) (*Rental, error)
	// SaveReturn persists the return fields only if the rental is still active
	// or overdue, and returns ErrNotReturnable otherwise.
	SaveReturn(ctx context.Context, r *Rental) error
	// MarkOverdue flags every active rental whose end date is before now and
	// returns the rentals it changed.
	MarkOverdue(ctx context.Context, now time.Time) ([]Rental, error)
}

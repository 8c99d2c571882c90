package cart

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/rentkart/internal/apperr"
	"github.com/xenking/rentkart/internal/domain/product"
)

// Sentinel errors for cart operations.
var (
	ErrNotFound           = apperr.NotFound("cart not found")
	ErrLineNotFound       = apperr.NotFound("cart item not found")
	ErrInvalidQuantity    = apperr.Invalid("quantity must be at least 1")
	ErrRentalDaysRequired = apperr.Invalid("rental days are required for rental items")
	ErrProductUnavailable = apperr.Conflict("product is not available")
	ErrNotRentable        = apperr.Conflict("product cannot be rented")
)

// Cart is a user's in-progress selection. Each user owns at most one cart.
type Cart struct {
	ID        string
	UserID    string
	Lines     []Line
	CreatedAt time.Time
}

// Line is a single product in a cart. There is at most one line per
// (cart, product, rental flag); repeated adds accumulate Quantity.
type Line struct {
	ID        string
	CartID    string
	ProductID string
	Quantity  int
	IsRental  bool
	// RentalDays is zero for purchase lines.
	RentalDays int
	// PriceAtAddition is the unit price for purchases and the whole rental
	// price (per day times days) for rentals, snapshotted when the line was
	// created or explicitly updated.
	PriceAtAddition decimal.Decimal
	Product         *product.Product
}

// Total returns the line amount as it would be charged from the snapshot.
func (l Line) Total() decimal.Decimal {
	if l.IsRental {
		return l.PriceAtAddition
	}
	return l.PriceAtAddition.Mul(decimal.NewFromInt(int64(l.Quantity))).Round(2)
}

// Subtotal sums the snapshotted line totals.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.Lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

// Repository defines persistence operations for carts. All line access is
// scoped to the owning user; a line in another user's cart is reported as
// ErrLineNotFound.
type Repository interface {
	// GetByUser returns the user's cart with lines and products, or ErrNotFound.
	GetByUser(ctx context.Context, userID string) (*Cart, error)
	// AddLine creates the user's cart if needed and inserts the line, or adds
	// its quantity to the existing line with the same product and rental flag.
	AddLine(ctx context.Context, userID string, l Line) (*Line, error)
	GetLine(ctx context.Context, userID, lineID string) (*Line, error)
	UpdateLine(ctx context.Context, userID string, l Line) error
	RemoveLine(ctx context.Context, userID, lineID string) error
	// Clear deletes every line of the user's cart, or returns ErrNotFound.
	Clear(ctx context.Context, userID string) error
}

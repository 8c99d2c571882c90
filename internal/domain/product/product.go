package product

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xenking/rentkart/internal/apperr"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = apperr.NotFound("product not found")

// Product is a catalog item that can be bought and, when CanBeRented is set,
// rented by the day. Catalog management owns these rows; the checkout flow only
// reads them and decrements StockQuantity.
type Product struct {
	ID                string
	Name              string
	Category          string
	Price             decimal.Decimal
	RentalPricePerDay decimal.Decimal
	RentalDeposit     decimal.Decimal
	StockQuantity     int
	IsAvailable       bool
	CanBeRented       bool
	ImageURL          string
}

// RentalPrice returns the price of renting one unit for days days.
func (p Product) RentalPrice(days int) decimal.Decimal {
	return p.RentalPricePerDay.Mul(decimal.NewFromInt(int64(days))).Round(2)
}

// PurchasePrice returns the price of buying qty units.
func (p Product) PurchasePrice(qty int) decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(int64(qty))).Round(2)
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
}

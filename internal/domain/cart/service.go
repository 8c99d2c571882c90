package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/rentkart/internal/domain/product"
)

// AddItemRequest holds the input for adding a product to a cart.
type AddItemRequest struct {
	ProductID string
	// Quantity defaults to 1 when zero.
	Quantity   int
	IsRental   bool
	RentalDays int
}

// UpdateItemRequest holds the optional fields of a line update.
type UpdateItemRequest struct {
	Quantity   *int
	RentalDays *int
}

// Service encapsulates cart business rules.
type Service struct {
	products product.Repository
	carts    Repository
}

// NewService creates a cart Service.
func NewService(products product.Repository, carts Repository) *Service {
	return &Service{
		products: products,
		carts:    carts,
	}
}

// GetCart returns the user's cart with resolved product data.
func (s *Service) GetCart(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.carts.GetByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	return c, nil
}

// AddItem validates the product against the request and stores the line with a
// price snapshot.
func (s *Service) AddItem(ctx context.Context, userID string, req AddItemRequest) (*Line, error) {
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if req.IsRental && req.RentalDays < 1 {
		return nil, ErrRentalDaysRequired
	}

	p, err := s.products.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %s", req.ProductID)
	}
	if !p.IsAvailable {
		return nil, ErrProductUnavailable
	}
	if req.IsRental && !p.CanBeRented {
		return nil, ErrNotRentable
	}

	l := Line{
		ProductID:       p.ID,
		Quantity:        req.Quantity,
		IsRental:        req.IsRental,
		PriceAtAddition: p.Price,
	}
	if req.IsRental {
		l.RentalDays = req.RentalDays
		l.PriceAtAddition = p.RentalPrice(req.RentalDays)
	}

	added, err := s.carts.AddLine(ctx, userID, l)
	if err != nil {
		return nil, errors.Wrap(err, "add line")
	}
	added.Product = p
	return added, nil
}

// UpdateItem replaces the quantity and, for rentals, the rental period of a
// line. Changing the period reprices the line from the current product.
func (s *Service) UpdateItem(ctx context.Context, userID, lineID string, req UpdateItemRequest) (*Line, error) {
	l, err := s.carts.GetLine(ctx, userID, lineID)
	if err != nil {
		return nil, errors.Wrap(err, "get line")
	}

	if req.Quantity != nil {
		if *req.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		l.Quantity = *req.Quantity
	}
	if req.RentalDays != nil && l.IsRental {
		if *req.RentalDays < 1 {
			return nil, ErrRentalDaysRequired
		}
		p := l.Product
		if p == nil {
			if p, err = s.products.GetByID(ctx, l.ProductID); err != nil {
				return nil, errors.Wrapf(err, "get product %s", l.ProductID)
			}
		}
		l.RentalDays = *req.RentalDays
		l.PriceAtAddition = p.RentalPrice(l.RentalDays)
		l.Product = p
	}

	if err := s.carts.UpdateLine(ctx, userID, *l); err != nil {
		return nil, errors.Wrap(err, "update line")
	}
	return l, nil
}

// RemoveItem deletes a line from the user's cart.
func (s *Service) RemoveItem(ctx context.Context, userID, lineID string) error {
	if err := s.carts.RemoveLine(ctx, userID, lineID); err != nil {
		return errors.Wrap(err, "remove line")
	}
	return nil
}

// ClearCart deletes every line of the user's cart.
func (s *Service) ClearCart(ctx context.Context, userID string) error {
	if err := s.carts.Clear(ctx, userID); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}

package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/rentkart/internal/domain/cart"
)

// CreateOrderRequest holds the checkout input.
type CreateOrderRequest struct {
	ShippingAddress string
	PaymentMethod   string
}

// Service encapsulates checkout and order lifecycle business logic.
type Service struct {
	orders Repository
	now    func() time.Time
}

// NewService creates an order Service.
func NewService(orders Repository) *Service {
	return &Service{
		orders: orders,
		now:    time.Now,
	}
}

// CreateOrder converts the user's cart into an order. Every line is checked
// and repriced against the current product state; the first line that cannot
// be fulfilled aborts the checkout with no side effects.
func (s *Service) CreateOrder(ctx context.Context, userID string, req CreateOrderRequest) (*Order, error) {
	o, err := s.orders.Checkout(ctx, userID, func(c *cart.Cart) (*Order, error) {
		return s.assemble(userID, c, req)
	})
	if err != nil {
		return nil, errors.Wrap(err, "checkout")
	}
	return o, nil
}

func (s *Service) assemble(userID string, c *cart.Cart, req CreateOrderRequest) (*Order, error) {
	if len(c.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	now := s.now().UTC()
	lines := make([]Line, 0, len(c.Lines))
	total := decimal.Zero
	for _, cl := range c.Lines {
		p := cl.Product
		if p == nil || !p.IsAvailable {
			return nil, &UnavailableError{ProductID: cl.ProductID, Name: productName(cl), Reason: "is no longer available"}
		}

		l := Line{
			ProductID: cl.ProductID,
			Quantity:  cl.Quantity,
			IsRental:  cl.IsRental,
			Product:   p,
		}
		if cl.IsRental {
			if !p.CanBeRented {
				return nil, &UnavailableError{ProductID: p.ID, Name: p.Name, Reason: "can no longer be rented"}
			}
			start, end := now, now.AddDate(0, 0, cl.RentalDays)
			l.RentalDays = cl.RentalDays
			l.RentalStartDate = &start
			l.RentalEndDate = &end
			l.Price = p.RentalPrice(cl.RentalDays)
		} else {
			if p.StockQuantity < cl.Quantity {
				return nil, &UnavailableError{ProductID: p.ID, Name: p.Name, Reason: "has insufficient stock"}
			}
			l.Price = p.PurchasePrice(cl.Quantity)
		}

		total = total.Add(l.Price)
		lines = append(lines, l)
	}

	return &Order{
		UserID:          userID,
		Lines:           lines,
		TotalAmount:     total,
		Status:          StatusPending,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func productName(l cart.Line) string {
	if l.Product != nil {
		return l.Product.Name
	}
	return l.ProductID
}

// GetUserOrders lists the user's orders, newest first.
func (s *Service) GetUserOrders(ctx context.Context, userID string) ([]Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// GetOrder returns one of the user's orders. Orders of other users are
// reported as not found.
func (s *Service) GetOrder(ctx context.Context, userID, orderID string) (*Order, error) {
	o, err := s.orders.GetForUser(ctx, userID, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

// AdvanceStatus moves a confirmed order through fulfilment.
func (s *Service) AdvanceStatus(ctx context.Context, orderID string, to Status) (*Order, error) {
	switch to {
	case StatusProcessing, StatusShipped, StatusDelivered:
	default:
		return nil, ErrInvalidStatus
	}

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	if !o.Status.CanTransitionTo(to) {
		return nil, &TransitionError{From: o.Status, To: to}
	}
	if err := s.orders.UpdateStatus(ctx, orderID, o.Status, to); err != nil {
		return nil, errors.Wrap(err, "update status")
	}

	o.Status = to
	o.UpdatedAt = s.now().UTC()
	return o, nil
}

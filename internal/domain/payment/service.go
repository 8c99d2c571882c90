package payment

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/rentkart/internal/domain/order"
	"github.com/xenking/rentkart/internal/domain/phone"
	"github.com/xenking/rentkart/internal/domain/rental"
)

// Config holds non-dependency configuration for the Service.
type Config struct {
	InvoicePrefix string
}

// Initiation is returned to the client after the gateway accepted a charge.
type Initiation struct {
	Payment      *Payment
	PollURL      string
	Reference    string
	Instructions string
}

// StatusResult is the outcome of a status check.
type StatusResult struct {
	Payment *Payment
	// Polled is false when the stored state was final and the gateway was
	// not contacted.
	Polled bool
}

// Notification is a status push received on the result URL.
type Notification struct {
	Reference         string
	ExternalReference string
	Status            Status
}

// Service initiates mobile money payments and reconciles their outcome from
// polls and gateway notifications.
type Service struct {
	orders   order.Repository
	payments Repository
	gateway  Gateway
	invoices *InvoiceGenerator

	initiated metric.Int64Counter
	resolved  metric.Int64Counter
}

// NewService creates a payment Service. The gateway is injected so tests can
// substitute a fake.
func NewService(
	cfg Config,
	orders order.Repository,
	payments Repository,
	gateway Gateway,
	meterProvider metric.MeterProvider,
) (*Service, error) {
	meter := meterProvider.Meter("rentkart/payment")

	initiated, err := meter.Int64Counter("payments.initiated",
		metric.WithDescription("Mobile money charges accepted by the gateway"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create initiated counter")
	}
	resolved, err := meter.Int64Counter("payments.resolved",
		metric.WithDescription("Payments that reached a terminal status"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create resolved counter")
	}

	return &Service{
		orders:    orders,
		payments:  payments,
		gateway:   gateway,
		invoices:  NewInvoiceGenerator(cfg.InvoicePrefix),
		initiated: initiated,
		resolved:  resolved,
	}, nil
}

// ProcessEcocashPayment charges a pending order through EcoCash. The order
// is claimed before the gateway is contacted so only one charge can be in
// flight per order. Nothing is stored and the claim is released when the
// charge fails.
func (s *Service) ProcessEcocashPayment(ctx context.Context, userID, orderID, rawPhone string) (_ *Initiation, rerr error) {
	o, err := s.orders.GetForUser(ctx, userID, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	if o.Status != order.StatusPending {
		return nil, order.ErrAlreadyProcessed
	}

	num := phone.Parse(rawPhone)
	if !num.Valid {
		return nil, ErrInvalidPhone
	}
	if num.Carrier != phone.CarrierEconet {
		return nil, ErrUnsupportedCarrier
	}

	if err := s.payments.ClaimOrder(ctx, o.ID); err != nil {
		return nil, errors.Wrap(err, "claim order")
	}
	defer func() {
		if rerr == nil {
			return
		}
		if err := s.payments.ReleaseOrder(context.WithoutCancel(ctx), o.ID); err != nil {
			zctx.From(ctx).Error("Failed to release order claim",
				zap.String("order_id", o.ID),
				zap.Error(err),
			)
		}
	}()

	invoice, err := s.invoices.Next(ctx, o.ID, s.payments.InvoiceExists)
	if err != nil {
		return nil, errors.Wrap(err, "invoice number")
	}

	charge, err := s.gateway.SendMobile(ctx, ChargeRequest{
		Reference: invoice,
		Items:     chargeItems(o),
		Phone:     num.Canonical,
		Method:    MethodEcocash,
	})
	if err != nil {
		return nil, errors.Wrap(err, "send mobile charge")
	}

	p := &Payment{
		OrderID:           o.ID,
		Method:            MethodEcocash,
		Amount:            o.TotalAmount,
		PhoneNumber:       num.Canonical,
		Status:            StatusPending,
		ExternalReference: charge.ExternalReference,
		PollURL:           charge.PollURL,
		InvoiceNumber:     invoice,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create payment")
	}

	s.initiated.Add(ctx, 1, metric.WithAttributes(attribute.String("method", MethodEcocash)))
	zctx.From(ctx).Info("Payment initiated",
		zap.String("payment_id", p.ID),
		zap.String("order_id", o.ID),
		zap.String("invoice", invoice),
		zap.String("external_reference", charge.ExternalReference),
	)

	return &Initiation{
		Payment:      p,
		PollURL:      charge.PollURL,
		Reference:    charge.ExternalReference,
		Instructions: charge.Instructions,
	}, nil
}

func chargeItems(o *order.Order) []ChargeItem {
	items := make([]ChargeItem, 0, len(o.Lines))
	for _, l := range o.Lines {
		name := l.ProductID
		if l.Product != nil {
			name = l.Product.Name
		}
		if l.IsRental {
			name = fmt.Sprintf("%s (rental, %d days)", name, l.RentalDays)
		} else if l.Quantity > 1 {
			name = fmt.Sprintf("%s x%d", name, l.Quantity)
		}
		items = append(items, ChargeItem{Name: name, Amount: l.Price})
	}
	return items
}

// CheckPaymentStatus reports the payment state, polling the gateway only while
// the payment is still pending.
func (s *Service) CheckPaymentStatus(ctx context.Context, userID, paymentID string) (*StatusResult, error) {
	p, err := s.payments.GetForUser(ctx, userID, paymentID)
	if err != nil {
		return nil, errors.Wrap(err, "get payment")
	}
	if p.Status.Terminal() {
		return &StatusResult{Payment: p}, nil
	}

	upd, err := s.gateway.PollStatus(ctx, p.PollURL)
	if err != nil {
		return nil, errors.Wrap(err, "poll status")
	}
	if !upd.Status.Terminal() {
		return &StatusResult{Payment: p, Polled: true}, nil
	}

	p, err = s.resolve(ctx, p, upd.Status, "poll")
	if err != nil {
		return nil, err
	}
	return &StatusResult{Payment: p, Polled: true}, nil
}

// HandleWebhook mirrors a gateway notification into the payment and its
// order. Unknown references and non-terminal statuses are ignored.
func (s *Service) HandleWebhook(ctx context.Context, n Notification) error {
	lg := zctx.From(ctx)

	p, err := s.findByNotification(ctx, n)
	if errors.Is(err, ErrNotFound) {
		lg.Warn("Webhook for unknown payment",
			zap.String("reference", n.Reference),
			zap.String("external_reference", n.ExternalReference),
		)
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "find payment")
	}

	if !n.Status.Terminal() {
		return nil
	}
	if _, err := s.resolve(ctx, p, n.Status, "webhook"); err != nil {
		return err
	}
	return nil
}

func (s *Service) findByNotification(ctx context.Context, n Notification) (*Payment, error) {
	for _, ref := range []string{n.ExternalReference, n.Reference} {
		if ref == "" {
			continue
		}
		p, err := s.payments.FindByReference(ctx, ref)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, ErrNotFound
}

// resolve applies a terminal gateway status. Both channels converge here; a
// payment that is already terminal is left untouched and its stored state is
// returned.
func (s *Service) resolve(ctx context.Context, p *Payment, status Status, channel string) (*Payment, error) {
	res, err := s.resolution(ctx, p, status)
	if err != nil {
		return nil, err
	}

	applied, err := s.payments.Resolve(ctx, p.ID, res)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve payment %s", p.ID)
	}

	current, err := s.payments.Get(ctx, p.ID)
	if err != nil {
		return nil, errors.Wrap(err, "reload payment")
	}

	lg := zctx.From(ctx).With(
		zap.String("payment_id", p.ID),
		zap.String("order_id", p.OrderID),
		zap.String("channel", channel),
		zap.String("status", string(current.Status)),
	)
	if !applied {
		lg.Debug("Payment already resolved")
		return current, nil
	}

	s.resolved.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", string(status)),
		attribute.String("channel", channel),
	))
	lg.Info("Payment resolved", zap.Int("rentals", len(res.Rentals)))
	return current, nil
}

func (s *Service) resolution(ctx context.Context, p *Payment, status Status) (Resolution, error) {
	switch status {
	case StatusPaid:
		o, err := s.orders.Get(ctx, p.OrderID)
		if err != nil {
			return Resolution{}, errors.Wrap(err, "get order")
		}
		res := Resolution{
			PaymentStatus: StatusPaid,
			OrderStatus:   order.StatusConfirmed,
			OrderFrom:     []order.Status{order.StatusPending, order.StatusPaymentPending},
		}
		for _, l := range o.Lines {
			if r, ok := rental.FromOrderLine(l); ok {
				res.Rentals = append(res.Rentals, r)
			}
		}
		return res, nil
	case StatusCancelled:
		return Resolution{
			PaymentStatus: StatusCancelled,
			OrderStatus:   order.StatusCancelled,
			OrderFrom:     []order.Status{order.StatusPending, order.StatusPaymentPending},
			Restock:       true,
		}, nil
	case StatusFailed:
		return Resolution{
			PaymentStatus: StatusFailed,
			OrderStatus:   order.StatusPending,
			OrderFrom:     []order.Status{order.StatusPaymentPending},
		}, nil
	default:
		return Resolution{}, errors.Errorf("status %q is not terminal", status)
	}
}

// GetPaymentHistory lists the user's payments, newest first.
func (s *Service) GetPaymentHistory(ctx context.Context, userID string) ([]Payment, error) {
	ps, err := s.payments.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list payments")
	}
	return ps, nil
}

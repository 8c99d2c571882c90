// Package handler exposes the cart, order, payment and rental services over
// HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/xenking/rentkart/internal/domain/auth"
	"github.com/xenking/rentkart/internal/domain/cart"
	"github.com/xenking/rentkart/internal/domain/order"
	"github.com/xenking/rentkart/internal/domain/payment"
	"github.com/xenking/rentkart/internal/domain/product"
	"github.com/xenking/rentkart/internal/domain/rental"
	"github.com/xenking/rentkart/internal/paynow"
)

// CartService is the cart ledger used by the handler.
type CartService interface {
	GetCart(ctx context.Context, userID string) (*cart.Cart, error)
	AddItem(ctx context.Context, userID string, req cart.AddItemRequest) (*cart.Line, error)
	UpdateItem(ctx context.Context, userID, lineID string, req cart.UpdateItemRequest) (*cart.Line, error)
	RemoveItem(ctx context.Context, userID, lineID string) error
	ClearCart(ctx context.Context, userID string) error
}

// OrderService is the order assembler used by the handler.
type OrderService interface {
	CreateOrder(ctx context.Context, userID string, req order.CreateOrderRequest) (*order.Order, error)
	GetUserOrders(ctx context.Context, userID string) ([]order.Order, error)
	GetOrder(ctx context.Context, userID, orderID string) (*order.Order, error)
	AdvanceStatus(ctx context.Context, orderID string, to order.Status) (*order.Order, error)
}

// PaymentService is the payment adapter and reconciler used by the handler.
type PaymentService interface {
	ProcessEcocashPayment(ctx context.Context, userID, orderID, phone string) (*payment.Initiation, error)
	CheckPaymentStatus(ctx context.Context, userID, paymentID string) (*payment.StatusResult, error)
	HandleWebhook(ctx context.Context, n payment.Notification) error
	GetPaymentHistory(ctx context.Context, userID string) ([]payment.Payment, error)
}

// RentalService is the rental ledger used by the handler.
type RentalService interface {
	GetUserRentals(ctx context.Context, userID string) ([]rental.Rental, error)
	GetAllRentals(ctx context.Context) ([]rental.Rental, error)
	ProcessReturn(ctx context.Context, id string, req rental.ReturnRequest) (*rental.Settlement, error)
	CheckOverdueRentals(ctx context.Context) (*rental.OverdueScan, error)
}

// NotificationVerifier authenticates gateway status pushes.
type NotificationVerifier interface {
	ParseStatusUpdate(fs paynow.Fields) (*payment.StatusUpdate, error)
}

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
}

// Handler serves the HTTP API.
type Handler struct {
	products      product.Repository
	carts         CartService
	orders        OrderService
	payments      PaymentService
	rentals       RentalService
	notifications NotificationVerifier
	auth          *Authenticator

	validate     *validator.Validate
	imageBaseURL string
}

// Deps groups the services the Handler delegates to.
type Deps struct {
	Products      product.Repository
	Carts         CartService
	Orders        OrderService
	Payments      PaymentService
	Rentals       RentalService
	Notifications NotificationVerifier
	Auth          *Authenticator
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg HandlerConfig, deps Deps) *Handler {
	return &Handler{
		products:      deps.Products,
		carts:         deps.Carts,
		orders:        deps.Orders,
		payments:      deps.Payments,
		rentals:       deps.Rentals,
		notifications: deps.Notifications,
		auth:          deps.Auth,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		imageBaseURL:  cfg.ImageBaseURL,
	}
}

// Register adds every API route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	user := func(fn http.HandlerFunc) http.Handler {
		return h.auth.Authenticate(fn)
	}
	admin := func(fn http.HandlerFunc) http.Handler {
		return h.auth.Authenticate(RequireScope(auth.ScopeAdmin)(fn))
	}

	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)

	mux.Handle("GET /api/cart", user(h.GetCart))
	mux.Handle("DELETE /api/cart", user(h.ClearCart))
	mux.Handle("POST /api/cart/items", user(h.AddCartItem))
	mux.Handle("PUT /api/cart/items/{id}", user(h.UpdateCartItem))
	mux.Handle("DELETE /api/cart/items/{id}", user(h.RemoveCartItem))

	mux.Handle("POST /api/orders", user(h.CreateOrder))
	mux.Handle("GET /api/orders", user(h.ListOrders))
	mux.Handle("GET /api/orders/{id}", user(h.GetOrder))
	mux.Handle("PATCH /api/admin/orders/{id}/status", admin(h.AdvanceOrderStatus))

	mux.Handle("POST /api/payments/ecocash", user(h.ProcessEcocashPayment))
	mux.Handle("GET /api/payments", user(h.PaymentHistory))
	mux.Handle("GET /api/payments/{id}/status", user(h.PaymentStatus))
	// The gateway cannot present an API key; messages are authenticated by
	// their hash instead.
	mux.HandleFunc("POST /api/payments/paynow/webhook", h.PaynowWebhook)

	mux.Handle("GET /api/rentals", user(h.ListRentals))
	mux.Handle("GET /api/admin/rentals", admin(h.ListAllRentals))
	mux.Handle("POST /api/admin/rentals/{id}/return", admin(h.ReturnRental))
	mux.Handle("POST /api/admin/rentals/overdue-scan", admin(h.OverdueScan))
}

// userID returns the authenticated caller. Routes registered with user or
// admin always carry a principal.
func userID(r *http.Request) string {
	p, _ := auth.PrincipalFrom(r.Context())
	return p.UserID
}

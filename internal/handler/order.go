package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/rentkart/internal/domain/order"
	"github.com/xenking/rentkart/internal/domain/payment"
)

// CreateOrder converts the caller's cart into an order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	b, err := h.decodeCreateOrder(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	method := b.PaymentMethod
	if method == "" {
		method = payment.MethodEcocash
	}
	o, err := h.orders.CreateOrder(r.Context(), userID(r), order.CreateOrderRequest{
		ShippingAddress: b.ShippingAddress,
		PaymentMethod:   method,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { h.encodeOrder(e, o) })
}

// ListOrders returns the caller's orders, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.GetUserOrders(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range orders {
				h.encodeOrder(e, &orders[i])
			}
		})
	})
}

// GetOrder returns one of the caller's orders. Orders of other users are
// reported as not found.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetOrder(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeOrder(e, o) })
}

// AdvanceOrderStatus moves a confirmed order along fulfilment.
func (h *Handler) AdvanceOrderStatus(w http.ResponseWriter, r *http.Request) {
	b, err := h.decodeStatus(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.AdvanceStatus(r.Context(), r.PathValue("id"), order.Status(b.Status))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeOrder(e, o) })
}

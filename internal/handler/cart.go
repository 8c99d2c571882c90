package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/rentkart/internal/domain/cart"
)

// GetCart returns the caller's cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.GetCart(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeCart(e, c) })
}

// AddCartItem adds a purchase or rental line, accumulating quantity when the
// line already exists.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	b, err := h.decodeAddItem(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	line, err := h.carts.AddItem(r.Context(), userID(r), cart.AddItemRequest{
		ProductID:  b.ProductID,
		Quantity:   b.Quantity,
		IsRental:   b.IsRental,
		RentalDays: b.RentalDays,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { h.encodeCartLine(e, line) })
}

// UpdateCartItem replaces a line's quantity or rental duration.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	b, err := h.decodeUpdateItem(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	line, err := h.carts.UpdateItem(r.Context(), userID(r), r.PathValue("id"), cart.UpdateItemRequest{
		Quantity:   b.Quantity,
		RentalDays: b.RentalDays,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeCartLine(e, line) })
}

// RemoveCartItem deletes one line from the caller's cart.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.RemoveItem(r.Context(), userID(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeNoContent(w)
}

// ClearCart deletes every line from the caller's cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.ClearCart(r.Context(), userID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeNoContent(w)
}

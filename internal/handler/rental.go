package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/rentkart/internal/domain/rental"
)

// ListRentals returns the caller's rentals.
func (h *Handler) ListRentals(w http.ResponseWriter, r *http.Request) {
	rentals, err := h.rentals.GetUserRentals(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeRentals(e, rentals) })
}

// ListAllRentals returns every rental.
func (h *Handler) ListAllRentals(w http.ResponseWriter, r *http.Request) {
	rentals, err := h.rentals.GetAllRentals(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeRentals(e, rentals) })
}

// ReturnRental settles a returned rental.
func (h *Handler) ReturnRental(w http.ResponseWriter, r *http.Request) {
	b, err := h.decodeReturn(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.rentals.ProcessReturn(r.Context(), r.PathValue("id"), rental.ReturnRequest{
		ReturnedAt: b.ActualReturnDate,
		Condition:  rental.Condition(b.Condition),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("rental", func(e *jx.Encoder) { h.encodeRental(e, s.Rental) })
			integer(e, "daysLate", s.DaysLate)
			money(e, "lateFee", s.LateFee)
			money(e, "depositRefund", s.DepositRefund)
		})
	})
}

// OverdueScan flags active rentals past their end date.
func (h *Handler) OverdueScan(w http.ResponseWriter, r *http.Request) {
	scan, err := h.rentals.CheckOverdueRentals(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			integer(e, "count", scan.Count)
			e.Field("rentals", func(e *jx.Encoder) { h.encodeRentals(e, scan.Rentals) })
		})
	})
}

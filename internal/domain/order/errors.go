package order

import (
	"fmt"

	"github.com/xenking/rentkart/internal/apperr"
)

// Sentinel errors for order operations.
var (
	ErrNotFound         = apperr.NotFound("order not found")
	ErrEmptyCart        = apperr.Invalid("cart is empty")
	ErrAlreadyProcessed = apperr.Conflict("order has already been processed")
	ErrStatusChanged    = apperr.Conflict("order status changed concurrently")
	ErrInvalidStatus    = apperr.Invalid("unknown or non-fulfilment order status")
)

// UnavailableError indicates a cart line can no longer be fulfilled.
type UnavailableError struct {
	ProductID string
	Name      string
	Reason    string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("product %q (%s) %s", e.Name, e.ProductID, e.Reason)
}

// Kind classifies the error as a conflict.
func (e *UnavailableError) Kind() apperr.Kind { return apperr.KindConflict }

// TransitionError indicates a status change the order lifecycle forbids.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

// Kind classifies the error as a conflict.
func (e *TransitionError) Kind() apperr.Kind { return apperr.KindConflict }

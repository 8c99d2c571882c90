package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xenking/rentkart/internal/apperr"
)

// ChargeItem is a line shown to the payer.
type ChargeItem struct {
	Name   string
	Amount decimal.Decimal
}

// ChargeRequest asks the gateway to push a mobile money prompt to a phone.
type ChargeRequest struct {
	// Reference is our invoice number.
	Reference string
	Items     []ChargeItem
	Phone     string
	Method    string
}

// Charge is the gateway's acceptance of a charge request.
type Charge struct {
	ExternalReference string
	PollURL           string
	Instructions      string
}

// StatusUpdate is a transaction status reported by the gateway, either in
// reply to a poll or pushed to the result URL.
type StatusUpdate struct {
	Reference         string
	ExternalReference string
	Status            Status
	Amount            decimal.Decimal
	PollURL           string
}

// Gateway is a mobile money payment provider.
type Gateway interface {
	SendMobile(ctx context.Context, req ChargeRequest) (*Charge, error)
	PollStatus(ctx context.Context, pollURL string) (*StatusUpdate, error)
}

// GatewayError is a rejection or transport failure reported by the gateway.
// Message is passed to clients unchanged.
type GatewayError struct {
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway: %s", e.Message)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Kind classifies the error as an external failure.
func (e *GatewayError) Kind() apperr.Kind { return apperr.KindExternalFailure }

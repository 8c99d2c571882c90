package payment

import (
	"context"
	"math/rand/v2"
	"strconv"

	"github.com/go-faster/errors"
)

const invoiceAttempts = 5

// ErrInvoiceExhausted is returned when no free invoice number was found.
var ErrInvoiceExhausted = errors.New("no unique invoice number after retries")

// InvoiceGenerator produces human-readable invoice numbers of the form
// <prefix><order id><two letters><four digits>.
type InvoiceGenerator struct {
	prefix string
	intn   func(n int) int
}

// NewInvoiceGenerator creates an InvoiceGenerator with the given prefix.
func NewInvoiceGenerator(prefix string) *InvoiceGenerator {
	return &InvoiceGenerator{
		prefix: prefix,
		intn:   rand.IntN,
	}
}

func (g *InvoiceGenerator) candidate(orderID string) string {
	letters := []byte{
		byte('A' + g.intn(26)),
		byte('A' + g.intn(26)),
	}
	digits := 1000 + g.intn(9000)
	return g.prefix + orderID + string(letters) + strconv.Itoa(digits)
}

// Next returns an invoice number for orderID that exists reports as unused.
func (g *InvoiceGenerator) Next(ctx context.Context, orderID string, exists func(context.Context, string) (bool, error)) (string, error) {
	for range invoiceAttempts {
		inv := g.candidate(orderID)
		taken, err := exists(ctx, inv)
		if err != nil {
			return "", errors.Wrap(err, "check invoice")
		}
		if !taken {
			return inv, nil
		}
	}
	return "", ErrInvoiceExhausted
}

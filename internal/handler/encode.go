package handler

import (
	"strings"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/rentkart/internal/domain/cart"
	"github.com/xenking/rentkart/internal/domain/order"
	"github.com/xenking/rentkart/internal/domain/payment"
	"github.com/xenking/rentkart/internal/domain/product"
	"github.com/xenking/rentkart/internal/domain/rental"
)

// Money is rendered as a fixed two-place string so no precision is lost in
// JSON number handling on the client.
func money(e *jx.Encoder, name string, d decimal.Decimal) {
	e.Field(name, func(e *jx.Encoder) { e.Str(d.StringFixed(2)) })
}

func str(e *jx.Encoder, name, v string) {
	e.Field(name, func(e *jx.Encoder) { e.Str(v) })
}

func integer(e *jx.Encoder, name string, v int) {
	e.Field(name, func(e *jx.Encoder) { e.Int(v) })
}

func boolean(e *jx.Encoder, name string, v bool) {
	e.Field(name, func(e *jx.Encoder) { e.Bool(v) })
}

func timestamp(e *jx.Encoder, name string, t time.Time) {
	e.Field(name, func(e *jx.Encoder) { e.Str(t.UTC().Format(time.RFC3339)) })
}

func optTimestamp(e *jx.Encoder, name string, t *time.Time) {
	if t == nil {
		e.Field(name, func(e *jx.Encoder) { e.Null() })
		return
	}
	timestamp(e, name, *t)
}

// resolveImageURL prepends baseURL to relative paths. Absolute URLs and
// empty values pass through.
func resolveImageURL(baseURL, path string) string {
	if baseURL == "" || path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func (h *Handler) encodeProduct(e *jx.Encoder, p *product.Product) {
	e.Obj(func(e *jx.Encoder) {
		str(e, "id", p.ID)
		str(e, "name", p.Name)
		str(e, "category", p.Category)
		money(e, "price", p.Price)
		money(e, "rentalPricePerDay", p.RentalPricePerDay)
		money(e, "rentalDeposit", p.RentalDeposit)
		integer(e, "stockQuantity", p.StockQuantity)
		boolean(e, "isAvailable", p.IsAvailable)
		boolean(e, "canBeRented", p.CanBeRented)
		str(e, "imageUrl", resolveImageURL(h.imageBaseURL, p.ImageURL))
	})
}

func (h *Handler) encodeOptProduct(e *jx.Encoder, p *product.Product) {
	e.Field("product", func(e *jx.Encoder) {
		if p == nil {
			e.Null()
			return
		}
		h.encodeProduct(e, p)
	})
}

func (h *Handler) encodeCartLine(e *jx.Encoder, l *cart.Line) {
	e.Obj(func(e *jx.Encoder) {
		str(e, "id", l.ID)
		str(e, "productId", l.ProductID)
		integer(e, "quantity", l.Quantity)
		boolean(e, "isRental", l.IsRental)
		integer(e, "rentalDays", l.RentalDays)
		money(e, "priceAtAddition", l.PriceAtAddition)
		money(e, "total", l.Total())
		h.encodeOptProduct(e, l.Product)
	})
}

func (h *Handler) encodeCart(e *jx.Encoder, c *cart.Cart) {
	e.Obj(func(e *jx.Encoder) {
		str(e, "id", c.ID)
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range c.Lines {
					h.encodeCartLine(e, &c.Lines[i])
				}
			})
		})
		money(e, "subtotal", c.Subtotal())
	})
}

func (h *Handler) encodeOrderLine(e *jx.Encoder, l *order.Line) {
	e.Obj(func(e *jx.Encoder) {
		str(e, "id", l.ID)
		str(e, "productId", l.ProductID)
		integer(e, "quantity", l.Quantity)
		money(e, "price", l.Price)
		boolean(e, "isRental", l.IsRental)
		integer(e, "rentalDays", l.RentalDays)
		optTimestamp(e, "rentalStartDate", l.RentalStartDate)
		optTimestamp(e, "rentalEndDate", l.RentalEndDate)
		h.encodeOptProduct(e, l.Product)
	})
}

func (h *Handler) encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		str(e, "id", o.ID)
		str(e, "status", string(o.Status))
		money(e, "totalAmount", o.TotalAmount)
		str(e, "shippingAddress", o.ShippingAddress)
		str(e, "paymentMethod", o.PaymentMethod)
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range o.Lines {
					h.encodeOrderLine(e, &o.Lines[i])
				}
			})
		})
		timestamp(e, "createdAt", o.CreatedAt)
		timestamp(e, "updatedAt", o.UpdatedAt)
	})
}

func encodePayment(e *jx.Encoder, p *payment.Payment) {
	e.Obj(func(e *jx.Encoder) {
		str(e, "id", p.ID)
		str(e, "orderId", p.OrderID)
		str(e, "method", p.Method)
		money(e, "amount", p.Amount)
		str(e, "phoneNumber", p.PhoneNumber)
		str(e, "status", string(p.Status))
		str(e, "reference", p.ExternalReference)
		str(e, "invoiceNumber", p.InvoiceNumber)
		timestamp(e, "createdAt", p.CreatedAt)
		timestamp(e, "updatedAt", p.UpdatedAt)
	})
}

func (h *Handler) encodeRental(e *jx.Encoder, r *rental.Rental) {
	e.Obj(func(e *jx.Encoder) {
		str(e, "id", r.ID)
		str(e, "orderId", r.OrderID)
		str(e, "orderItemId", r.OrderItemID)
		str(e, "status", string(r.Status))
		timestamp(e, "startDate", r.StartDate)
		timestamp(e, "endDate", r.EndDate)
		optTimestamp(e, "actualReturnDate", r.ActualReturnDate)
		money(e, "depositAmount", r.DepositAmount)
		str(e, "depositStatus", string(r.DepositStatus))
		money(e, "lateFee", r.LateFee)
		if r.Item != nil {
			e.Field("item", func(e *jx.Encoder) { h.encodeOrderLine(e, r.Item) })
		}
	})
}

func (h *Handler) encodeRentals(e *jx.Encoder, rs []rental.Rental) {
	e.Arr(func(e *jx.Encoder) {
		for i := range rs {
			h.encodeRental(e, &rs[i])
		}
	})
}

package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

type addItemBody struct {
	ProductID  string `validate:"required"`
	Quantity   int    `validate:"gte=0"`
	IsRental   bool
	RentalDays int `validate:"gte=0"`
}

type updateItemBody struct {
	Quantity   *int `validate:"omitempty,gte=1"`
	RentalDays *int `validate:"omitempty,gte=1"`
}

type createOrderBody struct {
	ShippingAddress string `validate:"required,max=500"`
	PaymentMethod   string `validate:"omitempty,oneof=ecocash"`
}

type ecocashBody struct {
	OrderID     string `validate:"required"`
	PhoneNumber string `validate:"required"`
}

type statusBody struct {
	Status string `validate:"required"`
}

type returnBody struct {
	ActualReturnDate *time.Time
	Condition        string `validate:"max=64"`
}

// decodeBody reads a JSON object from r, handing each field to field, and
// validates dst. Unknown fields are skipped.
func (h *Handler) decodeBody(r *http.Request, dst any, field func(d *jx.Decoder, key string) error) error {
	raw, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		return invalid("request body too large or unreadable")
	}
	if len(raw) > 0 {
		d := jx.DecodeBytes(raw)
		if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			return field(d, string(key))
		}); err != nil {
			return invalid("malformed JSON body: " + err.Error())
		}
	}
	return h.validateStruct(dst)
}

func (h *Handler) validateStruct(dst any) error {
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return invalid(lowerFirst(fe.Field()) + " failed " + fe.Tag() + " validation")
		}
		return errors.Wrap(err, "validate")
	}
	return nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}

// optInt decodes an integer that may be null.
func optInt(d *jx.Decoder) (*int, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := d.Int()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func optTime(d *jx.Decoder) (*time.Time, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, errors.Wrap(err, "parse time")
	}
	return &t, nil
}

func (h *Handler) decodeAddItem(r *http.Request) (addItemBody, error) {
	var b addItemBody
	err := h.decodeBody(r, &b, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "productId":
			b.ProductID, err = d.Str()
		case "quantity":
			b.Quantity, err = d.Int()
		case "isRental":
			b.IsRental, err = d.Bool()
		case "rentalDays":
			var v *int
			v, err = optInt(d)
			if v != nil {
				b.RentalDays = *v
			}
		default:
			err = d.Skip()
		}
		return err
	})
	return b, err
}

func (h *Handler) decodeUpdateItem(r *http.Request) (updateItemBody, error) {
	var b updateItemBody
	err := h.decodeBody(r, &b, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "quantity":
			b.Quantity, err = optInt(d)
		case "rentalDays":
			b.RentalDays, err = optInt(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return b, err
}

func (h *Handler) decodeCreateOrder(r *http.Request) (createOrderBody, error) {
	var b createOrderBody
	err := h.decodeBody(r, &b, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "shippingAddress":
			b.ShippingAddress, err = d.Str()
		case "paymentMethod":
			b.PaymentMethod, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return b, err
}

func (h *Handler) decodeEcocash(r *http.Request) (ecocashBody, error) {
	var b ecocashBody
	err := h.decodeBody(r, &b, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "orderId":
			b.OrderID, err = d.Str()
		case "phoneNumber":
			b.PhoneNumber, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return b, err
}

func (h *Handler) decodeStatus(r *http.Request) (statusBody, error) {
	var b statusBody
	err := h.decodeBody(r, &b, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "status":
			b.Status, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return b, err
}

func (h *Handler) decodeReturn(r *http.Request) (returnBody, error) {
	var b returnBody
	err := h.decodeBody(r, &b, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "actualReturnDate":
			b.ActualReturnDate, err = optTime(d)
		case "condition":
			b.Condition, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return b, err
}

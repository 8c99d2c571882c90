package handler

import (
	"io"
	"mime"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"github.com/go-faster/sdk/zctx"

	"github.com/xenking/rentkart/internal/domain/payment"
	"github.com/xenking/rentkart/internal/paynow"
)

// ProcessEcocashPayment starts a mobile charge for one of the caller's
// pending orders.
func (h *Handler) ProcessEcocashPayment(w http.ResponseWriter, r *http.Request) {
	b, err := h.decodeEcocash(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, err := h.payments.ProcessEcocashPayment(r.Context(), userID(r), b.OrderID, b.PhoneNumber)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("payment", func(e *jx.Encoder) { encodePayment(e, in.Payment) })
			str(e, "pollUrl", in.PollURL)
			str(e, "reference", in.Reference)
			str(e, "instructions", in.Instructions)
		})
	})
}

// PaymentStatus reports a payment's state, polling the gateway while it is
// still pending.
func (h *Handler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	res, err := h.payments.CheckPaymentStatus(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			str(e, "status", string(res.Payment.Status))
			boolean(e, "polled", res.Polled)
			e.Field("payment", func(e *jx.Encoder) { encodePayment(e, res.Payment) })
		})
	})
}

// PaymentHistory lists the caller's payments, newest first.
func (h *Handler) PaymentHistory(w http.ResponseWriter, r *http.Request) {
	payments, err := h.payments.GetPaymentHistory(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range payments {
				encodePayment(e, &payments[i])
			}
		})
	})
}

// PaynowWebhook receives gateway status pushes. The response is always 200:
// the gateway retries anything else, and neither a bad message nor an
// unknown reference becomes valid on retry.
func (h *Handler) PaynowWebhook(w http.ResponseWriter, r *http.Request) {
	lg := zctx.From(r.Context())
	defer writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) { boolean(e, "received", true) })
	})

	fields, err := readNotification(r)
	if err != nil {
		lg.Warn("Unreadable webhook body", zap.Error(err))
		return
	}
	upd, err := h.notifications.ParseStatusUpdate(fields)
	if err != nil {
		lg.Warn("Rejected webhook",
			zap.String("reference", fields.Get("reference")),
			zap.Error(err),
		)
		return
	}
	if err := h.payments.HandleWebhook(r.Context(), payment.Notification{
		Reference:         upd.Reference,
		ExternalReference: upd.ExternalReference,
		Status:            upd.Status,
	}); err != nil {
		lg.Error("Webhook processing failed",
			zap.String("reference", upd.Reference),
			zap.Error(err),
		)
	}
}

// readNotification accepts the gateway's form encoding and a flat JSON
// object. Field order is kept, the message hash depends on it.
func readNotification(r *http.Request) (paynow.Fields, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct != "application/json" {
		return paynow.ParseFields(string(raw))
	}

	var fields paynow.Fields
	d := jx.DecodeBytes(raw)
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var v string
		switch d.Next() {
		case jx.String:
			s, err := d.Str()
			if err != nil {
				return err
			}
			v = s
		case jx.Number:
			n, err := d.Num()
			if err != nil {
				return err
			}
			v = n.String()
		default:
			return d.Skip()
		}
		fields = append(fields, paynow.Field{Key: string(key), Value: v})
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode json")
	}
	return fields, nil
}

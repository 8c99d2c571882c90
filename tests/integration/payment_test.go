//go:build integration

package integration

import (
	"net/http"
	"strings"
	"sync"
	"testing"
)

// placeOrder fills the caller's cart with items and checks out.
func placeOrder(t *testing.T, apiKey string, items ...map[string]any) orderResponse {
	t.Helper()

	resetCart(t, apiKey)
	for _, it := range items {
		expect[cartLineResponse](t, http.StatusCreated, http.MethodPost, "/api/cart/items", apiKey, it)
	}
	return expect[orderResponse](t, http.StatusCreated, http.MethodPost, "/api/orders", apiKey,
		map[string]any{"shippingAddress": "12 Samora Machel Ave, Harare"})
}

func payEcocash(t *testing.T, orderID, phone string) initiationResponse {
	t.Helper()

	in := expect[initiationResponse](t, http.StatusCreated, http.MethodPost, "/api/payments/ecocash", userKey,
		map[string]any{"orderId": orderID, "phoneNumber": phone})
	if in.Payment.Status != "pending" || in.Reference == "" || in.PollURL == "" {
		t.Fatalf("unexpected initiation: %+v", in)
	}
	return in
}

func TestRentalPaidByWebhook(t *testing.T) {
	o := placeOrder(t, userKey, map[string]any{"productId": "1", "isRental": true, "rentalDays": 3})
	if o.TotalAmount != "29.97" {
		t.Fatalf("expected total 29.97, got %s", o.TotalAmount)
	}

	in := payEcocash(t, o.ID, "0771 234 567")
	if in.Payment.PhoneNumber != "263771234567" || in.Payment.Amount != "29.97" {
		t.Fatalf("unexpected payment: %+v", in.Payment)
	}

	// Still pending at the gateway.
	st := expect[statusResponse](t, http.StatusOK, http.MethodGet,
		"/api/payments/"+in.Payment.ID+"/status", userKey, nil)
	if st.Status != "pending" || !st.Polled {
		t.Fatalf("expected polled pending, got %+v", st)
	}

	postWebhook(t, sign([]field{
		{"reference", in.Payment.InvoiceNumber},
		{"paynowreference", in.Reference},
		{"amount", "29.97"},
		{"status", "Paid"},
		{"pollurl", in.PollURL},
	}))

	st = expect[statusResponse](t, http.StatusOK, http.MethodGet,
		"/api/payments/"+in.Payment.ID+"/status", userKey, nil)
	if st.Status != "paid" || st.Polled {
		t.Fatalf("expected stored paid status, got %+v", st)
	}
	got := expect[orderResponse](t, http.StatusOK, http.MethodGet, "/api/orders/"+o.ID, userKey, nil)
	if got.Status != "confirmed" {
		t.Fatalf("expected order confirmed, got %s", got.Status)
	}

	// A repeated notification changes nothing.
	postWebhook(t, sign([]field{
		{"reference", in.Payment.InvoiceNumber},
		{"paynowreference", in.Reference},
		{"amount", "29.97"},
		{"status", "Cancelled"},
		{"pollurl", in.PollURL},
	}))
	got = expect[orderResponse](t, http.StatusOK, http.MethodGet, "/api/orders/"+o.ID, userKey, nil)
	if got.Status != "confirmed" {
		t.Fatalf("expected order to stay confirmed, got %s", got.Status)
	}

	r := findRental(t, o.ID)
	if r.Status != "active" || r.DepositAmount != "40.00" || r.DepositStatus != "held" {
		t.Fatalf("unexpected rental: %+v", r)
	}

	history := expect[[]paymentResponse](t, http.StatusOK, http.MethodGet, "/api/payments", userKey, nil)
	if len(history) == 0 || history[0].ID != in.Payment.ID {
		t.Fatalf("expected newest payment first in history")
	}

	// Paying a confirmed order again is a conflict.
	expect[errorResponse](t, http.StatusConflict, http.MethodPost, "/api/payments/ecocash", userKey,
		map[string]any{"orderId": o.ID, "phoneNumber": "0771234567"})
}

func TestCancelledPaymentRestocks(t *testing.T) {
	before := expect[productResponse](t, http.StatusOK, http.MethodGet, "/api/products/4", "", nil)
	o := placeOrder(t, userKey, map[string]any{"productId": "4", "quantity": 1})

	mid := expect[productResponse](t, http.StatusOK, http.MethodGet, "/api/products/4", "", nil)
	if mid.StockQuantity != before.StockQuantity-1 {
		t.Fatalf("expected stock reserved, got %d", mid.StockQuantity)
	}

	in := payEcocash(t, o.ID, "+263 78 123 4567")
	gateway.setStatus(in.Reference, "Cancelled")

	st := expect[statusResponse](t, http.StatusOK, http.MethodGet,
		"/api/payments/"+in.Payment.ID+"/status", userKey, nil)
	if st.Status != "cancelled" || !st.Polled {
		t.Fatalf("expected polled cancelled, got %+v", st)
	}

	got := expect[orderResponse](t, http.StatusOK, http.MethodGet, "/api/orders/"+o.ID, userKey, nil)
	if got.Status != "cancelled" {
		t.Fatalf("expected order cancelled, got %s", got.Status)
	}
	after := expect[productResponse](t, http.StatusOK, http.MethodGet, "/api/products/4", "", nil)
	if after.StockQuantity != before.StockQuantity {
		t.Fatalf("expected stock restored to %d, got %d", before.StockQuantity, after.StockQuantity)
	}

	// Terminal payments are answered from storage.
	st = expect[statusResponse](t, http.StatusOK, http.MethodGet,
		"/api/payments/"+in.Payment.ID+"/status", userKey, nil)
	if st.Status != "cancelled" || st.Polled {
		t.Fatalf("expected stored cancelled, got %+v", st)
	}
}

func TestCancellationRacingCheckout(t *testing.T) {
	// The cancelled order lists products in reverse id order so its restock
	// would contend with the checkout's id-ordered locks.
	items := []map[string]any{
		{"productId": "3", "quantity": 1},
		{"productId": "1", "quantity": 1},
	}
	before1 := expect[productResponse](t, http.StatusOK, http.MethodGet, "/api/products/1", "", nil)
	before3 := expect[productResponse](t, http.StatusOK, http.MethodGet, "/api/products/3", "", nil)

	const rounds = 5
	for range rounds {
		o := placeOrder(t, userKey, items...)
		in := payEcocash(t, o.ID, "0772 000 111")

		resetCart(t, adminKey)
		for _, it := range items {
			expect[cartLineResponse](t, http.StatusCreated, http.MethodPost, "/api/cart/items", adminKey, it)
		}

		var (
			wg       sync.WaitGroup
			checkout int
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodPost, baseURL+"/api/orders",
				strings.NewReader(`{"shippingAddress":"1 Main St"}`))
			if err != nil {
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("api_key", adminKey)
			resp, err := httpClient.Do(req)
			if err != nil {
				return
			}
			resp.Body.Close()
			checkout = resp.StatusCode
		}()
		go func() {
			defer wg.Done()
			resp, err := httpClient.Post(baseURL+"/api/payments/paynow/webhook",
				"application/x-www-form-urlencoded", strings.NewReader(encode(sign([]field{
					{"reference", in.Payment.InvoiceNumber},
					{"paynowreference", in.Reference},
					{"amount", o.TotalAmount},
					{"status", "Cancelled"},
					{"pollurl", in.PollURL},
				}))))
			if err == nil {
				resp.Body.Close()
			}
		}()
		wg.Wait()

		if checkout != http.StatusCreated {
			t.Fatalf("expected checkout to succeed, got %d", checkout)
		}
		got := expect[orderResponse](t, http.StatusOK, http.MethodGet, "/api/orders/"+o.ID, userKey, nil)
		if got.Status != "cancelled" {
			t.Fatalf("expected order cancelled, got %s", got.Status)
		}
	}

	// Only the checkouts keep their stock.
	after1 := expect[productResponse](t, http.StatusOK, http.MethodGet, "/api/products/1", "", nil)
	after3 := expect[productResponse](t, http.StatusOK, http.MethodGet, "/api/products/3", "", nil)
	if after1.StockQuantity != before1.StockQuantity-rounds || after3.StockQuantity != before3.StockQuantity-rounds {
		t.Fatalf("unexpected stock: product 1 %d -> %d, product 3 %d -> %d",
			before1.StockQuantity, after1.StockQuantity, before3.StockQuantity, after3.StockQuantity)
	}
	resetCart(t, adminKey)
}

func TestEcocashRejections(t *testing.T) {
	o := placeOrder(t, userKey, map[string]any{"productId": "3", "quantity": 1})

	tests := []struct {
		name  string
		phone string
		want  int
		kind  string
	}{
		{"malformed", "12345", http.StatusBadRequest, "invalid_input"},
		{"netone", "0712345678", http.StatusBadRequest, "invalid_input"},
		{"gateway rejects", "0779999999", http.StatusBadGateway, "external_failure"},
	}
	gateway.rejectPhone("263779999999", "Insufficient balance")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := expect[errorResponse](t, tt.want, http.MethodPost, "/api/payments/ecocash", userKey,
				map[string]any{"orderId": o.ID, "phoneNumber": tt.phone})
			if e.Kind != tt.kind {
				t.Fatalf("expected kind %s, got %s (%s)", tt.kind, e.Kind, e.Message)
			}
		})
	}

	// Another user's order is invisible.
	expect[errorResponse](t, http.StatusNotFound, http.MethodPost, "/api/payments/ecocash", adminKey,
		map[string]any{"orderId": o.ID, "phoneNumber": "0771234567"})

	// Nothing was recorded for the rejected attempts.
	for _, p := range expect[[]paymentResponse](t, http.StatusOK, http.MethodGet, "/api/payments", userKey, nil) {
		if p.OrderID == o.ID {
			t.Fatalf("unexpected payment recorded for rejected order: %+v", p)
		}
	}
}

func TestTamperedWebhookIgnored(t *testing.T) {
	o := placeOrder(t, userKey, map[string]any{"productId": "3", "quantity": 1})
	in := payEcocash(t, o.ID, "0771234567")

	fields := sign([]field{
		{"reference", in.Payment.InvoiceNumber},
		{"paynowreference", in.Reference},
		{"amount", "0.01"},
		{"status", "Paid"},
		{"pollurl", in.PollURL},
	})
	fields[2].value = "24.50"
	postWebhook(t, fields)

	// Unknown references are acknowledged too.
	postWebhook(t, sign([]field{
		{"reference", "ORD-UNKNOWN"},
		{"paynowreference", "999999"},
		{"amount", "1.00"},
		{"status", "Paid"},
		{"pollurl", stubPublicURL + "/poll/999999"},
	}))

	got := expect[orderResponse](t, http.StatusOK, http.MethodGet, "/api/orders/"+o.ID, userKey, nil)
	if got.Status == "confirmed" {
		t.Fatal("tampered notification confirmed the order")
	}
}

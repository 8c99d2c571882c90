//go:build integration

package integration

import (
	"net/http"
	"strings"
	"sync"
	"testing"
)

func TestAuthRequired(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		key    string
		want   int
	}{
		{"no key", http.MethodGet, "/api/cart", "", http.StatusUnauthorized},
		{"bad key", http.MethodGet, "/api/orders", "wrong-key", http.StatusUnauthorized},
		{"customer on admin route", http.MethodGet, "/api/admin/rentals", userKey, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, tt.method, tt.path, tt.key, nil)
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

func TestCartLedger(t *testing.T) {
	resetCart(t, userKey)

	// Rental requests need a duration and a rentable product.
	e := expect[errorResponse](t, http.StatusBadRequest, http.MethodPost, "/api/cart/items", userKey,
		map[string]any{"productId": "1", "isRental": true})
	if e.Kind != "invalid_input" {
		t.Fatalf("expected invalid_input, got %q", e.Kind)
	}
	e = expect[errorResponse](t, http.StatusConflict, http.MethodPost, "/api/cart/items", userKey,
		map[string]any{"productId": "3", "isRental": true, "rentalDays": 2})
	if e.Kind != "conflict" {
		t.Fatalf("expected conflict, got %q", e.Kind)
	}
	expect[errorResponse](t, http.StatusConflict, http.MethodPost, "/api/cart/items", userKey,
		map[string]any{"productId": "6", "quantity": 1})

	// Adding the same purchase twice accumulates.
	expect[cartLineResponse](t, http.StatusCreated, http.MethodPost, "/api/cart/items", userKey,
		map[string]any{"productId": "3", "quantity": 1})
	line := expect[cartLineResponse](t, http.StatusCreated, http.MethodPost, "/api/cart/items", userKey,
		map[string]any{"productId": "3", "quantity": 2})
	if line.Quantity != 3 {
		t.Fatalf("expected accumulated quantity 3, got %d", line.Quantity)
	}

	rental := expect[cartLineResponse](t, http.StatusCreated, http.MethodPost, "/api/cart/items", userKey,
		map[string]any{"productId": "1", "isRental": true, "rentalDays": 3})
	if rental.PriceAtAddition != "29.97" {
		t.Fatalf("expected rental snapshot 29.97, got %s", rental.PriceAtAddition)
	}

	// Update replaces the quantity and reprices rentals.
	line = expect[cartLineResponse](t, http.StatusOK, http.MethodPut, "/api/cart/items/"+line.ID, userKey,
		map[string]any{"quantity": 1})
	if line.Quantity != 1 {
		t.Fatalf("expected quantity 1, got %d", line.Quantity)
	}
	rental = expect[cartLineResponse](t, http.StatusOK, http.MethodPut, "/api/cart/items/"+rental.ID, userKey,
		map[string]any{"rentalDays": 5})
	if rental.PriceAtAddition != "49.95" {
		t.Fatalf("expected repriced rental 49.95, got %s", rental.PriceAtAddition)
	}

	// Another user cannot touch the line.
	expect[errorResponse](t, http.StatusNotFound, http.MethodPut, "/api/cart/items/"+line.ID, adminKey,
		map[string]any{"quantity": 4})
	expect[errorResponse](t, http.StatusNotFound, http.MethodDelete, "/api/cart/items/"+line.ID, adminKey, nil)

	c := expect[cartResponse](t, http.StatusOK, http.MethodGet, "/api/cart", userKey, nil)
	if len(c.Items) != 2 || c.Subtotal != "74.45" {
		t.Fatalf("unexpected cart: %+v", c)
	}

	expect[struct{}](t, http.StatusNoContent, http.MethodDelete, "/api/cart/items/"+line.ID, userKey, nil)
	c = expect[cartResponse](t, http.StatusOK, http.MethodGet, "/api/cart", userKey, nil)
	if len(c.Items) != 1 {
		t.Fatalf("expected 1 line after removal, got %d", len(c.Items))
	}
	resetCart(t, userKey)
}

func TestCreateOrder(t *testing.T) {
	resetCart(t, userKey)

	e := expect[errorResponse](t, http.StatusBadRequest, http.MethodPost, "/api/orders", userKey,
		map[string]any{"shippingAddress": "1 Main St"})
	if e.Kind != "invalid_input" {
		t.Fatalf("empty cart: expected invalid_input, got %q", e.Kind)
	}

	before := expect[productResponse](t, http.StatusOK, http.MethodGet, "/api/products/3", "", nil)
	expect[cartLineResponse](t, http.StatusCreated, http.MethodPost, "/api/cart/items", userKey,
		map[string]any{"productId": "3", "quantity": 2})
	expect[cartLineResponse](t, http.StatusCreated, http.MethodPost, "/api/cart/items", userKey,
		map[string]any{"productId": "1", "isRental": true, "rentalDays": 3})

	o := expect[orderResponse](t, http.StatusCreated, http.MethodPost, "/api/orders", userKey,
		map[string]any{"shippingAddress": "1 Main St", "paymentMethod": "ecocash"})
	if o.Status != "pending" || o.TotalAmount != "78.97" || len(o.Items) != 2 {
		t.Fatalf("unexpected order: %+v", o)
	}
	for _, l := range o.Items {
		if l.IsRental && (l.RentalStartDate == nil || l.RentalEndDate == nil) {
			t.Fatalf("rental line without dates: %+v", l)
		}
	}

	after := expect[productResponse](t, http.StatusOK, http.MethodGet, "/api/products/3", "", nil)
	if after.StockQuantity != before.StockQuantity-2 {
		t.Fatalf("expected stock %d, got %d", before.StockQuantity-2, after.StockQuantity)
	}
	c := expect[cartResponse](t, http.StatusOK, http.MethodGet, "/api/cart", userKey, nil)
	if len(c.Items) != 0 {
		t.Fatalf("expected cart cleared, got %d lines", len(c.Items))
	}

	got := expect[orderResponse](t, http.StatusOK, http.MethodGet, "/api/orders/"+o.ID, userKey, nil)
	if got.ID != o.ID {
		t.Fatalf("expected order %s, got %s", o.ID, got.ID)
	}
	// Other users see not found, not forbidden.
	expect[errorResponse](t, http.StatusNotFound, http.MethodGet, "/api/orders/"+o.ID, adminKey, nil)

	list := expect[[]orderResponse](t, http.StatusOK, http.MethodGet, "/api/orders", userKey, nil)
	if len(list) == 0 || list[0].ID != o.ID {
		t.Fatalf("expected newest order first")
	}
}

func TestConcurrentCheckoutDoesNotOversell(t *testing.T) {
	// Product 5 has a single unit in stock.
	keys := []string{userKey, adminKey}
	for _, k := range keys {
		resetCart(t, k)
		expect[cartLineResponse](t, http.StatusCreated, http.MethodPost, "/api/cart/items", k,
			map[string]any{"productId": "5", "quantity": 1})
	}

	statuses := make([]int, len(keys))
	var wg sync.WaitGroup
	for i, k := range keys {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodPost, baseURL+"/api/orders",
				strings.NewReader(`{"shippingAddress":"1 Main St"}`))
			if err != nil {
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("api_key", k)
			resp, err := httpClient.Do(req)
			if err != nil {
				return
			}
			resp.Body.Close()
			statuses[i] = resp.StatusCode
		}()
	}
	wg.Wait()

	var created, conflicts int
	for _, s := range statuses {
		switch s {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicts++
		}
	}
	if created != 1 || conflicts != 1 {
		t.Fatalf("expected one order and one conflict, got statuses %v", statuses)
	}

	p := expect[productResponse](t, http.StatusOK, http.MethodGet, "/api/products/5", "", nil)
	if p.StockQuantity != 0 {
		t.Fatalf("expected stock 0, got %d", p.StockQuantity)
	}
	for _, k := range keys {
		resetCart(t, k)
	}
}

package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/rentkart/internal/domain/auth"
	"github.com/xenking/rentkart/internal/domain/cart"
	"github.com/xenking/rentkart/internal/domain/order"
	"github.com/xenking/rentkart/internal/domain/payment"
	"github.com/xenking/rentkart/internal/domain/product"
	"github.com/xenking/rentkart/internal/domain/rental"
	"github.com/xenking/rentkart/internal/paynow"
)

const (
	testPepper     = "test-pepper"
	testUserKey    = "user-key"
	testAdminKey   = "admin-key"
	testPaynowKey  = "integration-key"
	testUserID     = "11111111-1111-1111-1111-111111111111"
	testAdminID    = "22222222-2222-2222-2222-222222222222"
	testOrderID    = "33333333-3333-3333-3333-333333333333"
	testPaymentID  = "44444444-4444-4444-4444-444444444444"
	testRentalID   = "55555555-5555-5555-5555-555555555555"
	testProductID  = "66666666-6666-6666-6666-666666666666"
	testCartLineID = "77777777-7777-7777-7777-777777777777"
)

// --- Mock implementations ---

type mockAPIKeyRepo struct {
	byHash map[string]*auth.APIKeyInfo
}

func newMockAPIKeyRepo() *mockAPIKeyRepo {
	pepper := []byte(testPepper)
	user := auth.HashKey(pepper, testUserKey)
	admin := auth.HashKey(pepper, testAdminKey)
	return &mockAPIKeyRepo{byHash: map[string]*auth.APIKeyInfo{
		user:  {ID: "k1", KeyHash: user, UserID: testUserID},
		admin: {ID: "k2", KeyHash: admin, UserID: testAdminID, Scopes: []string{auth.ScopeAdmin}},
	}}
}

func (m *mockAPIKeyRepo) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	info, ok := m.byHash[hash]
	if !ok {
		return nil, errors.New("api key not found")
	}
	return info, nil
}

type mockProductRepo struct {
	byID map[string]*product.Product
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	var out []product.Product
	for _, p := range m.byID {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

type mockCarts struct {
	cart    *cart.Cart
	err     error
	lastAdd cart.AddItemRequest
	lastUpd cart.UpdateItemRequest
	userID  string
}

func (m *mockCarts) GetCart(_ context.Context, userID string) (*cart.Cart, error) {
	m.userID = userID
	return m.cart, m.err
}

func (m *mockCarts) AddItem(_ context.Context, userID string, req cart.AddItemRequest) (*cart.Line, error) {
	m.userID, m.lastAdd = userID, req
	if m.err != nil {
		return nil, m.err
	}
	return &cart.Line{ID: testCartLineID, ProductID: req.ProductID, Quantity: req.Quantity, PriceAtAddition: decimal.RequireFromString("10")}, nil
}

func (m *mockCarts) UpdateItem(_ context.Context, userID, lineID string, req cart.UpdateItemRequest) (*cart.Line, error) {
	m.userID, m.lastUpd = userID, req
	if m.err != nil {
		return nil, m.err
	}
	return &cart.Line{ID: lineID, Quantity: *req.Quantity, PriceAtAddition: decimal.RequireFromString("10")}, nil
}

func (m *mockCarts) RemoveItem(_ context.Context, userID, _ string) error {
	m.userID = userID
	return m.err
}

func (m *mockCarts) ClearCart(_ context.Context, userID string) error {
	m.userID = userID
	return m.err
}

type mockOrders struct {
	order   *order.Order
	err     error
	lastReq order.CreateOrderRequest
	lastTo  order.Status
}

func (m *mockOrders) CreateOrder(_ context.Context, _ string, req order.CreateOrderRequest) (*order.Order, error) {
	m.lastReq = req
	return m.order, m.err
}

func (m *mockOrders) GetUserOrders(_ context.Context, _ string) ([]order.Order, error) {
	if m.order == nil {
		return nil, m.err
	}
	return []order.Order{*m.order}, m.err
}

func (m *mockOrders) GetOrder(_ context.Context, _ string, _ string) (*order.Order, error) {
	return m.order, m.err
}

func (m *mockOrders) AdvanceStatus(_ context.Context, _ string, to order.Status) (*order.Order, error) {
	m.lastTo = to
	return m.order, m.err
}

type mockPayments struct {
	payment       *payment.Payment
	err           error
	notifications []payment.Notification
	lastPhone     string
}

func (m *mockPayments) ProcessEcocashPayment(_ context.Context, _ string, _ string, phone string) (*payment.Initiation, error) {
	m.lastPhone = phone
	if m.err != nil {
		return nil, m.err
	}
	return &payment.Initiation{Payment: m.payment, PollURL: "https://paynow.test/poll", Reference: "PN-1", Instructions: "Dial *151#"}, nil
}

func (m *mockPayments) CheckPaymentStatus(_ context.Context, _ string, _ string) (*payment.StatusResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &payment.StatusResult{Payment: m.payment, Polled: true}, nil
}

func (m *mockPayments) HandleWebhook(_ context.Context, n payment.Notification) error {
	m.notifications = append(m.notifications, n)
	return m.err
}

func (m *mockPayments) GetPaymentHistory(_ context.Context, _ string) ([]payment.Payment, error) {
	if m.payment == nil {
		return nil, m.err
	}
	return []payment.Payment{*m.payment}, m.err
}

type mockRentals struct {
	settlement *rental.Settlement
	err        error
	lastReturn rental.ReturnRequest
	scanned    bool
}

func (m *mockRentals) GetUserRentals(_ context.Context, _ string) ([]rental.Rental, error) {
	return nil, m.err
}

func (m *mockRentals) GetAllRentals(_ context.Context) ([]rental.Rental, error) {
	return nil, m.err
}

func (m *mockRentals) ProcessReturn(_ context.Context, _ string, req rental.ReturnRequest) (*rental.Settlement, error) {
	m.lastReturn = req
	return m.settlement, m.err
}

func (m *mockRentals) CheckOverdueRentals(_ context.Context) (*rental.OverdueScan, error) {
	m.scanned = true
	return &rental.OverdueScan{}, m.err
}

// --- Helpers ---

type testEnv struct {
	server   *httptest.Server
	products *mockProductRepo
	carts    *mockCarts
	orders   *mockOrders
	payments *mockPayments
	rentals  *mockRentals
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		products: &mockProductRepo{byID: map[string]*product.Product{
			testProductID: {
				ID:                testProductID,
				Name:              "Cordless Drill",
				Category:          "tools",
				Price:             decimal.RequireFromString("89.5"),
				RentalPricePerDay: decimal.RequireFromString("9.99"),
				StockQuantity:     4,
				IsAvailable:       true,
				CanBeRented:       true,
				ImageURL:          "images/drill.jpg",
			},
		}},
		carts:    &mockCarts{},
		orders:   &mockOrders{},
		payments: &mockPayments{},
		rentals:  &mockRentals{},
	}
	h := NewHandler(HandlerConfig{ImageBaseURL: "https://cdn.test"}, Deps{
		Products:      env.products,
		Carts:         env.carts,
		Orders:        env.orders,
		Payments:      env.payments,
		Rentals:       env.rentals,
		Notifications: paynow.New(paynow.Config{IntegrationKey: testPaynowKey}, noop.NewTracerProvider()),
		Auth:          NewAuthenticator(newMockAPIKeyRepo(), []byte(testPepper)),
	})
	mux := http.NewServeMux()
	h.Register(mux)
	env.server = httptest.NewServer(mux)
	t.Cleanup(env.server.Close)
	return env
}

func (env *testEnv) do(t *testing.T, method, path, key, contentType, body string) (int, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, env.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if key != "" {
		req.Header.Set(APIKeyHeader, key)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func (env *testEnv) doJSON(t *testing.T, method, path, key, body string) (int, []byte) {
	t.Helper()
	return env.do(t, method, path, key, "application/json", body)
}

// field extracts a top-level string field from a JSON object.
func field(t *testing.T, raw []byte, name string) string {
	t.Helper()

	var out string
	err := jx.DecodeBytes(raw).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != name || d.Next() != jx.String {
			return d.Skip()
		}
		s, err := d.Str()
		out = s
		return err
	})
	require.NoError(t, err, string(raw))
	return out
}

func sampleOrder() *order.Order {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 3)
	return &order.Order{
		ID:              testOrderID,
		UserID:          testUserID,
		Status:          order.StatusPending,
		TotalAmount:     decimal.RequireFromString("29.97"),
		ShippingAddress: "12 Samora Machel Ave, Harare",
		PaymentMethod:   payment.MethodEcocash,
		Lines: []order.Line{{
			ID: "l1", OrderID: testOrderID, ProductID: testProductID, Quantity: 1,
			Price: decimal.RequireFromString("29.97"), IsRental: true, RentalDays: 3,
			RentalStartDate: &start, RentalEndDate: &end,
		}},
		CreatedAt: start,
		UpdatedAt: start,
	}
}

// --- Tests ---

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t)
	env.carts.cart = &cart.Cart{ID: "c1", UserID: testUserID}

	tests := []struct {
		name       string
		method     string
		path       string
		key        string
		wantStatus int
		wantKind   string
	}{
		{"missing key", http.MethodGet, "/api/cart", "", http.StatusUnauthorized, "unauthorized"},
		{"unknown key", http.MethodGet, "/api/cart", "nope", http.StatusUnauthorized, "unauthorized"},
		{"user key", http.MethodGet, "/api/cart", testUserKey, http.StatusOK, ""},
		{"user on admin route", http.MethodGet, "/api/admin/rentals", testUserKey, http.StatusForbidden, "forbidden"},
		{"admin on admin route", http.MethodGet, "/api/admin/rentals", testAdminKey, http.StatusOK, ""},
		{"catalog is public", http.MethodGet, "/api/products", "", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.doJSON(t, tt.method, tt.path, tt.key, "")
			assert.Equal(t, tt.wantStatus, status, string(body))
			if tt.wantKind != "" {
				assert.Equal(t, tt.wantKind, field(t, body, "kind"))
			}
		})
	}
}

func TestAuthenticatedUserIsPassedToServices(t *testing.T) {
	env := newTestEnv(t)
	env.carts.cart = &cart.Cart{ID: "c1", UserID: testUserID}

	status, _ := env.doJSON(t, http.MethodGet, "/api/cart", testUserKey, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, testUserID, env.carts.userID)
}

func TestErrorKindsMapToStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
		wantMsg    string
	}{
		{"not found", cart.ErrNotFound, http.StatusNotFound, "not_found", cart.ErrNotFound.Error()},
		{"invalid", errors.Wrap(cart.ErrRentalDaysRequired, "add"), http.StatusBadRequest, "invalid_input", cart.ErrRentalDaysRequired.Error()},
		{"conflict", cart.ErrNotRentable, http.StatusConflict, "conflict", cart.ErrNotRentable.Error()},
		{"gateway", &payment.GatewayError{Message: "insufficient balance"}, http.StatusBadGateway, "external_failure", "payment gateway: insufficient balance"},
		{"internal", errors.New("conn reset by peer"), http.StatusInternalServerError, "internal", "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.carts.err = tt.err

			status, body := env.doJSON(t, http.MethodGet, "/api/cart", testUserKey, "")
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantKind, field(t, body, "kind"))
			assert.Equal(t, tt.wantMsg, field(t, body, "message"))
		})
	}
}

func TestAddCartItem(t *testing.T) {
	t.Run("decodes request", func(t *testing.T) {
		env := newTestEnv(t)
		status, body := env.doJSON(t, http.MethodPost, "/api/cart/items", testUserKey,
			`{"productId":"`+testProductID+`","quantity":2,"isRental":true,"rentalDays":3,"extra":{"a":1}}`)
		require.Equal(t, http.StatusCreated, status, string(body))
		assert.Equal(t, cart.AddItemRequest{ProductID: testProductID, Quantity: 2, IsRental: true, RentalDays: 3}, env.carts.lastAdd)
		assert.Equal(t, "10.00", field(t, body, "priceAtAddition"))
	})

	t.Run("missing product id", func(t *testing.T) {
		env := newTestEnv(t)
		status, body := env.doJSON(t, http.MethodPost, "/api/cart/items", testUserKey, `{"quantity":1}`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "invalid_input", field(t, body, "kind"))
		assert.Contains(t, field(t, body, "message"), "productID")
	})

	t.Run("malformed json", func(t *testing.T) {
		env := newTestEnv(t)
		status, body := env.doJSON(t, http.MethodPost, "/api/cart/items", testUserKey, `{"productId":`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "invalid_input", field(t, body, "kind"))
	})
}

func TestUpdateCartItem(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.doJSON(t, http.MethodPut, "/api/cart/items/"+testCartLineID, testUserKey, `{"quantity":5,"rentalDays":null}`)
	require.Equal(t, http.StatusOK, status, string(body))
	require.NotNil(t, env.carts.lastUpd.Quantity)
	assert.Equal(t, 5, *env.carts.lastUpd.Quantity)
	assert.Nil(t, env.carts.lastUpd.RentalDays)
	assert.Equal(t, testCartLineID, field(t, body, "id"))

	status, _ = env.doJSON(t, http.MethodPut, "/api/cart/items/"+testCartLineID, testUserKey, `{"quantity":0}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRemoveAndClearCart(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.doJSON(t, http.MethodDelete, "/api/cart/items/"+testCartLineID, testUserKey, "")
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = env.doJSON(t, http.MethodDelete, "/api/cart", testUserKey, "")
	assert.Equal(t, http.StatusNoContent, status)

	env.carts.err = cart.ErrNotFound
	status, _ = env.doJSON(t, http.MethodDelete, "/api/cart", testUserKey, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCreateOrder(t *testing.T) {
	env := newTestEnv(t)
	env.orders.order = sampleOrder()

	status, body := env.doJSON(t, http.MethodPost, "/api/orders", testUserKey, `{"shippingAddress":"12 Samora Machel Ave, Harare"}`)
	require.Equal(t, http.StatusCreated, status, string(body))
	assert.Equal(t, payment.MethodEcocash, env.orders.lastReq.PaymentMethod)
	assert.Equal(t, "29.97", field(t, body, "totalAmount"))
	assert.Equal(t, string(order.StatusPending), field(t, body, "status"))

	status, _ = env.doJSON(t, http.MethodPost, "/api/orders", testUserKey, `{"shippingAddress":"x","paymentMethod":"card"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	env.orders.err = &order.UnavailableError{ProductID: testProductID, Name: "Cordless Drill", Reason: "has insufficient stock"}
	status, body = env.doJSON(t, http.MethodPost, "/api/orders", testUserKey, `{"shippingAddress":"x"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, field(t, body, "message"), "Cordless Drill")
}

func TestAdvanceOrderStatus(t *testing.T) {
	env := newTestEnv(t)
	o := sampleOrder()
	o.Status = order.StatusShipped
	env.orders.order = o

	status, body := env.doJSON(t, http.MethodPatch, "/api/admin/orders/"+testOrderID+"/status", testAdminKey, `{"status":"shipped"}`)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, order.StatusShipped, env.orders.lastTo)

	status, _ = env.doJSON(t, http.MethodPatch, "/api/admin/orders/"+testOrderID+"/status", testUserKey, `{"status":"shipped"}`)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestProcessEcocashPayment(t *testing.T) {
	env := newTestEnv(t)
	env.payments.payment = &payment.Payment{
		ID: testPaymentID, OrderID: testOrderID, Method: payment.MethodEcocash,
		Amount: decimal.RequireFromString("29.97"), PhoneNumber: "263771234567", Status: payment.StatusPending,
	}

	status, body := env.doJSON(t, http.MethodPost, "/api/payments/ecocash", testUserKey,
		`{"orderId":"`+testOrderID+`","phoneNumber":"0771 234 567"}`)
	require.Equal(t, http.StatusCreated, status, string(body))
	assert.Equal(t, "0771 234 567", env.payments.lastPhone)
	assert.Equal(t, "https://paynow.test/poll", field(t, body, "pollUrl"))
	assert.Equal(t, "PN-1", field(t, body, "reference"))

	env.payments.err = payment.ErrInvalidPhone
	status, _ = env.doJSON(t, http.MethodPost, "/api/payments/ecocash", testUserKey,
		`{"orderId":"`+testOrderID+`","phoneNumber":"12"}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestPaymentStatus(t *testing.T) {
	env := newTestEnv(t)
	env.payments.payment = &payment.Payment{ID: testPaymentID, Status: payment.StatusPaid, Amount: decimal.RequireFromString("5")}

	status, body := env.doJSON(t, http.MethodGet, "/api/payments/"+testPaymentID+"/status", testUserKey, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "paid", field(t, body, "status"))

	env.payments.err = payment.ErrNotFound
	status, _ = env.doJSON(t, http.MethodGet, "/api/payments/"+testPaymentID+"/status", testUserKey, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func signedNotification(status string) paynow.Fields {
	return paynow.Fields{
		{Key: "reference", Value: "RK-" + testOrderID + "AB1234"},
		{Key: "paynowreference", Value: "9876"},
		{Key: "amount", Value: "29.97"},
		{Key: "status", Value: status},
		{Key: "pollurl", Value: "https://paynow.test/poll?guid=1"},
	}.Sign(testPaynowKey)
}

func TestPaynowWebhook(t *testing.T) {
	t.Run("form encoded", func(t *testing.T) {
		env := newTestEnv(t)
		status, _ := env.do(t, http.MethodPost, "/api/payments/paynow/webhook", "",
			"application/x-www-form-urlencoded", signedNotification("Paid").Encode())
		assert.Equal(t, http.StatusOK, status)
		require.Len(t, env.payments.notifications, 1)
		assert.Equal(t, payment.Notification{
			Reference:         "RK-" + testOrderID + "AB1234",
			ExternalReference: "9876",
			Status:            payment.StatusPaid,
		}, env.payments.notifications[0])
	})

	t.Run("json", func(t *testing.T) {
		env := newTestEnv(t)
		e := jx.GetEncoder()
		e.Obj(func(e *jx.Encoder) {
			for _, f := range signedNotification("Cancelled") {
				e.Field(f.Key, func(e *jx.Encoder) { e.Str(f.Value) })
			}
		})
		status, _ := env.doJSON(t, http.MethodPost, "/api/payments/paynow/webhook", "", e.String())
		jx.PutEncoder(e)
		assert.Equal(t, http.StatusOK, status)
		require.Len(t, env.payments.notifications, 1)
		assert.Equal(t, payment.StatusCancelled, env.payments.notifications[0].Status)
	})

	t.Run("tampered hash is acknowledged and ignored", func(t *testing.T) {
		env := newTestEnv(t)
		fs := signedNotification("Paid")
		fs[3].Value = "Cancelled"
		status, _ := env.do(t, http.MethodPost, "/api/payments/paynow/webhook", "",
			"application/x-www-form-urlencoded", fs.Encode())
		assert.Equal(t, http.StatusOK, status)
		assert.Empty(t, env.payments.notifications)
	})

	t.Run("internal failure is acknowledged", func(t *testing.T) {
		env := newTestEnv(t)
		env.payments.err = errors.New("db down")
		status, _ := env.do(t, http.MethodPost, "/api/payments/paynow/webhook", "",
			"application/x-www-form-urlencoded", signedNotification("Paid").Encode())
		assert.Equal(t, http.StatusOK, status)
		assert.Len(t, env.payments.notifications, 1)
	})
}

func TestReturnRental(t *testing.T) {
	env := newTestEnv(t)
	returned := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	env.rentals.settlement = &rental.Settlement{
		Rental: &rental.Rental{
			ID: testRentalID, Status: rental.StatusReturned, DepositStatus: rental.DepositPartiallyRefunded,
			ActualReturnDate: &returned, DepositAmount: decimal.RequireFromString("50"),
			LateFee: decimal.RequireFromString("19.98"),
		},
		DaysLate:      2,
		LateFee:       decimal.RequireFromString("19.98"),
		DepositRefund: decimal.RequireFromString("25"),
	}

	status, body := env.doJSON(t, http.MethodPost, "/api/admin/rentals/"+testRentalID+"/return", testAdminKey,
		`{"actualReturnDate":"2024-01-05T12:00:00Z","condition":"damaged"}`)
	require.Equal(t, http.StatusOK, status, string(body))
	require.NotNil(t, env.rentals.lastReturn.ReturnedAt)
	assert.True(t, returned.Equal(*env.rentals.lastReturn.ReturnedAt))
	assert.Equal(t, rental.ConditionDamaged, env.rentals.lastReturn.Condition)
	assert.Equal(t, "19.98", field(t, body, "lateFee"))
	assert.Equal(t, "25.00", field(t, body, "depositRefund"))

	status, _ = env.doJSON(t, http.MethodPost, "/api/admin/rentals/"+testRentalID+"/return", testAdminKey, `{"condition":"fair"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, rental.Condition("fair"), env.rentals.lastReturn.Condition)

	env.rentals.err = rental.ErrNotReturnable
	status, _ = env.doJSON(t, http.MethodPost, "/api/admin/rentals/"+testRentalID+"/return", testAdminKey, `{}`)
	assert.Equal(t, http.StatusConflict, status)
}

func TestOverdueScanRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.doJSON(t, http.MethodPost, "/api/admin/rentals/overdue-scan", testUserKey, "")
	assert.Equal(t, http.StatusForbidden, status)
	assert.False(t, env.rentals.scanned)

	status, _ = env.doJSON(t, http.MethodPost, "/api/admin/rentals/overdue-scan", testAdminKey, "")
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.rentals.scanned)
}

func TestGetProduct(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.doJSON(t, http.MethodGet, "/api/products/"+testProductID, "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "89.50", field(t, body, "price"))
	assert.Equal(t, "https://cdn.test/images/drill.jpg", field(t, body, "imageUrl"))

	status, _ = env.doJSON(t, http.MethodGet, "/api/products/missing", "", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestResolveImageURL(t *testing.T) {
	assert.Equal(t, "/img.jpg", resolveImageURL("", "/img.jpg"))
	assert.Equal(t, "https://cdn/x/img.jpg", resolveImageURL("https://cdn/x/", "/img.jpg"))
	assert.Equal(t, "https://other/img.jpg", resolveImageURL("https://cdn", "https://other/img.jpg"))
	assert.Equal(t, "", resolveImageURL("https://cdn", ""))
}

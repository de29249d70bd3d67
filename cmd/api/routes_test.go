package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/bookshelf-orders/internal/analytics"
	"github.com/joao-fontenele/bookshelf-orders/internal/auth"
	"github.com/joao-fontenele/bookshelf-orders/internal/cart"
	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
	"github.com/joao-fontenele/bookshelf-orders/internal/inventory"
	"github.com/joao-fontenele/bookshelf-orders/internal/notify"
	"github.com/joao-fontenele/bookshelf-orders/internal/objectstore"
	"github.com/joao-fontenele/bookshelf-orders/internal/orders"
	"github.com/joao-fontenele/bookshelf-orders/internal/store/memory"
	"github.com/joao-fontenele/bookshelf-orders/internal/telemetry"
	"github.com/joao-fontenele/bookshelf-orders/internal/users"
)

type api struct {
	t      *testing.T
	server *httptest.Server
}

func newAPI(t *testing.T) (*api, *auth.Service) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := memory.New()

	objects, err := objectstore.NewLocal(t.TempDir(), "/uploads")
	require.NoError(t, err)

	metrics, err := telemetry.NewOrderMetrics()
	require.NoError(t, err)

	hub := notify.NewHub(logger)
	authSvc := auth.NewService(st, "test-secret", time.Hour)
	orderSvc := orders.NewService(st, objects, notify.Fanout{hub}, metrics, logger)

	mux := http.NewServeMux()
	registerRoutes(mux, routes{
		auth:       auth.NewHandler(authSvc, logger),
		middleware: auth.NewMiddleware(authSvc, logger),
		orders:     orders.NewHandler(orderSvc, hub, logger),
		inventory:  inventory.NewHandler(inventory.NewService(st, logger), logger),
		cart:       cart.NewHandler(cart.NewService(st, logger), logger),
		analytics:  analytics.NewHandler(analytics.NewService(st, logger), logger),
		users:      users.NewHandler(users.NewService(st, logger), logger),
		metrics:    http.NotFoundHandler(),
		uploads:    objects.Root(),
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &api{t: t, server: server}, authSvc
}

func (a *api) call(token, method, path, body string, out any) int {
	a.t.Helper()

	req, err := http.NewRequest(method, a.server.URL+path, strings.NewReader(body))
	require.NoError(a.t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	defer func() { _ = resp.Body.Close() }()

	if out != nil && resp.StatusCode < 300 {
		require.NoError(a.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type tokenBody struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func TestStorefrontFlow(t *testing.T) {
	a, authSvc := newAPI(t)

	_, err := authSvc.EnsureAdmin(context.Background(), auth.RegisterInput{
		Email:    "admin@example.com",
		Username: "admin",
		Password: "admin-password",
	})
	require.NoError(t, err)

	var adminLogin tokenBody
	require.Equal(t, http.StatusOK, a.call("", http.MethodPost, "/auth/login",
		`{"email":"admin@example.com","password":"admin-password"}`, &adminLogin))
	adminToken := adminLogin.Token

	var customer tokenBody
	require.Equal(t, http.StatusCreated, a.call("", http.MethodPost, "/auth/register",
		`{"email":"alice@example.com","username":"alice","password":"alice-password"}`, &customer))
	assert.Equal(t, domain.RoleCustomer, customer.User.Role)
	token := customer.Token

	assert.Equal(t, http.StatusConflict, a.call("", http.MethodPost, "/auth/register",
		`{"email":"alice@example.com","username":"alice2","password":"alice-password"}`, nil))

	productBody := `{"name":"Learning Go","description":"Idiomatic Go","price":"25.50","stock":5}`
	assert.Equal(t, http.StatusForbidden, a.call(token, http.MethodPost, "/products", productBody, nil))
	assert.Equal(t, http.StatusUnauthorized, a.call("", http.MethodPost, "/products", productBody, nil))

	var product domain.Product
	require.Equal(t, http.StatusCreated, a.call(adminToken, http.MethodPost, "/products", productBody, &product))
	require.NotEmpty(t, product.ID)

	assert.Equal(t, http.StatusConflict, a.call(token, http.MethodPost, "/cart",
		`{"product_id":"`+product.ID+`","quantity":6}`, nil))

	var c cart.Cart
	require.Equal(t, http.StatusOK, a.call(token, http.MethodPost, "/cart",
		`{"product_id":"`+product.ID+`","quantity":2}`, &c))
	require.Len(t, c.Lines, 1)
	assert.Equal(t, "51", c.Total.String())

	var order domain.Order
	require.Equal(t, http.StatusCreated, a.call(token, http.MethodPost, "/orders",
		`{"payment_method":"payme","delivery_address":{"line1":"Flat 5A","street":"12 Nathan Road","district":"Tsim Sha Tsui"}}`, &order))
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, domain.PaymentStatusNone, order.PaymentStatus)
	orderPath := "/orders/" + order.ID

	require.Equal(t, http.StatusOK, a.call(token, http.MethodGet, "/cart", "", &c))
	assert.Empty(t, c.Lines)

	assert.Equal(t, http.StatusUnauthorized, a.call("", http.MethodGet, orderPath, "", nil))
	assert.Equal(t, http.StatusConflict, a.call(adminToken, http.MethodPost, orderPath+"/ship", "", nil))

	assert.Equal(t, http.StatusBadRequest, a.call(token, http.MethodPost, orderPath+"/payment-proof",
		`{"image_ref":"catalog/cover.png"}`, nil))
	proof := objectstore.ProofKey(order.ID, "receipt.png", time.Now())
	require.Equal(t, http.StatusOK, a.call(token, http.MethodPost, orderPath+"/payment-proof",
		`{"image_ref":"`+proof+`"}`, &order))
	assert.Equal(t, domain.PaymentStatusPendingReview, order.PaymentStatus)
	assert.Equal(t, http.StatusConflict, a.call(token, http.MethodPost, orderPath+"/cancel", "", nil))

	assert.Equal(t, http.StatusForbidden, a.call(token, http.MethodPost, orderPath+"/payment-review", `{"decision":"approve"}`, nil))
	require.Equal(t, http.StatusOK, a.call(adminToken, http.MethodPost, orderPath+"/payment-review", `{"decision":"approve"}`, &order))
	assert.Equal(t, domain.PaymentStatusPaid, order.PaymentStatus)

	require.Equal(t, http.StatusOK, a.call(adminToken, http.MethodPost, orderPath+"/ship", "", &order))
	assert.Equal(t, domain.OrderStatusShipped, order.Status)

	var stocked domain.Product
	require.Equal(t, http.StatusOK, a.call("", http.MethodGet, "/products/"+product.ID, "", &stocked))
	assert.Equal(t, 3, stocked.Stock)

	require.Equal(t, http.StatusOK, a.call(adminToken, http.MethodPost, orderPath+"/deliver",
		`{"location":"flat 5a, 12 nathan road, tsim sha tsui, hong kong"}`, &order))
	require.Equal(t, http.StatusOK, a.call(token, http.MethodPost, orderPath+"/confirm", "", &order))
	assert.Equal(t, domain.OrderStatusCompleted, order.Status)

	require.Equal(t, http.StatusCreated, a.call(token, http.MethodPost, "/products/"+product.ID+"/comments",
		`{"rating":5,"text":"Great book"}`, nil))

	var sales []domain.ProductSales
	require.Equal(t, http.StatusOK, a.call(adminToken, http.MethodGet, "/analytics/sales", "", &sales))
	require.Len(t, sales, 1)
	assert.Equal(t, 2, sales[0].TotalQuantity)
	assert.Equal(t, "51", sales[0].TotalRevenue.String())
	require.NotNil(t, sales[0].AverageRating)
	assert.InDelta(t, 5.0, *sales[0].AverageRating, 0.001)

	assert.Equal(t, http.StatusForbidden, a.call(token, http.MethodGet, "/analytics/sales", "", nil))

	var msgs []domain.OrderMessage
	require.Equal(t, http.StatusOK, a.call(token, http.MethodGet, orderPath+"/messages", "", &msgs))
	assert.NotEmpty(t, msgs)

	var accounts []domain.User
	require.Equal(t, http.StatusOK, a.call(adminToken, http.MethodGet, "/users", "", &accounts))
	assert.Len(t, accounts, 2)
	assert.Equal(t, http.StatusForbidden, a.call(token, http.MethodGet, "/users", "", nil))

	var summary domain.CustomerSummary
	require.Equal(t, http.StatusOK, a.call(adminToken, http.MethodGet, "/users/"+customer.User.ID, "", &summary))
	assert.Equal(t, 1, summary.CompletedOrders)
	assert.Equal(t, "51.00", summary.TotalSpent.StringFixed(2))
	require.Len(t, summary.Products, 1)
	assert.Equal(t, 2, summary.Products[0].Quantity)

	var theirs []domain.Order
	require.Equal(t, http.StatusOK, a.call(adminToken, http.MethodGet, "/orders?user_id="+customer.User.ID, "", &theirs))
	require.Len(t, theirs, 1)
	assert.Equal(t, order.ID, theirs[0].ID)
}

func TestHealthz(t *testing.T) {
	a, _ := newAPI(t)
	assert.Equal(t, http.StatusOK, a.call("", http.MethodGet, "/healthz", "", nil))
}

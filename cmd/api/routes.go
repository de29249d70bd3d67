package main

import (
	"net/http"

	"github.com/joao-fontenele/bookshelf-orders/internal/analytics"
	"github.com/joao-fontenele/bookshelf-orders/internal/auth"
	"github.com/joao-fontenele/bookshelf-orders/internal/cart"
	"github.com/joao-fontenele/bookshelf-orders/internal/inventory"
	"github.com/joao-fontenele/bookshelf-orders/internal/orders"
	"github.com/joao-fontenele/bookshelf-orders/internal/telemetry"
	"github.com/joao-fontenele/bookshelf-orders/internal/users"
)

type routes struct {
	auth       *auth.Handler
	middleware *auth.Middleware
	orders     *orders.Handler
	inventory  *inventory.Handler
	cart       *cart.Handler
	analytics  *analytics.Handler
	users      *users.Handler
	metrics    http.Handler
	uploads    string
}

func registerRoutes(mux *http.ServeMux, r routes) {
	user := func(h http.HandlerFunc) http.HandlerFunc { return telemetry.WithHTTPRoute(r.middleware.Require(h)) }
	admin := func(h http.HandlerFunc) http.HandlerFunc { return telemetry.WithHTTPRoute(r.middleware.RequireAdmin(h)) }
	public := telemetry.WithHTTPRoute

	mux.Handle("GET /metrics", r.metrics)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("POST /auth/register", public(r.auth.HandleRegister))
	mux.HandleFunc("POST /auth/login", public(r.auth.HandleLogin))

	mux.HandleFunc("GET /products", public(r.inventory.HandleListProducts))
	mux.HandleFunc("GET /products/{id}", public(r.inventory.HandleGetProduct))
	mux.HandleFunc("GET /products/{id}/comments", public(r.inventory.HandleListComments))
	mux.HandleFunc("POST /products/{id}/comments", user(r.inventory.HandleAddComment))
	mux.HandleFunc("POST /products", admin(r.inventory.HandleCreateProduct))
	mux.HandleFunc("PUT /products/{id}", admin(r.inventory.HandleUpdateProduct))
	mux.HandleFunc("POST /products/{id}/stock", admin(r.inventory.HandleRestock))

	mux.HandleFunc("GET /cart", user(r.cart.HandleGet))
	mux.HandleFunc("POST /cart", user(r.cart.HandleAdd))
	mux.HandleFunc("PUT /cart/{productId}", user(r.cart.HandleUpdate))
	mux.HandleFunc("DELETE /cart/{productId}", user(r.cart.HandleRemove))

	// Role checks for lifecycle operations live in the orders service so
	// owner-only and admin-only rules report consistently.
	mux.HandleFunc("GET /orders", user(r.orders.HandleList))
	mux.HandleFunc("POST /orders", user(r.orders.HandleCreate))
	mux.HandleFunc("GET /orders/{id}", user(r.orders.HandleGet))
	mux.HandleFunc("POST /orders/{id}/payment-proof", user(r.orders.HandleSubmitPaymentProof))
	mux.HandleFunc("POST /orders/{id}/payment-review", user(r.orders.HandleReviewPayment))
	mux.HandleFunc("POST /orders/{id}/ship", user(r.orders.HandleShip))
	mux.HandleFunc("POST /orders/{id}/location", user(r.orders.HandleUpdateLocation))
	mux.HandleFunc("POST /orders/{id}/deliver", user(r.orders.HandleMarkDelivered))
	mux.HandleFunc("POST /orders/{id}/confirm", user(r.orders.HandleConfirmReceipt))
	mux.HandleFunc("POST /orders/{id}/cancel", user(r.orders.HandleCancel))
	mux.HandleFunc("GET /orders/{id}/messages", user(r.orders.HandleListMessages))
	mux.HandleFunc("POST /orders/{id}/messages", user(r.orders.HandleSendMessage))
	mux.HandleFunc("GET /orders/{id}/events", user(r.orders.HandleEvents))

	mux.HandleFunc("GET /analytics/sales", admin(r.analytics.HandleSales))
	mux.HandleFunc("GET /analytics/revenue", admin(r.analytics.HandleRevenue))

	mux.HandleFunc("GET /users", admin(r.users.HandleList))
	mux.HandleFunc("GET /users/{id}", admin(r.users.HandleGet))

	if r.uploads != "" {
		files := http.StripPrefix("/uploads/", http.FileServer(http.Dir(r.uploads)))
		mux.HandleFunc("GET /uploads/", user(files.ServeHTTP))
	}
}

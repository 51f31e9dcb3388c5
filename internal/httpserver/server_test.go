package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/store/memory"
	authmw "github.com/Skotchmaster/storefront/pkg/middleware/auth"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

type api struct {
	t *testing.T
	e *echo.Echo
}

func newAPI(t *testing.T) *api {
	t.Helper()
	s := memory.New()
	authSvc := &service.AuthService{Store: s, JWTSecret: testSecret, TokenTTL: time.Hour}

	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	Register(e, &Deps{
		AuthHandler:    &AuthHTTP{Svc: authSvc},
		ProductHandler: &ProductHTTP{Svc: &service.CatalogService{Store: s}},
		CartHandler:    &CartHTTP{Svc: &service.CartService{Store: s}},
		OrderHandler:   &OrderHTTP{Svc: &service.OrderService{Store: s, Policy: service.BlockPolicy{Threshold: 3}}},
		Auth:           authmw.New(testSecret, authSvc),
	})
	return &api{t: t, e: e}
}

type reply struct {
	Code int
	Body map[string]any
}

func (r reply) data() map[string]any {
	d, _ := r.Body["data"].(map[string]any)
	return d
}

func (a *api) do(method, path, token string, body any) reply {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	out := reply{Code: rec.Code}
	if rec.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &out.Body), rec.Body.String())
	}
	return out
}

func (a *api) register(email, role string) string {
	a.t.Helper()
	r := a.do(http.MethodPost, "/auth/register", "", map[string]string{"email": email, "password": "secret1", "role": role})
	require.Equal(a.t, http.StatusCreated, r.Code, r.Body)
	return r.data()["token"].(string)
}

func (a *api) createProduct(admin, name string, price float64, stock int) string {
	a.t.Helper()
	r := a.do(http.MethodPost, "/products", admin, map[string]any{"name": name, "price": price, "stock": stock})
	require.Equal(a.t, http.StatusCreated, r.Code, r.Body)
	return r.data()["id"].(string)
}

func (a *api) placeOne(customer, productID string, qty int) string {
	a.t.Helper()
	r := a.do(http.MethodPost, "/cart/items", customer, map[string]any{"productId": productID, "quantity": qty})
	require.Equal(a.t, http.StatusCreated, r.Code, r.Body)
	r = a.do(http.MethodPost, "/orders", customer, nil)
	require.Equal(a.t, http.StatusCreated, r.Code, r.Body)
	return r.data()["id"].(string)
}

func TestHealth(t *testing.T) {
	t.Parallel()
	a := newAPI(t)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/health/live", "", nil).Code)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/health/ready", "", nil).Code)
}

func TestAuthFlow(t *testing.T) {
	t.Parallel()
	a := newAPI(t)

	token := a.register("jane@example.com", "")

	r := a.do(http.MethodPost, "/auth/register", "", map[string]string{"email": "jane@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusConflict, r.Code)
	assert.Equal(t, "User with this email already exists", r.Body["message"])
	assert.Equal(t, false, r.Body["success"])
	assert.EqualValues(t, http.StatusConflict, r.Body["statusCode"])
	assert.Equal(t, "/auth/register", r.Body["path"])

	r = a.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "jane@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, r.Code)
	assert.Equal(t, "Invalid credentials", r.Body["message"])

	r = a.do(http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, r.Code)
	assert.Equal(t, "jane@example.com", r.data()["email"])
	assert.NotContains(t, r.data(), "passwordHash")

	r = a.do(http.MethodPost, "/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, r.Code)

	r = a.do(http.MethodGet, "/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, r.Code)
	assert.Equal(t, "Token has been revoked", r.Body["message"])

	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/auth/me", "", nil).Code)
}

func TestProducts(t *testing.T) {
	t.Parallel()
	a := newAPI(t)
	admin := a.register("admin@example.com", "ADMIN")
	customer := a.register("jane@example.com", "")

	r := a.do(http.MethodPost, "/products", customer, map[string]any{"name": "x", "price": 1, "stock": 1})
	assert.Equal(t, http.StatusForbidden, r.Code)

	r = a.do(http.MethodPost, "/products", admin, map[string]any{"name": "x", "price": 1, "stock": -1})
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.Equal(t, "Stock cannot be negative", r.Body["message"])

	id := a.createProduct(admin, "Gaming Laptop", 1499.99, 25)
	a.createProduct(admin, "Wireless Headphones", 199.99, 100)

	r = a.do(http.MethodGet, "/products?page=1&limit=1", "", nil)
	require.Equal(t, http.StatusOK, r.Code)
	pagination := r.data()["pagination"].(map[string]any)
	assert.EqualValues(t, 2, pagination["total"])
	assert.EqualValues(t, 2, pagination["totalPages"])
	assert.Len(t, r.data()["products"], 1)

	r = a.do(http.MethodGet, "/products/"+id, "", nil)
	require.Equal(t, http.StatusOK, r.Code)
	assert.Equal(t, "Gaming Laptop", r.data()["name"])

	r = a.do(http.MethodPatch, "/products/"+id, admin, map[string]any{"stock": 30})
	require.Equal(t, http.StatusOK, r.Code)
	assert.EqualValues(t, 30, r.data()["stock"])

	r = a.do(http.MethodGet, "/products/search?q=headph", "", nil)
	require.Equal(t, http.StatusOK, r.Code)
	assert.Len(t, r.data()["products"], 1)

	r = a.do(http.MethodDelete, "/products/"+id, admin, nil)
	assert.Equal(t, http.StatusOK, r.Code)
	r = a.do(http.MethodGet, "/products/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, r.Code)
	assert.Equal(t, "Product not found", r.Body["message"])
}

func TestCartAndOrderFlow(t *testing.T) {
	t.Parallel()
	a := newAPI(t)
	admin := a.register("admin@example.com", "ADMIN")
	customer := a.register("jane@example.com", "")
	id := a.createProduct(admin, "Widget", 10, 5)

	r := a.do(http.MethodPost, "/orders", customer, nil)
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.Equal(t, "Cart is empty", r.Body["message"])

	r = a.do(http.MethodPost, "/cart/items", customer, map[string]any{"productId": id, "quantity": 6})
	assert.Equal(t, http.StatusConflict, r.Code)
	assert.Equal(t, "Insufficient stock. Available: 5", r.Body["message"])

	r = a.do(http.MethodPost, "/cart/items", customer, map[string]any{"productId": id, "quantity": 3})
	require.Equal(t, http.StatusCreated, r.Code)
	assert.Equal(t, "Item added to cart successfully", r.Body["message"])

	r = a.do(http.MethodGet, "/cart", customer, nil)
	require.Equal(t, http.StatusOK, r.Code)
	assert.EqualValues(t, 1, r.data()["itemCount"])
	assert.Equal(t, "30", r.data()["total"])

	r = a.do(http.MethodGet, "/cart", admin, nil)
	assert.Equal(t, http.StatusForbidden, r.Code)

	r = a.do(http.MethodPost, "/orders", customer, nil)
	require.Equal(t, http.StatusCreated, r.Code)
	assert.Equal(t, "Order placed successfully", r.Body["message"])
	order := r.data()
	orderID := order["id"].(string)
	assert.Equal(t, "PENDING", order["status"])
	assert.Equal(t, "30", order["totalAmount"])
	assert.Len(t, order["orderItems"], 1)

	r = a.do(http.MethodGet, "/products/"+id, "", nil)
	assert.EqualValues(t, 2, r.data()["stock"])

	r = a.do(http.MethodGet, "/orders", customer, nil)
	require.Equal(t, http.StatusOK, r.Code)
	assert.EqualValues(t, 1, r.Body["count"])

	r = a.do(http.MethodGet, "/orders/"+orderID, admin, nil)
	assert.Equal(t, http.StatusNotFound, r.Code, "admins read other users' orders through the admin list")

	r = a.do(http.MethodGet, "/orders/admin/all", admin, nil)
	require.Equal(t, http.StatusOK, r.Code)
	assert.EqualValues(t, 1, r.Body["count"])
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/orders/admin/all", customer, nil).Code)

	r = a.do(http.MethodPatch, "/orders/"+orderID+"/status", admin, map[string]string{"status": "BOGUS"})
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.Equal(t, "Invalid status. Must be one of: PENDING, PROCESSING, SHIPPED, DELIVERED, CANCELLED", r.Body["message"])

	for _, st := range []string{"PROCESSING", "SHIPPED"} {
		r = a.do(http.MethodPatch, "/orders/"+orderID+"/status", admin, map[string]string{"status": st})
		require.Equal(t, http.StatusOK, r.Code, r.Body)
		assert.Equal(t, "Order status updated to "+st, r.Body["message"])
	}

	r = a.do(http.MethodPatch, "/orders/"+orderID+"/cancel", customer, nil)
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.Equal(t, "Cannot cancel shipped order. Please contact support.", r.Body["message"])
}

func TestCancellationBlocksAccount(t *testing.T) {
	t.Parallel()
	a := newAPI(t)
	admin := a.register("admin@example.com", "ADMIN")
	customer := a.register("jane@example.com", "")
	id := a.createProduct(admin, "Widget", 1, 100)

	wantMessages := []string{
		"Order cancelled successfully.",
		"Order cancelled successfully. Warning: One more cancellation will block your account.",
		"Order cancelled successfully. Your account has been blocked due to excessive cancellations.",
	}
	for i, want := range wantMessages {
		orderID := a.placeOne(customer, id, 1)
		r := a.do(http.MethodPatch, "/orders/"+orderID+"/cancel", customer, nil)
		require.Equal(t, http.StatusOK, r.Code, r.Body)
		assert.Equal(t, want, r.Body["message"])
		assert.EqualValues(t, i+1, r.data()["cancelledOrdersCount"])
		assert.Equal(t, i == 2, r.data()["isBlocked"])
	}

	r := a.do(http.MethodPost, "/cart/items", customer, map[string]any{"productId": id, "quantity": 1})
	require.Equal(t, http.StatusCreated, r.Code)
	r = a.do(http.MethodPost, "/orders", customer, nil)
	assert.Equal(t, http.StatusForbidden, r.Code)
	assert.Equal(t, "Your account has been blocked due to excessive order cancellations", r.Body["message"])

	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/orders", customer, nil).Code)

	r = a.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "jane@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusUnauthorized, r.Code)

	r = a.do(http.MethodGet, "/products/"+id, "", nil)
	assert.EqualValues(t, 100, r.data()["stock"])
}

package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/storefront/internal/account"
	"github.com/hitoshi/storefront/internal/cart"
	"github.com/hitoshi/storefront/internal/catalog"
	"github.com/hitoshi/storefront/internal/checkout"
	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/repository"
	"github.com/hitoshi/storefront/internal/store"
)

// --- 統合テスト用ルーター構築ヘルパー ---

// createIntegrationRouter はメモリストア上の実サービスでルーターを構築する。
func createIntegrationRouter(t *testing.T) http.Handler {
	t.Helper()

	s := store.Namespaced(store.NewMemoryStore(), store.DefaultNamespace)
	products, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	accounts := account.NewService(
		repository.NewKVUserRepo(s),
		repository.NewKVVerificationCodeRepo(s),
		repository.NewKVSessionRepo(s),
		account.ServiceConfig{
			Metrics:      collector,
			GenerateCode: func() (string, error) { return "123456", nil },
		},
	)
	carts := cart.NewService(repository.NewKVCartRepo(s), products, cart.ServiceConfig{
		EnforceStock: true,
		Metrics:      collector,
	})
	checkouts := checkout.NewService(accounts, carts, repository.NewKVOrderRepo(s), checkout.ServiceConfig{
		Metrics: collector,
	})

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		Logger:            slog.New(slog.NewJSONHandler(io.Discard, nil)),
		Metrics:           collector,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		MetricsHandler:    metrics.Handler(reg),
		Catalog:           products,
		Accounts:          accounts,
		Cart:              carts,
		Checkout:          checkouts,
	})
}

// call はルーターにリクエストを送り、レスポンスを返す。
func call(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = jsonRequest(t, method, path, body)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode %s: %v", w.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d; body = %s", w.Code, want, w.Body.String())
	}
}

// registerVerifyLogin はアカウントを作成してログインするまでを行う。
func registerVerifyLogin(t *testing.T, router http.Handler) model.PublicUser {
	t.Helper()

	w := call(t, router, http.MethodPost, "/api/account/register", registerRequest{
		Email: "u@example.com", Password: "secret1", Phone: "999111222", FullName: "Usuario", Username: "usuario",
	})
	expectStatus(t, w, http.StatusCreated)
	reg := decodeBody[registerResponse](t, w)
	if reg.User.IsVerified {
		t.Fatal("new user must be unverified")
	}

	w = call(t, router, http.MethodPost, "/api/account/verify", verifyRequest{Email: "u@example.com", Code: reg.VerificationCode})
	expectStatus(t, w, http.StatusOK)

	w = call(t, router, http.MethodPost, "/api/account/login", loginRequest{Email: "u@example.com", Password: "secret1"})
	expectStatus(t, w, http.StatusOK)
	return decodeBody[model.PublicUser](t, w)
}

// --- 統合テスト ---

func TestIntegration_RegisterToOrder(t *testing.T) {
	router := createIntegrationRouter(t)
	user := registerVerifyLogin(t, router)

	w := call(t, router, http.MethodGet, "/api/account/me", nil)
	expectStatus(t, w, http.StatusOK)
	if me := decodeBody[model.PublicUser](t, w); me.ID != user.ID || !me.IsVerified {
		t.Errorf("me = %+v", me)
	}

	w = call(t, router, http.MethodPost, "/api/cart/items", map[string]any{"productId": "3", "quantity": 2})
	expectStatus(t, w, http.StatusOK)
	snap := decodeBody[model.CartSnapshot](t, w)
	if snap.Count != 2 || snap.Total != 379.98 {
		t.Errorf("snapshot = %+v", snap)
	}

	w = call(t, router, http.MethodPost, "/api/checkout", nil)
	expectStatus(t, w, http.StatusCreated)
	if st := decodeBody[checkoutResponse](t, w); st.State != checkout.StateSummary || st.Cart == nil || len(st.Cart.Lines) != 1 {
		t.Errorf("begin = %+v", st)
	}

	w = call(t, router, http.MethodPost, "/api/checkout/continue", nil)
	expectStatus(t, w, http.StatusOK)

	w = call(t, router, http.MethodPost, "/api/checkout/location", map[string]any{"lat": 1.0, "lng": 2.0, "address": "Test Address"})
	expectStatus(t, w, http.StatusOK)
	if st := decodeBody[checkoutResponse](t, w); st.State != checkout.StateConfirmation || st.Location.Address != "Test Address" {
		t.Errorf("location = %+v", st)
	}

	w = call(t, router, http.MethodPost, "/api/checkout/confirm", nil)
	expectStatus(t, w, http.StatusCreated)
	confirmed := decodeBody[confirmResponse](t, w)
	if confirmed.CartCount != 0 {
		t.Errorf("cartCount = %d, want 0", confirmed.CartCount)
	}
	if confirmed.Order.Total != 379.98 || confirmed.Order.UserID != user.ID {
		t.Errorf("order = %+v", confirmed.Order)
	}

	w = call(t, router, http.MethodGet, "/api/orders", nil)
	expectStatus(t, w, http.StatusOK)
	orders := decodeBody[[]model.Order](t, w)
	if len(orders) != 1 || orders[0].ID != confirmed.Order.ID {
		t.Fatalf("orders = %+v", orders)
	}
	want := model.DeliveryAddress{Lat: 1.0, Lng: 2.0, Address: "Test Address"}
	if orders[0].DeliveryAddress != want {
		t.Errorf("address = %+v, want %+v", orders[0].DeliveryAddress, want)
	}

	w = call(t, router, http.MethodGet, "/api/cart", nil)
	expectStatus(t, w, http.StatusOK)
	if snap := decodeBody[model.CartSnapshot](t, w); snap.Count != 0 || len(snap.Lines) != 0 {
		t.Errorf("cart after checkout = %+v", snap)
	}

	w = call(t, router, http.MethodPost, "/api/checkout/confirm", nil)
	expectStatus(t, w, http.StatusConflict)
}

func TestIntegration_ContinueOnEmptyCart(t *testing.T) {
	router := createIntegrationRouter(t)
	registerVerifyLogin(t, router)

	call(t, router, http.MethodPost, "/api/checkout", nil)

	w := call(t, router, http.MethodPost, "/api/checkout/continue", nil)
	expectStatus(t, w, http.StatusConflict)
	if body := parseAPIErrorResponse(t, w); body.Code != model.ErrCodeEmptyCart {
		t.Errorf("code = %q", body.Code)
	}

	w = call(t, router, http.MethodGet, "/api/checkout", nil)
	expectStatus(t, w, http.StatusOK)
	if st := decodeBody[checkoutResponse](t, w); st.State != checkout.StateSummary {
		t.Errorf("state = %s, want summary", st.State)
	}
}

func TestIntegration_LoginBeforeVerify(t *testing.T) {
	router := createIntegrationRouter(t)

	w := call(t, router, http.MethodPost, "/api/account/register", registerRequest{
		Email: "u@example.com", Password: "secret1", Phone: "999", FullName: "U", Username: "u",
	})
	expectStatus(t, w, http.StatusCreated)

	w = call(t, router, http.MethodPost, "/api/account/login", loginRequest{Email: "u@example.com", Password: "secret1"})
	expectStatus(t, w, http.StatusUnauthorized)

	w = call(t, router, http.MethodPost, "/api/account/verify", verifyRequest{Email: "u@example.com", Code: "000000"})
	expectStatus(t, w, http.StatusUnprocessableEntity)

	w = call(t, router, http.MethodPost, "/api/account/register", registerRequest{
		Email: "u@example.com", Password: "secret1", Phone: "999", FullName: "U", Username: "otro",
	})
	expectStatus(t, w, http.StatusConflict)
}

func TestIntegration_ProtectedEndpoints_RequireLogin(t *testing.T) {
	router := createIntegrationRouter(t)

	endpoints := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/cart"},
		{http.MethodDelete, "/api/cart"},
		{http.MethodPost, "/api/cart/items"},
		{http.MethodPut, "/api/cart/items/3"},
		{http.MethodDelete, "/api/cart/items/3"},
		{http.MethodPost, "/api/checkout"},
		{http.MethodGet, "/api/checkout"},
		{http.MethodPost, "/api/checkout/continue"},
		{http.MethodPost, "/api/checkout/location"},
		{http.MethodPost, "/api/checkout/change-location"},
		{http.MethodPost, "/api/checkout/confirm"},
		{http.MethodGet, "/api/orders"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			w := call(t, router, ep.method, ep.path, nil)
			expectStatus(t, w, http.StatusUnauthorized)
			if body := parseAPIErrorResponse(t, w); body.Code != model.ErrCodeNotLoggedIn {
				t.Errorf("code = %q", body.Code)
			}
		})
	}
}

func TestIntegration_Catalog(t *testing.T) {
	router := createIntegrationRouter(t)

	w := call(t, router, http.MethodGet, "/api/products", nil)
	expectStatus(t, w, http.StatusOK)
	if all := decodeBody[[]model.Product](t, w); len(all) != 8 {
		t.Errorf("products = %d, want 8", len(all))
	}

	w = call(t, router, http.MethodGet, "/api/products/3", nil)
	expectStatus(t, w, http.StatusOK)
	if p := decodeBody[model.Product](t, w); p.Price != 189.99 {
		t.Errorf("price = %v", p.Price)
	}

	w = call(t, router, http.MethodGet, "/api/products/999", nil)
	expectStatus(t, w, http.StatusNotFound)

	w = call(t, router, http.MethodGet, "/api/categories", nil)
	expectStatus(t, w, http.StatusOK)
	categories := decodeBody[[]string](t, w)
	if len(categories) == 0 {
		t.Fatal("expected categories")
	}

	w = call(t, router, http.MethodGet, "/api/products?category="+categories[0], nil)
	expectStatus(t, w, http.StatusOK)
	for _, p := range decodeBody[[]model.Product](t, w) {
		if p.Category != categories[0] {
			t.Errorf("product %s has category %q", p.ID, p.Category)
		}
	}
}

func TestIntegration_RejectsFormPost(t *testing.T) {
	router := createIntegrationRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/account/login", strings.NewReader("email=a&password=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	expectStatus(t, w, http.StatusUnsupportedMediaType)
}

func TestIntegration_HealthAndMetrics(t *testing.T) {
	router := createIntegrationRouter(t)
	registerVerifyLogin(t, router)

	w := call(t, router, http.MethodGet, "/health", nil)
	expectStatus(t, w, http.StatusOK)

	w = call(t, router, http.MethodGet, "/metrics", nil)
	expectStatus(t, w, http.StatusOK)
	body := w.Body.Bytes()
	for _, name := range []string{"storefront_registrations_total", "storefront_logins_total", "storefront_http_status_total"} {
		if !bytes.Contains(body, []byte(name)) {
			t.Errorf("metrics output should contain %s", name)
		}
	}
}

func TestIntegration_CORSPreflight(t *testing.T) {
	router := createIntegrationRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/cart/items", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers should be applied")
	}
}

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func testLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    3,
		AuthRate:        0.5,
		AuthBurst:       1,
		CleanupInterval: time.Minute,
	}
}

func requestFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/account/login", nil)
	req.RemoteAddr = addr
	return req
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiter_AllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom("10.0.0.1:5000"))
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}
}

func TestRateLimiter_Returns429WhenExceeded(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig())
	defer rl.Stop()

	handler := rl.AuthMiddleware()(okHandler())

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, requestFrom("10.0.0.1:5000"))
	if first.Code != http.StatusOK {
		t.Fatalf("first request: status = %d", first.Code)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("10.0.0.1:5001"))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || retryAfter != 2 {
		t.Errorf("Retry-After = %q, want 2", w.Header().Get("Retry-After"))
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != "RATE_LIMIT_EXCEEDED" || body.Category != "system" {
		t.Errorf("body = %+v", body)
	}
}

func TestRateLimiter_ClientsAreIndependent(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig())
	defer rl.Stop()

	handler := rl.AuthMiddleware()(okHandler())
	for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:1", "10.0.0.3:1"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom(addr))
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want %d", addr, w.Code, http.StatusOK)
		}
	}
	if rl.AuthLimiterCount() != 3 {
		t.Errorf("AuthLimiterCount = %d, want 3", rl.AuthLimiterCount())
	}
}

func TestRateLimiter_GeneralAndAuthAreIndependent(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig())
	defer rl.Stop()

	auth := rl.AuthMiddleware()(okHandler())
	general := rl.GeneralMiddleware()(okHandler())

	auth.ServeHTTP(httptest.NewRecorder(), requestFrom("10.0.0.1:1"))

	w := httptest.NewRecorder()
	general.ServeHTTP(w, requestFrom("10.0.0.1:1"))
	if w.Code != http.StatusOK {
		t.Errorf("general status = %d, want %d", w.Code, http.StatusOK)
	}
	if rl.GeneralLimiterCount() != 1 || rl.AuthLimiterCount() != 1 {
		t.Errorf("counts = %d/%d, want 1/1", rl.GeneralLimiterCount(), rl.AuthLimiterCount())
	}
}

func TestRateLimiter_CleanupEvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig())
	defer rl.Stop()

	rl.GeneralMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(), requestFrom("10.0.0.1:1"))

	rl.cleanup(time.Now())
	if rl.GeneralLimiterCount() != 1 {
		t.Fatalf("recent entry should survive cleanup")
	}

	rl.cleanup(time.Now().Add(3 * time.Minute))
	if rl.GeneralLimiterCount() != 0 {
		t.Errorf("GeneralLimiterCount = %d, want 0", rl.GeneralLimiterCount())
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig())
	rl.Stop()
	rl.Stop()
}

func TestRateLimiterConfigPerMinute(t *testing.T) {
	cfg := RateLimiterConfigPerMinute(120, 10)
	if cfg.GeneralRate != 2 || cfg.GeneralBurst != 120 {
		t.Errorf("general = %v/%d", cfg.GeneralRate, cfg.GeneralBurst)
	}
	if cfg.AuthBurst != 10 {
		t.Errorf("auth burst = %d", cfg.AuthBurst)
	}
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.10:54321"
	if got := clientKey(req); got != "192.168.1.10" {
		t.Errorf("clientKey = %q", got)
	}

	req.RemoteAddr = "unix-socket"
	if got := clientKey(req); got != "unix-socket" {
		t.Errorf("clientKey = %q", got)
	}
}

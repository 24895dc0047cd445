package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthChecker はストアなど外部依存の疎通を確認する。
type HealthChecker func(ctx context.Context) error

// healthTimeout はヘルスチェック1回あたりの上限。
const healthTimeout = 2 * time.Second

// NewHealthHandler はヘルスチェックのハンドラーを返す。
// checkがnilの場合は常にokを返す。
// GET /health
func NewHealthHandler(check HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := check(ctx); err != nil {
				slog.Warn("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

package middleware

import (
	"log/slog"
	"mime"
	"net/http"

	"github.com/hitoshi/storefront/internal/model"
)

// NewJSONOnlyMiddleware は状態変更メソッドのボディにapplication/jsonを要求するミドルウェアを返す。
// HTMLフォームからのクロスサイト送信はapplication/jsonを指定できないため、
// セッションをCookieで持たない構成でのCSRF対策として機能する。
// ボディのないリクエスト（ContentLength == 0）は検査しない。
func NewJSONOnlyMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) || r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}

			mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || mediaType != "application/json" {
				slog.Warn("rejected non-JSON request body",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("content_type", r.Header.Get("Content-Type")),
				)
				WriteErrorResponse(w, http.StatusUnsupportedMediaType,
					model.NewInvalidRequestError("se requiere Content-Type application/json"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

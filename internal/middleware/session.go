// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/storefront/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userContextKey はリクエストコンテキストにログイン中のユーザーを格納するためのキー。
	userContextKey = contextKey("user")
	// userSlotContextKey は外側のミドルウェアへユーザーIDを書き戻すスロットのキー。
	userSlotContextKey = contextKey("user_slot")
)

// userSlot はRequireSessionが解決したユーザーIDをLoggingへ渡す。
type userSlot struct {
	userID string
}

func contextWithUserSlot(ctx context.Context, slot *userSlot) context.Context {
	return context.WithValue(ctx, userSlotContextKey, slot)
}

// SessionReader はログイン中のユーザーを返す。未ログインの場合はnil, nilを返す。
// account.Serviceが満たす。
type SessionReader interface {
	CurrentUser(ctx context.Context) (*model.User, error)
}

// NewRequireSessionMiddleware はストアに保存されたセッションを読み取り、
// ログイン中のユーザーをリクエストコンテキストに注入するミドルウェアを返す。
// 未ログインの場合は401 NOT_LOGGED_INを返す。
func NewRequireSessionMiddleware(sessions SessionReader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := sessions.CurrentUser(r.Context())
			if err != nil {
				slog.Error("failed to read session",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if user == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotLoggedInError())
				return
			}

			if slot, ok := r.Context().Value(userSlotContextKey).(*userSlot); ok {
				slot.userID = user.ID
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// UserFromContext はリクエストコンテキストからログイン中のユーザーを取得する。
// RequireSessionミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, error) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok || user == nil {
		return nil, fmt.Errorf("user not found in context")
	}
	return user, nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	user, err := UserFromContext(ctx)
	if err != nil {
		return "", err
	}
	if user.ID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return user.ID, nil
}

// ContextWithUser はコンテキストにユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

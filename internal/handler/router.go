package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 運用エンドポイント
	HealthCheck    HealthChecker
	MetricsHandler http.Handler

	// ドメイン
	Catalog  CatalogReader
	Accounts AccountServiceInterface
	Cart     CartServiceInterface
	Checkout CheckoutServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Recovery → Logging → SecurityHeaders → CORS → JSONOnly → RateLimit(General)
//
// 登録・確認・ログインには認証系のレート制限を追加し、
// カート・チェックアウト・注文履歴にはRequireSessionを追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.Get("/health", NewHealthHandler(deps.HealthCheck))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	catalogHandler := NewCatalogHandler(deps.Catalog)
	accountHandler := NewAccountHandler(deps.Accounts)
	cartHandler := NewCartHandler(deps.Cart)
	checkoutHandler := NewCheckoutHandler(deps.Checkout, deps.Cart)
	requireSession := middleware.NewRequireSessionMiddleware(deps.Accounts)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewJSONOnlyMiddleware())
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		// カタログ
		r.Get("/products", catalogHandler.ListProducts)
		r.Get("/products/{id}", catalogHandler.GetProduct)
		r.Get("/categories", catalogHandler.ListCategories)

		// アカウント
		r.Route("/account", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if deps.RateLimiter != nil {
					r.Use(deps.RateLimiter.AuthMiddleware())
				}
				r.Post("/register", accountHandler.Register)
				r.Post("/verify", accountHandler.Verify)
				r.Post("/resend", accountHandler.ResendCode)
				r.Post("/login", accountHandler.Login)
			})
			r.Post("/logout", accountHandler.Logout)
			r.Get("/me", accountHandler.Me)
		})

		// --- ログインが必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(requireSession)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Delete("/", cartHandler.ClearCart)
				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{productId}", cartHandler.UpdateItem)
				r.Delete("/items/{productId}", cartHandler.RemoveItem)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/", checkoutHandler.Begin)
				r.Get("/", checkoutHandler.GetState)
				r.Post("/continue", checkoutHandler.Continue)
				r.Post("/location", checkoutHandler.SelectLocation)
				r.Post("/change-location", checkoutHandler.ChangeLocation)
				r.Post("/confirm", checkoutHandler.Confirm)
			})

			r.Get("/orders", checkoutHandler.ListOrders)
		})
	})

	return r
}

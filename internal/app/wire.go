package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/storefront/internal/account"
	"github.com/hitoshi/storefront/internal/cart"
	"github.com/hitoshi/storefront/internal/catalog"
	"github.com/hitoshi/storefront/internal/checkout"
	"github.com/hitoshi/storefront/internal/config"
	"github.com/hitoshi/storefront/internal/database"
	"github.com/hitoshi/storefront/internal/events"
	"github.com/hitoshi/storefront/internal/handler"
	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/notify"
	"github.com/hitoshi/storefront/internal/repository"
	"github.com/hitoshi/storefront/internal/security"
	"github.com/hitoshi/storefront/internal/store"
)

const storePingTimeout = 5 * time.Second

// Components はserveモードで組み立てた依存関係一式。
// Closeで逆順に後始末を行う。
type Components struct {
	Handler http.Handler

	closers []func()
}

func (c *Components) onClose(fn func()) {
	c.closers = append(c.closers, fn)
}

// Close は登録された後始末を登録と逆の順に実行する。
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Build は設定に従ってストア、サービス、HTTPルーターをワイヤリングする。
// 途中で失敗した場合は、それまでに確保した資源を解放してからエラーを返す。
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *Components, err error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Components{}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	// 1. ストア
	raw, healthCheck, err := openStore(ctx, cfg, c)
	if err != nil {
		return nil, err
	}
	s := store.Namespaced(raw, cfg.StoreNamespace)

	logger.Info("store ready",
		slog.String("driver", cfg.StoreDriver),
		slog.String("namespace", cfg.StoreNamespace),
	)

	// 2. カタログ
	products, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	// 3. セキュリティ
	hasher, err := security.NewPasswordHasher(cfg.PasswordScheme)
	if err != nil {
		return nil, fmt.Errorf("failed to create password hasher: %w", err)
	}
	sanitizer := security.NewTextSanitizer()

	// 4. 通知とイベント
	notifier, err := newNotifier(cfg, logger, c)
	if err != nil {
		return nil, err
	}
	publisher, err := newPublisher(cfg, logger, c)
	if err != nil {
		return nil, err
	}

	// 5. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 6. ドメインサービス
	accounts := account.NewService(
		repository.NewKVUserRepo(s),
		repository.NewKVVerificationCodeRepo(s),
		repository.NewKVSessionRepo(s),
		account.ServiceConfig{
			MinPasswordLength: cfg.MinPasswordLength,
			Hasher:            hasher,
			Sanitizer:         sanitizer,
			Notifier:          notifier,
			Metrics:           collector,
		},
	)
	carts := cart.NewService(repository.NewKVCartRepo(s), products, cart.ServiceConfig{
		Scope:        cfg.CartScope,
		EnforceStock: cfg.CartEnforceStock,
		Metrics:      collector,
	})
	checkouts := checkout.NewService(accounts, carts, repository.NewKVOrderRepo(s), checkout.ServiceConfig{
		Publisher: publisher,
		Notifier:  notifier,
		Sanitizer: sanitizer,
		Metrics:   collector,
	})

	// 7. ルーター
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitAuth),
	)
	c.onClose(rateLimiter.Stop)

	c.Handler = handler.NewRouter(&handler.RouterDeps{
		Logger:            logger,
		Metrics:           collector,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		HealthCheck:       healthCheck,
		MetricsHandler:    metrics.Handler(reg),
		Catalog:           products,
		Accounts:          accounts,
		Cart:              carts,
		Checkout:          checkouts,
	})

	return c, nil
}

// openStore はSTORE_DRIVERに応じたストアと、その疎通確認関数を返す。
func openStore(ctx context.Context, cfg *config.Config, c *Components) (store.Store, handler.HealthChecker, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		return store.NewMemoryStore(), func(context.Context) error { return nil }, nil

	case config.StoreDriverFile:
		fs, err := store.NewFileStore(cfg.StoreDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open file store: %w", err)
		}
		check := func(context.Context) error {
			_, err := os.Stat(cfg.StoreDir)
			return err
		}
		return fs, check, nil

	case config.StoreDriverRedis:
		client, err := store.NewRedisClient(ctx, store.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		c.onClose(func() { _ = client.Close() })
		check := func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
		return store.NewRedisStore(client), check, nil

	case config.StoreDriverPostgres:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		c.onClose(func() { _ = db.Close() })

		if err := database.Ping(ctx, db, storePingTimeout); err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := requireSchema(cfg.DatabaseURL); err != nil {
			return nil, nil, err
		}
		slog.Info("database connection established")

		check := func(ctx context.Context) error {
			return db.PingContext(ctx)
		}
		return store.NewPostgresStore(db), check, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

// requireSchema はマイグレーションが適用済みであることを確認する。
func requireSchema(databaseURL string) error {
	version, dirty, err := database.SchemaVersion(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database schema version %d is dirty; fix it and run migrate again", version)
	}
	if version == 0 {
		return fmt.Errorf("database schema is not initialized; run `storefront migrate` first")
	}
	return nil
}

// loadCatalog はCATALOG_PATHが指定されていればそのファイルを、なければ組み込みの商品一覧を読み込む。
func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		products, err := catalog.Default()
		if err != nil {
			return nil, fmt.Errorf("failed to load built-in catalog: %w", err)
		}
		return products, nil
	}

	products, err := catalog.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog %s: %w", path, err)
	}
	slog.Info("catalog loaded",
		slog.String("path", path),
		slog.Int("products", products.Len()),
	)
	return products, nil
}

// newNotifier はSMTP_HOSTが設定されていればメール送信を、なければログ出力を返す。
// メール送信は非同期で行い、Closeで送信中のものを待つ。
func newNotifier(cfg *config.Config, logger *slog.Logger, c *Components) (notify.Notifier, error) {
	if cfg.SMTPHost == "" {
		return notify.NewLogNotifier(logger), nil
	}

	mailer, err := notify.NewMailNotifier(notify.MailConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create mail notifier: %w", err)
	}

	async := notify.NewAsync(mailer, logger)
	c.onClose(async.Close)
	return async, nil
}

// newPublisher はNATS_URLが設定されていればNATSへ、なければ何もしないPublisherを返す。
func newPublisher(cfg *config.Config, logger *slog.Logger, c *Components) (events.Publisher, error) {
	if cfg.NATSURL == "" {
		return events.NopPublisher{}, nil
	}

	publisher, err := events.NewNATSPublisher(cfg.NATSURL, cfg.OrderEventsSubject)
	if err != nil {
		return nil, err
	}
	c.onClose(publisher.Close)

	logger.Info("order events enabled", slog.String("subject", publisher.Subject()))
	return publisher, nil
}

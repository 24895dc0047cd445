package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/storefront/internal/events"
	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/notify"
	"github.com/hitoshi/storefront/internal/repository"
	"github.com/hitoshi/storefront/internal/security"
)

// SessionReader はログイン中のユーザーを返す。未ログインの場合はnilを返す。
type SessionReader interface {
	CurrentUser(ctx context.Context) (*model.User, error)
}

// Cart はチェックアウトが使用するカートの操作。
type Cart interface {
	Snapshot(ctx context.Context, userID string) (*model.CartSnapshot, error)
	Clear(ctx context.Context, userID string) error
}

// ServiceConfig はチェックアウトサービスの任意の依存。
type ServiceConfig struct {
	Publisher events.Publisher
	Notifier  notify.Notifier
	Sanitizer security.TextSanitizer
	Metrics   metrics.MetricsCollector
	Now       func() time.Time
}

// Service はチェックアウトのサービス層。
type Service struct {
	sessions  SessionReader
	cart      Cart
	orders    repository.OrderRepository
	publisher events.Publisher
	notifier  notify.Notifier
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	sessions SessionReader,
	cart Cart,
	orders repository.OrderRepository,
	config ServiceConfig,
) *Service {
	s := &Service{
		sessions:  sessions,
		cart:      cart,
		orders:    orders,
		publisher: config.Publisher,
		notifier:  config.Notifier,
		sanitizer: config.Sanitizer,
		metrics:   config.Metrics,
		now:       config.Now,
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	if s.sanitizer == nil {
		s.sanitizer = security.NewTextSanitizer()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Begin は summary 状態の新しいFlowを返す。以前のFlowの状態は引き継がない。
func (s *Service) Begin(ctx context.Context) *Flow {
	slog.DebugContext(ctx, "checkout started")
	return &Flow{svc: s, state: StateSummary}
}

// Orders は指定ユーザーの注文履歴を作成順で返す。
func (s *Service) Orders(ctx context.Context, userID string) ([]model.Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("注文履歴の取得に失敗しました: %w", err)
	}
	return orders, nil
}

// loadCheckoutCart はセッションのユーザーと、解決済みの明細が1件以上あるカートを返す。
func (s *Service) loadCheckoutCart(ctx context.Context) (*model.User, *model.CartSnapshot, error) {
	user, err := s.sessions.CurrentUser(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, nil, model.NewNotLoggedInError()
	}

	snap, err := s.cart.Snapshot(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("カートの取得に失敗しました: %w", err)
	}
	if len(snap.Lines) == 0 {
		return nil, nil, model.NewEmptyCartError()
	}
	return user, snap, nil
}

// placeOrder は現在のカートから注文を作成して保存する。
// 保存後の処理（カートを空にする、イベント発行、通知）の失敗はログに記録するのみ。
func (s *Service) placeOrder(ctx context.Context, address model.DeliveryAddress) (*model.Order, error) {
	user, snap, err := s.loadCheckoutCart(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]model.OrderItem, len(snap.Lines))
	for i, line := range snap.Lines {
		items[i] = model.OrderItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			Subtotal:  line.Subtotal,
		}
	}

	order := &model.Order{
		ID:              uuid.New().String(),
		UserID:          user.ID,
		Items:           items,
		Total:           snap.Total,
		DeliveryAddress: address,
		Status:          model.OrderStatusPending,
		CreatedAt:       s.now().UTC(),
	}

	if err := s.orders.Append(ctx, order); err != nil {
		return nil, fmt.Errorf("注文の保存に失敗しました: %w", err)
	}

	slog.Info("order placed",
		slog.String("order_id", order.ID),
		slog.String("user_id", user.ID),
		slog.Int("items", len(order.Items)),
		slog.Float64("total", order.Total),
	)

	// 注文は保存済みのため、以降は呼び出し元の切断に影響されない
	ctx = context.WithoutCancel(ctx)

	if err := s.cart.Clear(ctx, user.ID); err != nil {
		slog.Error("failed to clear cart after order",
			slog.String("order_id", order.ID),
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.publisher.PublishOrderCreated(ctx, order); err != nil {
		slog.Warn("failed to publish order event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	if s.notifier != nil {
		if err := s.notifier.SendOrderConfirmation(ctx, user.Email, order); err != nil {
			slog.Warn("failed to send order confirmation",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.metrics != nil {
		s.metrics.RecordOrderPlaced(order.Total)
	}

	return order, nil
}

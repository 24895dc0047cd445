// Package events は注文イベントをメッセージブローカーへ発行する。
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/hitoshi/storefront/internal/model"
)

// DefaultOrderCreatedSubject は注文作成イベントの既定のサブジェクト。
const DefaultOrderCreatedSubject = "storefront.orders.created"

// OrderCreated は注文作成イベントのペイロード。
type OrderCreated struct {
	Type      string                `json:"type"`
	OrderID   string                `json:"orderId"`
	UserID    string                `json:"userId"`
	Items     []model.OrderItem     `json:"items"`
	Total     float64               `json:"total"`
	Address   model.DeliveryAddress `json:"deliveryAddress"`
	CreatedAt time.Time             `json:"createdAt"`
}

// NewOrderCreated は注文からイベントを生成する。
func NewOrderCreated(order *model.Order) OrderCreated {
	return OrderCreated{
		Type:      "order.created",
		OrderID:   order.ID,
		UserID:    order.UserID,
		Items:     order.Items,
		Total:     order.Total,
		Address:   order.DeliveryAddress,
		CreatedAt: order.CreatedAt,
	}
}

// Publisher は注文イベントを発行する。
type Publisher interface {
	PublishOrderCreated(ctx context.Context, order *model.Order) error
	Close()
}

// NopPublisher は何もしないPublisher。NATS未設定時に使用する。
type NopPublisher struct{}

// PublishOrderCreated は何もしない。
func (NopPublisher) PublishOrderCreated(context.Context, *model.Order) error { return nil }

// Close は何もしない。
func (NopPublisher) Close() {}

// conn はnats.Connのうち発行に使用するメソッド。
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher はNATSのサブジェクトへイベントを発行するPublisher。
type NATSPublisher struct {
	nc      conn
	subject string
}

// NewNATSPublisher はNATSサーバーへ接続してNATSPublisherを生成する。
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	if url == "" {
		return nil, fmt.Errorf("nats url is required")
	}
	if subject == "" {
		subject = DefaultOrderCreatedSubject
	}

	nc, err := nats.Connect(url,
		nats.Name("storefront"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &NATSPublisher{nc: nc, subject: subject}, nil
}

// PublishOrderCreated は注文作成イベントをJSONで発行する。
// NATSのPublishはコンテキストを受け取らないため、発行前にキャンセルを確認する。
func (p *NATSPublisher) PublishOrderCreated(ctx context.Context, order *model.Order) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}

	data, err := json.Marshal(NewOrderCreated(order))
	if err != nil {
		return fmt.Errorf("failed to encode order event: %w", err)
	}

	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.subject, err)
	}
	return nil
}

// Subject は発行先のサブジェクトを返す。
func (p *NATSPublisher) Subject() string {
	return p.subject
}

// Close は未送信のメッセージを送り切ってから接続を閉じる。
func (p *NATSPublisher) Close() {
	_ = p.nc.Drain()
}

// compile-time interface check
var (
	_ Publisher = NopPublisher{}
	_ Publisher = (*NATSPublisher)(nil)
)

package model

import "time"

// OrderStatus は注文の状態を表す。
type OrderStatus string

const (
	// OrderStatusPending は作成直後の注文状態。
	OrderStatusPending OrderStatus = "pending"
)

// DeliveryAddress は地図上で選択された配送先を表す。
type DeliveryAddress struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

// OrderItem は注文時点の単価を含む明細。
type OrderItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
}

// Order はチェックアウト完了時に作成される注文。
// Total = Σ(UnitPrice × Quantity)。作成後は変更されない。
type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Items           []OrderItem     `json:"items"`
	Total           float64         `json:"total"`
	DeliveryAddress DeliveryAddress `json:"deliveryAddress"`
	Status          OrderStatus     `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
}

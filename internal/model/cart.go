package model

// CartItem はカートに入った商品と数量を表す。
// 価格は保持せず、表示・集計時にカタログから解決する。
// Quantityは常に1以上で永続化される。
type CartItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// CartLine はCartItemをカタログと結合した表示用の行。
type CartLine struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Image     string  `json:"image"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
}

// CartSnapshot はカートの表示用スナップショット。
// カタログで解決できない商品はLinesとTotalの両方から除外される。
type CartSnapshot struct {
	Lines []CartLine `json:"lines"`
	Count int        `json:"count"`
	Total float64    `json:"total"`
}

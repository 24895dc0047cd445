package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/storefront/internal/model"
)

// CartServiceInterface はカートハンドラーが必要とするサービスインターフェース。
type CartServiceInterface interface {
	Add(ctx context.Context, userID, productID string, quantity int) error
	Remove(ctx context.Context, userID, productID string) error
	SetQuantity(ctx context.Context, userID, productID string, quantity int) error
	Clear(ctx context.Context, userID string) error
	Snapshot(ctx context.Context, userID string) (*model.CartSnapshot, error)
	Count(ctx context.Context, userID string) (int, error)
}

// CartHandler はカート操作のHTTPハンドラー。
// 更新系の操作は更新後のスナップショットを返す。
type CartHandler struct {
	service CartServiceInterface
}

// NewCartHandler はCartHandlerを生成する。
func NewCartHandler(service CartServiceInterface) *CartHandler {
	return &CartHandler{service: service}
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity,omitempty"`
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

// GetCart はカートのスナップショットを返す。
// GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	h.writeSnapshot(w, r, userID, http.StatusOK)
}

// AddItem は商品をカートに追加する。quantity省略時は1。
// POST /api/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req addItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if err := requireFields(map[string]string{"productId": req.ProductID}, "productId"); err != nil {
		handleServiceError(w, err)
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	if err := h.service.Add(r.Context(), userID, req.ProductID, quantity); err != nil {
		handleServiceError(w, err)
		return
	}
	h.writeSnapshot(w, r, userID, http.StatusOK)
}

// UpdateItem は明細の数量を設定する。0以下は削除と同じ。
// PUT /api/cart/items/{productId}
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req setQuantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if req.Quantity == nil {
		handleServiceError(w, model.NewInvalidRequestError("campos obligatorios: quantity"))
		return
	}

	if err := h.service.SetQuantity(r.Context(), userID, chi.URLParam(r, "productId"), *req.Quantity); err != nil {
		handleServiceError(w, err)
		return
	}
	h.writeSnapshot(w, r, userID, http.StatusOK)
}

// RemoveItem は明細を削除する。存在しない場合も成功とする。
// DELETE /api/cart/items/{productId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	if err := h.service.Remove(r.Context(), userID, chi.URLParam(r, "productId")); err != nil {
		handleServiceError(w, err)
		return
	}
	h.writeSnapshot(w, r, userID, http.StatusOK)
}

// ClearCart はカートを空にする。
// DELETE /api/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	if err := h.service.Clear(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) writeSnapshot(w http.ResponseWriter, r *http.Request, userID string, statusCode int) {
	snap, err := h.service.Snapshot(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, statusCode, snap)
}

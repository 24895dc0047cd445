package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/hitoshi/storefront/internal/checkout"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
)

// CheckoutServiceInterface はチェックアウトハンドラーが必要とするサービスインターフェース。
type CheckoutServiceInterface interface {
	Begin(ctx context.Context) *checkout.Flow
	Orders(ctx context.Context, userID string) ([]model.Order, error)
}

// CheckoutHandler はチェックアウトのHTTPハンドラー。
// 単一プロファイルのため、進行中のFlowは1つだけ保持する。
type CheckoutHandler struct {
	service CheckoutServiceInterface
	cart    CartServiceInterface

	mu   sync.Mutex
	flow *checkout.Flow
}

// NewCheckoutHandler はCheckoutHandlerを生成する。
func NewCheckoutHandler(service CheckoutServiceInterface, cart CartServiceInterface) *CheckoutHandler {
	return &CheckoutHandler{service: service, cart: cart}
}

type locationRequest struct {
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
	Address string   `json:"address"`
}

// checkoutResponse はチェックアウトの現在の状態。
type checkoutResponse struct {
	State    checkout.State         `json:"state"`
	Location *model.DeliveryAddress `json:"location"`
	Order    *model.Order           `json:"order,omitempty"`
	Cart     *model.CartSnapshot    `json:"cart,omitempty"`
}

// confirmResponse は注文確定の結果。
type confirmResponse struct {
	Order     *model.Order `json:"order"`
	CartCount int          `json:"cartCount"`
}

// Begin は新しいチェックアウトを開始する。進行中のFlowは破棄する。
// POST /api/checkout
func (h *CheckoutHandler) Begin(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.flow = h.service.Begin(r.Context())
	f := h.flow
	h.mu.Unlock()

	h.writeState(w, r, f, http.StatusCreated)
}

// GetState は現在のチェックアウトの状態を返す。未開始の場合は開始する。
// GET /api/checkout
func (h *CheckoutHandler) GetState(w http.ResponseWriter, r *http.Request) {
	h.writeState(w, r, h.current(r.Context()), http.StatusOK)
}

// Continue は配送先の選択へ進む。
// POST /api/checkout/continue
func (h *CheckoutHandler) Continue(w http.ResponseWriter, r *http.Request) {
	f := h.current(r.Context())
	if err := f.Continue(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}
	h.writeState(w, r, f, http.StatusOK)
}

// SelectLocation は配送先を記録して確認へ進む。
// POST /api/checkout/location
func (h *CheckoutHandler) SelectLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if req.Lat == nil || req.Lng == nil {
		handleServiceError(w, model.NewInvalidLocationError())
		return
	}

	f := h.current(r.Context())
	if err := f.SelectLocation(*req.Lat, *req.Lng, req.Address); err != nil {
		handleServiceError(w, err)
		return
	}
	h.writeState(w, r, f, http.StatusOK)
}

// ChangeLocation は配送先の選択へ戻る。
// POST /api/checkout/change-location
func (h *CheckoutHandler) ChangeLocation(w http.ResponseWriter, r *http.Request) {
	f := h.current(r.Context())
	if err := f.ChangeLocation(); err != nil {
		handleServiceError(w, err)
		return
	}
	h.writeState(w, r, f, http.StatusOK)
}

// Confirm は注文を確定する。
// POST /api/checkout/confirm
func (h *CheckoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	f := h.current(r.Context())
	order, err := f.Confirm(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// 注文は保存済みのため、件数の取得に失敗しても201を返す
	count, err := h.cart.Count(r.Context(), order.UserID)
	if err != nil {
		slog.Error("failed to count cart after order",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
		count = 0
	}
	writeJSON(w, http.StatusCreated, confirmResponse{Order: order, CartCount: count})
}

// ListOrders はログイン中のユーザーの注文履歴を返す。
// GET /api/orders
func (h *CheckoutHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	orders, err := h.service.Orders(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// current は進行中のFlowを返す。存在しない場合は開始する。
func (h *CheckoutHandler) current(ctx context.Context) *checkout.Flow {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.flow == nil {
		h.flow = h.service.Begin(ctx)
	}
	return h.flow
}

// writeState はFlowの状態を書き込む。summaryとconfirmationではカートの内容も含める。
func (h *CheckoutHandler) writeState(w http.ResponseWriter, r *http.Request, f *checkout.Flow, statusCode int) {
	resp := checkoutResponse{
		State:    f.State(),
		Location: f.Location(),
		Order:    f.Order(),
	}

	if resp.State == checkout.StateSummary || resp.State == checkout.StateConfirmation {
		if userID, err := middleware.UserIDFromContext(r.Context()); err == nil {
			snap, err := h.cart.Snapshot(r.Context(), userID)
			if err != nil {
				handleServiceError(w, err)
				return
			}
			resp.Cart = snap
		}
	}
	writeJSON(w, statusCode, resp)
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/storefront/internal/model"
)

// CatalogReader は商品カタログの読み取り操作。
type CatalogReader interface {
	ProductByID(id string) *model.Product
	ByCategory(category string) []model.Product
	Categories() []string
}

// CatalogHandler は商品カタログのHTTPハンドラー。
type CatalogHandler struct {
	catalog CatalogReader
}

// NewCatalogHandler はCatalogHandlerを生成する。
func NewCatalogHandler(catalog CatalogReader) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// ListProducts は商品一覧を返す。categoryが空の場合は全商品。
// GET /api/products?category=xxx
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products := h.catalog.ByCategory(r.URL.Query().Get("category"))
	if products == nil {
		products = []model.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

// GetProduct は商品を1件返す。
// GET /api/products/{id}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p := h.catalog.ProductByID(id)
	if p == nil {
		handleServiceError(w, model.NewProductNotFoundError(id))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ListCategories はカテゴリ一覧を返す。
// GET /api/categories
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.Categories())
}

// Package cart はカートの明細管理と合計の計算を提供する。
package cart

import (
	"context"
	"fmt"
	"math"

	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/repository"
)

// カートの保存単位。
const (
	// ScopeUser はログインユーザーごとにカートを分ける。
	ScopeUser = "user"
	// ScopeProfile はプロファイル全体で1つのカートを共有する。
	ScopeProfile = "profile"
)

// ProductCatalog は商品IDから商品を解決する。存在しない場合はnilを返す。
type ProductCatalog interface {
	ProductByID(id string) *model.Product
}

// ServiceConfig はカートサービスの設定。
type ServiceConfig struct {
	Scope        string
	EnforceStock bool
	Metrics      metrics.MetricsCollector
}

// Service はカートのサービス層。
// 明細は価格を持たず、集計時にカタログから解決する。
type Service struct {
	repo     repository.CartRepository
	products ProductCatalog
	config   ServiceConfig
}

// NewService はServiceを生成する。Scopeが空の場合はScopeUserを使用する。
func NewService(repo repository.CartRepository, products ProductCatalog, config ServiceConfig) *Service {
	if config.Scope == "" {
		config.Scope = ScopeUser
	}
	return &Service{repo: repo, products: products, config: config}
}

// Add は商品を追加する。既に同じ商品がある場合は数量を加算する。
func (s *Service) Add(ctx context.Context, userID, productID string, quantity int) error {
	if quantity < 1 {
		return model.NewInvalidQuantityError(quantity)
	}

	items, err := s.load(ctx, userID)
	if err != nil {
		return err
	}

	idx := indexOf(items, productID)
	newQty := quantity
	if idx >= 0 {
		if quantity > math.MaxInt-items[idx].Quantity {
			return model.NewInvalidQuantityError(quantity)
		}
		newQty += items[idx].Quantity
	}
	if err := s.checkStock(productID, newQty); err != nil {
		return err
	}

	if idx >= 0 {
		items[idx].Quantity = newQty
	} else {
		items = append(items, model.CartItem{ProductID: productID, Quantity: quantity})
	}

	if err := s.save(ctx, userID, items); err != nil {
		return err
	}
	s.record("add")
	return nil
}

// Remove は商品の明細を削除する。存在しない場合は何もしない。
func (s *Service) Remove(ctx context.Context, userID, productID string) error {
	items, err := s.load(ctx, userID)
	if err != nil {
		return err
	}

	idx := indexOf(items, productID)
	if idx < 0 {
		return nil
	}
	items = append(items[:idx], items[idx+1:]...)

	if err := s.save(ctx, userID, items); err != nil {
		return err
	}
	s.record("remove")
	return nil
}

// SetQuantity は数量を置き換える。0以下の場合はRemoveと同じ。
// 明細が存在しない場合はITEM_NOT_FOUNDを返す。
func (s *Service) SetQuantity(ctx context.Context, userID, productID string, quantity int) error {
	if quantity <= 0 {
		return s.Remove(ctx, userID, productID)
	}

	items, err := s.load(ctx, userID)
	if err != nil {
		return err
	}

	idx := indexOf(items, productID)
	if idx < 0 {
		return model.NewItemNotFoundError(productID)
	}
	if err := s.checkStock(productID, quantity); err != nil {
		return err
	}
	items[idx].Quantity = quantity

	if err := s.save(ctx, userID, items); err != nil {
		return err
	}
	s.record("set_quantity")
	return nil
}

// Clear はカートを空にする。
func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.save(ctx, userID, nil); err != nil {
		return err
	}
	s.record("clear")
	return nil
}

// Items は保存されている明細を挿入順で返す。
func (s *Service) Items(ctx context.Context, userID string) ([]model.CartItem, error) {
	return s.load(ctx, userID)
}

// Snapshot はカタログと結合した表示用の明細を返す。
// カタログで解決できない明細は行と合計から除外する。Countは保存されている全明細の数量の合計。
func (s *Service) Snapshot(ctx context.Context, userID string) (*model.CartSnapshot, error) {
	items, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	snap := &model.CartSnapshot{Lines: make([]model.CartLine, 0, len(items))}
	var total float64
	for _, item := range items {
		snap.Count = addCapped(snap.Count, item.Quantity)

		p := s.products.ProductByID(item.ProductID)
		if p == nil {
			continue
		}
		subtotal := p.Price * float64(item.Quantity)
		total += subtotal
		snap.Lines = append(snap.Lines, model.CartLine{
			ProductID: p.ID,
			Name:      p.Name,
			Image:     p.Image,
			UnitPrice: p.Price,
			Quantity:  item.Quantity,
			Subtotal:  RoundCents(subtotal),
		})
	}
	snap.Total = RoundCents(total)
	return snap, nil
}

// Count は保存されている明細の数量の合計を返す。
func (s *Service) Count(ctx context.Context, userID string) (int, error) {
	items, err := s.load(ctx, userID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, item := range items {
		count = addCapped(count, item.Quantity)
	}
	return count, nil
}

// Total はカタログで解決できる明細の数量×単価の合計を返す。
func (s *Service) Total(ctx context.Context, userID string) (float64, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return 0, err
	}
	return snap.Total, nil
}

// owner は保存単位に応じたカートの所有者キーを返す。
func (s *Service) owner(userID string) string {
	if s.config.Scope == ScopeProfile {
		return ""
	}
	return userID
}

func (s *Service) load(ctx context.Context, userID string) ([]model.CartItem, error) {
	items, err := s.repo.Load(ctx, s.owner(userID))
	if err != nil {
		return nil, fmt.Errorf("カートの取得に失敗しました: %w", err)
	}
	return items, nil
}

func (s *Service) save(ctx context.Context, userID string, items []model.CartItem) error {
	if err := s.repo.Save(ctx, s.owner(userID), items); err != nil {
		return fmt.Errorf("カートの保存に失敗しました: %w", err)
	}
	return nil
}

// checkStock は在庫検査が有効な場合に商品の存在と在庫数を確認する。
func (s *Service) checkStock(productID string, quantity int) error {
	if !s.config.EnforceStock {
		return nil
	}
	p := s.products.ProductByID(productID)
	if p == nil {
		return model.NewProductNotFoundError(productID)
	}
	if quantity > p.Stock {
		return model.NewInsufficientStockError(productID, p.Stock)
	}
	return nil
}

func (s *Service) record(op string) {
	if s.config.Metrics != nil {
		s.config.Metrics.RecordCartOperation(op)
	}
}

func indexOf(items []model.CartItem, productID string) int {
	for i := range items {
		if items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// addCapped は数量の合計をmath.MaxIntで頭打ちにする。
func addCapped(sum, quantity int) int {
	if quantity > math.MaxInt-sum {
		return math.MaxInt
	}
	return sum + quantity
}

// RoundCents は金額を小数点以下2桁に丸める。
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

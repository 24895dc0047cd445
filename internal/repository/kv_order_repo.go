package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/store"
)

// KVOrderRepo は全ユーザーの注文を orders キーの単一配列に保存するリポジトリ。
type KVOrderRepo struct {
	store store.Store
}

// NewKVOrderRepo はKVOrderRepoを生成する。
func NewKVOrderRepo(s store.Store) *KVOrderRepo {
	return &KVOrderRepo{store: s}
}

// Append は注文を末尾に追加する。
func (r *KVOrderRepo) Append(ctx context.Context, order *model.Order) error {
	orders, err := r.load(ctx)
	if err != nil {
		return err
	}
	orders = append(orders, *order)
	if err := store.SetJSON(ctx, r.store, KeyOrders, orders); err != nil {
		return fmt.Errorf("failed to save orders: %w", err)
	}
	return nil
}

// FindByID は指定IDの注文を取得する。見つからない場合はnilを返す。
func (r *KVOrderRepo) FindByID(ctx context.Context, id string) (*model.Order, error) {
	orders, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if orders[i].ID == id {
			o := orders[i]
			return &o, nil
		}
	}
	return nil, nil
}

// ListByUser は指定ユーザーの注文を作成順で返す。
func (r *KVOrderRepo) ListByUser(ctx context.Context, userID string) ([]model.Order, error) {
	orders, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		if o.UserID == userID {
			result = append(result, o)
		}
	}
	return result, nil
}

func (r *KVOrderRepo) load(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order
	if _, err := store.GetJSON(ctx, r.store, KeyOrders, &orders); err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	return orders, nil
}

// compile-time interface check
var _ OrderRepository = (*KVOrderRepo)(nil)

package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/store"
)

// KVCartRepo はカート明細の配列を所有者ごとのキーに保存するリポジトリ。
type KVCartRepo struct {
	store store.Store
}

// NewKVCartRepo はKVCartRepoを生成する。
func NewKVCartRepo(s store.Store) *KVCartRepo {
	return &KVCartRepo{store: s}
}

// Load は明細を挿入順で返す。
func (r *KVCartRepo) Load(ctx context.Context, owner string) ([]model.CartItem, error) {
	var items []model.CartItem
	if _, err := store.GetJSON(ctx, r.store, CartKey(owner), &items); err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if items == nil {
		items = []model.CartItem{}
	}
	return items, nil
}

// Save は明細全体を書き戻す。
func (r *KVCartRepo) Save(ctx context.Context, owner string, items []model.CartItem) error {
	if items == nil {
		items = []model.CartItem{}
	}
	if err := store.SetJSON(ctx, r.store, CartKey(owner), items); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CartRepository = (*KVCartRepo)(nil)

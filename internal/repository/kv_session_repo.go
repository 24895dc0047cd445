package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/store"
)

// KVSessionRepo はストアの current_user キーにログイン中のユーザーを保存するリポジトリ。
type KVSessionRepo struct {
	store store.Store
}

// NewKVSessionRepo はKVSessionRepoを生成する。
func NewKVSessionRepo(s store.Store) *KVSessionRepo {
	return &KVSessionRepo{store: s}
}

// Current はセッションのユーザーを返す。未ログインの場合はnilを返す。
func (r *KVSessionRepo) Current(ctx context.Context) (*model.User, error) {
	var user model.User
	found, err := store.GetJSON(ctx, r.store, KeyCurrentUser, &user)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &user, nil
}

// Set はセッションのユーザーを置き換える。
func (r *KVSessionRepo) Set(ctx context.Context, user *model.User) error {
	if err := store.SetJSON(ctx, r.store, KeyCurrentUser, user); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Clear はセッションを削除する。
func (r *KVSessionRepo) Clear(ctx context.Context) error {
	if err := r.store.Delete(ctx, KeyCurrentUser); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SessionRepository = (*KVSessionRepo)(nil)

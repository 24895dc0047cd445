package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/store"
)

// KVUserRepo はストアの users キーにユーザー配列を保存するリポジトリ。
type KVUserRepo struct {
	store store.Store
}

// NewKVUserRepo はKVUserRepoを生成する。
func NewKVUserRepo(s store.Store) *KVUserRepo {
	return &KVUserRepo{store: s}
}

// List は登録順に全ユーザーを返す。
func (r *KVUserRepo) List(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if _, err := store.GetJSON(ctx, r.store, KeyUsers, &users); err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *KVUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findFirst(ctx, func(u *model.User) bool { return u.ID == id })
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *KVUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findFirst(ctx, func(u *model.User) bool { return u.Email == email })
}

// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
func (r *KVUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findFirst(ctx, func(u *model.User) bool { return u.Username == username })
}

// Create はユーザーを末尾に追加する。
func (r *KVUserRepo) Create(ctx context.Context, user *model.User) error {
	users, err := r.List(ctx)
	if err != nil {
		return err
	}
	users = append(users, *user)
	if err := store.SetJSON(ctx, r.store, KeyUsers, users); err != nil {
		return fmt.Errorf("failed to save users: %w", err)
	}
	return nil
}

// Update は同じIDのユーザーを置き換える。
func (r *KVUserRepo) Update(ctx context.Context, user *model.User) error {
	users, err := r.List(ctx)
	if err != nil {
		return err
	}

	idx := -1
	for i := range users {
		if users[i].ID == user.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return model.NewUserNotFoundError()
	}

	users[idx] = *user
	if err := store.SetJSON(ctx, r.store, KeyUsers, users); err != nil {
		return fmt.Errorf("failed to save users: %w", err)
	}
	return nil
}

func (r *KVUserRepo) findFirst(ctx context.Context, match func(*model.User) bool) (*model.User, error) {
	users, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if match(&users[i]) {
			u := users[i]
			return &u, nil
		}
	}
	return nil, nil
}

// compile-time interface check
var _ UserRepository = (*KVUserRepo)(nil)

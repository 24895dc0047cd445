// Package repository はストア上の型付きコレクションを定義する。
// 各メソッドはコレクション全体を読み込み、メモリ上で変更し、全体を書き戻す。
package repository

import (
	"context"

	"github.com/hitoshi/storefront/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// List は登録順に全ユーザーを返す。
	List(ctx context.Context) ([]model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスが完全一致するユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByUsername はユーザー名が完全一致するユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーを末尾に追加する。一意性の検査は呼び出し側の責務。
	Create(ctx context.Context, user *model.User) error

	// Update は同じIDのユーザーを置き換える。存在しない場合はUSER_NOT_FOUNDを返す。
	Update(ctx context.Context, user *model.User) error
}

// SessionRepository は現在ログイン中のユーザー（単一スロット）の永続化インターフェース。
type SessionRepository interface {
	// Current はセッションのユーザーを返す。未ログインの場合はnilを返す。
	Current(ctx context.Context) (*model.User, error)

	// Set はセッションのユーザーを置き換える。
	Set(ctx context.Context, user *model.User) error

	// Clear はセッションを削除する。未ログインでもエラーにならない。
	Clear(ctx context.Context) error
}

// VerificationCodeRepository はメールアドレスごとの確認コードの永続化インターフェース。
type VerificationCodeRepository interface {
	// Find は保存されているコードを返す。存在しない場合は空文字を返す。
	Find(ctx context.Context, email string) (string, error)

	// Put はコードを保存する。既存のコードは上書きされる。
	Put(ctx context.Context, email, code string) error

	// Delete はコードを削除する。
	Delete(ctx context.Context, email string) error
}

// CartRepository はカート明細の永続化インターフェース。
// ownerが空文字の場合はプロファイル共通のスロットを使用する。
type CartRepository interface {
	// Load は明細を挿入順で返す。未保存の場合は空スライスを返す。
	Load(ctx context.Context, owner string) ([]model.CartItem, error)

	// Save は明細全体を書き戻す。
	Save(ctx context.Context, owner string, items []model.CartItem) error
}

// OrderRepository は注文データの永続化インターフェース。
type OrderRepository interface {
	// Append は注文を末尾に追加する。
	Append(ctx context.Context, order *model.Order) error

	// FindByID は指定IDの注文を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Order, error)

	// ListByUser は指定ユーザーの注文を作成順で返す。
	ListByUser(ctx context.Context, userID string) ([]model.Order, error)
}

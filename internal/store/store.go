// Package store は名前空間付きのキー → JSON blob 永続ストアを提供する。
//
// 各コンポーネントはStoreインターフェースを注入されて利用し、
// パッケージレベルの隠れた状態は持たない。
// 操作はコレクション全体の読み込み・書き戻しを前提とした単純なget/set/deleteのみ。
package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// DefaultNamespace はキーに付与されるデフォルトのプレフィックス。
const DefaultNamespace = "electrodomesticos_"

// Store はキー → JSON blob の永続ストアのインターフェース。
type Store interface {
	// Get は指定キーの値を取得する。存在しない場合はnil, nilを返す。
	Get(ctx context.Context, key string) ([]byte, error)

	// Set は指定キーに値を保存する。既存の値は上書きされる。
	Set(ctx context.Context, key string, value []byte) error

	// Delete は指定キーを削除する。存在しない場合もエラーにならない。
	Delete(ctx context.Context, key string) error
}

// namespaced はすべてのキーにプレフィックスを付与するStoreのラッパー。
type namespaced struct {
	inner  Store
	prefix string
}

// Namespaced はキーにprefixを付与するStoreを返す。
// 同じバックエンドを複数のストアで共有する場合に使用する。
func Namespaced(inner Store, prefix string) Store {
	if prefix == "" {
		return inner
	}
	return &namespaced{inner: inner, prefix: prefix}
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key string, value []byte) error {
	return n.inner.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.inner.Delete(ctx, n.prefix+key)
}

// GetJSON は指定キーの値をJSONとしてvにデコードする。
// キーが存在しない場合はvを変更せずfalseを返す。
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return true, nil
}

// SetJSON はvをJSONにエンコードして指定キーに保存する。
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}
	return s.Set(ctx, key, data)
}

package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/storefront/internal/store"
)

// KVVerificationCodeRepo はメールアドレスからコードへのマップを
// verification_codes キーに保存するリポジトリ。
type KVVerificationCodeRepo struct {
	store store.Store
}

// NewKVVerificationCodeRepo はKVVerificationCodeRepoを生成する。
func NewKVVerificationCodeRepo(s store.Store) *KVVerificationCodeRepo {
	return &KVVerificationCodeRepo{store: s}
}

// Find は保存されているコードを返す。存在しない場合は空文字を返す。
func (r *KVVerificationCodeRepo) Find(ctx context.Context, email string) (string, error) {
	codes, err := r.load(ctx)
	if err != nil {
		return "", err
	}
	return codes[email], nil
}

// Put はコードを保存する。
func (r *KVVerificationCodeRepo) Put(ctx context.Context, email, code string) error {
	codes, err := r.load(ctx)
	if err != nil {
		return err
	}
	codes[email] = code
	return r.save(ctx, codes)
}

// Delete はコードを削除する。
func (r *KVVerificationCodeRepo) Delete(ctx context.Context, email string) error {
	codes, err := r.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := codes[email]; !ok {
		return nil
	}
	delete(codes, email)
	return r.save(ctx, codes)
}

func (r *KVVerificationCodeRepo) load(ctx context.Context) (map[string]string, error) {
	var codes map[string]string
	if _, err := store.GetJSON(ctx, r.store, KeyVerificationCodes, &codes); err != nil {
		return nil, fmt.Errorf("failed to load verification codes: %w", err)
	}
	if codes == nil {
		codes = make(map[string]string)
	}
	return codes, nil
}

func (r *KVVerificationCodeRepo) save(ctx context.Context, codes map[string]string) error {
	if err := store.SetJSON(ctx, r.store, KeyVerificationCodes, codes); err != nil {
		return fmt.Errorf("failed to save verification codes: %w", err)
	}
	return nil
}

// compile-time interface check
var _ VerificationCodeRepository = (*KVVerificationCodeRepo)(nil)

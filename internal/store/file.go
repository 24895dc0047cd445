package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// FileStore はディレクトリ配下にキーごとのJSONファイルを保存するStore実装。
// プロセスの再起動をまたいで値が残る、単一プロファイル向けのローカルストア。
// 書き込みは一時ファイルへの書き出しとrenameで行い、途中状態のファイルを残さない。
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore はdirを保存先とするFileStoreを生成する。
// ディレクトリが存在しない場合は作成する。
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Get は指定キーのファイル内容を返す。存在しない場合はnil, nilを返す。
func (f *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return data, nil
}

// Set は指定キーのファイルを置き換える。
func (f *FileStore) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %q: %w", key, err)
	}
	return nil
}

// Delete は指定キーのファイルを削除する。
func (f *FileStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

// path はキーをファイル名として安全な形にエスケープしたパスを返す。
func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+".json")
}

// compile-time interface check
var _ Store = (*FileStore)(nil)

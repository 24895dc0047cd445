package store

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore はPostgreSQLのkv_entriesテーブルを使用したStore実装。
// テーブルはdatabase.RunMigrationsで作成される。
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore はPostgresStoreを生成する。
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get は指定キーの値を返す。存在しない場合はnil, nilを返す。
func (p *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT value FROM kv_entries WHERE key = $1`,
		key,
	).Scan(&value)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %q: %w", key, err)
	}
	return value, nil
}

// Set は値をUPSERTする。
func (p *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value, updated_at)
		 VALUES ($1, $2::jsonb, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, string(value),
	)
	if err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	return nil
}

// Delete は指定キーを削除する。
func (p *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM kv_entries WHERE key = $1`,
		key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

// compile-time interface check
var _ Store = (*PostgresStore)(nil)

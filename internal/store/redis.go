package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig はRedis接続の設定。
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore はRedisのGET/SET/DELを使用したStore実装。
type RedisStore struct {
	client *redis.Client
}

// NewRedisClient はRedisクライアントを生成し、Pingで接続を確認する。
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// NewRedisStore は既存のクライアントを使用するRedisStoreを生成する。
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get は指定キーの値を返す。存在しない場合はnil, nilを返す。
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %q from redis: %w", key, err)
	}
	return data, nil
}

// Set は有効期限なしで値を保存する。
func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %q in redis: %w", key, err)
	}
	return nil
}

// Delete は指定キーを削除する。
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete %q from redis: %w", key, err)
	}
	return nil
}

// compile-time interface check
var _ Store = (*RedisStore)(nil)

// redis — хранилище токенов в Redis.
// Каждый токен лежит строкой под ключом <prefix><name>.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/pribylovaa/crypto-dashboard/internal/storage"
)

const defaultPrefix = "dashboard:session:"

type Storage struct {
	rdb    *redis.Client
	prefix string
}

// New создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется "dashboard:session:".
func New(ctx context.Context, redisURL, prefix string) (*Storage, error) {
	const op = "storage.redis.New"

	if prefix == "" {
		prefix = defaultPrefix
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{rdb: rdb, prefix: prefix}, nil
}

func (s *Storage) key(name string) string { return s.prefix + name }

// Get возвращает значение по ключу.
func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	const op = "storage.redis.Get"

	v, err := s.rdb.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	return v, nil
}

// Set сохраняет значение без TTL: срок жизни токена определяет его exp.
func (s *Storage) Set(ctx context.Context, key, value string) error {
	const op = "storage.redis.Set"

	if err := s.rdb.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Delete удаляет ключи одной командой DEL.
func (s *Storage) Delete(ctx context.Context, keys ...string) error {
	const op = "storage.redis.Delete"

	if len(keys) == 0 {
		return nil
	}

	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, s.key(k))
	}

	if err := s.rdb.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Close закрывает клиент Redis.
func (s *Storage) Close() error { return s.rdb.Close() }

var _ storage.TokenStore = (*Storage)(nil)

// postgres — хранилище токенов в таблице session_tokens (см. migrations/).
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pribylovaa/crypto-dashboard/internal/storage"
)

type Storage struct {
	db *pgxpool.Pool
}

// New создает новое подключение к PostgreSQL.
func New(ctx context.Context, dbURL string) (*Storage, error) {
	const op = "storage.postgres.New"

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

// Get возвращает значение по ключу.
func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	const op = "storage.postgres.Get"

	query := `SELECT value FROM session_tokens WHERE name = $1`

	var value string
	if err := s.db.QueryRow(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	return value, nil
}

// Set сохраняет значение (upsert по имени).
func (s *Storage) Set(ctx context.Context, key, value string) error {
	const op = "storage.postgres.Set"

	query := `
        INSERT INTO session_tokens(name, value, updated_at)
        VALUES ($1, $2, now())
        ON CONFLICT (name) DO UPDATE
        SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
    `

	if _, err := s.db.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Delete удаляет ключи одним запросом.
func (s *Storage) Delete(ctx context.Context, keys ...string) error {
	const op = "storage.postgres.Delete"

	if len(keys) == 0 {
		return nil
	}

	query := `DELETE FROM session_tokens WHERE name = ANY($1)`

	if _, err := s.db.Exec(ctx, query, keys); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Close закрывает пул соединений.
func (s *Storage) Close() error {
	s.db.Close()
	return nil
}

// Проверка на соответствие интерфейсу TokenStore.
var _ storage.TokenStore = (*Storage)(nil)

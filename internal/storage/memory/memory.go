// memory — хранилище токенов в памяти процесса.
// Токены переживают только время жизни процесса; удобно для local и тестов.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/pribylovaa/crypto-dashboard/internal/storage"
)

type Storage struct {
	mu   sync.RWMutex
	data map[string]string
}

// New создаёт пустое хранилище.
func New() *Storage {
	return &Storage{data: make(map[string]string)}
}

// Get возвращает значение по ключу.
func (s *Storage) Get(_ context.Context, key string) (string, error) {
	const op = "storage.memory.Get"

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return "", fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return v, nil
}

// Set сохраняет значение по ключу.
func (s *Storage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()

	return nil
}

// Delete удаляет ключи.
func (s *Storage) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.data, k)
	}
	s.mu.Unlock()

	return nil
}

func (s *Storage) Close() error { return nil }

var _ storage.TokenStore = (*Storage)(nil)

// storage описывает контракт хранилища токенов сессии.
//
// Хранилище — простое key-value: под ключами models.AccessTokenKey и
// models.RefreshTokenKey лежат две строки. Других долговременных данных
// у дашборда нет.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound — значение по ключу отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrCorrupted — значение прочитано, но не разбирается (битый файл, неверный ключ шифрования).
	ErrCorrupted = errors.New("corrupted")
)

// TokenStore выполняет операции над сохранёнными токенами.
type TokenStore interface {
	// Get возвращает значение по ключу или ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set сохраняет значение по ключу, перезаписывая предыдущее.
	Set(ctx context.Context, key, value string) error
	// Delete удаляет перечисленные ключи; отсутствие ключа ошибкой не считается.
	Delete(ctx context.Context, keys ...string) error
	// Close освобождает ресурсы хранилища.
	Close() error
}

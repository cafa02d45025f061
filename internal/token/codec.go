// token декодирует access-токены, выданные сервисом аутентификации.
//
// Подпись здесь не проверяется: ключ есть только у сервиса аутентификации,
// а клиенту достаточно прочитать claims (username, email, user_id, exp),
// чтобы восстановить пользователя и понять, истёк ли токен.
// Любая ошибка декодирования трактуется как «токен истёк» (fail-closed).
package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pribylovaa/crypto-dashboard/internal/models"
)

var (
	// ErrMalformed — строка не является JWT или claims не читаются.
	ErrMalformed = errors.New("malformed token")
	// ErrNoExpiry — в токене нет claim exp.
	ErrNoExpiry = errors.New("token has no exp claim")
)

var parser = jwt.NewParser(jwt.WithJSONNumber())

// Decode разбирает токен без проверки подписи и возвращает пользователя.
//
// Правила:
//   - username по умолчанию models.DefaultUsername;
//   - user_id допускается строкой или числом;
//   - отсутствие exp — ошибка ErrNoExpiry.
func Decode(raw string) (*models.User, error) {
	const op = "token.codec.Decode"

	if raw == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformed)
	}

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrMalformed, err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrMalformed, err)
	}

	if exp == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNoExpiry)
	}

	user := &models.User{
		Username:  stringClaim(claims, "username"),
		Email:     stringClaim(claims, "email"),
		UserID:    stringClaim(claims, "user_id"),
		ExpiresAt: exp.Unix(),
	}

	if user.Username == "" {
		user.Username = models.DefaultUsername
	}

	return user, nil
}

// IsExpired сообщает, истёк ли токен к моменту now.
// Токен считается истёкшим, если exp*1000 <= now (в миллисекундах)
// или если его не удалось декодировать.
func IsExpired(raw string, now time.Time) bool {
	user, err := Decode(raw)
	if err != nil {
		return true
	}

	return user.ExpiresAt*1000 <= now.UnixMilli()
}

// stringClaim приводит claim к строке; числа форматируются без экспоненты.
func stringClaim(claims jwt.MapClaims, key string) string {
	switch v := claims[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

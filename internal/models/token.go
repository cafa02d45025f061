package models

// Ключи, под которыми токены лежат в хранилище.
const (
	AccessTokenKey  = "access"
	RefreshTokenKey = "refresh"
)

// TokenPair — пара токенов, выдаваемая сервисом аутентификации при входе.
type TokenPair struct {
	// AccessToken — короткоживущий подписанный токен с claims пользователя.
	AccessToken string
	// RefreshToken — долгоживущий токен, годный только для выпуска нового access.
	RefreshToken string
}

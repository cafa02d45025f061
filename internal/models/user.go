// models содержит доменные сущности дашборда.
// Эти типы используются слоями сессии, кошелька, клиентов и транспорта.
package models

// User — пользователь, восстановленный из access-токена.
//
// Особенности:
//   - никогда не является источником истины: всегда пересчитывается
//     декодированием текущего access-токена;
//   - ExpiresAt — claim exp (unix-секунды).
type User struct {
	// Username — имя пользователя; "User", если claim отсутствует.
	Username string `json:"username"`
	// Email — e-mail из claim email (может быть пустым).
	Email string `json:"email,omitempty"`
	// UserID — идентификатор из claim user_id (может быть пустым).
	UserID string `json:"user_id,omitempty"`
	// ExpiresAt — момент истечения токена, unix-секунды.
	ExpiresAt int64 `json:"exp"`
}

// DefaultUsername подставляется, когда в токене нет claim username.
const DefaultUsername = "User"

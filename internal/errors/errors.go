// errors стандартизирует ответы об ошибках HTTP-слоя дашборда.
// На вход принимает доменную ошибку (session, wallet, клиенты апстримов),
// на выход даёт:
//   - корректный HTTP-статус;
//   - короткий стабильный код и безопасное message.
//
// Сообщения сервиса аутентификации (*authapi.Error) предназначены
// пользователю и отдаются как есть; прочие детали наружу не утекают.
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pribylovaa/crypto-dashboard/internal/clients/authapi"
	"github.com/pribylovaa/crypto-dashboard/internal/clients/market"
	"github.com/pribylovaa/crypto-dashboard/internal/clients/news"
	"github.com/pribylovaa/crypto-dashboard/internal/session"
	"github.com/pribylovaa/crypto-dashboard/internal/wallet"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

var (
	// ErrInvalidArgument — некорректный ввод на уровне HTTP (тело, параметры).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("not found")
)

// APIError — единый формат для фронта.
// Code — короткий стабильный код для машиночитаемой обработки на FE.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует доменную ошибку в HTTP-статус и ответ.
//
// Таблица:
//   - authapi AuthFailure -> 401 auth_failed (сообщение сервиса);
//   - authapi Transport -> 502 upstream_unavailable (сообщение сервиса);
//   - session expired / refresh rejected -> 401 session_expired;
//   - not authenticated -> 401 unauthenticated;
//   - wallet provider unavailable -> 503, user rejected -> 403;
//   - invalid argument -> 400, not found / asset not found -> 404;
//   - апстримы рынка/новостей, битый токен, баланс -> 502;
//   - context.DeadlineExceeded -> 504, context.Canceled -> 499;
//   - прочее и err == nil -> 500 internal.
func ToHTTP(err error) (int, ErrorResponse) {
	status, code, msg := classify(err)
	return status, ErrorResponse{Error: APIError{Code: code, Message: msg}}
}

func classify(err error) (int, string, string) {
	if err == nil {
		return http.StatusInternalServerError, "internal", "internal error"
	}

	var ae *authapi.Error
	if errors.As(err, &ae) {
		switch {
		case errors.Is(ae.Kind, authapi.ErrAuthFailure):
			return http.StatusUnauthorized, "auth_failed", ae.Message
		case errors.Is(ae.Kind, authapi.ErrRejected):
			return http.StatusUnauthorized, "session_expired", "session expired"
		default:
			return http.StatusBadGateway, "upstream_unavailable", ae.Message
		}
	}

	switch {
	case errors.Is(err, session.ErrSessionExpired):
		return http.StatusUnauthorized, "session_expired", "session expired"
	case errors.Is(err, session.ErrNotAuthenticated):
		return http.StatusUnauthorized, "unauthenticated", "unauthenticated"
	case errors.Is(err, session.ErrInvalidToken):
		return http.StatusBadGateway, "bad_gateway", "authentication service returned an invalid token"

	case errors.Is(err, wallet.ErrProviderUnavailable):
		return http.StatusServiceUnavailable, "provider_unavailable", "wallet provider unavailable"
	case errors.Is(err, wallet.ErrUserRejected):
		return http.StatusForbidden, "user_rejected", "request rejected by user"
	case errors.Is(err, wallet.ErrBalanceQuery):
		return http.StatusBadGateway, "balance_unavailable", "balance unavailable"

	case errors.Is(err, ErrInvalidArgument), errors.Is(err, market.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument", "invalid argument"
	case errors.Is(err, ErrNotFound), errors.Is(err, market.ErrAssetNotFound):
		return http.StatusNotFound, "not_found", "not found"
	case errors.Is(err, market.ErrUpstream), errors.Is(err, news.ErrUpstream):
		return http.StatusBadGateway, "upstream_unavailable", "upstream unavailable"

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded"
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "canceled", "canceled"

	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

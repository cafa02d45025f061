// authapi — HTTP-клиент внешнего сервиса аутентификации.
//
// Контракт апстрима:
//
//	POST {base}/login/    {email,password} -> {access, refresh}
//	POST {base}/register/ {email,password} -> {}
//	POST {base}/refresh/  {refresh}        -> {access}
//
// Клиент никогда не отдаёт наружу «сырые» ошибки разбора: не-JSON и
// HTML-страницы превращаются в *Error с человекочитаемым сообщением.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pribylovaa/crypto-dashboard/internal/models"
	"github.com/pribylovaa/crypto-dashboard/internal/pkg/log"
	"github.com/pribylovaa/crypto-dashboard/internal/pkg/redact"
)

var (
	// ErrAuthFailure — сервис отклонил учётные данные или запрос (не-2xx с JSON).
	ErrAuthFailure = errors.New("authentication failed")
	// ErrTransport — сеть недоступна или ответ не разбирается (HTML, не-JSON).
	ErrTransport = errors.New("authentication service unavailable")
	// ErrRejected — refresh-токен отклонён сервисом.
	ErrRejected = errors.New("refresh token rejected")
)

// Сообщения по умолчанию.
const (
	msgLoginFailed    = "Login failed"
	msgRegisterFailed = "Registration failed"
	msgRefreshFailed  = "Token refresh failed"
	msgBadResponse    = "Unexpected response from authentication service"
	msgNetwork        = "Authentication service is unreachable"
)

// maxBody ограничивает чтение тела ответа.
const maxBody = 1 << 20

// Error — ошибка операции с человекочитаемым сообщением.
// Kind — один из ErrAuthFailure / ErrTransport / ErrRejected.
type Error struct {
	Kind    error
	Message string
	Status  int
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Kind }

// Paths — относительные пути эндпойнтов.
type Paths struct {
	Login    string
	Register string
	Refresh  string
}

// DefaultPaths — пути, которые использует сервис аутентификации по умолчанию.
var DefaultPaths = Paths{Login: "login/", Register: "register/", Refresh: "refresh/"}

type Client struct {
	base   string
	paths  Paths
	client *http.Client
}

// New создаёт клиента. Пустые поля paths заменяются значениями DefaultPaths.
func New(baseURL string, paths Paths, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}

	if paths.Login == "" {
		paths.Login = DefaultPaths.Login
	}
	if paths.Register == "" {
		paths.Register = DefaultPaths.Register
	}
	if paths.Refresh == "" {
		paths.Refresh = DefaultPaths.Refresh
	}

	return &Client{
		base:   strings.TrimRight(baseURL, "/"),
		paths:  paths,
		client: client,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	Error   string `json:"error"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access string `json:"access"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Login обменивает e-mail и пароль на пару токенов.
func (c *Client) Login(ctx context.Context, email, password string) (models.TokenPair, error) {
	const op = "authapi.client.Login"

	lg := log.From(ctx)

	status, body, err := c.post(ctx, c.paths.Login, credentials{Email: email, Password: password})
	if err != nil {
		lg.Warn("auth_login_failed",
			slog.String("op", op),
			slog.String("email", redact.Email(email)),
			slog.String("err", err.Error()),
		)
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	var data loginResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, &Error{Kind: ErrTransport, Message: msgBadResponse, Status: status})
	}

	if !isOK(status) {
		msg := data.Error
		if msg == "" {
			msg = msgLoginFailed
		}

		lg.Info("auth_login_rejected",
			slog.String("op", op),
			slog.String("email", redact.Email(email)),
			slog.Int("status", status),
		)
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, &Error{Kind: ErrAuthFailure, Message: msg, Status: status})
	}

	if data.Access == "" || data.Refresh == "" {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, &Error{Kind: ErrTransport, Message: msgBadResponse, Status: status})
	}

	return models.TokenPair{AccessToken: data.Access, RefreshToken: data.Refresh}, nil
}

// Register создаёт учётную запись. Сессию не устанавливает.
func (c *Client) Register(ctx context.Context, email, password string) error {
	const op = "authapi.client.Register"

	status, body, err := c.post(ctx, c.paths.Register, credentials{Email: email, Password: password})
	if err != nil {
		log.From(ctx).Warn("auth_register_failed",
			slog.String("op", op),
			slog.String("email", redact.Email(email)),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("%s: %w", op, err)
	}

	var data errorResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return fmt.Errorf("%s: %w", op, &Error{Kind: ErrTransport, Message: msgBadResponse, Status: status})
	}

	if !isOK(status) {
		msg := data.Error
		if msg == "" {
			msg = msgRegisterFailed
		}

		return fmt.Errorf("%s: %w", op, &Error{Kind: ErrAuthFailure, Message: msg, Status: status})
	}

	return nil
}

// Refresh обменивает refresh-токен на новый access-токен.
// Любой не-2xx ответ — ErrRejected.
func (c *Client) Refresh(ctx context.Context, refresh string) (string, error) {
	const op = "authapi.client.Refresh"

	status, body, err := c.post(ctx, c.paths.Refresh, refreshRequest{Refresh: refresh})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if !isOK(status) {
		return "", fmt.Errorf("%s: %w", op, &Error{Kind: ErrRejected, Message: msgRefreshFailed, Status: status})
	}

	var data refreshResponse
	if err := json.Unmarshal(body, &data); err != nil || data.Access == "" {
		return "", fmt.Errorf("%s: %w", op, &Error{Kind: ErrTransport, Message: msgBadResponse, Status: status})
	}

	return data.Access, nil
}

// post отправляет JSON и возвращает статус и тело.
// HTML-ответ и сетевые сбои сразу превращаются в *Error с Kind=ErrTransport.
func (c *Client) post(ctx context.Context, path string, payload any) (int, []byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/"+strings.TrimLeft(path, "/"), bytes.NewReader(b))
	if err != nil {
		return 0, nil, &Error{Kind: ErrTransport, Message: msgNetwork}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, &Error{Kind: ErrTransport, Message: msgNetwork}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return resp.StatusCode, nil, &Error{Kind: ErrTransport, Message: msgNetwork, Status: resp.StatusCode}
	}

	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "text/html") {
		log.From(ctx).Warn("auth_html_response",
			slog.Int("status", resp.StatusCode),
			slog.Int("bytes", len(body)),
		)
		return resp.StatusCode, nil, &Error{Kind: ErrTransport, Message: HTMLMessage(body), Status: resp.StatusCode}
	}

	return resp.StatusCode, body, nil
}

func isOK(status int) bool { return status >= 200 && status < 300 }

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pribylovaa/crypto-dashboard/internal/models"
	"github.com/pribylovaa/crypto-dashboard/internal/pkg/log"
	"github.com/pribylovaa/crypto-dashboard/internal/pkg/redact"
	"github.com/pribylovaa/crypto-dashboard/internal/storage"
	"github.com/pribylovaa/crypto-dashboard/internal/token"
)

// Initialize выполняет первичную проверку сессии ровно один раз.
//
// Ветки:
//   - access-токена нет -> Anonymous;
//   - access-токен действителен -> пользователь из токена, Authenticated;
//   - access-токен истёк -> попытка обновления; неудача -> logout, Anonymous.
//
// Ошибки не возвращаются: любой сбой сводится к анонимной сессии.
// По завершении authChecked=true и Ready() закрыт. Повторные вызовы
// ждут завершения первого и ничего не делают.
func (m *Manager) Initialize(ctx context.Context) {
	m.initOnce.Do(func() {
		m.initialize(ctx)
	})
}

func (m *Manager) initialize(ctx context.Context) {
	const op = "session.manager.Initialize"

	lg := log.From(ctx)
	lg.Info("session_init_start", slog.String("op", op))

	m.setState(StateChecking)

	m.opMu.Lock()
	user := m.checkLocked(ctx, op)

	// Результат пишется под opMu, иначе Login/Logout между проверкой
	// и записью были бы перезаписаны.
	m.mu.Lock()
	m.user = user
	if user != nil {
		m.state = StateAuthenticated
	} else {
		m.state = StateAnonymous
	}
	m.authChecked = true
	m.metrics.SetSessionState(string(m.state))
	state := m.state
	m.mu.Unlock()
	m.opMu.Unlock()

	close(m.ready)

	lg.Info("session_init_done",
		slog.String("op", op),
		slog.String("state", string(state)),
	)
}

// checkLocked восстанавливает пользователя из сохранённых токенов. Вызывается под opMu.
func (m *Manager) checkLocked(ctx context.Context, op string) *models.User {
	lg := log.From(ctx)

	access, err := m.store.Get(ctx, models.AccessTokenKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			lg.Warn("session_init_store_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		}
		return nil
	}

	if access == "" {
		return nil
	}

	if !m.IsTokenExpired(access) {
		user, err := token.Decode(access)
		if err == nil {
			return user
		}
	}

	if _, err := m.refreshLocked(ctx); err != nil {
		lg.Info("session_init_refresh_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return copyUser(m.user)
}

// Login обменивает учётные данные на пару токенов и устанавливает сессию.
//
// При ошибке сервиса предыдущая сессия не меняется. Токен, который не
// декодируется или уже истёк, — ErrInvalidToken; в этом случае ничего
// не сохраняется.
func (m *Manager) Login(ctx context.Context, email, password string) (*models.User, error) {
	const op = "session.manager.Login"

	lg := log.From(ctx)

	m.opMu.Lock()
	defer m.opMu.Unlock()

	pair, err := m.client.Login(ctx, email, password)
	if err != nil {
		lg.Info("session_login_failed",
			slog.String("op", op),
			slog.String("email", redact.Email(email)),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := token.Decode(pair.AccessToken)
	if err != nil {
		lg.Warn("session_login_bad_token",
			slog.String("op", op),
			slog.String("token", redact.Token()),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidToken, err)
	}

	if m.IsTokenExpired(pair.AccessToken) {
		lg.Warn("session_login_expired_token",
			slog.String("op", op),
			slog.Int64("exp", user.ExpiresAt),
		)
		return nil, fmt.Errorf("%s: %w: access token already expired", op, ErrInvalidToken)
	}

	if err := m.persistLocked(ctx, pair); err != nil {
		lg.Error("session_login_persist_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)

		m.logoutLocked(ctx)
		return nil, fmt.Errorf("%s: %w: %v", op, ErrPersist, err)
	}

	m.setUser(user)

	lg.Info("session_login_ok",
		slog.String("op", op),
		slog.String("email", redact.Email(user.Email)),
	)

	return copyUser(user), nil
}

// Register создаёт учётную запись. Сессию не устанавливает и не меняет.
func (m *Manager) Register(ctx context.Context, email, password string) error {
	const op = "session.manager.Register"

	if err := m.client.Register(ctx, email, password); err != nil {
		log.From(ctx).Info("session_register_failed",
			slog.String("op", op),
			slog.String("email", redact.Email(email)),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("session_register_ok",
		slog.String("op", op),
		slog.String("email", redact.Email(email)),
	)

	return nil
}

// RefreshToken обменивает сохранённый refresh-токен на новый access-токен.
//
// Ошибки: ErrNoRefreshToken, ErrRefreshRejected (обе — ErrSessionExpired).
// Перед возвратом ошибки сессия очищается.
func (m *Manager) RefreshToken(ctx context.Context) (string, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	return m.refreshLocked(ctx)
}

func (m *Manager) refreshLocked(ctx context.Context) (string, error) {
	const op = "session.manager.RefreshToken"

	lg := log.From(ctx)

	fail := func(err error) (string, error) {
		lg.Info("session_refresh_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)

		m.logoutLocked(ctx)
		return "", fmt.Errorf("%s: %w", op, err)
	}

	refresh, err := m.store.Get(ctx, models.RefreshTokenKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fail(fmt.Errorf("%w: %w", ErrNoRefreshToken, err))
	}

	if refresh == "" {
		return fail(ErrNoRefreshToken)
	}

	access, err := m.client.Refresh(ctx, refresh)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrRefreshRejected, err))
	}

	user, err := token.Decode(access)
	if err != nil {
		return fail(fmt.Errorf("%w: %w: %v", ErrRefreshRejected, ErrInvalidToken, err))
	}

	if m.IsTokenExpired(access) {
		return fail(fmt.Errorf("%w: %w: access token already expired", ErrRefreshRejected, ErrInvalidToken))
	}

	if err := m.store.Set(ctx, models.AccessTokenKey, access); err != nil {
		return fail(fmt.Errorf("%w: %w: %v", ErrRefreshRejected, ErrPersist, err))
	}

	m.setUser(user)

	lg.Debug("session_refresh_ok", slog.String("op", op))

	return access, nil
}

// Logout удаляет оба токена и пользователя. Ошибки хранилища только логируются.
func (m *Manager) Logout(ctx context.Context) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.logoutLocked(ctx)
}

func (m *Manager) logoutLocked(ctx context.Context) {
	const op = "session.manager.Logout"

	if err := m.store.Delete(ctx, models.AccessTokenKey, models.RefreshTokenKey); err != nil {
		log.From(ctx).Warn("session_logout_store_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}

	m.setUser(nil)
}

// IsTokenExpired сообщает, истёк ли токен к текущему моменту.
// Токен, который не декодируется, считается истёкшим.
func (m *Manager) IsTokenExpired(raw string) bool {
	return token.IsExpired(raw, m.now())
}

// AccessToken возвращает действующий access-токен.
//
// Истёкший токен обновляется; неудача обновления завершает сессию.
// Действующий токен заново декодируется в пользователя.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	const op = "session.manager.AccessToken"

	m.opMu.Lock()
	defer m.opMu.Unlock()

	access, err := m.store.Get(ctx, models.AccessTokenKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if access == "" {
		return "", fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
	}

	if m.IsTokenExpired(access) {
		return m.refreshLocked(ctx)
	}

	user, err := token.Decode(access)
	if err != nil {
		return m.refreshLocked(ctx)
	}

	m.setUser(user)

	return access, nil
}

// CheckAuth сообщает, есть ли действующая сессия, обновляя токен при необходимости.
func (m *Manager) CheckAuth(ctx context.Context) bool {
	_, err := m.AccessToken(ctx)
	return err == nil
}

// persistLocked сохраняет пару токенов. Вызывается под opMu.
func (m *Manager) persistLocked(ctx context.Context, pair models.TokenPair) error {
	if err := m.store.Set(ctx, models.AccessTokenKey, pair.AccessToken); err != nil {
		return err
	}

	return m.store.Set(ctx, models.RefreshTokenKey, pair.RefreshToken)
}

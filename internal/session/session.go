// session содержит Session Manager: жизненный цикл пары токенов
// (access/refresh), производного пользователя и флага authChecked.
//
// Основные аспекты:
//   - Источник истины — сохранённый access-токен; пользователь заново
//     декодируется из него при инициализации, входе и обновлении.
//   - Мутирующие операции сериализуются мьютексом opMu; снимки состояния
//     читаются под отдельным RWMutex и не ждут сетевых вызовов.
//   - Состояния: Unchecked -> Checking -> {Authenticated, Anonymous};
//     Checking наступает ровно один раз, в Initialize.
//   - Любая неудача обновления токена завершает сессию (logout) до возврата ошибки.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pribylovaa/crypto-dashboard/internal/metrics"
	"github.com/pribylovaa/crypto-dashboard/internal/models"
	"github.com/pribylovaa/crypto-dashboard/internal/storage"
)

var (
	// ErrSessionExpired — сессия завершена: refresh-токена нет или он отклонён.
	// Транспорт: HTTP 401.
	ErrSessionExpired = errors.New("session expired")

	// ErrNoRefreshToken — refresh-токен не сохранён.
	ErrNoRefreshToken = fmt.Errorf("%w: no refresh token", ErrSessionExpired)

	// ErrRefreshRejected — сервис аутентификации не выдал новый access-токен.
	ErrRefreshRejected = fmt.Errorf("%w: refresh rejected", ErrSessionExpired)

	// ErrNotAuthenticated — сохранённого access-токена нет. Транспорт: HTTP 401.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrInvalidToken — сервис аутентификации выдал токен, который не декодируется.
	// Это сбой апстрима, а не пользователя. Транспорт: HTTP 502.
	ErrInvalidToken = errors.New("authentication service issued an unreadable token")

	// ErrPersist — не удалось сохранить токены. Транспорт: HTTP 500.
	ErrPersist = errors.New("failed to persist session tokens")
)

// State — состояние Session Manager.
type State string

const (
	StateUnchecked     State = "unchecked"
	StateChecking      State = "checking"
	StateAuthenticated State = "authenticated"
	StateAnonymous     State = "anonymous"
)

// AuthClient — внешний сервис аутентификации.
type AuthClient interface {
	Login(ctx context.Context, email, password string) (models.TokenPair, error)
	Register(ctx context.Context, email, password string) error
	Refresh(ctx context.Context, refresh string) (string, error)
}

// Snapshot — согласованный срез состояния для читателей (Route Guard, HTTP).
type Snapshot struct {
	User        *models.User `json:"user"`
	AuthChecked bool         `json:"auth_checked"`
	State       State        `json:"state"`
}

// Manager — Session Manager. Создаётся один раз на процесс.
type Manager struct {
	store   storage.TokenStore
	client  AuthClient
	now     func() time.Time
	metrics *metrics.Metrics

	// opMu сериализует операции, меняющие токены.
	opMu sync.Mutex

	mu          sync.RWMutex
	user        *models.User
	state       State
	authChecked bool

	initOnce sync.Once
	ready    chan struct{}
}

type Option func(*Manager)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithMetrics подключает метрики состояния сессии.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// New создаёт Manager в состоянии Unchecked.
func New(store storage.TokenStore, client AuthClient, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		client: client,
		now:    time.Now,
		state:  StateUnchecked,
		ready:  make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.metrics.SetSessionState(string(StateUnchecked))

	return m
}

// Ready закрывается в момент, когда authChecked становится true.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// Snapshot возвращает копию текущего состояния.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Snapshot{
		User:        copyUser(m.user),
		AuthChecked: m.authChecked,
		State:       m.state,
	}
}

// User возвращает копию текущего пользователя или nil.
// Читателям, которым важна готовность, нужен Snapshot (AuthChecked).
func (m *Manager) User() *models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return copyUser(m.user)
}

func (m *Manager) AuthChecked() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.authChecked
}

// setUser фиксирует пользователя и соответствующее состояние.
// В Unchecked/Checking состояние не трогается: его завершает Initialize.
func (m *Manager) setUser(u *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.user = u

	if m.state == StateUnchecked || m.state == StateChecking {
		return
	}

	if u != nil {
		m.state = StateAuthenticated
	} else {
		m.state = StateAnonymous
	}

	m.metrics.SetSessionState(string(m.state))
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = s
	m.metrics.SetSessionState(string(s))
}

func copyUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}

	c := *u
	return &c
}

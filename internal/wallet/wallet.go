// wallet содержит Wallet Connector: подключение браузерного кошелька
// (EIP-1193-подобный провайдер), баланс нативного токена, цену единицы
// и производную стоимость в USD.
//
// Основные аспекты:
//   - Connect/Disconnect и обработчики смены аккаунтов сериализуются opMu;
//     загрузка баланса и цены идёт вне него.
//   - Каждая смена аккаунта увеличивает epoch. Ответ баланса применяется,
//     только если epoch и адрес, для которых он запрошен, всё ещё текущие.
//   - USDValue пересчитывается при любом изменении баланса или цены,
//     если обе величины известны.
//   - Подписки на события провайдера живут от Connect до Disconnect/Close.
package wallet

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"

	"github.com/pribylovaa/crypto-dashboard/internal/metrics"
)

var (
	// ErrProviderUnavailable — провайдер кошелька не подключён. Транспорт: HTTP 503.
	ErrProviderUnavailable = errors.New("wallet provider unavailable")
	// ErrUserRejected — пользователь отклонил запрос доступа. Транспорт: HTTP 403.
	ErrUserRejected = errors.New("user rejected the request")
	// ErrBalanceQuery — не удалось получить баланс. Не фатальна: баланс сбрасывается в 0.
	ErrBalanceQuery = errors.New("balance query failed")
	// ErrPriceUnavailable — цена не получена; используется предыдущее значение.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrStaleBalance — ответ баланса устарел (аккаунт сменился) и отброшен.
	ErrStaleBalance = errors.New("stale balance response discarded")
)

// UserRejectedCode — код отказа пользователя по EIP-1193.
const UserRejectedCode = 4001

// Значения по умолчанию.
const (
	DefaultSymbol = "ETH"
	// DefaultExpectedChainID — Energi mainnet.
	DefaultExpectedChainID = "0x4e454152"
)

// Status — состояние подключения.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

// EventSource — источник уведомлений провайдера о смене аккаунтов и сети.
type EventSource interface {
	// OnAccountsChanged подписывает обработчик; возвращает функцию отписки.
	OnAccountsChanged(fn func(accounts []string)) (unsubscribe func())
	// OnChainChanged подписывает обработчик; возвращает функцию отписки.
	OnChainChanged(fn func(chainID string)) (unsubscribe func())
}

// Provider — кошелёк в стиле EIP-1193.
type Provider interface {
	EventSource

	// RequestAccounts запрашивает доступ к аккаунтам (eth_requestAccounts).
	RequestAccounts(ctx context.Context) ([]string, error)
	// ChainID возвращает id текущей сети в hex (eth_chainId).
	ChainID(ctx context.Context) (string, error)
	// Balance возвращает баланс адреса в wei.
	Balance(ctx context.Context, address string) (*big.Int, error)
}

// PriceSource — источник цены единицы актива в USD.
type PriceSource interface {
	UnitPrice(ctx context.Context, symbol string) (float64, error)
}

// coder — ошибка с кодом JSON-RPC/EIP-1193.
type coder interface {
	ErrorCode() int
}

// IsUserRejection сообщает, означает ли err отказ пользователя.
func IsUserRejection(err error) bool {
	if errors.Is(err, ErrUserRejected) {
		return true
	}

	var c coder
	return errors.As(err, &c) && c.ErrorCode() == UserRejectedCode
}

// Connector — Wallet Connector. Создаётся один раз на процесс.
type Connector struct {
	provider Provider
	prices   PriceSource
	events   EventSource
	symbol   string
	expected string
	metrics  *metrics.Metrics

	// base отменяется в Close; на нём работают фоновые синхронизации.
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// opMu сериализует переходы между аккаунтами.
	opMu sync.Mutex

	mu           sync.RWMutex
	status       Status
	account      string
	epoch        uint64
	balance      float64
	balanceKnown bool
	price        *float64
	usdValue     float64
	chainID      string
	unsubs       []func()
}

type Option func(*Connector)

// WithSymbol задаёт символ нативного актива для цены.
func WithSymbol(symbol string) Option {
	return func(c *Connector) {
		if symbol != "" {
			c.symbol = symbol
		}
	}
}

// WithExpectedChain задаёт ожидаемую сеть (hex chain id).
func WithExpectedChain(chainID string) Option {
	return func(c *Connector) {
		if chainID != "" {
			c.expected = chainID
		}
	}
}

// WithEvents задаёт источник уведомлений, если он отличается от провайдера
// (например, хаб событий при работе без провайдера).
func WithEvents(src EventSource) Option {
	return func(c *Connector) {
		c.events = src
	}
}

// WithMetrics подключает метрики.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Connector) {
		c.metrics = m
	}
}

// New создаёт Connector. provider == nil означает, что кошелька нет.
//
// Коннектор подписывается на уведомления сразу и держит подписку до Close:
// внешняя смена аккаунта подключает кошелёк и без явного Connect.
// Источник уведомлений — WithEvents, иначе сам провайдер.
func New(provider Provider, prices PriceSource, opts ...Option) *Connector {
	base, cancel := context.WithCancel(context.Background())

	c := &Connector{
		provider: provider,
		prices:   prices,
		symbol:   DefaultSymbol,
		expected: DefaultExpectedChainID,
		base:     base,
		cancel:   cancel,
		status:   StatusDisconnected,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.events == nil && provider != nil {
		c.events = provider
	}

	c.metrics.SetWalletConnected(false)
	c.subscribe()

	return c
}

// ExpectedChainID возвращает ожидаемую сеть.
func (c *Connector) ExpectedChainID() string { return c.expected }

// Close снимает подписки и дожидается фоновых синхронизаций.
func (c *Connector) Close() {
	c.opMu.Lock()
	c.releaseLocked()
	c.opMu.Unlock()

	c.cancel()
	c.wg.Wait()
}

// subscribe подписывает коннектор на источник уведомлений.
func (c *Connector) subscribe() {
	if c.events == nil {
		return
	}

	unAccounts := c.events.OnAccountsChanged(func(accounts []string) {
		c.OnAccountsChanged(c.base, accounts)
	})
	unChain := c.events.OnChainChanged(func(chainID string) {
		c.OnChainChanged(c.base, chainID)
	})

	c.mu.Lock()
	c.unsubs = append(c.unsubs, unAccounts, unChain)
	c.mu.Unlock()
}

// releaseLocked вызывает все функции отписки. Вызывается под opMu.
func (c *Connector) releaseLocked() {
	c.mu.Lock()
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()

	for _, un := range unsubs {
		if un != nil {
			un()
		}
	}
}

func sameChain(a, b string) bool {
	return a != "" && strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/pribylovaa/crypto-dashboard/internal/models"
	"github.com/pribylovaa/crypto-dashboard/internal/session"
)

// maxBodyBytes — предел тела входящего запроса.
const maxBodyBytes = 64 << 10

// Session — то, что нужно хендлерам от менеджера сессии.
type Session interface {
	Snapshot() session.Snapshot
	Login(ctx context.Context, email, password string) (*models.User, error)
	Register(ctx context.Context, email, password string) error
	RefreshToken(ctx context.Context) (string, error)
	Logout(ctx context.Context)
}

// Wallet — операции коннектора кошелька.
type Wallet interface {
	State() models.WalletState
	Connect(ctx context.Context) (string, error)
	Disconnect(ctx context.Context)
	OnAccountsChanged(ctx context.Context, accounts []string)
	OnChainChanged(ctx context.Context, chainID string)
	RefreshChain(ctx context.Context) (string, error)
	Sync(ctx context.Context) models.WalletState
}

// EventSink принимает события провайдера, пришедшие от UI,
// и рассылает их подписчикам. Если sink не задан, события
// передаются коннектору напрямую.
type EventSink interface {
	EmitAccountsChanged(accounts []string)
	EmitChainChanged(chainID string)
}

// Market — рыночные данные.
type Market interface {
	Markets(ctx context.Context, page, perPage int) (*models.MarketPage, error)
	UnitPrice(ctx context.Context, symbol string) (float64, error)
	ExchangeRate(ctx context.Context, base, target string) (*models.ExchangeRate, error)
}

// News — лента новостей.
type News interface {
	Page(ctx context.Context, page int) *models.NewsPage
}

// Deps — зависимости хендлеров. Nil-поля допустимы только
// для Events.
type Deps struct {
	Session Session
	Wallet  Wallet
	Events  EventSink
	Market  Market
	News    News
}

// Handlers агрегирует зависимости.
type Handlers struct {
	deps Deps
}

func New(deps Deps) *Handlers {
	return &Handlers{deps: deps}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
// Пустое тело для необязательных payload'ов не ошибка.
func decodeStrict(w http.ResponseWriter, r *http.Request, value any, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	err := dec.Decode(value)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}

	return err
}

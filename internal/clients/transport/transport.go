// transport предоставляет цепочку http.RoundTripper для исходящих вызовов
// к внешним сервисам (аутентификация, рыночные данные, новости, JSON-RPC).
//
// Цепочка (внешний -> внутренний): metadata -> timeout -> logging -> metrics.
package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/pribylovaa/crypto-dashboard/internal/metrics"
)

type CtxKey string

// CtxRequestID — ключ request id во входящем контексте (кладёт HTTP middleware).
const CtxRequestID CtxKey = "request_id"

// WithRequestID кладёт request id в контекст.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CtxRequestID, id)
}

// RequestIDFrom достаёт request id из контекста.
func RequestIDFrom(ctx context.Context) string {
	if v := ctx.Value(CtxRequestID); v != nil {
		if rid, _ := v.(string); rid != "" {
			return rid
		}
	}

	return ""
}

// RoundTripperFunc — адаптер функции к http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// Middleware оборачивает RoundTripper.
type Middleware func(http.RoundTripper) http.RoundTripper

// Chain применяет мидлвары к base в порядке перечисления (первый — внешний).
func Chain(base http.RoundTripper, mws ...Middleware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}

	for i := len(mws) - 1; i >= 0; i-- {
		base = mws[i](base)
	}

	return base
}

// Options — параметры клиента для одного апстрима.
type Options struct {
	// Upstream — короткое имя апстрима для логов и метрик ("auth", "market").
	Upstream string
	// UserAgent — значение заголовка User-Agent.
	UserAgent string
	// Timeout — дедлайн запроса, если у контекста его нет.
	Timeout time.Duration
	// Metrics — может быть nil.
	Metrics *metrics.Metrics
	// Base — нижележащий транспорт; nil — http.DefaultTransport.
	Base http.RoundTripper
}

// NewClient собирает *http.Client с полной цепочкой.
func NewClient(opts Options) *http.Client {
	return &http.Client{
		Transport: Chain(opts.Base,
			WithMetadata(opts.UserAgent),
			WithTimeout(opts.Timeout),
			WithLogging(opts.Upstream),
			WithMetrics(opts.Metrics, opts.Upstream),
		),
	}
}

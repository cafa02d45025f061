package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/crypto-dashboard/internal/guard"
	"github.com/pribylovaa/crypto-dashboard/internal/http/handlers"
	"github.com/pribylovaa/crypto-dashboard/internal/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger  *slog.Logger
	Timeout time.Duration
	// LoginPath — куда guard отправляет неаутентифицированных; по умолчанию "/login".
	LoginPath string
	// Ready сообщает, завершилась ли проверка сессии при старте (для /healthz).
	Ready func() bool
	// Metrics — обработчик /metrics; nil — эндпойнт не регистрируется.
	Metrics http.Handler
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(deps handlers.Deps, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),            // безопасно ловим паники
		middleware.RequestID(),          // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger), // кладём request-scoped логгер в контекст и логируем
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout)) // общий дедлайн запроса
	}

	loginPath := opts.LoginPath
	if loginPath == "" {
		loginPath = guard.DefaultLoginPath
	}

	root.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	root.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if opts.Ready != nil && !opts.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	if opts.Metrics != nil {
		root.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	h := handlers.New(deps)
	root.Route("/api", func(r chi.Router) {
		registerRoutes(r, h, guard.Middleware(deps.Session, loginPath))
	})

	return root
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers, protect func(http.Handler) http.Handler) {
	// session
	r.Get("/session", h.GetSession)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/register", h.Register)
	r.Post("/auth/refresh", h.Refresh)
	r.Post("/auth/logout", h.Logout)

	// wallet (только для аутентифицированных)
	r.Group(func(r chi.Router) {
		r.Use(protect)

		r.Get("/wallet", h.GetWallet)
		r.Post("/wallet/connect", h.ConnectWallet)
		r.Post("/wallet/disconnect", h.DisconnectWallet)
		r.Post("/wallet/events/accounts", h.AccountsChanged)
		r.Post("/wallet/events/chain", h.ChainChanged)
		r.Post("/wallet/sync", h.SyncWallet)
	})

	// market
	r.Get("/markets", h.ListMarkets)
	r.Get("/price/{symbol}", h.GetPrice)
	r.Get("/rates", h.GetRate)

	// news
	r.Get("/news", h.ListNews)
}

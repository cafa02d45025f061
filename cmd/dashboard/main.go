package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pribylovaa/crypto-dashboard/internal/clients/authapi"
	"github.com/pribylovaa/crypto-dashboard/internal/clients/market"
	"github.com/pribylovaa/crypto-dashboard/internal/clients/news"
	"github.com/pribylovaa/crypto-dashboard/internal/clients/transport"
	"github.com/pribylovaa/crypto-dashboard/internal/config"
	dashhttp "github.com/pribylovaa/crypto-dashboard/internal/http"
	"github.com/pribylovaa/crypto-dashboard/internal/http/handlers"
	"github.com/pribylovaa/crypto-dashboard/internal/metrics"
	"github.com/pribylovaa/crypto-dashboard/internal/models"
	"github.com/pribylovaa/crypto-dashboard/internal/pkg/log"
	"github.com/pribylovaa/crypto-dashboard/internal/session"
	"github.com/pribylovaa/crypto-dashboard/internal/storage"
	filestore "github.com/pribylovaa/crypto-dashboard/internal/storage/file"
	"github.com/pribylovaa/crypto-dashboard/internal/storage/memory"
	pgstore "github.com/pribylovaa/crypto-dashboard/internal/storage/postgres"
	redisstore "github.com/pribylovaa/crypto-dashboard/internal/storage/redis"
	"github.com/pribylovaa/crypto-dashboard/internal/wallet"
	"github.com/pribylovaa/crypto-dashboard/internal/wallet/ethrpc"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

const userAgent = "crypto-dashboard/1.0"

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	logger := setupLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("starting crypto-dashboard", "env", cfg.Env)

	// Ресурсы закрываются defer'ами внутри run.
	if err := run(cfg, logger); err != nil {
		os.Exit(1)
	}

	logger.Info("service_stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()
	rootCtx = log.Into(rootCtx, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mt := metrics.New(reg)

	store, err := openStore(rootCtx, cfg.Store)
	if err != nil {
		logger.Error("store_init_failed", slog.String("driver", cfg.Store.Driver), slog.String("err", err.Error()))
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Warn("store_close_failed", slog.String("err", cerr.Error()))
		}
	}()
	logger.Info("store_initialized", slog.String("driver", cfg.Store.Driver))

	httpClient := func(upstream string) *http.Client {
		return transport.NewClient(transport.Options{
			Upstream:  upstream,
			UserAgent: userAgent,
			Timeout:   cfg.Timeouts.Upstream,
			Metrics:   mt,
		})
	}

	authClient := authapi.New(cfg.Auth.BaseURL, authapi.Paths{
		Login:    cfg.Auth.LoginPath,
		Register: cfg.Auth.RegisterPath,
		Refresh:  cfg.Auth.RefreshPath,
	}, httpClient("auth"))

	marketClient := market.New(market.Config{
		BaseURL:  cfg.Market.BaseURL,
		PriceURL: cfg.Market.PriceURL,
		RateURL:  cfg.Market.RateURL,
		Currency: cfg.Market.Currency,
		PerPage:  cfg.Market.PerPage,
	}, httpClient("market"))

	newsOpts := []news.Option{news.WithPageSize(cfg.News.PageSize)}
	if cfg.News.FallbackFile != "" {
		items, err := loadFallback(cfg.News.FallbackFile)
		if err != nil {
			logger.Warn("news_fallback_load_failed", slog.String("path", cfg.News.FallbackFile), slog.String("err", err.Error()))
		} else {
			newsOpts = append(newsOpts, news.WithFallback(items))
		}
	}
	newsClient := news.New(cfg.News.URL, httpClient("news"), newsOpts...)

	sess := session.New(store, authClient, session.WithMetrics(mt))
	go sess.Initialize(rootCtx)

	// Без RPC-эндпойнта провайдера нет: Connect отвечает ErrProviderUnavailable,
	// но уведомления от UI идут через такой же хаб, как и с провайдером.
	var (
		provider wallet.Provider
		events   = ethrpc.NewHub()
	)
	if cfg.Wallet.RPCURL != "" {
		p, err := ethrpc.Dial(rootCtx, cfg.Wallet.RPCURL, httpClient("wallet"))
		if err != nil {
			logger.Error("wallet_dial_failed", slog.String("err", err.Error()))
			return err
		}
		defer p.Close()

		provider, events = p, p.Hub
		logger.Info("wallet_provider_ready")
	} else {
		logger.Warn("wallet_provider_missing")
	}

	connector := wallet.New(provider, marketClient,
		wallet.WithEvents(events),
		wallet.WithSymbol(cfg.Wallet.Symbol),
		wallet.WithExpectedChain(cfg.Wallet.ExpectedChainID),
		wallet.WithMetrics(mt),
	)
	defer connector.Close()

	apiHandler := dashhttp.NewRouter(handlers.Deps{
		Session: sess,
		Wallet:  connector,
		Events:  events,
		Market:  marketClient,
		News:    newsClient,
	}, dashhttp.Options{
		Logger:    logger,
		Timeout:   cfg.Timeouts.Service,
		LoginPath: cfg.Guard.LoginPath,
		Ready:     func() bool { return isClosed(sess.Ready()) },
		Metrics:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	httpAddr := cfg.HTTP.Addr()
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           apiHandler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return rootCtx },
	}

	ln, err := net.Listen("tcp", httpAddr)
	if err != nil {
		logger.Error("http_listen_failed", slog.String("addr", httpAddr), slog.String("err", err.Error()))
		return err
	}

	logger.Info("http_listen_start", slog.String("addr", httpAddr))

	serveErrCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	var serveErr error
	select {
	case <-rootCtx.Done():
		logger.Info("shutdown_requested")
	case serveErr = <-serveErrCh:
		if serveErr != nil {
			logger.Error("http_serve_failed", slog.String("err", serveErr.Error()))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http_shutdown_incomplete", slog.String("err", err.Error()))
	} else {
		logger.Info("http_stopped")
	}

	return serveErr
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

// openStore выбирает хранилище токенов по драйверу.
func openStore(ctx context.Context, cfg config.StoreConfig) (storage.TokenStore, error) {
	switch cfg.Driver {
	case config.StoreMemory:
		return memory.New(), nil
	case config.StoreFile:
		return filestore.New(cfg.Path, cfg.SecretKey)
	case config.StoreRedis:
		return redisstore.New(ctx, cfg.RedisURL, cfg.KeyPrefix)
	case config.StorePostgres:
		return pgstore.New(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func loadFallback(path string) ([]models.Article, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var items []models.Article
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}

	return items, nil
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// config - источник загрузки конфигурации дашборда.
//
// Источники (по убыванию приоритета):
//  1. явный путь --config;
//  2. CONFIG_PATH;
//  3. ./local.yaml;
//  4. только ENV (cleanenv).
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Драйверы хранилища токенов.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

type Config struct {
	Env      string        `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig    `yaml:"http"`
	Auth     AuthConfig    `yaml:"auth"`
	Wallet   WalletConfig  `yaml:"wallet"`
	Market   MarketConfig  `yaml:"market"`
	News     NewsConfig    `yaml:"news"`
	Store    StoreConfig   `yaml:"store"`
	Guard    GuardConfig   `yaml:"guard"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
}

// TimeoutConfig — таймауты сервиса.
type TimeoutConfig struct {
	// Service — дедлайн входящего HTTP-запроса.
	Service time.Duration `yaml:"service" env:"SERVICE" env-default:"15s"`
	// Upstream — дедлайн одного исходящего запроса.
	Upstream time.Duration `yaml:"upstream" env:"UPSTREAM_TIMEOUT" env-default:"10s"`
	// Shutdown — время на корректную остановку.
	Shutdown time.Duration `yaml:"shutdown" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// HTTPConfig — HTTP API дашборда.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

func (h HTTPConfig) Addr() string { return net.JoinHostPort(h.Host, h.Port) }

// AuthConfig — внешний сервис аутентификации.
type AuthConfig struct {
	BaseURL      string `yaml:"base_url"      env:"AUTH_BASE_URL"      env-default:"http://localhost:8000/api/"`
	LoginPath    string `yaml:"login_path"    env:"AUTH_LOGIN_PATH"    env-default:"login/"`
	RegisterPath string `yaml:"register_path" env:"AUTH_REGISTER_PATH" env-default:"register/"`
	RefreshPath  string `yaml:"refresh_path"  env:"AUTH_REFRESH_PATH"  env-default:"refresh/"`
}

// WalletConfig — провайдер кошелька.
type WalletConfig struct {
	// RPCURL — JSON-RPC эндпойнт; пустой — кошелька нет.
	RPCURL          string `yaml:"rpc_url"           env:"WALLET_RPC_URL"`
	ExpectedChainID string `yaml:"expected_chain_id" env:"WALLET_EXPECTED_CHAIN_ID" env-default:"0x4e454152"`
	Symbol          string `yaml:"symbol"            env:"WALLET_SYMBOL"            env-default:"ETH"`
}

// MarketConfig — апстримы рыночных данных.
type MarketConfig struct {
	BaseURL string `yaml:"base_url" env:"MARKET_BASE_URL" env-default:"https://api.coingecko.com/api/v3"`
	// PriceURL — прайс-лист {symbol, price_usd}; пустой — цена берётся из листинга.
	PriceURL string `yaml:"price_url" env:"MARKET_PRICE_URL"`
	RateURL  string `yaml:"rate_url"  env:"MARKET_RATE_URL"  env-default:"https://api.exchangerate.host"`
	Currency string `yaml:"currency"  env:"MARKET_CURRENCY"  env-default:"usd"`
	PerPage  int    `yaml:"per_page"  env:"MARKET_PER_PAGE"  env-default:"100"`
}

// NewsConfig — лента новостей.
type NewsConfig struct {
	URL      string `yaml:"url"       env:"NEWS_URL"       env-default:"https://min-api.cryptocompare.com/data/v2/news/?lang=EN"`
	PageSize int    `yaml:"page_size" env:"NEWS_PAGE_SIZE" env-default:"9"`
	// FallbackFile — JSON-массив статей на случай недоступности ленты.
	FallbackFile string `yaml:"fallback_file" env:"NEWS_FALLBACK_FILE"`
}

// StoreConfig — хранилище токенов сессии.
type StoreConfig struct {
	Driver string `yaml:"driver" env:"STORE_DRIVER" env-default:"memory"`
	// Path и SecretKey — для драйвера file; пустой SecretKey — без шифрования.
	Path      string `yaml:"path"       env:"STORE_PATH"`
	SecretKey string `yaml:"secret_key" env:"STORE_SECRET_KEY"`
	RedisURL  string `yaml:"redis_url"  env:"REDIS_URL"`
	KeyPrefix string `yaml:"key_prefix" env:"STORE_KEY_PREFIX" env-default:"dashboard:session:"`
	// DatabaseURL — DSN для драйвера postgres.
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
}

// GuardConfig — Route Guard.
type GuardConfig struct {
	LoginPath string `yaml:"login_path" env:"GUARD_LOGIN_PATH" env-default:"/login"`
}

// MustLoad — паника при ошибке загрузки.
func MustLoad(path string) *Config {
	cfg, err := Load(path)

	if err != nil {
		panic(err)
	}

	return cfg
}

func Load(path string) (*Config, error) {
	var cfg Config

	readFile := func(p string) (*Config, error) {
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return validated(&cfg)
	}

	tryRead := func(p string) (*Config, error) {
		if p == "" {
			return nil, fmt.Errorf("empty config path")
		}

		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		return readFile(p)
	}

	// 1) --config
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml
	if _, err := os.Stat("local.yaml"); err == nil {
		return readFile("local.yaml")
	}

	// 4) только ENV
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	return validated(&cfg)
}

func validated(cfg *Config) (*Config, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет согласованность секций.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case StoreMemory:
	case StoreFile:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for driver file"))
		}
	case StoreRedis:
		if c.Store.RedisURL == "" {
			errs = append(errs, errors.New("store.redis_url is required for driver redis"))
		}
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("store.database_url is required for driver postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}

	if c.Auth.BaseURL == "" {
		errs = append(errs, errors.New("auth.base_url is required"))
	}

	if c.News.PageSize <= 0 {
		errs = append(errs, errors.New("news.page_size must be positive"))
	}

	if c.Market.PerPage <= 0 {
		errs = append(errs, errors.New("market.per_page must be positive"))
	}

	if c.Timeouts.Shutdown <= 0 {
		errs = append(errs, errors.New("timeouts.shutdown must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}

	return nil
}

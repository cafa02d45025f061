// market — клиент рыночных данных: листинг монет (CoinGecko coins/markets),
// цена единицы актива из прайс-листа и курс обмена валют.
//
// Повторов нет: ошибка апстрима сразу видна вызывающему.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pribylovaa/crypto-dashboard/internal/models"
	"github.com/pribylovaa/crypto-dashboard/internal/pkg/log"
)

var (
	// ErrUpstream — апстрим недоступен, вернул не-2xx или неразборчивое тело.
	ErrUpstream = errors.New("market data unavailable")
	// ErrAssetNotFound — актива/валюты нет в ответе апстрима.
	ErrAssetNotFound = errors.New("asset not found")
	// ErrInvalidArgument — некорректные параметры запроса.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Значения по умолчанию.
const (
	DefaultPerPage  = 100
	MaxPerPage      = 250
	DefaultCurrency = "usd"
)

// Config — адреса апстримов.
type Config struct {
	// BaseURL — корень CoinGecko-совместимого API (без /coins/markets).
	BaseURL string
	// PriceURL — прайс-лист активов: JSON-массив объектов {symbol, price_usd}.
	PriceURL string
	// RateURL — корень API курсов валют (без /latest).
	RateURL string
	// Currency — vs_currency для листинга.
	Currency string
	// PerPage — размер страницы по умолчанию.
	PerPage int
}

type Client struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}

	if cfg.Currency == "" {
		cfg.Currency = DefaultCurrency
	}

	if cfg.PerPage <= 0 {
		cfg.PerPage = DefaultPerPage
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.RateURL = strings.TrimRight(cfg.RateURL, "/")

	return &Client{cfg: cfg, client: client}
}

// Markets возвращает страницу листинга монет.
//
// Нормализация:
// - page < 1 -> 1;
// - perPage <= 0 -> Config.PerPage;
// - perPage > MaxPerPage -> MaxPerPage.
func (c *Client) Markets(ctx context.Context, page, perPage int) (*models.MarketPage, error) {
	const op = "market.client.Markets"

	if page < 1 {
		page = 1
	}

	if perPage <= 0 {
		perPage = c.cfg.PerPage
	}

	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	q := url.Values{}
	q.Set("vs_currency", c.cfg.Currency)
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", strconv.Itoa(page))
	q.Set("sparkline", "false")

	var coins []models.Coin
	if err := c.getJSON(ctx, c.cfg.BaseURL+"/coins/markets?"+q.Encode(), &coins); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if coins == nil {
		coins = []models.Coin{}
	}

	return &models.MarketPage{Page: page, PerPage: perPage, Items: coins}, nil
}

// asset — элемент прайс-листа. price_usd приходит строкой или числом.
type asset struct {
	Symbol   string     `json:"symbol"`
	PriceUSD flexNumber `json:"price_usd"`
}

type flexNumber float64

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}

	*f = flexNumber(v)
	return nil
}

// UnitPrice возвращает цену одной единицы актива в USD.
// Поиск по symbol без учёта регистра; первое совпадение.
// Реализует wallet.PriceSource.
func (c *Client) UnitPrice(ctx context.Context, symbol string) (float64, error) {
	const op = "market.client.UnitPrice"

	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return 0, fmt.Errorf("%s: %w: empty symbol", op, ErrInvalidArgument)
	}

	list, err := c.priceList(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	for _, a := range list {
		if strings.EqualFold(a.Symbol, symbol) {
			return float64(a.PriceUSD), nil
		}
	}

	log.From(ctx).Warn("market_asset_not_found",
		slog.String("op", op),
		slog.String("symbol", symbol),
		slog.Int("listed", len(list)),
	)

	return 0, fmt.Errorf("%s: %w: %s", op, ErrAssetNotFound, symbol)
}

// priceList загружает прайс-лист. Без PriceURL используется первая
// страница листинга максимального размера (current_price).
func (c *Client) priceList(ctx context.Context) ([]asset, error) {
	if c.cfg.PriceURL != "" {
		var list []asset
		if err := c.getJSON(ctx, c.cfg.PriceURL, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	page, err := c.Markets(ctx, 1, MaxPerPage)
	if err != nil {
		return nil, err
	}

	list := make([]asset, 0, len(page.Items))
	for _, coin := range page.Items {
		list = append(list, asset{Symbol: coin.Symbol, PriceUSD: flexNumber(coin.CurrentPrice)})
	}

	return list, nil
}

type ratesResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// ExchangeRate возвращает курс base -> target.
func (c *Client) ExchangeRate(ctx context.Context, base, target string) (*models.ExchangeRate, error) {
	const op = "market.client.ExchangeRate"

	base = strings.ToUpper(strings.TrimSpace(base))
	target = strings.ToUpper(strings.TrimSpace(target))
	if base == "" || target == "" {
		return nil, fmt.Errorf("%s: %w: base and target are required", op, ErrInvalidArgument)
	}

	q := url.Values{}
	q.Set("base", base)
	q.Set("symbols", target)

	var data ratesResponse
	if err := c.getJSON(ctx, c.cfg.RateURL+"/latest?"+q.Encode(), &data); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rate, ok := data.Rates[target]
	if !ok {
		return nil, fmt.Errorf("%s: %w: %s", op, ErrAssetNotFound, target)
	}

	return &models.ExchangeRate{Base: base, Target: target, Rate: rate}, nil
}

// getJSON выполняет GET и декодирует 2xx-ответ в out.
func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("new_request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: status=%d", ErrUpstream, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUpstream, err)
	}

	return nil
}

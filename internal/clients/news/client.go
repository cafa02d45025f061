// news — клиент ленты криптоновостей (формат CryptoCompare: {"Data": [...]}).
//
// При недоступности апстрима Page отдаёт резервный список и помечает
// страницу флагом Fallback.
package news

import (
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
)

// ErrUpstream — лента недоступна или вернула неразборчивый ответ.
var ErrUpstream = errors.New("news feed unavailable")

// DefaultPageSize — статей на странице.
const DefaultPageSize = 9

type Client struct {
	url      string
	pageSize int
	fallback []models.Article
	client   *http.Client
}

type Option func(*Client)

// WithPageSize задаёт размер страницы; <= 0 игнорируется.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithFallback задаёт резервный список статей.
func WithFallback(items []models.Article) Option {
	return func(c *Client) {
		c.fallback = append([]models.Article(nil), items...)
	}
}

func New(url string, client *http.Client, opts ...Option) *Client {
	if client == nil {
		client = http.DefaultClient
	}

	c := &Client{url: url, pageSize: DefaultPageSize, client: client}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

type feed struct {
	Data []item `json:"Data"`
}

type item struct {
	ID          json.RawMessage `json:"id"`
	Title       string          `json:"title"`
	Body        string          `json:"body"`
	URL         string          `json:"url"`
	ImageURL    string          `json:"imageurl"`
	Source      string          `json:"source"`
	PublishedOn int64           `json:"published_on"`
}

// rawID приводит id (строка или число) к строке.
func rawID(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "null" {
		return ""
	}

	return strings.Trim(s, `"`)
}

// Articles загружает ленту целиком. Статьи без заголовка или ссылки пропускаются.
func (c *Client) Articles(ctx context.Context) ([]models.Article, error) {
	const op = "news.client.Articles"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: new_request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%s: %w: status=%d", op, ErrUpstream, resp.StatusCode)
	}

	var doc feed
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: %w: decode: %v", op, ErrUpstream, err)
	}

	output := make([]models.Article, 0, len(doc.Data))
	for _, it := range doc.Data {
		title := strings.TrimSpace(it.Title)
		link := strings.TrimSpace(it.URL)
		if title == "" || link == "" {
			continue
		}

		output = append(output, models.Article{
			ID:          rawID(it.ID),
			Title:       title,
			Body:        strings.TrimSpace(it.Body),
			URL:         link,
			ImageURL:    it.ImageURL,
			Source:      it.Source,
			PublishedOn: it.PublishedOn,
		})
	}

	return output, nil
}

// Page возвращает 1-based страницу ленты.
//
// Особенности:
//   - page < 1 -> 1;
//   - страница за концом ленты — пустая, HasMore=false;
//   - ошибка апстрима поглощается: отдаётся резервный список, Fallback=true.
func (c *Client) Page(ctx context.Context, page int) *models.NewsPage {
	const op = "news.client.Page"

	if page < 1 {
		page = 1
	}

	items, err := c.Articles(ctx)
	fallback := false
	if err != nil {
		log.From(ctx).Warn("news_fallback",
			slog.String("op", op),
			slog.Int("fallback_items", len(c.fallback)),
			slog.String("err", err.Error()),
		)

		items = c.fallback
		fallback = true
	}

	return paginate(items, page, c.pageSize, fallback)
}

func paginate(items []models.Article, page, size int, fallback bool) *models.NewsPage {
	// Сравнение до умножения: (page-1)*size может переполнить int.
	start := len(items)
	if page-1 < len(items)/size+1 {
		start = min((page-1)*size, len(items))
	}

	end := start + size
	if end > len(items) {
		end = len(items)
	}

	out := make([]models.Article, end-start)
	copy(out, items[start:end])

	return &models.NewsPage{
		Page:     page,
		PageSize: size,
		Items:    out,
		HasMore:  end < len(items),
		Total:    len(items),
		Fallback: fallback,
	}
}

package transport

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/pribylovaa/crypto-dashboard/internal/metrics"
	"github.com/pribylovaa/crypto-dashboard/internal/pkg/log"
)

// WithLogging пишет одну запись уровня Info на каждый исходящий вызов:
// msg="http_out", upstream, method, host, path, status, dur, request_id.
// Логгер берётся из контекста запроса (pkg/log).
//
// Безопасность: не логирует тело, query и заголовки.
func WithLogging(upstream string) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()

			resp, err := next.RoundTrip(r)

			attrs := []slog.Attr{
				slog.String("upstream", upstream),
				slog.String("method", r.Method),
				slog.String("host", r.URL.Host),
				slog.String("path", r.URL.Path),
				slog.String("request_id", r.Header.Get("X-Request-Id")),
				slog.Duration("dur", time.Since(start)),
			}

			lg := log.From(r.Context())
			if err != nil {
				attrs = append(attrs, slog.String("err", err.Error()))
				lg.LogAttrs(r.Context(), slog.LevelWarn, "http_out", attrs...)
				return nil, err
			}

			attrs = append(attrs, slog.Int("status", resp.StatusCode))
			lg.LogAttrs(r.Context(), slog.LevelInfo, "http_out", attrs...)

			return resp, nil
		})
	}
}

// WithMetrics учитывает исходящий вызов в prometheus. m == nil — no-op.
func WithMetrics(m *metrics.Metrics, upstream string) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		if m == nil {
			return next
		}

		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()

			resp, err := next.RoundTrip(r)
			if err != nil {
				m.ObserveUpstream(upstream, "error", time.Since(start))
				return nil, err
			}

			m.ObserveUpstream(upstream, strconv.Itoa(resp.StatusCode), time.Since(start))
			return resp, nil
		})
	}
}

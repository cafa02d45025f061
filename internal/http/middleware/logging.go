package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/crypto-dashboard/internal/pkg/log"
)

// Logging кладёт request-scoped логгер (с request_id) в контекст
// и пишет одну запись "http" на запрос.
//
// Уровень по статусу: 5xx -> Error, 4xx -> Warn, прочее -> Info.
// Пробы (/livez, /healthz) и /metrics пишутся на Debug.
func Logging(l *slog.Logger) Middleware {
	if l == nil {
		l = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := l
			if rid := r.Header.Get("X-Request-Id"); rid != "" {
				reqLogger = reqLogger.With(slog.String("request_id", rid))
			}
			r = r.WithContext(log.Into(r.Context(), reqLogger))

			sw := newStatusWriter(w)
			start := time.Now()
			next.ServeHTTP(sw, r)
			dur := time.Since(start)

			status := sw.status
			if status == 0 {
				status = http.StatusOK
			}

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Duration("dur", dur),
				slog.Int("bytes", sw.count),
			}

			if rc := chi.RouteContext(r.Context()); rc != nil {
				if pattern := rc.RoutePattern(); pattern != "" {
					attrs = append(attrs, slog.String("route", pattern))
				}
			}

			log.From(r.Context()).LogAttrs(r.Context(), levelFor(r.URL.Path, status), "http", attrs...)
		})
	}
}

func levelFor(path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case path == "/livez" || path == "/healthz" || path == "/metrics":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

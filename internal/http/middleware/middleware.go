// Package middleware — входящие net/http мидлвары API дашборда.
// Порядок в роутере: Recover, RequestID, Logging, Timeout.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	apierrors "github.com/pribylovaa/crypto-dashboard/internal/errors"
)

// Middleware — стандартный net/http мидлвар.
type Middleware func(http.Handler) http.Handler

// Chain применяет мидлвары к обработчику: первый в списке — внешний.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Timeout навешивает deadline на запрос, если его ещё нет (d<=0 — no-op).
//
// Если обработчик вернулся по истёкшему дедлайну и ничего не записал,
// клиент получает 504 deadline_exceeded.
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := r.Context().Deadline(); ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r.WithContext(ctx))

			if sw.status == 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				apierrors.WriteError(sw, r, ctx.Err())
			}
		})
	}
}

// statusWriter запоминает первый статус и число записанных байт.
type statusWriter struct {
	http.ResponseWriter
	status int
	count  int
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w}
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}

	n, err := w.ResponseWriter.Write(p)
	w.count += n
	return n, err
}

// Unwrap нужен http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/pribylovaa/crypto-dashboard/internal/clients/transport"
)

// RequestID обеспечивает наличие X-Request-Id:
//  1. читает заголовок X-Request-Id, если есть;
//  2. иначе генерирует id из UUIDv4 без дефисов (32 hex-символа);
//  3. кладёт id в Response Header, Request Header и в контекст по ключу
//     transport.CtxRequestID (его читает metadata-RoundTripper исходящих вызовов).
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-Id")
			if id == "" {
				id = genID()
				r.Header.Set("X-Request-Id", id)
			}
			w.Header().Set("X-Request-Id", id)

			ctx := transport.WithRequestID(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func genID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// guard — Route Guard: решает, что отдать на запрос защищённого ресурса,
// по снимку сессии.
//
// Пока первичная проверка сессии не завершена, guard не показывает ресурс
// и не перенаправляет: отвечает «загрузка». После проверки — ровно одно
// из двух: ресурс либо редирект на вход с исходным адресом в параметре from.
package guard

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/pribylovaa/crypto-dashboard/internal/pkg/log"
	"github.com/pribylovaa/crypto-dashboard/internal/session"
)

// DefaultLoginPath — точка входа по умолчанию.
const DefaultLoginPath = "/login"

// FromParam — параметр запроса с исходным адресом.
const FromParam = "from"

// Outcome — результат решения.
type Outcome int

const (
	Loading Outcome = iota
	Render
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Loading:
		return "loading"
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision — решение guard. To заполнен только для Redirect.
type Decision struct {
	Outcome Outcome
	To      string
}

// SnapshotSource — источник снимка сессии (session.Manager).
type SnapshotSource interface {
	Snapshot() session.Snapshot
}

// Decide принимает решение для запрошенного location.
func Decide(snap session.Snapshot, location, loginPath string) Decision {
	if !snap.AuthChecked {
		return Decision{Outcome: Loading}
	}

	if snap.User != nil {
		return Decision{Outcome: Render}
	}

	if loginPath == "" {
		loginPath = DefaultLoginPath
	}

	return Decision{
		Outcome: Redirect,
		To:      loginPath + "?" + FromParam + "=" + url.QueryEscape(location),
	}
}

// Middleware защищает next решением Decide.
//
// Ответы:
//   - Loading -> 503, Retry-After: 1, {"status":"loading"};
//   - Redirect -> 303 с Location, а для клиентов, ожидающих JSON, —
//     401 {"status":"unauthenticated","redirect_to":...};
//   - Render -> next.
func Middleware(src SnapshotSource, loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := Decide(src.Snapshot(), r.URL.RequestURI(), loginPath)

			switch d.Outcome {
			case Render:
				next.ServeHTTP(w, r)

			case Loading:
				w.Header().Set("Retry-After", "1")
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})

			default:
				log.From(r.Context()).Info("guard_redirect",
					slog.String("path", r.URL.Path),
					slog.String("to", d.To),
				)

				if wantsJSON(r) {
					writeJSON(w, http.StatusUnauthorized, map[string]string{
						"status":      "unauthenticated",
						"redirect_to": d.To,
					})
					return
				}

				http.Redirect(w, r, d.To, http.StatusSeeOther)
			}
		})
	}
}

// ReturnTo извлекает адрес возврата после входа из параметра from.
// Допускаются только локальные пути ("/..."); всё остальное — "/".
func ReturnTo(r *http.Request) string {
	return SanitizeReturnTo(r.URL.Query().Get(FromParam))
}

// SanitizeReturnTo оставляет только локальный путь.
func SanitizeReturnTo(from string) string {
	if from == "" || !strings.HasPrefix(from, "/") {
		return "/"
	}

	// "//host" и "/\host" браузеры трактуют как внешний адрес.
	if strings.HasPrefix(from, "//") || strings.HasPrefix(from, `/\`) {
		return "/"
	}

	u, err := url.Parse(from)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "/"
	}

	return from
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

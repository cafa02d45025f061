package guard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/crypto-dashboard/internal/models"
	"github.com/pribylovaa/crypto-dashboard/internal/session"
)

type staticSource session.Snapshot

func (s staticSource) Snapshot() session.Snapshot { return session.Snapshot(s) }

func TestDecide(t *testing.T) {
	t.Parallel()

	user := &models.User{Email: "a@b.com"}

	tests := []struct {
		name string
		snap session.Snapshot
		want Decision
	}{
		{
			name: "unchecked_without_user",
			snap: session.Snapshot{},
			want: Decision{Outcome: Loading},
		},
		{
			// Пользователь до завершения проверки не учитывается.
			name: "unchecked_with_user",
			snap: session.Snapshot{User: user},
			want: Decision{Outcome: Loading},
		},
		{
			name: "checked_with_user",
			snap: session.Snapshot{User: user, AuthChecked: true},
			want: Decision{Outcome: Render},
		},
		{
			name: "checked_anonymous",
			snap: session.Snapshot{AuthChecked: true},
			want: Decision{Outcome: Redirect, To: "/login?from=%2Fwallet%3Ftab%3D1"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Decide(tt.snap, "/wallet?tab=1", "/login"))
		})
	}
}

func TestDecide_DefaultLoginPath(t *testing.T) {
	t.Parallel()

	d := Decide(session.Snapshot{AuthChecked: true}, "/x", "")
	require.Equal(t, "/login?from=%2Fx", d.To)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("protected"))
	})

	t.Run("loading", func(t *testing.T) {
		t.Parallel()

		h := Middleware(staticSource{}, "/login")(next)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/wallet", nil))

		require.Equal(t, http.StatusServiceUnavailable, rr.Code)
		require.Equal(t, "1", rr.Header().Get("Retry-After"))
		require.Empty(t, rr.Header().Get("Location"))
		require.JSONEq(t, `{"status":"loading"}`, rr.Body.String())
	})

	t.Run("render", func(t *testing.T) {
		t.Parallel()

		src := staticSource{User: &models.User{}, AuthChecked: true}
		h := Middleware(src, "/login")(next)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/wallet", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		require.Equal(t, "protected", rr.Body.String())
	})

	t.Run("redirect", func(t *testing.T) {
		t.Parallel()

		h := Middleware(staticSource{AuthChecked: true}, "/login")(next)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/wallet", nil))

		require.Equal(t, http.StatusSeeOther, rr.Code)
		require.Equal(t, "/login?from=%2Fapi%2Fwallet", rr.Header().Get("Location"))
	})

	t.Run("redirect_json", func(t *testing.T) {
		t.Parallel()

		h := Middleware(staticSource{AuthChecked: true}, "/login")(next)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/wallet", nil)
		req.Header.Set("Accept", "application/json")
		h.ServeHTTP(rr, req)

		require.Equal(t, http.StatusUnauthorized, rr.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		require.Equal(t, "/login?from=%2Fapi%2Fwallet", body["redirect_to"])
	})
}

func TestSanitizeReturnTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"", "/"},
		{"/wallet", "/wallet"},
		{"/wallet?tab=1", "/wallet?tab=1"},
		{"//evil.com", "/"},
		{`/\evil.com`, "/"},
		{"https://evil.com/x", "/"},
		{"wallet", "/"},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, SanitizeReturnTo(tt.in), tt.in)
	}
}

func TestReturnTo(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodPost, "/api/auth/login?from=%2Fwallet", nil)
	require.Equal(t, "/wallet", ReturnTo(r))
}

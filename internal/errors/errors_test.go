package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/crypto-dashboard/internal/clients/authapi"
	"github.com/pribylovaa/crypto-dashboard/internal/clients/market"
	"github.com/pribylovaa/crypto-dashboard/internal/clients/news"
	"github.com/pribylovaa/crypto-dashboard/internal/session"
	"github.com/pribylovaa/crypto-dashboard/internal/wallet"
)

func wrap(err error) error { return fmt.Errorf("handler: %w", err) }

func TestToHTTP_Mapping(t *testing.T) {
	tcs := []struct {
		name       string
		in         error
		wantStatus int
		wantCode   string
	}{
		{"auth_failure", wrap(&authapi.Error{Kind: authapi.ErrAuthFailure, Message: "Invalid credentials"}), http.StatusUnauthorized, "auth_failed"},
		{"auth_transport", wrap(&authapi.Error{Kind: authapi.ErrTransport, Message: "502 Bad Gateway"}), http.StatusBadGateway, "upstream_unavailable"},
		{"no_refresh", wrap(session.ErrNoRefreshToken), http.StatusUnauthorized, "session_expired"},
		{"refresh_rejected", wrap(fmt.Errorf("%w: %w", session.ErrRefreshRejected, &authapi.Error{Kind: authapi.ErrRejected})), http.StatusUnauthorized, "session_expired"},
		{"not_authenticated", wrap(session.ErrNotAuthenticated), http.StatusUnauthorized, "unauthenticated"},
		{"invalid_token", wrap(session.ErrInvalidToken), http.StatusBadGateway, "bad_gateway"},
		{"provider_unavailable", wrap(wallet.ErrProviderUnavailable), http.StatusServiceUnavailable, "provider_unavailable"},
		{"user_rejected", wrap(wallet.ErrUserRejected), http.StatusForbidden, "user_rejected"},
		{"invalid_argument", wrap(ErrInvalidArgument), http.StatusBadRequest, "invalid_argument"},
		{"market_invalid_argument", wrap(market.ErrInvalidArgument), http.StatusBadRequest, "invalid_argument"},
		{"asset_not_found", wrap(market.ErrAssetNotFound), http.StatusNotFound, "not_found"},
		{"market_upstream", wrap(market.ErrUpstream), http.StatusBadGateway, "upstream_unavailable"},
		{"news_upstream", wrap(news.ErrUpstream), http.StatusBadGateway, "upstream_unavailable"},
		{"deadline", wrap(context.DeadlineExceeded), http.StatusGatewayTimeout, "deadline_exceeded"},
		{"canceled", wrap(context.Canceled), StatusClientClosedRequest, "canceled"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			gotStatus, resp := ToHTTP(tc.in)
			require.Equal(t, tc.wantStatus, gotStatus)
			require.Equal(t, tc.wantCode, resp.Error.Code)
			require.NotEmpty(t, resp.Error.Message)
		})
	}
}

func TestToHTTP_AuthMessageSurfaced(t *testing.T) {
	_, resp := ToHTTP(wrap(&authapi.Error{Kind: authapi.ErrAuthFailure, Message: "Invalid credentials"}))
	require.Equal(t, "Invalid credentials", resp.Error.Message)
}

func TestToHTTP_InternalDetailsHidden(t *testing.T) {
	_, resp := ToHTTP(errors.New("pq: password authentication failed for user postgres"))
	require.Equal(t, "internal error", resp.Error.Message)
}

func TestToHTTP_NilError_Returns500Internal(t *testing.T) {
	gotStatus, resp := ToHTTP(nil)
	require.Equal(t, http.StatusInternalServerError, gotStatus)
	require.Equal(t, "internal", resp.Error.Code)
	require.Equal(t, "internal error", resp.Error.Message)
}

func TestWriteError_IncludesRequestID(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "rid-1")

	WriteError(rr, req, wallet.ErrUserRejected)

	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "user_rejected", body.Error.Code)
	require.Equal(t, "rid-1", body.Error.RequestID)
}

package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/crypto-dashboard/internal/pkg/log"
)

// capHandler — тестовый slog.Handler: запоминает последнюю запись и её attrs.
type capHandler struct {
	mu      sync.Mutex
	lastMsg string
	lastLvl slog.Level
	attrs   map[string]any
	count   map[string]int
}

func (h *capHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *capHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string]any, 8)
	r.Attrs(func(a slog.Attr) bool {
		out[a.Key] = a.Value.Any()
		return true
	})
	if h.count == nil {
		h.count = make(map[string]int)
	}
	h.count[r.Message]++
	h.lastMsg = r.Message
	h.lastLvl = r.Level
	h.attrs = out
	return nil
}

func (h *capHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *capHandler) WithGroup(string) slog.Handler      { return h }

// recorder — конечный RoundTripper, запоминающий запрос.
func recorder(seen **http.Request, status int) http.RoundTripper {
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		*seen = r
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(http.NoBody),
			Header:     http.Header{},
			Request:    r,
		}, nil
	})
}

func TestChain_Order(t *testing.T) {
	t.Parallel()

	var order []string
	mk := func(name string) Middleware {
		return func(next http.RoundTripper) http.RoundTripper {
			return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
				order = append(order, name)
				return next.RoundTrip(r)
			})
		}
	}

	var seen *http.Request
	rt := Chain(recorder(&seen, http.StatusOK), mk("m1"), mk("m2"))

	req := httptest.NewRequest(http.MethodGet, "http://upstream/x", nil)
	_, err := rt.RoundTrip(req)
	require.NoError(t, err)
	require.Equal(t, []string{"m1", "m2"}, order)
}

func TestWithMetadata_RequestIDFromContext(t *testing.T) {
	t.Parallel()

	var seen *http.Request
	rt := WithMetadata("crypto-dashboard")(recorder(&seen, http.StatusOK))

	req := httptest.NewRequest(http.MethodGet, "http://upstream/x", nil)
	req = req.WithContext(WithRequestID(req.Context(), "rid-123"))

	_, err := rt.RoundTrip(req)
	require.NoError(t, err)
	require.Equal(t, "rid-123", seen.Header.Get("X-Request-Id"))
	require.Equal(t, "crypto-dashboard", seen.Header.Get("User-Agent"))
	require.Empty(t, req.Header.Get("X-Request-Id"), "исходный запрос не модифицируется")
}

func TestWithMetadata_GeneratesUUID_AndKeepsCallerUA(t *testing.T) {
	t.Parallel()

	var seen *http.Request
	rt := WithMetadata("crypto-dashboard")(recorder(&seen, http.StatusOK))

	req := httptest.NewRequest(http.MethodGet, "http://upstream/x", nil)
	req.Header.Set("User-Agent", "custom")

	_, err := rt.RoundTrip(req)
	require.NoError(t, err)

	_, err = uuid.Parse(seen.Header.Get("X-Request-Id"))
	require.NoError(t, err)
	require.Equal(t, "custom", seen.Header.Get("User-Agent"))
}

func TestWithTimeout_SetsDeadline_AndBodyStillReadable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	var hasDL bool
	deadlineCheck := func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			_, hasDL = r.Context().Deadline()
			return next.RoundTrip(r)
		})
	}

	client := &http.Client{Transport: Chain(http.DefaultTransport, WithTimeout(time.Second), deadlineCheck)}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "payload", string(b))
	require.True(t, hasDL)
}

func TestWithTimeout_ZeroDuration_PassThrough(t *testing.T) {
	t.Parallel()

	var seen *http.Request
	rt := WithTimeout(0)(recorder(&seen, http.StatusOK))

	_, err := rt.RoundTrip(httptest.NewRequest(http.MethodGet, "http://upstream/x", nil))
	require.NoError(t, err)

	_, ok := seen.Context().Deadline()
	require.False(t, ok)
}

func TestWithTimeout_DoesNotOverrideExistingDeadline(t *testing.T) {
	t.Parallel()

	parent, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()
	parentDL, _ := parent.Deadline()

	var seen *http.Request
	rt := WithTimeout(time.Hour)(recorder(&seen, http.StatusOK))

	req := httptest.NewRequest(http.MethodGet, "http://upstream/x", nil).WithContext(parent)
	_, err := rt.RoundTrip(req)
	require.NoError(t, err)

	childDL, ok := seen.Context().Deadline()
	require.True(t, ok)
	require.WithinDuration(t, parentDL, childDL, time.Millisecond)
}

func TestWithLogging_LogsStatus(t *testing.T) {
	t.Parallel()

	h := &capHandler{}
	var seen *http.Request
	rt := WithLogging("market")(recorder(&seen, http.StatusTeapot))

	req := httptest.NewRequest(http.MethodGet, "http://upstream/coins", nil)
	req = req.WithContext(log.Into(req.Context(), slog.New(h)))

	_, err := rt.RoundTrip(req)
	require.NoError(t, err)

	require.Equal(t, "http_out", h.lastMsg)
	require.Equal(t, slog.LevelInfo, h.lastLvl)
	require.Equal(t, "market", h.attrs["upstream"])
	require.EqualValues(t, http.StatusTeapot, h.attrs["status"])
}

func TestWithLogging_TransportError_Warn(t *testing.T) {
	t.Parallel()

	h := &capHandler{}
	failing := RoundTripperFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("dial failed")
	})
	rt := WithLogging("auth")(failing)

	req := httptest.NewRequest(http.MethodPost, "http://upstream/login/", nil)
	req = req.WithContext(log.Into(req.Context(), slog.New(h)))

	_, err := rt.RoundTrip(req)
	require.Error(t, err)
	require.Equal(t, slog.LevelWarn, h.lastLvl)
	require.Equal(t, "dial failed", h.attrs["err"])
}

package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pribylovaa/crypto-dashboard/internal/storage"
)

// Интеграционные тесты поднимают Redis через testcontainers-go.
//
// Запуск локально:
//   GO_TEST_INTEGRATION=1 go test ./internal/storage/redis -v -count=1

func startRedis(t *testing.T) (*Storage, func()) {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)

	host, _ := c.Host(ctx)
	port, _ := c.MappedPort(ctx, "6379/tcp")

	st, err := New(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()), "test:")
	require.NoError(t, err)

	cleanup := func() {
		_ = st.Close()
		_ = c.Terminate(context.Background())
	}
	return st, cleanup
}

func TestIntegration_SetGetDelete(t *testing.T) {
	st, cleanup := startRedis(t)
	defer cleanup()

	ctx := context.Background()

	_, err := st.Get(ctx, "access")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, st.Set(ctx, "access", "a1"))
	require.NoError(t, st.Set(ctx, "refresh", "r1"))

	v, err := st.Get(ctx, "access")
	require.NoError(t, err)
	require.Equal(t, "a1", v)

	raw, err := st.rdb.Get(ctx, "test:refresh").Result()
	require.NoError(t, err)
	require.Equal(t, "r1", raw)

	require.NoError(t, st.Delete(ctx, "access", "refresh"))

	_, err = st.Get(ctx, "refresh")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestNew_BadURL(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), "not-a-url", "")
	require.Error(t, err)
}

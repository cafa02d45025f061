package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/crypto-dashboard/internal/storage"
)

// Тесты уменьшают стоимость scrypt, поэтому t.Parallel() не используется.
func init() {
	scryptN = 1 << 10
}

func TestStorage_Plain_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.json")

	st, err := New(path, "")
	require.NoError(t, err)

	_, err = st.Get(ctx, "access")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, st.Set(ctx, "access", "a1"))
	require.NoError(t, st.Set(ctx, "refresh", "r1"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened, err := New(path, "")
	require.NoError(t, err)

	v, err := reopened.Get(ctx, "refresh")
	require.NoError(t, err)
	require.Equal(t, "r1", v)

	require.NoError(t, reopened.Delete(ctx, "access", "refresh"))

	again, err := New(path, "")
	require.NoError(t, err)
	_, err = again.Get(ctx, "access")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStorage_Sealed_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.json")

	st, err := New(path, "s3cret")
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, "access", "very-secret-access"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.False(t, strings.Contains(string(raw), "very-secret-access"))

	reopened, err := New(path, "s3cret")
	require.NoError(t, err)

	v, err := reopened.Get(ctx, "access")
	require.NoError(t, err)
	require.Equal(t, "very-secret-access", v)
}

func TestStorage_Sealed_WrongSecret(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.json")

	st, err := New(path, "right")
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, "access", "x"))

	_, err = New(path, "wrong")
	require.ErrorIs(t, err, storage.ErrCorrupted)

	_, err = New(path, "")
	require.ErrorIs(t, err, storage.ErrCorrupted)
}

func TestNew_Errors(t *testing.T) {
	_, err := New("", "")
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err = New(path, "")
	require.ErrorIs(t, err, storage.ErrCorrupted)
}

func TestStorage_FlushFailure_KeepsMemoryInSync(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.json")

	st, err := New(path, "")
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, "access", "a1"))
	require.NoError(t, st.Set(ctx, "refresh", "r1"))

	// Каталог на месте файла: rename в flush завершится ошибкой.
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Mkdir(path, 0o700))

	require.Error(t, st.Delete(ctx, "access", "refresh", "missing"))

	v, err := st.Get(ctx, "access")
	require.NoError(t, err)
	require.Equal(t, "a1", v)

	v, err = st.Get(ctx, "refresh")
	require.NoError(t, err)
	require.Equal(t, "r1", v)

	_, err = st.Get(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.Error(t, st.Set(ctx, "access", "a2"))
	v, err = st.Get(ctx, "access")
	require.NoError(t, err)
	require.Equal(t, "a1", v)
}

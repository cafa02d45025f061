package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/crypto-dashboard/internal/storage"
)

func TestStorage_SetGetDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := New()

	_, err := st.Get(ctx, "access")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, st.Set(ctx, "access", "a1"))
	require.NoError(t, st.Set(ctx, "refresh", "r1"))
	require.NoError(t, st.Set(ctx, "access", "a2"))

	v, err := st.Get(ctx, "access")
	require.NoError(t, err)
	require.Equal(t, "a2", v)

	require.NoError(t, st.Delete(ctx, "access", "refresh", "missing"))

	_, err = st.Get(ctx, "refresh")
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, st.Close())
}

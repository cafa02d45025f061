package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/crypto-dashboard/internal/models"
)

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("unit-secret"))
	require.NoError(t, err)
	return s
}

func TestDecode_AllClaims(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(time.Hour).Unix()
	raw := sign(t, jwt.MapClaims{
		"username": "alice",
		"email":    "a@b.com",
		"user_id":  42,
		"exp":      exp,
	})

	u, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, &models.User{Username: "alice", Email: "a@b.com", UserID: "42", ExpiresAt: exp}, u)
}

func TestDecode_DefaultsUsername(t *testing.T) {
	t.Parallel()

	raw := sign(t, jwt.MapClaims{"email": "a@b.com", "exp": time.Now().Add(time.Hour).Unix()})

	u, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, models.DefaultUsername, u.Username)
	require.Empty(t, u.UserID)
}

func TestDecode_StringUserID(t *testing.T) {
	t.Parallel()

	raw := sign(t, jwt.MapClaims{"user_id": "u-1", "exp": time.Now().Add(time.Hour).Unix()})

	u, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, "u-1", u.UserID)
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()

	_, err := Decode("")
	require.ErrorIs(t, err, ErrMalformed)

	_, err = Decode("not.a.jwt")
	require.ErrorIs(t, err, ErrMalformed)

	_, err = Decode(sign(t, jwt.MapClaims{"email": "a@b.com"}))
	require.ErrorIs(t, err, ErrNoExpiry)

	_, err = Decode(sign(t, jwt.MapClaims{"exp": "tomorrow"}))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestIsExpired(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"future", sign(t, jwt.MapClaims{"exp": now.Unix() + 60}), false},
		{"past", sign(t, jwt.MapClaims{"exp": now.Unix() - 60}), true},
		{"exactly_now", sign(t, jwt.MapClaims{"exp": now.Unix()}), true},
		{"no_exp", sign(t, jwt.MapClaims{"email": "a@b.com"}), true},
		{"garbage", "garbage", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, IsExpired(tt.raw, now))
		})
	}
}

// Подпись не проверяется: токен, подписанный чужим ключом, декодируется.
func TestDecode_IgnoresSignature(t *testing.T) {
	t.Parallel()

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "x@y.z",
		"exp":   time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte("someone-else"))
	require.NoError(t, err)

	u, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, "x@y.z", u.Email)
}

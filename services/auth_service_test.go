package services

import (
	"cloudnest/models"
	"cloudnest/repository/memory"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()

	store := memory.NewStore()
	return NewAuthService(store.Users, AuthConfig{
		JWTSecret:           "test-secret",
		TokenTTL:            time.Hour,
		DefaultStorageLimit: 5 << 30,
		BcryptCost:          bcrypt.MinCost,
		AdminEmails:         []string{"Root@Example.com"},
	})
}

func TestRegister(t *testing.T) {
	auth := newAuthService(t)
	ctx := context.Background()

	user, err := auth.Register(ctx, "  Alice@Example.com ", "Alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.EqualValues(t, 5<<30, user.StorageLimit)
	assert.Zero(t, user.StorageUsed)
	assert.NotEqual(t, "password123", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")))

	_, err = auth.Register(ctx, "alice@example.com", "Other", "password456")
	assert.True(t, IsKind(err, KindConflict))

	admin, err := auth.Register(ctx, "root@example.com", "Root", "password123")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
}

func TestRegister_Validation(t *testing.T) {
	auth := newAuthService(t)
	ctx := context.Background()

	cases := []struct{ email, name, password string }{
		{"", "A", "password123"},
		{"not-an-email", "A", "password123"},
		{"a@example.com", "  ", "password123"},
		{"a@example.com", "A", "short"},
	}
	for _, tc := range cases {
		_, err := auth.Register(ctx, tc.email, tc.name, tc.password)
		assert.True(t, IsKind(err, KindBadRequest), "%+v", tc)
	}
}

func TestLogin(t *testing.T) {
	auth := newAuthService(t)
	ctx := context.Background()

	user, err := auth.Register(ctx, "alice@example.com", "Alice", "password123")
	require.NoError(t, err)

	token, loggedIn, err := auth.Login(ctx, "ALICE@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	claims, err := auth.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleUser, claims.Role)

	_, _, wrongPassword := auth.Login(ctx, "alice@example.com", "password124")
	_, _, unknownEmail := auth.Login(ctx, "bob@example.com", "password123")
	assert.True(t, IsKind(wrongPassword, KindUnauthorized))
	assert.True(t, IsKind(unknownEmail, KindUnauthorized))
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestParseToken_Rejects(t *testing.T) {
	auth := newAuthService(t)

	_, err := auth.ParseToken("garbage")
	assert.True(t, IsKind(err, KindUnauthorized))

	other := NewAuthService(memory.NewStore().Users, AuthConfig{JWTSecret: "other-secret", BcryptCost: bcrypt.MinCost})
	user, err := other.Register(context.Background(), "a@example.com", "A", "password123")
	require.NoError(t, err)
	token, _, err := other.Login(context.Background(), user.Email, "password123")
	require.NoError(t, err)

	_, err = auth.ParseToken(token)
	assert.True(t, IsKind(err, KindUnauthorized))
}

func TestProfile(t *testing.T) {
	auth := newAuthService(t)
	ctx := context.Background()

	user, err := auth.Register(ctx, "alice@example.com", "Alice", "password123")
	require.NoError(t, err)

	profile, err := auth.Profile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", profile.Name)

	_, err = auth.Profile(ctx, "ghost")
	assert.True(t, IsKind(err, KindNotFound))
}

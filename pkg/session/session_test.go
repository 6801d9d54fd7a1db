package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.connectwisedev.com/storefront/models"
	"gitlab.connectwisedev.com/storefront/pkg/apperr"
	"gitlab.connectwisedev.com/storefront/pkg/storage"
)

type fakeBackend struct {
	mu        sync.Mutex
	exchanges int
	token     string
	err       error
	loginTok  string
	loginErr  error
}

func (f *fakeBackend) ExchangeIdentityForSession(_ context.Context, identityToken string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchanges++
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

func (f *fakeBackend) AdminLogin(_ context.Context, email, password string) (string, error) {
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return f.loginTok, nil
}

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func identityToken(t *testing.T, email string) string {
	return signed(t, jwt.MapClaims{"email": email, "name": "Asha Rao", "picture": "https://img/a.png"})
}

func TestSignInDerivesProfileAndRole(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	s := New(st, &fakeBackend{}, Options{AdminEmails: []string{"Owner@Shop.com"}})

	p, err := s.SignIn(ctx, identityToken(t, "owner@shop.com"))
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, p.Role)
	assert.Equal(t, "Asha Rao", p.Name)
	assert.Equal(t, IdentityOnly, s.State(ctx))

	p, err = s.SignIn(ctx, identityToken(t, "buyer@example.com"))
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, p.Role)
}

func TestSignInRejectsGarbage(t *testing.T) {
	s := New(storage.NewMemoryStore(), &fakeBackend{}, Options{})
	_, err := s.SignIn(context.Background(), "not-a-jwt")
	assert.Error(t, err)
	assert.Equal(t, Anonymous, s.State(context.Background()))
}

func TestExchangeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{token: "session-1"}
	s := New(storage.NewMemoryStore(), backend, Options{AdminEmails: []string{"owner@shop.com"}})
	_, err := s.SignIn(ctx, identityToken(t, "owner@shop.com"))
	require.NoError(t, err)

	tok, err := s.Exchange(ctx)
	require.NoError(t, err)
	assert.Equal(t, "session-1", tok)

	tok, err = s.Exchange(ctx)
	require.NoError(t, err)
	assert.Equal(t, "session-1", tok)
	assert.Equal(t, 1, backend.exchanges)
	assert.Equal(t, AuthenticatedAdmin, s.State(ctx))
}

func TestFailedExchangeKeepsIdentityLogin(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	backend := &fakeBackend{err: apperr.Remote(500, "exchange down")}
	s := New(st, backend, Options{Production: true})

	_, err := s.SignIn(ctx, identityToken(t, "buyer@example.com"))
	require.NoError(t, err)

	_, err = s.Exchange(ctx)
	require.Error(t, err)

	p, ok := s.Profile(ctx)
	assert.True(t, ok)
	assert.Equal(t, "buyer@example.com", p.Email)
	_, ok, _ = st.Get(ctx, storage.KeyUserToken)
	assert.True(t, ok, "identity token is kept")
	_, ok, _ = st.Get(ctx, storage.KeyAdminToken)
	assert.False(t, ok, "only the session token is absent")
	assert.Equal(t, IdentityOnly, s.State(ctx))

	_, err = s.Token(ctx)
	assert.ErrorIs(t, err, apperr.ErrNoCredential)
	assert.Equal(t, 2, backend.exchanges)
}

func TestTokenPrecedence(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("session token first", func(t *testing.T) {
		st := storage.NewMemoryStore()
		require.NoError(t, st.Set(ctx, storage.KeyAdminToken, "opaque-session"))
		require.NoError(t, st.Set(ctx, storage.KeyUserToken, identityToken(t, "a@b.co")))
		backend := &fakeBackend{token: "fresh"}
		s := New(st, backend, Options{Now: clock})

		tok, err := s.Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, "opaque-session", tok)
		assert.Zero(t, backend.exchanges)
	})

	t.Run("expired session token is re-exchanged", func(t *testing.T) {
		st := storage.NewMemoryStore()
		expired := signed(t, jwt.MapClaims{"email": "a@b.co", "exp": now.Add(-time.Minute).Unix()})
		require.NoError(t, st.Set(ctx, storage.KeyAdminToken, expired))
		require.NoError(t, st.Set(ctx, storage.KeyUserToken, identityToken(t, "a@b.co")))
		s := New(st, &fakeBackend{token: "fresh"}, Options{Now: clock})

		tok, err := s.Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, "fresh", tok)
	})

	t.Run("dev token outside production", func(t *testing.T) {
		s := New(storage.NewMemoryStore(), &fakeBackend{}, Options{DevToken: "dev-token", Now: clock})
		tok, err := s.Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, "dev-token", tok)
	})

	t.Run("no dev token in production", func(t *testing.T) {
		s := New(storage.NewMemoryStore(), &fakeBackend{}, Options{DevToken: "dev-token", Production: true, Now: clock})
		_, err := s.Token(ctx)
		assert.ErrorIs(t, err, apperr.ErrNoCredential)
	})
}

func TestLogoutClearsEverything(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	s := New(st, &fakeBackend{token: "session"}, Options{})
	_, err := s.SignIn(ctx, identityToken(t, "a@b.co"))
	require.NoError(t, err)
	_, err = s.Exchange(ctx)
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, storage.KeyCart, "[]"))

	require.NoError(t, s.Logout(ctx))

	for _, k := range []string{storage.KeyUserToken, storage.KeyAdminToken, storage.KeyUserData} {
		_, ok, err := st.Get(ctx, k)
		require.NoError(t, err)
		assert.False(t, ok, k)
	}
	_, ok, _ := st.Get(ctx, storage.KeyCart)
	assert.True(t, ok, "cart survives logout")
	assert.Equal(t, Anonymous, s.State(ctx))
}

func TestLoginWithPassword(t *testing.T) {
	ctx := context.Background()
	adminJWT := signed(t, jwt.MapClaims{"email": "ops@shop.com", "role": "admin"})
	s := New(storage.NewMemoryStore(), &fakeBackend{loginTok: adminJWT}, Options{})

	p, err := s.LoginWithPassword(ctx, "ops@shop.com", "pw")
	require.NoError(t, err)
	assert.True(t, p.IsAdmin())
	assert.Equal(t, AuthenticatedAdmin, s.State(ctx))

	tok, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, adminJWT, tok)

	s2 := New(storage.NewMemoryStore(), &fakeBackend{loginErr: apperr.Remote(401, "Invalid credentials")}, Options{})
	_, err = s2.LoginWithPassword(ctx, "ops@shop.com", "bad")
	assert.Equal(t, 401, apperr.Status(err))
}

func TestMalformedProfileIsIgnored(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	require.NoError(t, st.Set(ctx, storage.KeyUserData, "{broken"))
	s := New(st, &fakeBackend{}, Options{})

	_, ok := s.Profile(ctx)
	assert.False(t, ok)
	assert.False(t, s.IsAdmin(ctx))
}

func TestTamperedRoleClaimIsOnlyAdvisory(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	require.NoError(t, storage.WriteJSON(ctx, st, storage.KeyUserData, models.Profile{Email: "x@y.z", Role: models.RoleAdmin}))
	s := New(st, &fakeBackend{err: errors.New("unreachable")}, Options{Production: true})

	assert.True(t, s.IsAdmin(ctx), "the UI may show admin chrome")
	_, err := s.Token(ctx)
	assert.ErrorIs(t, err, apperr.ErrNoCredential, "but there is still no credential to call with")
}

package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/isdelr/acquisitions-api/internal/common"
	"github.com/isdelr/acquisitions-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify_Success(t *testing.T) {
	t.Parallel()

	svc := NewTokenService("super-secret", time.Hour)
	want := models.Identity{UserID: 7, Email: "seven@example.com", Role: models.RoleUser}

	tok, err := svc.Sign(want)
	require.NoError(t, err)

	got, err := svc.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	svc := NewTokenService("secret", time.Minute)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, err := svc.Sign(models.Identity{UserID: 1, Role: models.RoleAdmin})
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Verify(tok)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := NewTokenService("right-secret", time.Hour).Sign(models.Identity{UserID: 2, Role: models.RoleUser})
	require.NoError(t, err)

	_, err = NewTokenService("wrong-secret", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	_, err := NewTokenService("k", time.Hour).Verify("not.a.jwt")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestVerify_RejectsUnknownRole(t *testing.T) {
	t.Parallel()

	svc := NewTokenService("k", time.Hour)
	tok, err := svc.Sign(models.Identity{UserID: 3, Role: "root"})
	require.NoError(t, err)

	_, err = svc.Verify(tok)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestPasswordHashing(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	ok, err := ComparePassword(hash, "correct horse")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ComparePassword(hash, "battery staple")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = ComparePassword("not-a-bcrypt-hash", "x")
	assert.Error(t, err)

	_, err = HashPassword(strings.Repeat("a", MaxPasswordBytes))
	assert.NoError(t, err)
	_, err = HashPassword(strings.Repeat("a", MaxPasswordBytes+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
	_, err = HashPassword(strings.Repeat("é", 40))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	svc := NewTokenService("k", time.Hour)
	tok, err := svc.Sign(models.Identity{UserID: 9, Email: "nine@example.com", Role: models.RoleAdmin})
	require.NoError(t, err)

	var seen *models.Identity
	h := Authenticate(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		name   string
		setup  func(r *http.Request)
		wantID int64
	}{
		{name: "no credential", setup: func(r *http.Request) {}},
		{name: "cookie", setup: func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: TokenCookieName, Value: tok})
		}, wantID: 9},
		{name: "bearer header", setup: func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+tok)
		}, wantID: 9},
		{name: "garbage cookie degrades to guest", setup: func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "garbage"})
		}},
		{name: "stale cookie falls back to bearer header", setup: func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "garbage"})
			r.Header.Set("Authorization", "Bearer "+tok)
		}, wantID: 9},
		{name: "valid cookie wins over bad header", setup: func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: TokenCookieName, Value: tok})
			r.Header.Set("Authorization", "Bearer garbage")
		}, wantID: 9},
		{name: "bad cookie and bad header", setup: func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "garbage"})
			r.Header.Set("Authorization", "Bearer garbage")
		}},
	}

	for _, tc := range cases {
		seen = nil
		r := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		tc.setup(r)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code, tc.name)
		if tc.wantID == 0 {
			assert.Nil(t, seen, tc.name)
			continue
		}
		require.NotNil(t, seen, tc.name)
		assert.Equal(t, tc.wantID, seen.UserID, tc.name)
		assert.Equal(t, models.RoleAdmin, seen.Role, tc.name)
	}
}

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/insighthink/internal/apperr"
	"github.com/starford/insighthink/internal/docstore"
	"github.com/starford/insighthink/internal/models"
)

func newService(t *testing.T) *Service {
	t.Helper()
	store, err := docstore.OpenSQLite(filepath.Join(t.TempDir(), "auth.db"), UsersCollection)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close(context.Background()) })
	sessions, err := NewSessions(testSecret, time.Hour)
	require.NoError(t, err)
	return NewService(store, sessions, Cookie{Name: "sid"})
}

func TestSignupAndLogin(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	u, token, err := svc.Signup(ctx, SignupRequest{Name: " Ada ", Email: "Ada@Example.com", Password: "analytical"})
	require.NoError(t, err)
	assert.False(t, u.ID.IsZero())
	assert.Equal(t, "Ada", u.Name)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.NotEmpty(t, token)
	assert.Empty(t, u.Public().PasswordHash)

	got, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, _, err = svc.Signup(ctx, SignupRequest{Name: "Other", Email: "ada@example.com", Password: "whatever1"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	logged, _, err := svc.Login(ctx, LoginRequest{Email: "ADA@example.com ", Password: "analytical"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, logged.ID)

	_, _, err = svc.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "nope-nope"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, _, err = svc.Login(ctx, LoginRequest{Email: "ghost@example.com", Password: "analytical"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestSignupValidation(t *testing.T) {
	svc := newService(t)
	tests := []struct {
		name string
		req  SignupRequest
	}{
		{"missing name", SignupRequest{Email: "a@b.co", Password: "12345678"}},
		{"bad email", SignupRequest{Name: "A", Email: "not-an-email", Password: "12345678"}},
		{"short password", SignupRequest{Name: "A", Email: "a@b.co", Password: "1234"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Signup(context.Background(), tt.req)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestChangePassword(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	u, _, err := svc.Signup(ctx, SignupRequest{Name: "Ada", Email: "ada@example.com", Password: "analytical"})
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, u, PasswordChange{Current: "wrong-one", New: "engine-42"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	err = svc.ChangePassword(ctx, nil, PasswordChange{Current: "analytical", New: "engine-42"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	require.NoError(t, svc.ChangePassword(ctx, u, PasswordChange{Current: "analytical", New: "engine-42"}))
	_, _, err = svc.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "analytical"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, _, err = svc.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "engine-42"})
	assert.NoError(t, err)
}

func TestMiddleware(t *testing.T) {
	svc := newService(t)
	u, token, err := svc.Signup(context.Background(), SignupRequest{Name: "Ada", Email: "ada@example.com", Password: "analytical"})
	require.NoError(t, err)

	var seen *models.User
	h := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFrom(r.Context())
	}))

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		signed bool
	}{
		{"anonymous", func(*http.Request) {}, false},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, true},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "sid", Value: token}) }, true},
		{"garbage", func(r *http.Request) { r.Header.Set("Authorization", "Bearer garbage") }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			h.ServeHTTP(httptest.NewRecorder(), req)
			if tt.signed {
				require.NotNil(t, seen)
				assert.Equal(t, u.ID, seen.ID)
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}

func TestSessionCookie(t *testing.T) {
	svc := newService(t)
	w := httptest.NewRecorder()
	svc.SetCookie(w, "tok")
	c := w.Result().Cookies()
	require.Len(t, c, 1)
	assert.Equal(t, "sid", c[0].Name)
	assert.True(t, c[0].HttpOnly)
	assert.Equal(t, 3600, c[0].MaxAge)

	w = httptest.NewRecorder()
	svc.ClearCookie(w)
	c = w.Result().Cookies()
	require.Len(t, c, 1)
	assert.Negative(t, c[0].MaxAge)
}

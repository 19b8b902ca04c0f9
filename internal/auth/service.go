// Package auth implements credential sign-up and login, signed session
// tokens and the request middleware that resolves the signed-in user.
package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/starford/insighthink/internal/apperr"
	"github.com/starford/insighthink/internal/docstore"
	"github.com/starford/insighthink/internal/models"
)

// UsersCollection is where accounts are stored.
const UsersCollection = "users"

// DefaultCookieName names the session cookie when none is configured.
const DefaultCookieName = "insighthink_session"

// Cookie describes the session cookie.
type Cookie struct {
	Name   string
	Secure bool
}

// Service manages accounts and sessions.
type Service struct {
	users    docstore.Collection
	sessions *Sessions
	cookie   Cookie
	now      func() time.Time
}

// NewService creates an auth service over the users collection of store.
func NewService(store docstore.Store, sessions *Sessions, cookie Cookie) *Service {
	if cookie.Name == "" {
		cookie.Name = DefaultCookieName
	}
	return &Service{
		users:    store.Collection(UsersCollection),
		sessions: sessions,
		cookie:   cookie,
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// Signup creates an account and returns it with a session token. The email
// must not belong to another account.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*models.User, string, error) {
	req.normalize()
	if err := req.Validate(); err != nil {
		return nil, "", err
	}
	var existing models.User
	err := s.users.FindOneBy(ctx, docstore.Query{Filter: map[string]any{"email": req.Email}}, &existing)
	switch {
	case err == nil:
		return nil, "", apperr.Conflict("email is already registered")
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, "", err
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, "", apperr.Validation("%s", err.Error())
	}
	u := &models.User{Name: req.Name, Email: req.Email, PasswordHash: hash}
	u.Touch(s.now())
	id, err := s.users.InsertOne(ctx, u)
	if err != nil {
		return nil, "", err
	}
	created, err := s.load(ctx, id.Hex())
	if err != nil {
		return nil, "", err
	}
	return created, s.sessions.Issue(created.ID, s.now()), nil
}

// Login checks credentials and returns the user with a fresh session token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*models.User, string, error) {
	req.Email = normalizeEmail(req.Email)
	if err := req.Validate(); err != nil {
		return nil, "", err
	}
	var u models.User
	err := s.users.FindOneBy(ctx, docstore.Query{Filter: map[string]any{"email": req.Email}}, &u)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, "", apperr.Unauthorized("invalid email or password")
	}
	if err != nil {
		return nil, "", err
	}
	if !CheckPassword(u.PasswordHash, req.Password) {
		return nil, "", apperr.Unauthorized("invalid email or password")
	}
	return &u, s.sessions.Issue(u.ID, s.now()), nil
}

// Authenticate resolves a session token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	id, err := s.sessions.Verify(token, s.now())
	if err != nil {
		return nil, err
	}
	u, err := s.load(ctx, id.Hex())
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Unauthorized("account no longer exists")
	}
	return u, err
}

type passwordPatch struct {
	PasswordHash string    `bson:"passwordHash" json:"passwordHash"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// ChangePassword replaces the password of user after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, user *models.User, req PasswordChange) error {
	if user == nil {
		return apperr.Unauthorized("sign in to change your password")
	}
	if err := req.Validate(); err != nil {
		return err
	}
	current, err := s.load(ctx, user.ID.Hex())
	if err != nil {
		return err
	}
	if !CheckPassword(current.PasswordHash, req.Current) {
		return apperr.Forbidden("current password is incorrect")
	}
	hash, err := HashPassword(req.New)
	if err != nil {
		return apperr.Validation("%s", err.Error())
	}
	return s.users.UpdateOne(ctx, current.ID, passwordPatch{PasswordHash: hash, UpdatedAt: s.now()})
}

func (s *Service) load(ctx context.Context, id string) (*models.User, error) {
	oid, err := docstore.ParseID(id)
	if err != nil {
		return nil, err
	}
	var u models.User
	if err := s.users.FindOne(ctx, oid, &u); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("user")
		}
		return nil, err
	}
	return &u, nil
}

// SetCookie writes the session cookie for token.
func (s *Service) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (s *Service) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

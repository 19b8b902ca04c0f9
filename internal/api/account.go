package api

import (
	"net/http"

	"github.com/starford/insighthink/internal/auth"
	"github.com/starford/insighthink/internal/content"
	"github.com/starford/insighthink/internal/ingest"
	"github.com/starford/insighthink/internal/models"
)

// AccountHandler serves sign-up, login and the signed-in user's account.
type AccountHandler struct {
	auth     *auth.Service
	accounts *content.Service[models.User, *models.UserPatch]
}

// NewAccountHandler creates the auth and account handlers.
func NewAccountHandler(a *auth.Service, accounts *content.Service[models.User, *models.UserPatch]) *AccountHandler {
	return &AccountHandler{auth: a, accounts: accounts}
}

// Signup handles POST /auth/signup.
//
//	@Summary		Create an account and start a session
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		auth.SignupRequest	true	"New account"
//	@Success		201		{object}	SessionResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/auth/signup [post]
func (h *AccountHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req auth.SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, token, err := h.auth.Signup(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.auth.SetCookie(w, token)
	writeJSON(w, http.StatusCreated, SessionResponse{User: u.Public(), Token: token})
}

// Login handles POST /auth/login.
//
//	@Summary		Start a session
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		auth.LoginRequest	true	"Credentials"
//	@Success		200		{object}	SessionResponse
//	@Failure		401		{object}	errResponse
//	@Router			/auth/login [post]
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, token, err := h.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.auth.SetCookie(w, token)
	writeJSON(w, http.StatusOK, SessionResponse{User: u.Public(), Token: token})
}

// Logout handles POST /auth/logout. Tokens are stateless, so this only
// clears the cookie.
func (h *AccountHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.auth.ClearCookie(w)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "signed out"})
}

// Me handles GET /auth/me.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, auth.UserFrom(r.Context()).Public())
}

// UpdateProfile handles PATCH /account (name, bio and avatar).
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	req, err := ingest.Decode(w, r, h.accounts.FileFields()...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer req.Close()

	user := auth.UserFrom(r.Context())
	u, err := h.accounts.Update(r.Context(), user.ID.Hex(), req, user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u.Public())
}

// ChangePassword handles PUT /account/password.
func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req auth.PasswordChange
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.auth.ChangePassword(r.Context(), auth.UserFrom(r.Context()), req); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "password changed"})
}

// DeleteAccount handles DELETE /account. The uploaded avatar goes with it.
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())
	res, err := h.accounts.Delete(r.Context(), user.ID.Hex(), user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.auth.ClearCookie(w)
	writeJSON(w, http.StatusOK, DeleteResponse{Message: res.Message, ID: res.ID, Warnings: res.Warnings})
}

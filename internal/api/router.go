package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/insighthink/internal/auth"
	"github.com/starford/insighthink/internal/blobstore"
	"github.com/starford/insighthink/internal/content"
	"github.com/starford/insighthink/internal/models"
)

// Routes maps each content collection to its URL prefix.
var Routes = map[string]string{
	content.Books:    "/library",
	content.Videos:   "/videos",
	content.Articles: "/articles",
	content.Posts:    "/community",
	content.Curated:  "/curated",
}

// Deps are the services the API is built on.
type Deps struct {
	Content  *content.Services
	Accounts *content.Service[models.User, *models.UserPatch]
	Auth     *auth.Service
	Blobs    blobstore.Store
	// Events, if non-nil, is mounted at GET /events.
	Events http.Handler
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(d Deps) chi.Router {
	files := NewFileHandler(d.Blobs, d.Content.Books)
	accounts := NewAccountHandler(d.Auth, d.Accounts)

	r := chi.NewRouter()
	r.Use(d.Auth.Middleware)

	for collection, res := range d.Content.Resources() {
		h := NewContentHandler(res)
		r.Route(Routes[collection], func(r chi.Router) {
			r.Get("/", h.List)
			r.Post("/", h.Create)
			r.Get("/{id}", h.Get)
			r.Patch("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
			r.Post("/{id}/like", h.Like)
			r.Post("/{id}/view", h.View)
			if collection == content.Books {
				r.Post("/add", h.Create)
				r.Get("/{id}/cover", files.Cover)
			}
		})
	}

	r.Get("/files/{id}", files.ServeFile)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", accounts.Signup)
		r.Post("/login", accounts.Login)
		r.Post("/logout", accounts.Logout)
		r.With(RequireUser).Get("/me", accounts.Me)
	})
	r.Route("/account", func(r chi.Router) {
		r.Use(RequireUser)
		r.Patch("/", accounts.UpdateProfile)
		r.Put("/password", accounts.ChangePassword)
		r.Delete("/", accounts.DeleteAccount)
	})

	if d.Events != nil {
		r.Get("/events", d.Events.ServeHTTP)
	}

	return r
}

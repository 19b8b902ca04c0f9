package api

import (
	"github.com/starford/insighthink/internal/models"
)

// PageResponse is the list response of every content route.
type PageResponse struct {
	Items      []any `json:"items" validate:"required"`
	Total      int64 `json:"total" example:"42" validate:"required"`
	TotalPages int   `json:"totalPages" example:"5" validate:"required"`
	Page       int   `json:"page" example:"1" validate:"required"`
}

// DeleteResponse confirms a delete. Warnings name assets that could not be
// removed after the document was gone.
type DeleteResponse struct {
	Message  string   `json:"message" example:"book deleted" validate:"required"`
	ID       string   `json:"id" example:"65a0c0ffee0000000000beef" validate:"required"`
	Warnings []string `json:"warnings,omitempty"`
}

// MessageResponse is a plain confirmation.
type MessageResponse struct {
	Message string `json:"message" validate:"required"`
}

// SessionResponse is returned by sign-up and login. The token is also set
// as the session cookie.
type SessionResponse struct {
	User  models.User `json:"user" validate:"required"`
	Token string      `json:"token" validate:"required"`
}

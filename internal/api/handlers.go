package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/insighthink/internal/auth"
	"github.com/starford/insighthink/internal/content"
	"github.com/starford/insighthink/internal/ingest"
)

// ContentHandler serves the CRUD routes of one content type.
type ContentHandler struct {
	res content.Resource
}

// NewContentHandler creates a handler for res.
func NewContentHandler(res content.Resource) *ContentHandler {
	return &ContentHandler{res: res}
}

// List handles GET /{route}.
//
//	@Summary		List documents newest first
//	@Tags			content
//	@Produce		json
//	@Param			page	query		int		false	"Page number, from 1"
//	@Param			limit	query		int		false	"Page size, at most 100"
//	@Param			q		query		string	false	"Title search"
//	@Param			tag		query		string	false	"Tag or genre filter"
//	@Success		200		{object}	PageResponse
//	@Router			/{route} [get]
func (h *ContentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	res, err := h.res.List(r.Context(), content.ListQuery{
		Page:   page,
		Limit:  limit,
		Search: q.Get("q"),
		Tag:    q.Get("tag"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PageResponse{
		Items:      res.Items,
		Total:      res.Total,
		TotalPages: res.TotalPages,
		Page:       res.Page,
	})
}

// Get handles GET /{route}/{id}.
//
//	@Summary		Get one document
//	@Tags			content
//	@Produce		json
//	@Param			id	path		string	true	"24 hex character id"
//	@Success		200	{object}	any
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Router			/{route}/{id} [get]
func (h *ContentHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.res.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Create handles POST /{route} with a multipart or JSON body.
//
//	@Summary		Create a document with its assets
//	@Tags			content
//	@Accept			multipart/form-data,json
//	@Produce		json
//	@Success		201	{object}	any
//	@Failure		400	{object}	errResponse
//	@Failure		401	{object}	errResponse
//	@Router			/{route} [post]
func (h *ContentHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, err := ingest.Decode(w, r, h.res.FileFields()...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer req.Close()

	doc, err := h.res.Create(r.Context(), req, auth.UserFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// Update handles PATCH /{route}/{id}. Only the supplied fields change.
//
//	@Summary		Partially update a document
//	@Tags			content
//	@Accept			multipart/form-data,json
//	@Produce		json
//	@Param			id	path		string	true	"24 hex character id"
//	@Success		200	{object}	any
//	@Failure		400	{object}	errResponse
//	@Failure		403	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Router			/{route}/{id} [patch]
func (h *ContentHandler) Update(w http.ResponseWriter, r *http.Request) {
	req, err := ingest.Decode(w, r, h.res.FileFields()...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer req.Close()

	doc, err := h.res.Update(r.Context(), chi.URLParam(r, "id"), req, auth.UserFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Delete handles DELETE /{route}/{id}.
//
//	@Summary		Delete a document and its stored assets
//	@Tags			content
//	@Param			id	path		string	true	"24 hex character id"
//	@Success		200	{object}	DeleteResponse
//	@Failure		404	{object}	errResponse
//	@Router			/{route}/{id} [delete]
func (h *ContentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	res, err := h.res.Delete(r.Context(), chi.URLParam(r, "id"), auth.UserFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Message: res.Message, ID: res.ID, Warnings: res.Warnings})
}

// Like handles POST /{route}/{id}/like.
func (h *ContentHandler) Like(w http.ResponseWriter, r *http.Request) {
	h.increment(w, r, content.Likes)
}

// View handles POST /{route}/{id}/view.
func (h *ContentHandler) View(w http.ResponseWriter, r *http.Request) {
	h.increment(w, r, content.Views)
}

func (h *ContentHandler) increment(w http.ResponseWriter, r *http.Request, field string) {
	doc, err := h.res.Increment(r.Context(), chi.URLParam(r, "id"), field)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

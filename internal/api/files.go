package api

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/insighthink/internal/apperr"
	"github.com/starford/insighthink/internal/blobstore"
	"github.com/starford/insighthink/internal/content"
	"github.com/starford/insighthink/internal/models"
)

// FileHandler streams stored assets.
type FileHandler struct {
	blobs blobstore.Store
	books *content.Service[models.Book, *models.BookPatch]
}

// NewFileHandler creates a handler reading from blobs. Book covers are
// resolved through books.
func NewFileHandler(blobs blobstore.Store, books *content.Service[models.Book, *models.BookPatch]) *FileHandler {
	return &FileHandler{blobs: blobs, books: books}
}

// ServeFile handles GET /files/{id}.
//
//	@Summary		Download a stored asset
//	@Tags			files
//	@Param			id	path	string	true	"asset id"
//	@Success		200
//	@Failure		404	{object}	errResponse
//	@Router			/files/{id} [get]
func (h *FileHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, chi.URLParam(r, "id"))
}

// Cover handles GET /library/{id}/cover.
func (h *FileHandler) Cover(w http.ResponseWriter, r *http.Request) {
	book, err := h.books.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !book.HasCover || book.CoverImageID == "" {
		writeError(w, r, apperr.NotFound("cover"))
		return
	}
	h.stream(w, r, book.CoverImageID)
}

func (h *FileHandler) stream(w http.ResponseWriter, r *http.Request, id string) {
	obj, err := h.blobs.Open(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer obj.Close()

	// Blobs are immutable, so the content checksum is a strong validator.
	if obj.Checksum != "" {
		etag := `"` + obj.Checksum + `"`
		w.Header().Set("ETag", etag)
		if etagMatch(r.Header.Get("If-None-Match"), etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj); err != nil {
		slog.Warn("asset stream interrupted", slog.String("id", id), slog.String("error", err.Error()))
	}
}

func etagMatch(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

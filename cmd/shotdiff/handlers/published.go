package handlers

import (
	"errors"
	"io"
	"net/http"
	"path"

	"github.com/gorilla/mux"
	"github.com/hairizuanbinnoorazman/shotdiff/logger"
	"github.com/hairizuanbinnoorazman/shotdiff/storage"
)

// PublishedHandler serves output uploaded by publish from blob storage.
type PublishedHandler struct {
	storage storage.BlobStorage
	logger  logger.Logger
}

// NewPublishedHandler creates a new published output handler.
func NewPublishedHandler(blobs storage.BlobStorage, log logger.Logger) *PublishedHandler {
	return &PublishedHandler{
		storage: blobs,
		logger:  log,
	}
}

// ListPublishedResponse lists the stored keys under a prefix.
type ListPublishedResponse struct {
	Prefix string   `json:"prefix"`
	Keys   []string `json:"keys"`
	Total  int      `json:"total"`
}

// List handles listing published keys under the prefix query parameter.
func (h *PublishedHandler) List(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")

	keys, err := h.storage.List(r.Context(), prefix)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidPath) {
			respondError(w, http.StatusBadRequest, "invalid prefix")
			return
		}
		h.logger.Error(r.Context(), "failed to list published files", map[string]interface{}{
			"error":  err.Error(),
			"prefix": prefix,
		})
		respondError(w, http.StatusInternalServerError, "failed to list published files")
		return
	}
	if keys == nil {
		keys = []string{}
	}

	respondJSON(w, http.StatusOK, ListPublishedResponse{
		Prefix: prefix,
		Keys:   keys,
		Total:  len(keys),
	})
}

// Download streams one published file. Relative links inside a published
// gallery.html resolve against the same route.
func (h *PublishedHandler) Download(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if key == "" || key[len(key)-1] == '/' {
		key = path.Join(key, "gallery.html")
	}

	reader, err := h.storage.Download(r.Context(), key)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrFileNotFound):
			respondError(w, http.StatusNotFound, "file not found in storage")
		case errors.Is(err, storage.ErrInvalidPath):
			respondError(w, http.StatusBadRequest, "invalid path")
		default:
			h.logger.Error(r.Context(), "failed to download from storage", map[string]interface{}{
				"error": err.Error(),
				"path":  key,
			})
			respondError(w, http.StatusInternalServerError, "failed to download file")
		}
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", storage.ContentType(key))
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Error(r.Context(), "failed to stream file", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

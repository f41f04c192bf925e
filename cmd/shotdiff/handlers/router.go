package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/hairizuanbinnoorazman/shotdiff/logger"
	"github.com/hairizuanbinnoorazman/shotdiff/run"
	"github.com/hairizuanbinnoorazman/shotdiff/storage"
)

// NewRouter wires the API and serves outputDir (shots, diffs and
// gallery.html) as static files. The run API is left out when store is nil
// and the published routes when blobs is nil.
func NewRouter(store run.Store, blobs storage.BlobStorage, outputDir string, log logger.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(loggingMiddleware(log))

	router.HandleFunc("/health", HealthHandler).Methods(http.MethodGet)

	if store != nil {
		runHandler := NewRunHandler(store, log)
		api := router.PathPrefix("/api/v1").Subrouter()
		api.HandleFunc("/runs", runHandler.List).Methods(http.MethodGet)
		api.HandleFunc("/runs/{id}", runHandler.GetByID).Methods(http.MethodGet)
	}

	if blobs != nil {
		publishedHandler := NewPublishedHandler(blobs, log)
		router.HandleFunc("/api/v1/published", publishedHandler.List).Methods(http.MethodGet)
		router.HandleFunc("/published/{key:.*}", publishedHandler.Download).Methods(http.MethodGet)
	}

	if outputDir != "" {
		router.PathPrefix("/").Handler(http.FileServer(http.Dir(outputDir))).Methods(http.MethodGet, http.MethodHead)
	}
	return router
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.Debug(r.Context(), "request served", map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start).String(),
			})
		})
	}
}

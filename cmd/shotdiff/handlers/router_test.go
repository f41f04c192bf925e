package handlers

import (
	"context"
	"encoding/json"
	"image/color"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/hairizuanbinnoorazman/shotdiff/logger"
	"github.com/hairizuanbinnoorazman/shotdiff/run"
	"github.com/hairizuanbinnoorazman/shotdiff/storage"
	"github.com/hairizuanbinnoorazman/shotdiff/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) (http.Handler, run.Store, string) {
	t.Helper()
	db := testutil.SetupMigratedDB(t)
	store := run.NewSQLStore(db, logger.NewTestLogger())
	dir := t.TempDir()
	return NewRouter(store, nil, dir, logger.NewTestLogger()), store, dir
}

func seedRun(t *testing.T, store run.Store) *run.Run {
	t.Helper()
	ctx := context.Background()

	rn := &run.Run{ConfigPath: "configs/site.yaml", BaseDomain: "current", CompareDomain: "new", Threshold: 5}
	require.NoError(t, store.Create(ctx, rn))
	require.NoError(t, store.Start(ctx, rn.ID))
	require.NoError(t, store.AddResults(ctx, rn.ID, []*run.Result{
		{Label: "home", Size: "1280", Diff: 12.5},
		{Label: "home", Size: "320", Diff: 0, Passed: true},
	}))
	require.NoError(t, store.Complete(ctx, rn.ID, run.StatusFailed, "threshold exceeded"))
	return rn
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestHealth(t *testing.T) {
	h := NewRouter(nil, nil, "", logger.NewTestLogger())

	w := serve(h, http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestListRuns(t *testing.T) {
	h, store, _ := setupRouter(t)
	seedRun(t, store)
	seedRun(t, store)

	w := serve(h, http.MethodGet, "/api/v1/runs?limit=1")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Items  []run.Run `json:"items"`
		Total  int       `json:"total"`
		Limit  int       `json:"limit"`
		Offset int       `json:"offset"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Items, 1)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 1, resp.Limit)
	assert.Equal(t, 0, resp.Offset)
	assert.Equal(t, run.StatusFailed, resp.Items[0].Status)
}

func TestListRunsInvalidPagination(t *testing.T) {
	h, _, _ := setupRouter(t)

	w := serve(h, http.MethodGet, "/api/v1/runs?limit=5000&offset=-3")
	require.Equal(t, http.StatusOK, w.Code)

	var resp PaginatedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, defaultLimit, resp.Limit)
	assert.Equal(t, 0, resp.Offset)
}

func TestGetRun(t *testing.T) {
	h, store, _ := setupRouter(t)
	rn := seedRun(t, store)

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{name: "existing run", target: "/api/v1/runs/" + rn.ID.String(), wantStatus: http.StatusOK},
		{name: "unknown run", target: "/api/v1/runs/" + uuid.NewString(), wantStatus: http.StatusNotFound},
		{name: "malformed id", target: "/api/v1/runs/not-a-uuid", wantStatus: http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(h, http.MethodGet, tc.target)
			assert.Equal(t, tc.wantStatus, w.Code)
		})
	}

	w := serve(h, http.MethodGet, "/api/v1/runs/"+rn.ID.String())
	var resp struct {
		ID      uuid.UUID     `json:"id"`
		Status  run.Status    `json:"status"`
		Message string        `json:"message"`
		Results []*run.Result `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, rn.ID, resp.ID)
	assert.Equal(t, "threshold exceeded", resp.Message)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "320", resp.Results[0].Size)
	assert.Equal(t, "1280", resp.Results[1].Size)
}

func TestRunsWithoutStore(t *testing.T) {
	h := NewRouter(nil, nil, "", logger.NewTestLogger())

	w := serve(h, http.MethodGet, "/api/v1/runs")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServesOutputDirectory(t *testing.T) {
	h, _, dir := setupRouter(t)
	testutil.WriteFile(t, filepath.Join(dir, "gallery.html"), "<html>gallery</html>")
	testutil.WritePNG(t, filepath.Join(dir, "home", "320_current.png"), testutil.SolidImage(4, 4, color.White))

	w := serve(h, http.MethodGet, "/gallery.html")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gallery")

	w = serve(h, http.MethodGet, "/home/320_current.png")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = serve(h, http.MethodGet, "/missing.png")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServesPublished(t *testing.T) {
	ctx := context.Background()
	blobs, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, blobs.Upload(ctx, "build/1/gallery.html", strings.NewReader("<html>published</html>")))
	require.NoError(t, blobs.Upload(ctx, "build/1/home/320_diff.png", strings.NewReader("png")))

	h := NewRouter(nil, blobs, "", logger.NewTestLogger())

	w := serve(h, http.MethodGet, "/published/build/1/home/320_diff.png")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "png", w.Body.String())

	w = serve(h, http.MethodGet, "/published/build/1/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "published")

	w = serve(h, http.MethodGet, "/published/build/2/gallery.html")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(h, http.MethodGet, "/api/v1/published?prefix=build")
	require.Equal(t, http.StatusOK, w.Code)
	var list ListPublishedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, []string{"build/1/gallery.html", "build/1/home/320_diff.png"}, list.Keys)
	assert.Equal(t, 2, list.Total)

	w = serve(h, http.MethodGet, "/api/v1/published?prefix=missing")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"prefix":"missing","keys":[],"total":0}`, w.Body.String())
}

func TestPublishedWithoutStorage(t *testing.T) {
	h := NewRouter(nil, nil, "", logger.NewTestLogger())

	w := serve(h, http.MethodGet, "/published/build/1/gallery.html")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

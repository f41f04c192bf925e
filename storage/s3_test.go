package storage

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/smithy-go"
)

// fakeS3 serves the path-style subset of the S3 API the storage uses.
type fakeS3 struct {
	bucket  string
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

type listResult struct {
	XMLName     xml.Name `xml:"ListBucketResult"`
	Name        string   `xml:"Name"`
	Prefix      string   `xml:"Prefix"`
	KeyCount    int      `xml:"KeyCount"`
	MaxKeys     int      `xml:"MaxKeys"`
	IsTruncated bool     `xml:"IsTruncated"`
	Contents    []struct {
		Key  string `xml:"Key"`
		Size int    `xml:"Size"`
	} `xml:"Contents"`
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if bucket != f.bucket {
		f.error(w, http.StatusNotFound, "NoSuchBucket")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && key == "" && r.URL.Query().Get("list-type") == "2":
		prefix := r.URL.Query().Get("prefix")
		res := listResult{Name: bucket, Prefix: prefix, MaxKeys: 1000}
		var keys []string
		for k := range f.objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			res.Contents = append(res.Contents, struct {
				Key  string `xml:"Key"`
				Size int    `xml:"Size"`
			}{k, len(f.objects[k])})
		}
		res.KeyCount = len(keys)
		w.Header().Set("Content-Type", "application/xml")
		xml.NewEncoder(w).Encode(res)

	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		f.types[key] = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodGet, r.Method == http.MethodHead:
		body, ok := f.objects[key]
		if !ok {
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			f.error(w, http.StatusNotFound, "NoSuchKey")
			return
		}
		w.Header().Set("Content-Type", f.types[key])
		if r.Method == http.MethodGet {
			w.Write(body)
		}

	case r.Method == http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)

	default:
		f.error(w, http.StatusMethodNotAllowed, "MethodNotAllowed")
	}
}

func (f *fakeS3) put(key, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = []byte(body)
}

func (f *fakeS3) object(key string) (string, string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.objects[key]
	return string(body), f.types[key], ok
}

func (f *fakeS3) error(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>`+code+`</Code><Message>`+code+`</Message></Error>`)
}

func newFakeS3(t *testing.T, prefix string) (*S3Storage, *fakeS3, string) {
	t.Helper()
	fake := &fakeS3{bucket: "shots", objects: map[string][]byte{}, types: map[string]string{}}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	storage, err := NewS3Storage(context.Background(), Config{
		Bucket:    "shots",
		Region:    "us-east-1",
		Prefix:    prefix,
		Endpoint:  server.URL,
		AccessKey: "test",
		SecretKey: "test",
	})
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	return storage, fake, server.URL
}

func TestNewS3Storage(t *testing.T) {
	tests := []struct {
		name      string
		bucket    string
		region    string
		wantError bool
	}{
		{"valid bucket and region", "test-bucket", "us-east-1", false},
		{"empty bucket", "", "us-east-1", true},
		{"empty region", "test-bucket", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, err := NewS3Storage(context.Background(), Config{
				Bucket:    tt.bucket,
				Region:    tt.region,
				AccessKey: "test",
				SecretKey: "test",
			})
			if tt.wantError {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if storage.bucket != tt.bucket {
				t.Errorf("bucket mismatch: got %q, want %q", storage.bucket, tt.bucket)
			}
			if storage.presignExpiration != DefaultPresignExpiry {
				t.Errorf("presign expiry = %v, want %v", storage.presignExpiration, DefaultPresignExpiry)
			}
		})
	}
}

func TestS3Storage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	storage, fake, _ := newFakeS3(t, "site/run-1/")

	if err := storage.Upload(ctx, "home/320_new.png", strings.NewReader("png bytes")); err != nil {
		t.Fatalf("upload: %v", err)
	}
	body, ctype, _ := fake.object("site/run-1/home/320_new.png")
	if body != "png bytes" {
		t.Errorf("stored %q", body)
	}
	if ctype != "image/png" {
		t.Errorf("content type = %q, want image/png", ctype)
	}

	rc, err := storage.Download(ctx, "home/320_new.png")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "png bytes" {
		t.Errorf("downloaded %q", data)
	}

	ok, err := storage.Exists(ctx, "home/320_new.png")
	if err != nil || !ok {
		t.Errorf("Exists = %v, %v; want true", ok, err)
	}
	ok, err = storage.Exists(ctx, "home/1280_new.png")
	if err != nil || ok {
		t.Errorf("Exists(missing) = %v, %v; want false", ok, err)
	}

	if _, err := storage.Download(ctx, "home/1280_new.png"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}

	if err := storage.Delete(ctx, "home/320_new.png"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, ok := fake.object("site/run-1/home/320_new.png"); ok {
		t.Error("object still stored after delete")
	}
}

func TestS3Storage_List(t *testing.T) {
	ctx := context.Background()
	storage, fake, _ := newFakeS3(t, "site")

	fake.put("site/gallery.html", "x")
	fake.put("site/home/320_new.png", "x")
	fake.put("other/home/320_new.png", "x")

	keys, err := storage.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Join(keys, ",") != "gallery.html,home/320_new.png" {
		t.Errorf("List() = %v", keys)
	}

	keys, err = storage.List(ctx, "home")
	if err != nil {
		t.Fatalf("list home: %v", err)
	}
	if strings.Join(keys, ",") != "home/320_new.png" {
		t.Errorf("List(home) = %v", keys)
	}
}

func TestS3Storage_GetURL(t *testing.T) {
	ctx := context.Background()
	storage, fake, endpoint := newFakeS3(t, "")
	storage.presignExpiration = 5 * time.Minute

	fake.put("gallery.html", "<html></html>")

	url, err := storage.GetURL(ctx, "gallery.html")
	if err != nil {
		t.Fatalf("get url: %v", err)
	}
	if !strings.HasPrefix(url, endpoint+"/shots/gallery.html?") {
		t.Errorf("unexpected presigned URL %q", url)
	}
	if !strings.Contains(url, "X-Amz-Expires=300") {
		t.Errorf("presigned URL missing expiry: %q", url)
	}

	if _, err := storage.GetURL(ctx, "missing.html"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}

func TestS3Storage_PathValidation(t *testing.T) {
	ctx := context.Background()
	storage, _, _ := newFakeS3(t, "")

	for _, path := range []string{"", "../secret", "/etc/passwd", "home/../../x"} {
		if err := storage.Upload(ctx, path, strings.NewReader("x")); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Upload(%q) = %v, want ErrInvalidPath", path, err)
		}
		if _, err := storage.Download(ctx, path); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Download(%q) = %v, want ErrInvalidPath", path, err)
		}
		if err := storage.Delete(ctx, path); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Delete(%q) = %v, want ErrInvalidPath", path, err)
		}
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, Config{Type: "local", BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("local: %v", err)
	}
	if _, ok := s.(*LocalStorage); !ok {
		t.Errorf("got %T, want *LocalStorage", s)
	}

	s, err = New(ctx, Config{Type: "S3", Bucket: "shots", Region: "eu-west-1", AccessKey: "a", SecretKey: "b"})
	if err != nil {
		t.Fatalf("s3: %v", err)
	}
	if _, ok := s.(*S3Storage); !ok {
		t.Errorf("got %T, want *S3Storage", s)
	}

	if _, err := New(ctx, Config{Type: "s3", Region: "eu-west-1"}); err == nil {
		t.Error("expected error for missing bucket")
	}
	if _, err := New(ctx, Config{Type: "gcs"}); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType, got %v", err)
	}
}

type apiError struct{ code string }

func (e apiError) Error() string                 { return e.code }
func (e apiError) ErrorCode() string             { return e.code }
func (e apiError) ErrorMessage() string          { return e.code }
func (e apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

func TestIsS3NotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantTrue bool
	}{
		{"nil error", nil, false},
		{"generic error", context.Canceled, false},
		{"no such key", apiError{"NoSuchKey"}, true},
		{"head not found", apiError{"NotFound"}, true},
		{"access denied", apiError{"AccessDenied"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isS3NotFoundError(tt.err); got != tt.wantTrue {
				t.Errorf("isS3NotFoundError(%v) = %v, want %v", tt.err, got, tt.wantTrue)
			}
		})
	}
}

package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"

	"resumify/internal/config"
)

func TestLocalSaveOpenDelete(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := store.Save(ctx, "exports/1.pdf", strings.NewReader("%PDF-1.4"), 8, "application/pdf"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	obj, err := store.Open(ctx, "exports/1.pdf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	body, _ := io.ReadAll(obj)
	obj.Close()
	if string(body) != "%PDF-1.4" || obj.Size != 8 {
		t.Fatalf("body=%q size=%d", body, obj.Size)
	}
	if obj.ContentType != "application/pdf" {
		t.Fatalf("content type = %q", obj.ContentType)
	}

	if err := store.Delete(ctx, "exports/1.pdf"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, "exports/1.pdf"); err != nil {
		t.Fatalf("second Delete should be a no-op: %v", err)
	}
	if _, err := store.Open(ctx, "exports/1.pdf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalRejectsTraversal(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save(context.Background(), "../escape.png", bytes.NewReader(nil), 0, ""); err == nil {
		t.Fatal("expected traversal key to be rejected")
	}
	if _, err := store.Open(context.Background(), "../../etc/passwd"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestKeyFromURL(t *testing.T) {
	if key, ok := KeyFromURL(URLForKey("20240101_120000_me.png")); !ok || key != "20240101_120000_me.png" {
		t.Fatalf("key=%q ok=%v", key, ok)
	}
	for _, u := range []string{"https://cdn.example/me.png", "/static/uploads/../x", "/static/uploads/"} {
		if _, ok := KeyFromURL(u); ok {
			t.Errorf("KeyFromURL(%q) should fail", u)
		}
	}
}

func TestSecureFilename(t *testing.T) {
	cases := map[string]string{
		"My Photo.PNG":        "My_Photo.PNG",
		"../../etc/passwd":    "passwd",
		`C:\Users\me\pic.jpg`: "pic.jpg",
		"résumé.gif":          "resume.gif",
		"...":                 "",
	}
	for in, want := range cases {
		if got := SecureFilename(in); got != want {
			t.Errorf("SecureFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPictureKey(t *testing.T) {
	now := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	if got := PictureKey(now, "me.png"); got != "20240203_040506_me.png" {
		t.Fatalf("PictureKey = %q", got)
	}
}

type failingStore struct {
	deleted []string
	err     error
}

func (f *failingStore) Save(context.Context, string, io.Reader, int64, string) error { return nil }
func (f *failingStore) Open(context.Context, string) (*Object, error)              { return nil, ErrNotFound }
func (f *failingStore) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return f.err
}

func TestCleanup(t *testing.T) {
	s := &failingStore{}
	Cleanup(context.Background(), s, "/static/uploads/old.png", nil)
	if len(s.deleted) != 1 || s.deleted[0] != "old.png" {
		t.Fatalf("deleted = %v", s.deleted)
	}

	Cleanup(context.Background(), s, "https://elsewhere.example/x.png", nil)
	Cleanup(context.Background(), s, "", nil)
	if len(s.deleted) != 1 {
		t.Fatalf("foreign or empty urls must be skipped, deleted = %v", s.deleted)
	}

	broken := &failingStore{err: errors.New("disk on fire")}
	Cleanup(context.Background(), broken, "/static/uploads/old.png", nil)
	if len(broken.deleted) != 1 {
		t.Fatal("cleanup should attempt the delete even if it fails")
	}
}

func TestObjectErrorMapsMissingKeys(t *testing.T) {
	cases := []struct {
		err     error
		missing bool
	}{
		{err: minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}, missing: true},
		{err: minio.ErrorResponse{StatusCode: http.StatusNotFound}, missing: true},
		{err: minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: http.StatusNotFound}, missing: false},
		{err: minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}, missing: false},
		{err: errors.New("connection refused"), missing: false},
	}
	for _, tc := range cases {
		got := objectError("get object", "exports/1.pdf", tc.err)
		if errors.Is(got, ErrNotFound) != tc.missing {
			t.Fatalf("objectError(%v) = %v, missing=%v", tc.err, got, tc.missing)
		}
		if !strings.Contains(got.Error(), "exports/1.pdf") {
			t.Fatalf("expected key in %q", got)
		}
	}
	if objectError("get object", "k", nil) != nil {
		t.Fatal("nil error should stay nil")
	}
}

func TestPublicHost(t *testing.T) {
	cases := []struct {
		cfg    config.MinIOConfig
		host   string
		secure bool
		fails  bool
	}{
		{cfg: config.MinIOConfig{Endpoint: "minio:9000"}, host: "minio:9000"},
		{cfg: config.MinIOConfig{Endpoint: "minio:9000", UseSSL: true}, host: "minio:9000", secure: true},
		{cfg: config.MinIOConfig{Endpoint: "minio:9000", PublicEndpoint: "https://files.example.com"}, host: "files.example.com", secure: true},
		{cfg: config.MinIOConfig{Endpoint: "minio:9000", PublicEndpoint: "files.example.com"}, fails: true},
	}
	for _, tc := range cases {
		host, secure, err := publicHost(tc.cfg)
		if tc.fails {
			if err == nil {
				t.Fatalf("%+v: expected error", tc.cfg)
			}
			continue
		}
		if err != nil || host != tc.host || secure != tc.secure {
			t.Fatalf("%+v: got %q %v %v", tc.cfg, host, secure, err)
		}
	}
	if _, err := bucketLookup("sideways"); err == nil {
		t.Fatal("expected invalid lookup error")
	}
}

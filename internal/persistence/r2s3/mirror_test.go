package r2s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestClientPutFile(t *testing.T) {
	var mu sync.Mutex
	var gotPath, gotAuth string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		rw.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "claims-backup", "AKID", "SECRET")
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	local := filepath.Join(t.TempDir(), "claims.zst")
	if err := os.WriteFile(local, []byte("snapshot"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := c.PutFile(context.Background(), "prod/claims.zst", local); err != nil {
		t.Fatalf("put: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotPath != "/claims-backup/prod/claims.zst" {
		t.Fatalf("path = %s", gotPath)
	}
	if !strings.HasPrefix(gotAuth, "AWS4-HMAC-SHA256 Credential=AKID/") {
		t.Fatalf("auth = %s", gotAuth)
	}
	if string(gotBody) != "snapshot" {
		t.Fatalf("body = %q", gotBody)
	}
}

func TestClientPutFileServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		http.Error(rw, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "b", "k", "s")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	local := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(local, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := c.PutFile(context.Background(), "k", local); err == nil {
		t.Fatalf("expected error on 403")
	}
}

func TestCleanObjectKey(t *testing.T) {
	cases := []struct{ in, want string }{
		{"a/b.zst", "a/b.zst"},
		{"/a/b.zst", "a/b.zst"},
		{"a\\b.zst", "a/b.zst"},
		{"a//b", "a/b"},
		{"../secrets", ""},
		{"  ", ""},
	}
	for _, c := range cases {
		if got := cleanObjectKey(c.in); got != c.want {
			t.Fatalf("cleanObjectKey(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestMirrorUploadsRelativeToDataDir(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		rw.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "bkt", "k", "s")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	dataDir := t.TempDir()
	local := filepath.Join(dataDir, "claims.zst")
	if err := os.WriteFile(local, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	m := NewMirror(c, dataDir, "prod", 1, 8, 10*time.Millisecond, nil)
	m.Enqueue(local)
	m.Close() // drains the queue

	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 1 || paths[0] != "/bkt/prod/claims.zst" {
		t.Fatalf("uploads = %v", paths)
	}
	st := m.Stats()
	if st.UploadSuccessTotal != 1 || st.DroppedTotal != 0 {
		t.Fatalf("stats = %+v", st)
	}
}

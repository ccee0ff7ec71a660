package giphy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestSearch_TopResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/gifs/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "cats" {
			t.Errorf("q = %s, want cats", got)
		}
		if got := r.URL.Query().Get("api_key"); got != "test-key" {
			t.Errorf("api_key = %s", got)
		}
		w.Write([]byte(`{"data":[{"id":"abc","title":"Cat GIF","images":{"original":{"url":"https://media.test/abc.gif","width":"480","height":"270"}}}]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "test-key", nil)
	gif, err := c.Search(context.Background(), "cats")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if gif.ID != "abc" || gif.URL != "https://media.test/abc.gif" {
		t.Errorf("gif = %+v", gif)
	}
	if gif.Width != 480 || gif.Height != 270 {
		t.Errorf("dimensions = %dx%d, want 480x270", gif.Width, gif.Height)
	}
}

func TestSearch_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "test-key", nil)
	_, err := c.Search(context.Background(), "xyzzy")
	if !errors.Is(err, ErrNoResults) {
		t.Fatalf("error = %v, want ErrNoResults", err)
	}
}

func TestSearch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "test-key", nil)
	_, err := c.Search(context.Background(), "cats")

	var searchErr *SearchError
	if !errors.As(err, &searchErr) {
		t.Fatalf("error = %v, want SearchError", err)
	}
	if searchErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", searchErr.StatusCode)
	}
}

func TestDownload_WritesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("GIF89a-bytes"))
	}))
	defer srv.Close()

	dst := filepath.Join(t.TempDir(), "out.gif")
	c := NewHTTPClient(srv.URL, "test-key", nil)
	if err := c.Download(context.Background(), srv.URL+"/abc.gif", dst); err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(data) != "GIF89a-bytes" {
		t.Errorf("content = %q", data)
	}
}

func TestDownload_FailureLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dir := t.TempDir()
	dst := filepath.Join(dir, "out.gif")
	c := NewHTTPClient(srv.URL, "test-key", nil)
	if err := c.Download(context.Background(), srv.URL+"/missing.gif", dst); err == nil {
		t.Fatal("Download() error = nil, want failure")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("leftover files after failed download: %v", entries)
	}
}

func TestStub_NotConfigured(t *testing.T) {
	c := NewStubClient(nil)
	if _, err := c.Search(context.Background(), "cats"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("error = %v, want ErrNotConfigured", err)
	}
}

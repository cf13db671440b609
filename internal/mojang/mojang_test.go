package mojang

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newManifestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/manifest.json", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{
			"latest": {"release": "1.21.8", "snapshot": "26w10a"},
			"versions": [
				{"id": "26w10a", "url": "%[1]s/v/26w10a.json"},
				{"id": "1.21.8", "url": "%[1]s/v/1.21.8.json"}
			]
		}`, srv.URL)
	})
	mux.HandleFunc("/v/", func(w http.ResponseWriter, r *http.Request) {
		id := filepath.Base(r.URL.Path)
		fmt.Fprintf(w, `{"downloads": {"server": {"sha1": "feed%s", "url": "%s/jar/%s"}}}`,
			id, srv.URL, id)
	})
	mux.HandleFunc("/jar/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("jarbytes"))
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(
		WithHTTPClient(srv.Client()),
		WithManifestURL(srv.URL+"/manifest.json"),
	)
}

func TestLatestRelease(t *testing.T) {
	srv := newManifestServer(t)
	c := newTestClient(srv)
	v, err := c.Latest(context.Background(), false)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if v.ID != "1.21.8" {
		t.Errorf("ID=%q", v.ID)
	}
	if v.SHA1 != "feed1.21.8.json" {
		t.Errorf("SHA1=%q", v.SHA1)
	}
	if v.URL == "" {
		t.Error("empty URL")
	}
}

func TestLatestSnapshot(t *testing.T) {
	srv := newManifestServer(t)
	c := newTestClient(srv)
	v, err := c.Latest(context.Background(), true)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if v.ID != "26w10a" {
		t.Errorf("ID=%q", v.ID)
	}
}

func TestLatestUnlistedVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"latest": {"release": "9.9.9"}, "versions": []}`)
	}))
	defer srv.Close()
	c := NewClient(WithHTTPClient(srv.Client()), WithManifestURL(srv.URL))
	if _, err := c.Latest(context.Background(), false); err == nil {
		t.Fatal("expected error for unlisted version")
	}
}

func TestLatestServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()
	c := NewClient(WithHTTPClient(srv.Client()), WithManifestURL(srv.URL))
	if _, err := c.Latest(context.Background(), false); err == nil {
		t.Fatal("expected error for 502 manifest")
	}
}

func TestDownload(t *testing.T) {
	srv := newManifestServer(t)
	c := newTestClient(srv)
	dst := filepath.Join(t.TempDir(), "server.jar")
	if err := c.Download(context.Background(), srv.URL+"/jar/x", dst); err != nil {
		t.Fatalf("Download: %v", err)
	}
	b, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "jarbytes" {
		t.Errorf("content=%q", b)
	}
}

func TestDownloadStalledTransferAborts(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(
		WithHTTPClient(srv.Client()),
		WithDownloadTimeout(200*time.Millisecond),
	)
	dst := filepath.Join(t.TempDir(), "server.jar")

	done := make(chan error, 1)
	go func() { done <- c.Download(context.Background(), srv.URL, dst) }()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error for stalled transfer")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Download did not return: transfer not bounded")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Errorf("partial file left behind: %v", err)
	}
}

func TestDownloadBadStatusLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()
	c := NewClient(WithHTTPClient(srv.Client()))
	dst := filepath.Join(t.TempDir(), "server.jar")
	if err := c.Download(context.Background(), srv.URL, dst); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Errorf("partial file left behind: %v", err)
	}
}

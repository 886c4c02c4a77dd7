package httpengine_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nabbar/edgecache/internal/cache"
	"github.com/nabbar/edgecache/internal/httpengine"
	"github.com/nabbar/edgecache/internal/static"
)

func newEngine(t *testing.T, root string) *httpengine.Engine {
	t.Helper()
	c := cache.New(cache.Config{Slots: 64, TTL: time.Hour, PerEntryCap: 5 << 20, GlobalCap: 100 << 20, PurgeEvery: time.Hour})
	routes := static.New()
	return httpengine.NewEngine(root, c, routes, 60*time.Second, "edgecache")
}

func TestHandleServesIndexHTML200(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "index.html"), []byte("x"), 0o644); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	e := newEngine(t, root)
	req, _, _ := httpengine.Parse([]byte("GET /index.html HTTP/1.1\r\nHost: x\r\n\r\n"))

	resp := e.Handle(req, time.Now())
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	if resp.HeaderValue("Content-Type") != "text/html" {
		t.Fatalf("expected text/html, got %s", resp.HeaderValue("Content-Type"))
	}
	if resp.HeaderValue("Content-Length") != "1" {
		t.Fatalf("expected Content-Length 1, got %s", resp.HeaderValue("Content-Length"))
	}
	if resp.HeaderValue("ETag") == "" {
		t.Fatalf("expected an ETag header")
	}
}

func TestHandleIfNoneMatchReturns304(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "index.html"), []byte("x"), 0o644); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	e := newEngine(t, root)
	now := time.Now()

	first, _, _ := httpengine.Parse([]byte("GET /index.html HTTP/1.1\r\nHost: x\r\n\r\n"))
	resp := e.Handle(first, now)
	etag := resp.HeaderValue("ETag")
	if etag == "" {
		t.Fatalf("expected an ETag on the first response")
	}

	second, _, _ := httpengine.Parse([]byte("GET /index.html HTTP/1.1\r\nHost: x\r\nIf-None-Match: " + etag + "\r\n\r\n"))
	resp2 := e.Handle(second, now)
	if resp2.Status != 304 {
		t.Fatalf("expected 304, got %d", resp2.Status)
	}
	if resp2.HeaderValue("ETag") != etag {
		t.Fatalf("expected matching ETag on 304, got %s want %s", resp2.HeaderValue("ETag"), etag)
	}
	if resp2.Source != httpengine.BodyNone && len(resp2.MemBody) != 0 {
		t.Fatalf("expected no body on 304")
	}
}

func TestHandleTraversalReturns403(t *testing.T) {
	root := t.TempDir()
	e := newEngine(t, root)

	req, _, _ := httpengine.Parse([]byte("GET /../etc/passwd HTTP/1.1\r\nHost: x\r\n\r\n"))
	resp := e.Handle(req, time.Now())
	if resp.Status != 403 {
		t.Fatalf("expected 403, got %d", resp.Status)
	}
	if resp.KeepAlive {
		t.Fatalf("expected connection close after 403")
	}
}

func TestHandleUnknownMethodReturns501(t *testing.T) {
	root := t.TempDir()
	e := newEngine(t, root)

	req, _, _ := httpengine.Parse([]byte("POST / HTTP/1.1\r\nHost: x\r\n\r\n"))
	resp := e.Handle(req, time.Now())
	if resp.Status != 501 {
		t.Fatalf("expected 501, got %d", resp.Status)
	}
	if resp.KeepAlive {
		t.Fatalf("expected connection close after 501")
	}
}

func TestHandleMissingFileReturns404(t *testing.T) {
	root := t.TempDir()
	e := newEngine(t, root)

	req, _, _ := httpengine.Parse([]byte("GET /missing.html HTTP/1.1\r\nHost: x\r\n\r\n"))
	resp := e.Handle(req, time.Now())
	if resp.Status != 404 {
		t.Fatalf("expected 404, got %d", resp.Status)
	}
}

func TestHandleHeadSuppressesBody(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "index.html"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	e := newEngine(t, root)

	req, _, _ := httpengine.Parse([]byte("HEAD /index.html HTTP/1.1\r\nHost: x\r\n\r\n"))
	resp := e.Handle(req, time.Now())
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	if !resp.SuppressBody {
		t.Fatalf("expected HEAD to suppress body")
	}
	if resp.HeaderValue("Content-Length") != "5" {
		t.Fatalf("expected Content-Length 5 retained for HEAD, got %s", resp.HeaderValue("Content-Length"))
	}
}

func TestHandleCompressesWithGzipAcceptEncoding(t *testing.T) {
	root := t.TempDir()
	body := strings.Repeat("body { color: red; } ", 256)
	if err := os.WriteFile(filepath.Join(root, "style.css"), []byte(body), 0o644); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	e := newEngine(t, root)

	req, _, _ := httpengine.Parse([]byte("GET /style.css HTTP/1.1\r\nAccept-Encoding: gzip\r\nHost: x\r\n\r\n"))
	resp := e.Handle(req, time.Now())
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	if resp.HeaderValue("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip Content-Encoding, got %q", resp.HeaderValue("Content-Encoding"))
	}
}

func TestHandleRoundTripsThroughCache(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("small body"), 0o644); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	e := newEngine(t, root)
	now := time.Now()

	req1, _, _ := httpengine.Parse([]byte("GET /a.txt HTTP/1.1\r\nHost: x\r\n\r\n"))
	first := e.Handle(req1, now)
	if first.Source != httpengine.BodyMemory && first.Source != httpengine.BodyFile {
		t.Fatalf("expected first response to come from disk, got source %v", first.Source)
	}

	req2, _, _ := httpengine.Parse([]byte("GET /a.txt HTTP/1.1\r\nHost: x\r\n\r\n"))
	second := e.Handle(req2, now)
	if !second.Cached {
		t.Fatalf("expected second identical request to be served from cache")
	}
	if string(second.CacheBytes) == "" {
		t.Fatalf("expected non-empty cache bytes on cache hit")
	}
}

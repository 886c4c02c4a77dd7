package httpengine_test

import (
	"testing"

	"github.com/nabbar/edgecache/internal/httpengine"
)

func TestMIMEForExtensionTable(t *testing.T) {
	cases := map[string]string{
		".html": "text/html",
		".htm":  "text/html",
		".css":  "text/css",
		".js":   "application/javascript",
		".json": "application/json",
		".png":  "image/png",
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".gif":  "image/gif",
		".ico":  "image/x-icon",
		".txt":  "text/plain",
		".pdf":  "application/pdf",
		".xyz":  "application/octet-stream",
	}
	for ext, want := range cases {
		if got := httpengine.MIMEForExtension(ext); got != want {
			t.Errorf("MIMEForExtension(%q) = %q, want %q", ext, got, want)
		}
	}
}

func TestCacheControlForExtensionTable(t *testing.T) {
	cases := map[string]string{
		".css":  "public, max-age=86400, must-revalidate",
		".js":   "public, max-age=86400, must-revalidate",
		".png":  "public, max-age=604800, immutable",
		".html": "public, max-age=300, must-revalidate",
		".pdf":  "public, max-age=86400",
		".xyz":  "public, max-age=3600",
		"":      "no-cache, no-store, must-revalidate",
	}
	for ext, want := range cases {
		if got := httpengine.CacheControlForExtension(ext); got != want {
			t.Errorf("CacheControlForExtension(%q) = %q, want %q", ext, got, want)
		}
	}
}

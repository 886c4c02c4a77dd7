package compress_test

import (
	"bytes"
	"strings"
	"testing"

	kgzip "github.com/klauspost/compress/gzip"
	kflate "github.com/klauspost/compress/flate"

	"github.com/nabbar/edgecache/internal/compress"
)

func TestNegotiatePrefersGzip(t *testing.T) {
	if got := compress.Negotiate("deflate, gzip"); got != compress.Gzip {
		t.Fatalf("expected gzip preferred, got %v", got)
	}
}

func TestNegotiateFallsBackToDeflate(t *testing.T) {
	if got := compress.Negotiate("deflate"); got != compress.Deflate {
		t.Fatalf("expected deflate, got %v", got)
	}
}

func TestNegotiateNone(t *testing.T) {
	if got := compress.Negotiate(""); got != compress.None {
		t.Fatalf("expected none for empty header, got %v", got)
	}
}

func TestCompressGzipRoundTrip(t *testing.T) {
	body := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog. ", 200))

	out, err := compress.Compress(body, compress.Gzip, 6)
	if err != nil {
		t.Fatalf("unexpected compression error: %v", err)
	}

	r, rerr := kgzip.NewReader(bytes.NewReader(out))
	if rerr != nil {
		t.Fatalf("decompress setup: %v", rerr)
	}
	var decoded bytes.Buffer
	if _, rerr = decoded.ReadFrom(r); rerr != nil {
		t.Fatalf("decompress: %v", rerr)
	}
	if !bytes.Equal(decoded.Bytes(), body) {
		t.Fatalf("round-trip mismatch")
	}
}

func TestCompressDeflateRoundTrip(t *testing.T) {
	body := []byte(strings.Repeat("static asset content ", 300))

	out, err := compress.Compress(body, compress.Deflate, 6)
	if err != nil {
		t.Fatalf("unexpected compression error: %v", err)
	}

	r := kflate.NewReader(bytes.NewReader(out))
	var decoded bytes.Buffer
	if _, rerr := decoded.ReadFrom(r); rerr != nil {
		t.Fatalf("decompress: %v", rerr)
	}
	if !bytes.Equal(decoded.Bytes(), body) {
		t.Fatalf("round-trip mismatch")
	}
}

func TestLevelForMIME(t *testing.T) {
	if compress.LevelForMIME("text/html") != 6 {
		t.Fatalf("expected default level 6 for text/html")
	}
	if compress.LevelForMIME("image/svg+xml") != 9 {
		t.Fatalf("expected max level 9 for svg")
	}
	if compress.LevelForMIME("application/octet-stream") != 1 {
		t.Fatalf("expected min level 1 for octet-stream")
	}
}

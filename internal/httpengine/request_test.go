package httpengine_test

import (
	"strings"
	"testing"

	"github.com/nabbar/edgecache/internal/httpengine"
)

func TestParseSimpleGet(t *testing.T) {
	raw := "GET /index.html HTTP/1.1\r\nHost: x\r\n\r\n"
	req, consumed, result := httpengine.Parse([]byte(raw))
	if result != httpengine.ParseOK {
		t.Fatalf("expected ParseOK, got %v", result)
	}
	if consumed != len(raw) {
		t.Fatalf("expected to consume the whole buffer, got %d of %d", consumed, len(raw))
	}
	if req.Method != "GET" || req.Target != "/index.html" || req.Version != "HTTP/1.1" {
		t.Fatalf("unexpected parsed request: %+v", req)
	}
	if req.Get("Host") != "x" {
		t.Fatalf("expected Host header to be readable case-insensitively")
	}
	if !req.KeepAlive {
		t.Fatalf("expected HTTP/1.1 to default keep-alive on")
	}
}

func TestParsePostIsAcceptedAtTransportLevel(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nHost: x\r\n\r\n"
	req, _, result := httpengine.Parse([]byte(raw))
	if result != httpengine.ParseOK {
		t.Fatalf("transport-level parse should accept any method; got %v", result)
	}
	if req.Method != "POST" {
		t.Fatalf("expected POST, got %s", req.Method)
	}
}

func TestParseConnectionCloseOverridesKeepAlive(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nConnection: close\r\n\r\n"
	req, _, _ := httpengine.Parse([]byte(raw))
	if req.KeepAlive {
		t.Fatalf("expected Connection: close to disable keep-alive")
	}
}

func TestParseHTTP10DefaultsCloseUnlessKeepAlive(t *testing.T) {
	req, _, _ := httpengine.Parse([]byte("GET / HTTP/1.0\r\n\r\n"))
	if req.KeepAlive {
		t.Fatalf("expected HTTP/1.0 to default keep-alive off")
	}

	req, _, _ = httpengine.Parse([]byte("GET / HTTP/1.0\r\nConnection: keep-alive\r\n\r\n"))
	if !req.KeepAlive {
		t.Fatalf("expected explicit keep-alive header to enable it on HTTP/1.0")
	}
}

func TestParseIncompleteWithoutTerminator(t *testing.T) {
	_, _, result := httpengine.Parse([]byte("GET / HTTP/1.1\r\nHost: x\r\n"))
	if result != httpengine.ParseIncomplete {
		t.Fatalf("expected ParseIncomplete, got %v", result)
	}
}

func TestParseTooLarge(t *testing.T) {
	huge := strings.Repeat("A", httpengine.MaxRequestBuffer+10)
	_, _, result := httpengine.Parse([]byte(huge))
	if result != httpengine.ParseTooLarge {
		t.Fatalf("expected ParseTooLarge, got %v", result)
	}
}

func TestParseUnsupportedVersion(t *testing.T) {
	_, _, result := httpengine.Parse([]byte("GET / HTTP/2.0\r\nHost: x\r\n\r\n"))
	if result != httpengine.ParseUnsupportedVersion {
		t.Fatalf("expected ParseUnsupportedVersion, got %v", result)
	}
}

func TestParseMalformedRequestLine(t *testing.T) {
	_, _, result := httpengine.Parse([]byte("GET /index.html\r\nHost: x\r\n\r\n"))
	if result != httpengine.ParseMalformed {
		t.Fatalf("expected ParseMalformed for a two-field request line, got %v", result)
	}
}

func TestParseMethodTooLong(t *testing.T) {
	raw := strings.Repeat("M", httpengine.MaxMethodLen+1) + " / HTTP/1.1\r\n\r\n"
	_, _, result := httpengine.Parse([]byte(raw))
	if result != httpengine.ParseMalformed {
		t.Fatalf("expected ParseMalformed for oversized method, got %v", result)
	}
}

func TestParsePipelinedRequestsLeavesTrailerUnconsumed(t *testing.T) {
	first := "GET /a.html HTTP/1.1\r\nHost: x\r\n\r\n"
	second := "GET /b.html HTTP/1.1\r\n"
	buf := []byte(first + second)

	req, consumed, result := httpengine.Parse(buf)
	if result != httpengine.ParseOK {
		t.Fatalf("expected first pipelined request to parse, got %v", result)
	}
	if req.Target != "/a.html" {
		t.Fatalf("expected first request target /a.html, got %s", req.Target)
	}
	if consumed != len(first) {
		t.Fatalf("expected to consume exactly the first request, consumed=%d want=%d", consumed, len(first))
	}

	remainder := buf[consumed:]
	if string(remainder) != second {
		t.Fatalf("expected remainder to be the trailing partial request, got %q", remainder)
	}
}

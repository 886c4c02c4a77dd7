/*
 *  MIT License
 *
 *  Copyright (c) 2020 Nicolas JUHEL
 *
 *  Permission is hereby granted, free of charge, to any person obtaining a copy
 *  of this software and associated documentation files (the "Software"), to deal
 *  in the Software without restriction, including without limitation the rights
 *  to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 *  copies of the Software, and to permit persons to whom the Software is
 *  furnished to do so, subject to the following conditions:
 *
 *  The above copyright notice and this permission notice shall be included in all
 *  copies or substantial portions of the Software.
 *
 *  THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 *  IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 *  FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 *  AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 *  LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 *  OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 *  SOFTWARE.
 *
 */

// Package compress implements component E: gzip/deflate encoding of a
// response body, with per-MIME compression level (§4.E). Shaped like the
// teacher's archive/compress.Algorithm enum (List/String/DetectHeader), but
// restricted to exactly {none, gzip, deflate} as the spec requires, and
// backed by klauspost/compress rather than stdlib compress/gzip —
// klauspost's encoders are drop-in faster implementations of the same
// interfaces, and the spec explicitly targets "extreme concurrency", which
// is the klauspost package's stated reason to exist.
package compress

import (
	"bytes"

	kgzip "github.com/klauspost/compress/gzip"
	kflate "github.com/klauspost/compress/flate"

	"github.com/nabbar/edgecache/internal/nerr"
)

// Algorithm enumerates the content-codings this server negotiates.
type Algorithm uint8

const (
	None Algorithm = iota
	Gzip
	Deflate
)

// List returns every algorithm this server can negotiate.
func List() []Algorithm {
	return []Algorithm{None, Gzip, Deflate}
}

func (a Algorithm) String() string {
	switch a {
	case Gzip:
		return "gzip"
	case Deflate:
		return "deflate"
	default:
		return "none"
	}
}

// Negotiate reduces an Accept-Encoding header value to the server's
// supported set, preferring gzip over deflate when both are offered,
// matching the vary-key enum collapsing described in §9's Open Questions.
func Negotiate(acceptEncoding string) Algorithm {
	hasGzip := containsToken(acceptEncoding, "gzip")
	hasDeflate := containsToken(acceptEncoding, "deflate")

	switch {
	case hasGzip:
		return Gzip
	case hasDeflate:
		return Deflate
	default:
		return None
	}
}

func containsToken(header, token string) bool {
	for _, part := range splitComma(header) {
		if trimSpace(part) == token || hasPrefixQ(trimSpace(part), token) {
			return true
		}
	}
	return false
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}

func hasPrefixQ(part, token string) bool {
	// Matches "gzip;q=0.8" style tokens with a quality parameter.
	if len(part) <= len(token) {
		return false
	}
	return part[:len(token)] == token && part[len(token)] == ';'
}

// LevelForMIME returns the compression level §4.E assigns to a MIME class.
// Text-like content compresses at the default level, fonts/SVG at maximum,
// and already-dense binary formats at minimum.
func LevelForMIME(mime string) int {
	switch {
	case isTextLike(mime):
		return 6
	case isFontOrSVG(mime):
		return 9
	default:
		return 1
	}
}

func isTextLike(mime string) bool {
	switch mime {
	case "text/html", "text/css", "application/javascript", "text/plain", "application/json":
		return true
	default:
		return false
	}
}

func isFontOrSVG(mime string) bool {
	switch mime {
	case "image/svg+xml", "font/woff", "font/woff2", "font/ttf", "font/otf":
		return true
	default:
		return false
	}
}

// Compress encodes body with algo at level, returning Rejected (via a
// nerr.Error) if the result expands past twice the input length — the
// caller then falls back to the uncompressed body per §4.E.
func Compress(body []byte, algo Algorithm, level int) ([]byte, nerr.Error) {
	var buf bytes.Buffer

	switch algo {
	case Gzip:
		w, err := kgzip.NewWriterLevel(&buf, level)
		if err != nil {
			return nil, nerr.New(nerr.CodeInternalFailure, nerr.LevelError, "creating gzip writer", err)
		}
		if _, err = w.Write(body); err != nil {
			return nil, nerr.New(nerr.CodeInternalFailure, nerr.LevelError, "gzip write", err)
		}
		if err = w.Close(); err != nil {
			return nil, nerr.New(nerr.CodeInternalFailure, nerr.LevelError, "gzip close", err)
		}
	case Deflate:
		w, err := kflate.NewWriter(&buf, level)
		if err != nil {
			return nil, nerr.New(nerr.CodeInternalFailure, nerr.LevelError, "creating flate writer", err)
		}
		if _, err = w.Write(body); err != nil {
			return nil, nerr.New(nerr.CodeInternalFailure, nerr.LevelError, "flate write", err)
		}
		if err = w.Close(); err != nil {
			return nil, nerr.New(nerr.CodeInternalFailure, nerr.LevelError, "flate close", err)
		}
	default:
		return body, nil
	}

	if buf.Len() > 2*len(body) && len(body) > 0 {
		return nil, nerr.New(nerr.CodeInternalFailure, nerr.LevelDebug, "compression expanded body past 2x, falling back", nil)
	}

	return buf.Bytes(), nil
}

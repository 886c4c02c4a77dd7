/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package httpengine implements component G: request parsing, handler
// dispatch (conditional validation, MIME/cache-control policy), and
// response rendering (§4.G). Parse splits the header block on CRLF and the
// request line on single spaces with the strings package, using neither
// regex nor net/textproto; the contract
// itself (method/URI/version length caps, CRLFCRLF framing, MAX_HEADERS)
// is taken verbatim from the spec since no example repo implements a
// hand-rolled HTTP/1.1 line parser with these exact limits.
package httpengine

import (
	"strings"

	"github.com/nabbar/edgecache/internal/nerr"
)

const (
	MaxMethodLen     = 15
	MaxURILen        = 2047
	MaxVersionLen    = 15
	MaxHeaders       = 256
	MaxHeaderValue   = 8 * 1024
	MaxRequestBuffer = 8*1024 - 1
)

// Header is one ordered name/value pair; name matching is case-insensitive
// on read (§3 Request).
type Header struct {
	Name  string
	Value string
}

// Request is the parsed view of one HTTP/1.0 or HTTP/1.1 request line plus
// headers (§3).
type Request struct {
	Method    string
	Target    string
	Version   string
	Headers   []Header
	KeepAlive bool
}

// Get returns the first header value matching name case-insensitively, or
// "" if absent.
func (r *Request) Get(name string) string {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// ParseResult classifies the outcome of Parse.
type ParseResult uint8

const (
	ParseOK ParseResult = iota
	ParseIncomplete
	ParseMalformed
	ParseTooLarge
	ParseUnsupportedVersion
)

// Parse implements §4.G's parsing contract over a single connection buffer.
// It returns the parsed Request, the number of bytes consumed (so the
// caller can memmove any trailing partial request to the buffer head), and
// a ParseResult. ParseIncomplete means no CRLFCRLF has appeared yet and the
// buffer is still within MaxRequestBuffer — the caller should wait for more
// bytes rather than treat this as an error.
func Parse(buf []byte) (*Request, int, ParseResult) {
	headerEnd := indexCRLFCRLF(buf)
	if headerEnd < 0 {
		if len(buf) >= MaxRequestBuffer {
			return nil, 0, ParseTooLarge
		}
		return nil, 0, ParseIncomplete
	}

	block := buf[:headerEnd]
	consumed := headerEnd + 4

	lines := splitCRLF(block)
	if len(lines) == 0 || lines[0] == "" {
		return nil, consumed, ParseMalformed
	}

	req, result := parseRequestLine(lines[0])
	if result != ParseOK {
		return nil, consumed, result
	}

	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		if len(req.Headers) >= MaxHeaders {
			break
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			return nil, consumed, ParseMalformed
		}
		name := line[:colon]
		value := strings.TrimLeft(line[colon+1:], " \t")
		if len(value) > MaxHeaderValue {
			value = value[:MaxHeaderValue]
		}
		req.Headers = append(req.Headers, Header{Name: name, Value: value})
	}

	req.KeepAlive = deriveKeepAlive(req)
	return req, consumed, ParseOK
}

func parseRequestLine(line string) (*Request, ParseResult) {
	parts := strings.Split(line, " ")
	if len(parts) != 3 {
		return nil, ParseMalformed
	}
	method, target, version := parts[0], parts[1], parts[2]

	if len(method) == 0 || len(method) > MaxMethodLen {
		return nil, ParseMalformed
	}
	if len(target) == 0 || len(target) > MaxURILen {
		return nil, ParseMalformed
	}
	if len(version) == 0 || len(version) > MaxVersionLen {
		return nil, ParseMalformed
	}
	if version != "HTTP/1.0" && version != "HTTP/1.1" {
		return nil, ParseUnsupportedVersion
	}

	return &Request{Method: method, Target: target, Version: version}, ParseOK
}

func deriveKeepAlive(r *Request) bool {
	conn := strings.ToLower(r.Get("Connection"))
	if r.Version == "HTTP/1.1" {
		return conn != "close"
	}
	return conn == "keep-alive"
}

func indexCRLFCRLF(buf []byte) int {
	for i := 0; i+3 < len(buf); i++ {
		if buf[i] == '\r' && buf[i+1] == '\n' && buf[i+2] == '\r' && buf[i+3] == '\n' {
			return i
		}
	}
	return -1
}

func splitCRLF(block []byte) []string {
	s := string(block)
	return strings.Split(s, "\r\n")
}

// AsError converts a non-OK ParseResult into the matching nerr.Error (§7).
func (p ParseResult) AsError() nerr.Error {
	switch p {
	case ParseMalformed:
		return nerr.New(nerr.CodeParseMalformed, nerr.LevelWarning, "malformed request", nil)
	case ParseTooLarge:
		return nerr.New(nerr.CodeParseTooLarge, nerr.LevelWarning, "request exceeds connection buffer", nil)
	case ParseUnsupportedVersion:
		return nerr.New(nerr.CodeUnsupportedVersion, nerr.LevelWarning, "unsupported HTTP version", nil)
	default:
		return nil
	}
}

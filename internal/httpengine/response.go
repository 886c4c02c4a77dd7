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

package httpengine

import (
	"fmt"
	"os"

	"github.com/nabbar/edgecache/internal/compress"
)

// BodySource tags which of the three body representations (§3 Response) is
// active. Exactly one is ever populated on a given Response.
type BodySource uint8

const (
	BodyNone BodySource = iota
	BodyMemory
	BodyFile
	BodyCache
)

// Response is the assembled reply: a status line, ordered headers, and
// exactly one body source (§3 Response, §8 invariant).
type Response struct {
	Status int
	Reason string
	Headers []Header

	Source BodySource

	MemBody []byte // BodyMemory

	File       *os.File // BodyFile
	FileOffset int64
	FileLength int64

	CacheBytes []byte // BodyCache: full pre-assembled wire bytes (status+headers+body)

	Encoding  compress.Algorithm
	KeepAlive bool
	Cached    bool
	SuppressBody bool // HEAD requests retain headers/Content-Length but send no body
}

// SetHeader appends or replaces a header by case-insensitive name.
func (r *Response) SetHeader(name, value string) {
	for i := range r.Headers {
		if equalFold(r.Headers[i].Name, name) {
			r.Headers[i].Value = value
			return
		}
	}
	r.Headers = append(r.Headers, Header{Name: name, Value: value})
}

// HeaderValue returns the first header value matching name, case-insensitively.
func (r *Response) HeaderValue(name string) string {
	for _, h := range r.Headers {
		if equalFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// StatusLine builds "HTTP/1.1 200 OK\r\n"-style status line text.
func (r *Response) StatusLine(version string) string {
	return fmt.Sprintf("%s %d %s\r\n", version, r.Status, r.Reason)
}

// reasonPhrase returns the standard reason phrase for a status code.
func reasonPhrase(code int) string {
	switch code {
	case 200:
		return "OK"
	case 206:
		return "Partial Content"
	case 301:
		return "Moved Permanently"
	case 304:
		return "Not Modified"
	case 400:
		return "Bad Request"
	case 403:
		return "Forbidden"
	case 404:
		return "Not Found"
	case 413:
		return "Payload Too Large"
	case 500:
		return "Internal Server Error"
	case 501:
		return "Not Implemented"
	case 505:
		return "HTTP Version Not Supported"
	default:
		return "Unknown"
	}
}

// NewResponse builds an empty Response with the reason phrase filled in for
// status.
func NewResponse(status int) *Response {
	return &Response{Status: status, Reason: reasonPhrase(status)}
}

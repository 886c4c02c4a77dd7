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
	"bytes"
	"io"

	"github.com/nabbar/edgecache/internal/nerr"
)

// headerBlock serializes the status line and headers into one contiguous
// buffer (§4.G Rendering contract: "headers are serialized into a single
// contiguous buffer").
func headerBlock(version string, resp *Response) []byte {
	var b bytes.Buffer
	b.WriteString(resp.StatusLine(version))
	for _, h := range resp.Headers {
		b.WriteString(h.Name)
		b.WriteString(": ")
		b.WriteString(h.Value)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	return b.Bytes()
}

// AssembleWireBytes pre-assembles the full response (status line + headers
// + body) for a cacheable 200, matching §4.G step 10. Handle uses it to
// populate a cache entry; Render builds live responses from headerBlock.
func AssembleWireBytes(version string, resp *Response) []byte {
	head := headerBlock(version, resp)
	if resp.SuppressBody {
		return head
	}
	out := make([]byte, 0, len(head)+len(resp.MemBody))
	out = append(out, head...)
	out = append(out, resp.MemBody...)
	return out
}

// Render writes resp to w: cache-sourced responses are pre-assembled wire
// bytes written verbatim; all other sources serialize a fresh header block
// followed by the body (memory, file, or none). File bodies are streamed
// with io.Copy from an *io.SectionReader positioned at FileOffset; because
// the source is a section reader rather than an *os.File, the copy never
// reaches the platform sendfile(2) path, so this is the portable fallback
// §9's design notes license in place of true zero-copy file transmission.
func Render(w io.Writer, version string, resp *Response) nerr.Error {
	if resp.Source == BodyCache {
		if _, err := w.Write(resp.CacheBytes); err != nil {
			return nerr.New(nerr.CodeInternalFailure, nerr.LevelDebug, "write cache body", err)
		}
		return nil
	}

	head := headerBlock(version, resp)
	if _, err := w.Write(head); err != nil {
		return nerr.New(nerr.CodeInternalFailure, nerr.LevelDebug, "write headers", err)
	}

	if resp.SuppressBody {
		return nil
	}

	switch resp.Source {
	case BodyMemory:
		if _, err := w.Write(resp.MemBody); err != nil {
			return nerr.New(nerr.CodeInternalFailure, nerr.LevelDebug, "write memory body", err)
		}
	case BodyFile:
		if resp.File == nil {
			return nil
		}
		section := io.NewSectionReader(resp.File, resp.FileOffset, resp.FileLength)
		if _, err := io.Copy(w, section); err != nil {
			return nerr.New(nerr.CodeInternalFailure, nerr.LevelDebug, "write file body", err)
		}
	case BodyNone:
		// no body to write
	}

	return nil
}

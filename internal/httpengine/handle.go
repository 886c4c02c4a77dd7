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
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/nabbar/edgecache/internal/cache"
	"github.com/nabbar/edgecache/internal/compress"
	"github.com/nabbar/edgecache/internal/pathresolve"
	"github.com/nabbar/edgecache/internal/static"
)

const maxCompressibleFileSize = 10 * 1024 * 1024
const maxCacheableBodySize = 1024 * 1024

// Metrics is the subset of internal/metrics.Registry the engine taps,
// declared here (rather than importing internal/metrics directly) so this
// package stays agnostic to the exporter, the same structural-interface
// pattern internal/connloop uses for its own Metrics.
type Metrics interface {
	ObserveCompressionRatio(float64)
}

// Engine wires together the path resolver, response cache, compressor and
// static-route overlay into the request handler described in §4.G. It is
// the orchestration point for components D, E, F and G, constructed once
// per worker and shared by every connection that worker serves.
type Engine struct {
	Root             string
	Cache            *cache.Cache
	Routes           *static.Routes
	KeepAliveTimeout time.Duration
	ServerName       string
	Metrics          Metrics
}

// NewEngine builds an Engine over the given document root, cache, and
// static-route overlay.
func NewEngine(root string, c *cache.Cache, routes *static.Routes, keepAlive time.Duration, serverName string) *Engine {
	return &Engine{Root: root, Cache: c, Routes: routes, KeepAliveTimeout: keepAlive, ServerName: serverName}
}

// WithMetrics attaches an optional metrics sink, returning e for chaining.
func (e *Engine) WithMetrics(m Metrics) *Engine {
	e.Metrics = m
	return e
}

func algoToEncoding(a compress.Algorithm) cache.Encoding {
	switch a {
	case compress.Gzip:
		return cache.EncodingGzip
	case compress.Deflate:
		return cache.EncodingDeflate
	default:
		return cache.EncodingNone
	}
}

// Handle implements §4.G's numbered request-handling steps for GET and HEAD.
func (e *Engine) Handle(req *Request, now time.Time) *Response {
	if req.Method != "GET" && req.Method != "HEAD" {
		return e.finalize(req, e.plainError(501, req), false)
	}

	target := req.Target
	if dst, ok := e.Routes.GetRedirect(target); ok {
		resp := NewResponse(301)
		resp.SetHeader("Location", dst)
		resp.SetHeader("Content-Length", "0")
		return e.finalize(req, resp, false)
	}

	requestPath := target
	if idx := e.Routes.GetIndex("", requestPath); idx != "" {
		requestPath = joinDirIndex(requestPath, idx)
	} else if requestPath == "/" {
		requestPath = "/index.html"
	}

	canonical, rerr := pathresolve.Resolve(e.Root, requestPath)
	if rerr != nil {
		return e.finalize(req, e.plainError(403, req), true)
	}

	algo := compress.Negotiate(req.Get("Accept-Encoding"))
	vary := algoToEncoding(algo)

	if entry, ok := e.Cache.Lookup(canonical, vary, now); ok {
		if ETagMatches(req.Get("If-None-Match"), entry.ETag) {
			return e.notModified(req, entry.ETag)
		}
		resp := NewResponse(200)
		resp.Source = BodyCache
		resp.CacheBytes = entry.Bytes
		if req.Method == "HEAD" {
			if end := bytes.Index(entry.Bytes, []byte("\r\n\r\n")); end >= 0 {
				resp.CacheBytes = entry.Bytes[:end+4]
			}
			resp.SuppressBody = true
		}
		resp.Cached = true
		resp.KeepAlive = req.KeepAlive
		return resp
	}

	fi, statErr := os.Stat(canonical)
	if statErr != nil {
		return e.finalize(req, e.plainError(404, req), false)
	}
	if fi.IsDir() {
		return e.finalize(req, e.plainError(404, req), false)
	}

	etag := deriveETagFromStat(fi)

	if ifNoneMatch := req.Get("If-None-Match"); ifNoneMatch != "" && ETagMatches(ifNoneMatch, etag) {
		return e.notModified(req, etag)
	}
	if ims := req.Get("If-Modified-Since"); ims != "" {
		if t, ok := ParseHTTPDate(ims); ok && NotNewerThan(fi.ModTime(), t) {
			return e.notModified(req, etag)
		}
	}

	ext := filepath.Ext(canonical)
	mime := MIMEForExtension(ext)

	resp := NewResponse(200)
	resp.SetHeader("Content-Type", mime)
	resp.SetHeader("Last-Modified", FormatHTTPDate(fi.ModTime()))
	resp.SetHeader("ETag", etag)
	resp.SetHeader("Vary", "Accept-Encoding, User-Agent")
	resp.SetHeader("Cache-Control", CacheControlForExtension(ext))
	if e.Routes.IsDownload(canonical) {
		resp.SetHeader("Content-Disposition", "attachment; filename=\""+filepath.Base(canonical)+"\"")
	}

	compressible := IsCompressible(mime) && algo != compress.None && fi.Size() <= maxCompressibleFileSize
	cacheableWhole := fi.Size() < maxCacheableBodySize

	if compressible {
		body, rerr := os.ReadFile(canonical)
		if rerr != nil {
			return e.finalize(req, e.plainError(404, req), false)
		}
		compressed, cerr := compress.Compress(body, algo, compress.LevelForMIME(mime))
		if cerr != nil {
			resp.Source = BodyMemory
			resp.MemBody = body
		} else {
			resp.Source = BodyMemory
			resp.MemBody = compressed
			resp.Encoding = algo
			resp.SetHeader("Content-Encoding", algo.String())
			if e.Metrics != nil && len(body) > 0 {
				e.Metrics.ObserveCompressionRatio(float64(len(compressed)) / float64(len(body)))
			}
		}
		resp.SetHeader("Content-Length", strconv.Itoa(len(resp.MemBody)))
	} else if cacheableWhole {
		body, rerr := os.ReadFile(canonical)
		if rerr != nil {
			return e.finalize(req, e.plainError(404, req), false)
		}
		resp.Source = BodyMemory
		resp.MemBody = body
		resp.SetHeader("Content-Length", strconv.Itoa(len(body)))
	} else {
		f, ferr := os.Open(canonical)
		if ferr != nil {
			return e.finalize(req, e.plainError(404, req), false)
		}
		resp.Source = BodyFile
		resp.File = f
		resp.FileOffset = 0
		resp.FileLength = fi.Size()
		resp.SetHeader("Content-Length", strconv.FormatInt(fi.Size(), 10))
	}

	resp = e.finalize(req, resp, false)

	if resp.Source == BodyMemory && resp.Encoding == compress.None && len(resp.MemBody) < maxCacheableBodySize {
		wire := AssembleWireBytes(req.Version, resp)
		e.Cache.Insert(canonical, vary, etag, wire, now)
	}

	if req.Method == "HEAD" {
		resp.SuppressBody = true
	}

	return resp
}

// joinDirIndex appends an index filename registered for a directory route
// (§4.G point 2's expansion beyond the literal "/" -> index.html mapping),
// inserting the separating slash the route string may be missing.
func joinDirIndex(route, file string) string {
	if strings.HasSuffix(route, "/") {
		return route + file
	}
	return route + "/" + file
}

// finalize applies §4.G's keep-alive rules: any non-2xx outcome caused by a
// client error forces close; otherwise the request's derived KeepAlive
// flag is honored, and forceClose overrides it (passed by the path-rejection
// 403).
func (e *Engine) finalize(req *Request, resp *Response, forceClose bool) *Response {
	closeStatuses := map[int]bool{400: true, 403: true, 413: true, 501: true, 505: true}
	if forceClose || closeStatuses[resp.Status] {
		resp.KeepAlive = false
	} else if resp.Status != 0 {
		resp.KeepAlive = req.KeepAlive
	}

	if resp.KeepAlive {
		resp.SetHeader("Connection", "keep-alive")
		resp.SetHeader("Keep-Alive", "timeout="+strconv.Itoa(int(e.KeepAliveTimeout.Seconds())))
	} else {
		resp.SetHeader("Connection", "close")
	}

	if e.ServerName != "" {
		resp.SetHeader("Server", e.ServerName)
	}

	return resp
}

func (e *Engine) notModified(req *Request, etag string) *Response {
	resp := NewResponse(304)
	resp.SetHeader("ETag", etag)
	resp.SetHeader("Cache-Control", "public, max-age=300, must-revalidate")
	resp.SetHeader("Content-Length", "0")
	resp.KeepAlive = req.KeepAlive
	return e.finalize(req, resp, false)
}

func (e *Engine) plainError(status int, req *Request) *Response {
	resp := NewResponse(status)
	resp.Source = BodyNone
	resp.SetHeader("Content-Length", "0")
	return resp
}

func deriveETagFromStat(fi os.FileInfo) string {
	var inode uint64
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		inode = st.Ino
	}
	return DeriveETag(inode, fi.Size(), fi.ModTime().Unix())
}

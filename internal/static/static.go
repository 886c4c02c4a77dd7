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
 */

// Package static holds the per-route supplementary configuration the
// distilled spec collapses into "mapping / to /index.html" (§4.G point 2):
// per-directory index overrides, forced-download paths, and redirect
// aliases. Grounded on the teacher's static package, whose implementation
// shipped only as Ginkgo test files in the retrieved pack
// (staticDownload/staticIndex/staticRedirect interfaces) — this rebuilds
// the same three interfaces against the edge cache's own route model.
// staticSpecific (the teacher's custom per-route middleware override) is
// deliberately not carried: it is a plugin hook, and the spec's Non-goals
// forbid "dynamic content or plugin system".
package static

import "sync"

// Routes holds the three per-route overlays the spec's expansion adds on
// top of the baseline "/ -> /index.html" mapping.
type Routes struct {
	mu        sync.RWMutex
	index     map[string]string // "group|route" -> index file
	download  map[string]bool   // file path -> forced attachment
	redirects map[string]string // source path -> destination path
}

// New builds an empty Routes overlay.
func New() *Routes {
	return &Routes{
		index:     map[string]string{},
		download:  map[string]bool{},
		redirects: map[string]string{},
	}
}

func key(group, route string) string {
	return group + "|" + route
}

// SetIndex registers the index file served for a given group+route pair.
func (r *Routes) SetIndex(group, route, file string) {
	if route == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.index[key(group, route)] = file
}

// GetIndex returns the index file registered for group+route, or "" if none.
func (r *Routes) GetIndex(group, route string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index[key(group, route)]
}

// IsIndex reports whether file is registered as an index for any route.
func (r *Routes) IsIndex(file string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.index {
		if f == file {
			return true
		}
	}
	return false
}

// SetDownload marks (or unmarks) file as forced Content-Disposition: attachment.
func (r *Routes) SetDownload(file string, download bool) {
	if file == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if download {
		r.download[file] = true
	} else {
		delete(r.download, file)
	}
}

// IsDownload reports whether file is forced to download.
func (r *Routes) IsDownload(file string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.download[file]
}

// SetRedirect registers a 301 alias from source to destination.
func (r *Routes) SetRedirect(source, destination string) {
	if source == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redirects[source] = destination
}

// GetRedirect returns the destination registered for source, and whether one exists.
func (r *Routes) GetRedirect(source string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dst, ok := r.redirects[source]
	return dst, ok
}

// LoadFromConfig seeds the overlay from the config-file tables
// (static_index_map, static_download_paths, static_redirects).
func (r *Routes) LoadFromConfig(indexMap map[string]string, downloadPaths []string, redirects map[string]string) {
	for route, file := range indexMap {
		r.SetIndex("", route, file)
	}
	for _, p := range downloadPaths {
		r.SetDownload(p, true)
	}
	for src, dst := range redirects {
		r.SetRedirect(src, dst)
	}
}

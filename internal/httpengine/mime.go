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

import "strings"

var mimeTable = map[string]string{
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
}

const defaultMIME = "application/octet-stream"

// MIMEForExtension implements §4.G's baseline MIME table.
func MIMEForExtension(ext string) string {
	if m, ok := mimeTable[strings.ToLower(ext)]; ok {
		return m
	}
	return defaultMIME
}

// CacheControlForExtension implements §4.G's Cache-Control table.
func CacheControlForExtension(ext string) string {
	ext = strings.ToLower(ext)
	if ext == "" {
		return "no-cache, no-store, must-revalidate"
	}
	switch ext {
	case ".css", ".js":
		return "public, max-age=86400, must-revalidate"
	case ".png", ".jpg", ".jpeg", ".gif", ".ico":
		return "public, max-age=604800, immutable"
	case ".html", ".htm":
		return "public, max-age=300, must-revalidate"
	case ".pdf", ".doc", ".docx":
		return "public, max-age=86400"
	default:
		return "public, max-age=3600"
	}
}

// IsCompressible reports whether a MIME type is eligible for on-the-fly
// compression (§4.G step 9): the text-like types listed below plus SVG.
// Font types are not treated as compressible here.
func IsCompressible(mime string) bool {
	switch mime {
	case "text/html", "text/css", "application/javascript", "application/json", "text/plain":
		return true
	case "image/svg+xml":
		return true
	default:
		return false
	}
}

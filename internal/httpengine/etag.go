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
	"strings"
	"time"
)

// DeriveETag builds the quoted "inode-size-mtime" token (§3 Cache entry,
// §4.G step 5) from lowercase-hex components.
func DeriveETag(inode uint64, size int64, mtime int64) string {
	return fmt.Sprintf(`"%x-%x-%x"`, inode, size, mtime)
}

// stripETagToken removes an optional weak "W/" prefix and surrounding
// double quotes from one If-None-Match token (§4.G step 4/6).
func stripETagToken(tok string) string {
	tok = strings.TrimSpace(tok)
	tok = strings.TrimPrefix(tok, "W/")
	tok = strings.TrimPrefix(tok, "w/")
	return strings.Trim(tok, `"`)
}

// ETagMatches implements the conditional comparison rules common to §4.G
// steps 4 and 6: every comma-separated token of ifNoneMatch is stripped of
// surrounding whitespace, optional weak prefix, and quotes, and compared
// against the stripped stored ETag; a bare "*" always matches.
func ETagMatches(ifNoneMatch, storedETag string) bool {
	if ifNoneMatch == "" {
		return false
	}
	if strings.TrimSpace(ifNoneMatch) == "*" {
		return true
	}

	stored := stripETagToken(storedETag)
	for _, tok := range strings.Split(ifNoneMatch, ",") {
		if stripETagToken(tok) == stored {
			return true
		}
	}
	return false
}

var httpDateLayouts = []string{
	time.RFC1123,             // "Sun, 06 Nov 1994 08:49:37 GMT" (RFC-1123)
	"Monday, 02-Jan-06 15:04:05 MST", // RFC-850
	"Mon Jan _2 15:04:05 2006",       // asctime
}

// ParseHTTPDate accepts RFC-1123, RFC-850, and asctime formats (§4.G step 7).
func ParseHTTPDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range httpDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// FormatHTTPDate renders t in RFC-1123 GMT form for Last-Modified (§4.G step 8).
// time.RFC1123 formats a UTC time's zone as "UTC", not the literal "GMT"
// HTTP dates require, so the zone is named explicitly before formatting.
func FormatHTTPDate(t time.Time) string {
	return t.UTC().In(time.FixedZone("GMT", 0)).Format(time.RFC1123)
}

// NotNewerThan reports whether mtime, truncated to seconds, is not newer
// than ifModifiedSince — i.e. the cached representation is still fresh
// (§4.G step 7: "if not newer -> 304").
func NotNewerThan(mtime time.Time, ifModifiedSince time.Time) bool {
	return !mtime.Truncate(time.Second).After(ifModifiedSince.Truncate(time.Second))
}

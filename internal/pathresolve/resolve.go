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

// Package pathresolve implements component D: canonicalizing a request path
// against the configured document root and rejecting traversal, including
// traversal hidden behind symlinks (§4.D). This is inherently a
// filepath/os-only concern; no library in the retrieved pack offers a
// path-traversal canonicalizer, so it stays on the standard library.
package pathresolve

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/nabbar/edgecache/internal/nerr"
)

// Resolve canonicalizes requestPath under root per §4.D's six steps,
// rejecting literal ".." segments, embedded NULs, and symlink escapes.
func Resolve(root, requestPath string) (string, nerr.Error) {
	if strings.Contains(requestPath, "..") {
		return "", nerr.New(nerr.CodePathRejected, nerr.LevelWarning, "path contains traversal segment", nil)
	}
	if strings.ContainsRune(requestPath, 0) {
		return "", nerr.New(nerr.CodePathRejected, nerr.LevelWarning, "path contains embedded NUL", nil)
	}

	canonicalRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		canonicalRoot, err = filepath.Abs(root)
		if err != nil {
			return "", nerr.New(nerr.CodePathRejected, nerr.LevelError, "canonicalizing document root", err)
		}
	}
	canonicalRoot = filepath.Clean(canonicalRoot)

	candidate := filepath.Join(root, filepath.FromSlash(requestPath))

	canonicalCandidate, cerr := canonicalize(candidate)
	if cerr != nil {
		return "", nerr.New(nerr.CodePathRejected, nerr.LevelWarning, "canonicalizing candidate path", cerr)
	}

	if !withinRoot(canonicalCandidate, canonicalRoot) {
		return "", nerr.New(nerr.CodePathRejected, nerr.LevelWarning, "path escapes document root", nil)
	}

	return canonicalCandidate, nil
}

// canonicalize resolves symlinks and collapses dot segments. If candidate
// does not exist, its parent is canonicalized instead and the final path
// component is reattached, matching §4.D step 4.
func canonicalize(candidate string) (string, error) {
	resolved, err := filepath.EvalSymlinks(candidate)
	if err == nil {
		return filepath.Clean(resolved), nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	parent := filepath.Dir(candidate)
	resolvedParent, perr := filepath.EvalSymlinks(parent)
	if perr != nil {
		if os.IsNotExist(perr) {
			return filepath.Clean(candidate), nil
		}
		return "", perr
	}

	return filepath.Join(resolvedParent, filepath.Base(candidate)), nil
}

// withinRoot reports whether candidate begins with root followed by either
// end-of-string or a path separator (§4.D step 6, §8 invariant).
func withinRoot(candidate, root string) bool {
	if candidate == root {
		return true
	}
	return strings.HasPrefix(candidate, root+string(filepath.Separator))
}

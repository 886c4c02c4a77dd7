/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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

// Package nerr is a trimmed, code-tagged error type in the spirit of the
// teacher's errors.Error: a numeric code, a message, an optional parent for
// chaining, and a suggested log level, compatible with errors.Is/errors.As.
// It drops the stack-trace capture, error pool, and gin integration the
// teacher's errors package carries for its much larger product surface.
package nerr

// Code classifies an error the way an HTTP status or an internal condition
// would. Values below 600 generally mirror the HTTP status the error maps
// to; values at or above 900 are process-internal conditions with no direct
// wire representation.
type Code int

const (
	CodeUnknown Code = 0

	CodeParseMalformed      Code = 400
	CodePathRejected        Code = 403
	CodeNotFound            Code = 404
	CodeNotModified         Code = 304
	CodeParseTooLarge       Code = 413
	CodeUnknownMethod       Code = 501
	CodeUnsupportedVersion  Code = 505
	CodeInternalFailure     Code = 500

	CodeRateLimited     Code = 900
	CodeBanned          Code = 901
	CodeResourceExhaust Code = 902
	CodeConfigInvalid   Code = 903
	CodeWorkerCrash     Code = 904
)

// String returns the human label used in log fields and error messages.
func (c Code) String() string {
	switch c {
	case CodeParseMalformed:
		return "parse_malformed"
	case CodePathRejected:
		return "path_rejected"
	case CodeNotFound:
		return "not_found"
	case CodeNotModified:
		return "not_modified"
	case CodeParseTooLarge:
		return "parse_too_large"
	case CodeUnknownMethod:
		return "unknown_method"
	case CodeUnsupportedVersion:
		return "unsupported_version"
	case CodeInternalFailure:
		return "internal_failure"
	case CodeRateLimited:
		return "rate_limited"
	case CodeBanned:
		return "banned"
	case CodeResourceExhaust:
		return "resource_exhausted"
	case CodeConfigInvalid:
		return "config_invalid"
	case CodeWorkerCrash:
		return "worker_crash"
	default:
		return "unknown"
	}
}

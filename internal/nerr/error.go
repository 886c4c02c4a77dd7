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

package nerr

import (
	"errors"
	"fmt"
)

// Level is the suggested log severity for an Error, expressed independently
// from internal/nlog so this package carries no logging dependency.
type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelCritical
)

// Error is the code-tagged error interface returned by the component
// packages (bufpool, compress, config, pathresolve, httpengine); the accept
// loop, supervisor and metrics entry points return a plain error. It mirrors the teacher's liberr.Error shape: a code, a
// message, an optional parent (chained via Unwrap), and a suggested level.
type Error interface {
	error

	Code() Code
	Level() Level
	Unwrap() error
	Is(target error) bool
}

type nErr struct {
	code   Code
	msg    string
	level  Level
	parent error
}

// New builds an Error with the given code, message and suggested level. An
// optional parent chains via Unwrap/Is the same way the teacher's
// New(code, message, parent...) does.
func New(code Code, level Level, msg string, parent error) Error {
	return &nErr{code: code, msg: msg, level: level, parent: parent}
}

// Newf is the Printf-style constructor, mirroring the teacher's Newf.
func Newf(code Code, level Level, parent error, pattern string, args ...any) Error {
	return &nErr{code: code, msg: fmt.Sprintf(pattern, args...), level: level, parent: parent}
}

func (e *nErr) Error() string {
	if e.parent != nil {
		return fmt.Sprintf("%s: %s: %s", e.code, e.msg, e.parent.Error())
	}
	return fmt.Sprintf("%s: %s", e.code, e.msg)
}

func (e *nErr) Code() Code {
	return e.code
}

func (e *nErr) Level() Level {
	return e.level
}

func (e *nErr) Unwrap() error {
	return e.parent
}

func (e *nErr) Is(target error) bool {
	var other *nErr
	if errors.As(target, &other) {
		return other.code == e.code
	}
	return false
}

// HasCode reports whether err, or any error in its Unwrap chain, carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var n *nErr
		if errors.As(err, &n) && n.code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

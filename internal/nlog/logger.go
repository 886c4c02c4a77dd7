/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
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

package nlog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Fields is an alias of logrus.Fields, kept so callers never need to import
// logrus directly just to attach structured fields.
type Fields = logrus.Fields

// Logger is the structured logger every component takes by constructor
// injection, never as a package-level global, matching the teacher's
// FuncLog-based dependency pattern.
type Logger interface {
	WithFields(f Fields) Logger

	Debug(msg string)
	Info(msg string)
	Warning(msg string)
	Error(err error, msg string)
	Fatal(err error, msg string)
	Critical(err error, msg string)

	SetLevel(l Level)
	SetOutput(w io.Writer)
	SetFormat(json bool)
}

type logger struct {
	entry *logrus.Entry
}

// New builds a Logger backed by a fresh logrus.Logger at the given level and
// text/JSON format, writing to stderr by default.
func New(level Level, jsonFormat bool) Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(level.Logrus())
	if jsonFormat {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return &logger{entry: logrus.NewEntry(l)}
}

func (g *logger) WithFields(f Fields) Logger {
	return &logger{entry: g.entry.WithFields(f)}
}

func (g *logger) Debug(msg string) {
	g.entry.Debug(msg)
}

func (g *logger) Info(msg string) {
	g.entry.Info(msg)
}

func (g *logger) Warning(msg string) {
	g.entry.Warn(msg)
}

func (g *logger) Error(err error, msg string) {
	if err != nil {
		g.entry.WithError(err).Error(msg)
		return
	}
	g.entry.Error(msg)
}

func (g *logger) Fatal(err error, msg string) {
	if err != nil {
		g.entry.WithError(err).Error(msg)
		return
	}
	g.entry.Error(msg)
}

func (g *logger) Critical(err error, msg string) {
	if err != nil {
		g.entry.WithError(err).Error(msg)
		return
	}
	g.entry.Error(msg)
}

func (g *logger) SetLevel(l Level) {
	g.entry.Logger.SetLevel(l.Logrus())
}

func (g *logger) SetOutput(w io.Writer) {
	g.entry.Logger.SetOutput(w)
}

func (g *logger) SetFormat(json bool) {
	if json {
		g.entry.Logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		g.entry.Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

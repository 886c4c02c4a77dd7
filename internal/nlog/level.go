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

// Package nlog is a trimmed logrus-backed structured logger. It mirrors the
// teacher's logger.Logger / logger/level.Level vocabulary (Critical, Fatal,
// Error, Warning, Info, Debug, each with a Logrus() bridge) without the
// teacher's syslog hooks, file rotation, or multi-sink dispatch — the spec
// treats the log sink itself as an external collaborator (component B).
package nlog

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Level represents a logging severity, ordered from most to least severe.
type Level uint8

const (
	CriticalLevel Level = iota
	FatalLevel
	ErrorLevel
	WarningLevel
	InfoLevel
	DebugLevel
)

// String returns the human-readable label for the level.
func (l Level) String() string {
	switch l {
	case CriticalLevel:
		return "Critical"
	case FatalLevel:
		return "Fatal"
	case ErrorLevel:
		return "Error"
	case WarningLevel:
		return "Warning"
	case InfoLevel:
		return "Info"
	case DebugLevel:
		return "Debug"
	default:
		return "unknown"
	}
}

// Logrus converts the level to its logrus.Level equivalent.
func (l Level) Logrus() logrus.Level {
	switch l {
	case CriticalLevel:
		return logrus.PanicLevel
	case FatalLevel:
		return logrus.FatalLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	case WarningLevel:
		return logrus.WarnLevel
	case InfoLevel:
		return logrus.InfoLevel
	case DebugLevel:
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

// ParseLevel accepts the configuration-file spelling of a level
// (case-insensitive) and returns the matching Level, defaulting to InfoLevel
// for anything unrecognized.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "critical", "Critical", "CRITICAL", "panic":
		return CriticalLevel
	case "fatal", "Fatal", "FATAL":
		return FatalLevel
	case "error", "Error", "ERROR":
		return ErrorLevel
	case "warning", "warn", "Warning", "WARNING":
		return WarningLevel
	case "debug", "Debug", "DEBUG":
		return DebugLevel
	default:
		return InfoLevel
	}
}

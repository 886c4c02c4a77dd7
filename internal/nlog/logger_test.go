package nlog_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/nabbar/edgecache/internal/nlog"
)

func TestLoggerWritesJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	log := nlog.New(nlog.DebugLevel, true)
	log.SetOutput(buf)

	log.WithFields(nlog.Fields{"path": "/index.html"}).Info("served")

	out := buf.String()
	if !strings.Contains(out, `"path":"/index.html"`) {
		t.Fatalf("expected JSON field in output, got: %s", out)
	}
	if !strings.Contains(out, `"msg":"served"`) {
		t.Fatalf("expected message field, got: %s", out)
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if nlog.ParseLevel("bogus") != nlog.InfoLevel {
		t.Fatalf("expected unrecognized level to default to info")
	}
	if nlog.ParseLevel("debug") != nlog.DebugLevel {
		t.Fatalf("expected debug to parse correctly")
	}
}

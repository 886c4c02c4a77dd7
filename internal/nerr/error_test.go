package nerr_test

import (
	"errors"
	"testing"

	"github.com/nabbar/edgecache/internal/nerr"
)

func TestErrorFormatting(t *testing.T) {
	e := nerr.New(nerr.CodeNotFound, nerr.LevelWarning, "missing file", nil)
	if e.Error() != "not_found: missing file" {
		t.Fatalf("unexpected message: %s", e.Error())
	}
	if e.Code() != nerr.CodeNotFound {
		t.Fatalf("unexpected code: %v", e.Code())
	}
}

func TestErrorChain(t *testing.T) {
	root := errors.New("disk full")
	wrapped := nerr.New(nerr.CodeInternalFailure, nerr.LevelError, "write failed", root)

	if !errors.Is(wrapped, root) {
		t.Fatalf("expected chain to unwrap to root cause")
	}
	if !nerr.HasCode(wrapped, nerr.CodeInternalFailure) {
		t.Fatalf("expected HasCode to find the direct code")
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	a := nerr.New(nerr.CodeBanned, nerr.LevelWarning, "ip banned", nil)
	b := nerr.New(nerr.CodeBanned, nerr.LevelWarning, "different message, same code", nil)

	if !errors.Is(a, b) {
		t.Fatalf("expected two errors with the same code to be Is-equal")
	}
}

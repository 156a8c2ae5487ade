package fdedup

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"testing"
)

func TestScanErrorNamesPathOnce(t *testing.T) {
	pathErr := &os.PathError{Op: "open", Path: "/p", Err: syscall.EACCES}

	e := newScanError(KindIO, "/p", fmt.Errorf("failed to open file: %w", withoutPath(pathErr)))
	want := "io error: /p: failed to open file: open: permission denied"
	if e.Error() != want {
		t.Errorf("Expected %q, got %q", want, e.Error())
	}
	if !errors.Is(e, os.ErrPermission) {
		t.Error("Expected the errno to stay reachable through the chain")
	}

	plain := errors.New("boom")
	if withoutPath(plain) != plain {
		t.Error("Expected errors without a path to pass through unchanged")
	}
	if strings.Count(newScanError(KindIO, "/p", withoutPath(plain)).Error(), "/p") != 1 {
		t.Error("Expected the path exactly once")
	}
}

package fdedup

import (
	"errors"
	"fmt"
	"os"
)

// ErrorKind classifies a non-fatal scan error.
type ErrorKind int

const (
	KindIO      ErrorKind = iota // open/read/list/stat failure on a path
	KindCycle                    // directory already on the ancestor chain
	KindTooDeep                  // symlink resolution depth exceeded
	KindAction                   // exec action exited non-zero or failed to start
)

// String returns the short label used on the error channel.
func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "io error"
	case KindCycle:
		return "symlink cycle"
	case KindTooDeep:
		return "too many levels of symbolic links"
	case KindAction:
		return "action failed"
	default:
		return "unknown error"
	}
}

var (
	// ErrCycle is returned by Guard.Enter when the directory is an ancestor
	// of the current branch.
	ErrCycle = errors.New("directory is already an ancestor of this path")

	// ErrTooDeep is returned when resolving one more symlink would exceed the
	// configured maximum.
	ErrTooDeep = errors.New("symlink depth limit exceeded")

	// ErrActionFailed wraps non-zero exits from the exec action.
	ErrActionFailed = errors.New("action exited with non-zero status")
)

// ScanError is a non-fatal failure tied to one path. It never aborts a scan.
type ScanError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

func newScanError(kind ErrorKind, path string, err error) *ScanError {
	return &ScanError{Kind: kind, Path: path, Err: err}
}

// withoutPath unwraps an *os.PathError to its errno. The ScanError carrying
// it already names the path, so keeping it would print the path twice.
func withoutPath(err error) error {
	if pe, ok := err.(*os.PathError); ok {
		return fmt.Errorf("%s: %w", pe.Op, pe.Err)
	}
	return err
}

// guardError maps a Guard denial to the matching error kind.
func guardError(path string, err error) *ScanError {
	if errors.Is(err, ErrCycle) {
		return newScanError(KindCycle, path, err)
	}
	return newScanError(KindTooDeep, path, err)
}

// ConfigError is a fatal, configuration-time failure. A scan never starts
// when one is returned.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func configErrorf(field, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Field: field, Err: fmt.Errorf(format, args...)}
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

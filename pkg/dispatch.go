package fdedup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"unicode/utf8"

	"github.com/spf13/afero"
)

// Runner invokes the external action for one duplicate group.
type Runner interface {
	Run(ctx context.Context, digest string, paths []string) error
}

// Deleter removes one path.
type Deleter interface {
	Remove(path string) error
}

// Identifier reports the (dev, ino) a path finally refers to, following
// symlinks. ok is false when the filesystem has no such identity. A Deleter
// that also implements Identifier never removes a path that is the same file
// as the survivor.
type Identifier interface {
	Identify(path string) (id DirIdentity, ok bool, err error)
}

// ExecRunner runs Program once per group with argv = [digest, paths...].
// The program's output is passed through untouched.
type ExecRunner struct {
	Program string
	Stdout  io.Writer
	Stderr  io.Writer
}

// Run executes the program and maps a non-zero exit to ErrActionFailed.
func (e *ExecRunner) Run(ctx context.Context, digest string, paths []string) error {
	args := make([]string, 0, len(paths)+1)
	args = append(args, digest)
	args = append(args, paths...)

	cmd := exec.CommandContext(ctx, e.Program, args...)
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%w: %s exited with status %d", ErrActionFailed, e.Program, exitErr.ExitCode())
	}
	if err != nil {
		return fmt.Errorf("failed to run %s: %w", e.Program, err)
	}
	return nil
}

// FsDeleter removes paths through an afero filesystem.
type FsDeleter struct {
	Fs afero.Fs
}

// NewFsDeleter returns a deleter over fs, or over the OS filesystem when fs
// is nil.
func NewFsDeleter(fs afero.Fs) *FsDeleter {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FsDeleter{Fs: fs}
}

// Remove deletes path.
func (d *FsDeleter) Remove(path string) error {
	return d.Fs.Remove(path)
}

// Identify stats path through the filesystem, following symlinks.
func (d *FsDeleter) Identify(path string) (DirIdentity, bool, error) {
	fi, err := d.Fs.Stat(path)
	if err != nil {
		return DirIdentity{}, false, err
	}
	id, ok := fileIdentity(fi)
	return id, ok, nil
}

// Dispatcher acts on finalised duplicate groups in exactly one mode.
type Dispatcher struct {
	mode    Mode
	out     io.Writer
	report  *ReportWriter
	runner  Runner
	deleter Deleter
}

// NewDispatcher creates a dispatcher for cfg.Mode. out receives report
// records and keep-shortest notices. runner is only used in ModeExec and
// deleter only in ModeKeepShortest and ModePretend (where it is optional and
// only consulted for file identity); either may be nil otherwise.
func NewDispatcher(cfg ScanConfig, out io.Writer, runner Runner, deleter Deleter) *Dispatcher {
	return &Dispatcher{
		mode:    cfg.Mode,
		out:     out,
		report:  NewReportWriter(out, 64),
		runner:  runner,
		deleter: deleter,
	}
}

// Dispatch consumes groups once. Per-group failures are returned as
// ScanErrors and do not stop the remaining groups. The error return is set
// only when output itself fails or ctx is cancelled.
func (d *Dispatcher) Dispatch(ctx context.Context, groups []DuplicateGroup) ([]*ScanError, error) {
	defer VerboseEnter()()

	if err := d.check(); err != nil {
		return nil, err
	}

	var errs []*ScanError
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return errs, err
		}
		if len(g.Paths) < 2 {
			continue
		}

		switch d.mode {
		case ModeReport:
			if err := d.report.Write(g); err != nil {
				return errs, err
			}
		case ModeExec:
			DebugLog(DebugDispatch, "exec %s with %d paths", g.Digest, len(g.Paths))
			if err := d.runner.Run(ctx, g.Digest.String(), g.Paths); err != nil {
				if ctx.Err() != nil {
					return errs, ctx.Err()
				}
				errs = append(errs, newScanError(KindAction, g.Digest.String(), err))
			}
		case ModeKeepShortest, ModePretend:
			groupErrs, err := d.keepShortest(g)
			errs = append(errs, groupErrs...)
			if err != nil {
				return errs, err
			}
		}
	}

	if d.mode == ModeReport {
		if err := d.report.Flush(); err != nil {
			return errs, err
		}
	}
	return errs, nil
}

func (d *Dispatcher) check() error {
	switch d.mode {
	case ModeExec:
		if d.runner == nil {
			return fmt.Errorf("dispatch mode %s requires a runner", d.mode)
		}
	case ModeKeepShortest:
		if d.deleter == nil {
			return fmt.Errorf("dispatch mode %s requires a deleter", d.mode)
		}
	}
	return nil
}

// keepShortest deletes every path in g except the survivor chosen by
// ShortestName. In ModePretend the deletions are only announced. A path that
// resolves to the same file as the survivor (a symlink, a hard link or a
// directory reached twice) is kept, since removing it would remove the
// survivor's content or leave the survivor dangling.
func (d *Dispatcher) keepShortest(g DuplicateGroup) ([]*ScanError, error) {
	keep := ShortestName(g.Paths)
	survivor := g.Paths[keep]

	var errs []*ScanError
	ident, _ := d.deleter.(Identifier)
	var keptID DirIdentity
	haveID := false
	if ident != nil {
		id, ok, err := ident.Identify(survivor)
		if err != nil {
			// cannot prove the others are separate copies
			errs = append(errs, newScanError(KindIO, survivor, fmt.Errorf("failed to identify survivor: %w", withoutPath(err))))
			return errs, nil
		}
		keptID, haveID = id, ok
	}

	for i, path := range g.Paths {
		if i == keep {
			continue
		}
		if ident != nil {
			id, ok, err := ident.Identify(path)
			if err != nil {
				errs = append(errs, newScanError(KindIO, path, fmt.Errorf("failed to identify: %w", withoutPath(err))))
				continue
			}
			if haveID && ok && id == keptID {
				DebugLog(DebugDispatch, "%s is the same file as %s (%s)", path, survivor, id)
				if _, err := fmt.Fprintf(d.out, "skipping %s (same file as %s)\n", path, survivor); err != nil {
					return errs, fmt.Errorf("failed to write report: %w", err)
				}
				continue
			}
		}
		if d.mode == ModePretend {
			if _, err := fmt.Fprintf(d.out, "would delete %s (keeping %s)\n", path, survivor); err != nil {
				return errs, fmt.Errorf("failed to write report: %w", err)
			}
			continue
		}
		if err := d.deleter.Remove(path); err != nil {
			errs = append(errs, newScanError(KindIO, path, fmt.Errorf("failed to delete: %w", withoutPath(err))))
			continue
		}
		DebugLog(DebugDispatch, "deleted %s, kept %s", path, survivor)
		if _, err := fmt.Fprintf(d.out, "deleted %s (kept %s)\n", path, survivor); err != nil {
			return errs, fmt.Errorf("failed to write report: %w", err)
		}
	}
	return errs, nil
}

// ShortestName returns the index of the path whose final element has the
// fewest characters. Ties go to the earliest path. It returns -1 for an
// empty slice.
func ShortestName(paths []string) int {
	best, bestLen := -1, 0
	for i, p := range paths {
		n := utf8.RuneCountInString(filepath.Base(p))
		if best == -1 || n < bestLen {
			best, bestLen = i, n
		}
	}
	return best
}

package fdedup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
)

// ============================================================================
// TYPE DEFINITIONS
// ============================================================================

// Stats summarises one scan.
type Stats struct {
	FilesHashed      int64
	BytesHashed      int64
	DirsRead         int64
	SymlinksResolved int64
	Skipped          int64 // other entry types, excluded paths, ignored symlinks, empty files
	PeakDirs         int
	PeakFiles        int
	Groups           int
	Reclaimable      int64
}

// ScanOutcome is the terminal result of a completed scan.
type ScanOutcome struct {
	Root   string
	Groups []DuplicateGroup
	Errors []*ScanError
	Stats  Stats
}

// Scanner walks a directory tree and groups files by content digest. A
// Scanner may run several scans, one after another or concurrently; each scan
// owns its own index.
type Scanner struct {
	cfg     ScanConfig
	limiter *Limiter
	guard   *Guard
	hasher  *Hasher
	ignore  *IgnoreManager
	onError func(*ScanError)
}

// ScannerOption customises a Scanner.
type ScannerOption func(*Scanner)

// WithErrorHandler streams each non-fatal error as it is recorded. Calls are
// serialised, so fn may write lines without further locking.
func WithErrorHandler(fn func(*ScanError)) ScannerOption {
	return func(s *Scanner) { s.onError = fn }
}

// WithLimiter replaces the limiter built from the config, e.g. to share
// permits between scanners or to inspect peak usage.
func WithLimiter(l *Limiter) ScannerOption {
	return func(s *Scanner) { s.limiter = l }
}

// WithIgnoreManager adds exclude patterns loaded elsewhere (e.g. from a file)
// on top of ScanConfig.Exclude.
func WithIgnoreManager(im *IgnoreManager) ScannerOption {
	return func(s *Scanner) { s.ignore = im }
}

// NewScanner validates cfg and builds a scanner.
func NewScanner(cfg ScanConfig, opts ...ScannerOption) (*Scanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Scanner{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}

	if s.limiter == nil {
		s.limiter = NewLimiter(cfg.MaxDirs, cfg.MaxFiles)
	}
	if s.ignore == nil {
		s.ignore = &IgnoreManager{}
	}
	for _, p := range cfg.Exclude {
		if err := s.ignore.AddPattern(p); err != nil {
			return nil, err
		}
	}
	s.guard = NewGuard(cfg.MaxSymlinks, cfg.IgnoreSymlinks)
	s.hasher = NewHasher(s.limiter, cfg.HashBufferSize)

	return s, nil
}

// Config returns the scanner's configuration
func (s *Scanner) Config() ScanConfig {
	return s.cfg
}

// Limiter returns the scanner's limiter
func (s *Scanner) Limiter() *Limiter {
	return s.limiter
}

// scanRun is the state of one scan: its index, its error list and its
// outstanding units of work.
type scanRun struct {
	*Scanner
	index *Index
	seq   atomic.Uint64
	wg    sync.WaitGroup

	errMu sync.Mutex
	errs  []*ScanError

	filesHashed atomic.Int64
	bytesHashed atomic.Int64
	dirsRead    atomic.Int64
	symlinks    atomic.Int64
	skipped     atomic.Int64
}

// ============================================================================
// SCAN ENTRY POINT
// ============================================================================

// Scan walks root and returns every duplicate group found under it. A root
// that is missing or not a directory is a ConfigError and nothing is walked.
// If ctx is cancelled the scan stops, permits are released and Scan returns
// the context's error with no groups.
func (s *Scanner) Scan(ctx context.Context, root string) (*ScanOutcome, error) {
	defer VerboseEnter()()

	rootEntry, err := statEntry(root)
	if err != nil {
		return nil, &ConfigError{Field: "path", Err: err}
	}
	if rootEntry.Type != TypeDir {
		return nil, configErrorf("path", "%s is not a directory", root)
	}

	VerboseLog(2, "scan: root=%s mode=%s max-dirs=%d max-files=%d max-symlinks=%d ignore-symlinks=%t",
		root, s.cfg.Mode, s.cfg.MaxDirs, s.cfg.MaxFiles, s.cfg.MaxSymlinks, s.cfg.IgnoreSymlinks)

	run := &scanRun{Scanner: s, index: NewIndex()}
	run.spawnDir(ctx, root, "", s.guard.Root(rootEntry.Identity), 0)
	run.wg.Wait()

	if err := ctx.Err(); err != nil {
		VerboseLog(1, "scan of %s interrupted: %v", root, context.Cause(ctx))
		return nil, context.Cause(ctx)
	}

	groups := run.index.Finalize()
	outcome := &ScanOutcome{
		Root:   root,
		Groups: groups,
		Errors: run.errs,
		Stats:  run.stats(groups),
	}
	logSummary(outcome)
	return outcome, nil
}

func (r *scanRun) stats(groups []DuplicateGroup) Stats {
	st := Stats{
		FilesHashed:      r.filesHashed.Load(),
		BytesHashed:      r.bytesHashed.Load(),
		DirsRead:         r.dirsRead.Load(),
		SymlinksResolved: r.symlinks.Load(),
		Skipped:          r.skipped.Load(),
		Groups:           len(groups),
	}
	st.PeakDirs, st.PeakFiles = r.limiter.Peak()
	for _, g := range groups {
		st.Reclaimable += g.Reclaimable()
	}
	return st
}

func logSummary(o *ScanOutcome) {
	st := o.Stats
	VerboseLog(1, "scanned %d files (%s) in %d directories, %d duplicate groups, %s reclaimable, %d errors",
		st.FilesHashed, humanize.IBytes(uint64(st.BytesHashed)), st.DirsRead,
		st.Groups, humanize.IBytes(uint64(st.Reclaimable)), len(o.Errors))
	VerboseLog(2, "peak open directories %d, peak open files %d, symlinks resolved %d, skipped %d",
		st.PeakDirs, st.PeakFiles, st.SymlinksResolved, st.Skipped)
}

// report records a non-fatal error and streams it to the handler.
func (r *scanRun) report(e *ScanError) {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	r.errs = append(r.errs, e)
	if r.onError != nil {
		r.onError(e)
	}
}

// ============================================================================
// DIRECTORY UNITS
// ============================================================================

// spawnDir schedules dir as an independent unit of work. The WaitGroup is
// incremented before the goroutine starts so Wait cannot miss it.
func (r *scanRun) spawnDir(ctx context.Context, dir, rel string, anc *Ancestry, links int) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.walkDir(ctx, dir, rel, anc, links)
	}()
}

// walkDir lists dir and classifies each entry. The directory permit is held
// only while the directory is open; classification and dispatch happen after
// it has been returned.
func (r *scanRun) walkDir(ctx context.Context, dir, rel string, anc *Ancestry, links int) {
	names, err := r.listDir(ctx, dir)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.report(newScanError(KindIO, dir, err))
		// entries read before the failure are still walked
	}
	DebugLog(DebugWalk, "%s: %d entries (depth %d, links %d)", dir, len(names), anc.Depth(), links)

	for _, name := range names {
		if ctx.Err() != nil {
			return
		}
		relPath := filepath.Join(rel, name)
		if r.ignore.ShouldIgnore(relPath) {
			r.skipped.Add(1)
			DebugLog(DebugWalk, "excluded %s", relPath)
			continue
		}
		r.visit(ctx, filepath.Join(dir, name), relPath, anc, links)
	}
}

// listDir reads every entry name of dir under a directory permit, in batches,
// and returns them sorted.
func (r *scanRun) listDir(ctx context.Context, dir string) ([]string, error) {
	p, err := r.limiter.AcquireDir(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release()

	f, err := os.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", withoutPath(err))
	}
	defer f.Close()
	r.dirsRead.Add(1)

	var names []string
	for {
		batch, err := f.Readdirnames(listBatchSize)
		names = append(names, batch...)
		if err == io.EOF {
			break
		}
		if err != nil {
			sort.Strings(names)
			return names, fmt.Errorf("reading directory: %w", withoutPath(err))
		}
	}

	sort.Strings(names)
	return names, nil
}

// visit classifies one entry without following it, resolves it if it is a
// followed symlink, then hands it to the hasher or schedules it as a
// directory unit.
func (r *scanRun) visit(ctx context.Context, path, rel string, anc *Ancestry, links int) {
	entry, err := lstatEntry(path)
	if err != nil {
		r.report(newScanError(KindIO, path, withoutPath(err)))
		return
	}

	target := entry
	if entry.Type == TypeSymlink {
		if !r.guard.FollowsSymlinks() {
			r.skipped.Add(1)
			DebugLog(DebugWalk, "ignoring symlink %s", path)
			return
		}
		target, links, err = r.resolve(entry, links)
		if err != nil {
			if errors.Is(err, ErrTooDeep) {
				r.report(guardError(path, err))
			} else {
				r.report(newScanError(KindIO, path, err))
			}
			return
		}
	}

	switch target.Type {
	case TypeFile:
		r.dispatchFile(ctx, path, target)
	case TypeDir:
		child, err := r.guard.Enter(anc, target.Identity)
		if err != nil {
			r.report(guardError(path, err))
			return
		}
		r.spawnDir(ctx, path, rel, child, links)
	default:
		r.skipped.Add(1)
		DebugLog(DebugWalk, "skipping non regular file %s", path)
	}
}

// resolve follows a chain of symlinks one hop at a time, charging each hop
// against the depth bound. The returned entry's Path is the final target.
func (r *scanRun) resolve(link PathEntry, links int) (PathEntry, int, error) {
	current := link
	for current.Type == TypeSymlink {
		var err error
		if links, err = r.guard.Resolve(links); err != nil {
			return current, links, err
		}

		target, err := os.Readlink(current.Path)
		if err != nil {
			if current.Path == link.Path {
				err = withoutPath(err)
			}
			return current, links, fmt.Errorf("reading symbolic link: %w", err)
		}
		if !filepath.IsAbs(target) {
			// not cleaned: ".." must be applied by the kernel, after any
			// symlinked components
			target = filepath.Dir(current.Path) + string(filepath.Separator) + target
		}

		next, err := lstatEntry(target)
		if err != nil {
			return current, links, fmt.Errorf("broken symlink target %s: %w", target, withoutPath(err))
		}
		r.symlinks.Add(1)
		DebugLog(DebugGuard, "resolved %s -> %s (%s, links %d)", current.Path, target, next.Type, links)
		current = next
	}
	return current, links, nil
}

// ============================================================================
// FILE UNITS
// ============================================================================

// dispatchFile takes a discovery sequence number, waits for a file permit and
// hands both to a new hashing unit. Waiting here gives the directory unit
// backpressure when every file permit is taken.
func (r *scanRun) dispatchFile(ctx context.Context, path string, target PathEntry) {
	if r.cfg.SkipEmpty && target.Size == 0 {
		r.skipped.Add(1)
		DebugLog(DebugWalk, "skipping empty file %s", path)
		return
	}

	seq := r.seq.Add(1)
	p, err := r.limiter.AcquireFile(ctx)
	if err != nil {
		return // cancelled
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		digest, n, err := r.hasher.hashHeld(ctx, p, target.Path)
		if err != nil {
			if ctx.Err() == nil {
				r.report(newScanError(KindIO, path, err))
			}
			return
		}
		r.filesHashed.Add(1)
		r.bytesHashed.Add(n)
		r.index.Record(digest, seq, path, n)
	}()
}

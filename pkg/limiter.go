package fdedup

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Permit is the right to hold one open directory or file handle. Release is
// idempotent so it can be deferred on every exit path.
type Permit interface {
	Release()
}

// Limiter bounds concurrently open directories and files with two
// independent counting semaphores. The ceilings are fixed at construction.
type Limiter struct {
	maxDirs  int
	maxFiles int
	dirs     *semaphore.Weighted
	files    *semaphore.Weighted

	dirGauge  gauge
	fileGauge gauge
}

// gauge tracks current and peak holders of one permit kind.
type gauge struct {
	kind    string
	current atomic.Int64
	peak    atomic.Int64
}

func (g *gauge) inc() int64 {
	n := g.current.Add(1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			return n
		}
	}
}

func (g *gauge) dec() {
	g.current.Add(-1)
}

// NewLimiter creates a limiter. Values below one are clamped to one.
func NewLimiter(maxDirs, maxFiles int) *Limiter {
	if maxDirs < 1 {
		maxDirs = 1
	}
	if maxFiles < 1 {
		maxFiles = 1
	}
	l := &Limiter{
		maxDirs:  maxDirs,
		maxFiles: maxFiles,
		dirs:     semaphore.NewWeighted(int64(maxDirs)),
		files:    semaphore.NewWeighted(int64(maxFiles)),
	}
	l.dirGauge.kind = "dir"
	l.fileGauge.kind = "file"
	return l
}

// AcquireDir blocks until a directory permit is free or ctx is done.
func (l *Limiter) AcquireDir(ctx context.Context) (Permit, error) {
	return l.acquire(ctx, l.dirs, &l.dirGauge)
}

// AcquireFile blocks until a file permit is free or ctx is done.
func (l *Limiter) AcquireFile(ctx context.Context) (Permit, error) {
	return l.acquire(ctx, l.files, &l.fileGauge)
}

func (l *Limiter) acquire(ctx context.Context, sem *semaphore.Weighted, g *gauge) (Permit, error) {
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	n := g.inc()
	DebugLog(DebugLimits, "acquired %s permit, %d held", g.kind, n)
	return &permit{sem: sem, gauge: g}, nil
}

// Limits returns the configured ceilings.
func (l *Limiter) Limits() (maxDirs, maxFiles int) {
	return l.maxDirs, l.maxFiles
}

// InUse returns the number of permits currently held.
func (l *Limiter) InUse() (dirs, files int) {
	return int(l.dirGauge.current.Load()), int(l.fileGauge.current.Load())
}

// Peak returns the highest number of permits held at once since creation.
func (l *Limiter) Peak() (dirs, files int) {
	return int(l.dirGauge.peak.Load()), int(l.fileGauge.peak.Load())
}

type permit struct {
	once  sync.Once
	sem   *semaphore.Weighted
	gauge *gauge
}

func (p *permit) Release() {
	p.once.Do(func() {
		// gauge first, so a waiter woken by the semaphore never observes
		// more holders than the ceiling
		p.gauge.dec()
		p.sem.Release(1)
	})
}

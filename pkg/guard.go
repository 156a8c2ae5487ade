package fdedup

import "fmt"

// DirIdentity uniquely identifies a directory by device and inode.
type DirIdentity struct {
	Dev uint64
	Ino uint64
}

func (id DirIdentity) String() string {
	return fmt.Sprintf("%d:%d", id.Dev, id.Ino)
}

// Ancestry is one branch's chain of directory identities from the scan root
// down to the current directory. It is an immutable linked stack: entering a
// directory pushes a new node that points at its parent, and the parent's
// view is unchanged, so sibling branches share their common prefix without
// ever contending on it.
type Ancestry struct {
	id     DirIdentity
	parent *Ancestry
	depth  int
}

// Contains reports whether id is on this chain.
func (a *Ancestry) Contains(id DirIdentity) bool {
	for n := a; n != nil; n = n.parent {
		if n.id == id {
			return true
		}
	}
	return false
}

// Depth is the number of directories on the chain, root included.
func (a *Ancestry) Depth() int {
	if a == nil {
		return 0
	}
	return a.depth
}

// Guard decides whether a directory may be descended into and whether one
// more symlink may be resolved. It holds no per-scan mutable state.
type Guard struct {
	maxSymlinks    int
	ignoreSymlinks bool
}

// NewGuard creates a guard. With ignoreSymlinks set, symlinks are skipped by
// the walker and never reach Resolve.
func NewGuard(maxSymlinks int, ignoreSymlinks bool) *Guard {
	if maxSymlinks < 0 {
		maxSymlinks = 0
	}
	return &Guard{maxSymlinks: maxSymlinks, ignoreSymlinks: ignoreSymlinks}
}

// FollowsSymlinks reports whether symlinks are resolved at all.
func (g *Guard) FollowsSymlinks() bool {
	return !g.ignoreSymlinks
}

// Root starts a new chain at the scan root.
func (g *Guard) Root(id DirIdentity) *Ancestry {
	return &Ancestry{id: id, depth: 1}
}

// Resolve accounts for resolving one more symlink on a path that has already
// resolved links symlinks. It returns the new count, or ErrTooDeep.
func (g *Guard) Resolve(links int) (int, error) {
	if links >= g.maxSymlinks {
		return links, fmt.Errorf("%w (max %d)", ErrTooDeep, g.maxSymlinks)
	}
	return links + 1, nil
}

// Enter checks a candidate directory against the current chain. The symlink
// bound is enforced by Resolve before a directory is ever reached, so only
// cycles are checked here. On success the returned chain is the child's
// ancestry; the caller's chain is left untouched.
func (g *Guard) Enter(anc *Ancestry, id DirIdentity) (*Ancestry, error) {
	if anc.Contains(id) {
		DebugLog(DebugGuard, "cycle: %s already on chain of depth %d", id, anc.Depth())
		return nil, fmt.Errorf("%w (dev:ino %s)", ErrCycle, id)
	}
	return &Ancestry{id: id, parent: anc, depth: anc.Depth() + 1}, nil
}

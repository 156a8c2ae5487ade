//go:build unix

package fdedup

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// EntryType is the classification of a directory entry.
type EntryType int

const (
	TypeOther   EntryType = iota // sockets, devices, fifos
	TypeFile                     // regular file
	TypeDir                      // directory
	TypeSymlink                  // symbolic link, not yet resolved
)

func (t EntryType) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDir:
		return "directory"
	case TypeSymlink:
		return "symlink"
	default:
		return "other"
	}
}

// PathEntry is a path plus its classification. Identity is set for every
// entry but only meaningful for directories.
type PathEntry struct {
	Path     string
	Type     EntryType
	Identity DirIdentity
	Size     int64
}

// lstatEntry classifies path without following a final symlink.
func lstatEntry(path string) (PathEntry, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return PathEntry{}, &os.PathError{Op: "lstat", Path: path, Err: err}
	}
	return entryFromStat(path, &st), nil
}

// statEntry classifies path, following symlinks.
func statEntry(path string) (PathEntry, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return PathEntry{}, &os.PathError{Op: "stat", Path: path, Err: err}
	}
	return entryFromStat(path, &st), nil
}

func entryFromStat(path string, st *unix.Stat_t) PathEntry {
	e := PathEntry{
		Path: path,
		Identity: DirIdentity{
			Dev: uint64(st.Dev), // #nosec G115 -- platform-defined width, fits in uint64
			Ino: uint64(st.Ino),
		},
		Size: st.Size,
	}
	switch uint32(st.Mode) & unix.S_IFMT {
	case unix.S_IFREG:
		e.Type = TypeFile
	case unix.S_IFDIR:
		e.Type = TypeDir
	case unix.S_IFLNK:
		e.Type = TypeSymlink
	default:
		e.Type = TypeOther
	}
	return e
}

// fileIdentity extracts (dev, ino) from a FileInfo produced by the OS. ok is
// false for filesystems without inode identity, such as in-memory ones.
func fileIdentity(fi os.FileInfo) (DirIdentity, bool) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return DirIdentity{}, false
	}
	return DirIdentity{Dev: uint64(st.Dev), Ino: uint64(st.Ino)}, true // #nosec G115
}

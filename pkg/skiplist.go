package fdedup

import (
	"bytes"

	zcsl "github.com/mattkeenan/zerocopyskiplist"
)

// finalContext tags groups inserted by Index.Finalize.
const finalContext = "final"

// groupList orders duplicate groups by digest so Finalize has a stable
// inter-group order regardless of shard layout or scheduling.
type groupList struct {
	skiplist *zcsl.ZeroCopySkiplist[DuplicateGroup, string, string]
}

func newGroupList(maxLevels int) *groupList {
	if maxLevels < 8 {
		maxLevels = 16 // reasonable default
	}

	// Key is the raw digest bytes as a string; comparing those bytes gives
	// the same order as comparing the hex renderings.
	getKeyFromItem := func(g *DuplicateGroup) string {
		return string(g.Digest[:])
	}

	getItemSize := func(g *DuplicateGroup) int {
		return len(g.Paths)
	}

	cmpKey := func(a, b string) int {
		return bytes.Compare([]byte(a), []byte(b))
	}

	return &groupList{
		skiplist: zcsl.MakeZeroCopySkiplist[DuplicateGroup, string, string](
			maxLevels,
			getKeyFromItem,
			getItemSize,
			cmpKey,
		),
	}
}

// Insert adds a group. The list keeps the pointer; the caller must not reuse it.
func (gl *groupList) Insert(g *DuplicateGroup) bool {
	return gl.skiplist.Insert(g, finalContext)
}

// Length returns the number of groups in the list
func (gl *groupList) Length() int {
	return gl.skiplist.Length()
}

// Groups returns all groups in digest order.
func (gl *groupList) Groups() []DuplicateGroup {
	out := make([]DuplicateGroup, 0, gl.Length())
	for current := gl.skiplist.First(); current != nil; current = current.Next() {
		out = append(out, *current.Item())
	}
	return out
}

package fdedup

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash"
)

// DuplicateGroup is a digest plus every path whose content hashed to it, in
// discovery order.
type DuplicateGroup struct {
	Digest Digest   `json:"digest"`
	Paths  []string `json:"paths"`
	Size   int64    `json:"-"` // length of one copy in bytes
}

// Count returns the number of paths in the group.
func (g DuplicateGroup) Count() int {
	return len(g.Paths)
}

// Reclaimable is the number of bytes freed by keeping a single copy.
func (g DuplicateGroup) Reclaimable() int64 {
	if len(g.Paths) < 2 {
		return 0
	}
	return g.Size * int64(len(g.Paths)-1)
}

type indexEntry struct {
	seq  uint64
	path string
}

type groupAccumulator struct {
	size    int64
	entries []indexEntry
}

// indexShard is one independently locked slice of the digest space.
type indexShard struct {
	mu     sync.Mutex
	groups map[Digest]*groupAccumulator
}

// Index maps digests to the paths that produced them. Record is safe for
// concurrent use; updates to digests in different shards never contend.
type Index struct {
	shards  [indexShards]indexShard
	records atomic.Int64
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	ix := &Index{}
	for i := range ix.shards {
		ix.shards[i].groups = make(map[Digest]*groupAccumulator)
	}
	return ix
}

func (ix *Index) shardFor(d Digest) *indexShard {
	return &ix.shards[xxhash.Sum64(d[:])&(indexShards-1)]
}

// Record appends path to the group for d. seq is the path's discovery
// sequence number and fixes its position within the group.
func (ix *Index) Record(d Digest, seq uint64, path string, size int64) {
	shard := ix.shardFor(d)
	shard.mu.Lock()
	acc, ok := shard.groups[d]
	if !ok {
		acc = &groupAccumulator{size: size}
		shard.groups[d] = acc
	}
	acc.entries = append(acc.entries, indexEntry{seq: seq, path: path})
	shard.mu.Unlock()

	ix.records.Add(1)
	DebugLog(DebugIndex, "record %s #%d %s", d, seq, path)
}

// Records returns the number of Record calls so far.
func (ix *Index) Records() int64 {
	return ix.records.Load()
}

// Digests returns the number of distinct digests recorded.
func (ix *Index) Digests() int {
	n := 0
	for i := range ix.shards {
		shard := &ix.shards[i]
		shard.mu.Lock()
		n += len(shard.groups)
		shard.mu.Unlock()
	}
	return n
}

// Finalize returns the groups with at least two paths, ordered by digest,
// each listing its paths by ascending discovery sequence. Single-path
// digests are discarded.
func (ix *Index) Finalize() []DuplicateGroup {
	defer VerboseEnter()()

	list := newGroupList(16)
	for i := range ix.shards {
		shard := &ix.shards[i]
		shard.mu.Lock()
		for d, acc := range shard.groups {
			if len(acc.entries) < 2 {
				continue
			}
			entries := slices.Clone(acc.entries)
			slices.SortStableFunc(entries, func(a, b indexEntry) int {
				switch {
				case a.seq < b.seq:
					return -1
				case a.seq > b.seq:
					return 1
				}
				return 0
			})
			paths := make([]string, len(entries))
			for j, e := range entries {
				paths[j] = e.path
			}
			list.Insert(&DuplicateGroup{Digest: d, Paths: paths, Size: acc.size})
		}
		shard.mu.Unlock()
	}

	VerboseLog(2, "index: %d records, %d duplicate groups", ix.Records(), list.Length())
	return list.Groups()
}

package fdedup

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"
)

// Digest is the MD5 of a file's full content. It is a content-identity
// fingerprint, not a security primitive.
type Digest [DigestSize]byte

// String renders the digest as lowercase hex.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// ParseDigest parses a lowercase or uppercase hex digest.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	b, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("invalid digest %q: %w", s, err)
	}
	if len(b) != DigestSize {
		return d, fmt.Errorf("invalid digest %q: want %d bytes, got %d", s, DigestSize, len(b))
	}
	copy(d[:], b)
	return d, nil
}

// DigestOf returns the digest of an in-memory byte slice.
func DigestOf(data []byte) Digest {
	return Digest(md5.Sum(data))
}

// Hasher streams file content through MD5 under a file permit.
type Hasher struct {
	limiter    *Limiter
	bufferSize int
	buffers    sync.Pool
}

// NewHasher creates a hasher that reads in chunks of bufferSize bytes.
func NewHasher(limiter *Limiter, bufferSize int) *Hasher {
	if bufferSize < 1 {
		bufferSize = DefaultHashBuffer
	}
	h := &Hasher{limiter: limiter, bufferSize: bufferSize}
	h.buffers.New = func() interface{} {
		b := make([]byte, h.bufferSize)
		return &b
	}
	return h
}

// Hash acquires a file permit, then digests the file at path. It returns the
// digest and the number of bytes read.
func (h *Hasher) Hash(ctx context.Context, path string) (Digest, int64, error) {
	p, err := h.limiter.AcquireFile(ctx)
	if err != nil {
		return Digest{}, 0, err
	}
	return h.hashHeld(ctx, p, path)
}

// hashHeld digests path using a permit the caller already holds. The permit
// is released before returning, on every path.
func (h *Hasher) hashHeld(ctx context.Context, p Permit, path string) (Digest, int64, error) {
	defer p.Release()

	file, err := os.Open(path)
	if err != nil {
		return Digest{}, 0, fmt.Errorf("failed to open file: %w", withoutPath(err))
	}
	defer file.Close()

	bufp := h.buffers.Get().(*[]byte)
	defer h.buffers.Put(bufp)
	buffer := *bufp

	hasher := md5.New()
	var total int64

	for {
		// Check for cancellation before each read
		select {
		case <-ctx.Done():
			return Digest{}, total, ctx.Err()
		default:
		}

		n, err := file.Read(buffer)
		if n > 0 {
			hasher.Write(buffer[:n])
			total += int64(n)
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return Digest{}, total, fmt.Errorf("failed to read file: %w", withoutPath(err))
		}
	}

	var d Digest
	copy(d[:], hasher.Sum(nil))
	DebugLog(DebugHash, "%s %s (%d bytes)", d, path, total)
	return d, total, nil
}

package fdedup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/fatih/color"
	"github.com/google/vectorio"
)

// maxReportIovecs caps one writev call; the conservative IOV_MAX fallback
// per golang/go#58623.
const maxReportIovecs = 1024

// Record is the report line for one duplicate group. Digest encodes as an
// array of 16 unsigned byte values.
type Record struct {
	Digest Digest   `json:"digest"`
	Paths  []string `json:"paths"`
}

// ReportWriter emits one JSON record per line. Lines are buffered and, when
// the sink is an *os.File, flushed with a single writev per batch.
type ReportWriter struct {
	w       io.Writer
	file    *os.File
	pending [][]byte
	batch   int
	buf     bytes.Buffer
	enc     *json.Encoder
}

// NewReportWriter creates a writer that flushes every batch lines. A batch
// below one flushes after every record.
func NewReportWriter(w io.Writer, batch int) *ReportWriter {
	if batch < 1 {
		batch = 1
	}
	if batch > maxReportIovecs {
		batch = maxReportIovecs
	}
	rw := &ReportWriter{w: w, batch: batch}
	if f, ok := w.(*os.File); ok {
		rw.file = f
	}
	rw.enc = json.NewEncoder(&rw.buf)
	rw.enc.SetEscapeHTML(false)
	return rw
}

// Write queues the record for g.
func (rw *ReportWriter) Write(g DuplicateGroup) error {
	rw.buf.Reset()
	if err := rw.enc.Encode(Record{Digest: g.Digest, Paths: g.Paths}); err != nil {
		return fmt.Errorf("failed to encode group %s: %w", g.Digest, err)
	}
	line := make([]byte, rw.buf.Len())
	copy(line, rw.buf.Bytes())
	rw.pending = append(rw.pending, line)

	if len(rw.pending) >= rw.batch {
		return rw.Flush()
	}
	return nil
}

// Flush writes every queued line.
func (rw *ReportWriter) Flush() error {
	if len(rw.pending) == 0 {
		return nil
	}
	defer func() { rw.pending = rw.pending[:0] }()

	if rw.file != nil {
		return rw.flushVectored()
	}
	for _, line := range rw.pending {
		if _, err := rw.w.Write(line); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return nil
}

func (rw *ReportWriter) flushVectored() error {
	iovecs := make([]syscall.Iovec, len(rw.pending))
	for i, line := range rw.pending {
		iovecs[i].Base = &line[0]
		iovecs[i].SetLen(len(line))
	}

	nw, err := vectorio.WritevRaw(rw.file.Fd(), iovecs)
	if err != nil {
		return fmt.Errorf("failed to write report with vectorio: %w", err)
	}

	// finish a short write with plain writes
	for _, line := range rw.pending {
		if nw >= len(line) {
			nw -= len(line)
			continue
		}
		if _, err := rw.file.Write(line[nw:]); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		nw = 0
	}
	return nil
}

// ErrorPrinter returns an error handler that writes one line per error to w,
// with a coloured WARNING! prefix unless colour is disabled.
func ErrorPrinter(w io.Writer) func(*ScanError) {
	prefix := color.New(color.FgYellow, color.Bold)
	return func(e *ScanError) {
		fmt.Fprintf(w, "%s %v\n", prefix.Sprint("WARNING!"), e)
	}
}

package fdedup

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helloRecord = `{"digest":[93,65,64,42,188,75,42,118,185,113,157,145,16,23,197,146],"paths":["file0","file1"]}` + "\n"

func TestReportWriterLineFormat(t *testing.T) {
	var buf bytes.Buffer
	rw := NewReportWriter(&buf, 1)

	require.NoError(t, rw.Write(DuplicateGroup{
		Digest: DigestOf([]byte("hello")),
		Paths:  []string{"file0", "file1"},
	}))
	assert.Equal(t, helloRecord, buf.String())
}

func TestReportWriterNoHTMLEscaping(t *testing.T) {
	var buf bytes.Buffer
	rw := NewReportWriter(&buf, 1)

	require.NoError(t, rw.Write(DuplicateGroup{Paths: []string{"a&b", "<c>", `d"e`}}))
	assert.Contains(t, buf.String(), `"paths":["a&b","<c>","d\"e"]`)
}

func TestReportWriterBatches(t *testing.T) {
	var buf bytes.Buffer
	rw := NewReportWriter(&buf, 3)

	for i := 0; i < 2; i++ {
		require.NoError(t, rw.Write(DuplicateGroup{Paths: []string{fmt.Sprint(i), "x"}}))
	}
	assert.Zero(t, buf.Len(), "lines should stay queued below the batch size")

	require.NoError(t, rw.Write(DuplicateGroup{Paths: []string{"2", "x"}}))
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))

	require.NoError(t, rw.Write(DuplicateGroup{Paths: []string{"3", "x"}}))
	require.NoError(t, rw.Flush())
	require.NoError(t, rw.Flush())
	assert.Equal(t, 4, strings.Count(buf.String(), "\n"))
}

func TestReportWriterVectoredFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.jsonl")
	f, err := os.Create(path)
	require.NoError(t, err)

	rw := NewReportWriter(f, 16)
	var want strings.Builder
	for i := 0; i < 40; i++ {
		g := DuplicateGroup{
			Digest: DigestOf([]byte(fmt.Sprint(i))),
			Paths:  []string{fmt.Sprintf("dir/%d/a", i), fmt.Sprintf("dir/%d/b", i)},
		}
		require.NoError(t, rw.Write(g))
		want.WriteString(recordLine(t, g))
	}
	require.NoError(t, rw.Flush())
	require.NoError(t, f.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want.String(), string(got))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestReportWriterError(t *testing.T) {
	rw := NewReportWriter(failingWriter{}, 1)
	err := rw.Write(DuplicateGroup{Paths: []string{"a", "b"}})
	assert.ErrorContains(t, err, "disk full")
}

func TestErrorPrinter(t *testing.T) {
	old := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = old }()

	var buf bytes.Buffer
	printErr := ErrorPrinter(&buf)
	printErr(newScanError(KindCycle, "root/loop", ErrCycle))

	assert.Equal(t, "WARNING! symlink cycle: root/loop: "+ErrCycle.Error()+"\n", buf.String())
}

func recordLine(t *testing.T, g DuplicateGroup) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, NewReportWriter(&buf, 1).Write(g))
	return buf.String()
}

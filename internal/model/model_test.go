package model

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyError(t *testing.T) {
	wrapped := fmt.Errorf("reading header: %w", ErrIO)
	assert.Equal(t, KindIO, ClassifyError(wrapped))
	assert.Equal(t, KindNotFound, ClassifyError(ErrNotFound))
	assert.Equal(t, ErrorKind(""), ClassifyError(nil))
	assert.Equal(t, KindUnknown, ClassifyError(fmt.Errorf("boom")))
}

func TestStdoutReporterWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	r := NewStdoutReporter(&buf)

	r.Report("discovery", 1, 10, "scanning")
	r.Report("complete", 10, 10, "done")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"stage":"discovery"`)
	assert.Contains(t, lines[1], `"stage":"complete"`)
}

func TestNopReporterDoesNotPanic(t *testing.T) {
	var r ProgressReporter = NopReporter{}
	r.Report("anything", 0, 0, "")
}

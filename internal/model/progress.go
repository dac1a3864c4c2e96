package model

import (
	"encoding/json"
	"fmt"
	"io"
)

// Progress is one step of a long-running operation's advisory status stream
// (§6 progress notification payload, §9 "Progress stream" design note).
type Progress struct {
	Type    string `json:"type"`
	Stage   string `json:"stage"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// ProgressReporter is a capability passed into long-running operations
// (refresh, bulk upsert) so they can report advisory progress without
// knowing who is listening — a socket-backed connection, a CLI's stdout,
// or nothing at all in tests.
type ProgressReporter interface {
	Report(stage string, current, total int, message string)
}

// NopReporter discards every report; the zero value is ready to use.
type NopReporter struct{}

func (NopReporter) Report(stage string, current, total int, message string) {}

// StdoutReporter writes newline-delimited JSON progress lines to an
// io.Writer, for CLI-facing front ends or tests that want to observe the
// stage sequence without a live connection.
type StdoutReporter struct {
	Out io.Writer
}

func NewStdoutReporter(out io.Writer) *StdoutReporter {
	return &StdoutReporter{Out: out}
}

func (r *StdoutReporter) Report(stage string, current, total int, message string) {
	p := Progress{Type: "progress", Stage: stage, Current: current, Total: total, Message: message}
	enc, err := json.Marshal(p)
	if err != nil {
		return
	}
	fmt.Fprintf(r.Out, "%s\n", enc)
}

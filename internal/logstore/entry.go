// Package logstore implements the dual-tier record of executed commands:
// a bounded in-memory table with strict FIFO eviction, plus an optional
// best-effort disk tier with its own retention policy. The in-memory
// store's invariants (count, total size, age) hold synchronously after
// every insert; the disk tier is eventually consistent.
package logstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entry is the full record of one command execution (or one rejected
// request, stored with exit code -1 and a synthetic stderr). Entries are
// immutable after creation except for FilePath, which the disk tier fills
// in once, asynchronously, when its write succeeds.
type Entry struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	Command          string    `json:"command"`
	Shell            string    `json:"shell"`
	WorkingDirectory string    `json:"working_directory,omitempty"`
	ExitCode         int       `json:"exit_code"`
	Stdout           string    `json:"stdout"`
	Stderr           string    `json:"stderr"`
	CombinedOutput   string    `json:"combined_output"`
	StdoutLines      int       `json:"stdout_lines"`
	StderrLines      int       `json:"stderr_lines"`
	TotalLines       int       `json:"total_lines"`
	Size             int64     `json:"size"`
	FilePath         string    `json:"file_path,omitempty"`
}

// NewID returns a time-ordered entry ID with a random suffix, so IDs sort
// by creation time yet never collide within one second.
func NewID(now time.Time) string {
	return fmt.Sprintf("%s-%s", now.UTC().Format("20060102T150405"), uuid.NewString()[:8])
}

// NewEntry assembles an entry from the outputs of one execution, computing
// line counts and byte size from the stored fields.
func NewEntry(now time.Time, command, shellName, workingDir string, exitCode int, stdout, stderr, combined string) *Entry {
	e := &Entry{
		ID:               NewID(now),
		Timestamp:        now,
		Command:          command,
		Shell:            shellName,
		WorkingDirectory: workingDir,
		ExitCode:         exitCode,
		Stdout:           stdout,
		Stderr:           stderr,
		CombinedOutput:   combined,
	}
	e.recompute()
	return e
}

// recompute refreshes the derived fields (line counts, size) from the
// stored output fields, keeping the entry self-consistent.
func (e *Entry) recompute() {
	e.StdoutLines = CountLines(e.Stdout)
	e.StderrLines = CountLines(e.Stderr)
	e.TotalLines = CountLines(e.CombinedOutput)
	e.Size = int64(len(e.Stdout) + len(e.Stderr) + len(e.CombinedOutput))
}

// capToSize truncates an oversized entry down to maxSize bytes,
// proportionally across the three output fields, keeping the tail of each
// (the tail carries the failure signal). Derived fields are recomputed
// afterwards so the stored entry is always consistent with its own size.
func (e *Entry) capToSize(maxSize int64) {
	if maxSize <= 0 || e.Size <= maxSize {
		return
	}
	ratio := float64(maxSize) / float64(e.Size)
	e.Stdout = tailFraction(e.Stdout, ratio)
	e.Stderr = tailFraction(e.Stderr, ratio)
	e.CombinedOutput = tailFraction(e.CombinedOutput, ratio)
	e.recompute()
}

// tailFraction keeps roughly the last ratio*len(s) bytes of s, snapped
// forward to the next line boundary so no partial line survives.
func tailFraction(s string, ratio float64) string {
	if s == "" {
		return s
	}
	keep := int(float64(len(s)) * ratio)
	if keep >= len(s) {
		return s
	}
	tail := s[len(s)-keep:]
	if idx := strings.IndexByte(tail, '\n'); idx >= 0 && idx+1 < len(tail) {
		tail = tail[idx+1:]
	}
	return tail
}

// CountLines returns the number of lines in s. The empty string has zero
// lines; otherwise a trailing newline does not add a phantom line.
func CountLines(s string) int {
	if s == "" {
		return 0
	}
	s = strings.TrimSuffix(s, "\n")
	return strings.Count(s, "\n") + 1
}

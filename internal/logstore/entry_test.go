package logstore

import (
	"strings"
	"testing"
	"time"
)

func TestCountLines(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"one", 1},
		{"one\n", 1}, // trailing newline is not a phantom line
		{"one\ntwo", 2},
		{"one\ntwo\n", 2},
		{"\n", 1},
	}
	for _, tc := range tests {
		if got := CountLines(tc.in); got != tc.want {
			t.Errorf("CountLines(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestNewEntry(t *testing.T) {
	now := time.Now()
	e := NewEntry(now, "echo hi", "bash", "/srv/data", 0, "hi\n", "", "hi\n")

	if e.ID == "" {
		t.Fatal("empty ID")
	}
	if e.StdoutLines != 1 || e.StderrLines != 0 || e.TotalLines != 1 {
		t.Errorf("line counts = %d/%d/%d", e.StdoutLines, e.StderrLines, e.TotalLines)
	}
	if e.Size != int64(len("hi\n")*2) {
		t.Errorf("Size = %d", e.Size)
	}
}

func TestNewIDOrdering(t *testing.T) {
	early := NewID(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	late := NewID(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	if !(early < late) {
		t.Errorf("IDs not time-ordered: %q vs %q", early, late)
	}
}

func TestCapToSize(t *testing.T) {
	lines := make([]string, 100)
	for i := range lines {
		lines[i] = strings.Repeat("x", 99)
	}
	body := strings.Join(lines, "\n") + "\n" // 100 lines, 10000 bytes

	e := NewEntry(time.Now(), "gen", "bash", "", 0, body, "", body)
	before := e.Size

	e.capToSize(before / 2)

	if e.Size > before/2 {
		t.Errorf("Size = %d after cap to %d", e.Size, before/2)
	}
	// The tail survives, not the head.
	if !strings.HasSuffix(e.CombinedOutput, strings.Repeat("x", 99)+"\n") {
		t.Error("tail of output not preserved")
	}
	// No partial first line.
	first := strings.SplitN(e.CombinedOutput, "\n", 2)[0]
	if len(first) != 99 {
		t.Errorf("first kept line has %d bytes, want a whole 99-byte line", len(first))
	}
	// Derived fields stay consistent.
	if e.TotalLines != CountLines(e.CombinedOutput) {
		t.Errorf("TotalLines = %d, want %d", e.TotalLines, CountLines(e.CombinedOutput))
	}
}

func TestCapToSizeNoop(t *testing.T) {
	e := NewEntry(time.Now(), "echo", "bash", "", 0, "small\n", "", "small\n")
	size := e.Size
	e.capToSize(0) // 0 = no cap
	if e.Size != size {
		t.Error("capToSize(0) modified the entry")
	}
	e.capToSize(1 << 20)
	if e.CombinedOutput != "small\n" {
		t.Error("under-limit entry was truncated")
	}
}

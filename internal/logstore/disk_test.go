package logstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jkaninda/amri/internal/config"
)

func testDiskTier(t *testing.T, cfg config.DiskTierConfig) *DiskTier {
	t.Helper()
	cfg.Dir = t.TempDir()
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = "@every 1h" // keep the periodic sweep out of the test's way
	}
	d, err := NewDiskTier(&cfg, nil)
	if err != nil {
		t.Fatalf("NewDiskTier: %v", err)
	}
	t.Cleanup(d.Stop)
	return d
}

func TestDiskTierWrite(t *testing.T) {
	d := testDiskTier(t, config.DiskTierConfig{MaxFiles: 10})

	e := NewEntry(time.Now(), "echo hi", "bash", "/srv/data", 0, "hi\n", "", "hi\n")
	path, err := d.Write(e)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	text := string(data)

	for _, want := range []string{
		"ID: " + e.ID,
		"Shell: bash",
		"Working Directory: /srv/data",
		"Command: echo hi",
		"Exit Code: 0",
		"Total Lines: 1",
		strings.Repeat("-", 40),
		"hi",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("log file missing %q", want)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permissions = %o, want 0600", perm)
	}
}

func TestDiskTierSweepCount(t *testing.T) {
	d := testDiskTier(t, config.DiskTierConfig{MaxFiles: 3})

	for i := 0; i < 6; i++ {
		e := NewEntry(time.Now(), "cmd", "bash", "", 0, "x\n", "", "x\n")
		if _, err := d.Write(e); err != nil {
			t.Fatal(err)
		}
		// Distinct mtimes so oldest-first ordering is deterministic.
		time.Sleep(10 * time.Millisecond)
	}

	files, err := filepath.Glob(filepath.Join(d.dir, "*.log"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) > 3 {
		t.Errorf("%d files on disk, want <= 3", len(files))
	}
}

func TestDiskTierSweepAge(t *testing.T) {
	d := testDiskTier(t, config.DiskTierConfig{MaxAgeHours: 1})

	e := NewEntry(time.Now(), "cmd", "bash", "", 0, "x\n", "", "x\n")
	path, err := d.Write(e)
	if err != nil {
		t.Fatal(err)
	}

	// Age the file past the window, then sweep.
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}
	d.Sweep()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("aged-out file survived the sweep")
	}
}

func TestStoreDiskIntegration(t *testing.T) {
	cfg := testHistoryConfig()
	dcfg := &config.DiskTierConfig{
		Enabled:       true,
		Dir:           t.TempDir(),
		MaxFiles:      10,
		SweepSchedule: "@every 1h",
	}
	d, err := NewDiskTier(dcfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	s := New(cfg, d, nil)
	defer s.Close()

	e := addEntry(s, 0, "persisted\n")

	// The disk write is fire-and-forget; poll briefly for the file path to
	// land on the stored entry.
	deadline := time.Now().Add(2 * time.Second)
	for {
		got, ok := s.Get(e.ID)
		if ok && got.FilePath != "" {
			if _, err := os.Stat(got.FilePath); err != nil {
				t.Fatalf("file path set but unreadable: %v", err)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("disk write never surfaced a file path")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

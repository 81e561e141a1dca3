package logstore

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jkaninda/amri/internal/config"
)

// DiskTier persists one plain-text file per entry: a descriptive header
// block followed by the (possibly size-capped) combined output. Its
// count/size/age limits are independent of the in-memory store's and are
// enforced by a periodic sweep plus a best-effort pass after each write.
type DiskTier struct {
	dir          string
	maxFiles     int
	maxTotalSize int64
	maxAge       time.Duration

	cron    *cron.Cron
	sweepMu sync.Mutex // guards against overlapping sweeps
	logger  *slog.Logger
}

// NewDiskTier creates the tier directory and starts the periodic
// retention sweep on the configured cron schedule.
func NewDiskTier(cfg *config.DiskTierConfig, logger *slog.Logger) (*DiskTier, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
		return nil, fmt.Errorf("creating log directory %s: %w", cfg.Dir, err)
	}

	d := &DiskTier{
		dir:          cfg.Dir,
		maxFiles:     cfg.MaxFiles,
		maxTotalSize: cfg.MaxTotalSize,
		maxAge:       time.Duration(cfg.MaxAgeHours) * time.Hour,
		cron:         cron.New(),
		logger:       logger,
	}

	schedule := cfg.SweepSchedule
	if schedule == "" {
		schedule = "@every 5m"
	}
	if _, err := d.cron.AddFunc(schedule, d.Sweep); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	d.cron.Start()

	return d, nil
}

// Write persists one entry and returns the file path. Failures leave no
// partial file behind. A best-effort sweep runs afterwards so the tier's
// limits are approached promptly, not only on the next scheduled pass.
func (d *DiskTier) Write(e *Entry) (string, error) {
	path := filepath.Join(d.dir, e.ID+".log")

	var sb strings.Builder
	sb.WriteString("ID: " + e.ID + "\n")
	sb.WriteString("Timestamp: " + e.Timestamp.UTC().Format(time.RFC3339) + "\n")
	sb.WriteString("Shell: " + e.Shell + "\n")
	sb.WriteString("Working Directory: " + e.WorkingDirectory + "\n")
	sb.WriteString("Command: " + e.Command + "\n")
	sb.WriteString(fmt.Sprintf("Exit Code: %d\n", e.ExitCode))
	sb.WriteString(fmt.Sprintf("Total Lines: %d\n", e.TotalLines))
	sb.WriteString(strings.Repeat("-", 40) + "\n")
	sb.WriteString(e.CombinedOutput)
	if !strings.HasSuffix(e.CombinedOutput, "\n") {
		sb.WriteString("\n")
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0600); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("writing log file %s: %w", path, err)
	}

	d.Sweep()
	return path, nil
}

// Sweep enforces the tier's age, count, and size limits, deleting oldest
// files first. Re-entrancy guarded: a sweep that finds another in flight
// returns immediately instead of piling up.
func (d *DiskTier) Sweep() {
	if !d.sweepMu.TryLock() {
		return
	}
	defer d.sweepMu.Unlock()

	files, err := d.listLogFiles()
	if err != nil {
		d.logger.Warn("disk sweep failed", slog.String("error", err.Error()))
		return
	}

	now := time.Now()
	var kept []logFile
	for _, f := range files {
		if d.maxAge > 0 && now.Sub(f.modTime) > d.maxAge {
			d.remove(f.path)
			continue
		}
		kept = append(kept, f)
	}

	var total int64
	for _, f := range kept {
		total += f.size
	}
	// Oldest first until both limits hold.
	for len(kept) > 0 &&
		((d.maxFiles > 0 && len(kept) > d.maxFiles) ||
			(d.maxTotalSize > 0 && total > d.maxTotalSize)) {
		d.remove(kept[0].path)
		total -= kept[0].size
		kept = kept[1:]
	}
}

// Stop cancels the periodic sweep and waits for a running job to finish,
// so no dangling task survives shutdown.
func (d *DiskTier) Stop() {
	ctx := d.cron.Stop()
	<-ctx.Done()
}

type logFile struct {
	path    string
	size    int64
	modTime time.Time
}

// listLogFiles returns the tier's files sorted oldest first.
func (d *DiskTier) listLogFiles() ([]logFile, error) {
	dirents, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, err
	}
	files := make([]logFile, 0, len(dirents))
	for _, de := range dirents {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".log") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		files = append(files, logFile{
			path:    filepath.Join(d.dir, de.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })
	return files, nil
}

func (d *DiskTier) remove(path string) {
	if err := os.Remove(path); err != nil {
		d.logger.Warn("failed to remove log file",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return
	}
	d.logger.Debug("removed log file", slog.String("path", path))
}

package security

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEvent records one execution attempt, accepted or rejected.
// Rejected requests carry the violation text; accepted ones the exit code.
type AuditEvent struct {
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id"`
	Shell         string    `json:"shell"`
	Command       string    `json:"command"`
	WorkingDir    string    `json:"working_dir,omitempty"`
	Result        string    `json:"result"` // "executed", "rejected" (policy), or "fault" (spawn/timeout)
	ExitCode      int       `json:"exit_code"`
	Violation     string    `json:"violation,omitempty"`
}

// Auditor is the audit trail abstraction. Implementations must be safe
// for concurrent use; failures are best-effort and never propagate to the
// caller of an execution.
type Auditor interface {
	LogEvent(ctx context.Context, event AuditEvent) error
	Close() error
}

// FileAuditor writes audit events as append-only JSONL.
// Each event is a single JSON line followed by a newline.
// Thread-safe: multiple goroutines can log concurrently.
type FileAuditor struct {
	mu     sync.Mutex
	file   *os.File
	logger *slog.Logger
}

// NewFileAuditor opens (or creates) the audit log file in append-only mode.
// File permissions are 0600 (owner read/write only). A nil logger discards
// the auditor's own logs.
func NewFileAuditor(path string, logger *slog.Logger) (*FileAuditor, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating audit log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening audit log %s: %w", path, err)
	}
	return &FileAuditor{
		file:   f,
		logger: logger,
	}, nil
}

// LogEvent serializes the event as JSON and appends it to the audit log.
// Marshal happens outside the lock; only the file write is serialized.
func (a *FileAuditor) LogEvent(ctx context.Context, event AuditEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling audit event: %w", err)
	}
	data = append(data, '\n')

	a.mu.Lock()
	_, writeErr := a.file.Write(data)
	a.mu.Unlock()

	if writeErr != nil {
		return fmt.Errorf("writing audit event: %w", writeErr)
	}

	a.logger.InfoContext(ctx, "audit event logged",
		slog.String("shell", event.Shell),
		slog.String("result", event.Result),
		slog.String("correlation_id", event.CorrelationID),
	)
	return nil
}

// Close closes the underlying file.
func (a *FileAuditor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

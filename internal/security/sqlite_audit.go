package security

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// AuditRecord is the GORM model backing the SQLite audit trail.
// Uses modernc SQLite (pure Go, no CGO) through the glebarez GORM driver.
type AuditRecord struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	Timestamp     time.Time `gorm:"index;not null"`
	CorrelationID string    `gorm:"size:64;index"`
	Shell         string    `gorm:"size:32;not null"`
	Command       string    `gorm:"type:text;not null"`
	WorkingDir    string    `gorm:"type:text"`
	Result        string    `gorm:"size:16;index;not null"`
	ExitCode      int
	Violation     string `gorm:"type:text"`
}

// TableName keeps the table name stable regardless of GORM's pluralizer.
func (AuditRecord) TableName() string { return "audit_events" }

// SQLiteAuditor persists audit events to a local SQLite database, for
// operators who want a queryable trail rather than a JSONL file.
type SQLiteAuditor struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewSQLiteAuditor opens (or creates) the audit database and migrates the
// schema. WAL mode is enabled for concurrent readers.
func NewSQLiteAuditor(path string, slogger *slog.Logger) (*SQLiteAuditor, error) {
	if slogger == nil {
		slogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if path == "" {
		return nil, fmt.Errorf("sqlite audit path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("creating audit database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("opening audit database %s: %w", path, err)
	}
	if err := db.AutoMigrate(&AuditRecord{}); err != nil {
		return nil, fmt.Errorf("migrating audit schema: %w", err)
	}

	slogger.Info("sqlite audit store opened", slog.String("path", path))
	return &SQLiteAuditor{db: db, logger: slogger}, nil
}

// LogEvent inserts one audit row.
func (a *SQLiteAuditor) LogEvent(ctx context.Context, event AuditEvent) error {
	rec := AuditRecord{
		Timestamp:     event.Timestamp,
		CorrelationID: event.CorrelationID,
		Shell:         event.Shell,
		Command:       event.Command,
		WorkingDir:    event.WorkingDir,
		Result:        event.Result,
		ExitCode:      event.ExitCode,
		Violation:     event.Violation,
	}
	if err := a.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("inserting audit event: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (a *SQLiteAuditor) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

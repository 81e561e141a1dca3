package logstore

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jkaninda/amri/internal/config"
)

// Store is the in-memory tier: an insertion-ordered table keyed by entry
// ID with a running total size. All mutations are serialized behind one
// mutex (single-writer discipline); eviction runs synchronously inside
// Add, so the count/size/retention invariants hold the moment Add returns.
type Store struct {
	mu        sync.Mutex
	cfg       config.HistoryConfig
	retention time.Duration
	entries   []*Entry // insertion order, oldest first
	byID      map[string]*Entry
	totalSize int64

	disk   *DiskTier // nil = disk tier disabled
	logger *slog.Logger
}

// New creates a store. disk may be nil. A nil logger discards store logs.
func New(cfg config.HistoryConfig, disk *DiskTier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		cfg:       cfg,
		retention: time.Duration(cfg.RetentionHours) * time.Hour,
		byID:      make(map[string]*Entry),
		disk:      disk,
		logger:    logger,
	}
}

// Add inserts an entry: applies the per-entry size cap, stores it, then
// evicts (FIFO) until the count and total-size invariants hold and no
// entry older than the retention window survives. If a disk tier is
// configured, persistence is scheduled as a detached background task;
// its outcome never delays or alters the caller's response.
func (s *Store) Add(e *Entry) {
	e.capToSize(s.cfg.MaxEntrySize)

	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.byID[e.ID] = e
	s.totalSize += e.Size
	s.evictLocked()
	s.sweepRetentionLocked(time.Now())
	s.mu.Unlock()

	if s.disk != nil {
		entryCopy := *e
		go func() {
			path, err := s.disk.Write(&entryCopy)
			if err != nil {
				// Best-effort tier: log and drop, the in-memory entry
				// stays untouched.
				s.logger.Warn("disk log write failed",
					slog.String("id", entryCopy.ID),
					slog.String("error", err.Error()),
				)
				return
			}
			s.setFilePath(entryCopy.ID, path)
		}()
	}
}

// evictLocked drops oldest-first until count and total size fit. Eviction
// order is strict FIFO regardless of which invariant triggered it.
func (s *Store) evictLocked() {
	for len(s.entries) > 0 &&
		(len(s.entries) > s.cfg.MaxStoredLogs || s.totalSize > s.cfg.MaxTotalStorageSize) {
		s.dropOldestLocked()
	}
}

// sweepRetentionLocked removes entries older than the retention window.
// Entries are insertion-ordered, so the scan stops at the first survivor.
func (s *Store) sweepRetentionLocked(now time.Time) {
	if s.retention <= 0 {
		return
	}
	cutoff := now.Add(-s.retention)
	for len(s.entries) > 0 && s.entries[0].Timestamp.Before(cutoff) {
		s.dropOldestLocked()
	}
}

func (s *Store) dropOldestLocked() {
	victim := s.entries[0]
	s.entries = s.entries[1:]
	delete(s.byID, victim.ID)
	s.totalSize -= victim.Size
	s.logger.Debug("evicted log entry", slog.String("id", victim.ID))
}

// setFilePath records a successful disk write. The one permitted
// post-creation mutation; a no-op when the entry was already evicted.
func (s *Store) setFilePath(id, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.byID[id]; ok {
		e.FilePath = path
	}
}

// Get returns a copy of the entry with the given ID. The copy keeps
// callers from observing (or causing) mutation outside the store's lock.
func (s *Store) Get(id string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// List returns copies of the most recent entries, newest first, up to
// limit (0 = all).
func (s *Store) List(limit int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, 0, n)
	for i := len(s.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, *s.entries[i])
	}
	return out
}

// Stats returns the current entry count and total stored bytes.
func (s *Store) Stats() (count int, totalSize int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), s.totalSize
}

// Clear removes every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.byID = make(map[string]*Entry)
	s.totalSize = 0
}

// Close stops the disk tier's periodic sweep. The in-memory tier needs no
// teardown.
func (s *Store) Close() {
	if s.disk != nil {
		s.disk.Stop()
	}
}

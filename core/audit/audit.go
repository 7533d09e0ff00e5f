package audit

import (
	"sync"
	"time"

	"prefs-manager/core/prefs"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMaxEntries bounds the in-memory buffer when no limit is
// configured.
const DefaultMaxEntries = 1000

// Entry is one buffered audit record: the injector's entry plus a
// stable identifier.
type Entry struct {
	ID string `json:"id"`
	prefs.AuditEntry
}

// Filter narrows an Entries query. Zero fields match everything.
type Filter struct {
	// Action keeps only entries with this action.
	Action prefs.AuditAction
	// Key keeps only entries for this preference key.
	Key string
	// Since keeps only entries at or after this instant.
	Since time.Time
}

// Logger buffers audit entries in a bounded in-memory ring and mirrors
// each one to the structured log. Log is fire-and-forget: it never
// blocks the operation being audited and never fails into it.
type Logger struct {
	mu         sync.Mutex
	entries    []Entry
	maxEntries int
	logger     *zap.Logger
}

// New returns a Logger bounded to maxEntries (DefaultMaxEntries when
// non-positive), mirroring entries through logger.
func New(maxEntries int, logger *zap.Logger) *Logger {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{maxEntries: maxEntries, logger: logger}
}

// Log buffers the entry, dropping the oldest when the buffer is full,
// and emits it as a structured log line.
func (l *Logger) Log(entry prefs.AuditEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	buffered := Entry{ID: uuid.NewString(), AuditEntry: entry}

	l.mu.Lock()
	l.entries = append(l.entries, buffered)
	if len(l.entries) > l.maxEntries {
		l.entries = l.entries[len(l.entries)-l.maxEntries:]
	}
	l.mu.Unlock()

	fields := []zap.Field{
		zap.String("audit_id", buffered.ID),
		zap.String("action", string(entry.Action)),
		zap.String("key", entry.Key),
		zap.String("source", entry.Source),
	}
	if entry.OldValue != nil {
		fields = append(fields, zap.String("old_value", entry.OldValue.String()))
	}
	if entry.NewValue != nil {
		fields = append(fields, zap.String("new_value", entry.NewValue.String()))
	}
	l.logger.Info("audit", fields...)
}

// Entries returns the buffered entries matching filter, oldest first.
func (l *Logger) Entries(filter Filter) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.Key != "" && e.Key != filter.Key {
			continue
		}
		if !filter.Since.IsZero() && e.Timestamp.Before(filter.Since) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Len returns the number of buffered entries.
func (l *Logger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear drops the buffer.
func (l *Logger) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

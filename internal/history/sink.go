package history

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/dverna/alarm-guardian/internal/logger"
)

// Kind classifies an audit entry.
type Kind string

// Audit entry kinds.
const (
	KindTransition   Kind = "transition"
	KindEvent        Kind = "event"
	KindConfirmation Kind = "confirmation"
	KindEscalation   Kind = "escalation"
	KindHealth       Kind = "health"
)

// Entry is one append-only audit record.
type Entry struct {
	// ID identifies the entry.
	ID uuid.UUID `json:"id"`
	// SessionID ties the entry to an alarm session, zero when none applies.
	SessionID uuid.UUID `json:"session_id,omitempty"`
	// Kind classifies the entry.
	Kind Kind `json:"kind"`
	// At is when the recorded fact happened.
	At time.Time `json:"at"`
	// Payload carries the kind-specific detail.
	Payload any `json:"payload,omitempty"`
}

// NewEntry stamps a new entry with an id and timestamp.
func NewEntry(kind Kind, sessionID uuid.UUID, payload any) Entry {
	return Entry{
		ID:        uuid.New(),
		SessionID: sessionID,
		Kind:      kind,
		At:        time.Now(),
		Payload:   payload,
	}
}

// Sink receives audit entries. Appends must not block the caller for long;
// failures are reported but never stop alarm processing.
type Sink interface {
	// Append records one entry.
	Append(ctx context.Context, entry Entry) error
}

// LogSink writes entries to the structured log.
type LogSink struct{}

// Append logs the entry at info level.
func (LogSink) Append(ctx context.Context, entry Entry) error {
	logger.InfoKV(ctx, "audit",
		"kind", string(entry.Kind),
		"entry_id", entry.ID.String(),
		"session_id", entry.SessionID.String(),
		"payload", entry.Payload)

	return nil
}

// MemorySink keeps the most recent entries in a bounded ring, serving the
// recent-history queries of the status surface.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
	limit   int
}

// NewMemorySink creates a sink retaining at most limit entries.
func NewMemorySink(limit int) *MemorySink {
	if limit <= 0 {
		limit = 1000
	}

	return &MemorySink{limit: limit}
}

// Append records the entry, evicting the oldest past the limit.
func (s *MemorySink) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	if len(s.entries) > s.limit {
		s.entries = s.entries[len(s.entries)-s.limit:]
	}

	return nil
}

// Entries returns a snapshot of the retained entries, oldest first.
func (s *MemorySink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Entry(nil), s.entries...)
}

// FileSink appends entries as JSON lines to a file.
type FileSink struct {
	mu sync.Mutex
	f  *os.File
}

// NewFileSink opens (or creates) the audit file for appending. The file is
// readable by the owner only.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file %q: %w", path, err)
	}

	return &FileSink{f: f}, nil
}

// Append marshals the entry and writes one JSON line.
func (s *FileSink) Append(_ context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err = s.f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}

	return nil
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.f.Close()
}

// MultiSink fans entries out to several sinks, logging individual failures
// and never failing the append.
type MultiSink []Sink

// Append delivers the entry to every sink.
func (m MultiSink) Append(ctx context.Context, entry Entry) error {
	for _, sink := range m {
		if err := sink.Append(ctx, entry); err != nil {
			logger.ErrorKV(ctx, "audit sink append failed", "error", err)
		}
	}

	return nil
}

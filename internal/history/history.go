// Package history keeps the bounded, persisted log of completed analysis sessions.
//
// The log lives in memory and is written through to a Backend as one JSON array after
// every mutation. Writes are best effort: a failed write is logged and returned but the
// in-memory change stands.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kiranshivaraju/incidentdesk/pkg/models"
)

// MaxEntries is the number of sessions retained; older ones are evicted on append.
const MaxEntries = 12

var (
	// ErrCorrupted reports persisted content that is not a JSON array of entries.
	// The log has already been reset when it is returned.
	ErrCorrupted = errors.New("persisted history is corrupted")
	// ErrEntryNotFound is returned when no entry has the requested id.
	ErrEntryNotFound = errors.New("history entry not found")
)

// Matcher selects an entry for AppendFollowup.
type Matcher func(models.HistoryEntry) bool

// MatchID matches the entry with the given id.
func MatchID(id int64) Matcher {
	return func(e models.HistoryEntry) bool { return e.ID == id }
}

// Store is the in-memory history log backed by persistent storage.
type Store struct {
	mu      sync.Mutex
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
	entries []models.HistoryEntry
	lastID  int64
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock replaces time.Now for ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		logger:  slog.Default(),
		now:     time.Now,
		entries: []models.HistoryEntry{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the persisted log. It is called once at start-up. Missing content yields an
// empty log. Corrupt content resets the log to empty, writes the empty log back, and
// returns an error wrapping ErrCorrupted; the store stays usable.
func (s *Store) Load(ctx context.Context) error {
	blob, found, err := s.backend.Load(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !found || len(bytes.TrimSpace(blob)) == 0 {
		s.entries = []models.HistoryEntry{}
		return nil
	}

	entries, decodeErr := decode(blob)
	if decodeErr != nil {
		s.entries = []models.HistoryEntry{}
		s.logger.Warn("history reset after corrupt content", "error", decodeErr)
		if err := s.persistLocked(ctx); err != nil {
			return errors.Join(fmt.Errorf("%w: %v", ErrCorrupted, decodeErr), err)
		}
		return fmt.Errorf("%w: %v", ErrCorrupted, decodeErr)
	}

	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}
	s.entries = entries
	for _, e := range entries {
		if e.ID > s.lastID {
			s.lastID = e.ID
		}
	}
	s.logger.Debug("history loaded", "entries", len(entries))
	return nil
}

func decode(blob []byte) ([]models.HistoryEntry, error) {
	trimmed := bytes.TrimSpace(blob)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.New("content is not a JSON array")
	}
	var entries []models.HistoryEntry
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].FollowupMessages == nil {
			entries[i].FollowupMessages = []models.FollowupMessage{}
		}
	}
	return entries, nil
}

// Entries returns a copy of the log, newest first.
func (s *Store) Entries() []models.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.HistoryEntry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Clone()
	}
	return out
}

// Len returns the number of retained entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Get returns a copy of the entry with the given id.
func (s *Store) Get(id int64) (models.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e.Clone(), nil
		}
	}
	return models.HistoryEntry{}, fmt.Errorf("entry %d: %w", id, ErrEntryNotFound)
}

// NextID returns a fresh entry id: the current Unix time in milliseconds, or one past the
// last issued id when the clock has not moved forward.
func (s *Store) NextID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextIDLocked()
}

func (s *Store) nextIDLocked() int64 {
	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

// NewEntry builds an entry for a completed analysis with a fresh id and an empty thread.
func (s *Store) NewEntry(description, logLine string, result models.AnalysisResult) models.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.HistoryEntry{
		ID:               s.nextIDLocked(),
		CreatedAt:        s.now().UTC(),
		Description:      description,
		LogLine:          logLine,
		Response:         result.Clone(),
		FollowupMessages: []models.FollowupMessage{},
	}
}

// Append inserts entry at the front, evicts beyond MaxEntries and persists.
func (s *Store) Append(ctx context.Context, entry models.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry = entry.Clone()
	if entry.ID > s.lastID {
		s.lastID = entry.ID
	}

	next := make([]models.HistoryEntry, 0, MaxEntries)
	next = append(next, entry)
	next = append(next, s.entries...)
	if len(next) > MaxEntries {
		next = next[:MaxEntries]
	}
	s.entries = next

	return s.persistLocked(ctx)
}

// Clear empties the log and removes the stored blob; a missing blob loads as an empty
// log. Ids keep increasing after a clear.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = []models.HistoryEntry{}
	if err := s.backend.Delete(ctx); err != nil {
		s.logger.Error("failed to clear persisted history", "error", err)
		return err
	}
	return nil
}

// AppendFollowup appends messages to the thread of the first entry accepted by match and
// persists. Messages already in the entry are never changed. It reports whether an entry
// matched; nothing is written when none does.
func (s *Store) AppendFollowup(ctx context.Context, match Matcher, messages ...models.FollowupMessage) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		if !match(s.entries[i]) {
			continue
		}
		if len(messages) == 0 {
			return true, nil
		}
		s.entries[i].FollowupMessages = append(models.CloneThread(s.entries[i].FollowupMessages),
			models.CloneThread(messages)...)
		return true, s.persistLocked(ctx)
	}
	return false, nil
}

// Ping checks the backend.
func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

func (s *Store) persistLocked(ctx context.Context) error {
	blob, err := json.Marshal(s.entries)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := s.backend.Save(ctx, blob); err != nil {
		s.logger.Error("failed to persist history", "entries", len(s.entries), "error", err)
		return err
	}
	return nil
}

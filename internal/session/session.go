// Package session implements the client-side state of an incident analysis session.
//
// A Session bundles three cooperating parts: the Controller (input, analyze operation,
// current result), the DraftManager (knowledge-base draft derived from the result) and
// the ThreadManager (follow-up conversation about the result). All three share one
// history.Store. Each part guards its own state and never holds its lock across a call
// to the analysis service. Locks are only taken in the order controller, then draft or
// thread, then history.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/incidentdesk/internal/history"
	"github.com/kiranshivaraju/incidentdesk/pkg/models"
)

// Session is one user's analysis workspace. It is created at start, Reset on navigation
// away and Closed on unload.
type Session struct {
	ID        string
	CreatedAt time.Time

	Controller *Controller
	Draft      *DraftManager
	Thread     *ThreadManager

	history *history.Store
	logger  *slog.Logger
	now     func() time.Time
	// lastUsed is the UnixNano time of the last registry lookup.
	lastUsed atomic.Int64
}

// Snapshot is the full presentation state of a session.
type Snapshot struct {
	ID         string          `json:"id"`
	CreatedAt  time.Time       `json:"createdAt"`
	LastUsedAt time.Time       `json:"lastUsedAt"`
	Controller ControllerState `json:"controller"`
	Draft      DraftState      `json:"draft"`
	Thread     ThreadState     `json:"thread"`
}

type options struct {
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Session or Registry.
type Option func(*options)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock replaces time.Now for creation and idle tracking.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New creates a session that talks to service and records into hist.
func New(service models.AnalysisService, hist *history.Store, opts ...Option) *Session {
	o := buildOptions(opts)
	id := uuid.NewString()
	logger := o.logger.With("session_id", id)

	draft := newDraftManager(service, logger)
	thread := newThreadManager(service, hist, logger)
	s := &Session{
		ID:         id,
		CreatedAt:  o.now().UTC(),
		Controller: newController(service, hist, draft, thread, logger),
		Draft:      draft,
		Thread:     thread,
		history:    hist,
		logger:     logger,
		now:        o.now,
	}
	s.lastUsed.Store(s.CreatedAt.UnixNano())
	return s
}

func (s *Session) touch() {
	s.lastUsed.Store(s.now().UnixNano())
}

// LastUsed returns when the session was last looked up through its registry.
func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load()).UTC()
}

// LoadHistoryEntry makes the history entry with the given id active.
func (s *Session) LoadHistoryEntry(id int64) (models.HistoryEntry, error) {
	entry, err := s.history.Get(id)
	if err != nil {
		return models.HistoryEntry{}, fmt.Errorf("load history entry: %w", err)
	}
	if err := s.Controller.LoadFromHistory(entry); err != nil {
		return models.HistoryEntry{}, err
	}
	return entry, nil
}

// Reset clears the session back to its initial state. In-flight analyses no longer
// affect it.
func (s *Session) Reset() {
	s.Controller.reset()
	s.logger.Debug("session reset")
}

// Close tears the session down. Later operations return ErrSessionClosed.
func (s *Session) Close() {
	s.Controller.close()
	s.Draft.close()
	s.Thread.close()
	s.logger.Debug("session closed")
}

// Snapshot returns the presentation state of all three parts.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ID:         s.ID,
		CreatedAt:  s.CreatedAt,
		LastUsedAt: s.LastUsed(),
		Controller: s.Controller.Snapshot(),
		Draft:      s.Draft.Snapshot(),
		Thread:     s.Thread.Snapshot(),
	}
}

// Registry tracks the live sessions of a process. All sessions share one history.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	service  models.AnalysisService
	history  *history.Store
	opts     []Option
	logger   *slog.Logger
	now      func() time.Time
}

func NewRegistry(service models.AnalysisService, hist *history.Store, opts ...Option) *Registry {
	o := buildOptions(opts)
	return &Registry{
		sessions: make(map[string]*Session),
		service:  service,
		history:  hist,
		opts:     opts,
		logger:   o.logger,
		now:      o.now,
	}
}

// Create starts a new session and registers it.
func (r *Registry) Create() *Session {
	s := New(r.service, r.history, r.opts...)
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	r.logger.Info("session created", "session_id", s.ID)
	return s
}

// Get returns the session and marks it as used.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	s.touch()
	return s, nil
}

// Close closes and forgets the session.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	s.Close()
	r.logger.Info("session closed", "session_id", id)
	return nil
}

// CloseAll closes every session. Called on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

// ExpireIdle closes the sessions not looked up for longer than idle, covering clients
// that went away without closing their session. It returns how many were closed.
func (r *Registry) ExpireIdle(idle time.Duration) int {
	cutoff := r.now().Add(-idle).UnixNano()

	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.lastUsed.Load() < cutoff {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Close()
		r.logger.Info("idle session expired", "session_id", s.ID, "last_used", s.LastUsed())
	}
	return len(expired)
}

// RunExpiry calls ExpireIdle every interval until ctx is done.
func (r *Registry) RunExpiry(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.ExpireIdle(idle)
		}
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// History returns the shared history store.
func (r *Registry) History() *history.Store {
	return r.history
}

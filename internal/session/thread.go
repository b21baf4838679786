package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/kiranshivaraju/incidentdesk/internal/analyzer"
	"github.com/kiranshivaraju/incidentdesk/internal/history"
	"github.com/kiranshivaraju/incidentdesk/pkg/models"
)

// ThreadStatus is the state of the follow-up operation.
type ThreadStatus string

const (
	ThreadIdle    ThreadStatus = "idle"
	ThreadLoading ThreadStatus = "loading"
	ThreadError   ThreadStatus = "error"
)

// ThreadState is a copy of the thread manager's state for presentation.
type ThreadState struct {
	EntryID       int64                    `json:"entryId,omitempty"`
	Thread        []models.FollowupMessage `json:"thread"`
	DraftQuestion string                   `json:"draftQuestion"`
	Status        ThreadStatus             `json:"status"`
	ErrorMessage  string                   `json:"errorMessage,omitempty"`
}

// ThreadManager holds the follow-up conversation about the active analysis and mirrors
// it into the matching history entry.
type ThreadManager struct {
	mu      sync.Mutex
	service models.AnalysisService
	history *history.Store
	logger  *slog.Logger

	active        *Active
	thread        []models.FollowupMessage
	draftQuestion string
	status        ThreadStatus
	errorMessage  string
	// persisted counts the leading thread messages already stored in the history entry.
	persisted int

	// gen changes whenever the thread is replaced.
	gen    uint64
	closed bool
}

func newThreadManager(service models.AnalysisService, hist *history.Store, logger *slog.Logger) *ThreadManager {
	return &ThreadManager{
		service: service,
		history: hist,
		logger:  logger,
		thread:  []models.FollowupMessage{},
		status:  ThreadIdle,
	}
}

// Reset replaces the thread wholesale, keeping the active analysis. initial is treated as
// already stored in the history entry.
func (t *ThreadManager) Reset(initial []models.FollowupMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked(t.active, initial)
}

func (t *ThreadManager) reset(active *Active, initial []models.FollowupMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked(active, initial)
}

func (t *ThreadManager) resetLocked(active *Active, initial []models.FollowupMessage) {
	t.gen++
	t.active = active
	t.thread = models.CloneThread(initial)
	t.persisted = len(t.thread)
	t.draftQuestion = ""
	t.status = ThreadIdle
	t.errorMessage = ""
}

// SetDraftQuestion stores the question being typed.
func (t *ThreadManager) SetDraftQuestion(text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrSessionClosed
	}
	t.draftQuestion = text
	return nil
}

// Ask appends question to the thread and requests an answer. The question stays in the
// thread when the request fails; asking again appends a new question.
//
// On success the answer is appended and the messages not yet stored are appended to the
// history entry of the active analysis. When the thread has been replaced while the
// request was in flight, the question and answer are appended to the entry they were
// asked against instead; the new thread is left alone.
func (t *ThreadManager) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return "", ErrSessionClosed
	}
	if t.active == nil {
		t.mu.Unlock()
		return "", ErrNoResult
	}
	if question == "" {
		t.mu.Unlock()
		return "", ErrEmptyQuestion
	}

	t.thread = append(t.thread, models.FollowupMessage{Role: models.RoleUser, Content: question})
	t.draftQuestion = ""
	t.status = ThreadLoading
	t.errorMessage = ""

	active := t.active
	sent := models.CloneThread(t.thread)
	sentPersisted := t.persisted
	gen := t.gen
	t.mu.Unlock()

	req := models.FollowupRequest{
		Description: active.Description,
		LogLine:     active.LogLine,
		RawOutput:   active.Result.RawOutput,
		Question:    question,
		ChatHistory: sent,
	}
	if p := active.Result.Parsed(); p != nil {
		clone := p.Clone()
		req.ParsedOutput = &clone
	}

	resp, err := t.service.Followup(ctx, req)

	t.mu.Lock()
	defer t.mu.Unlock()
	current := gen == t.gen

	if err != nil {
		t.logger.Error("follow-up failed", "entry_id", active.EntryID, "error", err)
		if current {
			t.status = ThreadError
			t.errorMessage = analyzer.UserMessage(err, analyzer.FallbackFollowup)
		}
		return "", fmt.Errorf("follow-up: %w", err)
	}

	answer := models.FollowupMessage{Role: models.RoleAssistant, Content: resp.Answer}
	var pending []models.FollowupMessage
	if current {
		t.thread = append(t.thread, answer)
		t.status = ThreadIdle
		pending = models.CloneThread(t.thread[t.persisted:])
		t.persisted = len(t.thread)
	} else {
		// The thread was replaced; add this exchange after whatever the entry holds now.
		pending = append(sent[sentPersisted:], answer)
		t.logger.Info("follow-up answered after thread reset", "entry_id", active.EntryID)
	}

	matched, err := t.history.AppendFollowup(ctx, history.MatchID(active.EntryID), pending...)
	if err != nil {
		t.logger.Warn("follow-up thread not persisted", "entry_id", active.EntryID, "error", err)
	} else if !matched {
		t.logger.Debug("follow-up entry no longer in history", "entry_id", active.EntryID)
	}
	return resp.Answer, nil
}

// Snapshot returns a copy of the thread state.
func (t *ThreadManager) Snapshot() ThreadState {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := ThreadState{
		Thread:        models.CloneThread(t.thread),
		DraftQuestion: t.draftQuestion,
		Status:        t.status,
		ErrorMessage:  t.errorMessage,
	}
	if t.active != nil {
		st.EntryID = t.active.EntryID
	}
	return st
}

func (t *ThreadManager) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	t.closed = true
}

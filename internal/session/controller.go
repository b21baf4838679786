package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/kiranshivaraju/incidentdesk/internal/analyzer"
	"github.com/kiranshivaraju/incidentdesk/internal/history"
	"github.com/kiranshivaraju/incidentdesk/pkg/models"
)

const (
	// MaxLogFileBytes is the largest accepted log upload (2 MiB).
	MaxLogFileBytes = 2 * 1024 * 1024
	// MaxLogRunes is how many characters of an upload are kept.
	MaxLogRunes = 20000
)

// Status is the state of the analyze operation.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Active is the analysis the draft and thread managers work against. It is handed to
// them whenever the controller's current result changes.
type Active struct {
	EntryID     int64
	Description string
	LogLine     string
	Result      models.AnalysisResult
}

// ControllerState is a copy of the controller's state for presentation.
type ControllerState struct {
	Description   string                 `json:"description"`
	LogLine       string                 `json:"logLine"`
	Status        Status                 `json:"status"`
	Result        *models.AnalysisResult `json:"result,omitempty"`
	ActiveEntryID int64                  `json:"activeEntryId,omitempty"`
	ErrorMessage  string                 `json:"errorMessage,omitempty"`
	FileError     string                 `json:"fileError,omitempty"`
}

// Controller owns the session input, the analyze operation and the current result.
type Controller struct {
	mu      sync.Mutex
	service models.AnalysisService
	history *history.Store
	draft   *DraftManager
	thread  *ThreadManager
	logger  *slog.Logger

	description  string
	logLine      string
	status       Status
	active       *Active
	errorMessage string
	fileError    string

	// token identifies the latest analyze request; older responses are stale.
	token  uint64
	closed bool
}

func newController(service models.AnalysisService, hist *history.Store, draft *DraftManager, thread *ThreadManager, logger *slog.Logger) *Controller {
	return &Controller{
		service: service,
		history: hist,
		draft:   draft,
		thread:  thread,
		logger:  logger,
		status:  StatusIdle,
	}
}

// SetInput replaces the description and log line.
func (c *Controller) SetInput(description, logLine string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrSessionClosed
	}
	c.description = description
	c.logLine = logLine
	return nil
}

// SubmitAnalysis sends the trimmed input for analysis. On success the result becomes
// active, a history entry is recorded, and the draft and thread are reset for it.
//
// A response that arrives after a newer submission, a history load or a reset is still
// recorded in history but leaves the session untouched; ErrSuperseded is returned with
// the recorded entry.
func (c *Controller) SubmitAnalysis(ctx context.Context) (models.HistoryEntry, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return models.HistoryEntry{}, ErrSessionClosed
	}
	description := strings.TrimSpace(c.description)
	logLine := strings.TrimSpace(c.logLine)
	if description == "" && logLine == "" {
		c.errorMessage = MsgValidation
		c.mu.Unlock()
		return models.HistoryEntry{}, ErrValidation
	}

	c.token++
	token := c.token
	c.status = StatusLoading
	c.errorMessage = ""
	c.active = nil
	c.draft.rederive(nil)
	c.thread.reset(nil, nil)
	c.mu.Unlock()

	c.logger.Info("analysis requested", "description_len", len(description), "log_len", len(logLine))
	result, err := c.service.Analyze(ctx, models.AnalyzeRequest{Description: description, LogLine: logLine})
	if err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		if token != c.token {
			c.logger.Warn("stale analysis failed", "error", err)
			return models.HistoryEntry{}, ErrSuperseded
		}
		c.status = StatusError
		c.errorMessage = analyzer.UserMessage(err, analyzer.FallbackAnalyze)
		c.logger.Error("analysis failed", "error", err)
		return models.HistoryEntry{}, fmt.Errorf("analyze: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.history.NewEntry(description, logLine, result)
	if err := c.history.Append(ctx, entry); err != nil {
		c.logger.Warn("history entry not persisted", "entry_id", entry.ID, "error", err)
	}

	if token != c.token {
		c.logger.Info("stale analysis recorded", "entry_id", entry.ID)
		return entry, ErrSuperseded
	}

	c.status = StatusSuccess
	c.activateLocked(entry)
	c.logger.Info("analysis completed", "entry_id", entry.ID)
	return entry, nil
}

// LoadFromHistory makes a past entry active without any network call.
func (c *Controller) LoadFromHistory(entry models.HistoryEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrSessionClosed
	}
	c.token++
	c.description = entry.Description
	c.logLine = entry.LogLine
	c.errorMessage = ""
	c.status = StatusSuccess
	c.activateLocked(entry)
	c.logger.Debug("history entry loaded", "entry_id", entry.ID)
	return nil
}

// activateLocked installs entry as the current result and hands it to the draft and
// thread managers.
func (c *Controller) activateLocked(entry models.HistoryEntry) {
	c.active = &Active{
		EntryID:     entry.ID,
		Description: entry.Description,
		LogLine:     entry.LogLine,
		Result:      entry.Response.Clone(),
	}
	c.draft.rederive(c.active)
	c.thread.reset(c.active, entry.FollowupMessages)
}

// IngestLogFile reads an uploaded log into the log line. size is the size reported by
// the upload; content is read up to the limit regardless. The log line is left
// unchanged on any failure.
func (c *Controller) IngestLogFile(name string, size int64, r io.Reader) error {
	if c.isClosed() {
		return ErrSessionClosed
	}
	if size > MaxLogFileBytes {
		c.setFileError(MsgFileTooLarge)
		return fmt.Errorf("%s: %d bytes: %w", name, size, ErrFileTooLarge)
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxLogFileBytes+1))
	if err != nil {
		c.setFileError(MsgFileUnreadable)
		return fmt.Errorf("%s: %w: %v", name, ErrFileUnreadable, err)
	}
	if len(data) > MaxLogFileBytes {
		c.setFileError(MsgFileTooLarge)
		return fmt.Errorf("%s: %w", name, ErrFileTooLarge)
	}
	if !utf8.Valid(data) {
		c.setFileError(MsgFileUnreadable)
		return fmt.Errorf("%s: %w", name, ErrFileUnreadable)
	}

	text := truncateRunes(string(data), MaxLogRunes)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrSessionClosed
	}
	c.logLine = text
	c.fileError = ""
	c.logger.Debug("log file ingested", "file", name, "bytes", len(data))
	return nil
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func (c *Controller) setFileError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fileError = msg
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Active returns a copy of the current analysis, if any.
func (c *Controller) Active() (Active, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return Active{}, false
	}
	a := *c.active
	a.Result = a.Result.Clone()
	return a, true
}

// Snapshot returns a copy of the controller state.
func (c *Controller) Snapshot() ControllerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := ControllerState{
		Description:  c.description,
		LogLine:      c.logLine,
		Status:       c.status,
		ErrorMessage: c.errorMessage,
		FileError:    c.fileError,
	}
	if c.active != nil {
		r := c.active.Result.Clone()
		st.Result = &r
		st.ActiveEntryID = c.active.EntryID
	}
	return st
}

// reset returns the controller to its initial state and invalidates in-flight analyses.
func (c *Controller) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token++
	c.description = ""
	c.logLine = ""
	c.status = StatusIdle
	c.active = nil
	c.errorMessage = ""
	c.fileError = ""
	c.draft.rederive(nil)
	c.thread.reset(nil, nil)
}

func (c *Controller) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token++
	c.closed = true
}

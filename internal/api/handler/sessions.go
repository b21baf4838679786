package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/incidentdesk/internal/api/response"
	"github.com/kiranshivaraju/incidentdesk/internal/session"
)

// maxUploadBytes bounds a multipart log upload: the file limit plus room for headers.
const maxUploadBytes = session.MaxLogFileBytes + 64*1024

// Sessions serves the /sessions routes.
type Sessions struct {
	registry  *session.Registry
	opTimeout time.Duration
}

// NewSessions builds the handlers. opTimeout bounds each remote operation once issued.
func NewSessions(reg *session.Registry, opTimeout time.Duration) *Sessions {
	return &Sessions{registry: reg, opTimeout: opTimeout}
}

// operationContext detaches a remote operation from the request so a client disconnect
// does not abandon it half way. The operation still ends after opTimeout.
func (h *Sessions) operationContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), h.opTimeout)
}

// lookup resolves {sessionID}, writing a 404 when it is unknown.
func (h *Sessions) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.registry.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err, "", nil)
		return nil, false
	}
	return s, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
		return false
	}
	return true
}

// Create handles POST /sessions.
func (h *Sessions) Create(w http.ResponseWriter, r *http.Request) {
	s := h.registry.Create()
	response.Created(w, s.Snapshot())
}

// Get handles GET /sessions/{sessionID}.
func (h *Sessions) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	response.JSON(w, s.Snapshot())
}

// Close handles DELETE /sessions/{sessionID}.
func (h *Sessions) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Close(chi.URLParam(r, "sessionID")); err != nil {
		writeError(w, err, "", nil)
		return
	}
	response.NoContent(w)
}

// Reset handles POST /sessions/{sessionID}/reset.
func (h *Sessions) Reset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	s.Reset()
	response.JSON(w, s.Snapshot())
}

// SetInput handles PUT /sessions/{sessionID}/input.
func (h *Sessions) SetInput(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		Description string `json:"description"`
		LogLine     string `json:"logLine"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.Controller.SetInput(req.Description, req.LogLine); err != nil {
		writeError(w, err, "", nil)
		return
	}
	response.JSON(w, s.Snapshot())
}

// Analyze handles POST /sessions/{sessionID}/analyze. An optional body replaces the
// input before submitting.
func (h *Sessions) Analyze(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if r.ContentLength > 0 {
		var req struct {
			Description string `json:"description"`
			LogLine     string `json:"logLine"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if err := s.Controller.SetInput(req.Description, req.LogLine); err != nil {
			writeError(w, err, "", nil)
			return
		}
	}

	ctx, cancel := h.operationContext(r)
	defer cancel()
	if _, err := s.Controller.SubmitAnalysis(ctx); err != nil {
		snap := s.Snapshot()
		writeError(w, err, snap.Controller.ErrorMessage, snap)
		return
	}
	response.JSON(w, s.Snapshot())
}

// UploadLogFile handles POST /sessions/{sessionID}/logfile with multipart field "file".
func (h *Sessions) UploadLogFile(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, session.ErrFileTooLarge, "", nil)
			return
		}
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "multipart field \"file\" is required", nil)
		return
	}
	defer file.Close()

	if err := s.Controller.IngestLogFile(header.Filename, header.Size, file); err != nil {
		slog.Warn("log upload rejected", "session_id", s.ID, "file", header.Filename, "error", err)
		snap := s.Snapshot()
		writeError(w, err, snap.Controller.FileError, snap)
		return
	}
	response.JSON(w, s.Snapshot())
}

// LoadHistoryEntry handles POST /sessions/{sessionID}/history/{entryID}/load.
func (h *Sessions) LoadHistoryEntry(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	entryID, err := strconv.ParseInt(chi.URLParam(r, "entryID"), 10, 64)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "entryID must be an integer", nil)
		return
	}
	if _, err := s.LoadHistoryEntry(entryID); err != nil {
		writeError(w, err, "", nil)
		return
	}
	response.JSON(w, s.Snapshot())
}

// OpenDraft handles POST /sessions/{sessionID}/draft.
func (h *Sessions) OpenDraft(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := s.Draft.Open(); err != nil {
		writeError(w, err, "", nil)
		return
	}
	response.JSON(w, s.Snapshot())
}

// EditDraft handles PUT /sessions/{sessionID}/draft.
func (h *Sessions) EditDraft(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var fields session.DraftFields
	if !decodeBody(w, r, &fields) {
		return
	}
	if err := s.Draft.Edit(fields); err != nil {
		writeError(w, err, "", nil)
		return
	}
	response.JSON(w, s.Snapshot())
}

// SubmitDraft handles POST /sessions/{sessionID}/draft/submit.
func (h *Sessions) SubmitDraft(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.operationContext(r)
	defer cancel()
	if _, err := s.Draft.Submit(ctx); err != nil {
		snap := s.Snapshot()
		writeError(w, err, snap.Draft.SaveError, snap)
		return
	}
	response.JSON(w, s.Snapshot())
}

// CancelDraft handles DELETE /sessions/{sessionID}/draft.
func (h *Sessions) CancelDraft(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	s.Draft.Cancel()
	response.JSON(w, s.Snapshot())
}

// SetQuestion handles PUT /sessions/{sessionID}/followup/draft.
func (h *Sessions) SetQuestion(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		Question string `json:"question"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.Thread.SetDraftQuestion(req.Question); err != nil {
		writeError(w, err, "", nil)
		return
	}
	response.JSON(w, s.Snapshot())
}

// Ask handles POST /sessions/{sessionID}/followup. Without a question in the body the
// stored draft question is asked.
func (h *Sessions) Ask(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		Question string `json:"question"`
	}
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}
	if req.Question == "" {
		req.Question = s.Thread.Snapshot().DraftQuestion
	}

	ctx, cancel := h.operationContext(r)
	defer cancel()
	if _, err := s.Thread.Ask(ctx, req.Question); err != nil {
		snap := s.Snapshot()
		writeError(w, err, snap.Thread.ErrorMessage, snap)
		return
	}
	response.JSON(w, s.Snapshot())
}

package handler

import (
	"errors"
	"net/http"

	"github.com/kiranshivaraju/incidentdesk/internal/analyzer"
	"github.com/kiranshivaraju/incidentdesk/internal/api/response"
	"github.com/kiranshivaraju/incidentdesk/internal/history"
	"github.com/kiranshivaraju/incidentdesk/internal/session"
)

// writeError maps a session or analyzer error onto an HTTP error response. message is
// the user-facing text; when empty a generic message for the error kind is used.
// details, when non-nil, carries the session snapshot so clients can refresh panels.
func writeError(w http.ResponseWriter, err error, message string, details any) {
	status, code, fallback := classify(err)
	if message == "" {
		message = fallback
	}
	response.Error(w, status, code, message, details)
}

func classify(err error) (status int, code, message string) {
	var svcErr *analyzer.ServiceError
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found"
	case errors.Is(err, history.ErrEntryNotFound):
		return http.StatusNotFound, "ENTRY_NOT_FOUND", "History entry not found"
	case errors.Is(err, session.ErrValidation):
		return http.StatusBadRequest, "VALIDATION_ERROR", session.MsgValidation
	case errors.Is(err, session.ErrEmptyQuestion):
		return http.StatusBadRequest, "VALIDATION_ERROR", "Please enter a question."
	case errors.Is(err, session.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", session.MsgFileTooLarge
	case errors.Is(err, session.ErrFileUnreadable):
		return http.StatusUnprocessableEntity, "FILE_UNREADABLE", session.MsgFileUnreadable
	case errors.Is(err, session.ErrNoResult):
		return http.StatusConflict, "NO_RESULT", "No analysis result is active"
	case errors.Is(err, session.ErrDraftNotOpen):
		return http.StatusConflict, "DRAFT_NOT_OPEN", "Knowledge draft is not open"
	case errors.Is(err, session.ErrSaveInProgress):
		return http.StatusConflict, "SAVE_IN_PROGRESS", "Knowledge save already in progress"
	case errors.Is(err, session.ErrSuperseded):
		return http.StatusConflict, "SUPERSEDED", "A newer request replaced this analysis"
	case errors.Is(err, session.ErrSessionClosed):
		return http.StatusConflict, "SESSION_CLOSED", "Session closed"
	case errors.As(err, &svcErr):
		return http.StatusBadGateway, "ANALYZER_ERROR", analyzer.UserMessage(err, analyzer.FallbackAnalyze)
	case errors.Is(err, analyzer.ErrInvalidResponse):
		return http.StatusBadGateway, "ANALYZER_INVALID_RESPONSE", analyzer.FallbackAnalyze
	case errors.Is(err, analyzer.ErrNetwork), errors.Is(err, analyzer.ErrTimeout):
		return http.StatusServiceUnavailable, "ANALYZER_UNAVAILABLE", analyzer.FallbackNetwork
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"
	}
}

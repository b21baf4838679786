package session

import "errors"

// Sentinel errors returned by session operations. Each one is also surfaced as a message
// in the panel state of the operation that raised it.
var (
	ErrValidation     = errors.New("description or log line required")
	ErrFileTooLarge   = errors.New("log file exceeds size limit")
	ErrFileUnreadable = errors.New("log file is not readable text")
	ErrNoResult       = errors.New("no active analysis result")
	ErrDraftNotOpen   = errors.New("knowledge draft is not open")
	ErrSaveInProgress = errors.New("knowledge save already in progress")
	ErrEmptyQuestion  = errors.New("follow-up question is empty")
	ErrSuperseded     = errors.New("analysis superseded by a newer request")
	ErrSessionClosed  = errors.New("session closed")
	ErrNotFound       = errors.New("session not found")
)

// User-facing messages for local failures.
const (
	MsgValidation     = "Please enter description or log line."
	MsgFileTooLarge   = "File is too large. Please upload a log file up to 2 MB."
	MsgFileUnreadable = "Unable to read the file. Please upload a text-based log file."
)

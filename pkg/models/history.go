package models

import "time"

// HistoryEntry is one completed analysis session as persisted in the profile history.
// JSON keys are camelCase to stay readable by earlier clients sharing the same blob.
type HistoryEntry struct {
	ID               int64             `json:"id"               yaml:"id"`
	CreatedAt        time.Time         `json:"createdAt"        yaml:"created_at"`
	Description      string            `json:"description"      yaml:"description"`
	LogLine          string            `json:"logLine"          yaml:"log_line"`
	Response         AnalysisResult    `json:"response"         yaml:"response"`
	FollowupMessages []FollowupMessage `json:"followupMessages" yaml:"followup_messages"`
}

// Summary is the one-line label used when listing history.
func (e HistoryEntry) Summary() string {
	if p := e.Response.ParsedOutput; p != nil && p.ExecutiveSummary != "" {
		return p.ExecutiveSummary
	}
	if e.Response.RawOutput != "" {
		return e.Response.RawOutput
	}
	return "No summary"
}

// Clone returns a deep copy of the entry.
func (e HistoryEntry) Clone() HistoryEntry {
	e.Response = e.Response.Clone()
	e.FollowupMessages = CloneThread(e.FollowupMessages)
	return e
}

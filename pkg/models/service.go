// Package models contains shared data models used across the incidentdesk codebase.
package models

import "context"

// AnalysisService is the contract of the remote analysis service.
// Session code never talks HTTP directly; it is always handed this interface.
type AnalysisService interface {
	// Analyze requests a root-cause analysis for an incident.
	Analyze(ctx context.Context, req AnalyzeRequest) (AnalysisResult, error)
	// SaveKnowledge persists a reviewed analysis into the knowledge base.
	SaveKnowledge(ctx context.Context, req KnowledgeSaveRequest) (KnowledgeSaveResponse, error)
	// Followup answers a question about an existing analysis.
	Followup(ctx context.Context, req FollowupRequest) (FollowupResponse, error)
}

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	Description string `json:"description"`
	LogLine     string `json:"log_line"`
}

// KnowledgeSaveRequest is the body of POST /knowledge/save.
type KnowledgeSaveRequest struct {
	Description  string         `json:"description"`
	LogLine      string         `json:"log_line"`
	Notes        string         `json:"notes"`
	ParsedOutput ParsedAnalysis `json:"parsed_output"`
}

// KnowledgeSaveResponse is the body returned by POST /knowledge/save.
type KnowledgeSaveResponse struct {
	ID       string `json:"id"`
	FilePath string `json:"file_path,omitempty"`
	Message  string `json:"message,omitempty"`
}

// FollowupRequest is the body of POST /followup. ChatHistory already contains Question
// as its last user turn.
type FollowupRequest struct {
	Description  string            `json:"description"`
	LogLine      string            `json:"log_line"`
	ParsedOutput *ParsedAnalysis   `json:"parsed_output"`
	RawOutput    string            `json:"raw_output"`
	Question     string            `json:"question"`
	ChatHistory  []FollowupMessage `json:"chat_history"`
}

// FollowupResponse is the body returned by POST /followup.
type FollowupResponse struct {
	Answer string `json:"answer"`
}

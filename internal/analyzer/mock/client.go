package mock

import (
	"context"
	"sync"

	"github.com/kiranshivaraju/incidentdesk/internal/analyzer"
	"github.com/kiranshivaraju/incidentdesk/pkg/models"
)

// Client satisfies analyzer.Client for tests. Nil hooks return zero values.
// Calls are counted so tests can assert that no request was issued.
type Client struct {
	AnalyzeFunc       func(ctx context.Context, req models.AnalyzeRequest) (models.AnalysisResult, error)
	SaveKnowledgeFunc func(ctx context.Context, req models.KnowledgeSaveRequest) (models.KnowledgeSaveResponse, error)
	FollowupFunc      func(ctx context.Context, req models.FollowupRequest) (models.FollowupResponse, error)
	HealthFunc        func(ctx context.Context) error

	mu    sync.Mutex
	calls map[string]int
}

func (m *Client) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[op]++
}

// Calls returns how many times op ("analyze", "knowledge", "followup", "health") ran.
func (m *Client) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *Client) Analyze(ctx context.Context, req models.AnalyzeRequest) (models.AnalysisResult, error) {
	m.record("analyze")
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, req)
	}
	return models.AnalysisResult{}, nil
}

func (m *Client) SaveKnowledge(ctx context.Context, req models.KnowledgeSaveRequest) (models.KnowledgeSaveResponse, error) {
	m.record("knowledge")
	if m.SaveKnowledgeFunc != nil {
		return m.SaveKnowledgeFunc(ctx, req)
	}
	return models.KnowledgeSaveResponse{}, nil
}

func (m *Client) Followup(ctx context.Context, req models.FollowupRequest) (models.FollowupResponse, error) {
	m.record("followup")
	if m.FollowupFunc != nil {
		return m.FollowupFunc(ctx, req)
	}
	return models.FollowupResponse{}, nil
}

func (m *Client) Health(ctx context.Context) error {
	m.record("health")
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// NewClient returns a Client with sensible default responses.
func NewClient() *Client {
	return &Client{
		AnalyzeFunc: func(_ context.Context, req models.AnalyzeRequest) (models.AnalysisResult, error) {
			score := 0.85
			return models.AnalysisResult{
				RawOutput: "mock analysis for: " + req.Description,
				ParsedOutput: &models.ParsedAnalysis{
					ExecutiveSummary:   "Mock executive summary",
					RootCause:          "Simulated root cause from mock client",
					Severity:           "High",
					ConfidenceScore:    &score,
					ImpactedServices:   []string{"payments-api"},
					IndicatorsDetected: []string{"HTTP 503"},
					ResolutionSteps:    []string{"Restart the failing pods", "Scale the connection pool"},
					PreventiveActions:  []string{"Alert on pool saturation"},
				},
			}, nil
		},
		SaveKnowledgeFunc: func(_ context.Context, _ models.KnowledgeSaveRequest) (models.KnowledgeSaveResponse, error) {
			return models.KnowledgeSaveResponse{ID: "DOC-LEARN-MOCK0001"}, nil
		},
		FollowupFunc: func(_ context.Context, req models.FollowupRequest) (models.FollowupResponse, error) {
			return models.FollowupResponse{Answer: "Mock answer to: " + req.Question}, nil
		},
	}
}

// NewFailingClient returns a Client whose remote operations all fail with err.
func NewFailingClient(err error) *Client {
	return &Client{
		AnalyzeFunc: func(_ context.Context, _ models.AnalyzeRequest) (models.AnalysisResult, error) {
			return models.AnalysisResult{}, err
		},
		SaveKnowledgeFunc: func(_ context.Context, _ models.KnowledgeSaveRequest) (models.KnowledgeSaveResponse, error) {
			return models.KnowledgeSaveResponse{}, err
		},
		FollowupFunc: func(_ context.Context, _ models.FollowupRequest) (models.FollowupResponse, error) {
			return models.FollowupResponse{}, err
		},
		HealthFunc: func(_ context.Context) error { return err },
	}
}

// Compile-time check that Client implements analyzer.Client.
var _ analyzer.Client = (*Client)(nil)

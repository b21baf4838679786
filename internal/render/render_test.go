package render_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/kiranshivaraju/incidentdesk/internal/render"
	"github.com/kiranshivaraju/incidentdesk/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestAnalysis_FullResult(t *testing.T) {
	score := 0.856
	res := models.AnalysisResult{
		RawOutput: "raw text",
		ParsedOutput: &models.ParsedAnalysis{
			ExecutiveSummary: "Payments failing",
			Severity:         "High",
			ConfidenceScore:  &score,
			ResolutionSteps:  []string{"Restart pods", "Scale pool"},
			ImpactedServices: []string{"payments-api"},
		},
	}

	var buf bytes.Buffer
	render.Analysis(&buf, res, render.Options{})
	out := buf.String()

	assert.Contains(t, out, "Payments failing")
	assert.Contains(t, out, "High")
	assert.Contains(t, out, "0.86")
	assert.Contains(t, out, "1. Restart pods")
	assert.Contains(t, out, "2. Scale pool")
	assert.Contains(t, out, "- payments-api")
	assert.NotContains(t, out, "raw text")

	// Root cause and the empty lists fall back.
	assert.Equal(t, 3, strings.Count(out, "Not available"))
}

func TestAnalysis_MissingFieldsFallBack(t *testing.T) {
	var buf bytes.Buffer
	render.Analysis(&buf, models.AnalysisResult{ParsedOutput: &models.ParsedAnalysis{}}, render.Options{})
	out := buf.String()

	assert.Contains(t, out, "Unknown")
	assert.Contains(t, out, "0.00")
	assert.Equal(t, 6, strings.Count(out, "Not available"))
}

func TestAnalysis_RawOnly(t *testing.T) {
	var buf bytes.Buffer
	render.Analysis(&buf, models.AnalysisResult{RawOutput: "model said things"}, render.Options{})
	out := buf.String()

	assert.Contains(t, out, "No parsed output available. Showing raw output only.")
	assert.Contains(t, out, "model said things")
	assert.NotContains(t, out, "Severity")
}

func TestAnalysis_ShowRaw(t *testing.T) {
	var buf bytes.Buffer
	res := models.AnalysisResult{RawOutput: "raw text", ParsedOutput: &models.ParsedAnalysis{Severity: "Low"}}
	render.Analysis(&buf, res, render.Options{ShowRaw: true})

	assert.Contains(t, buf.String(), "Raw Output")
	assert.Contains(t, buf.String(), "raw text")
}

func TestConfidence(t *testing.T) {
	score := 0.7
	assert.Equal(t, "0.70", render.Confidence(&models.ParsedAnalysis{ConfidenceScore: &score}))
	assert.Equal(t, "0.00", render.Confidence(&models.ParsedAnalysis{}))
	assert.Equal(t, "0.00", render.Confidence(nil))
}

func TestSeverity(t *testing.T) {
	assert.Contains(t, render.Severity(""), "Unknown")
	assert.Contains(t, render.Severity("Critical"), "Critical")
	assert.Contains(t, render.Severity("weird"), "weird")
}

func TestHistoryList(t *testing.T) {
	var buf bytes.Buffer
	render.HistoryList(&buf, nil)
	assert.Contains(t, buf.String(), "No history yet.")

	buf.Reset()
	render.HistoryList(&buf, []models.HistoryEntry{
		{ID: 2, CreatedAt: time.Now(), Response: models.AnalysisResult{ParsedOutput: &models.ParsedAnalysis{ExecutiveSummary: "DB down"}}},
		{ID: 1, CreatedAt: time.Now(), Response: models.AnalysisResult{RawOutput: "line one\nline two"}},
		{ID: 0, CreatedAt: time.Now()},
	})
	out := buf.String()
	assert.Contains(t, out, "History (3)")
	assert.Contains(t, out, "DB down")
	assert.Contains(t, out, "line one ...")
	assert.NotContains(t, out, "line two")
	assert.Contains(t, out, "No summary")
}

func TestEntry_IncludesThread(t *testing.T) {
	var buf bytes.Buffer
	render.Entry(&buf, models.HistoryEntry{
		ID:          1700000000000,
		Description: "Payment API 503s",
		Response:    models.AnalysisResult{ParsedOutput: &models.ParsedAnalysis{Severity: "High"}},
		FollowupMessages: []models.FollowupMessage{
			{Role: models.RoleUser, Content: "Why?"},
			{Role: models.RoleAssistant, Content: "Pool exhausted."},
		},
	}, render.Options{})
	out := buf.String()

	assert.Contains(t, out, "#1700000000000")
	assert.Contains(t, out, "Description: Payment API 503s")
	assert.Contains(t, out, "You: Why?")
	assert.Contains(t, out, "Analyst: Pool exhausted.")
}

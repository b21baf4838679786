// Package render prints analyses and history for the terminal.
package render

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/kiranshivaraju/incidentdesk/pkg/models"
)

const (
	notAvailable   = "Not available"
	unknown        = "Unknown"
	rawOnlyNotice  = "No parsed output available. Showing raw output only."
	confidenceBars = 20
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Bold(true)

	severityColors = map[string]lipgloss.Color{
		"critical": lipgloss.Color("196"),
		"high":     lipgloss.Color("202"),
		"medium":   lipgloss.Color("220"),
		"low":      lipgloss.Color("42"),
	}
)

// Options controls optional parts of the analysis output.
type Options struct {
	ShowRaw bool
}

// Analysis writes a result in the order an operator reads it: summary, cause and steps
// first, then severity and the supporting lists.
func Analysis(w io.Writer, res models.AnalysisResult, opts Options) {
	fmt.Fprintln(w, headerStyle.Render("Analysis"))

	p := res.Parsed()
	if p == nil {
		fmt.Fprintln(w, mutedStyle.Render(rawOnlyNotice))
		writeRaw(w, res.RawOutput)
		return
	}

	section(w, "Executive Summary")
	fmt.Fprintln(w, textOr(p.ExecutiveSummary))
	section(w, "Root Cause")
	fmt.Fprintln(w, textOr(p.RootCause))
	section(w, "Resolution Steps")
	list(w, p.ResolutionSteps, true)
	section(w, "Severity")
	fmt.Fprintln(w, Severity(p.Severity))
	section(w, "Confidence")
	fmt.Fprintf(w, "%s %s\n", confidenceBar(p.Confidence()), Confidence(p))
	section(w, "Impacted Services")
	list(w, p.ImpactedServices, false)
	section(w, "Indicators Detected")
	list(w, p.IndicatorsDetected, false)
	section(w, "Preventive Actions")
	list(w, p.PreventiveActions, false)

	if opts.ShowRaw {
		writeRaw(w, res.RawOutput)
	}
}

// Severity renders the severity label, "Unknown" when empty.
func Severity(s string) string {
	if s == "" {
		return mutedStyle.Render(unknown)
	}
	style := lipgloss.NewStyle().Bold(true)
	if c, ok := severityColors[strings.ToLower(s)]; ok {
		style = style.Foreground(c)
	}
	return style.Render(s)
}

// Confidence formats the score with two decimals; an absent score reads 0.00.
func Confidence(p *models.ParsedAnalysis) string {
	return fmt.Sprintf("%.2f", p.Confidence())
}

func confidenceBar(score float64) string {
	filled := int(math.Round(math.Max(0, math.Min(1, score)) * confidenceBars))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", confidenceBars-filled) + "]"
}

func section(w io.Writer, title string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, sectionStyle.Render(title))
}

func textOr(s string) string {
	if s == "" {
		return mutedStyle.Render(notAvailable)
	}
	return s
}

func list(w io.Writer, items []string, ordered bool) {
	if len(items) == 0 {
		fmt.Fprintln(w, mutedStyle.Render(notAvailable))
		return
	}
	for i, item := range items {
		if ordered {
			fmt.Fprintf(w, "  %d. %s\n", i+1, item)
		} else {
			fmt.Fprintf(w, "  - %s\n", item)
		}
	}
}

func writeRaw(w io.Writer, raw string) {
	section(w, "Raw Output")
	fmt.Fprintln(w, raw)
}

// HistoryList writes one line per entry: id, local time and summary.
func HistoryList(w io.Writer, entries []models.HistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No history yet."))
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("History (%d)", len(entries))))
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %s  %s\n",
			idStyle.Render(fmt.Sprintf("%d", e.ID)),
			mutedStyle.Render(e.CreatedAt.Local().Format("2006-01-02 15:04:05")),
			firstLine(e.Summary()))
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

// Thread writes a follow-up conversation.
func Thread(w io.Writer, thread []models.FollowupMessage) {
	if len(thread) == 0 {
		return
	}
	section(w, "Follow-up")
	for _, m := range thread {
		label := userStyle.Render("You")
		if m.Role == models.RoleAssistant {
			label = assistantStyle.Render("Analyst")
		}
		fmt.Fprintf(w, "%s: %s\n", label, m.Content)
	}
}

// Entry writes a history entry: its input, the analysis and the thread.
func Entry(w io.Writer, e models.HistoryEntry, opts Options) {
	fmt.Fprintf(w, "%s %s\n", idStyle.Render(fmt.Sprintf("#%d", e.ID)),
		mutedStyle.Render(e.CreatedAt.Local().Format("2006-01-02 15:04:05")))
	if e.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", e.Description)
	}
	if e.LogLine != "" {
		fmt.Fprintf(w, "Log: %s\n", firstLine(e.LogLine))
	}
	fmt.Fprintln(w)
	Analysis(w, e.Response, opts)
	Thread(w, e.FollowupMessages)
}

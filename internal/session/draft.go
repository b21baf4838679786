package session

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/kiranshivaraju/incidentdesk/internal/analyzer"
	"github.com/kiranshivaraju/incidentdesk/pkg/models"
)

// SaveStatus is the state of the knowledge save operation.
type SaveStatus string

const (
	SaveIdle   SaveStatus = "idle"
	SaveSaving SaveStatus = "saving"
	SaveSaved  SaveStatus = "saved"
	SaveError  SaveStatus = "error"
)

// DraftFields are the editable draft values. List fields are kept as text: resolution
// and preventive steps one per line, services and indicators comma separated.
type DraftFields struct {
	ExecutiveSummary   string `json:"executive_summary"`
	RootCause          string `json:"root_cause"`
	Severity           string `json:"severity"`
	Confidence         string `json:"confidence_score"`
	ImpactedServices   string `json:"impacted_services"`
	IndicatorsDetected string `json:"indicators_detected"`
	ResolutionSteps    string `json:"resolution_steps"`
	PreventiveActions  string `json:"preventive_actions"`
	Notes              string `json:"notes"`
}

// DraftState is a copy of the draft manager's state for presentation.
type DraftState struct {
	Open        bool        `json:"open"`
	Fields      DraftFields `json:"fields"`
	SaveStatus  SaveStatus  `json:"saveStatus"`
	SaveMessage string      `json:"saveMessage,omitempty"`
	SaveError   string      `json:"saveError,omitempty"`
	SavedID     string      `json:"savedId,omitempty"`
}

// DraftManager turns the active analysis into an editable knowledge-base draft and
// submits it.
type DraftManager struct {
	mu      sync.Mutex
	service models.AnalysisService
	logger  *slog.Logger

	active      *Active
	open        bool
	fields      DraftFields
	saveStatus  SaveStatus
	saveMessage string
	saveError   string
	savedID     string

	// gen changes whenever the active analysis changes.
	gen    uint64
	closed bool
}

func newDraftManager(service models.AnalysisService, logger *slog.Logger) *DraftManager {
	return &DraftManager{service: service, logger: logger, saveStatus: SaveIdle}
}

// DeriveDraft projects an analysis onto draft fields. A nil analysis gives empty fields.
func DeriveDraft(p *models.ParsedAnalysis) DraftFields {
	if p == nil {
		return DraftFields{}
	}
	f := DraftFields{
		ExecutiveSummary:   p.ExecutiveSummary,
		RootCause:          p.RootCause,
		Severity:           p.Severity,
		ImpactedServices:   strings.Join(p.ImpactedServices, ", "),
		IndicatorsDetected: strings.Join(p.IndicatorsDetected, ", "),
		ResolutionSteps:    strings.Join(p.ResolutionSteps, "\n"),
		PreventiveActions:  strings.Join(p.PreventiveActions, "\n"),
	}
	if p.ConfidenceScore != nil {
		f.Confidence = strconv.FormatFloat(*p.ConfidenceScore, 'f', -1, 64)
	}
	return f
}

// ParsedFromDraft converts draft fields back into an analysis.
func ParsedFromDraft(f DraftFields) models.ParsedAnalysis {
	confidence := ParseConfidence(f.Confidence)
	return models.ParsedAnalysis{
		ExecutiveSummary:   f.ExecutiveSummary,
		RootCause:          f.RootCause,
		Severity:           f.Severity,
		ConfidenceScore:    &confidence,
		ImpactedServices:   splitList(f.ImpactedServices, ","),
		IndicatorsDetected: splitList(f.IndicatorsDetected, ","),
		ResolutionSteps:    splitList(f.ResolutionSteps, "\n"),
		PreventiveActions:  splitList(f.PreventiveActions, "\n"),
	}
}

// ParseConfidence parses a confidence score. Text that is not a finite number gives 0.
func ParseConfidence(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// splitList splits s on sep, trims each item and drops empty ones.
func splitList(s, sep string) []string {
	out := []string{}
	for _, item := range strings.Split(s, sep) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Open derives the draft from the active analysis. Opening an already open draft keeps
// its edits.
func (d *DraftManager) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrSessionClosed
	}
	if d.active == nil {
		return ErrNoResult
	}
	if d.open {
		return nil
	}
	d.fields = DeriveDraft(d.active.Result.Parsed())
	d.open = true
	d.saveError = ""
	return nil
}

// Edit replaces the editable fields.
func (d *DraftManager) Edit(fields DraftFields) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return ErrDraftNotOpen
	}
	d.fields = fields
	return nil
}

// Cancel closes the draft and discards edits.
func (d *DraftManager) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	d.fields = DraftFields{}
	d.saveError = ""
}

// Submit saves the draft to the knowledge base. The draft closes on success and stays
// open with an error message on failure.
func (d *DraftManager) Submit(ctx context.Context) (models.KnowledgeSaveResponse, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return models.KnowledgeSaveResponse{}, ErrSessionClosed
	}
	if !d.open || d.active == nil {
		d.mu.Unlock()
		return models.KnowledgeSaveResponse{}, ErrDraftNotOpen
	}
	if d.saveStatus == SaveSaving {
		d.mu.Unlock()
		return models.KnowledgeSaveResponse{}, ErrSaveInProgress
	}

	req := models.KnowledgeSaveRequest{
		Description:  d.active.Description,
		LogLine:      d.active.LogLine,
		Notes:        d.fields.Notes,
		ParsedOutput: ParsedFromDraft(d.fields),
	}
	entryID := d.active.EntryID
	gen := d.gen
	d.saveStatus = SaveSaving
	d.saveError = ""
	d.saveMessage = ""
	d.mu.Unlock()

	resp, err := d.service.SaveKnowledge(ctx, req)

	d.mu.Lock()
	defer d.mu.Unlock()
	current := gen == d.gen

	if err != nil {
		d.logger.Error("knowledge save failed", "entry_id", entryID, "error", err)
		if current {
			d.saveStatus = SaveError
			d.saveError = analyzer.UserMessage(err, analyzer.FallbackKnowledge)
		}
		return models.KnowledgeSaveResponse{}, fmt.Errorf("save knowledge: %w", err)
	}

	d.logger.Info("knowledge saved", "entry_id", entryID, "knowledge_id", resp.ID)
	if current {
		d.saveStatus = SaveSaved
		d.saveMessage = fmt.Sprintf("Knowledge saved with ID %s.", resp.ID)
		d.savedID = resp.ID
		d.open = false
		d.fields = DraftFields{}
	}
	return resp, nil
}

// Snapshot returns a copy of the draft state.
func (d *DraftManager) Snapshot() DraftState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DraftState{
		Open:        d.open,
		Fields:      d.fields,
		SaveStatus:  d.saveStatus,
		SaveMessage: d.saveMessage,
		SaveError:   d.saveError,
		SavedID:     d.savedID,
	}
}

// rederive points the draft at a new active analysis (or none) and closes it.
func (d *DraftManager) rederive(active *Active) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	d.active = active
	d.open = false
	d.fields = DraftFields{}
	d.saveStatus = SaveIdle
	d.saveMessage = ""
	d.saveError = ""
	d.savedID = ""
}

func (d *DraftManager) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	d.closed = true
	d.open = false
}

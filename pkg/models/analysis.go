package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// AnalysisResult is the body of a successful analyze call. It is never mutated after it
// has been received.
type AnalysisResult struct {
	RawOutput    string          `json:"raw_output"              yaml:"raw_output"`
	ParsedOutput *ParsedAnalysis `json:"parsed_output,omitempty" yaml:"parsed_output,omitempty"`
}

// Parsed returns the structured analysis, or nil when the service could only return raw text.
func (r *AnalysisResult) Parsed() *ParsedAnalysis {
	if r == nil {
		return nil
	}
	return r.ParsedOutput
}

// Clone returns a deep copy of the result.
func (r AnalysisResult) Clone() AnalysisResult {
	if r.ParsedOutput != nil {
		p := r.ParsedOutput.Clone()
		r.ParsedOutput = &p
	}
	return r
}

// ParsedAnalysis is the structured root-cause analysis. Every field is optional; the
// service produces it from model output and does not guarantee a complete object.
type ParsedAnalysis struct {
	ExecutiveSummary   string   `json:"executive_summary,omitempty"   yaml:"executive_summary,omitempty"`
	RootCause          string   `json:"root_cause,omitempty"          yaml:"root_cause,omitempty"`
	Severity           string   `json:"severity,omitempty"            yaml:"severity,omitempty"`
	ConfidenceScore    *float64 `json:"confidence_score,omitempty"    yaml:"confidence_score,omitempty"`
	ImpactedServices   []string `json:"impacted_services,omitempty"   yaml:"impacted_services,omitempty"`
	IndicatorsDetected []string `json:"indicators_detected,omitempty" yaml:"indicators_detected,omitempty"`
	ResolutionSteps    []string `json:"resolution_steps,omitempty"    yaml:"resolution_steps,omitempty"`
	PreventiveActions  []string `json:"preventive_actions,omitempty"  yaml:"preventive_actions,omitempty"`
}

// Confidence returns the confidence score, or 0 when absent.
func (p *ParsedAnalysis) Confidence() float64 {
	if p == nil || p.ConfidenceScore == nil {
		return 0
	}
	return *p.ConfidenceScore
}

// Clone returns a deep copy of the analysis.
func (p ParsedAnalysis) Clone() ParsedAnalysis {
	if p.ConfidenceScore != nil {
		c := *p.ConfidenceScore
		p.ConfidenceScore = &c
	}
	p.ImpactedServices = cloneStrings(p.ImpactedServices)
	p.IndicatorsDetected = cloneStrings(p.IndicatorsDetected)
	p.ResolutionSteps = cloneStrings(p.ResolutionSteps)
	p.PreventiveActions = cloneStrings(p.PreventiveActions)
	return p
}

// UnmarshalJSON decodes leniently. Model-produced JSON regularly carries numbers as
// strings or scalars where a list is expected; such values are coerced instead of
// failing the whole response.
func (p *ParsedAnalysis) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*p = ParsedAnalysis{
		ExecutiveSummary:   lenientString(fields["executive_summary"]),
		RootCause:          lenientString(fields["root_cause"]),
		Severity:           lenientString(fields["severity"]),
		ConfidenceScore:    lenientFloat(fields["confidence_score"]),
		ImpactedServices:   lenientStrings(fields["impacted_services"]),
		IndicatorsDetected: lenientStrings(fields["indicators_detected"]),
		ResolutionSteps:    lenientStrings(fields["resolution_steps"]),
		PreventiveActions:  lenientStrings(fields["preventive_actions"]),
	}
	return nil
}

func lenientString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func lenientFloat(raw json.RawMessage) *float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return &f
		}
	}
	return nil
}

func lenientStrings(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		if s := lenientString(raw); s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := lenientString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

package models

import (
	"encoding/json"
	"fmt"
)

// AnalysisResult holds the well-known fields of a completed job's payload.
// The agent owns the schema; unknown fields are ignored and missing fields
// stay zero.
type AnalysisResult struct {
	Themes          []string `json:"themes,omitempty"`
	Sentiment       string   `json:"sentiment,omitempty"`
	Confidence      string   `json:"-"`
	Summary         string   `json:"summary,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	RawResponse     string   `json:"raw_response,omitempty"`
}

// DecodeResult extracts the well-known fields from a job's opaque result.
// Confidence is reported either as a number or a label depending on the
// analysis type, so it is normalised to a string.
func DecodeResult(raw json.RawMessage) (AnalysisResult, error) {
	var out AnalysisResult
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return AnalysisResult{}, fmt.Errorf("decoding analysis result: %w", err)
	}

	var extra struct {
		Confidence any `json:"confidence"`
	}
	if err := json.Unmarshal(raw, &extra); err == nil && extra.Confidence != nil {
		switch v := extra.Confidence.(type) {
		case string:
			out.Confidence = v
		case float64:
			out.Confidence = fmt.Sprintf("%.2f", v)
		default:
			out.Confidence = fmt.Sprint(v)
		}
	}
	return out, nil
}

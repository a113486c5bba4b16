package entities

import "time"

// Analysis is the quality-scoring payload serialized into the call record.
// Summary passes the redaction pass before the document is persisted or
// returned, regardless of whether the transcript was already masked.
type Analysis struct {
	Summary         string    `json:"summary"`
	PolitenessScore float64   `json:"politeness_score"`
	ResolutionScore float64   `json:"resolution_score"`
	ComplianceScore float64   `json:"compliance_score"`
	ModelUsed       string    `json:"model_used,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// AnalysisResult is the raw structured output decoded from the LLM response
type AnalysisResult struct {
	Summary         string  `json:"summary"`
	PolitenessScore float64 `json:"politeness_score"`
	ResolutionScore float64 `json:"resolution_score"`
	ComplianceScore float64 `json:"compliance_score"`
}

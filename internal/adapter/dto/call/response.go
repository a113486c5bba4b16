package call

import (
	"encoding/json"
	"time"

	"github.com/Auremas/voxanalyze-mvp/internal/domain/entities"
)

// CallResponse represents a call record in responses. Transcription and
// Analysis carry the decrypted documents and are omitted in listings.
type CallResponse struct {
	ID         string `json:"id"`
	FileName   string `json:"file_name"`
	FileFormat string `json:"file_format"`
	FileSize   int64  `json:"file_size"`
	Status     string `json:"status"`
	UserID     string `json:"user_id"`

	Transcription json.RawMessage `json:"transcription,omitempty"`
	Analysis      json.RawMessage `json:"analysis,omitempty"`
	LastError     *string         `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FromEntity converts a call entity to its response shape
func FromEntity(c *entities.Call) *CallResponse {
	resp := &CallResponse{
		ID:         c.ID.String(),
		FileName:   c.FileName,
		FileFormat: c.FileFormat,
		FileSize:   c.FileSize,
		Status:     string(c.Status),
		UserID:     c.UserID.String(),
		LastError:  c.LastError,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
	if c.HasTranscription() {
		resp.Transcription = json.RawMessage(c.Transcription)
	}
	if c.HasAnalysis() {
		resp.Analysis = json.RawMessage(c.Analysis)
	}
	return resp
}

// FromEntities converts a slice of call entities
func FromEntities(calls []*entities.Call) []*CallResponse {
	out := make([]*CallResponse, 0, len(calls))
	for _, c := range calls {
		out = append(out, FromEntity(c))
	}
	return out
}

// AudioURLResponse carries a short-lived download link for a recording
type AudioURLResponse struct {
	URL string `json:"url"`
}

// TranscriptResponse represents a masked transcript in responses
type TranscriptResponse struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Language string            `json:"language,omitempty"`
	Segments []SegmentResponse `json:"segments"`
}

// SegmentResponse represents one speaker segment
type SegmentResponse struct {
	Speaker   string  `json:"speaker"`
	Text      string  `json:"text"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// TranscriptFromEntity converts a transcript entity to its response shape
func TranscriptFromEntity(t *entities.Transcript) *TranscriptResponse {
	segments := make([]SegmentResponse, 0, len(t.Segments))
	for _, s := range t.Segments {
		segments = append(segments, SegmentResponse{
			Speaker:   s.Speaker,
			Text:      s.Text,
			StartTime: s.StartTime,
			EndTime:   s.EndTime,
		})
	}
	return &TranscriptResponse{
		ID:       t.ID.String(),
		Text:     t.Text,
		Language: t.Language,
		Segments: segments,
	}
}

package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Segment represents a contiguous speech segment attributed to one speaker
type Segment struct {
	Speaker   string  `json:"speaker"`
	Text      string  `json:"text"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// Transcript is the transcription payload serialized into the call record.
// The concatenation of non-empty segment texts approximates Text; the
// Normalize repair step restores the invariant when an upstream provider
// returns one without the other.
type Transcript struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	Language  string    `json:"language,omitempty"`
	Segments  []Segment `json:"segments"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTranscript creates a transcript with a fresh id and timestamp
func NewTranscript(text, language string, segments []Segment) *Transcript {
	return &Transcript{
		ID:        uuid.New(),
		Text:      text,
		Language:  language,
		Segments:  segments,
		Timestamp: time.Now(),
	}
}

// Normalize repairs incomplete provider output: an empty Text is rebuilt
// from segment texts, and segments with empty text are dropped.
func (t *Transcript) Normalize() {
	segments := make([]Segment, 0, len(t.Segments))
	for _, s := range t.Segments {
		if strings.TrimSpace(s.Text) != "" {
			segments = append(segments, s)
		}
	}
	t.Segments = segments

	if strings.TrimSpace(t.Text) == "" && len(t.Segments) > 0 {
		parts := make([]string, 0, len(t.Segments))
		for _, s := range t.Segments {
			parts = append(parts, s.Text)
		}
		t.Text = strings.Join(parts, " ")
	}
}

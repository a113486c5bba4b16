package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CallStatus represents the processing status of an uploaded call recording
type CallStatus string

const (
	CallStatusPending      CallStatus = "pending"      // Created, audio not yet durably stored
	CallStatusTranscribing CallStatus = "transcribing" // Audio stored, speech-to-text in flight
	CallStatusAnalyzing    CallStatus = "analyzing"    // Masked transcript stored, scoring in flight
	CallStatusCompleted    CallStatus = "completed"    // Transcript and analysis persisted
	CallStatusFailed       CallStatus = "failed"       // Terminal failure at any stage
)

// Call represents an uploaded call recording and its processing artifacts.
//
// Transcription and Analysis hold either the encrypted envelope document
// or the plaintext-shaped document, depending on whether an encryption
// key was configured at write time. The raw (unmasked) transcript never
// reaches these columns.
type Call struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	AudioID    string     `json:"audio_id" gorm:"type:varchar(255);not null"`
	FileName   string     `json:"file_name" gorm:"type:varchar(500);not null"`
	FileFormat string     `json:"file_format" gorm:"type:varchar(20);default:'mp3'"`
	FileSize   int64      `json:"file_size"`
	Status     CallStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`

	Transcription datatypes.JSON `json:"transcription,omitempty" gorm:"type:jsonb"`
	Analysis      datatypes.JSON `json:"analysis,omitempty" gorm:"type:jsonb"`

	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	LastError *string   `json:"last_error,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Call) TableName() string {
	return "calls"
}

// NewCall creates a new call record in the pending state
func NewCall(userID uuid.UUID, fileName, fileFormat string, fileSize int64) *Call {
	return &Call{
		ID:         uuid.New(),
		FileName:   fileName,
		FileFormat: fileFormat,
		FileSize:   fileSize,
		Status:     CallStatusPending,
		UserID:     userID,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
}

// IsTerminal reports whether the record reached a terminal state
func (c *Call) IsTerminal() bool {
	return c.Status == CallStatusCompleted || c.Status == CallStatusFailed
}

// HasTranscription reports whether a transcription document was persisted
func (c *Call) HasTranscription() bool {
	return len(c.Transcription) > 0
}

// HasAnalysis reports whether an analysis document was persisted
func (c *Call) HasAnalysis() bool {
	return len(c.Analysis) > 0
}

// MarkFailed moves the record to the failed state with a message.
// Callers must sanitize the message before it is persisted.
func (c *Call) MarkFailed(msg string) {
	c.Status = CallStatusFailed
	c.LastError = &msg
	c.UpdatedAt = time.Now()
}

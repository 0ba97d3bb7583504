package domain

import (
	"time"

	"github.com/google/uuid"
)

// Narration is synthesized speech for a job's subtitle track, or a
// standalone text-to-speech request when TextContent is set instead of
// JobID. Merge fields are meaningful only for job-backed narrations.
type Narration struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	JobID       *uuid.UUID      `gorm:"type:uuid;index" json:"job_id,omitempty"`
	TextContent string          `json:"text_content,omitempty"`
	Voice       string          `gorm:"not null" json:"voice"`
	Status      NarrationStatus `gorm:"not null;index;default:PENDING" json:"status"`
	RetryCount  int             `gorm:"not null;default:0" json:"retry_count"`

	ResultAudioKey string `json:"result_audio_key,omitempty"`
	ErrorDetails   string `json:"error_details,omitempty"`

	MergeStatus       MergeStatus `gorm:"index" json:"merge_status,omitempty"`
	MergeRetryCount   int         `gorm:"not null;default:0" json:"merge_retry_count"`
	ResultVideoKey    string      `json:"result_video_key,omitempty"`
	MergeErrorDetails string      `json:"merge_error_details,omitempty"`

	ProcessingStartedAt *time.Time `json:"processing_started_at,omitempty"`
	ProcessingEndedAt   *time.Time `json:"processing_ended_at,omitempty"`
	CreatedAt           time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"not null" json:"updated_at"`
}

func (Narration) TableName() string { return "narrations" }

// JobBacked reports whether this narration sources its text from a job's
// subtitle result rather than raw text.
func (n *Narration) JobBacked() bool {
	return n != nil && n.JobID != nil && *n.JobID != uuid.Nil
}

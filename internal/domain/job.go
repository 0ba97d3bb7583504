package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MediaKind distinguishes uploads that need audio extraction from those
// that already are audio.
type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
)

// Job is one uploaded media file on its way to becoming a subtitle track.
// Status is advanced only by pipeline stage handlers; cancel and retry are
// the only transitions driven from the request path.
type Job struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	OriginalFilename string    `gorm:"not null" json:"original_filename"`
	StorageKey       string    `gorm:"not null" json:"storage_key"`
	MediaKind        MediaKind `gorm:"not null" json:"media_kind"`
	Status           JobStatus `gorm:"not null;index;default:PENDING" json:"status"`
	Priority         int       `gorm:"not null;default:5" json:"priority"`
	RetryCount       int       `gorm:"not null;default:0" json:"retry_count"`
	Language         string    `json:"language,omitempty"`
	CallbackURL      string    `json:"callback_url,omitempty"`

	AudioDurationSeconds *float64 `json:"audio_duration_seconds,omitempty"`
	ResultSRTKey         string   `json:"result_srt_key,omitempty"`
	ErrorDetails         string   `json:"error_details,omitempty"`

	// Meta carries non-fatal pipeline notes, e.g. chunk counts for a
	// partially transcribed job.
	Meta datatypes.JSON `gorm:"type:jsonb" json:"meta,omitempty"`

	ProcessingStartedAt *time.Time `json:"processing_started_at,omitempty"`
	ProcessingEndedAt   *time.Time `json:"processing_ended_at,omitempty"`
	CreatedAt           time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"not null" json:"updated_at"`

	Narration *Narration `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"narration,omitempty"`
}

func (Job) TableName() string { return "jobs" }

package domain

import "time"

// Setting is one encrypted configuration value, e.g. a provider API key.
// Value holds the sealed ciphertext, never plaintext.
type Setting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `gorm:"not null" json:"-"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Setting) TableName() string { return "settings" }

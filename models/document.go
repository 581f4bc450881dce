package models

import "time"

// Document is a single uploaded image and the outcome of running it through
// the intelligence pipeline: extracted fields, consensus detail, and the
// confidence breakdown, alongside the profile that owns it.
type Document struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	ProfileID uint    `gorm:"index;not null;uniqueIndex:idx_profile_file"`
	Profile   Profile `gorm:"foreignKey:ProfileID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	FileName  string  `gorm:"size:255;not null;uniqueIndex:idx_profile_file"`

	DocumentType string `gorm:"size:32;index"`

	Vendor       string  `gorm:"size:255"`
	HasTotal     bool    `gorm:"not null;default:false"`
	TotalAmount  float64 `gorm:"not null;default:0"`
	Currency     string  `gorm:"size:8"`
	DocumentDate string  `gorm:"size:32"`

	Confidence        float64 `gorm:"not null;default:0"`
	ConfidenceLevel   string  `gorm:"size:16;index"`
	NeedsConfirmation bool    `gorm:"index;not null;default:false"`

	RawText          string `gorm:"type:text"`
	CleanedText      string `gorm:"type:text"`
	ExtractedFields  string `gorm:"type:text"` // JSON-encoded intelligence.ExtractionFields
	ConsensusDetails string `gorm:"type:text"` // JSON-encoded map[string]intelligence.ConsensusResult
	Confirmation     string `gorm:"type:text"` // JSON-encoded intelligence.ConfirmationRequest, empty when none is pending
	Warnings         string `gorm:"type:text"` // newline-joined

	// Mark document as failed for extraction (do not delete record so
	// front-end/admin can review and re-upload).
	Failed       bool   `gorm:"default:false;index"`
	FailedReason string `gorm:"size:255"`
}

// Package model defines the database models and transport DTOs.
package model

import "time"

// Document origin values.
const (
	OriginUploaded = "uploaded"
	OriginScraped  = "scraped"
)

// SemesterUnclassified is the sentinel for documents without a known semester.
const SemesterUnclassified = 0

// Document is one ingested file. The content hash is unique across live
// documents; a changed hash for the same source URL is an update of the same
// logical document, not a new one.
type Document struct {
	ID          uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Filename    string     `gorm:"type:varchar(255);not null" json:"filename"`
	FileType    string     `gorm:"type:varchar(10);not null" json:"fileType"` // pdf, docx, txt, xml
	FileHash    string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"fileHash"`
	ObjectName  string     `gorm:"type:varchar(255);not null" json:"objectName"`
	Origin      string     `gorm:"type:varchar(16);not null;default:uploaded" json:"origin"`
	SourceURL   *string    `gorm:"type:varchar(512);uniqueIndex" json:"sourceUrl,omitempty"`
	Department  string     `gorm:"type:varchar(100)" json:"department"`
	Semester    int        `gorm:"not null;default:0" json:"semester"`
	Subject     string     `gorm:"type:varchar(100)" json:"subject"`
	UploadedBy  uint       `json:"uploadedBy"`
	IsActive    bool       `gorm:"not null;default:true" json:"isActive"`
	LastChecked *time.Time `json:"lastChecked,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"createdAt"`

	Chunks []DocumentChunk `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// TableName maps the model to its table.
func (Document) TableName() string {
	return "documents"
}

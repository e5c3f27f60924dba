package model

// DocumentChunk is the atomic retrieval unit. Its primary key doubles as the
// vector-index key; VectorID mirrors the id after indexing for audit only.
type DocumentChunk struct {
	ID          int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	DocumentID  uint    `gorm:"not null;index" json:"documentId"`
	ChunkText   string  `gorm:"type:text;not null" json:"chunkText"`
	ChunkIndex  int     `gorm:"not null" json:"chunkIndex"`
	SubjectData *string `gorm:"type:text" json:"subjectData,omitempty"` // result chunks only
	VectorID    *int64  `gorm:"uniqueIndex" json:"vectorId,omitempty"`

	Document *Document `gorm:"foreignKey:DocumentID" json:"-"`
}

// TableName maps the model to its table.
func (DocumentChunk) TableName() string {
	return "document_chunks"
}

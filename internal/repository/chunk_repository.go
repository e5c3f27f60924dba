package repository

import (
	"campus-rag-go/internal/model"

	"gorm.io/gorm"
)

// ChunkRepository persists chunk records. Chunk primary keys are the vector
// index keys, so id assignment happens here and nowhere else.
type ChunkRepository interface {
	// BatchCreate inserts chunks and fills their auto-assigned ids.
	BatchCreate(chunks []*model.DocumentChunk) error
	// SetVectorIDs stamps vector_id = id for the given chunk ids.
	SetVectorIDs(ids []int64) error
	DeleteByDocumentID(documentID uint) error
	IDsByDocumentID(documentID uint) ([]int64, error)
	// FindByIDs returns chunks with their owning documents preloaded. The
	// result order is unspecified; callers re-order by rank.
	FindByIDs(ids []int64) ([]model.DocumentChunk, error)
	// FilterIDs returns the ids of chunks matching the metadata filters: a
	// document semester and/or a subject code appearing in the chunk text.
	FilterIDs(semester *int, subjectCode string) ([]int64, error)
	Count() (int64, error)
	// Sample returns up to limit chunks for the debug endpoint.
	Sample(limit int) ([]model.DocumentChunk, error)
}

type chunkRepository struct {
	db *gorm.DB
}

// NewChunkRepository creates a ChunkRepository over the given session.
func NewChunkRepository(db *gorm.DB) ChunkRepository {
	return &chunkRepository{db: db}
}

func (r *chunkRepository) BatchCreate(chunks []*model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return r.db.Create(chunks).Error
}

func (r *chunkRepository) SetVectorIDs(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Model(&model.DocumentChunk{}).
		Where("id IN ?", ids).
		Update("vector_id", gorm.Expr("id")).Error
}

func (r *chunkRepository) DeleteByDocumentID(documentID uint) error {
	return r.db.Where("document_id = ?", documentID).
		Delete(&model.DocumentChunk{}).Error
}

func (r *chunkRepository) IDsByDocumentID(documentID uint) ([]int64, error) {
	var ids []int64
	err := r.db.Model(&model.DocumentChunk{}).
		Where("document_id = ?", documentID).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *chunkRepository) FindByIDs(ids []int64) ([]model.DocumentChunk, error) {
	var chunks []model.DocumentChunk
	if len(ids) == 0 {
		return chunks, nil
	}
	err := r.db.Preload("Document").Where("id IN ?", ids).Find(&chunks).Error
	return chunks, err
}

func (r *chunkRepository) FilterIDs(semester *int, subjectCode string) ([]int64, error) {
	if semester == nil && subjectCode == "" {
		return nil, nil
	}

	q := r.db.Model(&model.DocumentChunk{}).
		Joins("JOIN documents ON documents.id = document_chunks.document_id").
		Where("documents.is_active = ?", true)

	if semester != nil {
		q = q.Where("documents.semester = ?", *semester)
	}
	if subjectCode != "" {
		q = q.Where("document_chunks.chunk_text LIKE ?", "%"+subjectCode+"%")
	}

	var ids []int64
	err := q.Pluck("document_chunks.id", &ids).Error
	return ids, err
}

func (r *chunkRepository) Count() (int64, error) {
	var n int64
	err := r.db.Model(&model.DocumentChunk{}).Count(&n).Error
	return n, err
}

func (r *chunkRepository) Sample(limit int) ([]model.DocumentChunk, error) {
	var chunks []model.DocumentChunk
	err := r.db.Limit(limit).Find(&chunks).Error
	return chunks, err
}

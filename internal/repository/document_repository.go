// Package repository defines the persistence interfaces and their
// GORM/Redis implementations.
package repository

import (
	"time"

	"campus-rag-go/internal/model"

	"gorm.io/gorm"
)

// DocumentRepository persists document metadata.
type DocumentRepository interface {
	Create(doc *model.Document) error
	FindByID(id uint) (*model.Document, error)
	FindByHash(hash string) (*model.Document, error)
	FindBySourceURL(url string) (*model.Document, error)
	FindAll() ([]model.Document, error)
	Update(doc *model.Document) error
	UpdateLastChecked(id uint, t time.Time) error
	Delete(id uint) error
	MarkStaleScrapedInactive(cutoff time.Time) (int64, error)
	Count() (int64, error)
	CountInactive() (int64, error)
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a DocumentRepository over the given session.
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(doc *model.Document) error {
	return r.db.Create(doc).Error
}

func (r *documentRepository) FindByID(id uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.First(&doc, id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) FindByHash(hash string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("file_hash = ?", hash).First(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) FindBySourceURL(url string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("source_url = ?", url).First(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) FindAll() ([]model.Document, error) {
	var docs []model.Document
	err := r.db.Order("created_at desc").Find(&docs).Error
	return docs, err
}

func (r *documentRepository) Update(doc *model.Document) error {
	return r.db.Save(doc).Error
}

func (r *documentRepository) UpdateLastChecked(id uint, t time.Time) error {
	return r.db.Model(&model.Document{}).Where("id = ?", id).
		Update("last_checked", t).Error
}

// Delete removes the document and its chunks. Chunk deletion is explicit so
// the cascade holds even when the schema-level constraint is absent.
func (r *documentRepository) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&model.DocumentChunk{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Document{}, id).Error
	})
}

// MarkStaleScrapedInactive soft-deletes scraped documents not re-confirmed
// since the cutoff. Returns the number of documents flagged.
func (r *documentRepository) MarkStaleScrapedInactive(cutoff time.Time) (int64, error) {
	res := r.db.Model(&model.Document{}).
		Where("origin = ? AND is_active = ? AND last_checked < ?",
			model.OriginScraped, true, cutoff).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}

func (r *documentRepository) Count() (int64, error) {
	var n int64
	err := r.db.Model(&model.Document{}).Count(&n).Error
	return n, err
}

func (r *documentRepository) CountInactive() (int64, error) {
	var n int64
	err := r.db.Model(&model.Document{}).Where("is_active = ?", false).Count(&n).Error
	return n, err
}

package repository

import (
	"campus-rag-go/internal/model"

	"gorm.io/gorm"
)

// ScrapeSourceRepository persists crawl target configuration.
type ScrapeSourceRepository interface {
	Create(source *model.ScrapeSource) error
	FindAll() ([]model.ScrapeSource, error)
	FindActive() ([]model.ScrapeSource, error)
	FindByID(id uint) (*model.ScrapeSource, error)
	Update(source *model.ScrapeSource) error
	Delete(id uint) error
	Count() (int64, error)
}

type scrapeSourceRepository struct {
	db *gorm.DB
}

// NewScrapeSourceRepository creates a ScrapeSourceRepository.
func NewScrapeSourceRepository(db *gorm.DB) ScrapeSourceRepository {
	return &scrapeSourceRepository{db: db}
}

func (r *scrapeSourceRepository) Create(source *model.ScrapeSource) error {
	return r.db.Create(source).Error
}

func (r *scrapeSourceRepository) FindAll() ([]model.ScrapeSource, error) {
	var sources []model.ScrapeSource
	err := r.db.Find(&sources).Error
	return sources, err
}

func (r *scrapeSourceRepository) FindActive() ([]model.ScrapeSource, error) {
	var sources []model.ScrapeSource
	err := r.db.Where("is_active = ?", true).Find(&sources).Error
	return sources, err
}

func (r *scrapeSourceRepository) FindByID(id uint) (*model.ScrapeSource, error) {
	var source model.ScrapeSource
	if err := r.db.First(&source, id).Error; err != nil {
		return nil, err
	}
	return &source, nil
}

func (r *scrapeSourceRepository) Update(source *model.ScrapeSource) error {
	return r.db.Save(source).Error
}

func (r *scrapeSourceRepository) Delete(id uint) error {
	return r.db.Delete(&model.ScrapeSource{}, id).Error
}

func (r *scrapeSourceRepository) Count() (int64, error) {
	var n int64
	err := r.db.Model(&model.ScrapeSource{}).Count(&n).Error
	return n, err
}

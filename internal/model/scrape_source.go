package model

// ScrapeSource is a configured crawl target.
type ScrapeSource struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name     string `gorm:"type:varchar(100);not null" json:"name"`
	URL      string `gorm:"type:varchar(512);not null;uniqueIndex" json:"url"`
	IsActive bool   `gorm:"not null;default:true" json:"isActive"`
}

// TableName maps the model to its table.
func (ScrapeSource) TableName() string {
	return "scrape_sources"
}

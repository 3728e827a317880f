package books

import "time"

// BookModel is the GORM model for the postgres backend.
type BookModel struct {
	ID            string    `gorm:"primaryKey"`
	Title         string    `gorm:"not null"`
	Author        string    `gorm:"not null;index"`
	PublishedYear int       `gorm:"not null"`
	Genre         string    `gorm:"not null;index"`
	Description   string
	ISBN          string    `gorm:"column:isbn"`
	CreatedAt     time.Time `gorm:"not null;index"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (BookModel) TableName() string {
	return "books"
}

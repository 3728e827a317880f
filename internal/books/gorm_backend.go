package books

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bookhub/pkg/domain"
)

// GormBackend implements Backend using GORM + Postgres.
type GormBackend struct {
	db  *gorm.DB
	ids *idGen
}

// NewGormBackend opens the DB and runs auto-migrations.
func NewGormBackend(dsn string) (*GormBackend, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return NewGormBackendFromDB(db)
}

// NewGormBackendFromDB wraps an already opened connection.
func NewGormBackendFromDB(db *gorm.DB) (*GormBackend, error) {
	if err := db.AutoMigrate(&BookModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormBackend{db: db, ids: newIDGen()}, nil
}

// Seed inserts books when the table is empty.
func (g *GormBackend) Seed(ctx context.Context, books []domain.Book) error {
	var count int64
	if err := g.db.WithContext(ctx).Model(&BookModel{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 || len(books) == 0 {
		return nil
	}
	now := time.Now().UTC()
	models := make([]BookModel, 0, len(books))
	for i, b := range books {
		m := bookToModel(b)
		// keep seed order stable under ORDER BY created_at
		m.CreatedAt = now.Add(time.Duration(i) * time.Millisecond)
		m.UpdatedAt = m.CreatedAt
		models = append(models, m)
	}
	return g.db.WithContext(ctx).Create(&models).Error
}

// List returns all books ordered by creation time.
func (g *GormBackend) List(ctx context.Context) ([]domain.Book, error) {
	var models []BookModel
	if err := g.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res, nil
}

func (g *GormBackend) Get(ctx context.Context, id string) (domain.Book, error) {
	var model BookModel
	if err := g.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, ErrNotFound
		}
		return domain.Book{}, err
	}
	return bookFromModel(model), nil
}

func (g *GormBackend) Create(ctx context.Context, in domain.BookInput) (domain.Book, error) {
	book := in.ToBook(g.ids.next(nil))
	model := bookToModel(book)
	now := time.Now().UTC()
	model.CreatedAt = now
	model.UpdatedAt = now
	if err := g.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Book{}, err
	}
	return book, nil
}

// Update overwrites every column except id and created_at.
func (g *GormBackend) Update(ctx context.Context, id string, in domain.BookInput) (domain.Book, error) {
	book := in.ToBook(id)
	res := g.db.WithContext(ctx).Model(&BookModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"title":          book.Title,
			"author":         book.Author,
			"published_year": book.PublishedYear,
			"genre":          book.Genre,
			"description":    book.Description,
			"isbn":           book.ISBN,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return domain.Book{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Book{}, ErrNotFound
	}
	return book, nil
}

func (g *GormBackend) Delete(ctx context.Context, id string) error {
	res := g.db.WithContext(ctx).Delete(&BookModel{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func bookToModel(b domain.Book) BookModel {
	return BookModel{
		ID:            b.ID,
		Title:         b.Title,
		Author:        b.Author,
		PublishedYear: b.PublishedYear,
		Genre:         b.Genre,
		Description:   b.Description,
		ISBN:          b.ISBN,
	}
}

func bookFromModel(m BookModel) domain.Book {
	return domain.Book{
		ID:            m.ID,
		Title:         m.Title,
		Author:        m.Author,
		PublishedYear: m.PublishedYear,
		Genre:         m.Genre,
		Description:   m.Description,
		ISBN:          m.ISBN,
	}
}

// Close releases the underlying connection pool.
func (g *GormBackend) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

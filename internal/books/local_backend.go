package books

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"bookhub/internal/kv"
	"bookhub/pkg/domain"
)

// LocalBackend keeps the collection in durable client storage. Every
// mutation rewrites the whole collection under kv.KeyBooks.
type LocalBackend struct {
	mu      sync.RWMutex
	storage kv.Storage
	seed    []domain.Book
	books   []domain.Book
	loaded  bool
	ids     *idGen
}

// NewLocalBackend builds a storage-backed backend. seed is written to
// storage the first time the books key is empty.
func NewLocalBackend(storage kv.Storage, seed []domain.Book) *LocalBackend {
	return &LocalBackend{
		storage: storage,
		seed:    append([]domain.Book(nil), seed...),
		ids:     newIDGen(),
	}
}

// List returns books in insertion order.
func (b *LocalBackend) List(ctx context.Context) ([]domain.Book, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return append([]domain.Book{}, b.books...), nil
}

func (b *LocalBackend) Get(ctx context.Context, id string) (domain.Book, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureLoaded(ctx); err != nil {
		return domain.Book{}, err
	}
	if i := b.indexOf(id); i >= 0 {
		return b.books[i], nil
	}
	return domain.Book{}, ErrNotFound
}

// Create appends a book with a time-derived id.
func (b *LocalBackend) Create(ctx context.Context, in domain.BookInput) (domain.Book, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureLoaded(ctx); err != nil {
		return domain.Book{}, err
	}
	book := in.ToBook(b.ids.next(func(id string) bool { return b.indexOf(id) >= 0 }))
	next := append(append([]domain.Book{}, b.books...), book)
	if err := b.persist(ctx, next); err != nil {
		return domain.Book{}, err
	}
	b.books = next
	return book, nil
}

// Update overwrites every mutable field of the book with id.
func (b *LocalBackend) Update(ctx context.Context, id string, in domain.BookInput) (domain.Book, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureLoaded(ctx); err != nil {
		return domain.Book{}, err
	}
	i := b.indexOf(id)
	if i < 0 {
		return domain.Book{}, ErrNotFound
	}
	book := in.ToBook(id)
	next := append([]domain.Book{}, b.books...)
	next[i] = book
	if err := b.persist(ctx, next); err != nil {
		return domain.Book{}, err
	}
	b.books = next
	return book, nil
}

func (b *LocalBackend) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureLoaded(ctx); err != nil {
		return err
	}
	i := b.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	next := make([]domain.Book, 0, len(b.books)-1)
	next = append(next, b.books[:i]...)
	next = append(next, b.books[i+1:]...)
	if err := b.persist(ctx, next); err != nil {
		return err
	}
	b.books = next
	return nil
}

// ensureLoaded must be called with mu held.
func (b *LocalBackend) ensureLoaded(ctx context.Context) error {
	if b.loaded {
		return nil
	}
	var stored []domain.Book
	err := kv.GetJSON(ctx, b.storage, kv.KeyBooks, &stored)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		stored = append([]domain.Book{}, b.seed...)
		if err := b.persist(ctx, stored); err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("load books: %w", err)
	}
	if stored == nil {
		stored = []domain.Book{}
	}
	b.books = stored
	b.loaded = true
	return nil
}

func (b *LocalBackend) persist(ctx context.Context, books []domain.Book) error {
	if err := kv.SetJSON(ctx, b.storage, kv.KeyBooks, books); err != nil {
		return fmt.Errorf("save books: %w", err)
	}
	return nil
}

func (b *LocalBackend) indexOf(id string) int {
	for i, book := range b.books {
		if book.ID == id {
			return i
		}
	}
	return -1
}

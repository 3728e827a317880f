package books

import (
	"context"
	"errors"

	"bookhub/pkg/domain"
)

// ErrNotFound indicates no book exists with the requested id.
var ErrNotFound = errors.New("book not found")

// Backend is the CRUD capability behind a Store.
type Backend interface {
	List(ctx context.Context) ([]domain.Book, error)
	Get(ctx context.Context, id string) (domain.Book, error)
	Create(ctx context.Context, in domain.BookInput) (domain.Book, error)
	Update(ctx context.Context, id string, in domain.BookInput) (domain.Book, error)
	Delete(ctx context.Context, id string) error
}

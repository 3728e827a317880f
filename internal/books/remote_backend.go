package books

import (
	"context"

	"bookhub/internal/graphql"
	"bookhub/pkg/domain"
)

// RemoteBackend talks to the GraphQL book service.
type RemoteBackend struct {
	client *graphql.Client
}

func NewRemoteBackend(client *graphql.Client) *RemoteBackend {
	return &RemoteBackend{client: client}
}

type bookInput struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	PublishedYear int    `json:"publishedYear"`
	Genre         string `json:"genre"`
	Description   string `json:"description,omitempty"`
	ISBN          string `json:"isbn,omitempty"`
}

func toInput(in domain.BookInput) bookInput {
	return bookInput{
		Title:         in.Title,
		Author:        in.Author,
		PublishedYear: int(in.PublishedYear),
		Genre:         in.Genre,
		Description:   in.Description,
		ISBN:          in.ISBN,
	}
}

func (r *RemoteBackend) List(ctx context.Context) ([]domain.Book, error) {
	var out struct {
		Books []domain.Book `json:"books"`
	}
	if err := r.client.Do(ctx, "GetBooks", graphql.GetBooks, nil, &out); err != nil {
		return nil, err
	}
	if out.Books == nil {
		out.Books = []domain.Book{}
	}
	return out.Books, nil
}

func (r *RemoteBackend) Get(ctx context.Context, id string) (domain.Book, error) {
	var out struct {
		Book *domain.Book `json:"book"`
	}
	if err := r.client.Do(ctx, "GetBook", graphql.GetBook, map[string]any{"id": id}, &out); err != nil {
		return domain.Book{}, err
	}
	if out.Book == nil {
		return domain.Book{}, ErrNotFound
	}
	return *out.Book, nil
}

func (r *RemoteBackend) Create(ctx context.Context, in domain.BookInput) (domain.Book, error) {
	var out struct {
		CreateBook domain.Book `json:"createBook"`
	}
	vars := map[string]any{"input": toInput(in)}
	if err := r.client.Do(ctx, "CreateBook", graphql.CreateBook, vars, &out); err != nil {
		return domain.Book{}, err
	}
	return out.CreateBook, nil
}

func (r *RemoteBackend) Update(ctx context.Context, id string, in domain.BookInput) (domain.Book, error) {
	var out struct {
		UpdateBook *domain.Book `json:"updateBook"`
	}
	vars := map[string]any{"id": id, "input": toInput(in)}
	if err := r.client.Do(ctx, "UpdateBook", graphql.UpdateBook, vars, &out); err != nil {
		return domain.Book{}, err
	}
	if out.UpdateBook == nil {
		return domain.Book{}, ErrNotFound
	}
	return *out.UpdateBook, nil
}

func (r *RemoteBackend) Delete(ctx context.Context, id string) error {
	return r.client.Do(ctx, "DeleteBook", graphql.DeleteBook, map[string]any{"id": id}, nil)
}

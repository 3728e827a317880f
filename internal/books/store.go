package books

import (
	"context"
	"errors"
	"sync"

	"bookhub/internal/metrics"
	"bookhub/internal/query"
	"bookhub/internal/util"
	"bookhub/pkg/domain"
)

const (
	defaultPage  = 1
	defaultLimit = 10

	msgAdded    = "Book added successfully"
	msgUpdated  = "Book updated successfully"
	msgDeleted  = "Book deleted successfully"
	msgNotFound = "Book not found"
	msgAddFail  = "Failed to add book"
	msgUpdFail  = "Failed to update book"
	msgDelFail  = "Failed to delete book"
)

// Options tunes how a Store synchronises with its backend.
type Options struct {
	// RefetchOnWrite replaces the snapshot with a full backend listing after
	// every successful write, and leaves not-found detection to the backend.
	// Backend error messages are passed through to results.
	RefetchOnWrite bool
}

// Store owns the in-memory book collection and is the only place it is
// mutated. Reads run against the current snapshot.
type Store struct {
	backend Backend
	opts    Options

	writeMu sync.Mutex

	mu      sync.RWMutex
	books   []domain.Book
	loading bool
}

func NewStore(backend Backend, opts Options) *Store {
	return &Store{
		backend: backend,
		opts:    opts,
		books:   []domain.Book{},
		loading: true,
	}
}

// Load replaces the snapshot from the backend. IsLoading is false afterwards
// even when the load fails.
func (s *Store) Load(ctx context.Context) error {
	books, err := s.backend.List(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		return err
	}
	s.books = books
	metrics.CollectionSize(len(books))
	return nil
}

func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Reset empties the snapshot without touching the backend. The next Load
// fills it again.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books = []domain.Book{}
	metrics.CollectionSize(0)
}

// Books returns a copy of the snapshot.
func (s *Store) Books() []domain.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Book{}, s.books...)
}

// GetBooks returns one page of the filtered snapshot. Non-positive page and
// limit fall back to 1 and 10.
func (s *Store) GetBooks(page, limit int, f domain.Filters) domain.Page[domain.Book] {
	if page <= 0 {
		page = defaultPage
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return query.Paginate(s.books, page, limit, f)
}

func (s *Store) SearchBooks(q string) []domain.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return query.Search(s.books, q)
}

func (s *Store) GetBookByID(id string) (domain.Book, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.books {
		if b.ID == id {
			return b, true
		}
	}
	return domain.Book{}, false
}

// Genres lists the distinct genres present, in first-seen order.
func (s *Store) Genres() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{}, len(s.books))
	out := make([]string, 0)
	for _, b := range s.books {
		if _, ok := seen[b.Genre]; ok {
			continue
		}
		seen[b.Genre] = struct{}{}
		out = append(out, b.Genre)
	}
	return out
}

func (s *Store) AddBook(ctx context.Context, in domain.BookInput) domain.Result {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	book, err := s.backend.Create(ctx, in)
	if err != nil {
		return s.fail(ctx, "create", err, msgAddFail)
	}
	if s.opts.RefetchOnWrite {
		if err := s.refetch(ctx); err != nil {
			return s.fail(ctx, "create", err, msgAddFail)
		}
	} else {
		s.mu.Lock()
		s.books = append(append([]domain.Book{}, s.books...), book)
		metrics.CollectionSize(len(s.books))
		s.mu.Unlock()
	}
	metrics.BookOp("create", true)
	util.LoggerFromContext(ctx).Info("book added", "book_id", book.ID)
	return domain.Result{Success: true, Message: msgAdded, Book: &book}
}

// UpdateBook overwrites every mutable field. Optional fields missing from in
// become empty.
func (s *Store) UpdateBook(ctx context.Context, id string, in domain.BookInput) domain.Result {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !s.opts.RefetchOnWrite {
		if _, ok := s.GetBookByID(id); !ok {
			metrics.BookOp("update", false)
			return domain.Fail(msgNotFound)
		}
	}
	book, err := s.backend.Update(ctx, id, in)
	if err != nil {
		return s.fail(ctx, "update", err, msgUpdFail)
	}
	if s.opts.RefetchOnWrite {
		if err := s.refetch(ctx); err != nil {
			return s.fail(ctx, "update", err, msgUpdFail)
		}
	} else {
		s.replace(book)
	}
	metrics.BookOp("update", true)
	util.LoggerFromContext(ctx).Info("book updated", "book_id", id)
	return domain.Result{Success: true, Message: msgUpdated, Book: &book}
}

func (s *Store) DeleteBook(ctx context.Context, id string) domain.Result {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !s.opts.RefetchOnWrite {
		if _, ok := s.GetBookByID(id); !ok {
			metrics.BookOp("delete", false)
			return domain.Fail(msgNotFound)
		}
	}
	if err := s.backend.Delete(ctx, id); err != nil {
		return s.fail(ctx, "delete", err, msgDelFail)
	}
	if s.opts.RefetchOnWrite {
		if err := s.refetch(ctx); err != nil {
			return s.fail(ctx, "delete", err, msgDelFail)
		}
	} else {
		s.remove(id)
	}
	metrics.BookOp("delete", true)
	util.LoggerFromContext(ctx).Info("book deleted", "book_id", id)
	return domain.Ok(msgDeleted)
}

func (s *Store) refetch(ctx context.Context) error {
	books, err := s.backend.List(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.books = books
	s.mu.Unlock()
	metrics.CollectionSize(len(books))
	return nil
}

func (s *Store) replace(book domain.Book) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := append([]domain.Book{}, s.books...)
	for i := range next {
		if next[i].ID == book.ID {
			next[i] = book
		}
	}
	s.books = next
}

func (s *Store) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]domain.Book, 0, len(s.books))
	for _, b := range s.books {
		if b.ID != id {
			next = append(next, b)
		}
	}
	s.books = next
	metrics.CollectionSize(len(next))
}

func (s *Store) fail(ctx context.Context, op string, err error, fallback string) domain.Result {
	metrics.BookOp(op, false)
	logger := util.LoggerFromContext(ctx)
	if errors.Is(err, ErrNotFound) {
		logger.Info("book not found", "op", op)
		return domain.Fail(msgNotFound)
	}
	logger.Error("book store operation failed", "op", op, "err", err)
	if s.opts.RefetchOnWrite && err.Error() != "" {
		return domain.Fail(err.Error())
	}
	return domain.Fail(fallback)
}

package books

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"bookhub/internal/graphql"
	"bookhub/pkg/domain"
)

// fakeBookService is a minimal in-memory GraphQL book service.
type fakeBookService struct {
	mu     sync.Mutex
	books  []domain.Book
	nextID int
	ops    []string
	auth   []string
	fail   map[string]string
}

func (f *fakeBookService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OperationName string          `json:"operationName"`
		Variables     json.RawMessage `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var vars struct {
		ID    string           `json:"id"`
		Input domain.BookInput `json:"input"`
	}
	if len(req.Variables) > 0 {
		_ = json.Unmarshal(req.Variables, &vars)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, req.OperationName)
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	w.Header().Set("Content-Type", "application/json")

	if msg, ok := f.fail[req.OperationName]; ok {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data":   nil,
			"errors": []map[string]string{{"message": msg}},
		})
		return
	}

	data := map[string]any{}
	switch req.OperationName {
	case "GetBooks":
		data["books"] = f.books
	case "GetBook":
		data["book"] = nil
		for _, b := range f.books {
			if b.ID == vars.ID {
				data["book"] = b
			}
		}
	case "CreateBook":
		f.nextID++
		book := vars.Input.ToBook(fmt.Sprintf("srv-%d", f.nextID))
		f.books = append(f.books, book)
		data["createBook"] = book
	case "UpdateBook":
		data["updateBook"] = nil
		for i, b := range f.books {
			if b.ID == vars.ID {
				f.books[i] = vars.Input.ToBook(vars.ID)
				data["updateBook"] = f.books[i]
			}
		}
	case "DeleteBook":
		kept := f.books[:0]
		found := false
		for _, b := range f.books {
			if b.ID == vars.ID {
				found = true
				continue
			}
			kept = append(kept, b)
		}
		f.books = kept
		if !found {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"errors": []map[string]string{{"message": "Book with ID " + vars.ID + " not found"}},
			})
			return
		}
		data["deleteBook"] = map[string]string{"message": "deleted"}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func (f *fakeBookService) lastOps(n int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n > len(f.ops) {
		n = len(f.ops)
	}
	return append([]string{}, f.ops[len(f.ops)-n:]...)
}

func newRemoteStore(t *testing.T, svc *fakeBookService) *Store {
	t.Helper()
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)
	client := graphql.NewClient(srv.URL, time.Second, func(context.Context) (string, error) {
		return "tok", nil
	})
	s := NewStore(NewRemoteBackend(client), Options{RefetchOnWrite: true})
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return s
}

func TestRemoteStoreRefetchesAfterWrites(t *testing.T) {
	ctx := context.Background()
	svc := &fakeBookService{books: []domain.Book{
		{ID: "a", Title: "First", Author: "X", PublishedYear: 2000, Genre: "Fiction"},
	}}
	s := newRemoteStore(t, svc)
	if got := len(s.Books()); got != 1 {
		t.Fatalf("expected 1 book, got %d", got)
	}

	res := s.AddBook(ctx, sampleInput("Second"))
	if !res.Success || res.Book == nil || res.Book.ID != "srv-1" {
		t.Fatalf("unexpected add result %+v", res)
	}
	if ops := svc.lastOps(2); ops[0] != "CreateBook" || ops[1] != "GetBooks" {
		t.Fatalf("expected create then refetch, got %v", ops)
	}
	if got := len(s.Books()); got != 2 {
		t.Fatalf("expected 2 books after refetch, got %d", got)
	}

	res = s.UpdateBook(ctx, "a", domain.BookInput{Title: "First v2", Author: "X", PublishedYear: 2001, Genre: "Other"})
	if !res.Success {
		t.Fatalf("update: %q", res.Message)
	}
	if b, _ := s.GetBookByID("a"); b.Title != "First v2" {
		t.Fatalf("expected refreshed title, got %+v", b)
	}

	if res := s.DeleteBook(ctx, "a"); !res.Success {
		t.Fatalf("delete: %q", res.Message)
	}
	if ops := svc.lastOps(2); ops[0] != "DeleteBook" || ops[1] != "GetBooks" {
		t.Fatalf("expected delete then refetch, got %v", ops)
	}
	if _, ok := s.GetBookByID("a"); ok {
		t.Fatalf("deleted book still in snapshot")
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	for i, h := range svc.auth {
		if h != "Bearer tok" {
			t.Fatalf("request %d (%s) had Authorization %q", i, svc.ops[i], h)
		}
	}
}

func TestRemoteStoreUpdateUnknownBook(t *testing.T) {
	s := newRemoteStore(t, &fakeBookService{})
	res := s.UpdateBook(context.Background(), "nope", sampleInput("x"))
	if res.Success || res.Message != "Book not found" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRemoteStoreSurfacesBackendMessage(t *testing.T) {
	ctx := context.Background()
	svc := &fakeBookService{}
	s := newRemoteStore(t, svc)

	if res := s.DeleteBook(ctx, "ghost"); res.Success || res.Message != "Book with ID ghost not found" {
		t.Fatalf("unexpected delete result %+v", res)
	}

	svc.mu.Lock()
	svc.fail = map[string]string{"CreateBook": "title must be unique"}
	svc.mu.Unlock()
	if res := s.AddBook(ctx, sampleInput("dup")); res.Success || res.Message != "title must be unique" {
		t.Fatalf("unexpected add result %+v", res)
	}
	if got := len(s.Books()); got != 0 {
		t.Fatalf("failed create must not change the snapshot, got %d", got)
	}
}

func TestRemoteBackendGet(t *testing.T) {
	ctx := context.Background()
	svc := &fakeBookService{books: []domain.Book{{ID: "a", Title: "T", Author: "A", PublishedYear: 1990, Genre: "History"}}}
	srv := httptest.NewServer(svc)
	defer srv.Close()
	b := NewRemoteBackend(graphql.NewClient(srv.URL, time.Second, nil))

	got, err := b.Get(ctx, "a")
	if err != nil || got.Title != "T" {
		t.Fatalf("get: %+v %v", got, err)
	}
	if _, err := b.Get(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRemoteStoreLoadFailure(t *testing.T) {
	svc := &fakeBookService{fail: map[string]string{"GetBooks": "Unauthorized"}}
	srv := httptest.NewServer(svc)
	defer srv.Close()
	s := NewStore(NewRemoteBackend(graphql.NewClient(srv.URL, time.Second, nil)), Options{RefetchOnWrite: true})
	if err := s.Load(context.Background()); err == nil || err.Error() != "Unauthorized" {
		t.Fatalf("expected backend error, got %v", err)
	}
	if s.IsLoading() {
		t.Fatalf("loading must end after a failed load")
	}
	if s.Books() == nil {
		t.Fatalf("snapshot should stay an empty collection")
	}
}

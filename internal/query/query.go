// Package query derives filtered, paginated views of a book collection.
// Nothing here performs I/O or mutates its input.
package query

import (
	"strings"

	"bookhub/pkg/domain"
)

// Paginate filters books and returns the requested page.
// page is echoed back unchanged; pages past the end yield empty data.
func Paginate(books []domain.Book, page, limit int, f domain.Filters) domain.Page[domain.Book] {
	filtered := Filter(books, f)
	total := len(filtered)

	res := domain.Page[domain.Book]{
		Data:  []domain.Book{},
		Total: total,
		Page:  page,
	}
	if limit <= 0 {
		return res
	}
	res.TotalPages = (total + limit - 1) / limit

	start := (page - 1) * limit
	end := start + limit
	if start < 0 {
		start = 0
	}
	if end > total {
		end = total
	}
	if start < end {
		res.Data = append(res.Data, filtered[start:end]...)
	}
	return res
}

// Filter applies search, genre and author in that order. All conditions must hold.
func Filter(books []domain.Book, f domain.Filters) []domain.Book {
	search := strings.ToLower(f.Search)
	author := strings.ToLower(f.Author)

	out := make([]domain.Book, 0, len(books))
	for _, b := range books {
		if search != "" && !matchesSearch(b, search) {
			continue
		}
		if f.Genre != "" && b.Genre != f.Genre {
			continue
		}
		if author != "" && !strings.Contains(strings.ToLower(b.Author), author) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// Search returns books whose title, author or genre contains q, ignoring case.
// An empty q returns every book.
func Search(books []domain.Book, q string) []domain.Book {
	if q == "" {
		return append([]domain.Book{}, books...)
	}
	return Filter(books, domain.Filters{Search: q})
}

// matchesSearch expects a lowercased needle.
func matchesSearch(b domain.Book, needle string) bool {
	return strings.Contains(strings.ToLower(b.Title), needle) ||
		strings.Contains(strings.ToLower(b.Author), needle) ||
		strings.Contains(strings.ToLower(b.Genre), needle)
}

package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Genres lists the values accepted for Book.Genre.
var Genres = []string{
	"Fiction",
	"Science Fiction",
	"Fantasy",
	"Mystery",
	"Romance",
	"Thriller",
	"Biography",
	"History",
	"Other",
}

// IsGenre reports whether g is one of Genres.
func IsGenre(g string) bool {
	for _, v := range Genres {
		if v == g {
			return true
		}
	}
	return false
}

type Book struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	PublishedYear int    `json:"publishedYear"`
	Genre         string `json:"genre"`
	Description   string `json:"description,omitempty"`
	ISBN          string `json:"isbn,omitempty"`
}

// BookInput is the form data used to create or overwrite a book.
type BookInput struct {
	Title         string `json:"title" validate:"required"`
	Author        string `json:"author" validate:"required"`
	PublishedYear Year   `json:"publishedYear" validate:"required,bookyear"`
	Genre         string `json:"genre" validate:"required,genre"`
	Description   string `json:"description,omitempty"`
	ISBN          string `json:"isbn,omitempty"`
}

// ToBook builds a Book from the input. Optional fields that were not
// supplied end up empty.
func (in BookInput) ToBook(id string) Book {
	return Book{
		ID:            id,
		Title:         in.Title,
		Author:        in.Author,
		PublishedYear: int(in.PublishedYear),
		Genre:         in.Genre,
		Description:   in.Description,
		ISBN:          in.ISBN,
	}
}

// Year accepts either a JSON number or a numeric string. Anything else that
// is not empty decodes to InvalidYear so form validation reports a bad year
// instead of a malformed body.
type Year int

// InvalidYear marks a year that was supplied but is not an integer.
const InvalidYear Year = -1

func (y *Year) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		*y = 0
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*y = 0
			return nil
		}
	}
	*y = parseYear(raw)
	return nil
}

func parseYear(raw string) Year {
	if n, err := strconv.Atoi(raw); err == nil {
		return Year(n)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != float64(int(f)) {
		return InvalidYear
	}
	return Year(int(f))
}

// User is a credential record known to the local authenticator.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username,omitempty"`
	Email        string `json:"email,omitempty"`
	Name         string `json:"name,omitempty"`
	Password     string `json:"password,omitempty"`
	PasswordHash string `json:"passwordHash,omitempty"`
}

// AuthUser is the identity of the current session.
type AuthUser struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Token    string `json:"token"`
}

// Credentials carries either a username (local mode) or an email (remote mode).
type Credentials struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

type RegisterData struct {
	Username        string `json:"username,omitempty"`
	Email           string `json:"email,omitempty"`
	Name            string `json:"name,omitempty"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Filters narrows a book listing. Empty fields are ignored.
type Filters struct {
	Search string `json:"search,omitempty"`
	Genre  string `json:"genre,omitempty"`
	Author string `json:"author,omitempty"`
}

// Page is one page of a filtered listing.
type Page[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
}

// Result is the outcome of a store operation. Expected failures are
// reported here rather than as errors.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Book    *Book  `json:"book,omitempty"`
}

func Ok(msg string) Result {
	return Result{Success: true, Message: msg}
}

func Fail(msg string) Result {
	return Result{Success: false, Message: msg}
}

package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"bookhub/internal/app"
	"bookhub/internal/books"
	"bookhub/pkg/domain"
)

// openSignedIn is openApp for commands that need a session.
func openSignedIn(cmd *cobra.Command) (*app.App, error) {
	a, _, err := openApp(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	if !a.Session.IsAuthenticated() {
		_ = a.Close()
		return nil, errNotSignedIn
	}
	return a, nil
}

func runBooksList(cmd *cobra.Command, _ []string) error {
	a, err := openSignedIn(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	page, _ := cmd.Flags().GetInt("page")
	limit, _ := cmd.Flags().GetInt("limit")
	res := a.Books.GetBooks(page, limit, domain.Filters{
		Search: flagString(cmd, "search"),
		Genre:  flagString(cmd, "genre"),
		Author: flagString(cmd, "author"),
	})
	out := cmd.OutOrStdout()
	printBooks(out, res.Data)
	fmt.Fprintf(out, "page %d of %d (%d books)\n", res.Page, res.TotalPages, res.Total)
	return nil
}

func runBooksShow(cmd *cobra.Command, args []string) error {
	a, err := openSignedIn(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	book, ok := a.Books.GetBookByID(args[0])
	if !ok {
		return errors.New("Book not found")
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\nby %s, %d (%s)\n", book.Title, book.Author, book.PublishedYear, book.Genre)
	if book.ISBN != "" {
		fmt.Fprintf(out, "ISBN %s\n", book.ISBN)
	}
	if book.Description != "" {
		fmt.Fprintf(out, "\n%s\n", book.Description)
	}
	return nil
}

func runBooksAdd(cmd *cobra.Command, _ []string) error {
	a, err := openSignedIn(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	in := bookInputFromFlags(cmd)
	if msg, ok := books.ValidateInput(in); !ok {
		return errors.New(msg)
	}
	res := a.Books.AddBook(cmd.Context(), in)
	if !res.Success {
		return errors.New(res.Message)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (id %s)\n", res.Message, res.Book.ID)
	return nil
}

func runBooksUpdate(cmd *cobra.Command, args []string) error {
	a, err := openSignedIn(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	in := bookInputFromFlags(cmd)
	if msg, ok := books.ValidateInput(in); !ok {
		return errors.New(msg)
	}
	res := a.Books.UpdateBook(cmd.Context(), args[0], in)
	if !res.Success {
		return errors.New(res.Message)
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	return nil
}

func runBooksDelete(cmd *cobra.Command, args []string) error {
	a, err := openSignedIn(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.Books.DeleteBook(cmd.Context(), args[0])
	if !res.Success {
		return errors.New(res.Message)
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	return nil
}

func runBooksSearch(cmd *cobra.Command, args []string) error {
	a, err := openSignedIn(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	q := ""
	if len(args) == 1 {
		q = args[0]
	}
	printBooks(cmd.OutOrStdout(), a.Books.SearchBooks(q))
	return nil
}

func bookInputFromFlags(cmd *cobra.Command) domain.BookInput {
	year, _ := cmd.Flags().GetInt("year")
	return domain.BookInput{
		Title:         flagString(cmd, "title"),
		Author:        flagString(cmd, "author"),
		PublishedYear: domain.Year(year),
		Genre:         flagString(cmd, "genre"),
		Description:   flagString(cmd, "description"),
		ISBN:          flagString(cmd, "isbn"),
	}
}

func printBooks(w io.Writer, list []domain.Book) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tYEAR\tGENRE")
	for _, b := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", b.ID, b.Title, b.Author, b.PublishedYear, b.Genre)
	}
	_ = tw.Flush()
}

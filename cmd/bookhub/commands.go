package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"bookhub/internal/app"
	"bookhub/internal/config"
	"bookhub/internal/util"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:           "bookhub",
		Short:         "Manage a personal book collection",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API for the collection",
		RunE:  runServe,
	}

	loginCmd = &cobra.Command{
		Use:   "login",
		Short: "Sign in and keep the session for later commands",
		RunE:  runLogin,
	}
	registerCmd = &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in as it",
		RunE:  runRegister,
	}
	logoutCmd = &cobra.Command{
		Use:   "logout",
		Short: "End the stored session",
		RunE:  runLogout,
	}
	whoamiCmd = &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in user",
		RunE:  runWhoami,
	}

	booksCmd = &cobra.Command{
		Use:   "books",
		Short: "List and edit books (requires a session)",
	}
	booksListCmd = &cobra.Command{
		Use:   "list",
		Short: "List one page of books",
		RunE:  runBooksList,
	}
	booksShowCmd = &cobra.Command{
		Use:   "show [id]",
		Short: "Show one book",
		Args:  cobra.ExactArgs(1),
		RunE:  runBooksShow,
	}
	booksAddCmd = &cobra.Command{
		Use:   "add",
		Short: "Add a book",
		RunE:  runBooksAdd,
	}
	booksUpdateCmd = &cobra.Command{
		Use:   "update [id]",
		Short: "Overwrite every field of a book",
		Args:  cobra.ExactArgs(1),
		RunE:  runBooksUpdate,
	}
	booksDeleteCmd = &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a book",
		Args:  cobra.ExactArgs(1),
		RunE:  runBooksDelete,
	}
	booksSearchCmd = &cobra.Command{
		Use:   "search [query]",
		Short: "Search titles, authors and genres",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runBooksSearch,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.ConfigPath, "path to config.yaml")

	loginCmd.Flags().String("username", "", "username (local backend)")
	loginCmd.Flags().String("email", "", "email (remote backend)")
	loginCmd.Flags().String("password", "", "password")

	registerCmd.Flags().String("username", "", "username (local backend)")
	registerCmd.Flags().String("email", "", "email (remote backend)")
	registerCmd.Flags().String("name", "", "display name")
	registerCmd.Flags().String("password", "", "password")
	registerCmd.Flags().String("confirm-password", "", "password again")

	booksListCmd.Flags().Int("page", 1, "page number")
	booksListCmd.Flags().Int("limit", 10, "books per page")
	booksListCmd.Flags().String("search", "", "match title, author or genre")
	booksListCmd.Flags().String("genre", "", "exact genre")
	booksListCmd.Flags().String("author", "", "match author")

	for _, c := range []*cobra.Command{booksAddCmd, booksUpdateCmd} {
		c.Flags().String("title", "", "title")
		c.Flags().String("author", "", "author")
		c.Flags().Int("year", 0, "published year")
		c.Flags().String("genre", "", "genre")
		c.Flags().String("description", "", "description")
		c.Flags().String("isbn", "", "ISBN")
	}

	booksCmd.AddCommand(booksListCmd, booksShowCmd, booksAddCmd, booksUpdateCmd, booksDeleteCmd, booksSearchCmd)
	rootCmd.AddCommand(serveCmd, loginCmd, registerCmd, logoutCmd, whoamiCmd, booksCmd)
}

// openApp loads config, sets up logging to logOut and initialises the stores.
func openApp(ctx context.Context, logOut io.Writer) (*app.App, config.FileConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, cfg, err
	}
	util.InitLoggerTo(logOut, cfg.LogLevel)

	remoteTimeout, err := config.ParseDuration("remoteTimeout", cfg.RemoteTimeout)
	if err != nil {
		return nil, cfg, err
	}
	tokenTTL, err := config.ParseDuration("tokenTTL", cfg.TokenTTL)
	if err != nil {
		return nil, cfg, err
	}
	a, err := app.New(app.Config{
		Backend:         cfg.Backend,
		Storage:         cfg.Storage,
		StoragePath:     cfg.StoragePath,
		RedisAddr:       cfg.RedisAddr,
		RedisPassword:   cfg.RedisPassword,
		RedisPrefix:     cfg.RedisPrefix,
		GraphQLURL:      cfg.GraphQLURL,
		RemoteTimeout:   remoteTimeout,
		DatabaseURL:     cfg.DatabaseURL,
		SeedDatabase:    cfg.SeedDatabase,
		TokenSecret:     cfg.TokenSecret,
		TokenTTL:        tokenTTL,
		VerifyOnRestore: cfg.VerifyOnRestore,
	})
	if err != nil {
		return nil, cfg, fmt.Errorf("init app: %w", err)
	}
	if err := a.Init(ctx); err != nil {
		_ = a.Close()
		return nil, cfg, err
	}
	return a, cfg, nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bookhub/internal/books"
	"bookhub/internal/graphql"
	"bookhub/internal/kv"
	"bookhub/internal/session"
	"bookhub/internal/usertoken"
	"bookhub/internal/util"
	"bookhub/pkg/domain"
)

// Config holds runtime configuration for the core application.
type Config struct {
	Backend         string
	Storage         string
	StoragePath     string
	RedisAddr       string
	RedisPassword   string
	RedisPrefix     string
	GraphQLURL      string
	RemoteTimeout   time.Duration
	DatabaseURL     string
	SeedDatabase    bool
	TokenSecret     string
	TokenTTL        time.Duration
	VerifyOnRestore bool

	// KV and BookBackend replace the configured storage and backend when set.
	KV          kv.Storage
	BookBackend books.Backend
}

// App wires storage, the session and the book store together. It holds
// exactly one of each for the life of the process.
type App struct {
	Session *session.Session
	Books   *books.Store

	storage kv.Storage
	remote  bool
	closers []func() error
}

// New constructs the application. Nothing is read from storage until Init.
func New(cfg Config) (*App, error) {
	dataset, err := books.DefaultDataset()
	if err != nil {
		return nil, err
	}

	a := &App{}
	storage := cfg.KV
	if storage == nil {
		storage, err = a.openStorage(cfg)
		if err != nil {
			return nil, err
		}
	}
	a.storage = storage

	var client *graphql.Client
	if cfg.Backend == "remote" {
		if strings.TrimSpace(cfg.GraphQLURL) == "" {
			return nil, errors.New("graphql URL required for the remote backend")
		}
		client = graphql.NewClient(cfg.GraphQLURL, cfg.RemoteTimeout, storedToken(storage))
	}

	backend := cfg.BookBackend
	opts := books.Options{}
	switch {
	case backend != nil:
		opts.RefetchOnWrite = cfg.Backend == "remote" || cfg.Backend == "postgres"
	case cfg.Backend == "remote":
		backend = books.NewRemoteBackend(client)
		opts.RefetchOnWrite = true
	case cfg.Backend == "postgres":
		g, err := books.NewGormBackend(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres backend: %w", err)
		}
		if cfg.SeedDatabase {
			if err := g.Seed(context.Background(), dataset.Books); err != nil {
				_ = g.Close()
				return nil, fmt.Errorf("seed postgres backend: %w", err)
			}
		}
		a.closers = append(a.closers, g.Close)
		backend = g
		opts.RefetchOnWrite = true
	case cfg.Backend == "" || cfg.Backend == "local":
		backend = books.NewLocalBackend(storage, dataset.Books)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	var auth session.Authenticator
	if client != nil {
		auth = session.NewRemoteAuthenticator(client)
		a.remote = true
	} else {
		var tokens usertoken.Issuer
		if cfg.TokenSecret != "" {
			tokens, err = usertoken.NewHS256(usertoken.HS256Options{Secret: cfg.TokenSecret, TTL: cfg.TokenTTL})
			if err != nil {
				return nil, err
			}
		}
		auth = session.NewLocalAuthenticator(storage, dataset.Users, tokens)
	}

	a.Session = session.New(storage, auth, session.Options{VerifyOnRestore: cfg.VerifyOnRestore})
	a.Books = books.NewStore(backend, opts)
	return a, nil
}

func (a *App) openStorage(cfg Config) (kv.Storage, error) {
	switch cfg.Storage {
	case "", "file":
		fileStorage, err := kv.NewFileStorage(cfg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("open file storage: %w", err)
		}
		return fileStorage, nil
	case "redis":
		rs := kv.NewRedisStorage(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisPrefix)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, fmt.Errorf("connect redis storage: %w", err)
		}
		a.closers = append(a.closers, rs.Close)
		return rs, nil
	case "memory":
		return kv.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage %q", cfg.Storage)
	}
}

// Init restores the session and then loads the collection. A remote
// collection that cannot be loaded while signed out is not an error; it is
// loaded again after sign in.
func (a *App) Init(ctx context.Context) error {
	if err := a.Session.Init(ctx); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if err := a.Books.Load(ctx); err != nil {
		if a.remote && !a.Session.IsAuthenticated() {
			util.LoggerFromContext(ctx).Info("collection not loaded while signed out", "err", err)
			return nil
		}
		return fmt.Errorf("load books: %w", err)
	}
	return nil
}

// Login signs in and, for the remote backend, reloads the collection with
// the new token.
func (a *App) Login(ctx context.Context, creds domain.Credentials) domain.Result {
	res := a.Session.Login(ctx, creds)
	if res.Success {
		a.reloadRemote(ctx)
	}
	return res
}

func (a *App) Register(ctx context.Context, data domain.RegisterData) domain.Result {
	res := a.Session.Register(ctx, data)
	if res.Success {
		a.reloadRemote(ctx)
	}
	return res
}

// Logout ends the session. A remote collection belongs to the signed-in
// user, so it is dropped as well.
func (a *App) Logout(ctx context.Context) error {
	err := a.Session.Logout(ctx)
	if a.remote {
		a.Books.Reset()
	}
	return err
}

// Remote reports whether identities and books come from the GraphQL backend.
func (a *App) Remote() bool {
	return a.remote
}

func (a *App) reloadRemote(ctx context.Context) {
	if !a.remote {
		return
	}
	if err := a.Books.Load(ctx); err != nil {
		a.Books.Reset()
		util.LoggerFromContext(ctx).Warn("reload books after sign in failed", "err", err)
	}
}

// Close releases storage connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

func storedToken(storage kv.Storage) graphql.TokenSource {
	return func(ctx context.Context) (string, error) {
		token, _, err := storage.Get(ctx, kv.KeyToken)
		return token, err
	}
}

package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"bookhub/internal/kv"
	"bookhub/internal/usertoken"
	"bookhub/pkg/auth"
	"bookhub/pkg/domain"
)

// LocalAuthenticator matches credentials against the bundled users and
// the users registered on this machine (kv key "users").
type LocalAuthenticator struct {
	storage kv.Storage
	bundled []domain.User
	tokens  usertoken.Issuer

	mu  sync.Mutex
	now func() time.Time
}

// NewLocalAuthenticator builds a local authenticator. tokens defaults to
// opaque base64 tokens.
func NewLocalAuthenticator(storage kv.Storage, bundled []domain.User, tokens usertoken.Issuer) *LocalAuthenticator {
	if tokens == nil {
		tokens = usertoken.NewOpaque()
	}
	return &LocalAuthenticator{
		storage: storage,
		bundled: append([]domain.User(nil), bundled...),
		tokens:  tokens,
		now:     time.Now,
	}
}

func (a *LocalAuthenticator) Login(ctx context.Context, creds domain.Credentials) (domain.AuthUser, error) {
	username := strings.TrimSpace(creds.Username)
	if username == "" || creds.Password == "" {
		return domain.AuthUser{}, ErrInvalidCredentials
	}
	user, ok, err := a.findUser(ctx, username)
	if err != nil {
		return domain.AuthUser{}, err
	}
	if !ok || !passwordMatches(user, creds.Password) {
		return domain.AuthUser{}, ErrInvalidCredentials
	}
	return a.issue(user)
}

func (a *LocalAuthenticator) Register(ctx context.Context, data domain.RegisterData) (domain.AuthUser, error) {
	username := strings.TrimSpace(data.Username)
	if username == "" || data.Password == "" {
		return domain.AuthUser{}, ErrFieldsRequired
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	registered, err := a.registered(ctx)
	if err != nil {
		return domain.AuthUser{}, err
	}
	if a.exists(registered, username) {
		return domain.AuthUser{}, ErrUsernameExists
	}
	hash, err := auth.HashPassword(data.Password)
	if err != nil {
		return domain.AuthUser{}, fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		ID:           a.nextID(registered),
		Username:     username,
		Email:        strings.TrimSpace(data.Email),
		Name:         strings.TrimSpace(data.Name),
		PasswordHash: hash,
	}
	if err := kv.SetJSON(ctx, a.storage, kv.KeyUsers, append(registered, user)); err != nil {
		return domain.AuthUser{}, fmt.Errorf("save user: %w", err)
	}
	return a.issue(user)
}

// Logout has nothing to revoke locally.
func (a *LocalAuthenticator) Logout(context.Context) error {
	return nil
}

func (a *LocalAuthenticator) Verify(_ context.Context, user domain.AuthUser) error {
	return a.tokens.Verify(user.Token, usertoken.Subject{ID: user.ID, Username: user.Username})
}

func (a *LocalAuthenticator) issue(user domain.User) (domain.AuthUser, error) {
	token, err := a.tokens.Issue(usertoken.Subject{ID: user.ID, Username: user.Username})
	if err != nil {
		return domain.AuthUser{}, fmt.Errorf("issue token: %w", err)
	}
	return domain.AuthUser{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Name:     user.Name,
		Token:    token,
	}, nil
}

func (a *LocalAuthenticator) findUser(ctx context.Context, username string) (domain.User, bool, error) {
	for _, u := range a.bundled {
		if u.Username == username {
			return u, true, nil
		}
	}
	registered, err := a.registered(ctx)
	if err != nil {
		return domain.User{}, false, err
	}
	for _, u := range registered {
		if u.Username == username {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

func (a *LocalAuthenticator) registered(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := kv.GetJSON(ctx, a.storage, kv.KeyUsers, &users)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	return users, nil
}

func (a *LocalAuthenticator) exists(registered []domain.User, username string) bool {
	for _, u := range a.bundled {
		if u.Username == username {
			return true
		}
	}
	for _, u := range registered {
		if u.Username == username {
			return true
		}
	}
	return false
}

// nextID derives an id from the current time in milliseconds, moving
// forward past any id already in use.
func (a *LocalAuthenticator) nextID(registered []domain.User) string {
	taken := make(map[string]struct{}, len(a.bundled)+len(registered))
	for _, u := range a.bundled {
		taken[u.ID] = struct{}{}
	}
	for _, u := range registered {
		taken[u.ID] = struct{}{}
	}
	n := a.now().UnixMilli()
	for {
		id := strconv.FormatInt(n, 10)
		if _, ok := taken[id]; !ok {
			return id
		}
		n++
	}
}

func passwordMatches(user domain.User, password string) bool {
	if user.PasswordHash != "" {
		return auth.CheckPassword(password, user.PasswordHash)
	}
	return auth.CheckPlain(password, user.Password)
}

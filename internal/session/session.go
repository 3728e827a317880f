package session

import (
	"context"
	"errors"
	"sync"

	"bookhub/internal/graphql"
	"bookhub/internal/kv"
	"bookhub/internal/metrics"
	"bookhub/internal/util"
	"bookhub/pkg/domain"
)

// Options tunes session restore behaviour.
type Options struct {
	// VerifyOnRestore asks the authenticator to check a restored token and
	// drops the session when it is rejected.
	VerifyOnRestore bool
}

// Session holds the current identity and mirrors it to storage under the
// "user" and "token" keys.
type Session struct {
	storage kv.Storage
	auth    Authenticator
	opts    Options

	mu      sync.RWMutex
	user    *domain.AuthUser
	loading bool
}

func New(storage kv.Storage, auth Authenticator, opts Options) *Session {
	return &Session{
		storage: storage,
		auth:    auth,
		opts:    opts,
		loading: true,
	}
}

// Init restores a persisted identity. Missing or unreadable state leaves the
// session signed out; only storage failures are returned.
func (s *Session) Init(ctx context.Context) error {
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()
	logger := util.LoggerFromContext(ctx)

	token, ok, err := s.storage.Get(ctx, kv.KeyToken)
	if err != nil {
		return err
	}
	if !ok || token == "" {
		return nil
	}
	var user domain.AuthUser
	if err := kv.GetJSON(ctx, s.storage, kv.KeyUser, &user); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil
		}
		logger.Warn("stored user unreadable, staying signed out", "err", err)
		return nil
	}
	user.Token = token

	if s.opts.VerifyOnRestore {
		if err := s.auth.Verify(ctx, user); err != nil {
			logger.Info("stored token rejected, clearing session", "user_id", user.ID, "err", err)
			return s.clear(ctx)
		}
	}

	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()
	logger.Debug("session restored", "user_id", user.ID)
	return nil
}

func (s *Session) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// User returns a copy of the current identity.
func (s *Session) User() (domain.AuthUser, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return domain.AuthUser{}, false
	}
	return *s.user, true
}

func (s *Session) Login(ctx context.Context, creds domain.Credentials) domain.Result {
	user, err := s.auth.Login(ctx, creds)
	if err != nil {
		res := s.failure(ctx, "login", err, msgLoginFailed)
		metrics.AuthOp("login", false)
		return res
	}
	res := s.signIn(ctx, "login", user, msgLoginFailed)
	metrics.AuthOp("login", res.Success)
	return res
}

// Register creates an account and signs in as it. Mismatched passwords are
// rejected before anything else happens.
func (s *Session) Register(ctx context.Context, data domain.RegisterData) domain.Result {
	if data.Password != data.ConfirmPassword {
		metrics.AuthOp("register", false)
		return domain.Fail(ErrPasswordMismatch.Error())
	}
	user, err := s.auth.Register(ctx, data)
	if err != nil {
		res := s.failure(ctx, "register", err, msgRegisterFailed)
		metrics.AuthOp("register", false)
		return res
	}
	res := s.signIn(ctx, "register", user, msgRegisterFailed)
	metrics.AuthOp("register", res.Success)
	return res
}

// Logout always ends the local session. A failing remote logout is logged
// and ignored; storage errors are returned after the user is unset.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.auth.Logout(ctx); err != nil {
		util.LoggerFromContext(ctx).Debug("remote logout failed", "err", err)
	}
	err := s.clear(ctx)
	metrics.AuthOp("logout", err == nil)
	return err
}

func (s *Session) signIn(ctx context.Context, op string, user domain.AuthUser, fallback string) domain.Result {
	if err := kv.SetJSON(ctx, s.storage, kv.KeyUser, user); err != nil {
		return s.failure(ctx, op, err, fallback)
	}
	if err := s.storage.Set(ctx, kv.KeyToken, user.Token); err != nil {
		_ = s.storage.Remove(ctx, kv.KeyUser)
		return s.failure(ctx, op, err, fallback)
	}
	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()
	util.LoggerFromContext(ctx).Info("signed in", "op", op, "user_id", user.ID)
	return domain.Result{Success: true}
}

func (s *Session) clear(ctx context.Context) error {
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
	return errors.Join(
		s.storage.Remove(ctx, kv.KeyUser),
		s.storage.Remove(ctx, kv.KeyToken),
	)
}

// failure turns an error into a user-facing result. Known rejections and
// backend messages are shown as is; anything else is logged and replaced by
// fallback.
func (s *Session) failure(ctx context.Context, op string, err error, fallback string) domain.Result {
	logger := util.LoggerFromContext(ctx)
	switch {
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrUsernameExists),
		errors.Is(err, ErrPasswordMismatch),
		errors.Is(err, ErrFieldsRequired):
		logger.Info("auth rejected", "op", op, "reason", err.Error())
		return domain.Fail(err.Error())
	}
	var respErr *graphql.ResponseError
	var apiErr *graphql.APIError
	if errors.As(err, &respErr) || errors.As(err, &apiErr) {
		logger.Info("auth rejected by backend", "op", op, "err", err)
		if msg := err.Error(); msg != "" {
			return domain.Fail(msg)
		}
		return domain.Fail(fallback)
	}
	logger.Error("auth failed", "op", op, "err", err)
	return domain.Fail(fallback)
}

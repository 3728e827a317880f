package session

import (
	"context"

	"bookhub/pkg/domain"
)

// Authenticator checks credentials against a user source and issues tokens.
type Authenticator interface {
	Login(ctx context.Context, creds domain.Credentials) (domain.AuthUser, error)
	Register(ctx context.Context, data domain.RegisterData) (domain.AuthUser, error)
	// Logout ends the session on the user source, if it tracks one.
	Logout(ctx context.Context) error
	// Verify reports whether a restored user still holds a valid token.
	Verify(ctx context.Context, user domain.AuthUser) error
}

package session

import (
	"context"
	"errors"
	"strings"

	"bookhub/internal/graphql"
	"bookhub/pkg/domain"
)

// RemoteAuthenticator signs in against the GraphQL backend. The client is
// expected to read the bearer token from the same storage the Session
// writes to.
type RemoteAuthenticator struct {
	client *graphql.Client
}

func NewRemoteAuthenticator(client *graphql.Client) *RemoteAuthenticator {
	return &RemoteAuthenticator{client: client}
}

type authPayload struct {
	AccessToken string `json:"access_token"`
	User        struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"user"`
}

func (p authPayload) toAuthUser() (domain.AuthUser, error) {
	if strings.TrimSpace(p.AccessToken) == "" {
		return domain.AuthUser{}, errors.New("backend returned no access token")
	}
	return domain.AuthUser{
		ID:    p.User.ID,
		Email: p.User.Email,
		Name:  p.User.Name,
		Token: p.AccessToken,
	}, nil
}

func (a *RemoteAuthenticator) Login(ctx context.Context, creds domain.Credentials) (domain.AuthUser, error) {
	email := strings.TrimSpace(creds.Email)
	if email == "" {
		email = strings.TrimSpace(creds.Username)
	}
	var out struct {
		SignIn authPayload `json:"signIn"`
	}
	vars := map[string]any{"input": map[string]any{"email": email, "password": creds.Password}}
	if err := a.client.Do(ctx, "SignIn", graphql.SignIn, vars, &out); err != nil {
		return domain.AuthUser{}, err
	}
	return out.SignIn.toAuthUser()
}

func (a *RemoteAuthenticator) Register(ctx context.Context, data domain.RegisterData) (domain.AuthUser, error) {
	email := strings.TrimSpace(data.Email)
	if email == "" {
		email = strings.TrimSpace(data.Username)
	}
	name := strings.TrimSpace(data.Name)
	if name == "" {
		name = strings.TrimSpace(data.Username)
	}
	var out struct {
		SignUp authPayload `json:"signUp"`
	}
	vars := map[string]any{"input": map[string]any{
		"email":    email,
		"password": data.Password,
		"name":     name,
	}}
	if err := a.client.Do(ctx, "SignUp", graphql.SignUp, vars, &out); err != nil {
		return domain.AuthUser{}, err
	}
	return out.SignUp.toAuthUser()
}

func (a *RemoteAuthenticator) Logout(ctx context.Context) error {
	return a.client.Do(ctx, "Logout", graphql.Logout, nil, nil)
}

// Verify trusts restored tokens; the backend rejects stale ones on the next
// request.
func (a *RemoteAuthenticator) Verify(context.Context, domain.AuthUser) error {
	return nil
}

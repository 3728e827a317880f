package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"bookhub/internal/graphql"
	"bookhub/internal/kv"
	"bookhub/internal/usertoken"
	"bookhub/pkg/domain"
)

var testUsers = []domain.User{
	{ID: "1", Username: "admin", Password: "admin123"},
	{ID: "2", Username: "reader", Password: "reader123"},
}

func newLocalSession(t *testing.T, storage kv.Storage, opts Options) *Session {
	t.Helper()
	s := New(storage, NewLocalAuthenticator(storage, testUsers, nil), opts)
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return s
}

func TestLoadingUntilInit(t *testing.T) {
	storage := kv.NewMemoryStorage()
	s := New(storage, NewLocalAuthenticator(storage, testUsers, nil), Options{})
	if !s.IsLoading() {
		t.Fatalf("expected loading before init")
	}
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if s.IsLoading() {
		t.Fatalf("expected loading to end after init")
	}
	if s.IsAuthenticated() {
		t.Fatalf("empty storage must not restore a user")
	}
}

func TestLocalLoginPersistsUserAndToken(t *testing.T) {
	ctx := context.Background()
	storage := kv.NewMemoryStorage()
	s := newLocalSession(t, storage, Options{})

	res := s.Login(ctx, domain.Credentials{Username: "admin", Password: "admin123"})
	if !res.Success {
		t.Fatalf("expected login success, got %q", res.Message)
	}
	user, ok := s.User()
	if !ok || user.ID != "1" || user.Username != "admin" || user.Token == "" {
		t.Fatalf("unexpected current user %+v", user)
	}
	token, ok, _ := storage.Get(ctx, kv.KeyToken)
	if !ok || token != user.Token {
		t.Fatalf("expected token %q in storage, got %q", user.Token, token)
	}
	var stored domain.AuthUser
	if err := kv.GetJSON(ctx, storage, kv.KeyUser, &stored); err != nil {
		t.Fatalf("read stored user: %v", err)
	}
	if stored.ID != "1" {
		t.Fatalf("unexpected stored user %+v", stored)
	}
}

func TestLocalLoginWrongPassword(t *testing.T) {
	ctx := context.Background()
	storage := kv.NewMemoryStorage()
	s := newLocalSession(t, storage, Options{})

	res := s.Login(ctx, domain.Credentials{Username: "admin", Password: "nope"})
	if res.Success || res.Message != "Invalid username or password" {
		t.Fatalf("unexpected result %+v", res)
	}
	if s.IsAuthenticated() {
		t.Fatalf("failed login must not set a user")
	}
	if _, ok, _ := storage.Get(ctx, kv.KeyToken); ok {
		t.Fatalf("failed login must not write a token")
	}

	res = s.Login(ctx, domain.Credentials{Username: "ghost", Password: "admin123"})
	if res.Success || res.Message != "Invalid username or password" {
		t.Fatalf("unknown user should get the same message, got %+v", res)
	}
}

func TestRegisterPasswordMismatchHasNoSideEffects(t *testing.T) {
	ctx := context.Background()
	storage := kv.NewMemoryStorage()
	s := newLocalSession(t, storage, Options{})

	res := s.Register(ctx, domain.RegisterData{Username: "new", Password: "a", ConfirmPassword: "b"})
	if res.Success || res.Message != "Passwords do not match" {
		t.Fatalf("unexpected result %+v", res)
	}
	for _, key := range []string{kv.KeyUser, kv.KeyToken, kv.KeyUsers} {
		if _, ok, _ := storage.Get(ctx, key); ok {
			t.Fatalf("expected no write to %q", key)
		}
	}
}

func TestRegisterExistingUsername(t *testing.T) {
	s := newLocalSession(t, kv.NewMemoryStorage(), Options{})
	res := s.Register(context.Background(), domain.RegisterData{Username: "admin", Password: "x", ConfirmPassword: "x"})
	if res.Success || res.Message != "Username already exists" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRegisteredUserCanLogInAgain(t *testing.T) {
	ctx := context.Background()
	storage := kv.NewMemoryStorage()
	s := newLocalSession(t, storage, Options{})

	res := s.Register(ctx, domain.RegisterData{Username: "alice", Password: "pw1", ConfirmPassword: "pw1"})
	if !res.Success {
		t.Fatalf("register: %q", res.Message)
	}
	user, ok := s.User()
	if !ok || user.Username != "alice" || user.ID == "" {
		t.Fatalf("unexpected user after register %+v", user)
	}

	var users []domain.User
	if err := kv.GetJSON(ctx, storage, kv.KeyUsers, &users); err != nil {
		t.Fatalf("read users: %v", err)
	}
	if len(users) != 1 || users[0].PasswordHash == "" || users[0].Password != "" {
		t.Fatalf("expected one hashed user record, got %+v", users)
	}

	if err := s.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if res := s.Login(ctx, domain.Credentials{Username: "alice", Password: "pw1"}); !res.Success {
		t.Fatalf("login as registered user: %q", res.Message)
	}
	if res := s.Register(ctx, domain.RegisterData{Username: "alice", Password: "x", ConfirmPassword: "x"}); res.Message != "Username already exists" {
		t.Fatalf("expected duplicate rejection, got %+v", res)
	}
}

func TestLogoutClearsStorage(t *testing.T) {
	ctx := context.Background()
	storage := kv.NewMemoryStorage()
	s := newLocalSession(t, storage, Options{})
	if res := s.Login(ctx, domain.Credentials{Username: "reader", Password: "reader123"}); !res.Success {
		t.Fatalf("login: %q", res.Message)
	}
	if err := s.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if s.IsAuthenticated() {
		t.Fatalf("expected signed out")
	}
	for _, key := range []string{kv.KeyUser, kv.KeyToken} {
		if _, ok, _ := storage.Get(ctx, key); ok {
			t.Fatalf("expected %q removed", key)
		}
	}
}

func TestInitRestoresAcrossRestart(t *testing.T) {
	ctx := context.Background()
	storage, err := kv.NewFileStorage(t.TempDir() + "/state.json")
	if err != nil {
		t.Fatalf("file storage: %v", err)
	}
	first := newLocalSession(t, storage, Options{})
	if res := first.Login(ctx, domain.Credentials{Username: "admin", Password: "admin123"}); !res.Success {
		t.Fatalf("login: %q", res.Message)
	}
	want, _ := first.User()

	second := newLocalSession(t, storage, Options{})
	got, ok := second.User()
	if !ok {
		t.Fatalf("expected user restored")
	}
	if got != want {
		t.Fatalf("restored %+v, want %+v", got, want)
	}
}

func TestInitIgnoresUnreadableUser(t *testing.T) {
	ctx := context.Background()
	storage := kv.NewMemoryStorage()
	_ = storage.Set(ctx, kv.KeyUser, "{not json")
	_ = storage.Set(ctx, kv.KeyToken, "abc")

	s := newLocalSession(t, storage, Options{})
	if s.IsAuthenticated() {
		t.Fatalf("corrupt user must not restore")
	}
}

func TestInitNeedsBothKeys(t *testing.T) {
	ctx := context.Background()
	storage := kv.NewMemoryStorage()
	_ = kv.SetJSON(ctx, storage, kv.KeyUser, domain.AuthUser{ID: "1", Username: "admin"})

	s := newLocalSession(t, storage, Options{})
	if s.IsAuthenticated() {
		t.Fatalf("user without token must not restore")
	}
}

func TestVerifyOnRestoreDropsBadToken(t *testing.T) {
	ctx := context.Background()
	storage := kv.NewMemoryStorage()
	tokens, err := usertoken.NewHS256(usertoken.HS256Options{Secret: "secret-a"})
	if err != nil {
		t.Fatalf("hs256: %v", err)
	}
	first := New(storage, NewLocalAuthenticator(storage, testUsers, tokens), Options{})
	if err := first.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if res := first.Login(ctx, domain.Credentials{Username: "admin", Password: "admin123"}); !res.Success {
		t.Fatalf("login: %q", res.Message)
	}

	same := New(storage, NewLocalAuthenticator(storage, testUsers, tokens), Options{VerifyOnRestore: true})
	if err := same.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if !same.IsAuthenticated() {
		t.Fatalf("valid token should restore")
	}

	rotated, _ := usertoken.NewHS256(usertoken.HS256Options{Secret: "secret-b"})
	other := New(storage, NewLocalAuthenticator(storage, testUsers, rotated), Options{VerifyOnRestore: true})
	if err := other.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if other.IsAuthenticated() {
		t.Fatalf("token signed with another secret must not restore")
	}
	if _, ok, _ := storage.Get(ctx, kv.KeyToken); ok {
		t.Fatalf("rejected token should be cleared")
	}
}

func TestSessionWithRedisStorage(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	storage := kv.NewRedisStorage(mr.Addr(), "", "test")
	defer storage.Close()

	s := newLocalSession(t, storage, Options{})
	if res := s.Login(ctx, domain.Credentials{Username: "admin", Password: "admin123"}); !res.Success {
		t.Fatalf("login: %q", res.Message)
	}
	if !mr.Exists("test:token") {
		t.Fatalf("expected token key in redis")
	}
	restored := newLocalSession(t, storage, Options{})
	if !restored.IsAuthenticated() {
		t.Fatalf("expected restore from redis")
	}
}

type failingStorage struct {
	*kv.MemoryStorage
}

func (f failingStorage) Set(context.Context, string, string) error {
	return errors.New("disk full")
}

func TestLoginStorageFailure(t *testing.T) {
	storage := failingStorage{kv.NewMemoryStorage()}
	s := newLocalSession(t, storage, Options{})
	res := s.Login(context.Background(), domain.Credentials{Username: "admin", Password: "admin123"})
	if res.Success || res.Message != "An error occurred during login" {
		t.Fatalf("unexpected result %+v", res)
	}
	if s.IsAuthenticated() {
		t.Fatalf("unpersisted login must not set a user")
	}
}

type gqlCall struct {
	op   string
	auth string
	vars map[string]any
}

func newGraphQLFake(t *testing.T, handle func(op string, vars map[string]any) (int, string)) (*httptest.Server, *[]gqlCall) {
	t.Helper()
	calls := &[]gqlCall{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			OperationName string         `json:"operationName"`
			Variables     map[string]any `json:"variables"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		*calls = append(*calls, gqlCall{op: req.OperationName, auth: r.Header.Get("Authorization"), vars: req.Variables})
		status, payload := handle(req.OperationName, req.Variables)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, payload)
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func newRemoteSession(t *testing.T, url string) (*Session, kv.Storage) {
	t.Helper()
	storage := kv.NewMemoryStorage()
	client := graphql.NewClient(url, time.Second, func(ctx context.Context) (string, error) {
		token, _, err := storage.Get(ctx, kv.KeyToken)
		return token, err
	})
	s := New(storage, NewRemoteAuthenticator(client), Options{})
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return s, storage
}

func TestRemoteLoginAndLogout(t *testing.T) {
	ctx := context.Background()
	srv, calls := newGraphQLFake(t, func(op string, vars map[string]any) (int, string) {
		switch op {
		case "SignIn":
			return http.StatusOK, `{"data":{"signIn":{"access_token":"jwt-1","user":{"id":"u1","email":"a@b.c","name":"Ann"}}}}`
		case "Logout":
			return http.StatusOK, `{"data":{"logout":{"message":"bye"}}}`
		}
		return http.StatusBadRequest, `{"errors":[{"message":"unexpected"}]}`
	})
	s, storage := newRemoteSession(t, srv.URL)

	res := s.Login(ctx, domain.Credentials{Email: "a@b.c", Password: "pw"})
	if !res.Success {
		t.Fatalf("login: %q", res.Message)
	}
	user, _ := s.User()
	if user.ID != "u1" || user.Email != "a@b.c" || user.Name != "Ann" || user.Token != "jwt-1" {
		t.Fatalf("unexpected user %+v", user)
	}
	input, _ := (*calls)[0].vars["input"].(map[string]any)
	if input["email"] != "a@b.c" || input["password"] != "pw" {
		t.Fatalf("unexpected signIn input %+v", input)
	}

	if err := s.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	last := (*calls)[len(*calls)-1]
	if last.op != "Logout" || last.auth != "Bearer jwt-1" {
		t.Fatalf("expected authorised logout call, got %+v", last)
	}
	if _, ok, _ := storage.Get(ctx, kv.KeyToken); ok {
		t.Fatalf("expected token cleared")
	}
}

func TestRemoteLoginSurfacesBackendMessage(t *testing.T) {
	srv, _ := newGraphQLFake(t, func(string, map[string]any) (int, string) {
		return http.StatusOK, `{"data":null,"errors":[{"message":"Invalid credentials"}]}`
	})
	s, _ := newRemoteSession(t, srv.URL)

	res := s.Login(context.Background(), domain.Credentials{Email: "a@b.c", Password: "bad"})
	if res.Success || res.Message != "Invalid credentials" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRemoteRegisterSignsIn(t *testing.T) {
	srv, calls := newGraphQLFake(t, func(op string, _ map[string]any) (int, string) {
		if op != "SignUp" {
			return http.StatusBadRequest, `{"errors":[{"message":"unexpected"}]}`
		}
		return http.StatusOK, `{"data":{"signUp":{"access_token":"jwt-2","user":{"id":"u2","email":"n@b.c","name":"Neo"}}}}`
	})
	s, _ := newRemoteSession(t, srv.URL)

	res := s.Register(context.Background(), domain.RegisterData{
		Email: "n@b.c", Name: "Neo", Password: "pw", ConfirmPassword: "pw",
	})
	if !res.Success {
		t.Fatalf("register: %q", res.Message)
	}
	input, _ := (*calls)[0].vars["input"].(map[string]any)
	if input["name"] != "Neo" || input["email"] != "n@b.c" {
		t.Fatalf("unexpected signUp input %+v", input)
	}
	if user, _ := s.User(); user.Token != "jwt-2" {
		t.Fatalf("expected token from signUp, got %+v", user)
	}
}

func TestRemoteRegisterMismatchSkipsBackend(t *testing.T) {
	srv, calls := newGraphQLFake(t, func(string, map[string]any) (int, string) {
		return http.StatusOK, `{"data":{}}`
	})
	s, _ := newRemoteSession(t, srv.URL)
	res := s.Register(context.Background(), domain.RegisterData{Email: "x@y.z", Password: "a", ConfirmPassword: "b"})
	if res.Message != "Passwords do not match" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(*calls) != 0 {
		t.Fatalf("expected no backend call, got %d", len(*calls))
	}
}

func TestRemoteLogoutFailureStillClears(t *testing.T) {
	ctx := context.Background()
	srv, _ := newGraphQLFake(t, func(op string, _ map[string]any) (int, string) {
		if op == "SignIn" {
			return http.StatusOK, `{"data":{"signIn":{"access_token":"jwt-3","user":{"id":"u3","email":"e","name":"n"}}}}`
		}
		return http.StatusInternalServerError, `{"errors":[{"message":"boom"}]}`
	})
	s, storage := newRemoteSession(t, srv.URL)
	if res := s.Login(ctx, domain.Credentials{Email: "e", Password: "p"}); !res.Success {
		t.Fatalf("login: %q", res.Message)
	}
	if err := s.Logout(ctx); err != nil {
		t.Fatalf("logout should not surface remote failure: %v", err)
	}
	if s.IsAuthenticated() {
		t.Fatalf("expected signed out")
	}
	if v, ok, _ := storage.Get(ctx, kv.KeyUser); ok {
		t.Fatalf("expected user cleared, got %q", v)
	}
}

func TestRemoteLoginMissingToken(t *testing.T) {
	srv, _ := newGraphQLFake(t, func(string, map[string]any) (int, string) {
		return http.StatusOK, `{"data":{"signIn":{"access_token":"","user":{"id":"u"}}}}`
	})
	s, _ := newRemoteSession(t, srv.URL)
	res := s.Login(context.Background(), domain.Credentials{Email: "e", Password: "p"})
	if res.Success || !strings.Contains(res.Message, "error occurred") {
		t.Fatalf("unexpected result %+v", res)
	}
}

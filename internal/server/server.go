package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"bookhub/internal/app"
	"bookhub/internal/books"
	"bookhub/internal/metrics"
	"bookhub/internal/util"
	"bookhub/pkg/domain"
)

const maxBodyBytes = 1 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App         *app.App
	CORSOrigins []string
}

// Server exposes the session and book store over JSON.
type Server struct {
	app         *app.App
	mux         *http.ServeMux
	corsOrigins []string
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:         cfg.App,
		mux:         http.NewServeMux(),
		corsOrigins: cfg.CORSOrigins,
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.corsOrigins, s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/metrics", metrics.Handler())

	// auth
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/register", s.handleRegister)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.HandleFunc("/api/auth/me", s.handleMe)

	// books (auth required)
	s.mux.Handle("/api/books", s.authenticated(s.handleBooks))
	s.mux.Handle("/api/books/search", s.authenticated(s.handleSearch))
	s.mux.Handle("/api/books/", s.authenticated(s.handleBookByID))
	s.mux.Handle("/api/genres", s.authenticated(s.handleGenres))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	if s.app.Session.IsLoading() || s.app.Books.IsLoading() {
		status = "loading"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

type authHandler func(http.ResponseWriter, *http.Request, domain.AuthUser)

// authenticated gates book routes on the current session. Nothing is served
// until both stores have finished loading.
func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.app.Session.IsLoading() || s.app.Books.IsLoading() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusServiceUnavailable, "loading")
			return
		}
		user, ok := s.app.Session.User()
		if !ok {
			s.audit(r, "session.authorize", "fail")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var creds domain.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res := s.app.Login(r.Context(), creds)
	if !res.Success {
		s.audit(r, "auth.login", "fail")
		writeError(w, http.StatusUnauthorized, res.Message)
		return
	}
	user, _ := s.app.Session.User()
	s.audit(r, "auth.login", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var data domain.RegisterData
	if err := decodeJSON(r, &data); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res := s.app.Register(r.Context(), data)
	if !res.Success {
		s.audit(r, "auth.register", "fail", "reason", res.Message)
		status := http.StatusBadRequest
		if res.Message == "Username already exists" {
			status = http.StatusConflict
		}
		writeError(w, status, res.Message)
		return
	}
	user, _ := s.app.Session.User()
	s.audit(r, "auth.register", "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := s.app.Logout(r.Context()); err != nil {
		util.LoggerFromContext(r.Context()).Error("logout storage cleanup failed", "err", err)
	}
	s.audit(r, "auth.logout", "success")
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.app.Session.IsLoading() {
		writeError(w, http.StatusServiceUnavailable, "loading")
		return
	}
	user, ok := s.app.Session.User()
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request, _ domain.AuthUser) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		page := queryInt(q.Get("page"))
		limit := queryInt(q.Get("limit"))
		filters := domain.Filters{
			Search: q.Get("search"),
			Genre:  q.Get("genre"),
			Author: q.Get("author"),
		}
		writeJSON(w, http.StatusOK, s.app.Books.GetBooks(page, limit, filters))
	case http.MethodPost:
		in, ok := decodeBookInput(w, r)
		if !ok {
			return
		}
		res := s.app.Books.AddBook(r.Context(), in)
		if !res.Success {
			s.writeResultError(w, res)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, _ domain.AuthUser) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.app.Books.SearchBooks(r.URL.Query().Get("q")))
}

func (s *Server) handleBookByID(w http.ResponseWriter, r *http.Request, _ domain.AuthUser) {
	id := strings.TrimPrefix(r.URL.Path, "/api/books/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		book, ok := s.app.Books.GetBookByID(id)
		if !ok {
			writeError(w, http.StatusNotFound, "Book not found")
			return
		}
		writeJSON(w, http.StatusOK, book)
	case http.MethodPut:
		in, ok := decodeBookInput(w, r)
		if !ok {
			return
		}
		res := s.app.Books.UpdateBook(r.Context(), id, in)
		if !res.Success {
			s.writeResultError(w, res)
			return
		}
		writeJSON(w, http.StatusOK, res)
	case http.MethodDelete:
		res := s.app.Books.DeleteBook(r.Context(), id)
		if !res.Success {
			s.writeResultError(w, res)
			return
		}
		writeJSON(w, http.StatusOK, res)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleGenres(w http.ResponseWriter, r *http.Request, _ domain.AuthUser) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{
		"genres":       domain.Genres,
		"inCollection": s.app.Books.Genres(),
	})
}

func decodeBookInput(w http.ResponseWriter, r *http.Request) (domain.BookInput, bool) {
	var in domain.BookInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return in, false
	}
	if msg, ok := books.ValidateInput(in); !ok {
		writeError(w, http.StatusBadRequest, msg)
		return in, false
	}
	return in, true
}

// writeResultError maps a failed store result to a status. Messages coming
// from the remote backend are reported as upstream failures.
func (s *Server) writeResultError(w http.ResponseWriter, res domain.Result) {
	switch {
	case res.Message == "Book not found":
		writeError(w, http.StatusNotFound, res.Message)
	case s.app.Remote():
		writeError(w, http.StatusBadGateway, res.Message)
	default:
		writeError(w, http.StatusInternalServerError, res.Message)
	}
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	return dec.Decode(v)
}

func queryInt(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return n
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

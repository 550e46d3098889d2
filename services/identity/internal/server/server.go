package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"dormlend/internal/servicetoken"
	"dormlend/pkg/domain"
	"dormlend/services/identity/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App             *app.App
	ServiceVerifier *servicetoken.Verifier
}

// Server exposes HTTP endpoints for the identity provider.
type Server struct {
	app             *app.App
	serviceVerifier *servicetoken.Verifier
	mux             *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:             cfg.App,
		serviceVerifier: cfg.ServiceVerifier,
		mux:             http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	s.mux.HandleFunc("/identity/login", s.handleLogin)
	s.mux.HandleFunc("/identity/logout", s.handleLogout)
	s.mux.HandleFunc("/identity/refresh", s.handleRefresh)
	s.mux.HandleFunc("/identity/introspect", s.handleIntrospect)
	s.mux.HandleFunc("/identity/jwks", s.handleJWKS)
	s.mux.HandleFunc("/.well-known/jwks.json", s.handleJWKS)

	// provisioning endpoints for trusted services
	s.mux.Handle("/identity/accounts", s.serviceOnly(s.handleAccounts))
	s.mux.Handle("/identity/accounts/", s.serviceOnly(s.handleAccountByUID))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// serviceOnly requires a valid internal service token.
func (s *Server) serviceOnly(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := servicetoken.BearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		claims, err := s.serviceVerifier.Verify(token)
		if err != nil {
			slog.Warn("service token rejected", "path", r.URL.Path, "err", err)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		slog.Debug("service call", "issuer", claims.Issuer, "path", r.URL.Path)
		next(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	account, accessToken, refreshToken, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		// Disabled accounts get the generic message to avoid enumeration.
		writeError(w, http.StatusUnauthorized, app.ErrInvalidCredentials.Error())
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Account:      accountView(account),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, ok := servicetoken.BearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req logoutRequest
	if r.Body != nil {
		_ = json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req)
	}
	if err := s.app.Logout(token, req.RefreshToken); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req refreshRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	account, accessToken, refreshToken, err := s.app.Refresh(req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Account:      accountView(account),
	})
}

func (s *Server) handleIntrospect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req introspectRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	subject, ok := s.app.Introspect(req.Token)
	if !ok {
		writeJSON(w, http.StatusOK, introspectResponse{Active: false})
		return
	}
	writeJSON(w, http.StatusOK, introspectResponse{
		Active: true,
		UID:    subject.UID,
		Email:  subject.Email,
	})
}

func (s *Server) handleJWKS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	keys := s.app.JWKS()
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req createAccountRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	account, err := s.app.CreateAccount(req.Email, req.Username, req.Password)
	if err != nil {
		status := http.StatusBadRequest
		if err == app.ErrEmailAlreadyExists {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, accountView(account))
}

func (s *Server) handleAccountByUID(w http.ResponseWriter, r *http.Request) {
	uid := strings.TrimPrefix(r.URL.Path, "/identity/accounts/")
	if uid == "" || strings.Contains(uid, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	if err := s.app.DeleteAccount(uid); err != nil {
		if err == app.ErrAccountNotFound {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type introspectRequest struct {
	Token string `json:"token"`
}

type introspectResponse struct {
	Active bool   `json:"active"`
	UID    string `json:"uid,omitempty"`
	Email  string `json:"email,omitempty"`
}

type createAccountRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string      `json:"sessionToken"`
	RefreshToken string      `json:"refreshToken"`
	Account      accountBody `json:"account"`
}

type accountBody struct {
	UID      string `json:"uid"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Status   string `json:"status"`
}

func accountView(account domain.Account) accountBody {
	return accountBody{
		UID:      account.UID,
		Email:    account.Email,
		Username: account.Username,
		Status:   string(account.Status),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"dormlend/pkg/domain"
	"dormlend/services/board/internal/app"
	"dormlend/services/board/internal/identity"
	"dormlend/services/board/internal/validate"
)

// SessionHeader carries the bearer credential on every authenticated call.
const SessionHeader = "sessionToken"

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	MaxUploadBytes int64
}

// Server exposes the board REST endpoints.
type Server struct {
	app            *app.App
	maxUploadBytes int64
	mux            *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:            cfg.App,
		maxUploadBytes: normalizeMaxBytes(cfg.MaxUploadBytes),
		mux:            http.NewServeMux(),
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

	s.mux.Handle("/appliance", s.authenticated(s.handleAppliances))
	s.mux.Handle("/appliance/owner", s.authenticated(s.handleAppliancesByOwner))
	s.mux.Handle("/appliance/", s.authenticated(s.handleApplianceByID))

	s.mux.Handle("/request", s.authenticated(s.handleRequests))
	s.mux.Handle("/request/filter", s.authenticated(s.handleRequestFilter))
	s.mux.Handle("/request/", s.authenticated(s.handleRequestByID))

	s.mux.Handle("/message", s.authenticated(s.handleMessages))

	// signup is the one pre-authentication endpoint
	s.mux.HandleFunc("/user", s.handleUserCollection)
	s.mux.Handle("/user/", s.authenticated(s.handleUserByKey))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type subjectHandler func(http.ResponseWriter, *http.Request, domain.Subject)

func (s *Server) authenticated(next subjectHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		credential := strings.TrimSpace(r.Header.Get(SessionHeader))
		if credential == "" {
			writeError(w, http.StatusUnauthorized, "missing sessionToken header")
			return
		}
		subject, err := s.app.VerifySubject(r.Context(), credential)
		if err != nil {
			switch {
			case errors.Is(err, identity.ErrSubjectDisabled):
				slog.Info("rejected revoked or disabled session", "path", r.URL.Path)
			case errors.Is(err, identity.ErrProviderUnavailable):
				slog.Error("identity provider unreachable", "path", r.URL.Path)
			default:
				slog.Debug("rejected bad credential", "path", r.URL.Path)
			}
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, subject)
	})
}

// appliance handlers

func (s *Server) handleAppliances(w http.ResponseWriter, r *http.Request, subject domain.Subject) {
	switch r.Method {
	case http.MethodPost:
		var payload validate.ApplianceCreate
		if !decodeBody(w, r, &payload) {
			return
		}
		id, err := s.app.CreateAppliance(r.Context(), subject, payload)
		if err != nil {
			writeAppError(w, err, http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"applianceId": id})
	case http.MethodGet:
		appliances, err := s.app.ListAppliances(r.Context(), subject)
		if err != nil {
			writeAppError(w, err, http.StatusBadRequest)
			return
		}
		if len(appliances) == 0 {
			writeError(w, http.StatusNotFound, "no appliances found")
			return
		}
		writeJSON(w, http.StatusOK, appliances)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleAppliancesByOwner(w http.ResponseWriter, r *http.Request, subject domain.Subject) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	ownerUsername := strings.TrimSpace(r.URL.Query().Get("ownerUsername"))
	if ownerUsername == "" {
		writeError(w, http.StatusBadRequest, "ownerUsername is required")
		return
	}
	appliances, err := s.app.ListAppliancesByOwner(r.Context(), subject, ownerUsername)
	if err != nil {
		writeAppError(w, err, http.StatusBadRequest)
		return
	}
	if len(appliances) == 0 {
		writeError(w, http.StatusNotFound, "no appliances found")
		return
	}
	writeJSON(w, http.StatusOK, appliances)
}

func (s *Server) handleApplianceByID(w http.ResponseWriter, r *http.Request, subject domain.Subject) {
	rest := strings.TrimPrefix(r.URL.Path, "/appliance/")
	if id, ok := strings.CutSuffix(rest, "/photo"); ok && !strings.Contains(id, "/") && id != "" {
		s.handleAppliancePhoto(w, r, subject, id)
		return
	}
	if rest == "" || strings.Contains(rest, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var payload validate.ApplianceUpdate
		if !decodeBody(w, r, &payload) {
			return
		}
		if err := s.app.UpdateAppliance(r.Context(), subject, rest, payload); err != nil {
			writeAppError(w, err, http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "appliance updated"})
	case http.MethodDelete:
		if err := s.app.DeleteAppliance(r.Context(), subject, rest); err != nil {
			writeAppError(w, err, http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "appliance deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleAppliancePhoto(w http.ResponseWriter, r *http.Request, subject domain.Subject, applianceID string) {
	switch r.Method {
	case http.MethodPost:
		if s.maxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
		}
		if err := r.ParseMultipartForm(8 << 20); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form data")
			return
		}
		file, header, err := r.FormFile("photo")
		if err != nil {
			writeError(w, http.StatusBadRequest, "photo is required (field: photo)")
			return
		}
		defer file.Close()
		if aerr := s.app.AttachPhoto(r.Context(), subject, applianceID, header.Filename, file, header.Size); aerr != nil {
			writeAppError(w, aerr, http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"message": "photo stored"})
	case http.MethodGet:
		url, aerr := s.app.PhotoURL(r.Context(), subject, applianceID)
		if aerr != nil {
			writeAppError(w, aerr, http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
	default:
		methodNotAllowed(w)
	}
}

// request handlers

func (s *Server) handleRequests(w http.ResponseWriter, r *http.Request, subject domain.Subject) {
	switch r.Method {
	case http.MethodPost:
		var payload validate.RequestCreate
		if !decodeBody(w, r, &payload) {
			return
		}
		id, err := s.app.CreateRequest(r.Context(), subject, payload)
		if err != nil {
			writeAppError(w, err, http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"requestId": id})
	case http.MethodGet:
		requests, err := s.app.ListRequests(r.Context(), subject)
		if err != nil {
			writeAppError(w, err, http.StatusBadRequest)
			return
		}
		if len(requests) == 0 {
			writeError(w, http.StatusNotFound, "no requests found")
			return
		}
		writeJSON(w, http.StatusOK, requests)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleRequestFilter(w http.ResponseWriter, r *http.Request, subject domain.Subject) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	filter, ferr := parseRequestFilter(r)
	if ferr != "" {
		writeError(w, http.StatusBadRequest, ferr)
		return
	}
	requests, err := s.app.FilterRequests(r.Context(), subject, filter)
	if err != nil {
		writeAppError(w, err, http.StatusBadRequest)
		return
	}
	if len(requests) == 0 {
		writeError(w, http.StatusNotFound, "no matching requests")
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

func (s *Server) handleRequestByID(w http.ResponseWriter, r *http.Request, subject domain.Subject) {
	id := strings.TrimPrefix(r.URL.Path, "/request/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var payload validate.RequestStatusUpdate
		if !decodeBody(w, r, &payload) {
			return
		}
		if err := s.app.UpdateRequestStatus(r.Context(), subject, id, payload); err != nil {
			writeAppError(w, err, http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "request updated"})
	case http.MethodDelete:
		if err := s.app.DeleteRequest(r.Context(), subject, id); err != nil {
			writeAppError(w, err, http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "request deleted"})
	default:
		methodNotAllowed(w)
	}
}

// message handlers

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request, subject domain.Subject) {
	switch r.Method {
	case http.MethodPost:
		var payload validate.MessageSend
		if !decodeBody(w, r, &payload) {
			return
		}
		id, err := s.app.SendMessage(r.Context(), subject, payload)
		if err != nil {
			writeAppError(w, err, http.StatusForbidden)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"messageId": id})
	case http.MethodGet:
		uidA := strings.TrimSpace(r.URL.Query().Get("userAUid"))
		uidB := strings.TrimSpace(r.URL.Query().Get("userBUid"))
		messages, err := s.app.ListConversation(r.Context(), subject, uidA, uidB)
		if err != nil {
			writeAppError(w, err, http.StatusForbidden)
			return
		}
		writeJSON(w, http.StatusOK, messages)
	default:
		methodNotAllowed(w)
	}
}

// user handlers

func (s *Server) handleUserCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload validate.UserCreate
		if !decodeBody(w, r, &payload) {
			return
		}
		uid, err := s.app.SignUp(r.Context(), payload)
		if err != nil {
			writeAppError(w, err, http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"uid": uid})
	case http.MethodGet:
		s.authenticated(s.handleListUsers).ServeHTTP(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request, subject domain.Subject) {
	users, err := s.app.ListUsers(r.Context(), subject)
	if err != nil {
		writeAppError(w, err, http.StatusBadRequest)
		return
	}
	if len(users) == 0 {
		writeError(w, http.StatusNotFound, "no users found")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleUserByKey(w http.ResponseWriter, r *http.Request, subject domain.Subject) {
	key := strings.TrimPrefix(r.URL.Path, "/user/")
	if key == "" || strings.Contains(key, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		user, err := s.app.GetUserByUsername(r.Context(), subject, key)
		if err != nil {
			writeAppError(w, err, http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodPut:
		var payload validate.UserUpdate
		if !decodeBody(w, r, &payload) {
			return
		}
		if err := s.app.UpdateUser(r.Context(), subject, key, payload); err != nil {
			writeAppError(w, err, http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "user updated"})
	case http.MethodDelete:
		// deletion is addressed by uid, not username
		if err := s.app.DeleteUser(r.Context(), subject, key); err != nil {
			writeAppError(w, err, http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
	default:
		methodNotAllowed(w)
	}
}

// helpers

func parseRequestFilter(r *http.Request) (app.RequestFilter, string) {
	filter := app.RequestFilter{}
	query := r.URL.Query()
	if v := strings.TrimSpace(query.Get("applianceName")); v != "" {
		filter.ApplianceName = &v
	}
	if v := strings.TrimSpace(query.Get("collateral")); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return filter, "collateral must be true or false"
		}
		filter.Collateral = &parsed
	}
	if v := strings.TrimSpace(query.Get("requestDuration")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return filter, "requestDuration must be a positive integer"
		}
		filter.MaxDuration = &parsed
	}
	return filter, ""
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func normalizeMaxBytes(value int64) int64 {
	if value <= 0 {
		return 8 << 20
	}
	return value
}

// writeAppError maps a classified failure to HTTP. authzStatus lets the
// endpoint table keep its documented split: 400 for appliance/request/user
// ownership failures, 403 for message participant checks.
func writeAppError(w http.ResponseWriter, err *app.Error, authzStatus int) {
	switch err.Kind {
	case app.KindValidation:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Message, "field": err.Field})
	case app.KindAuthentication:
		writeError(w, http.StatusUnauthorized, err.Message)
	case app.KindAuthorization:
		writeError(w, authzStatus, err.Message)
	case app.KindNotFound:
		writeError(w, http.StatusNotFound, err.Message)
	default:
		slog.Error("dependency failure", "err", err.Error(), "cause", err.Unwrap())
		writeError(w, http.StatusInternalServerError, err.Message)
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

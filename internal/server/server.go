package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"onlinelibrary/internal/app"
	"onlinelibrary/internal/ratelimit"
	"onlinelibrary/internal/util"
	"onlinelibrary/pkg/domain"
	"onlinelibrary/pkg/queue"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App

	// Optional per-endpoint limiters; nil disables limiting.
	LoginLimiter    *ratelimit.FixedWindowLimiter
	RegisterLimiter *ratelimit.FixedWindowLimiter
	RefreshLimiter  *ratelimit.FixedWindowLimiter

	// Optional; nil disables the admin reimport endpoints.
	ImportQueue *queue.RedisImportQueue
}

// Server exposes the HTTP API.
type Server struct {
	app             *app.App
	loginLimiter    *ratelimit.FixedWindowLimiter
	registerLimiter *ratelimit.FixedWindowLimiter
	refreshLimiter  *ratelimit.FixedWindowLimiter
	importQueue     *queue.RedisImportQueue
	mux             *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server requires an app")
	}
	s := &Server{
		app:             cfg.App,
		loginLimiter:    cfg.LoginLimiter,
		registerLimiter: cfg.RegisterLimiter,
		refreshLimiter:  cfg.RefreshLimiter,
		importQueue:     cfg.ImportQueue,
		mux:             http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler wrapped in the middleware chain.
// Token extraction runs for every request and fails open: a missing or
// invalid bearer token leaves the request anonymous and the per-route
// guards decide what anonymous callers may do.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.withIdentity(s.mux)))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	s.mux.HandleFunc("/api/v1/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/v1/auth/register", s.handleRegister)
	s.mux.HandleFunc("/api/v1/auth/refresh", s.handleRefresh)

	s.mux.Handle("/api/v1/users/", s.authenticated(s.handleUserByID))
	s.mux.HandleFunc("/api/v1/books", s.handleBooks)
	s.mux.HandleFunc("/api/v1/books/", s.handleBookByID)
	s.mux.Handle("/api/v1/purchases/", s.authenticated(s.handlePurchases))
	s.mux.Handle("/api/v1/recommendations/", s.authenticated(s.handleRecommendations))
	s.mux.Handle("/api/v1/admin/catalog/import", s.adminOnly(s.handleImportEnqueue))
	s.mux.Handle("/api/v1/admin/catalog/import/", s.adminOnly(s.handleImportStatus))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ctxKey int

const userKey ctxKey = iota

// withIdentity resolves the bearer token, if any, to a user and stores it
// on the request context. Resolution failures are ignored here.
func (s *Server) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token, ok := bearerToken(r); ok {
			if user, err := s.app.AuthenticateToken(token); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), userKey, user))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func userFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(userKey).(domain.User)
	return user, ok
}

type userHandler func(http.ResponseWriter, *http.Request, domain.User)

// authenticated rejects anonymous callers with 401.
func (s *Server) authenticated(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Access denied.")
			return
		}
		next(w, r, user)
	})
}

// adminOnly additionally requires ROLE_ADMIN or ROLE_SUPER_ADMIN.
func (s *Server) adminOnly(next userHandler) http.Handler {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
		if !user.HasAnyAuthority(domain.RoleAdmin, domain.RoleSuperAdmin) {
			writeError(w, http.StatusForbidden, "Access denied.")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) allowRate(limiter *ratelimit.FixedWindowLimiter, r *http.Request) bool {
	if limiter == nil {
		return true
	}
	return limiter.Allow(r.Context(), util.ClientIP(r))
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

type errorResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Message: msg})
}

// writeAppError translates a domain error into its HTTP shape.
func writeAppError(w http.ResponseWriter, err error) {
	typed, ok := app.AsError(err)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Internal error.")
		return
	}
	status := http.StatusInternalServerError
	switch typed.Kind {
	case app.KindNotFound:
		status = http.StatusNotFound
	case app.KindConflict, app.KindValidation, app.KindAuthentication:
		status = http.StatusBadRequest
	case app.KindAccessDenied:
		status = http.StatusForbidden
	}
	writeJSON(w, status, errorResponse{Message: typed.Message, Errors: typed.Fields})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body.")
		return false
	}
	return true
}

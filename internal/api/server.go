// Package api provides the HTTP boundary for the tracker: the public game
// endpoints and the session-authenticated admin surface. All business rules
// live in the app services; handlers only decode, authorize, and encode.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ecotree-app/ecotree/internal/app/ledger"
	"github.com/ecotree-app/ecotree/internal/app/policy"
	"github.com/ecotree-app/ecotree/internal/app/rollover"
	"github.com/ecotree-app/ecotree/internal/app/roster"
	"github.com/ecotree-app/ecotree/internal/app/stats"
	"github.com/ecotree-app/ecotree/internal/auth"
	"github.com/ecotree-app/ecotree/internal/domain"
)

// Server is the tracker's HTTP API server.
type Server struct {
	Roster   *roster.Service
	Policy   *policy.Service
	Ledger   *ledger.Service
	Stats    *stats.Service
	Rollover *rollover.Service
	Auth     *auth.Service

	metricsEnabled bool
	allowedOrigins []string
}

// NewServer wires the API server over the app services.
func NewServer(ros *roster.Service, pol *policy.Service, led *ledger.Service, st *stats.Service, roll *rollover.Service, au *auth.Service) *Server {
	return &Server{
		Roster:   ros,
		Policy:   pol,
		Ledger:   led,
		Stats:    st,
		Rollover: roll,
		Auth:     au,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetAllowedOrigins configures CORS for the SPA frontend.
func (s *Server) SetAllowedOrigins(origins []string) { s.allowedOrigins = origins }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(s.corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public game endpoints
		r.Get("/groups", s.handleGroups)
		r.Get("/children", s.handleChildren)
		r.Get("/game/actions", s.handleActions)
		r.Post("/game/interaction", s.handleInteraction)

		// Admin surface
		r.Post("/admin/login", s.handleLogin)
		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)
			r.Post("/admin/logout", s.handleLogout)
			r.Get("/admin/me", s.handleMe)

			r.Get("/admin/stats/groups", s.handleStatsGroups)
			r.Get("/admin/stats/children", s.handleStatsChildren)
			r.Get("/admin/events", s.handleEvents)
			r.Get("/admin/monthly-results", s.handleMonthlyResults)
			r.Get("/admin/monthly-stats", s.handleMonthlyStats)

			r.Get("/admin/child/{id}/events", s.handleChildEvents)
			r.Post("/admin/child/{id}/balance-adjust", s.handleBalanceAdjust)

			r.Get("/admin/groups", s.handleAdminGroups)
			r.Post("/admin/groups", s.handleGroupCreate)
			r.Put("/admin/group/{id}", s.handleGroupUpdate)
			r.Delete("/admin/group/{id}", s.handleGroupDelete)

			r.Post("/admin/children", s.handleChildCreate)
			r.Put("/admin/child/{id}", s.handleChildUpdate)
			r.Delete("/admin/child/{id}", s.handleChildDelete)
		})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ─── Session Middleware ─────────────────────────────────────────────────────

type ctxKey int

const sessionKey ctxKey = 0

// requireSession rejects requests without a valid session cookie and puts
// the session into the request context.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(auth.SessionCookie)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		sess, ok := s.Auth.Resolve(cookie.Value)
		if !ok {
			writeError(w, http.StatusUnauthorized, "session expired")
			return
		}
		ctx := contextWithSession(r.Context(), sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// educatorGroup returns the educator's group scope, or "" for full admins.
func educatorGroup(r *http.Request) string {
	sess, ok := sessionFromContext(r.Context())
	if ok && sess.IsEducator() {
		return sess.GroupID
	}
	return ""
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps a domain error to its HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrChildNotFound):
		writeError(w, http.StatusNotFound, "child not found")
	case errors.Is(err, domain.ErrGroupNotFound):
		writeError(w, http.StatusNotFound, "group not found")
	case errors.Is(err, domain.ErrGroupNotEmpty):
		writeError(w, http.StatusBadRequest, "group still has children; move or delete them first")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid input")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// corsMiddleware adds CORS headers for the SPA frontend.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := "*"
		if len(s.allowedOrigins) > 0 {
			origin = s.allowedOrigins[0]
			for _, o := range s.allowedOrigins {
				if o == r.Header.Get("Origin") {
					origin = o
					break
				}
			}
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

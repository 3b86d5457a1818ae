// Package httpapi is the HTTP surface of the dependency graph engine
// (spec.md §6): a plain net/http.ServeMux router, the
// {success,data,error,message,timestamp} response envelope, and the
// tenant-scoped principal/rate-limit middleware chain — mirroring the
// teacher's own preference for stdlib net/http plus a hand-rolled mux
// (cmd/bd/web_server.go) over a third-party router framework.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/getailigned/dependency-service/internal/depservice"
)

// Handler holds the dependencies every route needs.
type Handler struct {
	svc *depservice.Service
}

// Options configures the server's ambient concerns.
type Options struct {
	Log               *slog.Logger
	CORSOrigins       []string
	RateLimitWindow   time.Duration
	RateLimitRequests int
}

// NewMux builds the full routing table, wrapped in logging, CORS, rate
// limiting, and (for every /api/* route) principal extraction.
func NewMux(svc *depservice.Service, opts Options) http.Handler {
	h := &Handler{svc: svc}
	limiter := newIPRateLimiter(opts.RateLimitWindow, opts.RateLimitRequests)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)

	mux.HandleFunc("/api/dependencies", withPrincipal(h.handleCreateEdge))
	mux.HandleFunc("/api/dependencies/", withPrincipal(h.dispatchEdgeByID))
	mux.HandleFunc("/api/graph", withPrincipal(h.handleGraph))
	mux.HandleFunc("/api/critical-path", withPrincipal(h.handleCriticalPath))
	mux.HandleFunc("/api/cycles", withPrincipal(h.handleCycles))

	var handler http.Handler = mux
	handler = corsMiddleware(opts.CORSOrigins, handler)
	return withLoggingHandler(opts.Log, limiter.middlewareHandler(handler))
}

// dispatchEdgeByID routes the :id sub-path by HTTP method, since
// net/http.ServeMux (pre-1.22 pattern style, matching the teacher's own
// target Go version) doesn't dispatch on method itself.
func (h *Handler) dispatchEdgeByID(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleGetEdge(w, r)
	case http.MethodPut:
		h.handleUpdateEdge(w, r)
	case http.MethodDelete:
		h.handleDeleteEdge(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	allowAll := false
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowAll || allowed[origin]) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Tenant-ID, X-User-ID")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withLoggingHandler(log *slog.Logger, next http.Handler) http.Handler {
	return withLogging(log, next.ServeHTTP)
}

func (l *ipRateLimiter) middlewareHandler(next http.Handler) http.Handler {
	return l.middleware(next.ServeHTTP)
}

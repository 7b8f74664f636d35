// File path: internal/api/server.go
package api

import (
	"encoding/json"
	"expvar"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jbpark-dev/storesense/internal/common"
	"github.com/jbpark-dev/storesense/internal/report"
)

// Server exposes the report builder over HTTP.
type Server struct {
	router  chi.Router
	builder *report.Builder
}

func NewServer(builder *report.Builder) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		builder: builder,
	}
	s.registerRoutes()
	return s
}

// Router returns the configured handler for http.Server.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Post("/api/v1/report", s.handleReport)
	s.router.Get("/api/v1/logs", s.handleLogs)
	s.router.Handle("/debug/vars", expvar.Handler())
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("api: request failed", "status", status, "error", err)
	} else {
		logger.Warn("api: request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// Package api exposes the HTTP interface for the scraper service: health
// and readiness probes, Prometheus metrics, and a small queue management
// surface.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nsgamedb/eshop-scraper/internal/database"
	"github.com/nsgamedb/eshop-scraper/internal/eshop"
	"github.com/nsgamedb/eshop-scraper/internal/metrics"
	"github.com/nsgamedb/eshop-scraper/internal/queue"
)

// Queue is the slice of queue.Manager the API needs.
type Queue interface {
	Ping(ctx context.Context) error
	Enqueue(ctx context.Context, item queue.Item) error
	Stats(ctx context.Context) (queue.Stats, error)
	GetFailure(ctx context.Context, id string) (queue.Item, bool, error)
}

// Server wires HTTP handlers to the queue and database.
type Server struct {
	router chi.Router
	queue  Queue
	db     database.Provider
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(q Queue, db database.Provider, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{queue: q, db: db, logger: logger}

	metrics.Init()

	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/queue", func(r chi.Router) {
			r.Get("/stats", s.queueStats)
			r.Post("/enqueue", s.enqueue)
			r.Get("/failures/{id}", s.getFailure)
		})
		r.Get("/db/stats", s.dbStats)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyz checks both backends; a scrape run would fail its connect check
// under the same conditions.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if err := s.queue.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "queue store unreachable")
		return
	}
	if !s.db.TestConnection(r.Context()) {
		writeError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) queueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.queue.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) dbStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type enqueueRequest struct {
	IDs          []string `json:"ids"`
	Source       string   `json:"source"`
	Priority     string   `json:"priority"`
	ForceRefresh bool     `json:"forceRefresh"`
}

type enqueueResponse struct {
	Enqueued int      `json:"enqueued"`
	Rejected []string `json:"rejected,omitempty"`
}

// enqueue adds game ids to the pending partition. Invalid ids are
// rejected individually; the rest of the batch still lands.
func (s *Server) enqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids required")
		return
	}
	priority := queue.Priority(req.Priority)
	switch priority {
	case "", queue.PriorityNormal, queue.PriorityRefresh:
	default:
		writeError(w, http.StatusBadRequest, "priority must be normal or refresh")
		return
	}
	source := req.Source
	if source == "" {
		source = "api"
	}

	resp := enqueueResponse{}
	for _, id := range req.IDs {
		if _, err := eshop.ClassifyID(id); err != nil {
			resp.Rejected = append(resp.Rejected, id)
			continue
		}
		item := queue.Item{
			ID:           id,
			Source:       source,
			Priority:     priority,
			ForceRefresh: req.ForceRefresh,
		}
		if err := s.queue.Enqueue(r.Context(), item); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Enqueued++
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) getFailure(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	record, found, err := s.queue.GetFailure(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "no failure record")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

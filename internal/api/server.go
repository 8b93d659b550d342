package api

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/guide-quotes/internal/harvest"
	"github.com/JakeFAU/guide-quotes/internal/metrics"
)

//go:embed static/index.html
var static embed.FS

// ScrapeMessage is the fixed acknowledgement returned by POST /scrape.
const ScrapeMessage = "Scraping started in the background."

// HarvestIDHeader carries the queued run ID on POST /scrape responses.
const HarvestIDHeader = "X-Harvest-ID"

const enqueueTimeout = 5 * time.Second

// Enqueuer accepts harvest tasks for background execution.
type Enqueuer interface {
	Enqueue(ctx context.Context, task harvest.Task) error
}

// Server wires HTTP handlers to the chapter store and the harvest queue.
type Server struct {
	router   chi.Router
	store    harvest.Store
	runs     harvest.RunStore
	enqueuer Enqueuer
	idGen    harvest.IDGenerator
	clock    harvest.Clock
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	store harvest.Store,
	runs harvest.RunStore,
	enqueuer Enqueuer,
	idGen harvest.IDGenerator,
	clock harvest.Clock,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:    store,
		runs:     runs,
		enqueuer: enqueuer,
		idGen:    idGen,
		clock:    clock,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/", s.index)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/quotes", s.listQuotes)
	r.Get("/books", s.listBooks)
	r.Post("/scrape", s.triggerScrape)
	r.Route("/harvests", func(r chi.Router) {
		r.Get("/", s.listHarvests)
		r.Get("/{run_id}", s.getHarvest)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	page, err := static.ReadFile("static/index.html")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "landing page unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if pinger, ok := s.store.(harvest.Pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pinger.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listQuotes(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListAll(r.Context())
	if err != nil {
		s.logger.Error("list quotes failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) listBooks(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListAll(r.Context())
	if err != nil {
		s.logger.Error("list quotes failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, GroupBooks(records))
}

func (s *Server) triggerScrape(w http.ResponseWriter, r *http.Request) {
	runID, err := s.enqueueHarvest(r.Context())
	if err != nil {
		s.logger.Error("queue harvest failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	w.Header().Set(HarvestIDHeader, runID)
	writeJSON(w, http.StatusOK, map[string]string{"message": ScrapeMessage})
}

func (s *Server) enqueueHarvest(ctx context.Context) (string, error) {
	runID, err := s.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	now := s.clock.Now()
	run := harvest.Run{
		ID:        runID,
		Status:    harvest.RunStatusQueued,
		Submitted: now,
	}
	if err := s.runs.CreateRun(ctx, run); err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	queueCtx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()
	if err := s.enqueuer.Enqueue(queueCtx, harvest.Task{RunID: runID, Submitted: now.Unix()}); err != nil {
		if uerr := s.runs.UpdateRun(context.WithoutCancel(ctx), runID, harvest.RunStatusFailed,
			"not queued: "+err.Error(), harvest.Summary{}); uerr != nil {
			s.logger.Warn("mark unqueued run failed", zap.String("run_id", runID), zap.Error(uerr))
		}
		return "", fmt.Errorf("enqueue harvest: %w", err)
	}
	return runID, nil
}

func (s *Server) listHarvests(w http.ResponseWriter, r *http.Request) {
	runs, err := s.runs.ListRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list harvests")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) getHarvest(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	run, err := s.runs.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, harvest.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "harvest not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch harvest")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

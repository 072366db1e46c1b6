package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/page-summarizer/internal/logging"
	"github.com/JakeFAU/page-summarizer/internal/metrics"
	"github.com/JakeFAU/page-summarizer/internal/summary"
)

const (
	detailNotFound  = "Summary not found"
	detailQueueFull = "summarization queue is full"
	detailInternal  = "internal server error"

	defaultEnqueueTimeout = 5 * time.Second
)

func (s *Server) ping(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ping": "pong!",
		"env":  s.cfg.Environment,
		"test": s.cfg.Testing,
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "unhealthy",
			"database": "disconnected",
			"error":    err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "healthy",
		"database":    "connected",
		"environment": s.cfg.Environment,
	})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) createSummary(w http.ResponseWriter, r *http.Request) {
	var req summaryCreateRequest
	if err := decodeBody(r.Body, s.validate, &req); err != nil {
		s.writeRequestError(w, err)
		return
	}
	rec, err := s.store.Create(r.Context(), *req.URL)
	if err != nil {
		s.internalError(w, r, "create summary", err)
		return
	}
	metrics.ObserveSummaryCreated()

	timeout := s.cfg.EnqueueTimeout()
	if timeout <= 0 {
		timeout = defaultEnqueueTimeout
	}
	queueCtx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()
	item := summary.QueueItem{RecordID: rec.ID, URL: rec.URL, Submitted: s.clock.Now().Unix()}
	if err := s.enqueuer.Enqueue(queueCtx, item); err != nil {
		s.logger.Warn("enqueue summary failed", logging.RecordID(rec.ID), zap.Error(err))
		if _, delErr := s.store.Delete(context.WithoutCancel(r.Context()), rec.ID); delErr != nil && !errors.Is(delErr, summary.ErrNotFound) {
			s.logger.Error("remove unscheduled summary failed", logging.RecordID(rec.ID), zap.Error(delErr))
		}
		writeDetail(w, http.StatusServiceUnavailable, detailQueueFull)
		return
	}
	s.logger.Info("summary scheduled", logging.RecordID(rec.ID), zap.String("url", rec.URL))
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) listSummaries(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List(r.Context())
	if err != nil {
		s.internalError(w, r, "list summaries", err)
		return
	}
	if records == nil {
		records = []summary.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.storeError(w, r, "get summary", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// updateSummary edits url and summary text. Status is left to the task.
func (s *Server) updateSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req summaryUpdateRequest
	if err := decodeBody(r.Body, s.validate, &req); err != nil {
		s.writeRequestError(w, err)
		return
	}
	updated, err := s.store.UpdateContent(r.Context(), id, *req.URL, *req.Summary)
	if err != nil {
		s.storeError(w, r, "update summary", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	rec, err := s.store.Delete(r.Context(), id)
	if err != nil {
		s.storeError(w, r, "delete summary", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, verr := parseID(chi.URLParam(r, "id"))
	if verr != nil {
		writeJSON(w, http.StatusUnprocessableEntity, verr)
		return 0, false
	}
	return id, true
}

func (s *Server) writeRequestError(w http.ResponseWriter, err error) {
	var verr *validationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusUnprocessableEntity, verr)
		return
	}
	s.logger.Error("request validation failed", zap.Error(err))
	writeDetail(w, http.StatusInternalServerError, detailInternal)
}

func (s *Server) storeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, summary.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, detailNotFound)
		return
	}
	s.internalError(w, r, op, err)
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.Error(op+" failed", zap.Error(err), zap.String("request_id", requestID(r.Context())))
	writeDetail(w, http.StatusInternalServerError, detailInternal)
}

package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/logsentinel/logsentinel/internal/apperrors"
	"github.com/logsentinel/logsentinel/internal/domain"
)

// submitAndWait schedules work on the pool and blocks this request's own
// goroutine (never an I/O-loop thread, since net/http already gives every
// request its own goroutine) until work completes or handlerTimeout
// elapses. Submit rejection is reported distinctly so callers can reply
// 503 instead of 500.
func submitAndWait[T any](ctx context.Context, pool Pool, work func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	resultCh := make(chan struct {
		val T
		err error
	}, 1)

	err := pool.Submit(func(taskCtx context.Context) {
		val, err := work(taskCtx)
		resultCh <- struct {
			val T
			err error
		}{val, err}
	})
	if err != nil {
		return zero, apperrors.Wrap(apperrors.ErrOverload, "worker pool queue is full")
	}

	select {
	case res := <-resultCh:
		return res.val, res.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	traceID := mux.Vars(r)["trace_id"]

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	result, err := submitAndWait(ctx, s.pool, func(taskCtx context.Context) (domain.LogAnalysisResult, error) {
		return s.repo.QueryResultByTraceID(taskCtx, traceID)
	})
	if err != nil {
		status, msg := classifyError(err)
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, resultResponse{TraceID: traceID, Result: result})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	stats, err := submitAndWait(ctx, s.pool, func(taskCtx context.Context) (domain.DashboardStats, error) {
		return s.repo.GetDashboardStats(), nil
	})
	if err != nil {
		status, msg := classifyError(err)
		if status == http.StatusOK {
			status, msg = http.StatusInternalServerError, "internal error"
		}
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))
	level := q.Get("level")
	keyword := q.Get("keyword")

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	page2, err := submitAndWait(ctx, s.pool, func(taskCtx context.Context) (domain.HistoryPage, error) {
		return s.repo.GetHistoricalLogs(taskCtx, page, pageSize, level, keyword)
	})
	if err != nil {
		status, msg := classifyError(err)
		if status == http.StatusOK {
			status, msg = http.StatusInternalServerError, "internal error"
		}
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, page2)
}

// handleHealth reports whether the worker pool is still accepting work, for
// liveness/readiness probes. It does not touch the database or the pool
// queue itself, so it stays cheap under load.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pool.Stopped() {
		writeJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "shutting down"})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "404 Not Found", Path: r.URL.Path})
}

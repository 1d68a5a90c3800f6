package api

import (
	"io"
	"net/http"
	"time"

	"github.com/logsentinel/logsentinel/internal/domain"
)

// handleIngest is the request fast-path: assign a trace-id, snapshot the
// current config, push to the batcher, reply. It never touches SQL and
// never calls the analyzer directly.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 10<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	traceID := traceIDFromExternal()
	snapshot := s.cfg.GetSnapshot()

	task := domain.AnalysisTask{
		TraceID: traceID,
		Body:    string(body),
		Start:   time.Now(),
		Config:  snapshot,
	}

	if err := s.ingester.Push(task); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Server is overloaded")
		return
	}

	writeJSON(w, http.StatusAccepted, ingestResponse{TraceID: traceID})
}

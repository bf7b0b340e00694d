// Package controlapi is the thin HTTP façade over internal/supervisor
// described by spec.md §6: flow CRUD, start/stop/test, log retrieval,
// an SSE event stream, and the inspector start/stop/state endpoints.
// Every handler does nothing but decode, delegate, and encode — all
// behavior lives in internal/supervisor.
package controlapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/flow"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/supervisor"
	"github.com/lucasiscovici/mcp-proxy-studio/pkg/logging"
)

const controlAPISubsystem = "ControlAPI"

// Server wires the supervisor into an http.Handler. Kept deliberately
// thin: it owns no state of its own beyond the supervisor reference.
type Server struct {
	supervisor *supervisor.Supervisor
	mux        *http.ServeMux
}

// New builds the routed handler. Route patterns use the method-aware
// ServeMux syntax ("METHOD /path") so no third-party router is needed
// for a handful of flat JSON routes.
func New(s *supervisor.Supervisor) *Server {
	srv := &Server{supervisor: s, mux: http.NewServeMux()}
	srv.routes()
	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/flows", s.handleListFlows)
	s.mux.HandleFunc("POST /api/flows", s.handleCreateFlow)
	s.mux.HandleFunc("PUT /api/flows/{id}", s.handleUpdateFlow)
	s.mux.HandleFunc("DELETE /api/flows/{id}", s.handleDeleteFlow)
	s.mux.HandleFunc("POST /api/flows/{id}/start", s.handleStartFlow)
	s.mux.HandleFunc("POST /api/flows/{id}/stop", s.handleStopFlow)
	s.mux.HandleFunc("POST /api/flows/{id}/test", s.handleTestFlow)
	s.mux.HandleFunc("GET /api/flows/{id}/logs", s.handleLogs)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("POST /api/inspector/start", s.handleInspectorStart)
	s.mux.HandleFunc("POST /api/inspector/stop", s.handleInspectorStop)
	s.mux.HandleFunc("GET /api/inspector/state", s.handleInspectorState)
}

func (s *Server) handleListFlows(w http.ResponseWriter, r *http.Request) {
	flows, err := s.supervisor.ListFlows()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, flows)
}

func (s *Server) handleCreateFlow(w http.ResponseWriter, r *http.Request) {
	var f flow.Flow
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	created, err := s.supervisor.CreateFlow(f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateFlow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var f flow.Flow
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	updated, err := s.supervisor.UpdateFlow(id, f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteFlow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.supervisor.DeleteFlow(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartFlow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.supervisor.StartFlow(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStopFlow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.supervisor.StopFlow(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTestFlow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	result, err := s.supervisor.TestFlow(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	writeJSON(w, http.StatusOK, s.supervisor.Logs(id))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.supervisor.Status()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleEvents streams the broadcaster's events as a standard
// text/event-stream, one JSON-encoded Event per `data:` line.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id, ch := s.supervisor.Broadcaster().Subscribe()
	defer s.supervisor.Broadcaster().Unsubscribe(id)

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				logging.Error(controlAPISubsystem, err, "marshal event for SSE stream")
				continue
			}
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			if _, err := w.Write(payload); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleInspectorStart(w http.ResponseWriter, r *http.Request) {
	st, err := s.supervisor.Inspector().Start(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleInspectorStop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.supervisor.Inspector().Stop())
}

func (s *Server) handleInspectorState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.supervisor.Inspector().State())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error(controlAPISubsystem, err, "encode response body")
	}
}

func writeError(w http.ResponseWriter, err error) {
	var supErr *supervisor.Error
	if errors.As(err, &supErr) {
		writeJSON(w, statusForKind(supErr.Kind), map[string]string{"error": supErr.Message, "kind": string(supErr.Kind)})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func statusForKind(k supervisor.Kind) int {
	switch k {
	case supervisor.KindNotFound:
		return http.StatusNotFound
	case supervisor.KindValidation:
		return http.StatusBadRequest
	case supervisor.KindBinaryMissing:
		return http.StatusBadRequest
	case supervisor.KindAlreadyStopped:
		return http.StatusConflict
	case supervisor.KindReadinessTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

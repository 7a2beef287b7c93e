// Package httpapi declares HTTP contracts and route registration helpers.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/infantlab/gazekit/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the session service.
type Dependencies interface {
	// SessionID identifies the current acquisition session.
	SessionID() string

	// Status returns the tracker's current state.
	Status() model.Status

	// BufferLen returns the number of buffered records.
	BufferLen() int

	// DroppedSamples returns the count of out-of-order gaze samples rejected.
	DroppedSamples() uint64

	// SampleRate returns the configured acquisition rate in Hz.
	SampleRate() float64

	// RecordEvent appends an experiment marker to the session buffer.
	RecordEvent(label string, payload map[string]any) error
}

// Server wires HTTP routes for the acquisition API.
type Server struct {
	deps Dependencies
	feed http.Handler
}

// NewServer creates an API server. feed is the WebSocket live-feed handler;
// it may be nil to disable the /ws/gaze route.
func NewServer(deps Dependencies, feed http.Handler) *Server {
	return &Server{deps: deps, feed: feed}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/session", s.handleSession)
	mux.HandleFunc("/api/event", s.handlePostEvent)
	if s.feed != nil {
		mux.Handle("/ws/gaze", s.feed)
	}
}

// handleHealth handles GET /healthz requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// handleStatus handles GET /api/status requests.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	st := s.deps.Status()
	writeJSON(w, http.StatusOK, statusResponse{Status: st.Kind.String(), Reason: st.Reason})
}

type sessionResponse struct {
	SessionID      string  `json:"session_id"`
	Status         string  `json:"status"`
	BufferLen      int     `json:"buffer_len"`
	DroppedSamples uint64  `json:"dropped_samples"`
	SampleRateHz   float64 `json:"sample_rate_hz"`
}

// handleSession handles GET /api/session requests.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:      s.deps.SessionID(),
		Status:         s.deps.Status().Kind.String(),
		BufferLen:      s.deps.BufferLen(),
		DroppedSamples: s.deps.DroppedSamples(),
		SampleRateHz:   s.deps.SampleRate(),
	})
}

// eventRequest is the body of POST /api/event.
type eventRequest struct {
	Label   string         `json:"label"`
	Payload map[string]any `json:"payload,omitempty"`
}

func (e eventRequest) validate() error {
	if strings.TrimSpace(e.Label) == "" {
		return errors.New("missing label")
	}
	return nil
}

type ackResponse struct {
	Status string `json:"status"`
}

// handlePostEvent handles POST /api/event, recording an experiment marker
// into the running session.
func (s *Server) handlePostEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("invalid JSON body"))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	if err := s.deps.RecordEvent(req.Label, req.Payload); err != nil {
		writeError(w, http.StatusConflict, "not_recording", err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

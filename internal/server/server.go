package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"depscan/internal/scan"
)

// ScanService is the orchestrator surface the HTTP layer needs.
type ScanService interface {
	StartScan(repos []scan.RepoRef, depth scan.Depth) (string, error)
	GetRun(runID string) (*scan.ScanRun, error)
	CancelRun(runID string) error
}

// Server exposes the polling API:
//
//	POST /scans               start a run, returns its id
//	GET  /scans/{runId}       point-in-time run snapshot
//	POST /scans/{runId}/cancel
//	GET  /healthz
//
// Clients poll GET /scans/{runId} until status is completed or failed; the
// server sets no Retry-After, the client owns its interval.
type Server struct {
	scans ScanService
}

func New(scans ScanService) (*Server, error) {
	if scans == nil {
		return nil, errors.New("server: scan service is nil")
	}
	return &Server{scans: scans}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /scans", s.handleStartScan)
	mux.HandleFunc("GET /scans/{runId}", s.handleGetRun)
	mux.HandleFunc("POST /scans/{runId}/cancel", s.handleCancelRun)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

type startScanRequest struct {
	Repos []scan.RepoRef `json:"repos"`
	Depth string         `json:"depth"`
}

type startScanResponse struct {
	RunID string `json:"runId"`
}

func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	var req startScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	depth, err := scan.ParseDepth(req.Depth)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	runID, err := s.scans.StartScan(req.Repos, depth)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, startScanResponse{RunID: runID})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.scans.GetRun(r.PathValue("runId"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	if err := s.scans.CancelRun(r.PathValue("runId")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, scan.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, scan.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, scan.ErrRunNotCancellable):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

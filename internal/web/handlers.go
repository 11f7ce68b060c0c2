package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/core"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/diagnostics"
)

// StatusResponse describes the resolved storage destination.
type StatusResponse struct {
	Tier      string            `json:"tier"`
	Volume    string            `json:"volume,omitempty"`
	Container string            `json:"container"`
	Connected bool              `json:"connected"`
	Modes     map[string]string `json:"modes"`
}

// CaptureResponse is returned by the capture endpoint.
type CaptureResponse struct {
	RequestID string `json:"request_id"`
	Kind      string `json:"kind"`
	Location  string `json:"location,omitempty"`
	Status    string `json:"status"`
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ResourcesResponse carries the monitor state.
type ResourcesResponse struct {
	Latest   diagnostics.ResourceSnapshot `json:"latest"`
	Trend    diagnostics.ResourceTrend    `json:"trend"`
	Warnings []diagnostics.HealthWarning  `json:"warnings"`
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// respondError sends a JSON error response.
func respondError(w http.ResponseWriter, status int, resp ErrorResponse) {
	respondJSON(w, status, resp)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleAPIRoot returns API information.
func (s *Server) handleAPIRoot(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"version": "v1", "name": s.service})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	state := s.coord.Destination().Snapshot()

	modes := make(map[string]string, len(core.ArtifactKinds))
	for _, kind := range core.ArtifactKinds {
		modes[kind.String()] = string(s.modes[kind])
	}

	respondJSON(w, http.StatusOK, StatusResponse{
		Tier:      state.Tier.String(),
		Volume:    state.Volume,
		Container: state.Container,
		Connected: state.Client != nil,
		Modes:     modes,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.coord.Metrics())
}

func (s *Server) handleResources(w http.ResponseWriter, _ *http.Request) {
	if s.monitor == nil {
		respondError(w, http.StatusNotFound, ErrorResponse{Error: "resource monitoring disabled"})
		return
	}

	latest, ok := s.monitor.GetLatest()
	if !ok {
		latest = s.monitor.TakeSnapshot()
	}
	respondJSON(w, http.StatusOK, ResourcesResponse{
		Latest:   latest,
		Trend:    s.monitor.GetTrend(),
		Warnings: s.monitor.CheckHealth(),
	})
}

// handleCapture triggers a capture. By default it waits for the artifact to
// be persisted; with ?local=true it only writes to the local disk and
// returns 202 at once.
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	kind, err := core.ParseArtifactKind(chi.URLParam(r, "kind"))
	if err != nil {
		respondError(w, http.StatusNotFound, s.errorBody(err, ""))
		return
	}

	if !s.modes.Enabled(kind, core.CapabilityAPI) {
		respondError(w, http.StatusForbidden, ErrorResponse{
			Error: kind.String() + " is not enabled for api triggers",
			Code:  "TRIGGER_DISABLED",
		})
		return
	}

	info := core.CaptureInfo{
		Trigger: core.TriggerAPI,
		Reason:  "http " + middleware.GetReqID(r.Context()),
	}

	local, _ := strconv.ParseBool(r.URL.Query().Get("local"))
	if local {
		id := s.coord.Write(kind, info)
		respondJSON(w, http.StatusAccepted, CaptureResponse{
			RequestID: id,
			Kind:      kind.String(),
			Status:    "accepted",
		})
		return
	}

	done := make(chan core.Result, 1)
	id := s.coord.Store(kind, info, func(res core.Result) {
		done <- res
	})

	select {
	case res := <-done:
		if res.Err != nil {
			respondError(w, statusFor(res.Err), s.errorBody(res.Err, res.RequestID))
			return
		}
		respondJSON(w, http.StatusOK, CaptureResponse{
			RequestID: res.RequestID,
			Kind:      kind.String(),
			Location:  res.Location,
			Status:    "stored",
		})
	case <-r.Context().Done():
		// The capture keeps running; its outcome is logged by the coordinator
		s.logger.Warn("client went away before capture finished",
			"request_id", id,
			"kind", kind,
		)
	}
}

func statusFor(err error) int {
	switch core.GetCategory(err) {
	case core.ErrCatUnsupported:
		return http.StatusNotImplemented
	case core.ErrCatValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) errorBody(err error, requestID string) ErrorResponse {
	body := ErrorResponse{Error: s.redact(err.Error()), RequestID: requestID}
	var domErr *core.DomainError
	if errors.As(err, &domErr) {
		body.Code = domErr.Code
	}
	return body
}

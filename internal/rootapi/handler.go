package rootapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/plexsphere/rootd/internal/rootaccess"
)

// maxBodyBytes bounds request bodies; the only payload is a single flag.
const maxBodyBytes = 1 << 10

// Toggle is the service behind the endpoint.
type Toggle interface {
	SetEnabled(ctx context.Context, enabled bool) error
	GetEnabled(ctx context.Context) (bool, error)
	Authorize(ctx context.Context, op rootaccess.Operation) error
}

// RootState is the response body for both toggle routes.
type RootState struct {
	Enabled bool `json:"enabled"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Op    string `json:"op,omitempty"`
}

type setRequest struct {
	Enabled *bool `json:"enabled"`
}

// Handler provides HTTP handlers for the toggle endpoint.
type Handler struct {
	toggle  Toggle
	metrics http.Handler
	logger  *slog.Logger
}

// NewHandler creates a new Handler. A nil metrics handler disables the
// metrics route.
func NewHandler(toggle Toggle, metrics http.Handler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		toggle:  toggle,
		metrics: metrics,
		logger:  logger.With("component", "rootapi"),
	}
}

// Mux returns a configured ServeMux with all toggle routes.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/root", h.handleGet)
	mux.HandleFunc("PUT /v1/root", h.handleSet)
	if h.metrics != nil {
		mux.HandleFunc("GET /metrics", h.handleMetrics)
	}
	return mux
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	enabled, err := h.toggle.GetEnabled(r.Context())
	if err != nil {
		h.writeToggleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RootState{Enabled: enabled})
}

func (h *Handler) handleSet(w http.ResponseWriter, r *http.Request) {
	var req setRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "missing field: enabled")
		return
	}

	if err := h.toggle.SetEnabled(r.Context(), *req.Enabled); err != nil {
		h.writeToggleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RootState{Enabled: *req.Enabled})
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if err := h.toggle.Authorize(r.Context(), rootaccess.OpReadMetrics); err != nil {
		h.writeToggleError(w, err)
		return
	}
	h.metrics.ServeHTTP(w, r)
}

// writeToggleError maps service errors to responses. Permission errors carry
// their reason to the caller; anything else is opaque.
func (h *Handler) writeToggleError(w http.ResponseWriter, err error) {
	var pe *rootaccess.PermissionError
	if errors.As(err, &pe) {
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: pe.Reason, Op: pe.Op})
		return
	}
	h.logger.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

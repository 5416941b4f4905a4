// Package httphandler is the HTTP driving adapter serving the dashboard API.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/routeintel/fleetpanel/internal/application"
	"github.com/routeintel/fleetpanel/internal/domain/model"
	"github.com/routeintel/fleetpanel/internal/domain/port/driven"
	"github.com/routeintel/fleetpanel/internal/observability"
)

// ClientFactory builds a platform client from credentials. Injected so the
// handler can verify and swap clients without importing the driven adapter.
type ClientFactory func(creds model.PlatformCredentials) driven.PlatformClient

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	reconciler *application.ReconcileService
	credSvc    *application.CredentialService
	provider   *application.PlatformClientProvider
	credStore  driven.CredentialStore
	auditStore driven.AuditStore
	newClient  ClientFactory
	logger     *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	reconciler *application.ReconcileService,
	credSvc *application.CredentialService,
	provider *application.PlatformClientProvider,
	credStore driven.CredentialStore,
	auditStore driven.AuditStore,
	newClient ClientFactory,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		reconciler: reconciler,
		credSvc:    credSvc,
		provider:   provider,
		credStore:  credStore,
		auditStore: auditStore,
		newClient:  newClient,
		logger:     logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/devices", h.ListDevices)
	mux.HandleFunc("POST /api/v1/devices/{id}/credentials", h.SaveCredentials)
	mux.HandleFunc("DELETE /api/v1/devices/{id}/credentials", h.ClearCredentials)
	mux.HandleFunc("POST /api/v1/refresh", h.Refresh)
	mux.HandleFunc("GET /api/v1/audit", h.ListAuditEvents)
	mux.HandleFunc("PUT /api/v1/platform-credentials", h.SetPlatformCredentials)
	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.Handle("GET /metrics", observability.Handler())

	// Recovery innermost so panics are caught before logging.
	wrapped := panicRecovery(logger, mux)
	wrapped = requestLogging(logger, wrapped)

	return wrapped
}

// ListDevices returns the reconciled view: every active device and, where
// present, its credential mapping.
func (h *Handler) ListDevices(w http.ResponseWriter, _ *http.Request) {
	view := h.reconciler.CurrentView()
	if view == nil {
		h.writeServiceError(w, application.ErrViewNotReady)
		return
	}

	writeJSON(w, http.StatusOK, toViewResponse(view))
}

// SaveCredentials validates and stores the credential triple for a device.
func (h *Handler) SaveCredentials(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("id")

	var req SaveCredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	candidate := model.Credentials{
		Token:            req.Token,
		ExternalDeviceID: req.ExternalDeviceID,
		ExternalDriverID: req.ExternalDriverID,
	}

	if err := h.credSvc.Save(r.Context(), deviceID, candidate); err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ClearCredentials resets a device's mapping back to placeholders.
func (h *Handler) ClearCredentials(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("id")

	if err := h.credSvc.Clear(r.Context(), deviceID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Refresh runs a reconciliation pass and returns the rebuilt view.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.reconciler.Refresh(r.Context()); err != nil {
		h.writeServiceError(w, err)
		return
	}

	view := h.reconciler.CurrentView()
	if view == nil {
		h.writeServiceError(w, application.ErrViewNotReady)
		return
	}

	writeJSON(w, http.StatusOK, toViewResponse(view))
}

// ListAuditEvents returns the newest credential write attempts.
func (h *Handler) ListAuditEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	events, err := h.auditStore.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list audit events", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]AuditEventResponse, 0, len(events))
	for _, event := range events {
		resp = append(resp, toAuditEventResponse(event))
	}

	writeJSON(w, http.StatusOK, resp)
}

// SetPlatformCredentials verifies new platform sign-in credentials with an
// Authenticate round-trip, persists them encrypted, and swaps the live
// client. The reconciler picks up the new client on its next pass; a refresh
// is kicked off here so the view follows promptly.
func (h *Handler) SetPlatformCredentials(w http.ResponseWriter, r *http.Request) {
	var req PlatformCredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	creds := model.PlatformCredentials{
		Server:   req.Server,
		Database: req.Database,
		Username: req.Username,
		Password: req.Password,
	}
	if !creds.Complete() {
		writeError(w, http.StatusBadRequest, "server, database, username, and password are all required")
		return
	}

	client := h.newClient(creds)
	if err := client.Authenticate(r.Context()); err != nil {
		var gerr *driven.GatewayError
		if errors.As(err, &gerr) && gerr.Name != "" {
			writeError(w, http.StatusBadRequest, "platform sign-in failed: "+gerr.Message)
			return
		}
		h.logger.Error("platform sign-in verification failed", "error", err)
		writeError(w, http.StatusBadGateway, "platform unreachable")
		return
	}

	if err := h.credStore.Save(r.Context(), creds); err != nil {
		if errors.Is(err, driven.ErrEncryptionKeyNotSet) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		h.logger.Error("failed to persist platform credentials", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.provider.Replace(client)
	if err := h.reconciler.Refresh(r.Context()); err != nil {
		h.logger.Warn("refresh after credential change failed", "error", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

// Health returns service liveness plus platform wiring state.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:             "ok",
		Time:               time.Now().UTC().Format(time.RFC3339),
		PlatformConfigured: h.provider.HasClient(),
	}
	if view := h.reconciler.CurrentView(); view != nil {
		resp.ViewGeneratedAt = view.GeneratedAt.UTC().Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeServiceError maps application and domain errors onto HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var verr *model.ValidationError
	var nferr *model.NotFoundError
	var gerr *driven.GatewayError

	switch {
	case errors.Is(err, application.ErrPlatformNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "platform credentials not configured")
	case errors.Is(err, application.ErrViewNotReady):
		writeError(w, http.StatusServiceUnavailable, "reconciled view not yet available")
	case errors.As(err, &verr):
		if verr.Conflict != nil {
			writeJSON(w, http.StatusConflict, errorResponse{
				Error: verr.Error(),
				Field: string(verr.Field),
				Conflict: &ConflictResponse{
					DeviceID:   verr.Conflict.DeviceID,
					DeviceName: verr.Conflict.DeviceName,
				},
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: verr.Error(),
			Field: string(verr.Field),
		})
	case errors.As(err, &nferr):
		writeError(w, http.StatusNotFound, nferr.Error())
	case errors.As(err, &gerr):
		h.logger.Error("platform call failed", "method", gerr.Method, "error", gerr)
		writeError(w, http.StatusBadGateway, "platform request failed")
	default:
		h.logger.Error("unexpected service error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/routeintel/fleetpanel/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body. Field and Conflict are
// set only for credential validation failures.
type errorResponse struct {
	Error    string            `json:"error"`
	Field    string            `json:"field,omitempty"`
	Conflict *ConflictResponse `json:"conflict,omitempty"`
}

// ConflictResponse identifies the device whose mapping already uses the
// rejected credential value.
type ConflictResponse struct {
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
}

// MappingResponse is the JSON representation of a device's stored credentials.
type MappingResponse struct {
	Token            string `json:"token"`
	ExternalDeviceID string `json:"external_device_id"`
	ExternalDriverID string `json:"external_driver_id"`
	LastModified     string `json:"last_modified"`
}

// DeviceResponse is the JSON representation of one active device in the
// reconciled view. Credentials is nil for unmapped devices.
type DeviceResponse struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	SerialNumber string           `json:"serial_number"`
	Mapped       bool             `json:"mapped"`
	Credentials  *MappingResponse `json:"credentials,omitempty"`
}

// ViewResponse is the JSON representation of the reconciled view.
type ViewResponse struct {
	GeneratedAt string           `json:"generated_at"`
	Devices     []DeviceResponse `json:"devices"`
}

// AuditEventResponse is the JSON representation of one audit log entry.
type AuditEventResponse struct {
	ID         string `json:"id"`
	At         string `json:"at"`
	Action     string `json:"action"`
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
	Outcome    string `json:"outcome"`
	Detail     string `json:"detail,omitempty"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status             string `json:"status"`
	Time               string `json:"time"`
	PlatformConfigured bool   `json:"platform_configured"`
	ViewGeneratedAt    string `json:"view_generated_at,omitempty"`
}

// SaveCredentialsRequest is the JSON body for the save credentials endpoint.
type SaveCredentialsRequest struct {
	Token            string `json:"token"`
	ExternalDeviceID string `json:"external_device_id"`
	ExternalDriverID string `json:"external_driver_id"`
}

// PlatformCredentialsRequest is the JSON body for the platform sign-in
// configuration endpoint.
type PlatformCredentialsRequest struct {
	Server   string `json:"server"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// toViewResponse converts the reconciled view to its JSON representation.
// Devices keep the view's name ordering.
func toViewResponse(view *model.View) ViewResponse {
	devices := make([]DeviceResponse, 0, len(view.Devices))
	for _, d := range view.Devices {
		resp := DeviceResponse{
			ID:           d.ID,
			Name:         d.Name,
			SerialNumber: d.SerialNumber,
		}
		if m, ok := view.MappingFor(d.ID); ok {
			resp.Mapped = true
			resp.Credentials = &MappingResponse{
				Token:            m.Credentials.Token,
				ExternalDeviceID: m.Credentials.ExternalDeviceID,
				ExternalDriverID: m.Credentials.ExternalDriverID,
				LastModified:     m.LastModified.UTC().Format(time.RFC3339),
			}
		}
		devices = append(devices, resp)
	}

	return ViewResponse{
		GeneratedAt: view.GeneratedAt.UTC().Format(time.RFC3339),
		Devices:     devices,
	}
}

// toAuditEventResponse converts a domain AuditEvent to its JSON representation.
func toAuditEventResponse(event model.AuditEvent) AuditEventResponse {
	return AuditEventResponse{
		ID:         event.ID,
		At:         event.At.UTC().Format(time.RFC3339),
		Action:     string(event.Action),
		DeviceID:   event.DeviceID,
		DeviceName: event.DeviceName,
		Outcome:    string(event.Outcome),
		Detail:     event.Detail,
	}
}

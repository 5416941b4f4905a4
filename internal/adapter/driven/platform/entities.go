package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/routeintel/fleetpanel/internal/domain/model"
)

// detailsType discriminates our records from anything else stored under the
// same add-in id. Records with a different type are ignored on read.
const detailsType = "ri-device"

// isoMillis is the timestamp layout the dashboard writes: UTC with
// millisecond precision and a literal Z.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// deviceEntity is a platform Device on the wire. Only the fields this
// service consumes are decoded.
type deviceEntity struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	SerialNumber string `json:"serialNumber"`
	ActiveTo     string `json:"activeTo,omitempty"`
}

// addInEntity is a platform AddInData record: an opaque JSON payload filed
// under an add-in id, with a version token for optimistic concurrency.
type addInEntity struct {
	ID      string          `json:"id,omitempty"`
	AddInID string          `json:"addInId"`
	Details json.RawMessage `json:"details"`
	Version string          `json:"version,omitempty"`
}

// mappingDetails is the payload this service stores in AddInData records.
// Credential fields hold placeholder sentinels rather than empty strings so
// the platform's text search can still match the record.
type mappingDetails struct {
	Type             string `json:"type"`
	DeviceID         string `json:"gt-device"`
	DeviceName       string `json:"name"`
	SerialNumber     string `json:"gt-sn"`
	Token            string `json:"ri-token"`
	ExternalDeviceID string `json:"ri-device"`
	ExternalDriverID string `json:"ri-driver"`
	Date             string `json:"date"`
}

// FetchDevices returns every device in the platform database.
func (c *Client) FetchDevices(ctx context.Context) ([]model.Device, error) {
	var entities []deviceEntity
	params := map[string]any{"typeName": "Device"}
	if err := c.call(ctx, "Get", params, &entities); err != nil {
		return nil, fmt.Errorf("fetch devices: %w", err)
	}

	devices := make([]model.Device, 0, len(entities))
	for _, e := range entities {
		devices = append(devices, e.toModel())
	}
	return devices, nil
}

// FetchDevice returns the device with the given id, or nil when the platform
// has no such device.
func (c *Client) FetchDevice(ctx context.Context, id string) (*model.Device, error) {
	var entities []deviceEntity
	params := map[string]any{
		"typeName": "Device",
		"search":   map[string]any{"id": id},
	}
	if err := c.call(ctx, "Get", params, &entities); err != nil {
		return nil, fmt.Errorf("fetch device %s: %w", id, err)
	}
	if len(entities) == 0 {
		return nil, nil
	}

	device := entities[0].toModel()
	return &device, nil
}

// FetchMappings returns every credential mapping stored under this add-in's
// id. Records whose payload does not carry our type marker are skipped.
func (c *Client) FetchMappings(ctx context.Context) ([]model.Mapping, error) {
	var entities []addInEntity
	params := map[string]any{
		"typeName": "AddInData",
		"search":   map[string]any{"addInId": c.addInID},
	}
	if err := c.call(ctx, "Get", params, &entities); err != nil {
		return nil, fmt.Errorf("fetch mappings: %w", err)
	}

	mappings := make([]model.Mapping, 0, len(entities))
	for _, e := range entities {
		var details mappingDetails
		if err := json.Unmarshal(e.Details, &details); err != nil {
			slog.Warn("skipping unreadable add-in record", "id", e.ID, "error", err)
			continue
		}
		if details.Type != detailsType {
			slog.Debug("skipping foreign add-in record", "id", e.ID, "type", details.Type)
			continue
		}
		mappings = append(mappings, toMapping(e, details))
	}
	return mappings, nil
}

// CreateMapping stores a new mapping record and returns it with the id the
// platform assigned.
func (c *Client) CreateMapping(ctx context.Context, m model.Mapping) (model.Mapping, error) {
	params := map[string]any{
		"typeName": "AddInData",
		"entity": addInEntity{
			AddInID: c.addInID,
			Details: mustMarshalDetails(m),
		},
	}

	var id string
	if err := c.call(ctx, "Add", params, &id); err != nil {
		return model.Mapping{}, fmt.Errorf("create mapping for device %s: %w", m.DeviceID, err)
	}

	m.ID = id
	return m, nil
}

// UpdateMapping overwrites an existing mapping record. The entity carries the
// caller's version token; the platform rejects the write if the record moved
// on underneath.
func (c *Client) UpdateMapping(ctx context.Context, m model.Mapping) error {
	params := map[string]any{
		"typeName": "AddInData",
		"entity": addInEntity{
			ID:      m.ID,
			AddInID: c.addInID,
			Details: mustMarshalDetails(m),
			Version: m.Version,
		},
	}

	if err := c.call(ctx, "Set", params, nil); err != nil {
		return fmt.Errorf("update mapping %s: %w", m.ID, err)
	}
	return nil
}

// toModel converts a wire device. An activeTo that fails to parse is treated
// as absent, which keeps a malformed record visible rather than silently
// retiring it.
func (e deviceEntity) toModel() model.Device {
	device := model.Device{
		ID:           e.ID,
		Name:         e.Name,
		SerialNumber: e.SerialNumber,
	}
	if e.ActiveTo != "" {
		if t, err := time.Parse(time.RFC3339, e.ActiveTo); err == nil {
			device.ActiveTo = &t
		} else {
			slog.Warn("device has unparseable activeTo", "id", e.ID, "activeTo", e.ActiveTo)
		}
	}
	return device
}

// toMapping converts a wire record, translating placeholder sentinels back to
// empty credential fields.
func toMapping(e addInEntity, d mappingDetails) model.Mapping {
	m := model.Mapping{
		ID:           e.ID,
		Version:      e.Version,
		DeviceID:     d.DeviceID,
		DeviceName:   d.DeviceName,
		SerialNumber: d.SerialNumber,
		Credentials: model.Credentials{
			Token:            fromSentinel(d.Token, model.SentinelToken),
			ExternalDeviceID: fromSentinel(d.ExternalDeviceID, model.SentinelExternalDeviceID),
			ExternalDriverID: fromSentinel(d.ExternalDriverID, model.SentinelExternalDriverID),
		},
	}
	if d.Date != "" {
		if t, err := time.Parse(time.RFC3339, d.Date); err == nil {
			m.LastModified = t
		}
	}
	return m
}

// mustMarshalDetails encodes a mapping payload, substituting sentinels for
// empty credential fields. Marshalling a struct of strings cannot fail.
func mustMarshalDetails(m model.Mapping) json.RawMessage {
	details := mappingDetails{
		Type:             detailsType,
		DeviceID:         m.DeviceID,
		DeviceName:       m.DeviceName,
		SerialNumber:     m.SerialNumber,
		Token:            toSentinel(m.Credentials.Token, model.SentinelToken),
		ExternalDeviceID: toSentinel(m.Credentials.ExternalDeviceID, model.SentinelExternalDeviceID),
		ExternalDriverID: toSentinel(m.Credentials.ExternalDriverID, model.SentinelExternalDriverID),
		Date:             m.LastModified.UTC().Format(isoMillis),
	}
	raw, err := json.Marshal(details)
	if err != nil {
		panic(fmt.Sprintf("marshal mapping details: %v", err))
	}
	return raw
}

func fromSentinel(value, sentinel string) string {
	if value == sentinel {
		return ""
	}
	return value
}

func toSentinel(value, sentinel string) string {
	if value == "" {
		return sentinel
	}
	return value
}

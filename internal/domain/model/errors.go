package model

import "fmt"

// CredentialField names one of the three credential fields in validation
// results and API responses.
type CredentialField string

const (
	FieldToken            CredentialField = "token"
	FieldExternalDeviceID CredentialField = "external_device_id"
	FieldExternalDriverID CredentialField = "external_driver_id"
)

// Conflict reports a uniqueness collision: the candidate value for Field is
// already used by another device's mapping.
type Conflict struct {
	Field      CredentialField
	DeviceID   string // device owning the colliding mapping
	DeviceName string // that device's cached display name, for the operator
}

// ValidationError rejects a save before any platform write: a required field
// is missing, holds a sentinel literal, or collides with another device's
// mapping. Conflict is non-nil only for collisions.
type ValidationError struct {
	Field    CredentialField
	Reason   string
	Conflict *Conflict
}

// Error never echoes the candidate value itself; tokens must not end up in
// logs or API error bodies.
func (e *ValidationError) Error() string {
	if e.Conflict != nil {
		return fmt.Sprintf("%s already in use by device %q", e.Field, e.Conflict.DeviceName)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NotFoundError is returned when an operation targets a device or mapping the
// system does not know: clearing credentials for a device with no mapping, or
// saving against a device the platform no longer returns.
type NotFoundError struct {
	Resource string // "device" or "mapping"
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

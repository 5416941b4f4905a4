package application

import (
	"sort"

	"github.com/routeintel/fleetpanel/internal/domain/model"
)

// ValidateCredentials rejects candidates before any conflict scan: every
// field must be present, and none may literally equal its placeholder
// sentinel, since a stored sentinel is indistinguishable from "unset".
func ValidateCredentials(candidate model.Credentials) *model.ValidationError {
	checks := []struct {
		field    model.CredentialField
		value    string
		sentinel string
	}{
		{model.FieldToken, candidate.Token, model.SentinelToken},
		{model.FieldExternalDeviceID, candidate.ExternalDeviceID, model.SentinelExternalDeviceID},
		{model.FieldExternalDriverID, candidate.ExternalDriverID, model.SentinelExternalDriverID},
	}

	for _, c := range checks {
		if c.value == "" {
			return &model.ValidationError{Field: c.field, Reason: "required"}
		}
		if c.value == c.sentinel {
			return &model.ValidationError{Field: c.field, Reason: "reserved placeholder value"}
		}
	}

	return nil
}

// FindConflict scans the reconciled view for another device already using one
// of the candidate's credential values. The mapping being edited is skipped.
// Conflicts are reported field by field: a token collision anywhere wins over
// an external-device-id collision, which wins over an external-driver-id
// collision. Within a field, the lowest device id is reported so the outcome
// does not depend on map iteration order.
func FindConflict(view *model.View, editingDeviceID string, candidate model.Credentials) *model.ValidationError {
	deviceIDs := make([]string, 0, len(view.Mappings))
	for id := range view.Mappings {
		if id == editingDeviceID {
			continue
		}
		deviceIDs = append(deviceIDs, id)
	}
	sort.Strings(deviceIDs)

	checks := []struct {
		field model.CredentialField
		value string
		of    func(model.Credentials) string
	}{
		{model.FieldToken, candidate.Token, func(c model.Credentials) string { return c.Token }},
		{model.FieldExternalDeviceID, candidate.ExternalDeviceID, func(c model.Credentials) string { return c.ExternalDeviceID }},
		{model.FieldExternalDriverID, candidate.ExternalDriverID, func(c model.Credentials) string { return c.ExternalDriverID }},
	}

	for _, check := range checks {
		if check.value == "" {
			continue
		}
		for _, id := range deviceIDs {
			m := view.Mappings[id]
			if check.of(m.Credentials) != check.value {
				continue
			}
			return &model.ValidationError{
				Field: check.field,
				Conflict: &model.Conflict{
					Field:      check.field,
					DeviceID:   m.DeviceID,
					DeviceName: m.DeviceName,
				},
			}
		}
	}

	return nil
}

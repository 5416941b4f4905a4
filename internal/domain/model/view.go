package model

import "time"

// View is the reconciled snapshot of active devices and their credential
// mappings. A fresh View is built wholesale on every reconciliation and
// swapped in atomically; it is never mutated in place, so readers can hold a
// *View across calls without locking.
type View struct {
	GeneratedAt time.Time

	// Devices holds every active (non-retired) device, sorted by display name
	// with id as tie-breaker for stable output.
	Devices []Device

	// Mappings indexes non-placeholder, non-orphaned mappings by DeviceID.
	Mappings map[string]Mapping
}

// MappingFor returns the mapping for the given device, if the device has
// configured credentials.
func (v *View) MappingFor(deviceID string) (Mapping, bool) {
	m, ok := v.Mappings[deviceID]
	return m, ok
}

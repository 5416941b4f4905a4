package model

import "time"

// Device is a vehicle or asset tracked by the fleet platform. Devices are
// owned by the platform and read-only to this service; we cache their names
// and serial numbers inside mapping records and resync them on reconciliation.
type Device struct {
	ID           string
	Name         string
	SerialNumber string

	// ActiveTo is the end of the device's active period. nil means the device
	// has no scheduled end of life.
	ActiveTo *time.Time
}

// Retired reports whether the device's active period ended before now.
// Retired devices are dropped from every reconciled view.
func (d Device) Retired(now time.Time) bool {
	return d.ActiveTo != nil && d.ActiveTo.Before(now)
}

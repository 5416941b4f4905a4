package model

import "time"

// Sentinel placeholders stored in a mapping record whose credential fields
// have not been configured yet. They exist on the wire for compatibility with
// records written by earlier versions of the dashboard widget; inside this
// service an unconfigured field is the empty string, and the translation
// happens in the platform adapter's codec.
const (
	SentinelToken            = "TOKEN"
	SentinelExternalDeviceID = "DeviceID"
	SentinelExternalDriverID = "DriverID"
)

// Credentials is the RouteIntel credential triple associated with one
// platform device. An empty field means "not configured".
type Credentials struct {
	Token            string
	ExternalDeviceID string
	ExternalDriverID string
}

// Unset reports whether none of the three credential fields is configured.
func (c Credentials) Unset() bool {
	return c.Token == "" && c.ExternalDeviceID == "" && c.ExternalDriverID == ""
}

// Complete reports whether all three credential fields are configured.
// Saves require a complete triple; there is no partial configuration.
func (c Credentials) Complete() bool {
	return c.Token != "" && c.ExternalDeviceID != "" && c.ExternalDriverID != ""
}

// Mapping links a platform device to its RouteIntel credentials. Mappings are
// persisted as add-in records in the platform's generic store; ID and Version
// are assigned and maintained by that store. A mapping is never hard-deleted:
// clearing credentials rewrites the three fields to their sentinels and keeps
// the record alive for reuse.
type Mapping struct {
	// ID is the platform-assigned record id; empty until the first save.
	ID string

	// Version is the store's optimistic-concurrency token. It must be echoed
	// back unchanged on updates; this service does not otherwise interpret it.
	Version string

	DeviceID     string // Device.ID this mapping belongs to.
	DeviceName   string // Cached Device.Name at last sync; resynced by reconciliation.
	SerialNumber string // Cached Device.SerialNumber, for reference only.

	Credentials Credentials

	// LastModified is refreshed on every write.
	LastModified time.Time
}

// Placeholder reports whether the mapping holds no configured credentials.
// Placeholder mappings stay in the store so their id/version can be reused,
// but they are excluded from the reconciled view and from uniqueness checks.
func (m Mapping) Placeholder() bool {
	return m.Credentials.Unset()
}
